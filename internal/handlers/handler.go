package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/media"
	"github.com/studyhall-app/studyhall/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// TokenIssuer signs access tokens for authenticated profiles.
type TokenIssuer interface {
	IssueToken(profileID uuid.UUID, ttl time.Duration) (string, error)
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db         store.DataStore
	redis      *store.RedisStore
	dispatcher *chat.Dispatcher
	resolver   *chat.Resolver
	enricher   *chat.Enricher
	uploader   *media.Uploader
	tokens     TokenIssuer
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(
	db store.DataStore,
	redis *store.RedisStore,
	dispatcher *chat.Dispatcher,
	resolver *chat.Resolver,
	enricher *chat.Enricher,
	uploader *media.Uploader,
	tokens TokenIssuer,
) *Handler {
	return &Handler{
		db:         db,
		redis:      redis,
		dispatcher: dispatcher,
		resolver:   resolver,
		enricher:   enricher,
		uploader:   uploader,
		tokens:     tokens,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// DispatchError maps a dispatch rejection to its HTTP status, surfacing the
// underlying message to the acting user.
func (h *Handler) DispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrChatLocked),
		errors.Is(err, chat.ErrArchiveReadOnly),
		errors.Is(err, chat.ErrPremiumRequired),
		errors.Is(err, chat.ErrForbidden):
		h.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrEmptyMessage):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrReplyTargetGone),
		errors.Is(err, chat.ErrInvalidTransition):
		h.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		h.Error(w, http.StatusNotFound, err.Error())
	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// rejectReason maps a gating rejection to a short metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, chat.ErrChatLocked):
		return "locked"
	case errors.Is(err, chat.ErrArchiveReadOnly):
		return "archive"
	case errors.Is(err, chat.ErrPremiumRequired):
		return "premium"
	case errors.Is(err, chat.ErrEmptyMessage):
		return "empty"
	case errors.Is(err, chat.ErrReplyTargetGone):
		return "reply_gone"
	default:
		return "other"
	}
}

// sanitizeName trims and limits a name to 100 characters, removing control
// characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}

// isValidEmail validates email addresses using an RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
