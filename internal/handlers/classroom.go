package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/metrics"
	"github.com/studyhall-app/studyhall/internal/models"
)

// ClassroomStateResponse represents the resolved classroom state.
type ClassroomStateResponse struct {
	ActiveLesson    *models.Lesson `json:"active_lesson"`
	EffectivelyLive bool           `json:"effectively_live"`
	Locked          bool           `json:"locked"`
	Room            string         `json:"room"`
}

// ClassroomState reports which lesson (if any) anchors class chat and whether
// sends are locked.
func (h *Handler) ClassroomState(w http.ResponseWriter, r *http.Request) {
	st := h.resolver.State()
	h.JSON(w, http.StatusOK, ClassroomStateResponse{
		ActiveLesson:    st.ActiveLesson,
		EffectivelyLive: st.EffectivelyLive,
		Locked:          st.Locked,
		Room:            chat.ClassRoomFor(st, time.Now()).Channel(),
	})
}

// MessagesResponse represents a room history response.
type MessagesResponse struct {
	Room     string           `json:"room"`
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// classRoomFromQuery picks the class room a request targets: an explicit
// lesson archive, a dated feed, or the currently resolved room.
func (h *Handler) classRoomFromQuery(r *http.Request) (chat.Room, error) {
	if lessonStr := r.URL.Query().Get("lesson"); lessonStr != "" {
		lessonID, err := uuid.Parse(lessonStr)
		if err != nil {
			return chat.Room{}, err
		}
		return chat.ClassRoom(lessonID), nil
	}
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return chat.Room{}, err
		}
		return chat.DayRoom(day), nil
	}
	return chat.ClassRoomFor(h.resolver.State(), time.Now()), nil
}

// GetClassMessages fetches class-room history: the most recent messages,
// returned in chronological order and reply-enriched.
func (h *Handler) GetClassMessages(w http.ResponseWriter, r *http.Request) {
	room, err := h.classRoomFromQuery(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid lesson or date parameter")
		return
	}
	h.roomMessages(w, r, room)
}

// roomMessages serves the shared history shape for any room.
func (h *Handler) roomMessages(w http.ResponseWriter, r *http.Request, room chat.Room) {
	limit := chat.DefaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 200 {
		limit = 200
	}

	var before int64
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		if b, err := strconv.ParseInt(beforeStr, 10, 64); err == nil {
			before = b
		}
	}

	// +1 for the has_more check
	messages, err := h.redis.Range(r.Context(), room.LogKey(), limit+1, before)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	// Newest-first from the store; render ascending.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	messages = h.enricher.Enrich(r.Context(), room, messages)

	h.JSON(w, http.StatusOK, MessagesResponse{
		Room:     room.Channel(),
		Messages: messages,
		HasMore:  hasMore,
	})
}

// SendMessageRequest represents a message send request body.
type SendMessageRequest struct {
	Content  string             `json:"content"`
	Kind     models.MessageKind `json:"kind,omitempty"`
	MediaRef string             `json:"media_ref,omitempty"`
	ReplyTo  string             `json:"reply_to,omitempty"`
}

func (req *SendMessageRequest) toInput() chat.SendInput {
	return chat.SendInput{
		Content:  req.Content,
		Kind:     req.Kind,
		MediaRef: req.MediaRef,
		ReplyTo:  req.ReplyTo,
	}
}

// PostClassMessage sends a message to the class-wide room.
func (h *Handler) PostClassMessage(w http.ResponseWriter, r *http.Request) {
	sender := middleware.GetProfileFromContext(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.dispatcher.SendClass(r.Context(), sender, req.toInput())
	if err != nil {
		metrics.SendsRejected.WithLabelValues(rejectReason(err)).Inc()
		h.DispatchError(w, err)
		return
	}

	metrics.MessagesSent.WithLabelValues(string(chat.RoomClass)).Inc()
	h.JSON(w, http.StatusCreated, msg)
}

// EditMessageRequest represents an edit request body.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// EditClassMessage edits a message in the currently resolved class room.
func (h *Handler) EditClassMessage(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetProfileFromContext(r.Context())

	room, err := h.classRoomFromQuery(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid lesson or date parameter")
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.dispatcher.EditMessage(r.Context(), room, actor, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		h.DispatchError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, msg)
}

// DeleteClassMessage removes a message from the class room.
func (h *Handler) DeleteClassMessage(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetProfileFromContext(r.Context())

	room, err := h.classRoomFromQuery(r)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid lesson or date parameter")
		return
	}

	if err := h.dispatcher.DeleteMessage(r.Context(), room, actor, chi.URLParam(r, "id")); err != nil {
		h.DispatchError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
