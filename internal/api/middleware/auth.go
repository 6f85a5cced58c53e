package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/models"
	"github.com/studyhall-app/studyhall/internal/store"
)

type contextKey string

const (
	profileContextKey      contextKey = "profile"
	capabilitiesContextKey contextKey = "capabilities"
)

// AuthMiddleware verifies bearer tokens and loads the caller's profile.
type AuthMiddleware struct {
	db     store.DataStore
	secret []byte
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(db store.DataStore, secret []byte) *AuthMiddleware {
	return &AuthMiddleware{db: db, secret: secret}
}

// IssueToken signs a token for a profile, valid for the given duration.
func (m *AuthMiddleware) IssueToken(profileID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   profileID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// RequireAuth verifies the Authorization header and attaches the profile and
// its capability set to the request context. Capabilities are resolved here,
// once per request, so handlers never compare role strings.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			jsonError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		profileID, err := uuid.Parse(claims.Subject)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid token subject")
			return
		}

		profile, err := m.db.Profile(r.Context(), profileID)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "database error")
			return
		}
		if profile == nil {
			jsonError(w, http.StatusUnauthorized, "profile not found")
			return
		}

		ctx := context.WithValue(r.Context(), profileContextKey, profile)
		ctx = context.WithValue(ctx, capabilitiesContextKey, chat.ResolveCapabilities(profile.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireStaff rejects callers whose capability set lacks moderation rights.
// Must be nested inside RequireAuth.
func (m *AuthMiddleware) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetCapabilitiesFromContext(r.Context()).CanModerate {
			jsonError(w, http.StatusForbidden, "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetProfileFromContext returns the authenticated profile, or nil.
func GetProfileFromContext(ctx context.Context) *models.Profile {
	profile, _ := ctx.Value(profileContextKey).(*models.Profile)
	return profile
}

// GetCapabilitiesFromContext returns the caller's capability set.
func GetCapabilitiesFromContext(ctx context.Context) chat.Capabilities {
	caps, _ := ctx.Value(capabilitiesContextKey).(chat.Capabilities)
	return caps
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
