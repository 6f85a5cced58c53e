package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/studyhall-app/studyhall/internal/metrics"
	"github.com/studyhall-app/studyhall/internal/models"
)

const tokenTTL = 24 * time.Hour

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	School   string `json:"school,omitempty"`
	Course   string `json:"course,omitempty"`
}

// AuthResponse represents a successful register/login response.
type AuthResponse struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

// Register handles student registration. Staff accounts are provisioned out
// of band.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < 8 {
		h.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	fullName := sanitizeName(req.FullName)
	if fullName == "" {
		h.Error(w, http.StatusBadRequest, "full_name is required")
		return
	}

	existing, err := h.db.ProfileByEmail(r.Context(), req.Email)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		h.Error(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	profile, err := h.db.CreateProfile(r.Context(), req.Email, string(hash), fullName,
		models.RoleStudent, sanitizeName(req.School), sanitizeName(req.Course))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create profile")
		return
	}

	token, err := h.tokens.IssueToken(profile.ID, tokenTTL)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	metrics.ProfilesRegistered.Inc()

	h.JSON(w, http.StatusCreated, AuthResponse{Token: token, Profile: profile})
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles email/password login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	profile, err := h.db.ProfileByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if profile == nil {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.IssueToken(profile.ID, tokenTTL)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.JSON(w, http.StatusOK, AuthResponse{Token: token, Profile: profile})
}
