package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/models"
)

// GetChatLock returns the current global chat lock setting.
func (h *Handler) GetChatLock(w http.ResponseWriter, r *http.Request) {
	setting, err := h.db.ChatLock(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to read chat lock")
		return
	}
	if setting == nil {
		setting = &models.ChatLockSetting{}
	}
	h.JSON(w, http.StatusOK, setting)
}

// LockRequest represents a lock/unlock request body.
type LockRequest struct {
	Locked bool `json:"locked"`
}

// SetChatLock toggles the platform-wide chat lock. Staff only.
func (h *Handler) SetChatLock(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetProfileFromContext(r.Context())

	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.dispatcher.SetGlobalLock(r.Context(), actor, req.Locked); err != nil {
		h.DispatchError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]bool{"locked": req.Locked})
}

// UnlockRequest represents a per-student unlock override request body.
type UnlockRequest struct {
	Unlocked bool `json:"unlocked"`
}

// SetStudentUnlock grants or revokes a student's override of the global chat
// lock. Staff only.
func (h *Handler) SetStudentUnlock(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetProfileFromContext(r.Context())

	studentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid profile ID")
		return
	}

	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.dispatcher.SetStudentUnlock(r.Context(), actor, studentID, req.Unlocked); err != nil {
		h.DispatchError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]bool{"unlocked": req.Unlocked})
}
