package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/models"
)

// Me returns the caller's own profile together with resolved capabilities.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	profile := middleware.GetProfileFromContext(r.Context())
	caps := middleware.GetCapabilitiesFromContext(r.Context())
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"profile":      profile,
		"capabilities": caps,
	})
}

// HandRequest represents a hand raise/lower request.
type HandRequest struct {
	Raised bool `json:"raised"`
}

// SetHand raises or lowers the caller's hand.
func (h *Handler) SetHand(w http.ResponseWriter, r *http.Request) {
	profile := middleware.GetProfileFromContext(r.Context())

	var req HandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.dispatcher.SetHandRaised(r.Context(), profile, req.Raised); err != nil {
		h.DispatchError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]bool{"raised": req.Raised})
}

// RaisedHands lists students with their hand currently raised. Staff only.
func (h *Handler) RaisedHands(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.db.RaisedHands(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list raised hands")
		return
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	h.JSON(w, http.StatusOK, profiles)
}
