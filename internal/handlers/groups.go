package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/metrics"
	"github.com/studyhall-app/studyhall/internal/models"
)

// EnsureGroupRequest represents a study group join/create request.
type EnsureGroupRequest struct {
	GroupType models.GroupType `json:"group_type"`
	Name      string           `json:"name"`
}

// EnsureGroup returns the study group for (type, name), creating it on first
// use. Repeated calls with the same identity converge on the same group.
func (h *Handler) EnsureGroup(w http.ResponseWriter, r *http.Request) {
	var req EnsureGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Name = sanitizeName(req.Name)
	if !req.GroupType.Valid() || req.Name == "" {
		h.Error(w, http.StatusBadRequest, "group_type must be school or course and name is required")
		return
	}

	existing, err := h.db.GroupByTypeName(r.Context(), req.GroupType, req.Name)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to look up group")
		return
	}

	group, err := h.dispatcher.EnsureStudyGroup(r.Context(), req.GroupType, req.Name)
	if err != nil {
		h.DispatchError(w, err)
		return
	}

	status := http.StatusOK
	if existing == nil {
		status = http.StatusCreated
		metrics.GroupsCreated.Inc()
	}
	h.JSON(w, status, group)
}

// ListGroups lists all study groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.db.ListGroups(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []models.StudyGroup{}
	}
	h.JSON(w, http.StatusOK, groups)
}

// groupFromPath resolves the {id} path parameter to an existing group.
func (h *Handler) groupFromPath(w http.ResponseWriter, r *http.Request) (*models.StudyGroup, bool) {
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid group ID")
		return nil, false
	}
	group, err := h.db.Group(r.Context(), groupID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to look up group")
		return nil, false
	}
	if group == nil {
		h.Error(w, http.StatusNotFound, "group not found")
		return nil, false
	}
	return group, true
}

// GetGroupMessages fetches a study group's chat history.
func (h *Handler) GetGroupMessages(w http.ResponseWriter, r *http.Request) {
	group, ok := h.groupFromPath(w, r)
	if !ok {
		return
	}
	h.roomMessages(w, r, chat.GroupRoom(group.ID))
}

// PostGroupMessage sends a message to a study group's room.
func (h *Handler) PostGroupMessage(w http.ResponseWriter, r *http.Request) {
	sender := middleware.GetProfileFromContext(r.Context())
	group, ok := h.groupFromPath(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.dispatcher.SendGroup(r.Context(), sender, group.ID, req.toInput())
	if err != nil {
		metrics.SendsRejected.WithLabelValues(rejectReason(err)).Inc()
		h.DispatchError(w, err)
		return
	}

	metrics.MessagesSent.WithLabelValues(string(chat.RoomGroup)).Inc()
	h.JSON(w, http.StatusCreated, msg)
}
