package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/metrics"
)

// dmPeer resolves the {userID} path parameter of a DM route.
func (h *Handler) dmPeer(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	peerID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return uuid.Nil, false
	}
	return peerID, true
}

// GetDirectMessages fetches the conversation between the caller and the peer.
func (h *Handler) GetDirectMessages(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetProfileFromContext(r.Context())
	peerID, ok := h.dmPeer(w, r)
	if !ok {
		return
	}
	h.roomMessages(w, r, chat.DirectRoom(caller.ID, peerID))
}

// PostDirectMessage sends a message to the peer's shared DM room.
func (h *Handler) PostDirectMessage(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetProfileFromContext(r.Context())
	peerID, ok := h.dmPeer(w, r)
	if !ok {
		return
	}
	if peerID == caller.ID {
		h.Error(w, http.StatusBadRequest, "cannot message yourself")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.dispatcher.SendDirect(r.Context(), caller, peerID, req.toInput())
	if err != nil {
		metrics.SendsRejected.WithLabelValues(rejectReason(err)).Inc()
		h.DispatchError(w, err)
		return
	}

	metrics.MessagesSent.WithLabelValues(string(chat.RoomDirect)).Inc()
	h.JSON(w, http.StatusCreated, msg)
}

// MarkDirectRead marks the peer's messages in the shared DM room as read.
func (h *Handler) MarkDirectRead(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetProfileFromContext(r.Context())
	peerID, ok := h.dmPeer(w, r)
	if !ok {
		return
	}
	if err := h.dispatcher.MarkDirectRead(r.Context(), caller, peerID); err != nil {
		h.DispatchError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]bool{"read": true})
}

// GetConversation lets staff with DM oversight read the conversation between
// two arbitrary users.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	caps := middleware.GetCapabilitiesFromContext(r.Context())
	if !caps.CanViewAllDMs {
		h.Error(w, http.StatusForbidden, "not permitted")
		return
	}

	a, err := uuid.Parse(chi.URLParam(r, "userA"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	b, err := uuid.Parse(chi.URLParam(r, "userB"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	h.roomMessages(w, r, chat.DirectRoom(a, b))
}
