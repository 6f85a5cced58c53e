package handlers

import (
	"net/http"

	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/ws"
)

// WSHandler upgrades authenticated connections into the live event hub.
type WSHandler struct {
	hub *ws.Hub
}

// NewWSHandler creates the WebSocket upgrade handler.
func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Connect upgrades the request. The client then joins rooms over the socket.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	profile := middleware.GetProfileFromContext(r.Context())
	caps := middleware.GetCapabilitiesFromContext(r.Context())
	// Upgrade writes its own error response on failure.
	_ = h.hub.Serve(w, r, profile.ID, caps)
}
