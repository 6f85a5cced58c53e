package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/chat"
)

// Frame is the envelope for every outbound WebSocket payload.
type Frame struct {
	Type  string      `json:"type"` // "event", "classroom_state", "error"
	Room  string      `json:"room,omitempty"`
	Event *chat.Event `json:"event,omitempty"`
	State interface{} `json:"state,omitempty"`
	Error string      `json:"error,omitempty"`
}

// roomSub fans one feed subscription out to every client joined to the room.
type roomSub struct {
	ctx     context.Context
	sub     chat.Subscription
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Hub bridges the backbone change feed to WebSocket clients. A room channel
// is subscribed while at least one client is joined to it and released when
// the last client leaves.
type Hub struct {
	feed     chat.Feed
	resolver *chat.Resolver
	enricher *chat.Enricher
	logger   zerolog.Logger

	mu      sync.Mutex
	rooms   map[string]*roomSub
	clients map[*Client]bool
}

// NewHub creates a hub over the given feed and resolver.
func NewHub(feed chat.Feed, resolver *chat.Resolver, enricher *chat.Enricher, logger zerolog.Logger) *Hub {
	return &Hub{
		feed:     feed,
		resolver: resolver,
		enricher: enricher,
		logger:   logger.With().Str("component", "ws").Logger(),
		rooms:    make(map[string]*roomSub),
		clients:  make(map[*Client]bool),
	}
}

// Run broadcasts resolved classroom states to every connected client until
// ctx is cancelled. Room event fan-out runs independently per subscription.
func (h *Hub) Run(ctx context.Context) {
	states := h.resolver.Subscribe()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case st := <-states:
			h.broadcastState(st)
		}
	}
}

func (h *Hub) broadcastState(st chat.State) {
	payload, err := json.Marshal(Frame{Type: "classroom_state", State: st})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.enqueue(payload)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
}

// join subscribes the client to a room channel, starting the feed pump on
// first join. The subscription outlives the HTTP handshake, so it runs on its
// own context rather than the request's.
func (h *Hub) join(c *Client, room string) error {
	if !h.canJoin(c, room) {
		return chat.ErrForbidden
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[room]
	if !ok {
		subCtx, cancel := context.WithCancel(context.Background())
		sub, err := h.feed.Subscribe(subCtx, room)
		if err != nil {
			cancel()
			return err
		}
		rs = &roomSub{ctx: subCtx, sub: sub, clients: make(map[*Client]bool), cancel: cancel}
		h.rooms[room] = rs
		go h.pump(room, rs)
	}
	rs.clients[c] = true
	c.rooms[room] = true
	return nil
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	rs, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(rs.clients, c)
	if len(rs.clients) == 0 {
		rs.cancel()
		rs.sub.Close()
		delete(h.rooms, room)
	}
}

// pump forwards room events to every joined client. Reply inserts pick up
// their quote here so a live viewer can render it without a history re-fetch.
func (h *Hub) pump(room string, rs *roomSub) {
	for ev := range rs.sub.Events() {
		ev := ev
		if ev.Op == chat.OpInsert && ev.Message.ReplyTo != "" {
			if r, ok := chat.ParseRoomKey(room); ok {
				h.enricher.EnrichOne(rs.ctx, r, &ev.Message)
			}
		}
		payload, err := json.Marshal(Frame{Type: "event", Room: room, Event: &ev})
		if err != nil {
			continue
		}
		h.mu.Lock()
		for c := range rs.clients {
			c.enqueue(payload)
		}
		h.mu.Unlock()
	}
}

// canJoin checks room access: class and group rooms are open to everyone,
// direct rooms only to their two participants or staff with DM oversight.
func (h *Hub) canJoin(c *Client, room string) bool {
	parts := strings.Split(room, ":")
	if len(parts) < 3 || parts[0] != "chat" {
		return false
	}
	switch chat.RoomKind(parts[1]) {
	case chat.RoomClass, chat.RoomGroup:
		return true
	case chat.RoomDirect:
		if c.caps.CanViewAllDMs {
			return true
		}
		if len(parts) != 4 {
			return false
		}
		a, errA := uuid.Parse(parts[2])
		b, errB := uuid.Parse(parts[3])
		if errA != nil || errB != nil {
			return false
		}
		return c.profileID == a || c.profileID == b
	default:
		return false
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	for room, rs := range h.rooms {
		rs.cancel()
		rs.sub.Close()
		delete(h.rooms, room)
	}
}
