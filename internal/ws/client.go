package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the router; the handshake accepts any
		// origin that made it through.
		return true
	},
}

// Client is the middleman between one WebSocket connection and the hub.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	profileID uuid.UUID
	caps      chat.Capabilities
	rooms     map[string]bool
}

// clientCommand is the inbound control message shape.
type clientCommand struct {
	Action string `json:"action"` // "join" or "leave"
	Room   string `json:"room"`
}

// Serve upgrades the request and runs the connection's pumps. It returns once
// the handshake completes; the pumps run until the peer disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, profileID uuid.UUID, caps chat.Capabilities) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 64),
		profileID: profileID,
		caps:      caps,
		rooms:     make(map[string]bool),
	}
	h.register(c)
	metrics.WSConnections.Inc()

	go c.writePump()
	go c.readPump()
	return nil
}

// enqueue queues a payload without blocking; a backed-up client loses the
// frame and catches up from history on reconnect.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

// readPump consumes join/leave commands from the peer.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		metrics.WSConnections.Dec()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("unexpected close")
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Room == "" {
			c.sendError("invalid command")
			continue
		}

		switch cmd.Action {
		case "join":
			if err := c.hub.join(c, cmd.Room); err != nil {
				c.sendError("cannot join " + cmd.Room)
			}
		case "leave":
			c.hub.leave(c, cmd.Room)
		default:
			c.sendError("unknown action")
		}
	}
}

func (c *Client) sendError(msg string) {
	if payload, err := json.Marshal(Frame{Type: "error", Error: msg}); err == nil {
		c.enqueue(payload)
	}
}

// writePump pushes queued payloads and keepalive pings to the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
