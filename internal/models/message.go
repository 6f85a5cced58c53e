package models

// MessageKind identifies the payload type of a chat message.
type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageVoice MessageKind = "voice"
	MessagePoll  MessageKind = "poll"
)

// Placeholder returns the human-readable content used for non-text messages
// when the sender supplies no caption.
func (k MessageKind) Placeholder() string {
	switch k {
	case MessageImage:
		return "Image"
	case MessageVoice:
		return "Voice Note"
	case MessagePoll:
		return "Poll"
	default:
		return ""
	}
}

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageImage, MessageVoice, MessagePoll:
		return true
	}
	return false
}

// Message is a chat message in a class, direct or study-group room.
// Messages are stored as JSON in Redis sorted sets, scored by Timestamp.
type Message struct {
	ID        string      `json:"id"`       // ULID
	RoomKey   string      `json:"room_key"` // canonical room log key
	AuthorID  string      `json:"author_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	MediaRef  string      `json:"media_ref,omitempty"` // set iff Kind != text
	ReplyTo   string      `json:"reply_to,omitempty"`  // ID of a message in the same room
	IsRead    bool        `json:"is_read,omitempty"`   // direct rooms only
	IsEdited  bool        `json:"is_edited,omitempty"`
	Timestamp int64       `json:"ts"` // Unix ms, server-assigned

	// Reply is the denormalized reply target, attached on the read path only.
	// It is stripped before persistence.
	Reply *Message `json:"reply_message,omitempty"`
}

// Before reports whether m sorts before other in the room's total order
// (timestamp, then ID; ULIDs sort lexicographically).
func (m *Message) Before(other *Message) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	return m.ID < other.ID
}
