package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/models"
)

// RoomKind identifies one of the three chat surfaces.
type RoomKind string

const (
	RoomClass  RoomKind = "class"
	RoomDirect RoomKind = "direct"
	RoomGroup  RoomKind = "group"
)

// Room identifies a scoped, independently-subscribed message stream.
// The log key and channel name are derived deterministically from the kind
// and key, so re-subscription after a reconnect lands on the same channel.
type Room struct {
	Kind RoomKind
	Key  string
}

// ClassRoom returns the room for a lesson's class-wide chat.
func ClassRoom(lessonID uuid.UUID) Room {
	return Room{Kind: RoomClass, Key: lessonID.String()}
}

// DayRoom returns the unscoped class feed for a calendar day, used when no
// lesson is active.
func DayRoom(day time.Time) Room {
	return Room{Kind: RoomClass, Key: "day:" + day.UTC().Format("2006-01-02")}
}

// DirectRoom returns the room for the unordered user pair (a, b).
// The pair is normalized so both participants derive the same room.
func DirectRoom(a, b uuid.UUID) Room {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return Room{Kind: RoomDirect, Key: lo + ":" + hi}
}

// GroupRoom returns the room for a study group.
func GroupRoom(groupID uuid.UUID) Room {
	return Room{Kind: RoomGroup, Key: groupID.String()}
}

// LogKey returns the canonical storage key for the room's message log.
// Messages carry this key in their room_key field.
func (r Room) LogKey() string {
	return fmt.Sprintf("chat:%s:%s", r.Kind, r.Key)
}

// Channel returns the change-feed channel for the room. One room maps to
// exactly one channel.
func (r Room) Channel() string {
	return r.LogKey()
}

// ParseRoomKey parses a log key of the form "chat:<kind>:<key>" back into a
// Room. Control channels and malformed keys report false.
func ParseRoomKey(key string) (Room, bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] != "chat" {
		return Room{}, false
	}
	switch kind := RoomKind(parts[1]); kind {
	case RoomClass, RoomDirect, RoomGroup:
		return Room{Kind: kind, Key: parts[2]}, true
	default:
		return Room{}, false
	}
}

// Contains reports whether a message belongs to this room. Events arriving on
// a shared or stale subscription for another room are discarded by this check.
func (r Room) Contains(m *models.Message) bool {
	return m.RoomKey == r.LogKey()
}
