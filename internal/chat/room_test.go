package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/models"
)

func TestClassRoomKey(t *testing.T) {
	id := uuid.MustParse("0b7f3a2e-1111-4f6e-9a3c-222233334444")
	room := ClassRoom(id)

	want := "chat:class:" + id.String()
	if room.LogKey() != want {
		t.Errorf("LogKey() = %q, want %q", room.LogKey(), want)
	}
	if room.Channel() != room.LogKey() {
		t.Errorf("Channel() = %q, want same as LogKey()", room.Channel())
	}
}

func TestDayRoomKeyIsUTC(t *testing.T) {
	// 23:30 in UTC+5 is the previous day in UTC
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2026, 3, 10, 1, 30, 0, 0, loc)

	room := DayRoom(local)
	if room.LogKey() != "chat:class:day:2026-03-09" {
		t.Errorf("LogKey() = %q, want chat:class:day:2026-03-09", room.LogKey())
	}
}

func TestDirectRoomPairNormalization(t *testing.T) {
	a := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	b := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")

	if DirectRoom(a, b) != DirectRoom(b, a) {
		t.Errorf("DirectRoom(a,b) = %v, DirectRoom(b,a) = %v, want equal", DirectRoom(a, b), DirectRoom(b, a))
	}
	want := "chat:direct:" + a.String() + ":" + b.String()
	if got := DirectRoom(b, a).LogKey(); got != want {
		t.Errorf("LogKey() = %q, want lower ID first: %q", got, want)
	}
}

func TestRoomContains(t *testing.T) {
	room := GroupRoom(uuid.New())
	other := GroupRoom(uuid.New())

	msg := &models.Message{ID: "01A", RoomKey: room.LogKey()}
	if !room.Contains(msg) {
		t.Error("Contains() = false for the message's own room")
	}
	if other.Contains(msg) {
		t.Error("Contains() = true for a different room")
	}
}

func TestParseRoomKeyRoundTrip(t *testing.T) {
	rooms := []Room{
		ClassRoom(uuid.New()),
		DayRoom(time.Now()),
		DirectRoom(uuid.New(), uuid.New()),
		GroupRoom(uuid.New()),
	}
	for _, want := range rooms {
		got, ok := ParseRoomKey(want.LogKey())
		if !ok {
			t.Errorf("ParseRoomKey(%q) not recognized", want.LogKey())
			continue
		}
		if got != want {
			t.Errorf("ParseRoomKey(%q) = %+v, want %+v", want.LogKey(), got, want)
		}
	}
}

func TestParseRoomKeyRejectsControlChannels(t *testing.T) {
	for _, key := range []string{LessonControlChannel, LockControlChannel, "chat:bogus:x", "chat:class", ""} {
		if _, ok := ParseRoomKey(key); ok {
			t.Errorf("ParseRoomKey(%q) accepted", key)
		}
	}
}
