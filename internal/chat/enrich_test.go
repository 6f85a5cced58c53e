package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/models"
)

func TestEnrichBatchUsesSingleLookup(t *testing.T) {
	store := newMemMessageStore()
	room := GroupRoom(uuid.New())

	store.seed(room.LogKey(), models.Message{ID: "01A", Timestamp: 100, Content: "target one"})
	store.seed(room.LogKey(), models.Message{ID: "01B", Timestamp: 200, Content: "target two"})

	msgs := []models.Message{
		{ID: "01C", Timestamp: 300, ReplyTo: "01A"},
		{ID: "01D", Timestamp: 400, ReplyTo: "01B"},
		{ID: "01E", Timestamp: 500, ReplyTo: "01A"}, // duplicate target
		{ID: "01F", Timestamp: 600},                 // no reply
	}

	e := NewEnricher(store)
	out := e.Enrich(context.Background(), room, msgs)

	if store.byIDsN != 1 {
		t.Errorf("ByIDs called %d times, want 1", store.byIDsN)
	}
	if out[0].Reply == nil || out[0].Reply.Content != "target one" {
		t.Errorf("first quote = %+v, want target one", out[0].Reply)
	}
	if out[1].Reply == nil || out[1].Reply.Content != "target two" {
		t.Errorf("second quote = %+v, want target two", out[1].Reply)
	}
	if out[2].Reply == nil || out[2].Reply.ID != "01A" {
		t.Error("duplicate target not resolved")
	}
	if out[3].Reply != nil {
		t.Error("non-reply message got a quote")
	}
}

func TestEnrichMissingTargetOmitted(t *testing.T) {
	store := newMemMessageStore()
	room := GroupRoom(uuid.New())

	msgs := []models.Message{{ID: "01C", Timestamp: 300, ReplyTo: "01GONE"}}

	e := NewEnricher(store)
	out := e.Enrich(context.Background(), room, msgs)

	if out[0].Reply != nil {
		t.Errorf("quote for a deleted target = %+v, want nil", out[0].Reply)
	}
	if out[0].ReplyTo != "01GONE" {
		t.Error("reply_to link must survive even when the target is gone")
	}
}

func TestEnrichQuotesOneLevelOnly(t *testing.T) {
	store := newMemMessageStore()
	room := GroupRoom(uuid.New())

	store.seed(room.LogKey(), models.Message{ID: "01A", Timestamp: 100, Content: "root"})
	store.seed(room.LogKey(), models.Message{ID: "01B", Timestamp: 200, Content: "mid", ReplyTo: "01A"})

	msgs := []models.Message{{ID: "01C", Timestamp: 300, ReplyTo: "01B"}}

	e := NewEnricher(store)
	out := e.Enrich(context.Background(), room, msgs)

	if out[0].Reply == nil || out[0].Reply.ID != "01B" {
		t.Fatalf("quote = %+v, want 01B", out[0].Reply)
	}
	if out[0].Reply.Reply != nil {
		t.Error("nested quote attached, want one level only")
	}
	if out[0].Reply.ReplyTo != "01A" {
		t.Error("quote's own reply_to link should remain")
	}
}

func TestEnrichOneOnLiveInsert(t *testing.T) {
	store := newMemMessageStore()
	room := GroupRoom(uuid.New())

	store.seed(room.LogKey(), models.Message{ID: "01A", Timestamp: 100, Content: "target"})

	m := models.Message{ID: "01B", Timestamp: 200, ReplyTo: "01A"}
	e := NewEnricher(store)
	e.EnrichOne(context.Background(), room, &m)

	if m.Reply == nil || m.Reply.ID != "01A" {
		t.Errorf("Reply = %+v, want 01A", m.Reply)
	}
}
