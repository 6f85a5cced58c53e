package chat

import (
	"context"

	"github.com/studyhall-app/studyhall/internal/models"
)

// Enricher attaches denormalized reply-target data to messages for display.
// Enrichment is read-side only: the attached quote is never persisted, and a
// target that cannot be resolved (deleted, or from an inaccessible room) is
// silently omitted rather than failing the batch.
type Enricher struct {
	store MessageStore
}

// NewEnricher creates an enricher backed by the given message store.
func NewEnricher(store MessageStore) *Enricher {
	return &Enricher{store: store}
}

// Enrich resolves reply targets for a batch of messages with a single store
// lookup for all distinct targets, avoiding an N+1 fetch.
func (e *Enricher) Enrich(ctx context.Context, room Room, msgs []models.Message) []models.Message {
	seen := make(map[string]bool)
	var ids []string
	for i := range msgs {
		if id := msgs[i].ReplyTo; id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return msgs
	}

	targets, err := e.store.ByIDs(ctx, room.LogKey(), ids)
	if err != nil {
		// Degrade: the batch renders without quotes.
		return msgs
	}

	for i := range msgs {
		if t, ok := targets[msgs[i].ReplyTo]; ok {
			msgs[i].Reply = quoteOf(t)
		}
	}
	return msgs
}

// EnrichOne resolves the reply target for a single message, used on live
// inserts and updates.
func (e *Enricher) EnrichOne(ctx context.Context, room Room, m *models.Message) {
	if m.ReplyTo == "" {
		return
	}
	target, err := e.store.ByID(ctx, room.LogKey(), m.ReplyTo)
	if err != nil || target == nil {
		return
	}
	m.Reply = quoteOf(*target)
}

// quoteOf returns the displayable quote for a reply target. Only one level of
// quoting is ever shown: a target that is itself a reply is not expanded.
func quoteOf(t models.Message) *models.Message {
	t.Reply = nil
	return &t
}
