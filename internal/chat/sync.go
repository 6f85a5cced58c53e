package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/models"
)

// DefaultHistoryLimit bounds the initial fetch for the highest-traffic
// unscoped room while still rendering chronologically.
const DefaultHistoryLimit = 50

// Syncer maintains an ordered in-memory log for one open room: it fetches
// history, subscribes to the room's change feed, and merges live events.
// A Syncer holds at most one open room; opening a new room closes the
// previous subscription first so events are never delivered twice.
type Syncer struct {
	store  MessageStore
	feed   Feed
	enrich *Enricher
	logger zerolog.Logger

	// OnChange, if set before Open, is invoked with a snapshot of the log
	// after every applied event.
	OnChange func([]models.Message)

	mu     sync.Mutex
	room   Room
	open   bool
	log    []models.Message
	sub    Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncer creates a synchronizer over the given store and feed.
func NewSyncer(store MessageStore, feed Feed, enrich *Enricher, logger zerolog.Logger) *Syncer {
	return &Syncer{
		store:  store,
		feed:   feed,
		enrich: enrich,
		logger: logger.With().Str("component", "syncer").Logger(),
	}
}

// Open loads the room's history (most recent `limit`, returned in ascending
// order, reply-enriched) and starts applying live events. Any previously open
// room is closed first.
func (s *Syncer) Open(ctx context.Context, room Room, limit int) ([]models.Message, error) {
	s.Close()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	history, err := s.store.Range(ctx, room.LogKey(), limit, 0)
	if err != nil {
		return nil, err
	}
	// Range returns newest first; the log is kept ascending.
	reverse(history)
	history = s.enrich.Enrich(ctx, room, history)

	sub, err := s.feed.Subscribe(ctx, room.Channel())
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.room = room
	s.open = true
	s.log = history
	s.sub = sub
	s.cancel = cancel
	s.done = done
	snapshot := snapshotOf(s.log)
	s.mu.Unlock()

	go s.loop(loopCtx, room, sub, done)
	return snapshot, nil
}

// Close stops the live subscription and clears the log. Safe to call when
// nothing is open.
func (s *Syncer) Close() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	sub, cancel, done := s.sub, s.cancel, s.done
	s.sub = nil
	s.cancel = nil
	s.log = nil
	s.mu.Unlock()

	cancel()
	_ = sub.Close()
	<-done
}

// Messages returns an ordered snapshot of the open room's log.
func (s *Syncer) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.log)
}

func (s *Syncer) loop(ctx context.Context, room Room, sub Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			s.apply(ctx, room, ev)
		}
	}
}

// apply merges one change event into the log.
//
// Inserts append at the tail; deliveries are assumed to arrive in commit
// order, so the log is not re-sorted per event. A late event is re-seated at
// its boundary position only. Updates replace the matching ID in place,
// preserving position (edits and read-state flips). Deletes remove the ID.
// Events for other rooms, and update/delete events for unknown IDs, are
// discarded.
func (s *Syncer) apply(ctx context.Context, room Room, ev Event) {
	if !room.Contains(&ev.Message) {
		return
	}

	msg := ev.Message
	if ev.Op == OpInsert {
		s.enrich.EnrichOne(ctx, room, &msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.room != room {
		return
	}

	switch ev.Op {
	case OpInsert:
		s.insert(msg)
	case OpUpdate:
		for i := range s.log {
			if s.log[i].ID == msg.ID {
				msg.Reply = s.log[i].Reply // quote survives content edits
				s.log[i] = msg
				break
			}
		}
	case OpDelete:
		for i := range s.log {
			if s.log[i].ID == msg.ID {
				s.log = append(s.log[:i], s.log[i+1:]...)
				break
			}
		}
	default:
		return
	}

	if s.OnChange != nil {
		s.OnChange(snapshotOf(s.log))
	}
}

// insert places msg at the tail, or walks back from the tail to seat an
// out-of-order delivery without re-sorting the whole log.
func (s *Syncer) insert(msg models.Message) {
	n := len(s.log)
	if n == 0 || s.log[n-1].Before(&msg) {
		s.log = append(s.log, msg)
		return
	}
	i := n
	for i > 0 && msg.Before(&s.log[i-1]) {
		i--
	}
	s.log = append(s.log, models.Message{})
	copy(s.log[i+1:], s.log[i:])
	s.log[i] = msg
}

func snapshotOf(log []models.Message) []models.Message {
	out := make([]models.Message, len(log))
	copy(out, log)
	return out
}

func reverse(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
