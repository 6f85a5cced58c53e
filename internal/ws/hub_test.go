package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/models"
)

// fakeSub delivers published events for one channel.
type fakeSub struct {
	events chan chat.Event
	once   sync.Once
}

func (s *fakeSub) Events() <-chan chat.Event { return s.events }

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

// fakeFeed routes publishes to per-channel subscriptions.
type fakeFeed struct {
	mu   sync.Mutex
	subs map[string][]*fakeSub
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[string][]*fakeSub)}
}

func (f *fakeFeed) Publish(ctx context.Context, channel string, ev chat.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs[channel] {
		s.events <- ev
	}
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, channel string) (chat.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSub{events: make(chan chat.Event, 16)}
	f.subs[channel] = append(f.subs[channel], s)
	return s, nil
}

func (f *fakeFeed) subCount(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[channel])
}

// fakeMessages holds messages keyed by (log key, id). Only the lookups the
// hub's enrichment path uses are meaningful.
type fakeMessages struct {
	mu   sync.Mutex
	logs map[string]map[string]models.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{logs: make(map[string]map[string]models.Message)}
}

func (s *fakeMessages) seed(logKey string, m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logs[logKey] == nil {
		s.logs[logKey] = make(map[string]models.Message)
	}
	s.logs[logKey][m.ID] = m
}

func (s *fakeMessages) Append(ctx context.Context, logKey string, m *models.Message) error {
	s.seed(logKey, *m)
	return nil
}

func (s *fakeMessages) Range(ctx context.Context, logKey string, limit int, before int64) ([]models.Message, error) {
	return nil, nil
}

func (s *fakeMessages) ByID(ctx context.Context, logKey, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.logs[logKey][id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (s *fakeMessages) ByIDs(ctx context.Context, logKey string, ids []string) (map[string]models.Message, error) {
	out := make(map[string]models.Message)
	for _, id := range ids {
		if m, err := s.ByID(ctx, logKey, id); err == nil && m != nil {
			out[id] = *m
		}
	}
	return out, nil
}

func (s *fakeMessages) Update(ctx context.Context, logKey string, m *models.Message) error {
	s.seed(logKey, *m)
	return nil
}

func (s *fakeMessages) Delete(ctx context.Context, logKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs[logKey], id)
	return nil
}

func newTestClient(h *Hub) *Client {
	return &Client{
		hub:       h,
		send:      make(chan []byte, 16),
		profileID: uuid.New(),
		rooms:     make(map[string]bool),
	}
}

func recvFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case payload := <-c.send:
		var f Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
	return Frame{}
}

func TestLiveReplyInsertCarriesQuote(t *testing.T) {
	feed := newFakeFeed()
	store := newFakeMessages()
	hub := NewHub(feed, nil, chat.NewEnricher(store), zerolog.Nop())

	room := chat.GroupRoom(uuid.New())
	parent := models.Message{
		ID:        "01HPARENT0000000000000000X",
		RoomKey:   room.LogKey(),
		AuthorID:  uuid.NewString(),
		Content:   "does anyone have the notes?",
		Kind:      models.MessageText,
		Timestamp: 1000,
	}
	store.seed(room.LogKey(), parent)

	c := newTestClient(hub)
	hub.register(c)
	defer hub.unregister(c)
	if err := hub.join(c, room.LogKey()); err != nil {
		t.Fatalf("join: %v", err)
	}

	reply := models.Message{
		ID:        "01HREPLY00000000000000000X",
		RoomKey:   room.LogKey(),
		AuthorID:  uuid.NewString(),
		Content:   "yes, sending them now",
		Kind:      models.MessageText,
		ReplyTo:   parent.ID,
		Timestamp: 2000,
	}
	if err := feed.Publish(context.Background(), room.Channel(), chat.Event{Op: chat.OpInsert, Message: reply}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	f := recvFrame(t, c)
	if f.Type != "event" || f.Event == nil {
		t.Fatalf("got frame type %q, want event", f.Type)
	}
	if f.Event.Message.Reply == nil {
		t.Fatal("reply insert delivered without its quote")
	}
	if f.Event.Message.Reply.ID != parent.ID {
		t.Errorf("quote ID = %q, want %q", f.Event.Message.Reply.ID, parent.ID)
	}
	if f.Event.Message.Reply.Content != parent.Content {
		t.Errorf("quote content = %q, want %q", f.Event.Message.Reply.Content, parent.Content)
	}
}

func TestLiveInsertMissingTargetStillDelivered(t *testing.T) {
	feed := newFakeFeed()
	hub := NewHub(feed, nil, chat.NewEnricher(newFakeMessages()), zerolog.Nop())

	room := chat.GroupRoom(uuid.New())
	c := newTestClient(hub)
	hub.register(c)
	defer hub.unregister(c)
	if err := hub.join(c, room.LogKey()); err != nil {
		t.Fatalf("join: %v", err)
	}

	orphan := models.Message{
		ID:        "01HORPHAN0000000000000000X",
		RoomKey:   room.LogKey(),
		AuthorID:  uuid.NewString(),
		Content:   "replying to a deleted message",
		Kind:      models.MessageText,
		ReplyTo:   "01HGONE000000000000000000X",
		Timestamp: 3000,
	}
	feed.Publish(context.Background(), room.Channel(), chat.Event{Op: chat.OpInsert, Message: orphan})

	f := recvFrame(t, c)
	if f.Event == nil || f.Event.Message.ID != orphan.ID {
		t.Fatal("orphaned reply was not delivered")
	}
	if f.Event.Message.Reply != nil {
		t.Error("missing target produced a quote")
	}
	if f.Event.Message.ReplyTo != orphan.ReplyTo {
		t.Error("reply link was dropped")
	}
}

func TestLastLeaveReleasesSubscription(t *testing.T) {
	feed := newFakeFeed()
	hub := NewHub(feed, nil, chat.NewEnricher(newFakeMessages()), zerolog.Nop())

	room := chat.GroupRoom(uuid.New())
	a := newTestClient(hub)
	b := newTestClient(hub)
	hub.register(a)
	hub.register(b)

	if err := hub.join(a, room.LogKey()); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if err := hub.join(b, room.LogKey()); err != nil {
		t.Fatalf("join b: %v", err)
	}
	if got := feed.subCount(room.Channel()); got != 1 {
		t.Fatalf("subscriptions = %d, want 1 shared", got)
	}

	hub.leave(a, room.LogKey())
	hub.mu.Lock()
	_, stillHeld := hub.rooms[room.LogKey()]
	hub.mu.Unlock()
	if !stillHeld {
		t.Fatal("subscription released while a client is still joined")
	}

	hub.leave(b, room.LogKey())
	hub.mu.Lock()
	_, stillHeld = hub.rooms[room.LogKey()]
	hub.mu.Unlock()
	if stillHeld {
		t.Fatal("subscription held after the last client left")
	}
}

func TestDirectRoomJoinRestricted(t *testing.T) {
	feed := newFakeFeed()
	hub := NewHub(feed, nil, chat.NewEnricher(newFakeMessages()), zerolog.Nop())

	a, b := uuid.New(), uuid.New()
	room := chat.DirectRoom(a, b)

	member := newTestClient(hub)
	member.profileID = a
	hub.register(member)
	if err := hub.join(member, room.LogKey()); err != nil {
		t.Fatalf("participant join: %v", err)
	}

	outsider := newTestClient(hub)
	hub.register(outsider)
	if err := hub.join(outsider, room.LogKey()); err == nil {
		t.Fatal("outsider joined a direct room")
	}

	staff := newTestClient(hub)
	staff.caps = chat.Capabilities{CanViewAllDMs: true}
	hub.register(staff)
	if err := hub.join(staff, room.LogKey()); err != nil {
		t.Fatalf("oversight join: %v", err)
	}
}
