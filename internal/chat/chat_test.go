package chat

// In-memory fakes for the backbone interfaces. They mirror the real stores'
// contracts: logs ordered by (timestamp, id), lookups returning (nil, nil)
// on miss, and channel-scoped pub/sub delivery.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type memMessageStore struct {
	mu      sync.Mutex
	logs    map[string][]models.Message
	nextSeq int
	rangeN  int // Range call count
	byIDsN  int // ByIDs call count
	failAll bool
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{logs: make(map[string][]models.Message)}
}

func (s *memMessageStore) Append(ctx context.Context, logKey string, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return fmt.Errorf("store down")
	}
	s.nextSeq++
	if m.ID == "" {
		m.ID = fmt.Sprintf("%08d", s.nextSeq)
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	m.RoomKey = logKey
	stored := *m
	stored.Reply = nil
	s.logs[logKey] = append(s.logs[logKey], stored)
	return nil
}

// seed places a message directly in a log, bypassing ID/timestamp assignment.
func (s *memMessageStore) seed(logKey string, m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.RoomKey = logKey
	m.Reply = nil
	s.logs[logKey] = append(s.logs[logKey], m)
}

func (s *memMessageStore) Range(ctx context.Context, logKey string, limit int, before int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("store down")
	}
	s.rangeN++

	log := s.logs[logKey]
	sorted := make([]models.Message, len(log))
	copy(sorted, log)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Before(&sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	// newest first, exclusive cursor
	var out []models.Message
	for i := len(sorted) - 1; i >= 0 && len(out) < limit; i-- {
		if before > 0 && sorted[i].Timestamp >= before {
			continue
		}
		out = append(out, sorted[i])
	}
	return out, nil
}

func (s *memMessageStore) ByID(ctx context.Context, logKey, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("store down")
	}
	for _, m := range s.logs[logKey] {
		if m.ID == id {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memMessageStore) ByIDs(ctx context.Context, logKey string, ids []string) (map[string]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("store down")
	}
	s.byIDsN++
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]models.Message)
	for _, m := range s.logs[logKey] {
		if want[m.ID] {
			out[m.ID] = m
		}
	}
	return out, nil
}

func (s *memMessageStore) Update(ctx context.Context, logKey string, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[logKey]
	for i := range log {
		if log[i].ID == m.ID {
			updated := *m
			updated.Timestamp = log[i].Timestamp // position survives edits
			updated.Reply = nil
			log[i] = updated
			return nil
		}
	}
	return fmt.Errorf("message %s not found", m.ID)
}

func (s *memMessageStore) Delete(ctx context.Context, logKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[logKey]
	for i := range log {
		if log[i].ID == id {
			s.logs[logKey] = append(log[:i], log[i+1:]...)
			return nil
		}
	}
	return nil
}

type memSub struct {
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

func (s *memSub) Events() <-chan Event { return s.ch }

func (s *memSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

type memFeed struct {
	mu   sync.Mutex
	subs map[string][]*memSub
}

func newMemFeed() *memFeed {
	return &memFeed{subs: make(map[string][]*memSub)}
}

func (f *memFeed) Publish(ctx context.Context, channel string, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs[channel] {
		sub.mu.Lock()
		if !sub.closed {
			sub.ch <- ev
		}
		sub.mu.Unlock()
	}
	return nil
}

func (f *memFeed) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &memSub{ch: make(chan Event, 64)}
	f.subs[channel] = append(f.subs[channel], sub)
	return sub, nil
}

type memLessonStore struct {
	mu      sync.Mutex
	lessons map[uuid.UUID]*models.Lesson
	failAll bool
}

func newMemLessonStore() *memLessonStore {
	return &memLessonStore{lessons: make(map[uuid.UUID]*models.Lesson)}
}

func (s *memLessonStore) put(l models.Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := l
	s.lessons[l.ID] = &cp
}

func (s *memLessonStore) Lesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("db down")
	}
	if l, ok := s.lessons[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (s *memLessonStore) LatestLive(ctx context.Context) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("db down")
	}
	var latest *models.Lesson
	for _, l := range s.lessons {
		if l.Status != models.LessonLive {
			continue
		}
		if latest == nil || (l.StartedAt != nil && latest.StartedAt != nil && l.StartedAt.After(*latest.StartedAt)) {
			latest = l
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memLessonStore) NextScheduled(ctx context.Context) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("db down")
	}
	var next *models.Lesson
	for _, l := range s.lessons {
		if l.Status != models.LessonScheduled {
			continue
		}
		if next == nil || l.ScheduledAt.Before(next.ScheduledAt) {
			next = l
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (s *memLessonStore) CreateLesson(ctx context.Context, topic string, scheduledAt time.Time, createdBy uuid.UUID) (*models.Lesson, error) {
	l := models.Lesson{
		ID:          uuid.New(),
		Topic:       topic,
		Status:      models.LessonScheduled,
		ScheduledAt: scheduledAt,
		CreatedBy:   &createdBy,
		CreatedAt:   time.Now(),
	}
	s.put(l)
	return &l, nil
}

func (s *memLessonStore) MarkLessonLive(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	if !ok || l.Status != models.LessonScheduled {
		return nil, nil
	}
	now := time.Now()
	l.Status = models.LessonLive
	l.StartedAt = &now
	cp := *l
	return &cp, nil
}

func (s *memLessonStore) MarkLessonCompleted(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	if !ok || l.Status != models.LessonLive {
		return nil, nil
	}
	now := time.Now()
	l.Status = models.LessonCompleted
	l.EndedAt = &now
	cp := *l
	return &cp, nil
}

func (s *memLessonStore) DeleteLesson(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	if !ok || l.Status == models.LessonCompleted {
		return false, nil
	}
	delete(s.lessons, id)
	return true, nil
}

type memSettingsStore struct {
	mu      sync.Mutex
	setting *models.ChatLockSetting
	failAll bool
}

func (s *memSettingsStore) ChatLock(ctx context.Context) (*models.ChatLockSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("db down")
	}
	if s.setting == nil {
		return nil, nil
	}
	cp := *s.setting
	return &cp, nil
}

func (s *memSettingsStore) SetChatLock(ctx context.Context, locked bool, updatedBy uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setting = &models.ChatLockSetting{IsLocked: locked, UpdatedBy: &updatedBy, UpdatedAt: time.Now()}
	return nil
}

type memProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*models.Profile
	reads    map[string]time.Time // userID|roomKey -> last read
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{
		profiles: make(map[uuid.UUID]*models.Profile),
		reads:    make(map[string]time.Time),
	}
}

func (s *memProfileStore) put(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.profiles[p.ID] = &cp
}

func (s *memProfileStore) Profile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *memProfileStore) SetHandRaised(ctx context.Context, id uuid.UUID, raised bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("profile not found")
	}
	p.IsHandRaised = raised
	return nil
}

func (s *memProfileStore) SetUnlocked(ctx context.Context, id uuid.UUID, unlocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("profile not found")
	}
	p.IsUnlocked = unlocked
	return nil
}

func (s *memProfileStore) TouchLastRead(ctx context.Context, userID uuid.UUID, roomKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[userID.String()+"|"+roomKey] = at
	return nil
}

type memGroupStore struct {
	mu         sync.Mutex
	groups     map[uuid.UUID]*models.StudyGroup
	createErrs int // fail this many CreateGroup calls
	onCreate   func()
}

func newMemGroupStore() *memGroupStore {
	return &memGroupStore{groups: make(map[uuid.UUID]*models.StudyGroup)}
}

func (s *memGroupStore) Group(ctx context.Context, id uuid.UUID) (*models.StudyGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

func (s *memGroupStore) GroupByTypeName(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Type == t && g.Name == name {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memGroupStore) CreateGroup(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error) {
	s.mu.Lock()
	if s.onCreate != nil {
		s.onCreate()
	}
	if s.createErrs > 0 {
		s.createErrs--
		s.mu.Unlock()
		return nil, fmt.Errorf("duplicate key value violates unique constraint")
	}
	defer s.mu.Unlock()
	g := &models.StudyGroup{ID: uuid.New(), Type: t, Name: name, CreatedAt: time.Now()}
	s.groups[g.ID] = g
	cp := *g
	return &cp, nil
}
