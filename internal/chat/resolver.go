package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/models"
)

// Control channels carrying lesson and lock change notifications. The
// resolver listens on both; the poll loop below is the fallback when a push
// event is missed or a time-based transition happens with no write at all.
const (
	LessonControlChannel = "control:lessons"
	LockControlChannel   = "control:chatlock"
)

// State is the resolved classroom context: which lesson (if any) anchors the
// class-wide room, and whether sends are currently locked.
type State struct {
	ActiveLesson    *models.Lesson
	EffectivelyLive bool // scheduled lesson whose start time has passed
	Locked          bool
	ResolvedAt      time.Time
}

// Resolver determines the active lesson and lock state for class chat. It
// re-resolves on a fixed interval as well as on pushed control events; the
// interval poll is a correctness fallback, not redundant noise.
type Resolver struct {
	lessons  LessonStore
	settings SettingsStore
	feed     Feed
	logger   zerolog.Logger
	interval time.Duration

	mu    sync.RWMutex
	last  State
	ready bool
	subs  []chan State
}

// NewResolver creates a resolver polling at the given interval.
func NewResolver(lessons LessonStore, settings SettingsStore, feed Feed, logger zerolog.Logger, interval time.Duration) *Resolver {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Resolver{
		lessons:  lessons,
		settings: settings,
		feed:     feed,
		logger:   logger.With().Str("component", "resolver").Logger(),
		interval: interval,
	}
}

// Resolve computes the current classroom state. It is a pure read: a
// scheduled lesson that is due is reported as effectively live without
// mutating its stored status.
func (r *Resolver) Resolve(ctx context.Context, now time.Time) (State, error) {
	st := State{ResolvedAt: now}

	lesson, err := r.lessons.LatestLive(ctx)
	if err != nil {
		return State{}, err
	}
	if lesson == nil {
		lesson, err = r.lessons.NextScheduled(ctx)
		if err != nil {
			return State{}, err
		}
	}
	st.ActiveLesson = lesson

	if lesson != nil && lesson.Due(now) {
		st.EffectivelyLive = true
	}

	st.Locked, err = r.lockState(ctx, st)
	if err != nil {
		return State{}, err
	}
	return st, nil
}

// ResolveArchive resolves a specific past lesson. Archive views are always
// locked for writes.
func (r *Resolver) ResolveArchive(ctx context.Context, lessonID uuid.UUID) (State, error) {
	lesson, err := r.lessons.Lesson(ctx, lessonID)
	if err != nil {
		return State{}, err
	}
	if lesson == nil {
		return State{}, ErrNotFound
	}
	return State{ActiveLesson: lesson, Locked: true, ResolvedAt: time.Now()}, nil
}

// lockState derives the lock flag: completed lessons and not-yet-due
// scheduled lessons are locked; otherwise the global setting decides,
// defaulting to unlocked when absent.
func (r *Resolver) lockState(ctx context.Context, st State) (bool, error) {
	if l := st.ActiveLesson; l != nil {
		switch {
		case l.Status == models.LessonCompleted:
			return true, nil
		case l.Status == models.LessonScheduled && !st.EffectivelyLive:
			return true, nil
		}
	}
	setting, err := r.settings.ChatLock(ctx)
	if err != nil {
		return false, err
	}
	if setting == nil {
		return false, nil
	}
	return setting.IsLocked, nil
}

// State returns the last successfully resolved state.
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Subscribe returns a channel receiving each newly resolved state. The
// channel is buffered; a slow consumer drops intermediate states rather than
// blocking the resolver.
func (r *Resolver) Subscribe() <-chan State {
	ch := make(chan State, 8)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

// Run resolves once immediately, then re-resolves on every poll tick and on
// every lesson/lock control event, until ctx is cancelled. A failed read
// keeps the previous state in place; the next tick retries.
func (r *Resolver) Run(ctx context.Context) {
	r.refresh(ctx)

	events := make(chan Event, 16)
	for _, channel := range []string{LessonControlChannel, LockControlChannel} {
		sub, err := r.feed.Subscribe(ctx, channel)
		if err != nil {
			r.logger.Warn().Err(err).Str("channel", channel).Msg("control subscription failed, relying on poll")
			continue
		}
		defer sub.Close()
		go func() {
			for ev := range sub.Events() {
				select {
				case events <- ev:
				default:
				}
			}
		}()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		case <-events:
			r.refresh(ctx)
		}
	}
}

func (r *Resolver) refresh(ctx context.Context) {
	st, err := r.Resolve(ctx, time.Now())
	if err != nil {
		// Stale-but-available: keep the last resolved state.
		r.logger.Warn().Err(err).Msg("resolve failed, keeping previous state")
		return
	}

	r.mu.Lock()
	changed := !r.ready || stateChanged(r.last, st)
	r.last = st
	r.ready = true
	subs := r.subs
	r.mu.Unlock()

	if !changed {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- st:
		default:
		}
	}
}

func stateChanged(a, b State) bool {
	if a.Locked != b.Locked || a.EffectivelyLive != b.EffectivelyLive {
		return true
	}
	switch {
	case a.ActiveLesson == nil && b.ActiveLesson == nil:
		return false
	case a.ActiveLesson == nil || b.ActiveLesson == nil:
		return true
	}
	return a.ActiveLesson.ID != b.ActiveLesson.ID || a.ActiveLesson.Status != b.ActiveLesson.Status
}
