package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/models"
)

// Op is the change-event operation type.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is a single change notification on a room channel. Control channels
// (lesson and lock changes) carry events with an empty message; subscribers
// there only care that something changed.
type Event struct {
	Op      Op             `json:"op"`
	Message models.Message `json:"message"`
}

// Subscription is a live change-event stream for one channel.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Feed is the publish/subscribe side of the real-time backbone.
type Feed interface {
	Publish(ctx context.Context, channel string, ev Event) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// MessageStore is the message-log side of the backbone. Logs are ordered by
// (timestamp, id); Range pages newest-first with an exclusive before cursor.
type MessageStore interface {
	Append(ctx context.Context, logKey string, m *models.Message) error
	Range(ctx context.Context, logKey string, limit int, before int64) ([]models.Message, error)
	ByID(ctx context.Context, logKey, id string) (*models.Message, error)
	ByIDs(ctx context.Context, logKey string, ids []string) (map[string]models.Message, error)
	Update(ctx context.Context, logKey string, m *models.Message) error
	Delete(ctx context.Context, logKey, id string) error
}

// LessonStore provides lesson reads and lifecycle writes.
// Lookups return (nil, nil) when no row matches.
type LessonStore interface {
	Lesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	LatestLive(ctx context.Context) (*models.Lesson, error)
	NextScheduled(ctx context.Context) (*models.Lesson, error)
	CreateLesson(ctx context.Context, topic string, scheduledAt time.Time, createdBy uuid.UUID) (*models.Lesson, error)
	MarkLessonLive(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	MarkLessonCompleted(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	DeleteLesson(ctx context.Context, id uuid.UUID) (bool, error)
}

// SettingsStore provides the global chat lock flag.
type SettingsStore interface {
	ChatLock(ctx context.Context) (*models.ChatLockSetting, error)
	SetChatLock(ctx context.Context, locked bool, updatedBy uuid.UUID) error
}

// ProfileStore provides the profile mutations the dispatcher performs.
type ProfileStore interface {
	Profile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	SetHandRaised(ctx context.Context, id uuid.UUID, raised bool) error
	SetUnlocked(ctx context.Context, id uuid.UUID, unlocked bool) error
	TouchLastRead(ctx context.Context, userID uuid.UUID, roomKey string, at time.Time) error
}

// GroupStore provides study-group lookup and creation.
type GroupStore interface {
	Group(ctx context.Context, id uuid.UUID) (*models.StudyGroup, error)
	GroupByTypeName(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error)
	CreateGroup(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error)
}
