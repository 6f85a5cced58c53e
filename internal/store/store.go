package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall-app/studyhall/internal/models"
)

// DataStore defines the interface for durable storage of profiles, lessons,
// study groups and settings. Both PostgresStore and SQLiteStore implement it;
// lookups return (nil, nil) when no row matches.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Profile operations
	CreateProfile(ctx context.Context, email, passwordHash, fullName string, role models.Role, school, course string) (*models.Profile, error)
	Profile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	SetHandRaised(ctx context.Context, id uuid.UUID, raised bool) error
	SetUnlocked(ctx context.Context, id uuid.UUID, unlocked bool) error
	TouchLastRead(ctx context.Context, userID uuid.UUID, roomKey string, at time.Time) error
	CountProfiles(ctx context.Context) (int64, error)
	RaisedHands(ctx context.Context) ([]models.Profile, error)

	// Lesson operations
	CreateLesson(ctx context.Context, topic string, scheduledAt time.Time, createdBy uuid.UUID) (*models.Lesson, error)
	Lesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	LatestLive(ctx context.Context) (*models.Lesson, error)
	NextScheduled(ctx context.Context) (*models.Lesson, error)
	ListLessons(ctx context.Context, limit, offset int) ([]models.Lesson, int, error)
	MarkLessonLive(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	MarkLessonCompleted(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	DeleteLesson(ctx context.Context, id uuid.UUID) (bool, error)
	CountLessons(ctx context.Context) (int64, error)

	// Study group operations
	Group(ctx context.Context, id uuid.UUID) (*models.StudyGroup, error)
	GroupByTypeName(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error)
	CreateGroup(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error)
	ListGroups(ctx context.Context) ([]models.StudyGroup, error)
	CountGroups(ctx context.Context) (int64, error)

	// Global chat lock
	ChatLock(ctx context.Context) (*models.ChatLockSetting, error)
	SetChatLock(ctx context.Context, locked bool, updatedBy uuid.UUID) error
}
