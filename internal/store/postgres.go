package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyhall-app/studyhall/internal/models"
)

const profileColumns = `id, email, password_hash, full_name, role, school, course,
	is_hand_raised, is_unlocked, is_premium, created_at, updated_at`

const lessonColumns = `id, topic, status, scheduled_at, started_at, ended_at, created_by, created_at`

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.FullName,
		&p.Role,
		&p.School,
		&p.Course,
		&p.IsHandRaised,
		&p.IsUnlocked,
		&p.IsPremium,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// CreateProfile creates a new profile record.
func (s *PostgresStore) CreateProfile(ctx context.Context, email, passwordHash, fullName string, role models.Role, school, course string) (*models.Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx, `
		INSERT INTO profiles (email, password_hash, full_name, role, school, course)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+profileColumns,
		email, passwordHash, fullName, role, school, course))
}

// Profile retrieves a profile by ID.
func (s *PostgresStore) Profile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

// ProfileByEmail retrieves a profile by email.
func (s *PostgresStore) ProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email))
}

// SetHandRaised updates the raised-hand flag.
func (s *PostgresStore) SetHandRaised(ctx context.Context, id uuid.UUID, raised bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE profiles SET is_hand_raised = $2, updated_at = NOW() WHERE id = $1
	`, id, raised)
	return err
}

// SetUnlocked updates the per-student lock override.
func (s *PostgresStore) SetUnlocked(ctx context.Context, id uuid.UUID, unlocked bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE profiles SET is_unlocked = $2, updated_at = NOW() WHERE id = $1
	`, id, unlocked)
	return err
}

// TouchLastRead upserts a user's last-read marker for a room.
func (s *PostgresStore) TouchLastRead(ctx context.Context, userID uuid.UUID, roomKey string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO read_markers (user_id, room_key, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, room_key) DO UPDATE SET last_read_at = EXCLUDED.last_read_at
	`, userID, roomKey, at)
	return err
}

// CountProfiles returns the total number of profiles.
func (s *PostgresStore) CountProfiles(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}

// RaisedHands lists profiles with a raised hand, oldest update first.
func (s *PostgresStore) RaisedHands(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE is_hand_raised = TRUE
		ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func scanLesson(row pgx.Row) (*models.Lesson, error) {
	l := &models.Lesson{}
	err := row.Scan(
		&l.ID,
		&l.Topic,
		&l.Status,
		&l.ScheduledAt,
		&l.StartedAt,
		&l.EndedAt,
		&l.CreatedBy,
		&l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// CreateLesson creates a scheduled lesson.
func (s *PostgresStore) CreateLesson(ctx context.Context, topic string, scheduledAt time.Time, createdBy uuid.UUID) (*models.Lesson, error) {
	return scanLesson(s.pool.QueryRow(ctx, `
		INSERT INTO lessons (topic, status, scheduled_at, created_by)
		VALUES ($1, 'scheduled', $2, $3)
		RETURNING `+lessonColumns,
		topic, scheduledAt, createdBy))
}

// Lesson retrieves a lesson by ID.
func (s *PostgresStore) Lesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	return scanLesson(s.pool.QueryRow(ctx, `
		SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id))
}

// LatestLive returns the most recently started live lesson, if any.
func (s *PostgresStore) LatestLive(ctx context.Context) (*models.Lesson, error) {
	return scanLesson(s.pool.QueryRow(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		WHERE status = 'live'
		ORDER BY started_at DESC NULLS LAST
		LIMIT 1`))
}

// NextScheduled returns the earliest scheduled lesson, if any.
func (s *PostgresStore) NextScheduled(ctx context.Context) (*models.Lesson, error) {
	return scanLesson(s.pool.QueryRow(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		WHERE status = 'scheduled'
		ORDER BY scheduled_at ASC
		LIMIT 1`))
}

// ListLessons retrieves lessons newest first, with pagination.
func (s *PostgresStore) ListLessons(ctx context.Context, limit, offset int) ([]models.Lesson, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		ORDER BY scheduled_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, 0, err
		}
		lessons = append(lessons, *l)
	}
	return lessons, total, rows.Err()
}

// MarkLessonLive transitions scheduled -> live, stamping started_at.
// Returns (nil, nil) when the lesson is missing or not in scheduled state.
func (s *PostgresStore) MarkLessonLive(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	return scanLesson(s.pool.QueryRow(ctx, `
		UPDATE lessons
		SET status = 'live', started_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING `+lessonColumns, id))
}

// MarkLessonCompleted transitions live -> completed, stamping ended_at.
// Returns (nil, nil) when the lesson is missing or not live.
func (s *PostgresStore) MarkLessonCompleted(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	return scanLesson(s.pool.QueryRow(ctx, `
		UPDATE lessons
		SET status = 'completed', ended_at = NOW()
		WHERE id = $1 AND status = 'live'
		RETURNING `+lessonColumns, id))
}

// DeleteLesson removes a scheduled or live lesson. Completed lessons are
// terminal; deleting one reports false.
func (s *PostgresStore) DeleteLesson(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM lessons WHERE id = $1 AND status != 'completed'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountLessons returns the total number of lessons.
func (s *PostgresStore) CountLessons(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&n)
	return n, err
}

func scanGroup(row pgx.Row) (*models.StudyGroup, error) {
	g := &models.StudyGroup{}
	err := row.Scan(&g.ID, &g.Type, &g.Name, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// Group retrieves a study group by ID.
func (s *PostgresStore) Group(ctx context.Context, id uuid.UUID) (*models.StudyGroup, error) {
	return scanGroup(s.pool.QueryRow(ctx, `
		SELECT id, group_type, name, created_at FROM study_groups WHERE id = $1`, id))
}

// GroupByTypeName retrieves a study group by its (type, name) pair.
func (s *PostgresStore) GroupByTypeName(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error) {
	return scanGroup(s.pool.QueryRow(ctx, `
		SELECT id, group_type, name, created_at
		FROM study_groups WHERE group_type = $1 AND name = $2`, t, name))
}

// CreateGroup creates a study group. The unique index on (group_type, name)
// makes a duplicate-create race surface as an error the caller can recover
// from with a re-read.
func (s *PostgresStore) CreateGroup(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error) {
	return scanGroup(s.pool.QueryRow(ctx, `
		INSERT INTO study_groups (group_type, name)
		VALUES ($1, $2)
		RETURNING id, group_type, name, created_at`, t, name))
}

// ListGroups retrieves all study groups ordered by name.
func (s *PostgresStore) ListGroups(ctx context.Context) ([]models.StudyGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, group_type, name, created_at FROM study_groups ORDER BY group_type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.StudyGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// CountGroups returns the total number of study groups.
func (s *PostgresStore) CountGroups(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM study_groups`).Scan(&n)
	return n, err
}

// ChatLock reads the global lock setting. Returns (nil, nil) when the row has
// never been written; callers default to unlocked.
func (s *PostgresStore) ChatLock(ctx context.Context) (*models.ChatLockSetting, error) {
	setting := &models.ChatLockSetting{}
	err := s.pool.QueryRow(ctx, `
		SELECT is_locked, updated_by, updated_at FROM chat_lock_settings WHERE id = 1
	`).Scan(&setting.IsLocked, &setting.UpdatedBy, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return setting, nil
}

// SetChatLock upserts the global lock setting.
func (s *PostgresStore) SetChatLock(ctx context.Context, locked bool, updatedBy uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_lock_settings (id, is_locked, updated_by, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET is_locked = EXCLUDED.is_locked,
			updated_by = EXCLUDED.updated_by, updated_at = NOW()
	`, locked, updatedBy)
	return err
}
