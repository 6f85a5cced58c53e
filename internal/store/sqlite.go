package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/studyhall-app/studyhall/internal/models"
)

// SQLiteStore handles SQLite database operations for local development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/studyhall.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/studyhall.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student',
		school TEXT NOT NULL DEFAULT '',
		course TEXT NOT NULL DEFAULT '',
		is_hand_raised INTEGER NOT NULL DEFAULT 0,
		is_unlocked INTEGER NOT NULL DEFAULT 0,
		is_premium INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		scheduled_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		ended_at TIMESTAMP,
		created_by TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lessons_status_scheduled ON lessons (status, scheduled_at);
	CREATE TABLE IF NOT EXISTS study_groups (
		id TEXT PRIMARY KEY,
		group_type TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (group_type, name)
	);
	CREATE TABLE IF NOT EXISTS chat_lock_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		is_locked INTEGER NOT NULL DEFAULT 0,
		updated_by TEXT,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS read_markers (
		user_id TEXT NOT NULL,
		room_key TEXT NOT NULL,
		last_read_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, room_key)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) scanProfileRow(row *sql.Row) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.Role,
		&p.School, &p.Course, &p.IsHandRaised, &p.IsUnlocked, &p.IsPremium,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

const sqliteProfileCols = `id, email, password_hash, full_name, role, school, course,
	is_hand_raised, is_unlocked, is_premium, created_at, updated_at`

// CreateProfile creates a new profile record.
func (s *SQLiteStore) CreateProfile(ctx context.Context, email, passwordHash, fullName string, role models.Role, school, course string) (*models.Profile, error) {
	now := time.Now().UTC()
	p := &models.Profile{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         role,
		School:       school,
		Course:       course,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, password_hash, full_name, role, school, course,
			is_hand_raised, is_unlocked, is_premium, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?)
	`, p.ID.String(), email, passwordHash, fullName, role, school, course, now, now)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Profile retrieves a profile by ID.
func (s *SQLiteStore) Profile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return s.scanProfileRow(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteProfileCols+` FROM profiles WHERE id = ?`, id.String()))
}

// ProfileByEmail retrieves a profile by email.
func (s *SQLiteStore) ProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.scanProfileRow(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteProfileCols+` FROM profiles WHERE email = ?`, email))
}

// SetHandRaised updates the raised-hand flag.
func (s *SQLiteStore) SetHandRaised(ctx context.Context, id uuid.UUID, raised bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET is_hand_raised = ?, updated_at = ? WHERE id = ?
	`, raised, time.Now().UTC(), id.String())
	return err
}

// SetUnlocked updates the per-student lock override.
func (s *SQLiteStore) SetUnlocked(ctx context.Context, id uuid.UUID, unlocked bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET is_unlocked = ?, updated_at = ? WHERE id = ?
	`, unlocked, time.Now().UTC(), id.String())
	return err
}

// TouchLastRead upserts a user's last-read marker for a room.
func (s *SQLiteStore) TouchLastRead(ctx context.Context, userID uuid.UUID, roomKey string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO read_markers (user_id, room_key, last_read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, room_key) DO UPDATE SET last_read_at = excluded.last_read_at
	`, userID.String(), roomKey, at)
	return err
}

// CountProfiles returns the total number of profiles.
func (s *SQLiteStore) CountProfiles(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}

// RaisedHands lists profiles with a raised hand, oldest update first.
func (s *SQLiteStore) RaisedHands(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteProfileCols+` FROM profiles WHERE is_hand_raised = 1 ORDER BY updated_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		err := rows.Scan(
			&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.Role,
			&p.School, &p.Course, &p.IsHandRaised, &p.IsUnlocked, &p.IsPremium,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

const sqliteLessonCols = `id, topic, status, scheduled_at, started_at, ended_at, created_by, created_at`

type lessonScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLesson(row lessonScanner) (*models.Lesson, error) {
	l := &models.Lesson{}
	var startedAt, endedAt sql.NullTime
	var createdBy sql.NullString
	err := row.Scan(&l.ID, &l.Topic, &l.Status, &l.ScheduledAt, &startedAt, &endedAt, &createdBy, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		l.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		l.EndedAt = &t
	}
	if createdBy.Valid {
		if id, err := uuid.Parse(createdBy.String); err == nil {
			l.CreatedBy = &id
		}
	}
	return l, nil
}

// CreateLesson creates a scheduled lesson.
func (s *SQLiteStore) CreateLesson(ctx context.Context, topic string, scheduledAt time.Time, createdBy uuid.UUID) (*models.Lesson, error) {
	l := &models.Lesson{
		ID:          uuid.New(),
		Topic:       topic,
		Status:      models.LessonScheduled,
		ScheduledAt: scheduledAt,
		CreatedBy:   &createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lessons (id, topic, status, scheduled_at, created_by, created_at)
		VALUES (?, ?, 'scheduled', ?, ?, ?)
	`, l.ID.String(), topic, scheduledAt, createdBy.String(), l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Lesson retrieves a lesson by ID.
func (s *SQLiteStore) Lesson(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	return scanSQLiteLesson(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteLessonCols+` FROM lessons WHERE id = ?`, id.String()))
}

// LatestLive returns the most recently started live lesson, if any.
func (s *SQLiteStore) LatestLive(ctx context.Context) (*models.Lesson, error) {
	return scanSQLiteLesson(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteLessonCols+` FROM lessons
		WHERE status = 'live' ORDER BY started_at DESC LIMIT 1`))
}

// NextScheduled returns the earliest scheduled lesson, if any.
func (s *SQLiteStore) NextScheduled(ctx context.Context) (*models.Lesson, error) {
	return scanSQLiteLesson(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteLessonCols+` FROM lessons
		WHERE status = 'scheduled' ORDER BY scheduled_at ASC LIMIT 1`))
}

// ListLessons retrieves lessons newest first, with pagination.
func (s *SQLiteStore) ListLessons(ctx context.Context, limit, offset int) ([]models.Lesson, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteLessonCols+` FROM lessons
		ORDER BY scheduled_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		l, err := scanSQLiteLesson(rows)
		if err != nil {
			return nil, 0, err
		}
		lessons = append(lessons, *l)
	}
	return lessons, total, rows.Err()
}

// MarkLessonLive transitions scheduled -> live, stamping started_at.
func (s *SQLiteStore) MarkLessonLive(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE lessons SET status = 'live', started_at = ?
		WHERE id = ? AND status = 'scheduled'
	`, time.Now().UTC(), id.String())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Lesson(ctx, id)
}

// MarkLessonCompleted transitions live -> completed, stamping ended_at.
func (s *SQLiteStore) MarkLessonCompleted(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE lessons SET status = 'completed', ended_at = ?
		WHERE id = ? AND status = 'live'
	`, time.Now().UTC(), id.String())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Lesson(ctx, id)
}

// DeleteLesson removes a scheduled or live lesson.
func (s *SQLiteStore) DeleteLesson(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM lessons WHERE id = ? AND status != 'completed'
	`, id.String())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountLessons returns the total number of lessons.
func (s *SQLiteStore) CountLessons(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&n)
	return n, err
}

// Group retrieves a study group by ID.
func (s *SQLiteStore) Group(ctx context.Context, id uuid.UUID) (*models.StudyGroup, error) {
	g := &models.StudyGroup{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_type, name, created_at FROM study_groups WHERE id = ?`, id.String(),
	).Scan(&g.ID, &g.Type, &g.Name, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// GroupByTypeName retrieves a study group by its (type, name) pair.
func (s *SQLiteStore) GroupByTypeName(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error) {
	g := &models.StudyGroup{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_type, name, created_at
		FROM study_groups WHERE group_type = ? AND name = ?`, t, name,
	).Scan(&g.ID, &g.Type, &g.Name, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// CreateGroup creates a study group.
func (s *SQLiteStore) CreateGroup(ctx context.Context, t models.GroupType, name string) (*models.StudyGroup, error) {
	g := &models.StudyGroup{
		ID:        uuid.New(),
		Type:      t,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO study_groups (id, group_type, name, created_at)
		VALUES (?, ?, ?, ?)
	`, g.ID.String(), t, name, g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListGroups retrieves all study groups.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]models.StudyGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_type, name, created_at FROM study_groups ORDER BY group_type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.StudyGroup
	for rows.Next() {
		var g models.StudyGroup
		if err := rows.Scan(&g.ID, &g.Type, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CountGroups returns the total number of study groups.
func (s *SQLiteStore) CountGroups(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM study_groups`).Scan(&n)
	return n, err
}

// ChatLock reads the global lock setting.
func (s *SQLiteStore) ChatLock(ctx context.Context) (*models.ChatLockSetting, error) {
	setting := &models.ChatLockSetting{}
	var updatedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT is_locked, updated_by, updated_at FROM chat_lock_settings WHERE id = 1
	`).Scan(&setting.IsLocked, &updatedBy, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if updatedBy.Valid {
		if id, err := uuid.Parse(updatedBy.String); err == nil {
			setting.UpdatedBy = &id
		}
	}
	return setting, nil
}

// SetChatLock upserts the global lock setting.
func (s *SQLiteStore) SetChatLock(ctx context.Context, locked bool, updatedBy uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_lock_settings (id, is_locked, updated_by, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET is_locked = excluded.is_locked,
			updated_by = excluded.updated_by, updated_at = excluded.updated_at
	`, locked, updatedBy.String(), time.Now().UTC())
	return err
}
