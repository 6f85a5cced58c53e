package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student',
		school TEXT NOT NULL DEFAULT '',
		course TEXT NOT NULL DEFAULT '',
		is_hand_raised BOOLEAN NOT NULL DEFAULT FALSE,
		is_unlocked BOOLEAN NOT NULL DEFAULT FALSE,
		is_premium BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS lessons (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		topic TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		scheduled_at TIMESTAMPTZ NOT NULL,
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		created_by UUID REFERENCES profiles(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_status_scheduled
		ON lessons (status, scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS study_groups (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		group_type TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (group_type, name)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_lock_settings (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		is_locked BOOLEAN NOT NULL DEFAULT FALSE,
		updated_by UUID,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS read_markers (
		user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		room_key TEXT NOT NULL,
		last_read_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, room_key)
	)`,
}

// RunMigrations applies the schema statements. Statements are idempotent, so
// re-running on startup is safe.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	for _, stmt := range migrations {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
