package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		tone TEXT NOT NULL DEFAULT 'professional',
		keywords TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		is_scheduled BOOLEAN NOT NULL DEFAULT FALSE,
		scheduled_for TIMESTAMPTZ NULL,
		timezone TEXT NULL,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		published_at TIMESTAMPTZ NULL,
		linkedin_post_id TEXT NULL,
		status TEXT NULL,
		error TEXT NULL,
		likes INT NOT NULL DEFAULT 0,
		comments INT NOT NULL DEFAULT 0,
		shares INT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS ix_posts_due ON posts (scheduled_for) WHERE is_scheduled AND NOT is_published`,
	`CREATE INDEX IF NOT EXISTS ix_posts_user_created ON posts (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS linkedin_credentials (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		access_token TEXT NOT NULL,
		refresh_token TEXT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		profile JSONB NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the posts and linkedin_credentials tables if they are missing.
// Safe to call at startup.
func EnsureSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, ddl := range postgresSchema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
