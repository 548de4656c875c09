package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not exist yet. Statements are
// idempotent so startup can run this unconditionally.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sql := `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			avatar TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS posts (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			body TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			likes JSONB NOT NULL DEFAULT '[]',
			comments_count BIGINT NOT NULL DEFAULT 0,
			edited BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts (user_id);

		CREATE TABLE IF NOT EXISTS comments (
			id UUID PRIMARY KEY,
			post_id UUID NOT NULL,
			user_id UUID NOT NULL REFERENCES users(id),
			body TEXT NOT NULL,
			edited BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments (post_id, created_at);
	`

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// DropTables removes the schema. Test helper.
func DropTables(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS comments, posts, users`); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
