package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []struct {
	name string
	stmt string
}{
	{
		name: "users",
		stmt: `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT NOT NULL PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				avatar TEXT NOT NULL DEFAULT '',
				bio TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
	},
	{
		name: "posts",
		stmt: `
			CREATE TABLE IF NOT EXISTS posts (
				id TEXT NOT NULL PRIMARY KEY,
				user_id TEXT NOT NULL,
				body TEXT NOT NULL,
				image TEXT NOT NULL DEFAULT '',
				likes TEXT NOT NULL DEFAULT '[]',
				comments_count INTEGER NOT NULL DEFAULT 0,
				edited INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
	},
	{
		name: "idx_posts_created_at",
		stmt: `CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC)`,
	},
	{
		name: "idx_posts_user_id",
		stmt: `CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts (user_id)`,
	},
	{
		name: "comments",
		stmt: `
			CREATE TABLE IF NOT EXISTS comments (
				id TEXT NOT NULL PRIMARY KEY,
				post_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				body TEXT NOT NULL,
				edited INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
	},
	{
		name: "idx_comments_post_id",
		stmt: `CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments (post_id, created_at)`,
	},
}

// Migrate creates the record tables and their secondary indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", m.name, err)
		}
	}
	return nil
}

// DropTables removes all record tables. Test helper.
func DropTables(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"comments", "posts", "users"} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
