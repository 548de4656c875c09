// Package database connects the configured record store backend and hands
// back a plume.Store plus a cleanup function. Backends: MongoDB (primary),
// SQLite (embedded, dev and tests) and PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwrks/plume"
	"github.com/mwrks/plume/database/mongo"
	"github.com/mwrks/plume/database/postgres"
	"github.com/mwrks/plume/database/sqlite"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config holds the configuration for connecting a record store backend.
type Config struct {
	// Type selects the backend: "mongo", "sqlite" or "postgres".
	Type string `mapstructure:"type" validate:"required,oneof=mongo sqlite postgres"`
	// DSN is the connection string (MongoDB URI, SQLite path or
	// PostgreSQL DSN).
	DSN string `mapstructure:"dsn" validate:"required"`
	// Name is the database name; only MongoDB uses it.
	Name string `mapstructure:"name"`
}

// Connect opens the configured backend, runs its migrations or ensures its
// indexes, and returns a ready Store. The returned cleanup function closes
// the underlying connection.
func Connect(ctx context.Context, cfg Config) (plume.Store, func(), error) {
	switch cfg.Type {
	case "mongo":
		return connectMongo(ctx, cfg)
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN)
	case "postgres":
		return connectPostgres(ctx, cfg.DSN)
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectMongo(ctx context.Context, cfg Config) (plume.Store, func(), error) {
	name := cfg.Name
	if name == "" {
		name = "plume"
	}

	store, err := mongo.Connect(ctx, cfg.DSN, name)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	cleanup := func() {
		_ = store.Close(context.Background())
	}
	return store, cleanup, nil
}

func connectSQLite(ctx context.Context, dsn string) (plume.Store, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err = sqlite.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
	}
	return sqlite.NewStore(db), cleanup, nil
}

func connectPostgres(ctx context.Context, dsn string) (plume.Store, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err = postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return postgres.NewStore(pool), pool.Close, nil
}
