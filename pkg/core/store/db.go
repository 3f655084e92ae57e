// Package store persists pipeline audit records and reads the synonym
// dictionary from Postgres, with file and in-memory fallbacks.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabase is returned when DATABASE_URL is unset.
var ErrNoDatabase = errors.New("DATABASE_URL environment variable not set")

// Connect opens a connection pool for url and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, ErrNoDatabase
	}
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// ConnectFromEnv opens a pool from the DATABASE_URL environment variable.
func ConnectFromEnv(ctx context.Context) (*pgxpool.Pool, error) {
	return Connect(ctx, os.Getenv("DATABASE_URL"))
}

// Schema creates the tables used by this package.
const Schema = `
CREATE TABLE IF NOT EXISTS pipeline_audit (
	run_id           UUID        NOT NULL,
	user_id          TEXT        NOT NULL,
	session_id       TEXT        NOT NULL,
	file_id          TEXT        NOT NULL,
	unit             TEXT        NOT NULL,
	input_fields     INT         NOT NULL,
	cleaned_fields   INT         NOT NULL,
	is_valid         BOOLEAN     NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	completion_score DOUBLE PRECISION NOT NULL,
	issue_count      INT         NOT NULL,
	result_json      JSONB,
	created_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, session_id, file_id, run_id)
);

CREATE TABLE IF NOT EXISTS ` + SynonymsTable + ` (
	canonical TEXT NOT NULL,
	alias     TEXT NOT NULL,
	score     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	active    BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (canonical, alias)
);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
