package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a PostgreSQL connection pool using pgx and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN must not be empty")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	// Sane defaults for a service-oriented workload.
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema creates the places table shared with the dashboard. There is no
// unique constraint on (name, address): ingestion replaces by delete then
// insert, and a concurrent race may briefly leave two rows.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS places (
        id            UUID PRIMARY KEY,
        seq           BIGSERIAL NOT NULL,
        name          TEXT NOT NULL,
        address       TEXT,
        phone         TEXT,
        phone_e164    TEXT,
        website       TEXT,
        email         TEXT,
        social_links  JSONB NOT NULL DEFAULT '{}'::jsonb,
        rating        TEXT,
        reviews_count TEXT,
        category      TEXT,
        lead_score    INTEGER NOT NULL DEFAULT 0,
        batch_id      TEXT NOT NULL,
        url           TEXT NOT NULL DEFAULT '',
        ingested_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS places_identity_idx ON places (name, address)`,
	`CREATE INDEX IF NOT EXISTS places_batch_idx ON places (batch_id)`,
	`CREATE INDEX IF NOT EXISTS places_seq_idx ON places (seq DESC)`,
	`ALTER TABLE places ADD COLUMN IF NOT EXISTS lead_score INTEGER NOT NULL DEFAULT 0`,
}

// EnsureSchema creates the places table and its indexes when missing.
func EnsureSchema(ctx context.Context, db execer) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
