// Package store persists analysis runs in Postgres. Reports and
// insight results are stored as jsonb documents keyed by run id.
//
// Expected schema:
//
//	CREATE TABLE analysis_runs (
//	    id            uuid PRIMARY KEY,
//	    status        text NOT NULL,
//	    source_name   text NOT NULL,
//	    conversations int NOT NULL DEFAULT 0,
//	    messages      int NOT NULL DEFAULT 0,
//	    skipped       int NOT NULL DEFAULT 0,
//	    report        jsonb,
//	    insights      jsonb,
//	    error         text,
//	    created_at    timestamptz NOT NULL,
//	    updated_at    timestamptz NOT NULL
//	);
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}
