// Package store provides the Postgres-backed persistence layer: job queue,
// dedup tracking, crawl jobs/URLs, and the taxonomy vocabularies.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the slice of pgxpool.Pool the stores use. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS queue_entries (
	id UUID PRIMARY KEY,
	scope_id TEXT NOT NULL,
	job_type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS queue_entries_status_idx ON queue_entries (status, created_at);

CREATE TABLE IF NOT EXISTS scraped_urls (
	scope_id TEXT NOT NULL,
	source TEXT NOT NULL,
	url TEXT NOT NULL,
	scraped BOOLEAN NOT NULL DEFAULT FALSE,
	vector_ids TEXT[] NOT NULL DEFAULT '{}',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (scope_id, source, url)
);

CREATE TABLE IF NOT EXISTS crawl_jobs (
	id UUID PRIMARY KEY,
	root_url TEXT NOT NULL,
	max_depth INT NOT NULL,
	max_urls INT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_urls (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	job_id UUID NOT NULL REFERENCES crawl_jobs(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	crawl_status TEXT NOT NULL DEFAULT 'PENDING',
	ingestion_status TEXT NOT NULL DEFAULT 'PENDING',
	vector_ids TEXT[] NOT NULL DEFAULT '{}',
	discovered_at TIMESTAMPTZ NOT NULL,
	ingested_at TIMESTAMPTZ,
	error TEXT NOT NULL DEFAULT '',
	UNIQUE (job_id, url)
);
CREATE INDEX IF NOT EXISTS crawl_urls_status_idx ON crawl_urls (crawl_status, discovered_at);

CREATE TABLE IF NOT EXISTS taxonomy_regions (slug TEXT PRIMARY KEY);
CREATE TABLE IF NOT EXISTS taxonomy_industries (slug TEXT PRIMARY KEY);
CREATE TABLE IF NOT EXISTS taxonomy_topics (slug TEXT PRIMARY KEY);
`

// EnsureSchema creates the tables if they do not exist.
// TODO: move to golang-migrate once the schema starts changing in place.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
