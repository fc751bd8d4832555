package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

// TrackingStore is the dedup store over scraped_urls. The composite primary
// key (scope_id, source, url) makes every write an upsert; a row is never
// duplicated, only updated in place.
type TrackingStore struct {
	db     DB
	clock  pipeline.Clock
	logger *zap.Logger
}

func NewTrackingStore(db DB, clock pipeline.Clock, logger *zap.Logger) *TrackingStore {
	return &TrackingStore{db: db, clock: clock, logger: logger.Named("tracking")}
}

// Get returns the record for the composite key, or nil when absent.
func (s *TrackingStore) Get(ctx context.Context, scopeID, source, url string) (*pipeline.ScrapedURLRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT scope_id, source, url, scraped, vector_ids, error, created_at, updated_at
		FROM scraped_urls
		WHERE scope_id = $1 AND source = $2 AND url = $3`,
		scopeID, source, url)

	var rec pipeline.ScrapedURLRecord
	err := row.Scan(&rec.ScopeID, &rec.Source, &rec.URL, &rec.Scraped,
		&rec.VectorIDs, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertSuccess marks the URL ingested with its vector record ids.
func (s *TrackingStore) UpsertSuccess(ctx context.Context, scopeID, source, url string, vectorIDs []string) error {
	now := s.clock.Now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO scraped_urls (scope_id, source, url, scraped, vector_ids, error, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, '', $5, $5)
		ON CONFLICT (scope_id, source, url) DO UPDATE
		SET scraped = TRUE, vector_ids = EXCLUDED.vector_ids, error = '', updated_at = EXCLUDED.updated_at`,
		scopeID, source, url, vectorIDs, now)
	return err
}

// UpsertError records a failed attempt, leaving the row eligible for the
// next scheduled retry.
func (s *TrackingStore) UpsertError(ctx context.Context, scopeID, source, url, errMsg string) error {
	now := s.clock.Now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO scraped_urls (scope_id, source, url, scraped, vector_ids, error, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, '{}', $4, $5, $5)
		ON CONFLICT (scope_id, source, url) DO UPDATE
		SET scraped = FALSE, error = EXCLUDED.error, updated_at = EXCLUDED.updated_at`,
		scopeID, source, url, errMsg, now)
	return err
}
