package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

// CrawlStoreImpl persists crawl jobs and their discovered URLs. Job and URL
// claims use the same UPDATE ... RETURNING shape as the queue so sweeps on
// multiple instances never double-process.
type CrawlStoreImpl struct {
	db     DB
	ids    pipeline.IDGenerator
	clock  pipeline.Clock
	logger *zap.Logger
}

func NewCrawlStore(db DB, ids pipeline.IDGenerator, clock pipeline.Clock, logger *zap.Logger) *CrawlStoreImpl {
	return &CrawlStoreImpl{db: db, ids: ids, clock: clock, logger: logger.Named("crawlstore")}
}

func (s *CrawlStoreImpl) CreateJob(ctx context.Context, job *pipeline.CrawlJob) error {
	now := s.clock.Now()
	if job.ID == "" {
		job.ID = s.ids.NewID()
	}
	job.Status = pipeline.CrawlPending
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := s.db.Exec(ctx, `
		INSERT INTO crawl_jobs (id, root_url, max_depth, max_urls, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', $6, $6)`,
		job.ID, job.RootURL, job.MaxDepth, job.MaxURLs, string(job.Status), now)
	return err
}

func (s *CrawlStoreImpl) GetJob(ctx context.Context, id string) (*pipeline.CrawlJob, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, root_url, max_depth, max_urls, status, error, created_at, updated_at
		FROM crawl_jobs WHERE id = $1`, id)
	job, err := scanCrawlJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pipeline.ErrNotFound
	}
	return job, err
}

// ClaimPendingJob flips one PENDING job to IN_PROGRESS and returns it, or
// nil when there is nothing to do.
func (s *CrawlStoreImpl) ClaimPendingJob(ctx context.Context) (*pipeline.CrawlJob, error) {
	row := s.db.QueryRow(ctx, `
		WITH next AS (
			SELECT id FROM crawl_jobs
			WHERE status = 'PENDING'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE crawl_jobs j
		SET status = 'IN_PROGRESS', updated_at = $1
		FROM next
		WHERE j.id = next.id
		RETURNING j.id, j.root_url, j.max_depth, j.max_urls, j.status, j.error, j.created_at, j.updated_at`,
		s.clock.Now())
	job, err := scanCrawlJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (s *CrawlStoreImpl) MarkJob(ctx context.Context, id string, status pipeline.CrawlStatus, errMsg string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE crawl_jobs SET status = $2, error = $3, updated_at = $4 WHERE id = $1`,
		id, string(status), errMsg, s.clock.Now())
	return err
}

// AddURLs inserts discovered URLs for a job, ignoring ones already present.
// Returns the number of new rows.
func (s *CrawlStoreImpl) AddURLs(ctx context.Context, jobID string, urls []string, at time.Time) (int, error) {
	added := 0
	for _, u := range urls {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO crawl_urls (id, job_id, url, crawl_status, ingestion_status, discovered_at)
			VALUES ($1, $2, $3, 'PENDING', 'PENDING', $4)
			ON CONFLICT (job_id, url) DO NOTHING`,
			s.ids.NewID(), jobID, u, at)
		if err != nil {
			return added, err
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

// ClaimPendingURL flips one PENDING URL to IN_PROGRESS for the per-URL
// sweep.
func (s *CrawlStoreImpl) ClaimPendingURL(ctx context.Context) (*pipeline.CrawlableURL, error) {
	row := s.db.QueryRow(ctx, `
		WITH next AS (
			SELECT id FROM crawl_urls
			WHERE crawl_status = 'PENDING'
			ORDER BY discovered_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE crawl_urls u
		SET crawl_status = 'IN_PROGRESS'
		FROM next
		WHERE u.id = next.id
		RETURNING u.id, u.job_id, u.url, u.crawl_status, u.ingestion_status, u.vector_ids,
			u.discovered_at, u.ingested_at, u.error`,
		)
	cu, err := scanCrawlableURL(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cu, err
}

func (s *CrawlStoreImpl) MarkURLCrawl(ctx context.Context, id string, status pipeline.CrawlStatus, errMsg string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE crawl_urls SET crawl_status = $2, error = $3 WHERE id = $1`,
		id, string(status), errMsg)
	return err
}

func (s *CrawlStoreImpl) MarkURLIngestion(ctx context.Context, id string, status pipeline.IngestionStatus, vectorIDs []string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE crawl_urls SET ingestion_status = $2, vector_ids = $3, ingested_at = $4 WHERE id = $1`,
		id, string(status), vectorIDs, at)
	return err
}

// Summary aggregates per-URL progress for a job status read.
func (s *CrawlStoreImpl) Summary(ctx context.Context, jobID string) (*pipeline.CrawlSummary, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE crawl_status = 'PENDING'),
			COUNT(*) FILTER (WHERE crawl_status = 'SUCCESS'),
			COUNT(*) FILTER (WHERE crawl_status = 'FAILED'),
			COUNT(*) FILTER (WHERE ingestion_status = 'SUCCESS')
		FROM crawl_urls WHERE job_id = $1`, jobID)

	sum := &pipeline.CrawlSummary{JobID: jobID, Status: job.Status}
	if err := row.Scan(&sum.Total, &sum.Pending, &sum.Completed, &sum.Failed, &sum.Ingested); err != nil {
		return nil, err
	}
	return sum, nil
}

// ClearURLs deletes every discovered URL for a job and returns the vector
// record ids that were attached so the caller can delete the points too.
func (s *CrawlStoreImpl) ClearURLs(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		DELETE FROM crawl_urls WHERE job_id = $1 RETURNING vector_ids`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []string
	for rows.Next() {
		var ids []string
		if err := rows.Scan(&ids); err != nil {
			return nil, err
		}
		all = append(all, ids...)
	}
	return all, rows.Err()
}

func scanCrawlJob(row pgx.Row) (*pipeline.CrawlJob, error) {
	var j pipeline.CrawlJob
	var status string
	err := row.Scan(&j.ID, &j.RootURL, &j.MaxDepth, &j.MaxURLs, &status, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = pipeline.CrawlStatus(status)
	return &j, nil
}

func scanCrawlableURL(row pgx.Row) (*pipeline.CrawlableURL, error) {
	var u pipeline.CrawlableURL
	var crawlStatus, ingestionStatus string
	err := row.Scan(&u.ID, &u.JobID, &u.URL, &crawlStatus, &ingestionStatus, &u.VectorIDs,
		&u.DiscoveredAt, &u.IngestedAt, &u.Error)
	if err != nil {
		return nil, err
	}
	u.CrawlStatus = pipeline.CrawlStatus(crawlStatus)
	u.IngestionStatus = pipeline.IngestionStatus(ingestionStatus)
	return &u, nil
}
