package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

// QueueStore is the durable claim-based job queue. The atomic
// UPDATE ... RETURNING claim is the sole concurrency-safety mechanism: two
// concurrent callers can never both win the same row.
type QueueStore struct {
	db     DB
	ids    pipeline.IDGenerator
	clock  pipeline.Clock
	logger *zap.Logger
}

func NewQueueStore(db DB, ids pipeline.IDGenerator, clock pipeline.Clock, logger *zap.Logger) *QueueStore {
	return &QueueStore{db: db, ids: ids, clock: clock, logger: logger.Named("queue")}
}

const queueColumns = `id, scope_id, job_type, status, error, created_at, updated_at`

func (s *QueueStore) Enqueue(ctx context.Context, scopeID string, jobType pipeline.JobType) (*pipeline.QueueEntry, error) {
	now := s.clock.Now()
	entry := &pipeline.QueueEntry{
		ID:        s.ids.NewID(),
		ScopeID:   scopeID,
		JobType:   jobType,
		Status:    pipeline.QueuePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO queue_entries (id, scope_id, job_type, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', $5, $5)`,
		entry.ID, entry.ScopeID, string(entry.JobType), string(entry.Status), now)
	if err != nil {
		return nil, &pipeline.QueueError{Op: "enqueue", Err: err}
	}
	return entry, nil
}

// ClaimNext flips the oldest PENDING entry to PROCESSING and returns it, or
// nil when the queue is drained. FOR UPDATE SKIP LOCKED guarantees exactly
// one winner per row.
func (s *QueueStore) ClaimNext(ctx context.Context) (*pipeline.QueueEntry, error) {
	row := s.db.QueryRow(ctx, `
		WITH next AS (
			SELECT id FROM queue_entries
			WHERE status = 'PENDING'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queue_entries q
		SET status = 'PROCESSING', updated_at = $1
		FROM next
		WHERE q.id = next.id
		RETURNING q.id, q.scope_id, q.job_type, q.status, q.error, q.created_at, q.updated_at`,
		s.clock.Now())

	entry, err := scanQueueEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &pipeline.QueueError{Op: "claim", Err: err}
	}
	return entry, nil
}

// ClaimAllPending atomically flips every PENDING entry to PROCESSING and
// returns them ordered by creation time.
func (s *QueueStore) ClaimAllPending(ctx context.Context) ([]pipeline.QueueEntry, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE queue_entries
		SET status = 'PROCESSING', updated_at = $1
		WHERE status = 'PENDING'
		RETURNING `+queueColumns,
		s.clock.Now())
	if err != nil {
		return nil, &pipeline.QueueError{Op: "claim_all", Err: err}
	}
	defer rows.Close()

	var entries []pipeline.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, &pipeline.QueueError{Op: "claim_all", Err: err}
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &pipeline.QueueError{Op: "claim_all", Err: err}
	}
	return entries, nil
}

// MarkStatus writes a terminal (or back-to-pending-free) status for a
// PROCESSING entry. Terminal entries are immutable: the WHERE guard makes a
// mark against COMPLETED/FAILED a no-op surfaced as ErrTerminalEntry.
func (s *QueueStore) MarkStatus(ctx context.Context, id string, status pipeline.QueueStatus, errMsg string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE queue_entries
		SET status = $2, error = $3, updated_at = $4
		WHERE id = $1 AND status = 'PROCESSING'`,
		id, string(status), errMsg, s.clock.Now())
	if err != nil {
		return &pipeline.QueueError{Op: "mark", Detail: id, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &pipeline.QueueError{Op: "mark", Detail: id, Err: pipeline.ErrTerminalEntry}
	}
	return nil
}

func (s *QueueStore) ListByScope(ctx context.Context, scopeID string) ([]pipeline.QueueEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+queueColumns+`
		FROM queue_entries
		WHERE scope_id = $1
		ORDER BY created_at DESC`,
		scopeID)
	if err != nil {
		return nil, &pipeline.QueueError{Op: "list", Detail: scopeID, Err: err}
	}
	defer rows.Close()

	var entries []pipeline.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, &pipeline.QueueError{Op: "list", Detail: scopeID, Err: err}
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanQueueEntry(row pgx.Row) (*pipeline.QueueEntry, error) {
	var e pipeline.QueueEntry
	var jobType, status string
	if err := row.Scan(&e.ID, &e.ScopeID, &jobType, &status, &e.Error, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.JobType = pipeline.JobType(jobType)
	e.Status = pipeline.QueueStatus(status)
	return &e, nil
}
