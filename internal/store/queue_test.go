package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return "id-" + string(rune('0'+g.n))
}

func newQueueForTest(t *testing.T) (*QueueStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	clock := fixedClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	return NewQueueStore(mock, &seqIDs{}, clock, zap.NewNop()), mock
}

func TestEnqueue(t *testing.T) {
	t.Parallel()

	q, mock := newQueueForTest(t)
	mock.ExpectExec("INSERT INTO queue_entries").
		WithArgs("id-1", "scope-a", "NEWS", "PENDING", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry, err := q.Enqueue(context.Background(), "scope-a", pipeline.JobNews)
	require.NoError(t, err)
	assert.Equal(t, pipeline.QueuePending, entry.Status)
	assert.Equal(t, "id-1", entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextEmptyQueue(t *testing.T) {
	t.Parallel()

	q, mock := newQueueForTest(t)
	mock.ExpectQuery("WITH next AS").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "scope_id", "job_type", "status", "error", "created_at", "updated_at"}))

	entry, err := q.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestClaimNextReturnsProcessing(t *testing.T) {
	t.Parallel()

	q, mock := newQueueForTest(t)
	now := time.Now().UTC()
	mock.ExpectQuery("WITH next AS").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "scope_id", "job_type", "status", "error", "created_at", "updated_at"}).
			AddRow("e1", "scope-a", "CALENDAR", "PROCESSING", "", now, now))

	entry, err := q.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, pipeline.QueueProcessing, entry.Status)
	assert.Equal(t, pipeline.JobCalendar, entry.JobType)
}

func TestClaimAllPending(t *testing.T) {
	t.Parallel()

	q, mock := newQueueForTest(t)
	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE queue_entries").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "scope_id", "job_type", "status", "error", "created_at", "updated_at"}).
			AddRow("e1", "scope-a", "NEWS", "PROCESSING", "", now, now).
			AddRow("e2", "scope-b", "COMPLIANCE", "PROCESSING", "", now, now))

	entries, err := q.ClaimAllPending(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, pipeline.QueueProcessing, e.Status)
	}
}

func TestMarkStatusSuccess(t *testing.T) {
	t.Parallel()

	q, mock := newQueueForTest(t)
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs("e1", "COMPLETED", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, q.MarkStatus(context.Background(), "e1", pipeline.QueueCompleted, ""))
}

func TestMarkStatusTerminalEntryRejected(t *testing.T) {
	t.Parallel()

	q, mock := newQueueForTest(t)
	// No row matches id + PROCESSING: the entry is already terminal.
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs("e1", "FAILED", "late failure", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := q.MarkStatus(context.Background(), "e1", pipeline.QueueFailed, "late failure")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrTerminalEntry)
}

func TestListByScope(t *testing.T) {
	t.Parallel()

	q, mock := newQueueForTest(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM queue_entries").
		WithArgs("scope-a").
		WillReturnRows(pgxmock.NewRows([]string{"id", "scope_id", "job_type", "status", "error", "created_at", "updated_at"}).
			AddRow("e1", "scope-a", "NEWS", "COMPLETED", "", now, now))

	entries, err := q.ListByScope(context.Background(), "scope-a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, pipeline.QueueCompleted, entries[0].Status)
}
