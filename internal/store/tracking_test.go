package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTrackingForTest(t *testing.T) (*TrackingStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	clock := fixedClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	return NewTrackingStore(mock, clock, zap.NewNop()), mock
}

func TestTrackingGetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	s, mock := newTrackingForTest(t)
	mock.ExpectQuery("SELECT (.+) FROM scraped_urls").
		WithArgs("scope-a", "news", "https://example.com/x").
		WillReturnRows(pgxmock.NewRows([]string{"scope_id", "source", "url", "scraped", "vector_ids", "error", "created_at", "updated_at"}))

	rec, err := s.Get(context.Background(), "scope-a", "news", "https://example.com/x")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestTrackingGetExistingRecord(t *testing.T) {
	t.Parallel()

	s, mock := newTrackingForTest(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM scraped_urls").
		WithArgs("scope-a", "news", "https://example.com/x").
		WillReturnRows(pgxmock.NewRows([]string{"scope_id", "source", "url", "scraped", "vector_ids", "error", "created_at", "updated_at"}).
			AddRow("scope-a", "news", "https://example.com/x", true, []string{"v1", "v2"}, "", now, now))

	rec, err := s.Get(context.Background(), "scope-a", "news", "https://example.com/x")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Scraped)
	assert.Equal(t, []string{"v1", "v2"}, rec.VectorIDs)
}

func TestTrackingUpsertSuccess(t *testing.T) {
	t.Parallel()

	s, mock := newTrackingForTest(t)
	mock.ExpectExec("INSERT INTO scraped_urls").
		WithArgs("scope-a", "news", "https://example.com/x", []string{"v1"}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertSuccess(context.Background(), "scope-a", "news", "https://example.com/x", []string{"v1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingUpsertError(t *testing.T) {
	t.Parallel()

	s, mock := newTrackingForTest(t)
	mock.ExpectExec("INSERT INTO scraped_urls").
		WithArgs("scope-a", "news", "https://example.com/x", "fetch failed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertError(context.Background(), "scope-a", "news", "https://example.com/x", "fetch failed")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
