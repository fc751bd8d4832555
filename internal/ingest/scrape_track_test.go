package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

type fakeFetcher struct {
	pages  map[string]string
	calls  []string
	failOn map[string]bool
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if f.failOn[url] {
		return "", &pipeline.FetchError{URL: url, Err: errors.New("blocked")}
	}
	return f.pages[url], nil
}

func (f *fakeFetcher) FetchLinks(context.Context, string) ([]string, error) { return nil, nil }

type passthroughNormalizer struct{}

func (passthroughNormalizer) ToMarkdown(html string) string { return html }
func (passthroughNormalizer) ToText(html string) string     { return html }

type fakeContentIngestor struct {
	refs  []pipeline.RecordRef
	err   error
	calls int
	last  struct{ text, sourceURL, sourceType, scopeID, namespace string }
}

func (f *fakeContentIngestor) IngestContent(_ context.Context, text, sourceURL, sourceType, scopeID, namespace string) ([]pipeline.RecordRef, error) {
	f.calls++
	f.last = struct{ text, sourceURL, sourceType, scopeID, namespace string }{text, sourceURL, sourceType, scopeID, namespace}
	return f.refs, f.err
}

type memTracking struct {
	records map[string]*pipeline.ScrapedURLRecord
}

func newMemTracking() *memTracking {
	return &memTracking{records: make(map[string]*pipeline.ScrapedURLRecord)}
}

func trackKey(scopeID, source, url string) string { return scopeID + "|" + source + "|" + url }

func (m *memTracking) Get(_ context.Context, scopeID, source, url string) (*pipeline.ScrapedURLRecord, error) {
	return m.records[trackKey(scopeID, source, url)], nil
}

func (m *memTracking) UpsertSuccess(_ context.Context, scopeID, source, url string, vectorIDs []string) error {
	m.records[trackKey(scopeID, source, url)] = &pipeline.ScrapedURLRecord{
		ScopeID: scopeID, Source: source, URL: url,
		Scraped: true, VectorIDs: vectorIDs,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *memTracking) UpsertError(_ context.Context, scopeID, source, url, errMsg string) error {
	m.records[trackKey(scopeID, source, url)] = &pipeline.ScrapedURLRecord{
		ScopeID: scopeID, Source: source, URL: url,
		Scraped: false, Error: errMsg,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

type memArchive struct {
	saved map[string][]byte
}

func (m *memArchive) Save(_ context.Context, key string, html []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[key] = html
	return "mem://" + key, nil
}

func (m *memArchive) Close() error { return nil }

func newScraperForTest(fetcher *fakeFetcher, ing *fakeContentIngestor, tracking *memTracking) *URLScraper {
	return NewURLScraper(fetcher, passthroughNormalizer{}, ing, tracking, &memArchive{}, zap.NewNop())
}

func TestScrapeAndTrackHappyPath(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/a": "page a",
		"https://example.com/b": "page b",
	}}
	ing := &fakeContentIngestor{refs: []pipeline.RecordRef{{ID: "v1"}}}
	tracking := newMemTracking()
	s := newScraperForTest(fetcher, ing, tracking)

	sum, err := s.ScrapeAndTrack(context.Background(),
		[]string{"https://example.com/a", "https://example.com/b"}, "scope-a", "news")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scraped)
	assert.Zero(t, sum.Skipped)
	assert.Empty(t, sum.Errors)

	assert.Equal(t, "scope-a-memory", ing.last.namespace)
	assert.Equal(t, "scope-a", ing.last.scopeID)
	assert.Equal(t, "news", ing.last.sourceType)

	rec := tracking.records[trackKey("scope-a", "news", "https://example.com/a")]
	require.NotNil(t, rec)
	assert.True(t, rec.Scraped)
	assert.Equal(t, []string{"v1"}, rec.VectorIDs)
}

func TestScrapeAndTrackSkipsAlreadyIngested(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/a": "page"}}
	tracking := newMemTracking()
	require.NoError(t, tracking.UpsertSuccess(context.Background(),
		"scope-a", "news", "https://example.com/a", []string{"v1"}))
	s := newScraperForTest(fetcher, &fakeContentIngestor{}, tracking)

	sum, err := s.ScrapeAndTrack(context.Background(), []string{"https://example.com/a"}, "scope-a", "news")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Scraped)
	assert.Empty(t, fetcher.calls, "already-ingested url must not be refetched")
}

func TestScrapeAndTrackRetriesFailedURL(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/a": "page"}}
	ing := &fakeContentIngestor{refs: []pipeline.RecordRef{{ID: "v1"}}}
	tracking := newMemTracking()
	// Earlier run failed; the record exists but is not scraped.
	require.NoError(t, tracking.UpsertError(context.Background(),
		"scope-a", "news", "https://example.com/a", "blocked"))
	s := newScraperForTest(fetcher, ing, tracking)

	sum, err := s.ScrapeAndTrack(context.Background(), []string{"https://example.com/a"}, "scope-a", "news")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Scraped)
	assert.Zero(t, sum.Skipped)

	rec := tracking.records[trackKey("scope-a", "news", "https://example.com/a")]
	assert.True(t, rec.Scraped)
	assert.Empty(t, rec.Error)
}

func TestScrapeAndTrackFetchFailureRecorded(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{failOn: map[string]bool{"https://example.com/bad": true},
		pages: map[string]string{"https://example.com/good": "page"}}
	ing := &fakeContentIngestor{refs: []pipeline.RecordRef{{ID: "v1"}}}
	tracking := newMemTracking()
	s := newScraperForTest(fetcher, ing, tracking)

	sum, err := s.ScrapeAndTrack(context.Background(),
		[]string{"https://example.com/bad", "https://example.com/good"}, "scope-a", "news")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Scraped)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "https://example.com/bad")

	rec := tracking.records[trackKey("scope-a", "news", "https://example.com/bad")]
	require.NotNil(t, rec)
	assert.False(t, rec.Scraped)
	assert.NotEmpty(t, rec.Error)
}

func TestScrapeAndTrackEmptyContent(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/empty": ""}}
	tracking := newMemTracking()
	s := newScraperForTest(fetcher, &fakeContentIngestor{}, tracking)

	sum, err := s.ScrapeAndTrack(context.Background(), []string{"https://example.com/empty"}, "scope-a", "news")
	require.NoError(t, err)
	assert.Zero(t, sum.Scraped)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], pipeline.ErrNoContent.Error())
}

func TestArchiveKeyEscapesURL(t *testing.T) {
	t.Parallel()

	key := archiveKey("scope-a", "https://example.com/p?x=1")
	assert.Equal(t, "scope-a/https%3A%2F%2Fexample.com%2Fp%3Fx%3D1.html", key)
}
