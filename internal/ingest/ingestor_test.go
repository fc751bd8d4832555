package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

type fakeExtractor struct {
	events []pipeline.ExtractedEvent
	err    error
}

func (f *fakeExtractor) Extract(context.Context, string, pipeline.Taxonomy) ([]pipeline.ExtractedEvent, error) {
	return f.events, f.err
}

type fakeTaxonomy struct {
	tax                pipeline.Taxonomy
	observedIndustries []string
	observedTopics     []string
}

func (f *fakeTaxonomy) Load(context.Context) (pipeline.Taxonomy, error) { return f.tax, nil }

func (f *fakeTaxonomy) Observe(_ context.Context, industries, topics []string) error {
	f.observedIndustries = append(f.observedIndustries, industries...)
	f.observedTopics = append(f.observedTopics, topics...)
	return nil
}

type fakeEmbedder struct {
	failOn map[string]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.failOn[text] {
		return nil, errors.New("embedding unavailable")
	}
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

type fakeVectors struct {
	mu       sync.Mutex
	upserted []pipeline.VectorRecord
	deleted  []string
}

func (f *fakeVectors) Upsert(_ context.Context, rec pipeline.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, rec)
	return nil
}

func (f *fakeVectors) Delete(_ context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeVectors) DeleteNamespace(context.Context, string) error { return nil }
func (f *fakeVectors) Close() error                                  { return nil }

type fakePublisher struct {
	events []pipeline.IngestionEvent
}

func (f *fakePublisher) Publish(_ context.Context, ev pipeline.IngestionEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("rec-%d", g.n)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newIngestorForTest(extractor pipeline.Extractor, tax *fakeTaxonomy, emb *fakeEmbedder, vec *fakeVectors, pub *fakePublisher) *Ingestor {
	return New(extractor, tax, emb, vec, pub, &seqIDs{},
		fixedClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}, zap.NewNop())
}

func TestIngestContentUpsertsEveryEvent(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{events: []pipeline.ExtractedEvent{
		{ChunkText: "wage increase", Region: "us-ca", Topic: "minimum-wage"},
		{ChunkText: "leave policy", Region: "us-ny", Topic: "paid-leave"},
	}}
	tax := &fakeTaxonomy{tax: pipeline.Taxonomy{
		Regions: []string{"us-ca", "us-ny"},
		Topics:  []string{"minimum-wage", "paid-leave"},
	}}
	vec := &fakeVectors{}
	pub := &fakePublisher{}
	ing := newIngestorForTest(extractor, tax, &fakeEmbedder{}, vec, pub)

	refs, err := ing.IngestContent(context.Background(), "text", "https://example.com/p", "news", "scope-a", "scope-a-memory")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Len(t, vec.upserted, 2)

	assert.Equal(t, "scope-a-memory", vec.upserted[0].Namespace)
	assert.Equal(t, "wage increase", vec.upserted[0].Metadata["chunk_text"])
	assert.Equal(t, "news", vec.upserted[0].Metadata["source_type"])
	assert.Equal(t, "https://example.com/p", vec.upserted[0].Metadata["source_url"])

	require.Len(t, pub.events, 1)
	assert.Equal(t, 2, pub.events[0].Records)
	assert.Equal(t, "scope-a", pub.events[0].ScopeID)
	assert.Equal(t, "scope-a-memory", pub.events[0].Namespace)
}

func TestIngestContentPublishCarriesScope(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{events: []pipeline.ExtractedEvent{{ChunkText: "x"}}}
	pub := &fakePublisher{}
	ing := newIngestorForTest(extractor, &fakeTaxonomy{}, &fakeEmbedder{}, &fakeVectors{}, pub)

	_, err := ing.IngestContent(context.Background(), "text", "https://example.com/p", "news",
		"scope-b", pipeline.MemoryNamespace("scope-b"))
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "scope-b", pub.events[0].ScopeID)
	assert.Equal(t, "https://example.com/p", pub.events[0].SourceURL)
}

func TestIngestContentNoEvents(t *testing.T) {
	t.Parallel()

	vec := &fakeVectors{}
	pub := &fakePublisher{}
	ing := newIngestorForTest(&fakeExtractor{}, &fakeTaxonomy{}, &fakeEmbedder{}, vec, pub)

	refs, err := ing.IngestContent(context.Background(), "boilerplate only", "https://example.com", "news", "scope-a", "ns")
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Empty(t, vec.upserted)
	assert.Empty(t, pub.events, "nothing ingested means nothing published")
}

func TestIngestContentRecordFailureIsIsolated(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{events: []pipeline.ExtractedEvent{
		{ChunkText: "good one"},
		{ChunkText: "bad one"},
		{ChunkText: "good two"},
	}}
	emb := &fakeEmbedder{failOn: map[string]bool{"bad one": true}}
	vec := &fakeVectors{}
	ing := newIngestorForTest(extractor, &fakeTaxonomy{}, emb, vec, &fakePublisher{})

	refs, err := ing.IngestContent(context.Background(), "text", "https://example.com", "news", "scope-a", "ns")
	require.NoError(t, err)
	assert.Len(t, refs, 2, "the failed record is skipped, the rest land")
	assert.Len(t, vec.upserted, 2)
}

func TestIngestContentExtractionErrorAborts(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{err: errors.New("model unreachable")}
	vec := &fakeVectors{}
	ing := newIngestorForTest(extractor, &fakeTaxonomy{}, &fakeEmbedder{}, vec, &fakePublisher{})

	_, err := ing.IngestContent(context.Background(), "text", "https://example.com", "news", "scope-a", "ns")
	require.Error(t, err)
	assert.Empty(t, vec.upserted)
}

func TestIngestContentObservesNewSlugs(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{events: []pipeline.ExtractedEvent{
		{ChunkText: "x", SecondaryIndustry: "quantum-logistics", Topic: "minimum-wage"},
	}}
	tax := &fakeTaxonomy{tax: pipeline.Taxonomy{
		Industries: []string{"retail"},
		Topics:     []string{"minimum-wage"},
	}}
	ing := newIngestorForTest(extractor, tax, &fakeEmbedder{}, &fakeVectors{}, &fakePublisher{})

	_, err := ing.IngestContent(context.Background(), "text", "https://example.com", "news", "scope-a", "ns")
	require.NoError(t, err)
	assert.Equal(t, []string{"quantum-logistics"}, tax.observedIndustries)
	assert.Empty(t, tax.observedTopics, "known topics are not re-observed")
}
