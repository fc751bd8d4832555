// Package ingest drives normalized text through extraction, embedding and
// the vector store, and tracks per-URL scrape state for dedup.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/metrics"
	"github.com/sourcehr/engine/internal/pipeline"
)

// Ingestor turns one document's text into taxonomy-tagged vector records.
type Ingestor struct {
	extractor pipeline.Extractor
	taxonomy  pipeline.TaxonomyStore
	embedder  pipeline.Embedder
	vectors   pipeline.VectorStore
	publisher pipeline.Publisher
	ids       pipeline.IDGenerator
	clock     pipeline.Clock
	logger    *zap.Logger
}

func New(
	extractor pipeline.Extractor,
	taxonomy pipeline.TaxonomyStore,
	embedder pipeline.Embedder,
	vectors pipeline.VectorStore,
	publisher pipeline.Publisher,
	ids pipeline.IDGenerator,
	clock pipeline.Clock,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		extractor: extractor,
		taxonomy:  taxonomy,
		embedder:  embedder,
		vectors:   vectors,
		publisher: publisher,
		ids:       ids,
		clock:     clock,
		logger:    logger.Named("ingestor"),
	}
}

// IngestContent extracts events from text, embeds each, and upserts into the
// namespace. A failed record is logged and skipped; the rest of the batch
// still lands. Returns the id/metadata pairs of everything upserted so the
// caller can persist them for later point deletion. scopeID identifies the
// owning scope on the published ingestion event.
func (i *Ingestor) IngestContent(ctx context.Context, text, sourceURL, sourceType, scopeID, namespace string) ([]pipeline.RecordRef, error) {
	tax, err := i.taxonomy.Load(ctx)
	if err != nil {
		return nil, err
	}

	events, err := i.extractor.Extract(ctx, text, tax)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		i.logger.Debug("no events extracted", zap.String("source", sourceURL))
		return nil, nil
	}

	i.observeNewSlugs(ctx, events, tax)

	now := i.clock.Now()
	var refs []pipeline.RecordRef
	for _, ev := range events {
		ref, err := i.upsertEvent(ctx, ev, sourceURL, sourceType, namespace, now)
		if err != nil {
			if metrics.IngestRecordsTotal != nil {
				metrics.IngestRecordsTotal.WithLabelValues("error").Inc()
			}
			i.logger.Warn("record upsert failed, skipping",
				zap.String("source", sourceURL),
				zap.Error(err))
			continue
		}
		if metrics.IngestRecordsTotal != nil {
			metrics.IngestRecordsTotal.WithLabelValues("ok").Inc()
		}
		refs = append(refs, ref)
	}

	if len(refs) > 0 {
		i.publish(ctx, scopeID, sourceURL, namespace, len(refs), now)
	}
	return refs, nil
}

func (i *Ingestor) upsertEvent(ctx context.Context, ev pipeline.ExtractedEvent, sourceURL, sourceType, namespace string, now time.Time) (pipeline.RecordRef, error) {
	vec, err := i.embedder.Embed(ctx, ev.ChunkText)
	if err != nil {
		return pipeline.RecordRef{}, err
	}

	metadata := map[string]any{
		"chunk_text":         ev.ChunkText,
		"region":             ev.Region,
		"location":           ev.Location,
		"primary_industry":   ev.PrimaryIndustry,
		"secondary_industry": ev.SecondaryIndustry,
		"topic":              ev.Topic,
		"discussed_at":       ev.DiscussedAt,
		"published_at":       ev.PublishedAt,
		"source_url":         sourceURL,
		"source_type":        sourceType,
		"ingested_at":        now.Format(time.RFC3339),
	}

	rec := pipeline.VectorRecord{
		ID:        i.ids.NewID(),
		Vector:    vec,
		Namespace: namespace,
		Metadata:  metadata,
	}
	if err := i.vectors.Upsert(ctx, rec); err != nil {
		return pipeline.RecordRef{}, err
	}
	return pipeline.RecordRef{ID: rec.ID, Metadata: metadata}, nil
}

// observeNewSlugs feeds secondary-industry and topic slugs the vocabulary
// has not seen back into the taxonomy store. Failure here never blocks
// ingestion.
func (i *Ingestor) observeNewSlugs(ctx context.Context, events []pipeline.ExtractedEvent, tax pipeline.Taxonomy) {
	var industries, topics []string
	for _, ev := range events {
		if ev.SecondaryIndustry != "" && !tax.HasIndustry(ev.SecondaryIndustry) {
			industries = append(industries, ev.SecondaryIndustry)
		}
		if ev.Topic != "" && !tax.HasTopic(ev.Topic) {
			topics = append(topics, ev.Topic)
		}
	}
	if len(industries) == 0 && len(topics) == 0 {
		return
	}
	if err := i.taxonomy.Observe(ctx, industries, topics); err != nil {
		i.logger.Warn("taxonomy observe failed", zap.Error(err))
	}
}

func (i *Ingestor) publish(ctx context.Context, scopeID, sourceURL, namespace string, records int, now time.Time) {
	ev := pipeline.IngestionEvent{
		ScopeID:   scopeID,
		SourceURL: sourceURL,
		Namespace: namespace,
		Records:   records,
		At:        now,
	}
	if err := i.publisher.Publish(ctx, ev); err != nil {
		i.logger.Warn("ingestion event publish failed",
			zap.String("source", sourceURL),
			zap.Error(err))
	}
}
