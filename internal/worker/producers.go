package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

// Scraper is the slice of the URL scraper the producers need.
type Scraper interface {
	ScrapeAndTrack(ctx context.Context, urls []string, scopeID, source string) (pipeline.ScrapeSummary, error)
}

// SourceScrapeProducer handles the scrape-driven job types (news,
// compliance, law-change): it runs the configured seed URLs through
// scrape-and-track under the job's source label, relying on the tracking
// store to skip what earlier runs already ingested.
type SourceScrapeProducer struct {
	scraper Scraper
	source  string
	seeds   []string
	logger  *zap.Logger
}

func NewSourceScrapeProducer(scraper Scraper, source string, seeds []string, logger *zap.Logger) *SourceScrapeProducer {
	return &SourceScrapeProducer{
		scraper: scraper,
		source:  source,
		seeds:   seeds,
		logger:  logger.Named(source),
	}
}

func (p *SourceScrapeProducer) Produce(ctx context.Context, scopeID string) error {
	if len(p.seeds) == 0 {
		p.logger.Debug("no seed urls configured, nothing to do", zap.String("scope", scopeID))
		return nil
	}
	sum, err := p.scraper.ScrapeAndTrack(ctx, p.seeds, scopeID, p.source)
	if err != nil {
		return err
	}
	if sum.Scraped == 0 && len(sum.Errors) > 0 {
		return fmt.Errorf("all %d urls failed, first: %s", len(sum.Errors), sum.Errors[0])
	}
	return nil
}

// CalendarProducer runs the evidence-guardrailed path: fetch each configured
// calendar source, extract guardrailed events, and upsert them into the
// scope's memory namespace. Per-source failures are tolerated as long as at
// least one source succeeds.
type CalendarProducer struct {
	fetcher    pipeline.PageFetcher
	normalizer pipeline.Normalizer
	extractor  pipeline.CalendarExtractor
	embedder   pipeline.Embedder
	vectors    pipeline.VectorStore
	ids        pipeline.IDGenerator
	clock      pipeline.Clock
	seeds      []string
	logger     *zap.Logger
}

func NewCalendarProducer(
	fetcher pipeline.PageFetcher,
	normalizer pipeline.Normalizer,
	extractor pipeline.CalendarExtractor,
	embedder pipeline.Embedder,
	vectors pipeline.VectorStore,
	ids pipeline.IDGenerator,
	clock pipeline.Clock,
	seeds []string,
	logger *zap.Logger,
) *CalendarProducer {
	return &CalendarProducer{
		fetcher:    fetcher,
		normalizer: normalizer,
		extractor:  extractor,
		embedder:   embedder,
		vectors:    vectors,
		ids:        ids,
		clock:      clock,
		seeds:      seeds,
		logger:     logger.Named("calendar"),
	}
}

func (p *CalendarProducer) Produce(ctx context.Context, scopeID string) error {
	if len(p.seeds) == 0 {
		return nil
	}
	namespace := pipeline.MemoryNamespace(scopeID)

	var firstErr error
	succeeded := 0
	for _, src := range p.seeds {
		if err := p.produceSource(ctx, src, namespace); err != nil {
			p.logger.Warn("calendar source failed",
				zap.String("source", src),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded++
	}
	if succeeded == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

func (p *CalendarProducer) produceSource(ctx context.Context, src, namespace string) error {
	html, err := p.fetcher.FetchPage(ctx, src)
	if err != nil {
		return err
	}
	text := p.normalizer.ToText(html)
	if text == "" {
		return pipeline.ErrNoContent
	}

	events, err := p.extractor.ExtractCalendar(ctx, src, text)
	if err != nil {
		return err
	}

	now := p.clock.Now()
	for _, ev := range events {
		vec, err := p.embedder.Embed(ctx, ev.Description)
		if err != nil {
			p.logger.Warn("calendar event embed failed", zap.String("title", ev.Title), zap.Error(err))
			continue
		}
		rec := pipeline.VectorRecord{
			ID:        p.ids.NewID(),
			Vector:    vec,
			Namespace: namespace,
			Metadata:  calendarMetadata(ev, now),
		}
		if err := p.vectors.Upsert(ctx, rec); err != nil {
			p.logger.Warn("calendar event upsert failed", zap.String("title", ev.Title), zap.Error(err))
		}
	}
	return nil
}

func calendarMetadata(ev pipeline.CalendarEvent, now time.Time) map[string]any {
	md := map[string]any{
		"title":                ev.Title,
		"description":          ev.Description,
		"description_evidence": ev.DescriptionEvidence,
		"region":               ev.Region,
		"topic":                ev.Topic,
		"source_url":           ev.SourceURL,
		"source_type":          "calendar",
		"ingested_at":          now.Format(time.RFC3339),
	}
	if ev.EffectiveDate != nil {
		md["effective_date"] = *ev.EffectiveDate
		md["date_evidence"] = ev.DateEvidence
	}
	return md
}
