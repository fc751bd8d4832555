package ingest

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/pipeline"
)

// ContentIngestor is the slice of the ingestor URLScraper needs; tests
// substitute a fake.
type ContentIngestor interface {
	IngestContent(ctx context.Context, text, sourceURL, sourceType, scopeID, namespace string) ([]pipeline.RecordRef, error)
}

// URLScraper fetches, normalizes and ingests batches of URLs for a scope,
// recording per-URL outcomes in the tracking store.
type URLScraper struct {
	fetcher    pipeline.PageFetcher
	normalizer pipeline.Normalizer
	ingestor   ContentIngestor
	tracking   pipeline.TrackingStore
	archive    pipeline.Archive
	logger     *zap.Logger
}

func NewURLScraper(
	fetcher pipeline.PageFetcher,
	normalizer pipeline.Normalizer,
	ingestor ContentIngestor,
	tracking pipeline.TrackingStore,
	archive pipeline.Archive,
	logger *zap.Logger,
) *URLScraper {
	return &URLScraper{
		fetcher:    fetcher,
		normalizer: normalizer,
		ingestor:   ingestor,
		tracking:   tracking,
		archive:    archive,
		logger:     logger.Named("scraper"),
	}
}

// ScrapeAndTrack processes urls for one scope+source. Already-ingested URLs
// (scraped with vector ids) are skipped; previously failed ones are retried
// and their record updated in place. Per-URL failures are captured in the
// summary, never aborting the batch.
func (s *URLScraper) ScrapeAndTrack(ctx context.Context, urls []string, scopeID, source string) (pipeline.ScrapeSummary, error) {
	var sum pipeline.ScrapeSummary
	namespace := pipeline.MemoryNamespace(scopeID)

	for _, u := range urls {
		rec, err := s.tracking.Get(ctx, scopeID, source, u)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: tracking lookup: %v", u, err))
			continue
		}
		if rec != nil && rec.Scraped && len(rec.VectorIDs) > 0 {
			sum.Skipped++
			continue
		}

		ids, err := s.scrapeOne(ctx, u, source, namespace, scopeID)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", u, err))
			if terr := s.tracking.UpsertError(ctx, scopeID, source, u, err.Error()); terr != nil {
				s.logger.Error("tracking error write failed", zap.String("url", u), zap.Error(terr))
			}
			continue
		}
		if err := s.tracking.UpsertSuccess(ctx, scopeID, source, u, ids); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: tracking write: %v", u, err))
			continue
		}
		sum.Scraped++
	}

	s.logger.Info("scrape batch done",
		zap.String("scope", scopeID),
		zap.String("source", source),
		zap.Int("scraped", sum.Scraped),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", len(sum.Errors)))
	return sum, nil
}

func (s *URLScraper) scrapeOne(ctx context.Context, u, source, namespace, scopeID string) ([]string, error) {
	html, err := s.fetcher.FetchPage(ctx, u)
	if err != nil {
		return nil, err
	}

	if uri, aerr := s.archive.Save(ctx, archiveKey(scopeID, u), []byte(html)); aerr != nil {
		s.logger.Warn("raw page archive failed", zap.String("url", u), zap.Error(aerr))
	} else {
		s.logger.Debug("raw page archived", zap.String("uri", uri))
	}

	text := s.normalizer.ToText(html)
	if text == "" {
		return nil, pipeline.ErrNoContent
	}

	refs, err := s.ingestor.IngestContent(ctx, text, u, source, scopeID, namespace)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids, nil
}

func archiveKey(scopeID, pageURL string) string {
	return scopeID + "/" + url.QueryEscape(pageURL) + ".html"
}
