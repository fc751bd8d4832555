package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/ingest"
	"github.com/sourcehr/engine/internal/pipeline"
)

// CrawlSweep claims one PENDING crawl job per tick and runs the frontier
// traversal for it. The crawler (and its pooled browser session) is built
// per run and torn down when the run ends, so sessions never leak across
// unrelated crawls.
type CrawlSweep struct {
	store      pipeline.CrawlStore
	newCrawler func() (pipeline.Crawler, func())
	clock      pipeline.Clock
	logger     *zap.Logger
}

func NewCrawlSweep(store pipeline.CrawlStore, newCrawler func() (pipeline.Crawler, func()), clock pipeline.Clock, logger *zap.Logger) *CrawlSweep {
	return &CrawlSweep{store: store, newCrawler: newCrawler, clock: clock, logger: logger.Named("crawlsweep")}
}

func (s *CrawlSweep) RunOnce(ctx context.Context) {
	job, err := s.store.ClaimPendingJob(ctx)
	if err != nil {
		s.logger.Error("crawl job claim failed", zap.Error(err))
		return
	}
	if job == nil {
		return
	}
	s.logger.Info("crawl job claimed",
		zap.String("job", job.ID),
		zap.String("root", job.RootURL))

	crawler, done := s.newCrawler()
	defer done()

	urls, err := crawler.Crawl(ctx, job.RootURL, job.MaxDepth, job.MaxURLs)
	if err != nil {
		if merr := s.store.MarkJob(ctx, job.ID, pipeline.CrawlFailed, err.Error()); merr != nil {
			s.logger.Error("mark crawl job failed", zap.String("job", job.ID), zap.Error(merr))
		}
		return
	}

	added, err := s.store.AddURLs(ctx, job.ID, urls, s.clock.Now())
	if err != nil {
		if merr := s.store.MarkJob(ctx, job.ID, pipeline.CrawlFailed, err.Error()); merr != nil {
			s.logger.Error("mark crawl job failed", zap.String("job", job.ID), zap.Error(merr))
		}
		return
	}
	if err := s.store.MarkJob(ctx, job.ID, pipeline.CrawlSuccess, ""); err != nil {
		s.logger.Error("mark crawl job failed", zap.String("job", job.ID), zap.Error(err))
		return
	}
	s.logger.Info("crawl job finished",
		zap.String("job", job.ID),
		zap.Int("discovered", len(urls)),
		zap.Int("new", added))
}

// URLSweep drains the per-URL backlog a crawl run accumulated: claim one
// PENDING URL, fetch and ingest it, and record both state machines. Failed
// URLs stay FAILED until a fresh crawl re-discovers them.
type URLSweep struct {
	store      pipeline.CrawlStore
	fetcher    pipeline.PageFetcher
	normalizer pipeline.Normalizer
	ingestor   ingest.ContentIngestor
	namespace  string
	clock      pipeline.Clock
	logger     *zap.Logger
}

func NewURLSweep(
	store pipeline.CrawlStore,
	fetcher pipeline.PageFetcher,
	normalizer pipeline.Normalizer,
	ingestor ingest.ContentIngestor,
	namespace string,
	clock pipeline.Clock,
	logger *zap.Logger,
) *URLSweep {
	return &URLSweep{
		store:      store,
		fetcher:    fetcher,
		normalizer: normalizer,
		ingestor:   ingestor,
		namespace:  namespace,
		clock:      clock,
		logger:     logger.Named("urlsweep"),
	}
}

func (s *URLSweep) RunOnce(ctx context.Context) {
	cu, err := s.store.ClaimPendingURL(ctx)
	if err != nil {
		s.logger.Error("crawl url claim failed", zap.Error(err))
		return
	}
	if cu == nil {
		return
	}

	html, err := s.fetcher.FetchPage(ctx, cu.URL)
	if err != nil {
		s.markCrawl(ctx, cu.ID, pipeline.CrawlFailed, err.Error())
		return
	}
	s.markCrawl(ctx, cu.ID, pipeline.CrawlSuccess, "")

	text := s.normalizer.ToText(html)
	if text == "" {
		s.markIngestion(ctx, cu.ID, pipeline.IngestionFailed, nil)
		return
	}

	// The crawl job is the owning scope for frontier-discovered pages.
	refs, err := s.ingestor.IngestContent(ctx, text, cu.URL, "crawl", cu.JobID, s.namespace)
	if err != nil {
		s.logger.Warn("crawl url ingestion failed",
			zap.String("url", cu.URL),
			zap.Error(err))
		s.markIngestion(ctx, cu.ID, pipeline.IngestionFailed, nil)
		return
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	s.markIngestion(ctx, cu.ID, pipeline.IngestionSuccess, ids)
}

func (s *URLSweep) markCrawl(ctx context.Context, id string, status pipeline.CrawlStatus, errMsg string) {
	if err := s.store.MarkURLCrawl(ctx, id, status, errMsg); err != nil {
		s.logger.Error("mark crawl url failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *URLSweep) markIngestion(ctx context.Context, id string, status pipeline.IngestionStatus, ids []string) {
	if err := s.store.MarkURLIngestion(ctx, id, status, ids, s.clock.Now()); err != nil {
		s.logger.Error("mark url ingestion failed", zap.String("id", id), zap.Error(err))
	}
}
