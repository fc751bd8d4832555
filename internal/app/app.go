// Package app initializes and holds the long-lived services, acting as the
// dependency injection container. Everything is constructed once here, fail
// fast, and torn down by Close.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/archive/gcs"
	"github.com/sourcehr/engine/internal/archive/noop"
	"github.com/sourcehr/engine/internal/clock/system"
	"github.com/sourcehr/engine/internal/config"
	"github.com/sourcehr/engine/internal/crawl"
	"github.com/sourcehr/engine/internal/extract"
	"github.com/sourcehr/engine/internal/fetch"
	"github.com/sourcehr/engine/internal/id/uuid"
	"github.com/sourcehr/engine/internal/ingest"
	"github.com/sourcehr/engine/internal/llm"
	"github.com/sourcehr/engine/internal/markdown"
	"github.com/sourcehr/engine/internal/metrics"
	"github.com/sourcehr/engine/internal/pipeline"
	"github.com/sourcehr/engine/internal/publisher/memory"
	"github.com/sourcehr/engine/internal/publisher/pubsub"
	"github.com/sourcehr/engine/internal/store"
	"github.com/sourcehr/engine/internal/vector"
	"github.com/sourcehr/engine/internal/worker"
)

// App holds every long-lived service.
type App struct {
	Logger *zap.Logger
	Cfg    *config.Config

	Pool      *pgxpool.Pool
	Queue     *store.QueueStore
	Tracking  *store.TrackingStore
	Crawls    *store.CrawlStoreImpl
	Taxonomy  *store.TaxonomyStoreImpl
	Vector    *vector.Store
	Publisher pipeline.Publisher
	Archive   pipeline.Archive

	Normalizer *markdown.Converter
	Fetcher    *fetch.Fetcher
	Ingestor   *ingest.Ingestor
	Scraper    *ingest.URLScraper

	WorkerPool *worker.Pool
	CrawlSweep *worker.CrawlSweep
	URLSweep   *worker.URLSweep

	Clock pipeline.Clock
	IDs   pipeline.IDGenerator
}

// New builds the container. Any provider failure aborts startup.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{
		Logger: logger,
		Cfg:    cfg,
		Clock:  system.Clock{},
		IDs:    uuid.Generator{},
	}

	logger.Info("initializing services")

	pool, err := store.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a.Pool = pool
	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	a.Queue = store.NewQueueStore(pool, a.IDs, a.Clock, logger)
	a.Tracking = store.NewTrackingStore(pool, a.Clock, logger)
	a.Crawls = store.NewCrawlStore(pool, a.IDs, a.Clock, logger)
	a.Taxonomy = store.NewTaxonomyStore(pool, logger)

	a.Vector, err = vector.NewStore(vector.Options{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		Collection: cfg.Qdrant.Collection,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Dimension:  cfg.Embedding.Dimension,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize vector store: %w", err)
	}
	if err := a.Vector.EnsureCollection(ctx); err != nil {
		a.Close()
		return nil, err
	}

	llmClient, err := llm.New(llm.Options{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize llm client: %w", err)
	}
	embedder, err := llm.NewEmbedder(llm.EmbedderOptions{
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	switch cfg.Publisher.Provider {
	case "pubsub":
		a.Publisher, err = pubsub.New(ctx, cfg.Publisher.ProjectID, cfg.Publisher.TopicID, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize publisher: %w", err)
		}
	case "memory":
		a.Publisher = memory.New()
	case "noop", "":
		a.Publisher = memory.New()
	default:
		a.Close()
		return nil, fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}

	switch cfg.Archive.Provider {
	case "gcs":
		a.Archive, err = gcs.New(ctx, cfg.Archive.Bucket, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize archive: %w", err)
		}
	case "noop", "":
		a.Archive = noop.New()
	default:
		a.Close()
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}

	a.Normalizer = markdown.New(logger)
	a.Fetcher = fetch.New(a.primaryStrategy(), a.newBrowser(), logger)

	extractor := extract.New(llmClient, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, logger)
	calendarExtractor := extract.NewCalendar(llmClient, cfg.Ingest.ChunkSize, logger)

	a.Ingestor = ingest.New(extractor, a.Taxonomy, embedder, a.Vector, a.Publisher, a.IDs, a.Clock, logger)
	a.Scraper = ingest.NewURLScraper(a.Fetcher, a.Normalizer, a.Ingestor, a.Tracking, a.Archive, logger)

	producers := worker.Producers{
		News:       worker.NewSourceScrapeProducer(a.Scraper, "news", cfg.Producers.NewsSeeds, logger),
		Compliance: worker.NewSourceScrapeProducer(a.Scraper, "compliance", cfg.Producers.ComplianceSeeds, logger),
		LawChange:  worker.NewSourceScrapeProducer(a.Scraper, "law_change", cfg.Producers.LawChangeSeeds, logger),
		Calendar: worker.NewCalendarProducer(
			a.Fetcher, a.Normalizer, calendarExtractor, embedder, a.Vector,
			a.IDs, a.Clock, cfg.Producers.CalendarSeeds, logger),
	}
	a.WorkerPool = worker.NewPool(a.Queue, producers, cfg.Worker.PoolSize, logger)

	a.CrawlSweep = worker.NewCrawlSweep(a.Crawls, a.newCrawlRun, a.Clock, logger)
	a.URLSweep = worker.NewURLSweep(
		a.Crawls, a.Fetcher, a.Normalizer, a.Ingestor,
		cfg.Ingest.CrawlNamespace, a.Clock, logger)

	logger.Info("services initialized")
	return a, nil
}

func (a *App) primaryStrategy() pipeline.FetchStrategy {
	if a.Cfg.Spider.APIKey != "" {
		return fetch.NewSpider(a.Cfg.Spider.Endpoint, a.Cfg.Spider.APIKey, a.Cfg.Spider.Timeout, a.Logger)
	}
	a.Logger.Info("no scrape API key configured, using direct HTTP strategy")
	return fetch.NewDirect(a.Cfg.Spider.Timeout, a.Logger)
}

func (a *App) newBrowser() *fetch.Browser {
	return fetch.NewBrowser(fetch.BrowserOptions{
		RemoteURL:      a.Cfg.Browser.RemoteURL,
		ConnectRetries: a.Cfg.Browser.ConnectRetries,
		BackoffStep:    a.Cfg.Browser.BackoffStep,
		BackoffCap:     a.Cfg.Browser.BackoffCap,
		NavTimeout:     a.Cfg.Browser.NavTimeout,
		LocalFallback:  a.Cfg.Browser.LocalFallback,
	}, a.Logger)
}

// newCrawlRun builds a crawler with its own browser session for one run.
// The returned cleanup closes that session.
func (a *App) newCrawlRun() (pipeline.Crawler, func()) {
	browser := a.newBrowser()
	fetcher := fetch.New(a.primaryStrategy(), browser, a.Logger)
	crawler := crawl.New(fetcher, a.Cfg.Worker.CrawlWorkers, a.Logger,
		crawl.WithRateLimit(a.Cfg.Crawl.RPS, a.Cfg.Crawl.Burst),
		crawl.WithSkipPatterns(a.Cfg.Crawl.SkipPatterns))
	return crawler, browser.Close
}

// Close tears everything down in reverse dependency order. Safe to call on
// a partially constructed App.
func (a *App) Close() {
	a.Logger.Info("shutting down services")
	if a.Fetcher != nil {
		a.Fetcher.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("close publisher", zap.Error(err))
		}
	}
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			a.Logger.Warn("close archive", zap.Error(err))
		}
	}
	if a.Vector != nil {
		if err := a.Vector.Close(); err != nil {
			a.Logger.Warn("close vector store", zap.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	_ = a.Logger.Sync()
}
