// Package pipeline defines the core domain types and the narrow interfaces
// every stage of the acquisition pipeline is written against. Implementations
// live in their own packages and are wired together by internal/app.
package pipeline

import (
	"context"
	"time"
)

// PageFetcher fetches raw HTML for one URL, trying the primary remote
// strategy first and falling back to a headless browser session.
type PageFetcher interface {
	// FetchPage returns raw HTML. Both strategies exhausted yields a
	// *FetchError.
	FetchPage(ctx context.Context, url string) (string, error)
	// FetchLinks returns the absolute anchor hrefs found on the page.
	FetchLinks(ctx context.Context, url string) ([]string, error)
}

// FetchStrategy is one way of turning a URL into HTML. The spider API and
// the direct HTTP client both satisfy it.
type FetchStrategy interface {
	Name() string
	FetchHTML(ctx context.Context, url string) (string, error)
}

// BrowserSession is the pooled headless-browser fallback. One session per
// crawl run; Close releases the underlying allocator.
type BrowserSession interface {
	HTML(ctx context.Context, url string) (string, error)
	Links(ctx context.Context, url string) ([]string, error)
	Close()
}

// Normalizer converts fetched HTML into markdown and plain text. Conversion
// failure yields "" rather than an error.
type Normalizer interface {
	ToMarkdown(html string) string
	ToText(html string) string
}

// Crawler performs one bounded breadth-first traversal of a root domain.
type Crawler interface {
	Crawl(ctx context.Context, rootURL string, maxDepth, maxURLs int) ([]string, error)
}

// Extractor maps normalized text onto the controlled taxonomy.
type Extractor interface {
	Extract(ctx context.Context, text string, tax Taxonomy) ([]ExtractedEvent, error)
}

// CalendarExtractor is the evidence-guardrailed single-source variant.
type CalendarExtractor interface {
	ExtractCalendar(ctx context.Context, sourceURL, text string) ([]CalendarEvent, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorStore is the namespaced point store.
type VectorStore interface {
	Upsert(ctx context.Context, rec VectorRecord) error
	Delete(ctx context.Context, ids []string) error
	// DeleteNamespace is idempotent: an empty or unknown namespace is
	// success.
	DeleteNamespace(ctx context.Context, namespace string) error
	Close() error
}

// TrackingStore is the dedup store keyed by (scopeID, source, url).
type TrackingStore interface {
	Get(ctx context.Context, scopeID, source, url string) (*ScrapedURLRecord, error)
	UpsertSuccess(ctx context.Context, scopeID, source, url string, vectorIDs []string) error
	UpsertError(ctx context.Context, scopeID, source, url, errMsg string) error
}

// JobQueue is the durable claim-based queue. ClaimNext and ClaimAllPending
// atomically flip PENDING entries to PROCESSING; two concurrent callers can
// never both receive the same entry.
type JobQueue interface {
	Enqueue(ctx context.Context, scopeID string, jobType JobType) (*QueueEntry, error)
	ClaimNext(ctx context.Context) (*QueueEntry, error)
	ClaimAllPending(ctx context.Context) ([]QueueEntry, error)
	// MarkStatus refuses to move a terminal entry; retries need a fresh
	// Enqueue.
	MarkStatus(ctx context.Context, id string, status QueueStatus, errMsg string) error
	ListByScope(ctx context.Context, scopeID string) ([]QueueEntry, error)
}

// CrawlStore persists crawl jobs and their discovered URLs.
type CrawlStore interface {
	CreateJob(ctx context.Context, job *CrawlJob) error
	GetJob(ctx context.Context, id string) (*CrawlJob, error)
	ClaimPendingJob(ctx context.Context) (*CrawlJob, error)
	MarkJob(ctx context.Context, id string, status CrawlStatus, errMsg string) error
	AddURLs(ctx context.Context, jobID string, urls []string, at time.Time) (int, error)
	ClaimPendingURL(ctx context.Context) (*CrawlableURL, error)
	MarkURLCrawl(ctx context.Context, id string, status CrawlStatus, errMsg string) error
	MarkURLIngestion(ctx context.Context, id string, status IngestionStatus, vectorIDs []string, at time.Time) error
	Summary(ctx context.Context, jobID string) (*CrawlSummary, error)
	ClearURLs(ctx context.Context, jobID string) ([]string, error)
}

// TaxonomyStore serves and grows the controlled vocabularies.
type TaxonomyStore interface {
	Load(ctx context.Context) (Taxonomy, error)
	// Observe records industry/topic slugs seen in extracted events that are
	// not yet part of the vocabulary.
	Observe(ctx context.Context, industries, topics []string) error
}

// Publisher emits ingestion-completed events. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev IngestionEvent) error
	Close() error
}

// Archive stores raw fetched HTML before normalization.
type Archive interface {
	Save(ctx context.Context, key string, html []byte) (string, error)
	Close() error
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique record ids.
type IDGenerator interface {
	NewID() string
}
