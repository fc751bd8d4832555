package pipeline

import "time"

// CrawlStatus tracks a crawl job or a discovered URL through the fetch side
// of the pipeline.
type CrawlStatus string

const (
	CrawlPending    CrawlStatus = "PENDING"
	CrawlInProgress CrawlStatus = "IN_PROGRESS"
	CrawlSuccess    CrawlStatus = "SUCCESS"
	CrawlFailed     CrawlStatus = "FAILED"
)

// IngestionStatus is the parallel state machine for the ingest side of a
// discovered URL. It only advances once crawlStatus reached SUCCESS.
type IngestionStatus string

const (
	IngestionPending IngestionStatus = "PENDING"
	IngestionSuccess IngestionStatus = "SUCCESS"
	IngestionFailed  IngestionStatus = "FAILED"
)

// QueueStatus is the lifecycle of a queue entry. PENDING moves to PROCESSING
// via an atomic claim; COMPLETED and FAILED are terminal.
type QueueStatus string

const (
	QueuePending    QueueStatus = "PENDING"
	QueueProcessing QueueStatus = "PROCESSING"
	QueueCompleted  QueueStatus = "COMPLETED"
	QueueFailed     QueueStatus = "FAILED"
)

// JobType is the closed set of generation jobs the queue carries. Dispatch
// over this type is an exhaustive switch; an unknown value is an error, not
// a silently dropped entry.
type JobType string

const (
	JobNews       JobType = "NEWS"
	JobCalendar   JobType = "CALENDAR"
	JobCompliance JobType = "COMPLIANCE"
	JobLawChange  JobType = "LAW_CHANGE"
)

// ParseJobType validates a wire-format job type against the closed set.
func ParseJobType(s string) (JobType, error) {
	switch JobType(s) {
	case JobNews, JobCalendar, JobCompliance, JobLawChange:
		return JobType(s), nil
	default:
		return "", &QueueError{Op: "parse", Err: ErrUnknownJobType, Detail: s}
	}
}

// CrawlJob is one domain-scoped crawl configuration plus its accumulated
// discovery state.
type CrawlJob struct {
	ID        string      `json:"id"`
	RootURL   string      `json:"root_url"`
	MaxDepth  int         `json:"max_depth"`
	MaxURLs   int         `json:"max_urls"`
	Status    CrawlStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CrawlableURL is a single URL discovered by the frontier for a crawl job.
// A URL appears at most once per job.
type CrawlableURL struct {
	ID              string          `json:"id"`
	JobID           string          `json:"job_id"`
	URL             string          `json:"url"`
	CrawlStatus     CrawlStatus     `json:"crawl_status"`
	IngestionStatus IngestionStatus `json:"ingestion_status"`
	VectorIDs       []string        `json:"vector_ids,omitempty"`
	DiscoveredAt    time.Time       `json:"discovered_at"`
	IngestedAt      *time.Time      `json:"ingested_at,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// ScrapedURLRecord is the dedup/tracking row keyed by (scopeID, source, url).
// Scraped=true with non-empty VectorIDs means the URL is done and must not be
// re-ingested; anything else leaves it eligible for the next sweep.
type ScrapedURLRecord struct {
	ScopeID   string    `json:"scope_id"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Scraped   bool      `json:"scraped"`
	VectorIDs []string  `json:"vector_ids,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueueEntry is one unit of queued generation work for a scope.
type QueueEntry struct {
	ID        string      `json:"id"`
	ScopeID   string      `json:"scope_id"`
	JobType   JobType     `json:"job_type"`
	Status    QueueStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Terminal reports whether the entry is in a state no transition leaves.
func (e *QueueEntry) Terminal() bool {
	return e.Status == QueueCompleted || e.Status == QueueFailed
}

// ExtractedEvent is the structured unit emitted by the metadata extractor
// and persisted as a vector record payload. ChunkText is a verbatim excerpt
// of the source document, never model paraphrase.
type ExtractedEvent struct {
	ChunkText         string `json:"chunk_text"`
	Region            string `json:"region"`
	Location          string `json:"location"`
	PrimaryIndustry   string `json:"primary_industry"`
	SecondaryIndustry string `json:"secondary_industry"`
	Topic             string `json:"topic"`
	DiscussedAt       string `json:"discussed_at"`
	PublishedAt       string `json:"published_at"`
}

// CalendarEvent is the evidence-guardrailed variant used by the calendar and
// legal-change paths. Every substantive field carries a paired verbatim
// evidence span; the guardrail pass enforces the pairing after generation.
type CalendarEvent struct {
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	DescriptionEvidence string  `json:"description_evidence"`
	EffectiveDate       *string `json:"effective_date,omitempty"`
	DateEvidence        string  `json:"date_evidence,omitempty"`
	Region              string  `json:"region"`
	Topic               string  `json:"topic"`
	SourceURL           string  `json:"source_url"`
}

// Taxonomy holds the live controlled vocabularies injected into extraction
// prompts. Slugs are normalized identifiers, e.g. "california",
// "workplace-policy".
type Taxonomy struct {
	Regions    []string
	Industries []string
	Topics     []string
}

// HasRegion reports vocabulary membership; empty slugs are always allowed.
func (t Taxonomy) HasRegion(slug string) bool   { return slug == "" || contains(t.Regions, slug) }
func (t Taxonomy) HasIndustry(slug string) bool { return slug == "" || contains(t.Industries, slug) }
func (t Taxonomy) HasTopic(slug string) bool    { return slug == "" || contains(t.Topics, slug) }

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// VectorRecord is one embedded point bound for the vector store.
type VectorRecord struct {
	ID        string
	Vector    []float32
	Namespace string
	Metadata  map[string]any
}

// RecordRef is what the ingestor hands back per upserted record so callers
// can persist ids for later point deletion.
type RecordRef struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
}

// ScrapeSummary is the outcome of one scrapeAndTrack batch.
type ScrapeSummary struct {
	Scraped int      `json:"scraped"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// CrawlSummary aggregates per-URL progress for a crawl job status read.
type CrawlSummary struct {
	JobID     string      `json:"job_id"`
	Status    CrawlStatus `json:"status"`
	Total     int         `json:"total"`
	Pending   int         `json:"pending"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Ingested  int         `json:"ingested"`
}

// IngestionEvent is published after a document or URL finishes ingestion.
type IngestionEvent struct {
	ScopeID   string    `json:"scope_id"`
	SourceURL string    `json:"source_url"`
	Namespace string    `json:"namespace"`
	Records   int       `json:"records"`
	At        time.Time `json:"at"`
}

// MemoryNamespace is the per-scope vector partition used by scrape-and-track
// ingestion.
func MemoryNamespace(scopeID string) string { return scopeID + "-memory" }
