// Package metrics registers the Prometheus collectors shared across the
// pipeline. Init is safe to call more than once.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// FetchTotal counts fetch attempts by strategy and outcome.
	FetchTotal *prometheus.CounterVec
	// FetchDuration observes end-to-end fetch latency by strategy.
	FetchDuration *prometheus.HistogramVec
	// CrawlPagesVisited counts pages marked visited per crawl run outcome.
	CrawlPagesVisited prometheus.Counter
	// CrawlFetchFailures counts frontier nodes skipped on fetch failure.
	// These do not consume the URL budget, so a high rate here means a run
	// is working much harder than its budget suggests.
	CrawlFetchFailures prometheus.Counter
	// ExtractChunksTotal counts extraction attempts by outcome.
	ExtractChunksTotal *prometheus.CounterVec
	// IngestRecordsTotal counts vector upserts by outcome.
	IngestRecordsTotal *prometheus.CounterVec
	// QueueEntriesTotal counts processed queue entries by job type and
	// terminal status.
	QueueEntriesTotal *prometheus.CounterVec
	// JobDuration observes producer execution time by job type.
	JobDuration *prometheus.HistogramVec
)

// Init registers all collectors with the default registry.
func Init() {
	once.Do(func() {
		FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "fetch_total",
			Help:      "Fetch attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"})

		FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "engine",
			Name:      "fetch_duration_seconds",
			Help:      "Fetch latency by strategy.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"strategy"})

		CrawlPagesVisited = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "crawl_pages_visited_total",
			Help:      "Frontier nodes marked visited.",
		})

		CrawlFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "crawl_fetch_failures_total",
			Help:      "Frontier nodes skipped after fetch failure.",
		})

		ExtractChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "extract_chunks_total",
			Help:      "Chunk extraction attempts by outcome.",
		}, []string{"outcome"})

		IngestRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "ingest_records_total",
			Help:      "Vector record upserts by outcome.",
		}, []string{"outcome"})

		QueueEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "queue_entries_total",
			Help:      "Queue entries by job type and terminal status.",
		}, []string{"job_type", "status"})

		JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "engine",
			Name:      "job_duration_seconds",
			Help:      "Producer execution time by job type.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"job_type"})
	})
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(strategy string, d time.Duration, err error) {
	if FetchTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	FetchTotal.WithLabelValues(strategy, outcome).Inc()
	FetchDuration.WithLabelValues(strategy).Observe(d.Seconds())
}
