// Package worker drains the job queue and drives the scheduled crawl and
// per-URL sweeps.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/metrics"
	"github.com/sourcehr/engine/internal/pipeline"
)

// Producer executes one queue entry's generation work for a scope.
type Producer interface {
	Produce(ctx context.Context, scopeID string) error
}

// Producers binds every job type to its producer. The struct is the
// exhaustiveness check: adding a JobType without a field here leaves For
// returning an error, and wiring a new field is a compile-visible change.
type Producers struct {
	News       Producer
	Calendar   Producer
	Compliance Producer
	LawChange  Producer
}

// For resolves the producer for a job type.
func (p Producers) For(t pipeline.JobType) (Producer, error) {
	var prod Producer
	switch t {
	case pipeline.JobNews:
		prod = p.News
	case pipeline.JobCalendar:
		prod = p.Calendar
	case pipeline.JobCompliance:
		prod = p.Compliance
	case pipeline.JobLawChange:
		prod = p.LawChange
	default:
		return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownJobType, t)
	}
	if prod == nil {
		return nil, fmt.Errorf("no producer wired for job type %s", t)
	}
	return prod, nil
}

// Pool claims all pending queue entries per drain tick and dispatches them
// across a fixed-size goroutine pool. Entry outcomes are independent: a
// panic or error in one never aborts siblings.
type Pool struct {
	queue     pipeline.JobQueue
	producers Producers
	size      int
	logger    *zap.Logger
}

func NewPool(queue pipeline.JobQueue, producers Producers, size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 10
	}
	return &Pool{queue: queue, producers: producers, size: size, logger: logger.Named("pool")}
}

// DrainOnce claims everything pending and processes it. Returns the number
// of entries claimed.
func (p *Pool) DrainOnce(ctx context.Context) int {
	entries, err := p.queue.ClaimAllPending(ctx)
	if err != nil {
		p.logger.Error("queue claim failed", zap.Error(err))
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	p.logger.Info("claimed queue entries", zap.Int("count", len(entries)))

	limiter := make(chan struct{}, p.size)
	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		limiter <- struct{}{}
		go func(entry pipeline.QueueEntry) {
			defer wg.Done()
			defer func() { <-limiter }()
			p.process(ctx, entry)
		}(entry)
	}
	wg.Wait()
	return len(entries)
}

func (p *Pool) process(ctx context.Context, entry pipeline.QueueEntry) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("producer panicked",
				zap.String("entry", entry.ID),
				zap.String("job_type", string(entry.JobType)),
				zap.Any("panic", r))
			p.mark(ctx, entry, pipeline.QueueFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	producer, err := p.producers.For(entry.JobType)
	if err != nil {
		p.mark(ctx, entry, pipeline.QueueFailed, err.Error())
		return
	}

	start := time.Now()
	err = producer.Produce(ctx, entry.ScopeID)
	if metrics.JobDuration != nil {
		metrics.JobDuration.WithLabelValues(string(entry.JobType)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		p.logger.Warn("queue entry failed",
			zap.String("entry", entry.ID),
			zap.String("job_type", string(entry.JobType)),
			zap.String("scope", entry.ScopeID),
			zap.Error(err))
		p.mark(ctx, entry, pipeline.QueueFailed, err.Error())
		return
	}
	p.mark(ctx, entry, pipeline.QueueCompleted, "")
}

// mark writes the terminal status. Failed entries stay failed: retry means a
// fresh enqueue, never an automatic transition.
func (p *Pool) mark(ctx context.Context, entry pipeline.QueueEntry, status pipeline.QueueStatus, errMsg string) {
	if metrics.QueueEntriesTotal != nil {
		metrics.QueueEntriesTotal.WithLabelValues(string(entry.JobType), string(status)).Inc()
	}
	if err := p.queue.MarkStatus(ctx, entry.ID, status, errMsg); err != nil {
		p.logger.Error("mark status failed",
			zap.String("entry", entry.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
