// Package sched runs named periodic jobs. Each job coalesces with itself: a
// tick that lands while the previous execution is still running is skipped,
// never stacked. Distinct jobs tick independently and concurrently.
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type job struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
	running  atomic.Bool
}

type Scheduler struct {
	jobs   []*job
	logger *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger.Named("scheduler")}
}

// Add registers a named periodic job. Must be called before Run.
func (s *Scheduler) Add(name string, interval time.Duration, fn func(context.Context)) {
	s.jobs = append(s.jobs, &job{name: name, interval: interval, fn: fn})
}

// Run ticks every job until ctx is cancelled, then waits for in-flight
// executions to finish.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			s.runJob(ctx, j, &wg)
		}(j)
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, j *job, wg *sync.WaitGroup) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.logger.Info("scheduled job registered",
		zap.String("job", j.name),
		zap.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !j.running.CompareAndSwap(false, true) {
				s.logger.Debug("job still running, tick skipped", zap.String("job", j.name))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer j.running.Store(false)
				j.fn(ctx)
			}()
		}
	}
}
