// Package memory keeps published events in a slice. Used by tests and as
// the no-op-with-visibility default in development.
package memory

import (
	"context"
	"sync"

	"github.com/sourcehr/engine/internal/pipeline"
)

type Publisher struct {
	mu     sync.Mutex
	events []pipeline.IngestionEvent
}

func New() *Publisher { return &Publisher{} }

func (p *Publisher) Publish(_ context.Context, ev pipeline.IngestionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []pipeline.IngestionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pipeline.IngestionEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *Publisher) Close() error { return nil }
