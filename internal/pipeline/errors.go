package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors callers branch on with errors.Is.
var (
	ErrNoContent      = errors.New("no usable content")
	ErrNotFound       = errors.New("not found")
	ErrTerminalEntry  = errors.New("queue entry is terminal")
	ErrUnknownJobType = errors.New("unknown job type")
)

// FetchError means both fetch strategies were exhausted for a URL. The
// caller decides whether to skip or surface it.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError wraps a provider or schema failure for one chunk. It is
// recovered by skipping the chunk, never by aborting siblings.
type ExtractionError struct {
	Chunk int
	Err   error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extract chunk %d: %v", e.Chunk, e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// IngestError is a per-record vector-store write failure.
type IngestError struct {
	RecordID string
	Err      error
}

func (e *IngestError) Error() string { return fmt.Sprintf("ingest record %s: %v", e.RecordID, e.Err) }
func (e *IngestError) Unwrap() error { return e.Err }

// QueueError covers claim/enqueue/mark failures against the document store.
type QueueError struct {
	Op     string
	Detail string
	Err    error
}

func (e *QueueError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("queue %s (%s): %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *QueueError) Unwrap() error { return e.Err }
