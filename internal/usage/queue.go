package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openmcp/data-gateway/internal/store"
)

// jobKind distinguishes the two write shapes the queue carries.
type jobKind int

const (
	jobAppendUsage jobKind = iota
	jobTouchEndpoint
)

type job struct {
	kind       jobKind
	record     store.UsageRecord
	endpointID string
	touchedAt  time.Time
}

// Queue carries AppendUsage and TouchEndpoint writes off the request path.
// A small worker pool drains a buffered channel of jobs; Submit* methods
// never block the caller and never return an error — a full or closed
// queue simply drops the job and increments a counter.
type Queue struct {
	store   store.Store
	logger  *slog.Logger
	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// New starts a Queue backed by the given store. bufferSize bounds how many
// pending jobs may queue up before Submit* starts dropping; workers is the
// number of goroutines draining the channel.
func New(s store.Store, logger *slog.Logger, bufferSize, workers int) *Queue {
	q := &Queue{
		store:  s,
		logger: logger,
		jobs:   make(chan job, bufferSize),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	ctx := context.Background()
	switch j.kind {
	case jobAppendUsage:
		if err := q.store.AppendUsage(ctx, j.record); err != nil {
			q.logger.Error("usage: append usage record failed", "error", err, "credential_id", j.record.CredentialID)
		}
	case jobTouchEndpoint:
		if err := q.store.TouchEndpoint(ctx, j.endpointID, j.touchedAt); err != nil {
			q.logger.Error("usage: touch endpoint failed", "error", err, "endpoint_id", j.endpointID)
		}
	}
}

// SubmitUsage enqueues a usage-log write. The record's sensitive fields
// should already have been passed through Redact before this call.
func (q *Queue) SubmitUsage(record store.UsageRecord) {
	q.submit(job{kind: jobAppendUsage, record: record})
}

// SubmitTouch enqueues a last-accessed timestamp update for an endpoint.
func (q *Queue) SubmitTouch(endpointID string, touchedAt time.Time) {
	q.submit(job{kind: jobTouchEndpoint, endpointID: endpointID, touchedAt: touchedAt})
}

func (q *Queue) submit(j job) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return
	}
	select {
	case q.jobs <- j:
	default:
		q.dropped.Add(1)
		q.logger.Warn("usage: queue full, dropping job")
	}
}

// Dropped reports how many jobs were dropped because the queue was full
// or already closing.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting new jobs and waits for the worker pool to drain
// whatever is already buffered, bounded by ctx's deadline. Jobs submitted
// concurrently with or after Close are dropped, never blocking the caller.
// Close is idempotent.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
