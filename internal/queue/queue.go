// Package queue provides a bounded job queue with a worker pool and a
// circuit breaker, used to govern calls to the upstream completion provider.
// Callers submit a job and wait for its result; the queue bounds concurrency,
// applies a per-job timeout, and sheds load when the upstream is failing.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is returned when the submission buffer is at capacity.
	ErrQueueFull = errors.New("request queue is full")

	// ErrCircuitOpen is returned while the breaker is rejecting work.
	ErrCircuitOpen = errors.New("upstream circuit breaker is open")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("request queue is closed")
)

// Job is one unit of upstream work.
type Job func(ctx context.Context) (string, error)

type task struct {
	ctx    context.Context
	job    Job
	result chan taskResult
}

type taskResult struct {
	value string
	err   error
}

// Queue runs submitted jobs on a fixed worker pool. Submit blocks the caller
// until the job finishes, times out, or is rejected; the buffer decouples
// burst arrival from worker capacity.
type Queue struct {
	tasks   chan task
	breaker *Breaker
	timeout time.Duration

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a queue with the given worker count, buffer size, per-job
// timeout, and breaker settings, and starts the workers.
func New(workers, size int, timeout time.Duration, failureThreshold int, cooldown time.Duration) *Queue {
	q := &Queue{
		tasks:   make(chan task, size),
		breaker: NewBreaker(failureThreshold, cooldown),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues a job and waits for its result. The breaker is consulted
// before enqueueing; a full buffer rejects immediately rather than blocking
// the caller behind other work.
func (q *Queue) Submit(ctx context.Context, job Job) (string, error) {
	select {
	case <-q.done:
		return "", ErrClosed
	default:
	}

	if !q.breaker.Allow() {
		return "", ErrCircuitOpen
	}

	t := task{ctx: ctx, job: job, result: make(chan taskResult, 1)}
	select {
	case q.tasks <- t:
	default:
		// A shed submission is not an upstream failure; don't count it
		// against the breaker.
		return "", ErrQueueFull
	}

	select {
	case res := <-t.result:
		return res.value, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case t := <-q.tasks:
			q.run(t)
		}
	}
}

func (q *Queue) run(t task) {
	q.active.Add(1)
	defer q.active.Add(-1)

	ctx, cancel := context.WithTimeout(t.ctx, q.timeout)
	defer cancel()

	value, err := t.job(ctx)
	switch {
	case err == nil:
		q.processed.Add(1)
		q.breaker.RecordSuccess()
	case t.ctx.Err() != nil:
		// The caller gave up. That says nothing about upstream health, so
		// neither the breaker nor the failure counters record it.
		slog.Debug("Caller abandoned upstream request", "error", err)
	case errors.Is(err, context.DeadlineExceeded):
		q.timedOut.Add(1)
		q.breaker.RecordFailure()
		slog.Warn("Upstream request timed out", "timeout", q.timeout)
	default:
		q.failed.Add(1)
		q.breaker.RecordFailure()
		slog.Warn("Upstream request failed", "error", err)
	}

	t.result <- taskResult{value: value, err: err}
}

// Stats is a snapshot for the health aggregator.
type Stats struct {
	Depth        int
	Active       int
	Processed    int64
	Failed       int64
	TimedOut     int64
	BreakerState string
}

// Stats reports queue depth, in-flight work, cumulative outcomes, and the
// breaker state.
func (q *Queue) Stats() Stats {
	return Stats{
		Depth:        len(q.tasks),
		Active:       int(q.active.Load()),
		Processed:    q.processed.Load(),
		Failed:       q.failed.Load(),
		TimedOut:     q.timedOut.Load(),
		BreakerState: q.breaker.State(),
	}
}

// Close stops the workers. Jobs already picked up finish; queued but
// unstarted jobs are abandoned.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}
