package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketEntry holds a token bucket and its last access time for cleanup.
type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BucketLimiter is an in-memory rate limiter backed by golang.org/x/time/rate.
// Each unique identifier gets its own token bucket. A background goroutine
// periodically evicts stale entries that have not been accessed within 2x the
// cleanup interval. It smooths traffic rather than enforcing hard window
// boundaries, and is selectable per limiter instance via configuration.
type BucketLimiter struct {
	rate  rate.Limit
	burst int
	limit int // requests per window, for Result.Remaining scaling

	mu      sync.Mutex
	entries map[string]*bucketEntry
	allowed int64
	blocked int64
	done    chan struct{}
	closed  bool
}

// NewBucketLimiter creates a token-bucket limiter refilling maxRequests per
// window with the given burst size. It starts a background goroutine for
// eviction; pass 0 to disable the sweep.
func NewBucketLimiter(maxRequests int, window time.Duration, burst int, cleanupInterval time.Duration) *BucketLimiter {
	b := &BucketLimiter{
		rate:    rate.Every(window / time.Duration(maxRequests)),
		burst:   burst,
		limit:   maxRequests,
		entries: make(map[string]*bucketEntry),
		done:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go b.cleanup(cleanupInterval)
	}
	return b
}

// Check records a request for the identifier against its token bucket.
func (b *BucketLimiter) Check(identifier string) Result {
	b.mu.Lock()
	e, exists := b.entries[identifier]
	if !exists {
		e = &bucketEntry{
			limiter: rate.NewLimiter(b.rate, b.burst),
		}
		b.entries[identifier] = e
	}
	e.lastSeen = time.Now()
	b.mu.Unlock()

	allowed := e.limiter.Allow()

	now := time.Now()
	tokens := e.limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))

	// Reset time: how long until the bucket is full again.
	tokensNeeded := float64(b.burst) - tokens
	resetAt := now
	if tokensNeeded > 0 {
		resetAt = now.Add(time.Duration(tokensNeeded / float64(b.rate) * float64(time.Second)))
	}

	b.mu.Lock()
	if allowed {
		b.allowed++
	} else {
		b.blocked++
	}
	b.mu.Unlock()

	return Result{Allowed: allowed, Remaining: remaining, ResetTime: resetAt}
}

// Reset deletes the identifier's bucket.
func (b *BucketLimiter) Reset(identifier string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, identifier)
}

// Stats returns a snapshot of the limiter's counters.
func (b *BucketLimiter) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Entries: len(b.entries),
		Allowed: b.allowed,
		Blocked: b.blocked,
	}
}

// Close stops the background cleanup goroutine.
func (b *BucketLimiter) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}

// cleanup periodically evicts entries that have not been accessed within
// 2x the cleanup interval.
func (b *BucketLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.evictStale(interval)
		}
	}
}

func (b *BucketLimiter) evictStale(interval time.Duration) {
	cutoff := time.Now().Add(-2 * interval)
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, e := range b.entries {
		if e.lastSeen.Before(cutoff) {
			delete(b.entries, id)
		}
	}
}
