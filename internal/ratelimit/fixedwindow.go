package ratelimit

import (
	"sync"
	"time"
)

// windowEntry tracks one identifier's counter within the current window.
type windowEntry struct {
	count       int
	windowReset time.Time
	lastRequest time.Time
}

// FixedWindowLimiter counts requests per identifier in fixed time windows.
// A request after the window expires resets the counter. Independently of the
// window budget, two requests from the same identifier closer together than
// the burst interval are rejected outright; the burst rejection does not
// consume quota.
//
// A background goroutine periodically sweeps entries whose window has
// expired, so the store stays bounded under many distinct identifiers.
type FixedWindowLimiter struct {
	maxRequests   int
	window        time.Duration
	burstInterval time.Duration

	mu      sync.Mutex
	entries map[string]*windowEntry
	allowed int64
	blocked int64

	done   chan struct{}
	closed bool

	// now is swappable for tests.
	now func() time.Time
}

// FixedWindowOption configures a FixedWindowLimiter.
type FixedWindowOption func(*FixedWindowLimiter)

// WithClock overrides the limiter's time source. Used by tests to step
// through windows without sleeping.
func WithClock(now func() time.Time) FixedWindowOption {
	return func(l *FixedWindowLimiter) {
		l.now = now
	}
}

// NewFixedWindowLimiter creates a limiter allowing maxRequests per window,
// with the given minimum spacing between consecutive requests. A cleanup
// goroutine sweeps expired windows every cleanupInterval; pass 0 to disable
// the sweep.
func NewFixedWindowLimiter(maxRequests int, window, burstInterval, cleanupInterval time.Duration, opts ...FixedWindowOption) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		maxRequests:   maxRequests,
		window:        window,
		burstInterval: burstInterval,
		entries:       make(map[string]*windowEntry),
		done:          make(chan struct{}),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if cleanupInterval > 0 {
		go l.cleanup(cleanupInterval)
	}
	return l
}

// Check records a request using the limiter's configured quota.
func (l *FixedWindowLimiter) Check(identifier string) Result {
	return l.CheckLimit(identifier, l.maxRequests, l.window)
}

// CheckLimit records a request against an explicit quota. The decision order
// is: fresh or expired window resets the counter and is allowed; then the
// burst guard rejects requests spaced under the burst interval without
// consuming quota; then the window counter decides.
func (l *FixedWindowLimiter) CheckLimit(identifier string, maxRequests int, window time.Duration) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok || now.After(e.windowReset) {
		e = &windowEntry{
			count:       1,
			windowReset: now.Add(window),
			lastRequest: now,
		}
		l.entries[identifier] = e
		l.allowed++
		return Result{Allowed: true, Remaining: maxRequests - 1, ResetTime: e.windowReset}
	}

	if l.burstInterval > 0 && now.Sub(e.lastRequest) < l.burstInterval {
		l.blocked++
		return Result{Allowed: false, Remaining: 0, ResetTime: e.windowReset}
	}

	if e.count >= maxRequests {
		l.blocked++
		return Result{Allowed: false, Remaining: 0, ResetTime: e.windowReset}
	}

	e.count++
	e.lastRequest = now
	l.allowed++
	return Result{Allowed: true, Remaining: maxRequests - e.count, ResetTime: e.windowReset}
}

// Reset deletes the identifier's entry unconditionally.
func (l *FixedWindowLimiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, identifier)
}

// Stats returns a snapshot of the limiter's counters.
func (l *FixedWindowLimiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Entries: len(l.entries),
		Allowed: l.allowed,
		Blocked: l.blocked,
	}
}

// Close stops the background cleanup goroutine.
func (l *FixedWindowLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
}

// cleanup periodically evicts entries whose window has already expired. Such
// entries would be reset on their next request anyway, so removing them is
// observably equivalent to keeping them.
func (l *FixedWindowLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictExpired()
		}
	}
}

func (l *FixedWindowLimiter) evictExpired() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.entries {
		if now.After(e.windowReset) {
			delete(l.entries, id)
		}
	}
}
