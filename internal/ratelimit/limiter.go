// Package ratelimit provides per-identifier rate limiting for HTTP requests.
// Two algorithms are available: a fixed-window counter with a sub-second
// burst guard (the default) and a token bucket backed by golang.org/x/time/rate.
// Both are safe for concurrent use and include HTTP middleware that sets
// rate limit response headers on rejection.
package ratelimit

import "time"

// Limiter defines the rate limiting contract. Implementations must be safe
// for concurrent use. Each Limiter owns a private store; instances never
// share state.
type Limiter interface {
	// Check records a request for the identifier and returns whether it is
	// allowed along with quota metadata for response headers.
	Check(identifier string) Result

	// Reset deletes all state for the identifier. An identifier checked
	// immediately after a reset behaves exactly like one never seen.
	Reset(identifier string)

	// Stats returns a read-only snapshot of the limiter's counters.
	Stats() Stats

	// Close stops background goroutines and releases resources.
	Close()
}

// Result reports the outcome of a single rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// Stats is a snapshot of a limiter's internal counters, read by the health
// aggregator. Entries is the current store size; Allowed and Blocked are
// cumulative since process start.
type Stats struct {
	Entries int
	Allowed int64
	Blocked int64
}
