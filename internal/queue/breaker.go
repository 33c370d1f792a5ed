package queue

import (
	"sync"
	"time"
)

// Breaker states.
const (
	BreakerClosed   = "closed"
	BreakerOpen     = "open"
	BreakerHalfOpen = "half-open"
)

// Breaker is a consecutive-failure circuit breaker. It opens after
// failureThreshold failures in a row, rejects everything for the cooldown
// period, then lets a single probe through (half-open). A successful probe
// closes the circuit; a failed one reopens it for another cooldown.
type Breaker struct {
	failureThreshold int
	cooldown         time.Duration

	mu            sync.Mutex
	state         string
	failures      int
	openedAt      time.Time
	probeInFlight bool

	// now is swappable for tests.
	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(failureThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            BreakerClosed,
		now:              time.Now,
	}
}

// Allow reports whether a request may proceed. In the open state it returns
// false until the cooldown elapses, then admits exactly one probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess resets the failure streak and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = BreakerClosed
	b.probeInFlight = false
}

// RecordFailure counts a failure; the circuit opens at the threshold, and a
// failed half-open probe reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.failureThreshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.probeInFlight = false
	}
}

// State returns the current breaker state.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Surface the pending transition so health reports don't show "open"
	// after the cooldown has already elapsed.
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}
