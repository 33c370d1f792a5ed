// Package lockout tracks failed authentication attempts per identifier and
// enforces a timed lockout after too many failures. It is pure bookkeeping:
// no operation here ever returns an error, and all state is identifier-scoped
// with no global counters.
package lockout

import (
	"sync"
	"time"
)

// entry tracks consecutive failures for one identifier.
type entry struct {
	failCount   int
	lastAttempt time.Time
	lockedUntil time.Time // zero when not locked
}

// Result reports the state after recording a failed attempt.
type Result struct {
	IsLocked          bool
	AttemptsRemaining int
	LockedUntil       *time.Time
}

// Tracker counts failed logins per identifier. Failures older than the
// amnesty window are forgiven before counting; once the configured maximum is
// reached the identifier is locked for the lockout duration. Locked entries
// expire lazily: the first check after expiry deletes the entry.
type Tracker struct {
	maxAttempts     int
	lockoutDuration time.Duration
	amnestyWindow   time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	// now is swappable for tests.
	now func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a lockout tracker.
func NewTracker(maxAttempts int, lockoutDuration, amnestyWindow time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
		amnestyWindow:   amnestyWindow,
		entries:         make(map[string]*entry),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordFailedAttempt registers one authentication failure for the
// identifier and returns the resulting lockout state.
func (t *Tracker) RecordFailedAttempt(identifier string) Result {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[identifier]
	if !ok {
		e = &entry{}
		t.entries[identifier] = e
	}

	// An expired lockout observed here starts a fresh streak.
	if !e.lockedUntil.IsZero() && !now.Before(e.lockedUntil) {
		e.failCount = 0
		e.lockedUntil = time.Time{}
	}

	// Stale-failure amnesty: old failures don't count against a fresh
	// streak. An active lockout is never forgiven here; only expiry above
	// clears it.
	if e.lockedUntil.IsZero() && !e.lastAttempt.IsZero() && now.Sub(e.lastAttempt) > t.amnestyWindow {
		e.failCount = 0
	}

	e.failCount++
	e.lastAttempt = now

	if e.failCount >= t.maxAttempts && e.lockedUntil.IsZero() {
		e.lockedUntil = now.Add(t.lockoutDuration)
	}

	remaining := t.maxAttempts - e.failCount
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		IsLocked:          !e.lockedUntil.IsZero() && now.Before(e.lockedUntil),
		AttemptsRemaining: remaining,
	}
	if !e.lockedUntil.IsZero() {
		until := e.lockedUntil
		res.LockedUntil = &until
	}
	return res
}

// IsLocked reports whether the identifier is currently locked out. An
// expired lockout is deleted on observation, so the next failed attempt
// starts a fresh streak.
func (t *Tracker) IsLocked(identifier string) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[identifier]
	if !ok || e.lockedUntil.IsZero() {
		return false
	}
	if !now.Before(e.lockedUntil) {
		delete(t.entries, identifier)
		return false
	}
	return true
}

// ClearFailedAttempts deletes all state for the identifier. Called on
// successful authentication.
func (t *Tracker) ClearFailedAttempts(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, identifier)
}

// Stats is a snapshot for the health aggregator.
type Stats struct {
	Tracked int
	Locked  int
}

// Stats counts tracked identifiers and how many are currently locked.
func (t *Tracker) Stats() Stats {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{Tracked: len(t.entries)}
	for _, e := range t.entries {
		if !e.lockedUntil.IsZero() && now.Before(e.lockedUntil) {
			s.Locked++
		}
	}
	return s
}
