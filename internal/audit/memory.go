package audit

import (
	"context"
	"sync"

	"gatekeeper/internal/models"
)

// MemoryStore keeps events in an in-memory slice, oldest first. When a
// maximum is configured the oldest events are dropped as new ones arrive, so
// a long-running process stays bounded under sustained traffic. Severity
// totals count every event ever appended, including dropped ones.
type MemoryStore struct {
	mu         sync.RWMutex
	events     []models.SecurityEvent
	maxEvents  int
	total      int64
	bySeverity map[models.Severity]int64
}

// NewMemoryStore creates an in-memory audit store. maxEvents of 0 disables
// the cap.
func NewMemoryStore(maxEvents int) *MemoryStore {
	return &MemoryStore{
		maxEvents:  maxEvents,
		bySeverity: make(map[models.Severity]int64),
	}
}

// Append adds an event to the log.
func (m *MemoryStore) Append(_ context.Context, event models.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	m.total++
	m.bySeverity[event.Severity]++

	if m.maxEvents > 0 && len(m.events) > m.maxEvents {
		// Drop the oldest overflow in one slice move.
		excess := len(m.events) - m.maxEvents
		m.events = append(m.events[:0], m.events[excess:]...)
	}
	return nil
}

// EventsByIP returns the most recent limit events for the IP, oldest first.
func (m *MemoryStore) EventsByIP(_ context.Context, ip string, limit int) ([]models.SecurityEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.SecurityEvent
	for _, e := range m.events {
		if e.IP == ip {
			matched = append(matched, e)
		}
	}
	return tail(matched, limit), nil
}

// Recent returns the most recent limit events, oldest first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]models.SecurityEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return tail(m.events, limit), nil
}

// Stats returns cumulative event counts.
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bySeverity := make(map[models.Severity]int64, len(m.bySeverity))
	for sev, n := range m.bySeverity {
		bySeverity[sev] = n
	}
	return Stats{Total: m.total, BySeverity: bySeverity}, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// tail copies the trailing limit elements of events. limit <= 0 returns an
// empty slice.
func tail(events []models.SecurityEvent, limit int) []models.SecurityEvent {
	if limit <= 0 || len(events) == 0 {
		return []models.SecurityEvent{}
	}
	if limit > len(events) {
		limit = len(events)
	}
	out := make([]models.SecurityEvent, limit)
	copy(out, events[len(events)-limit:])
	return out
}
