// Package audit provides the append-only security event log. Events are
// immutable once written; the log is queryable by source IP and feeds the
// health aggregator's counters. Backends are selected through a factory:
// an in-memory ring (default), SQLite, or PostgreSQL.
package audit

import (
	"context"

	"gatekeeper/internal/models"
)

// Store defines the interface for security event persistence. Implementations
// must be safe for concurrent use.
type Store interface {
	// Append writes a new event. Events are never modified afterwards.
	Append(ctx context.Context, event models.SecurityEvent) error

	// EventsByIP returns up to limit of the most recent events for an IP,
	// oldest first within the returned slice.
	EventsByIP(ctx context.Context, ip string, limit int) ([]models.SecurityEvent, error)

	// Recent returns up to limit of the most recent events across all IPs,
	// oldest first within the returned slice.
	Recent(ctx context.Context, limit int) ([]models.SecurityEvent, error)

	// Stats returns event counts for the health aggregator.
	Stats(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close() error
}

// Stats summarizes the log's contents.
type Stats struct {
	Total      int64                      `json:"total"`
	BySeverity map[models.Severity]int64 `json:"by_severity"`
}

// Config holds configuration for audit store backends.
type Config struct {
	// Type selects the backend (memory, sqlite, postgres).
	Type string

	// MaxEvents caps the memory backend; 0 means unbounded. Database
	// backends ignore it and leave retention to the operator.
	MaxEvents int

	// DSN is used by database backends.
	DSN string
}
