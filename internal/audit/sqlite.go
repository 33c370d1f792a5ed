package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gatekeeper/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS security_events (
	id         TEXT PRIMARY KEY,
	event      TEXT NOT NULL,
	ip         TEXT NOT NULL,
	severity   TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL DEFAULT '',
	timestamp  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_security_events_ip ON security_events (ip, timestamp);
`

// SQLiteStore persists events to a SQLite database. Suited to single-node
// deployments that want the audit trail to survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) a SQLite-backed audit log.
func NewSQLiteStore(config Config) (*SQLiteStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("DSN is required for sqlite audit store")
	}

	db, err := sql.Open("sqlite", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append writes an event row.
func (s *SQLiteStore) Append(ctx context.Context, event models.SecurityEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO security_events (id, event, ip, severity, details, user_id, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Event, event.IP, string(event.Severity), event.Details, event.UserID,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// EventsByIP returns the most recent limit events for the IP, oldest first.
func (s *SQLiteStore) EventsByIP(ctx context.Context, ip string, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		return []models.SecurityEvent{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event, ip, severity, details, user_id, timestamp
		 FROM security_events WHERE ip = ?
		 ORDER BY timestamp DESC LIMIT ?`, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEventsReversed(rows)
}

// Recent returns the most recent limit events, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		return []models.SecurityEvent{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event, ip, severity, details, user_id, timestamp
		 FROM security_events
		 ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEventsReversed(rows)
}

// Stats returns event counts grouped by severity.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM security_events GROUP BY severity`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{BySeverity: make(map[models.Severity]int64)}
	for rows.Next() {
		var sev string
		var n int64
		if err := rows.Scan(&sev, &n); err != nil {
			return Stats{}, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.BySeverity[models.Severity(sev)] = n
		stats.Total += n
	}
	return stats, rows.Err()
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanEventsReversed reads DESC-ordered rows and returns them oldest first.
func scanEventsReversed(rows *sql.Rows) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	for rows.Next() {
		var e models.SecurityEvent
		var sev, ts string
		if err := rows.Scan(&e.ID, &e.Event, &e.IP, &sev, &e.Details, &e.UserID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.Severity = models.Severity(sev)
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
		}
		e.Timestamp = parsed
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Rows arrive newest first; flip to chronological order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if events == nil {
		events = []models.SecurityEvent{}
	}
	return events, nil
}
