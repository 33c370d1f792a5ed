package audit

import (
	"context"
	"fmt"
	"time"

	"gatekeeper/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS security_events (
	id         TEXT PRIMARY KEY,
	event      TEXT NOT NULL,
	ip         TEXT NOT NULL,
	severity   TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL DEFAULT '',
	timestamp  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_security_events_ip ON security_events (ip, timestamp);
`

// PostgresStore persists events to PostgreSQL, for deployments where several
// replicas should share one audit trail.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and ensures the schema exists.
func NewPostgresStore(config Config) (*PostgresStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("DSN is required for postgres audit store")
	}

	pool, err := pgxpool.New(context.Background(), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Append writes an event row.
func (p *PostgresStore) Append(ctx context.Context, event models.SecurityEvent) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO security_events (id, event, ip, severity, details, user_id, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.Event, event.IP, string(event.Severity), event.Details, event.UserID,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// EventsByIP returns the most recent limit events for the IP, oldest first.
func (p *PostgresStore) EventsByIP(ctx context.Context, ip string, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		return []models.SecurityEvent{}, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, event, ip, severity, details, user_id, timestamp
		 FROM security_events WHERE ip = $1
		 ORDER BY timestamp DESC LIMIT $2`, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanPgEventsReversed(rows)
}

// Recent returns the most recent limit events, oldest first.
func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 {
		return []models.SecurityEvent{}, nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, event, ip, severity, details, user_id, timestamp
		 FROM security_events
		 ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanPgEventsReversed(rows)
}

// Stats returns event counts grouped by severity.
func (p *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := p.pool.Query(ctx,
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

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func scanPgEventsReversed(rows pgx.Rows) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	for rows.Next() {
		var e models.SecurityEvent
		var sev string
		var ts time.Time
		if err := rows.Scan(&e.ID, &e.Event, &e.IP, &sev, &e.Details, &e.UserID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.Severity = models.Severity(sev)
		e.Timestamp = ts
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if events == nil {
		events = []models.SecurityEvent{}
	}
	return events, nil
}
