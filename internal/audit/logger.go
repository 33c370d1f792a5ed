package audit

import (
	"context"
	"log/slog"

	"gatekeeper/internal/models"
)

// Logger is the write-side convenience wrapper used throughout the request
// path. Audit writes are best effort: a failing backend must never turn a
// security decision into a request failure, so append errors are logged and
// swallowed here.
type Logger struct {
	store Store
}

// NewLogger wraps a store for fire-and-forget event logging.
func NewLogger(store Store) *Logger {
	return &Logger{store: store}
}

// Log appends a new event with a generated ID and timestamp.
func (l *Logger) Log(ctx context.Context, event, ip string, severity models.Severity, details, userID string) {
	e := models.NewSecurityEvent(event, ip, severity, details, userID)
	if err := l.store.Append(ctx, e); err != nil {
		slog.Error("Failed to append audit event",
			"event", event,
			"ip", ip,
			"severity", severity,
			"error", err,
		)
		return
	}
	slog.Debug("Audit event recorded", "event", event, "ip", ip, "severity", severity)
}

// Store exposes the underlying store for read paths.
func (l *Logger) Store() Store {
	return l.store
}
