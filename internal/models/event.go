// Package models - Security event and request context types.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how serious a security event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the defined severity levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// SecurityEvent is an immutable audit record. Events are append-only; once
// written they are never modified or individually deleted.
type SecurityEvent struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	IP        string    `json:"ip"`
	Severity  Severity  `json:"severity"`
	Details   string    `json:"details"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSecurityEvent constructs an event with a generated ID and timestamp.
// Unknown severities are coerced to medium so a bad caller cannot silently
// drop an event.
func NewSecurityEvent(event, ip string, severity Severity, details, userID string) SecurityEvent {
	if !severity.Valid() {
		severity = SeverityMedium
	}
	return SecurityEvent{
		ID:        uuid.New().String(),
		Event:     event,
		IP:        ip,
		Severity:  severity,
		Details:   details,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (e SecurityEvent) String() string {
	return fmt.Sprintf("[%s] %s ip=%s %s", e.Severity, e.Event, e.IP, e.Details)
}

// SecurityContext is the per-request identity derived from headers. It is
// constructed fresh for every request and never persisted.
type SecurityContext struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}
