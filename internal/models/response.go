// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Machine-readable error codes plus human-readable messages
// - Denials carry actionable metadata (remaining attempts, reset time) so
//   clients can schedule retries instead of guessing
package models

import (
	"time"
)

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Validation errors: input format/constraint violations
// - Authorization errors: locked accounts, blocked IPs, rate limits
// - Internal errors: server-side issues, never leak detail to the caller
type ErrorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id,omitempty"`
}

// ValidationErrorResponse carries the accumulated human-readable reasons a
// request was rejected by the validator.
type ValidationErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Reasons []string `json:"reasons"`
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	SessionToken string    `json:"session_token"`
	KeyName      string    `json:"key_name"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LoginFailureResponse is returned on a failed or locked-out login attempt.
type LoginFailureResponse struct {
	Error             string     `json:"error"`
	Code              string     `json:"code"`
	Message           string     `json:"message"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

// GenerateResponse wraps an upstream completion result.
type GenerateResponse struct {
	Result   string `json:"result"`
	Cached   bool   `json:"cached"`
	Duration string `json:"duration,omitempty"`
}

// UploadResponse acknowledges an accepted upload.
type UploadResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Message  string `json:"message"`
}

// AuditQueryResponse lists recent security events for an IP.
type AuditQueryResponse struct {
	IP     string          `json:"ip"`
	Count  int             `json:"count"`
	Events []SecurityEvent `json:"events"`
}

// ReputationResponse reports the reputation state of one or all IPs.
type ReputationResponse struct {
	BlockedIPs []string       `json:"blocked_ips"`
	Suspicious map[string]int `json:"suspicious"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse is the aggregated health snapshot. Metrics and Detail are
// present only for authorized callers; the base fields are always returned.
type HealthResponse struct {
	Status          string         `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	Uptime          int64          `json:"uptime"`
	UptimeFormatted string         `json:"uptime_formatted"`
	Metrics         *HealthMetrics `json:"metrics,omitempty"`
	Detail          *HealthDetail  `json:"detail,omitempty"`
}

// HealthMetrics is the authorized portion of the health snapshot.
type HealthMetrics struct {
	Requests     RequestMetrics           `json:"requests"`
	Memory       MemoryMetrics            `json:"memory"`
	Caches       map[string]CacheMetrics  `json:"caches"`
	Queue        QueueMetrics             `json:"queue"`
	RateLimiters map[string]LimiterMetrics `json:"rate_limiters"`
}

type RequestMetrics struct {
	Active       int64   `json:"active"`
	Completed    int64   `json:"completed"`
	AvgDuration  float64 `json:"avg_duration_ms"`
	SlowRequests int64   `json:"slow_requests"`
	ErrorRate    float64 `json:"error_rate_pct"`
}

type MemoryMetrics struct {
	Used    string  `json:"used"`
	Total   string  `json:"total"`
	Percent float64 `json:"percent"`
}

type CacheMetrics struct {
	Entries int `json:"entries"`
	HitRate int `json:"hit_rate_pct"`
}

type QueueMetrics struct {
	Depth        int    `json:"depth"`
	Active       int    `json:"active"`
	Processed    int64  `json:"processed"`
	Failed       int64  `json:"failed"`
	TimedOut     int64  `json:"timed_out"`
	BreakerState string `json:"breaker_state"`
}

type LimiterMetrics struct {
	Entries int   `json:"entries"`
	Blocked int64 `json:"blocked"`
}

// HealthDetail is included when verbose=true: recent raw samples, the last
// recorded slow requests, and the last captured log lines.
type HealthDetail struct {
	Samples      []RequestSample `json:"samples"`
	SlowRequests []RequestSample `json:"slow_requests"`
	LogLines     []string        `json:"log_lines"`
}

// RequestSample is one recorded request measurement.
type RequestSample struct {
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Duration  float64   `json:"duration_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Standard HTTP Error Codes
//
// Error Code Strategy:
// - Upper-case with underscores for consistency
// - Machine-readable for client error handling
const (
	ErrorCodeBadRequest         = "BAD_REQUEST"          // 400: Invalid request format
	ErrorCodeValidation         = "VALIDATION_ERROR"     // 400: Request failed validation
	ErrorCodeUnauthorized       = "UNAUTHORIZED"         // 401: Authentication required or failed
	ErrorCodeAccountLocked      = "ACCOUNT_LOCKED"       // 401: Too many failed logins
	ErrorCodeForbidden          = "FORBIDDEN"            // 403: Permission denied
	ErrorCodeNotFound           = "NOT_FOUND"            // 404: Resource doesn't exist
	ErrorCodeIPBlocked          = "IP_BLOCKED"           // 423: Source address is blocked
	ErrorCodeRateLimited        = "RATE_LIMIT_EXCEEDED"  // 429: Quota or burst guard exceeded
	ErrorCodeInternalError      = "INTERNAL_ERROR"       // 500: Server-side error
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE"  // 503: Upstream or queue unavailable
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewValidationErrorResponse(reasons []string) *ValidationErrorResponse {
	return &ValidationErrorResponse{
		Error:   "validation_error",
		Code:    ErrorCodeValidation,
		Reasons: reasons,
	}
}
