package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gatekeeper/internal/health"
	"gatekeeper/internal/models"
	"gatekeeper/internal/validate"
)

type contextKey string

const (
	securityContextKey contextKey = "security_context"
	apiKeyContextKey   contextKey = "api_key"
)

// Session is the server-side state issued on login and stored in the
// sessions cache keyed by token.
type Session struct {
	Token     string
	Key       *models.APIKey
	ExpiresAt time.Time
}

// GetSecurityContext returns the validator-derived security context for the
// request, or a zero value when validation did not run.
func GetSecurityContext(r *http.Request) models.SecurityContext {
	if sc, ok := r.Context().Value(securityContextKey).(models.SecurityContext); ok {
		return sc
	}
	return models.SecurityContext{IP: validate.ClientIP(r)}
}

// GetAPIKey returns the authenticated API key for the request, or nil.
func GetAPIKey(r *http.Request) *models.APIKey {
	if key, ok := r.Context().Value(apiKeyContextKey).(*models.APIKey); ok {
		return key
	}
	return nil
}

// recoveryMiddleware handles panics with a generic 500. Detail goes to the
// log, never to the caller.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				errorResp := models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError)
				json.NewEncoder(w).Encode(errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging and stats.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// statsMiddleware records every request into the health stats and logs it.
func statsMiddleware(stats *health.RequestStats) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := stats.Begin()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			// Completion must run even when the handler panics, or the
			// active counter leaks and the request never reaches the
			// error rate. The panic itself is left for the recovery
			// middleware, which answers the 500 recorded here.
			panicked := true
			defer func() {
				status := rec.status
				if panicked {
					status = http.StatusInternalServerError
				}
				duration := time.Since(start)
				done(r.Method, r.URL.Path, status, duration)
				slog.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"duration_ms", duration.Milliseconds(),
					"ip", validate.ClientIP(r))
			}()

			next.ServeHTTP(rec, r)
			panicked = false
		})
	}
}

// validationMiddleware runs the request validator before any business logic.
// A blocked source address answers 423; any other validation failure answers
// 400 with the accumulated reasons. Valid requests carry their security
// context forward.
func validationMiddleware(v *validate.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := v.ValidateRequest(r)

			if result.Blocked {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusLocked)
				errorResp := models.NewErrorResponse("Source address is blocked", models.ErrorCodeIPBlocked)
				json.NewEncoder(w).Encode(errorResp)
				return
			}

			if !result.IsValid {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(models.NewValidationErrorResponse(result.Errors))
				return
			}

			ctx := context.WithValue(r.Context(), securityContextKey, result.Context)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authMiddleware authenticates Bearer credentials. A raw API key (gk_ prefix)
// is resolved through the keys cache; anything else is treated as a session
// token issued by login.
func authMiddleware(h *Handlers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, "Authorization required")
				return
			}

			var key *models.APIKey
			if strings.HasPrefix(token, "gk_") {
				key = h.lookupAPIKey(token)
			} else if session := h.lookupSession(token); session != nil {
				key = session.Key
			}

			if key == nil || !key.Enabled {
				writeUnauthorized(w, "Invalid credentials")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requirePermission enforces a permission on the authenticated key.
func requirePermission(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetAPIKey(r)
			if key == nil || !key.HasPermission(required) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				errorResp := models.NewErrorResponse(
					"Insufficient permissions for this operation",
					models.ErrorCodeForbidden,
				)
				json.NewEncoder(w).Encode(errorResp)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// lookupAPIKey resolves a raw API key against the configured keys, consulting
// the hash-keyed cache first.
func (h *Handlers) lookupAPIKey(rawKey string) *models.APIKey {
	hash := models.HashAPIKey(rawKey)
	if cached, ok := h.keys.Get(hash); ok {
		if key, ok := cached.(*models.APIKey); ok {
			return key
		}
	}
	for i := range h.cfg.Security.APIKeys {
		key := &h.cfg.Security.APIKeys[i]
		if key.Matches(rawKey) {
			h.keys.Set(hash, key)
			return key
		}
	}
	return nil
}

// lookupSession returns a live session for the token, or nil. Expiry is
// enforced by the cache TTL; the stored ExpiresAt is informational.
func (h *Handlers) lookupSession(token string) *Session {
	cached, ok := h.sessions.Get(token)
	if !ok {
		return nil
	}
	session, ok := cached.(*Session)
	if !ok {
		return nil
	}
	return session
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", false
	}
	return authHeader[len(prefix):], true
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	errorResp := models.NewErrorResponse(message, models.ErrorCodeUnauthorized)
	json.NewEncoder(w).Encode(errorResp)
}
