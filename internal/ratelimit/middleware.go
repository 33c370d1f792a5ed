package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
)

// KeyFunc derives the rate limit identifier from a request, typically the
// client IP or an authenticated principal.
type KeyFunc func(*http.Request) string

// New constructs a limiter from configuration, selecting the algorithm.
// Token bucket uses a burst of one tenth of the quota (minimum 1) so short
// spikes are tolerated without letting one identifier drain a full window.
func New(cfg models.LimiterConfig) Limiter {
	if cfg.Algorithm == models.AlgorithmTokenBucket {
		burst := cfg.MaxRequests / 10
		if burst < 1 {
			burst = 1
		}
		return NewBucketLimiter(cfg.MaxRequests, cfg.Window, burst, cfg.CleanupInterval)
	}
	return NewFixedWindowLimiter(cfg.MaxRequests, cfg.Window, cfg.BurstInterval, cfg.CleanupInterval)
}

// Middleware returns HTTP middleware that enforces the given limiter. The
// scope names the limiter instance in logs and audit events. Rejections set
// X-RateLimit-Remaining and X-RateLimit-Reset (epoch milliseconds) so clients
// can back off deterministically. auditLog may be nil.
func Middleware(scope string, limiter Limiter, key KeyFunc, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := key(r)
			result := limiter.Check(identifier)

			if !result.Allowed {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime.UnixMilli()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimited)
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("Rate limit exceeded",
					"scope", scope,
					"identifier", identifier,
					"reset", result.ResetTime,
				)
				if auditLog != nil {
					auditLog.Log(r.Context(), "rate_limit_exceeded", identifier, models.SeverityMedium,
						fmt.Sprintf("scope=%s path=%s", scope, r.URL.Path), "")
				}
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
