package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"gatekeeper/internal/models"
)

// HealthCheck serves the aggregated health snapshot.
// GET /health
//
// The base fields are public. Metrics require the configured bearer token
// (or development mode); verbose=true additionally includes recent samples,
// slow requests, and captured log lines. Snapshot assembly is guarded: a
// panic inside a stats source degrades to a plain 503 body instead of taking
// the probe endpoint down.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Content-Type", "application/json")

	defer func() {
		if err := recover(); err != nil {
			slog.Error("Health snapshot failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(&models.HealthResponse{
				Status:    models.StatusUnhealthy,
				Timestamp: time.Now().UTC(),
			})
		}
	}()

	authorized := h.healthAuthorized(r)
	verbose := r.URL.Query().Get("verbose") == "true"

	response := h.aggregator.Snapshot(authorized, authorized && verbose)

	status := http.StatusOK
	if response.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// healthAuthorized reports whether the caller may see the metrics section:
// development mode, or a bearer token matching the configured health secret.
func (h *Handlers) healthAuthorized(r *http.Request) bool {
	if h.cfg.Security.DevelopmentMode {
		return true
	}
	token, ok := bearerToken(r)
	if !ok {
		return false
	}
	expected := h.cfg.HealthTokenOrDefault()
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}
