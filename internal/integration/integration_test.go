package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gatekeeper/internal/api"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/cache"
	"gatekeeper/internal/health"
	"gatekeeper/internal/lockout"
	"gatekeeper/internal/models"
	"gatekeeper/internal/queue"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/reputation"
	"gatekeeper/internal/validate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests that exercise the entire governance chain end-to-end over
// real HTTP: validation, rate limiting, lockout, authentication, the upstream
// proxy queue, and the health report.

const clientIP = "203.0.113.50"

type stack struct {
	server   *httptest.Server
	cfg      *models.Config
	rawKey   string
	adminKey string
	store    *audit.MemoryStore
}

func newStack(t *testing.T, mutate func(*models.Config)) *stack {
	t.Helper()

	cfg := models.NewDefaultConfig()
	for _, lc := range []*models.LimiterConfig{
		&cfg.Security.RateLimits.General,
		&cfg.Security.RateLimits.API,
		&cfg.Security.RateLimits.AI,
	} {
		lc.MaxRequests = 1000
		lc.BurstInterval = 0
		lc.CleanupInterval = 0
	}

	rawKey, err := models.GenerateAPIKey()
	require.NoError(t, err)
	adminKey, err := models.GenerateAPIKey()
	require.NoError(t, err)
	cfg.Security.APIKeys = []models.APIKey{
		*models.NewAPIKey(models.NewKeyID(), "service-account", rawKey, []string{"read"}),
		*models.NewAPIKey(models.NewKeyID(), "ops", adminKey, []string{"admin"}),
	}

	if mutate != nil {
		mutate(cfg)
	}

	store := audit.NewMemoryStore(cfg.Audit.MaxEvents)
	auditLog := audit.NewLogger(store)
	rep := reputation.NewStore(cfg.Security.Reputation.SuspicionThreshold, cfg.Security.Reputation.BlockedIPs, auditLog)

	validator, err := validate.New(cfg.Security.Validation, rep, auditLog)
	require.NoError(t, err)

	lockouts := lockout.NewTracker(cfg.Security.Lockout.MaxAttempts,
		cfg.Security.Lockout.LockoutDuration, cfg.Security.Lockout.AmnestyWindow)

	limiters := map[string]ratelimit.Limiter{
		"general": ratelimit.New(cfg.Security.RateLimits.General),
		"api":     ratelimit.New(cfg.Security.RateLimits.API),
		"ai":      ratelimit.New(cfg.Security.RateLimits.AI),
	}
	for _, l := range limiters {
		t.Cleanup(l.Close)
	}

	q := queue.New(cfg.Upstream.Workers, cfg.Upstream.QueueSize,
		cfg.Upstream.RequestTimeout, cfg.Upstream.FailureThreshold, cfg.Upstream.BreakerCooldown)
	t.Cleanup(q.Close)

	sessions := cache.New("sessions", cfg.Security.SessionTTL, 0)
	keys := cache.New("keys", cfg.Cache.TTL, 0)
	responses := cache.New("responses", cfg.Cache.TTL, 0)
	t.Cleanup(sessions.Close)
	t.Cleanup(keys.Close)
	t.Cleanup(responses.Close)

	stats := health.NewRequestStats()
	agg := health.NewAggregator(stats, []*cache.Cache{sessions, keys, responses}, q, limiters, nil)

	handlers := api.NewHandlers(api.Deps{
		Config:     cfg,
		Validator:  validator,
		Lockouts:   lockouts,
		Limiters:   limiters,
		AuditLog:   auditLog,
		Reputation: rep,
		Queue:      q,
		Aggregator: agg,
		Stats:      stats,
		Sessions:   sessions,
		Keys:       keys,
		Responses:  responses,
	})

	server := httptest.NewServer(api.SetupRoutes(handlers, cfg))
	t.Cleanup(server.Close)

	return &stack{server: server, cfg: cfg, rawKey: rawKey, adminKey: adminKey, store: store}
}

func (s *stack) request(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()
	return s.requestFrom(t, clientIP, method, path, bearer, body)
}

func (s *stack) requestFrom(t *testing.T, ip, method, path, bearer string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestIntegration_FullGovernanceFlow(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fmt.Fprintf(w, "echo: %s", req.Prompt)
	}))
	defer upstream.Close()

	s := newStack(t, func(c *models.Config) {
		c.Upstream.URL = upstream.URL
		c.Security.HealthToken = "ops-health-token"
	})

	// Step 1: unauthenticated generate is refused.
	resp := s.request(t, http.MethodPost, "/api/v1/generate", "",
		models.GenerateRequest{Prompt: "hello"})
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Step 2: a wrong secret burns a lockout attempt.
	resp = s.request(t, http.MethodPost, "/api/v1/auth/login", "",
		models.LoginRequest{Identifier: "service-account", Secret: "gk_wrong"})
	var failure models.LoginFailureResponse
	decodeBody(t, resp, &failure)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, s.cfg.Security.Lockout.MaxAttempts-1, failure.AttemptsRemaining)

	// Step 3: correct credentials issue a session.
	resp = s.request(t, http.MethodPost, "/api/v1/auth/login", "",
		models.LoginRequest{Identifier: "service-account", Secret: s.rawKey})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login models.LoginResponse
	decodeBody(t, resp, &login)
	require.NotEmpty(t, login.SessionToken)

	// Step 4: the session drives the upstream proxy.
	resp = s.request(t, http.MethodPost, "/api/v1/generate", login.SessionToken,
		models.GenerateRequest{Prompt: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gen models.GenerateResponse
	decodeBody(t, resp, &gen)
	assert.Equal(t, "echo: hello", gen.Result)
	assert.False(t, gen.Cached)

	// Step 5: the repeat answer comes from the cache.
	resp = s.request(t, http.MethodPost, "/api/v1/generate", login.SessionToken,
		models.GenerateRequest{Prompt: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &gen)
	assert.True(t, gen.Cached)

	// Step 6: the health report shows the traffic to an authorized caller.
	resp = s.request(t, http.MethodGet, "/health", "ops-health-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hr models.HealthResponse
	decodeBody(t, resp, &hr)
	require.NotNil(t, hr.Metrics)
	assert.Greater(t, hr.Metrics.Requests.Completed, int64(0))
	assert.Equal(t, int64(1), hr.Metrics.Queue.Processed)

	// Step 7: the failed login from step 2 is in the audit trail.
	resp = s.request(t, http.MethodGet, "/api/v1/audit/"+clientIP+"?limit=50", s.adminKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var auditResp models.AuditQueryResponse
	decodeBody(t, resp, &auditResp)
	var names []string
	for _, e := range auditResp.Events {
		names = append(names, e.Event)
	}
	assert.Contains(t, names, "login_failed")
	assert.Contains(t, names, "login_success")
}

func TestIntegration_RateLimitAcrossRequests(t *testing.T) {
	s := newStack(t, func(c *models.Config) {
		c.Security.RateLimits.General.MaxRequests = 3
	})

	for i := 0; i < 3; i++ {
		resp := s.request(t, http.MethodGet, "/echo", "", nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp := s.request(t, http.MethodGet, "/echo", "", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))

	var errResp models.ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, models.ErrorCodeRateLimited, errResp.Code)

	// An administrative reset from an unthrottled address restores the budget.
	reset := s.requestFrom(t, "203.0.113.99", http.MethodDelete, "/api/v1/ratelimit/general/"+clientIP, s.adminKey, nil)
	reset.Body.Close()
	require.Equal(t, http.StatusNoContent, reset.StatusCode)

	resp = s.request(t, http.MethodGet, "/echo", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIntegration_BlockedIPIsRefusedEverywhere(t *testing.T) {
	s := newStack(t, nil)

	// An admin blocks the client address, then every route refuses it.
	resp := s.request(t, http.MethodPost, "/api/v1/reputation/block", s.adminKey,
		map[string]string{"ip": clientIP, "reason": "integration test"})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	for _, path := range []string{"/echo", "/api/v1/auth/login"} {
		method := http.MethodGet
		var body any
		if path == "/api/v1/auth/login" {
			method = http.MethodPost
			body = models.LoginRequest{Identifier: "service-account", Secret: s.rawKey}
		}
		resp := s.request(t, method, path, "", body)
		resp.Body.Close()
		assert.Equal(t, http.StatusLocked, resp.StatusCode, path)
	}

	// The health endpoint also refuses; monitoring uses a trusted address.
	resp = s.request(t, http.MethodGet, "/health", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
}

func TestIntegration_LockoutSurvivesCorrectPassword(t *testing.T) {
	s := newStack(t, func(c *models.Config) {
		c.Security.Lockout.MaxAttempts = 2
	})

	for i := 0; i < 2; i++ {
		resp := s.request(t, http.MethodPost, "/api/v1/auth/login", "",
			models.LoginRequest{Identifier: "service-account", Secret: "gk_wrong"})
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := s.request(t, http.MethodPost, "/api/v1/auth/login", "",
		models.LoginRequest{Identifier: "service-account", Secret: s.rawKey})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var failure models.LoginFailureResponse
	decodeBody(t, resp, &failure)
	assert.Equal(t, models.ErrorCodeAccountLocked, failure.Code)
}
