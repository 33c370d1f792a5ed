package api

import (
	"net/http"
	"testing"

	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_PublicBaseFields(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(getRequest("/health"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store, no-cache, must-revalidate", rec.Header().Get("Cache-Control"))

	var resp models.HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, models.StatusHealthy, resp.Status)
	assert.NotEmpty(t, resp.UptimeFormatted)
	assert.Nil(t, resp.Metrics, "metrics are hidden without authorization")
	assert.Nil(t, resp.Detail)
}

func TestHealth_TokenRevealsMetrics(t *testing.T) {
	env := newTestEnv(t, func(c *models.Config) {
		c.Security.HealthToken = "ops-secret"
	})

	req := getRequest("/health")
	req.Header.Set("Authorization", "Bearer ops-secret")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Metrics)
	assert.Contains(t, resp.Metrics.Caches, "sessions")
	assert.Contains(t, resp.Metrics.RateLimiters, "general")
	assert.Nil(t, resp.Detail, "detail requires verbose=true")
}

func TestHealth_DefaultTokenWhenUnconfigured(t *testing.T) {
	env := newTestEnv(t, nil)

	req := getRequest("/health")
	req.Header.Set("Authorization", "Bearer "+models.DefaultHealthToken)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	decode(t, rec, &resp)
	assert.NotNil(t, resp.Metrics)
}

func TestHealth_WrongTokenHidesMetrics(t *testing.T) {
	env := newTestEnv(t, func(c *models.Config) {
		c.Security.HealthToken = "ops-secret"
	})

	req := getRequest("/health")
	req.Header.Set("Authorization", "Bearer not-the-secret")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, "wrong token still gets the public fields")

	var resp models.HealthResponse
	decode(t, rec, &resp)
	assert.Nil(t, resp.Metrics)
}

func TestHealth_DevelopmentModeSkipsToken(t *testing.T) {
	env := newTestEnv(t, func(c *models.Config) {
		c.Security.DevelopmentMode = true
	})

	rec := env.do(getRequest("/health?verbose=true"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Metrics)
	assert.NotNil(t, resp.Detail)
}

func TestHealth_VerboseIgnoredWithoutAuthorization(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(getRequest("/health?verbose=true"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	decode(t, rec, &resp)
	assert.Nil(t, resp.Metrics)
	assert.Nil(t, resp.Detail)
}

func TestHealth_APIAliasServesSameSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(getRequest("/api/v1/health"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, models.StatusHealthy, resp.Status)
}

func TestHealth_UnhealthyAnswers503(t *testing.T) {
	env := newTestEnv(t, nil)

	// A lone 5xx response makes the error rate 100%.
	done := env.handlers.stats.Begin()
	done("POST", "/api/v1/generate", 500, 0)

	rec := env.do(getRequest("/health"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp models.HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, models.StatusUnhealthy, resp.Status)
}
