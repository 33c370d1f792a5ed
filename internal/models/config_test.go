package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port too low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "tls without cert files",
			mutate:  func(c *Config) { c.Server.TLSEnabled = true },
			wantErr: "tls_cert_file",
		},
		{
			name: "tls with cert files",
			mutate: func(c *Config) {
				c.Server.TLSEnabled = true
				c.Server.TLSCertFile = "/etc/ssl/cert.pem"
				c.Server.TLSKeyFile = "/etc/ssl/key.pem"
			},
		},
		{
			name:    "unknown limiter algorithm",
			mutate:  func(c *Config) { c.Security.RateLimits.AI.Algorithm = "leaky_bucket" },
			wantErr: "unsupported algorithm",
		},
		{
			name:    "limiter zero budget",
			mutate:  func(c *Config) { c.Security.RateLimits.General.MaxRequests = 0 },
			wantErr: "max_requests",
		},
		{
			name:    "limiter zero window",
			mutate:  func(c *Config) { c.Security.RateLimits.API.Window = 0 },
			wantErr: "window must be positive",
		},
		{
			name:    "lockout zero attempts",
			mutate:  func(c *Config) { c.Security.Lockout.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name:    "lockout zero duration",
			mutate:  func(c *Config) { c.Security.Lockout.LockoutDuration = 0 },
			wantErr: "lockout_duration",
		},
		{
			name:    "zero request size limit",
			mutate:  func(c *Config) { c.Security.Validation.MaxRequestSize = 0 },
			wantErr: "max_request_size",
		},
		{
			name:    "sqlite store without dsn",
			mutate:  func(c *Config) { c.Audit.Store = AuditStoreSQLite },
			wantErr: "DSN is required",
		},
		{
			name: "sqlite store with dsn",
			mutate: func(c *Config) {
				c.Audit.Store = AuditStoreSQLite
				c.Audit.Database.DSN = "file:audit.db"
			},
		},
		{
			name:    "postgres store without dsn",
			mutate:  func(c *Config) { c.Audit.Store = AuditStorePostgres },
			wantErr: "DSN is required",
		},
		{
			name:    "unknown audit store",
			mutate:  func(c *Config) { c.Audit.Store = "cassandra" },
			wantErr: "unsupported audit store",
		},
		{
			name:    "zero upstream workers",
			mutate:  func(c *Config) { c.Upstream.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Upstream.QueueSize = 0 },
			wantErr: "queue_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_HealthTokenOrDefault(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, DefaultHealthToken, cfg.HealthTokenOrDefault())

	cfg.Security.HealthToken = "custom-secret"
	assert.Equal(t, "custom-secret", cfg.HealthTokenOrDefault())
}
