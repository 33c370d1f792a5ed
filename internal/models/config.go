// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, security, audit, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Security-first approach with safe defaults
package models

import (
	"errors"
	"fmt"
	"time"
)

// Audit store type constants
const (
	AuditStoreMemory   = "memory"
	AuditStoreSQLite   = "sqlite"
	AuditStorePostgres = "postgres"
)

// Rate limiter algorithm constants
const (
	AlgorithmFixedWindow = "fixed_window"
	AlgorithmTokenBucket = "token_bucket"
)

// DefaultHealthToken is the bearer token accepted by the health endpoint when
// no token is configured. Deployments should override it; the fallback exists
// so local development works without any configuration.
const DefaultHealthToken = "health-check-secret"

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Audit         AuditConfig         `yaml:"audit" json:"audit"`
	Upstream      UpstreamConfig      `yaml:"upstream" json:"upstream"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

// SecurityConfig groups the request-governance settings: rate limiting,
// login lockout, request validation, and health endpoint authorization.
type SecurityConfig struct {
	APIKeys         []APIKey         `yaml:"api_keys" json:"api_keys"`
	RateLimits      RateLimitsConfig `yaml:"rate_limits" json:"rate_limits"`
	Lockout         LockoutConfig    `yaml:"lockout" json:"lockout"`
	Validation      ValidationConfig `yaml:"validation" json:"validation"`
	Reputation      ReputationConfig `yaml:"reputation" json:"reputation"`
	HealthToken     string           `yaml:"health_token" json:"health_token"`
	DevelopmentMode bool             `yaml:"development_mode" json:"development_mode"`
	SessionTTL      time.Duration    `yaml:"session_ttl" json:"session_ttl"`
}

// RateLimitsConfig configures the three independent limiter instances.
// Each limiter owns a private store; they never share state.
type RateLimitsConfig struct {
	General LimiterConfig `yaml:"general" json:"general"`
	API     LimiterConfig `yaml:"api" json:"api"`
	AI      LimiterConfig `yaml:"ai" json:"ai"`
}

type LimiterConfig struct {
	Algorithm       string        `yaml:"algorithm" json:"algorithm"`
	MaxRequests     int           `yaml:"max_requests" json:"max_requests"`
	Window          time.Duration `yaml:"window" json:"window"`
	BurstInterval   time.Duration `yaml:"burst_interval" json:"burst_interval"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type LockoutConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	LockoutDuration time.Duration `yaml:"lockout_duration" json:"lockout_duration"`
	AmnestyWindow   time.Duration `yaml:"amnesty_window" json:"amnesty_window"`
}

type ValidationConfig struct {
	MaxRequestSize   int64    `yaml:"max_request_size" json:"max_request_size"`
	MaxUploadSize    int64    `yaml:"max_upload_size" json:"max_upload_size"`
	AllowedUploadExt []string `yaml:"allowed_upload_extensions" json:"allowed_upload_extensions"`
	MinClientVersion string   `yaml:"min_client_version" json:"min_client_version"`
}

type ReputationConfig struct {
	SuspicionThreshold int      `yaml:"suspicion_threshold" json:"suspicion_threshold"`
	BlockedIPs         []string `yaml:"blocked_ips" json:"blocked_ips"`
}

type AuditConfig struct {
	Store     string         `yaml:"store" json:"store"`
	MaxEvents int            `yaml:"max_events" json:"max_events"`
	Database  DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// UpstreamConfig configures the completion proxy queue and its circuit breaker.
type UpstreamConfig struct {
	URL              string        `yaml:"url" json:"url"`
	Workers          int           `yaml:"workers" json:"workers"`
	QueueSize        int           `yaml:"queue_size" json:"queue_size"`
	RequestTimeout   time.Duration `yaml:"request_timeout" json:"request_timeout"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" json:"breaker_cooldown"`
}

type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
	// CaptureLines is the number of recent log lines retained in memory for
	// the verbose health report.
	CaptureLines int `yaml:"capture_lines" json:"capture_lines"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Port 8080: standard non-privileged HTTP port
// - 30-second timeouts: balance between user experience and resource protection
// - Memory audit store: simple setup without external dependencies
// - Rate limiting tuned per tier: AI routes are the most expensive, so they
//   get the tightest budget
// - 100ms burst interval: caps per-identifier request rate independent of the
//   window budget
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
		},
		Security: SecurityConfig{
			APIKeys: []APIKey{},
			RateLimits: RateLimitsConfig{
				General: LimiterConfig{
					Algorithm:       AlgorithmFixedWindow,
					MaxRequests:     100,
					Window:          time.Minute,
					BurstInterval:   100 * time.Millisecond,
					CleanupInterval: 5 * time.Minute,
				},
				API: LimiterConfig{
					Algorithm:       AlgorithmFixedWindow,
					MaxRequests:     60,
					Window:          time.Minute,
					BurstInterval:   100 * time.Millisecond,
					CleanupInterval: 5 * time.Minute,
				},
				AI: LimiterConfig{
					Algorithm:       AlgorithmFixedWindow,
					MaxRequests:     10,
					Window:          time.Minute,
					BurstInterval:   100 * time.Millisecond,
					CleanupInterval: 5 * time.Minute,
				},
			},
			Lockout: LockoutConfig{
				MaxAttempts:     5,
				LockoutDuration: 15 * time.Minute,
				AmnestyWindow:   time.Hour,
			},
			Validation: ValidationConfig{
				MaxRequestSize:   1 << 20,
				MaxUploadSize:    10 << 20,
				AllowedUploadExt: []string{".pdf", ".png", ".jpg", ".jpeg", ".docx"},
			},
			Reputation: ReputationConfig{
				SuspicionThreshold: 10,
			},
			HealthToken:     "",
			DevelopmentMode: false,
			SessionTTL:      30 * time.Minute,
		},
		Audit: AuditConfig{
			Store:     AuditStoreMemory,
			MaxEvents: 10000,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Upstream: UpstreamConfig{
			Workers:          4,
			QueueSize:        64,
			RequestTimeout:   30 * time.Second,
			FailureThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:             5 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "json",
			Output:       "stdout",
			CaptureLines: 100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "gatekeeper",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 0.1,
			},
		},
	}
}

// HealthTokenOrDefault returns the configured health token, falling back to
// DefaultHealthToken when unset.
func (c *Config) HealthTokenOrDefault() string {
	if c.Security.HealthToken != "" {
		return c.Security.HealthToken
	}
	return DefaultHealthToken
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "" {
			return errors.New("tls_cert_file and tls_key_file are required when TLS is enabled")
		}
	}
	for name, lc := range map[string]LimiterConfig{
		"general": c.Security.RateLimits.General,
		"api":     c.Security.RateLimits.API,
		"ai":      c.Security.RateLimits.AI,
	} {
		if err := lc.validate(); err != nil {
			return fmt.Errorf("rate limiter %q: %w", name, err)
		}
	}
	if c.Security.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max_attempts must be at least 1")
	}
	if c.Security.Lockout.LockoutDuration <= 0 {
		return errors.New("lockout_duration must be positive")
	}
	if c.Security.Validation.MaxRequestSize <= 0 {
		return errors.New("max_request_size must be positive")
	}
	switch c.Audit.Store {
	case AuditStoreMemory:
	case AuditStoreSQLite, AuditStorePostgres:
		if c.Audit.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s audit store", c.Audit.Store)
		}
	default:
		return fmt.Errorf("unsupported audit store: %s", c.Audit.Store)
	}
	if c.Upstream.Workers < 1 {
		return errors.New("upstream workers must be at least 1")
	}
	if c.Upstream.QueueSize < 1 {
		return errors.New("upstream queue_size must be at least 1")
	}
	return nil
}

func (lc LimiterConfig) validate() error {
	switch lc.Algorithm {
	case AlgorithmFixedWindow, AlgorithmTokenBucket:
	default:
		return fmt.Errorf("unsupported algorithm: %s", lc.Algorithm)
	}
	if lc.MaxRequests < 1 {
		return errors.New("max_requests must be at least 1")
	}
	if lc.Window <= 0 {
		return errors.New("window must be positive")
	}
	return nil
}
