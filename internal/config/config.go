package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gatekeeper/internal/models"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables.
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables.
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("GATEKEEPER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("GATEKEEPER_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("GATEKEEPER_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("GATEKEEPER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("GATEKEEPER_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	if tls := os.Getenv("GATEKEEPER_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("GATEKEEPER_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("GATEKEEPER_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Security configuration
	if token := os.Getenv("GATEKEEPER_HEALTH_TOKEN"); token != "" {
		config.Security.HealthToken = token
	}

	if dev := os.Getenv("GATEKEEPER_DEVELOPMENT_MODE"); dev != "" {
		config.Security.DevelopmentMode = strings.ToLower(dev) == "true"
	}

	if attempts := os.Getenv("GATEKEEPER_MAX_LOGIN_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			config.Security.Lockout.MaxAttempts = n
		}
	}

	if d := os.Getenv("GATEKEEPER_LOCKOUT_DURATION"); d != "" {
		if dur, err := time.ParseDuration(d); err == nil {
			config.Security.Lockout.LockoutDuration = dur
		}
	}

	if size := os.Getenv("GATEKEEPER_MAX_REQUEST_SIZE"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			config.Security.Validation.MaxRequestSize = n
		}
	}

	if size := os.Getenv("GATEKEEPER_MAX_UPLOAD_SIZE"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			config.Security.Validation.MaxUploadSize = n
		}
	}

	if exts := os.Getenv("GATEKEEPER_ALLOWED_UPLOAD_EXTENSIONS"); exts != "" {
		parts := strings.Split(exts, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		config.Security.Validation.AllowedUploadExt = cleaned
	}

	// Audit configuration
	if store := os.Getenv("GATEKEEPER_AUDIT_STORE"); store != "" {
		config.Audit.Store = store
	}

	if dsn := os.Getenv("GATEKEEPER_AUDIT_DSN"); dsn != "" {
		config.Audit.Database.DSN = dsn
	}

	if maxEvents := os.Getenv("GATEKEEPER_AUDIT_MAX_EVENTS"); maxEvents != "" {
		if n, err := strconv.Atoi(maxEvents); err == nil {
			config.Audit.MaxEvents = n
		}
	}

	// Upstream configuration
	if url := os.Getenv("GATEKEEPER_UPSTREAM_URL"); url != "" {
		config.Upstream.URL = url
	}

	if workers := os.Getenv("GATEKEEPER_UPSTREAM_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			config.Upstream.Workers = n
		}
	}

	if timeout := os.Getenv("GATEKEEPER_UPSTREAM_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Upstream.RequestTimeout = d
		}
	}

	// Logging configuration
	if level := os.Getenv("GATEKEEPER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("GATEKEEPER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("GATEKEEPER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("GATEKEEPER_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("GATEKEEPER_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("GATEKEEPER_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("GATEKEEPER_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}
}

// SaveExample saves an example configuration file.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Security.HealthToken = "replace-with-a-real-secret"
	config.Security.DevelopmentMode = true
	config.Upstream.URL = "http://localhost:9000/v1/complete"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
