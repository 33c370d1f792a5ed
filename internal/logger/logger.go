// Package logger provides structured logging initialization for the
// gatekeeper service. It configures Go's built-in log/slog package based on
// the service's LoggingConfig, supporting JSON and text output formats,
// configurable log levels, and multiple output destinations (stdout, stderr,
// file). Emitted lines are additionally teed into an in-memory ring so the
// health endpoint can report recent log output.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gatekeeper/internal/models"
	"gatekeeper/internal/version"
)

// Setup creates and configures a structured logger based on the provided
// LoggingConfig. It returns the configured logger with global version fields,
// an io.Closer for file handles (nil for stdout/stderr), and the line capture
// ring feeding the verbose health report.
//
// The caller is responsible for closing the returned Closer when done (if non-nil).
func Setup(cfg models.LoggingConfig, ver version.Info) (*slog.Logger, io.Closer, *Capture, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	writer, closer, err := openWriter(cfg.Output, cfg.FilePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	capture := NewCapture(cfg.CaptureLines)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	tee := io.MultiWriter(writer, capture)
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(tee, opts)
	} else {
		handler = slog.NewTextHandler(tee, opts)
	}

	// Add global version fields to all log messages
	logger := slog.New(handler).With(
		slog.String("version", ver.Version),
		slog.String("git_commit", ver.GitCommit),
		slog.String("build_date", ver.BuildDate),
	)

	return logger, closer, capture, nil
}

// parseLevel converts a level string to an slog.Level.
// Supported values: debug, info, warn, error (case-insensitive).
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %s", level)
	}
}

// openWriter returns the appropriate io.Writer based on the output configuration.
// For file output, it returns the file as the closer. For stdout/stderr, closer is nil.
func openWriter(output, filePath string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if filePath == "" {
			return nil, nil, fmt.Errorf("file path is required when output is file")
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
		}
		return f, f, nil
	default:
		return os.Stdout, nil, nil
	}
}

// Capture is an io.Writer retaining the most recent log lines in memory.
type Capture struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewCapture creates a capture ring holding up to max lines. max of 0
// defaults to 100.
func NewCapture(max int) *Capture {
	if max <= 0 {
		max = 100
	}
	return &Capture{max: max}
}

// Write splits p into lines and appends them to the ring. It never fails; a
// log sink must not be able to break logging.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		c.lines = append(c.lines, line)
	}
	if len(c.lines) > c.max {
		c.lines = c.lines[len(c.lines)-c.max:]
	}
	return len(p), nil
}

// Last returns the most recent n lines, oldest first.
func (c *Capture) Last(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || len(c.lines) == 0 {
		return []string{}
	}
	if n > len(c.lines) {
		n = len(c.lines)
	}
	out := make([]string, n)
	copy(out, c.lines[len(c.lines)-n:])
	return out
}
