// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// Format is "json" (default) or "console" for human-readable output.
	Format string

	// Service is attached to every event when set.
	Service string

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatJSON,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. An unknown level falls back
// to info and is reported by the returned error.
func Setup(cfg Config) (zerolog.Logger, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	level, err := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.DurationFieldUnit = time.Millisecond

	output := cfg.Output
	if strings.EqualFold(cfg.Format, FormatConsole) {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	log.Logger = logger

	return logger, err
}

// ParseLevel converts a level name to zerolog.Level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// NewLogger creates a child of the global logger for a component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-request flow
//   - Admission, dispatch and pacing waits
//   - Cache hit/miss and stored TTL
//   - Retriable responses before the scheduler decides
//
// Info: normal operation events
//   - Batch progress
//   - Server startup/shutdown
//
// Warn: conditions the scheduler absorbs
//   - Rate limit pauses (remaining below threshold)
//   - Retry attempts and their backoff
//   - Cache errors (request proceeds uncached)
//   - Requests that gave up after retries
//
// Error: conditions requiring attention, logged by callers
//   - Configuration errors
//   - Server failures
//
// Context Fields:
//   - component: emitting package (api-client, api-proxy, ...)
//   - scheduler: scheduler name (Trakt, OMDB, IGDB)
//   - provider: provider name used in cache keys and metrics
//   - endpoint: request path
//   - attempt: 1-based attempt number
//   - kind: attempt outcome (success, rejected, transport, failure)
//   - error_class: client, server, rate_limit, network, cancelled
//   - remaining: provider-reported remaining requests
