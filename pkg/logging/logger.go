// Package logging configures zerolog for the catalog loader.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentClient  = "catalog-client"
	ComponentLoader  = "loader"
	ComponentScroll  = "scroll"
	ComponentCLI     = "cli"
	ComponentExport  = "export"
	ComponentMetrics = "metrics"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel validates a level name from configuration.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level guidelines:
//
// Debug: request flow and state transitions
//   - issued fetches (mode, term, cursor, seq)
//   - applied batches and discarded stale responses
//   - cache lookups and conditional requests
//   - scroll listener attach/detach
//
// Info: lifecycle
//   - loader start/stop
//   - retried requests that succeeded
//   - CLI command start and completion
//
// Warn: degraded but working
//   - duplicate item IDs in the result set
//   - rate limit throttling
//   - cache errors (request goes to the server)
//   - exhausted transport retries
//
// Error: a fetch failed or a request was held
//   - catalog fetch failures (the result set is left as it was)
//   - rate limit window exhausted
//
// Common fields:
//   - component: see the Component constants
//   - session: controller session id
//   - mode, term, cursor, seq, epoch: loader request identity
//   - endpoint: browse or search
//   - error_class: network, client, server, rate_limit, decode
