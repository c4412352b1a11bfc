// Package logging configures structured logging for the Brightpearl
// client using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to output: debug, info, warn, error.
	Level string

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output receives the log stream (default os.Stderr).
	Output io.Writer
}

// DefaultConfig returns the default logger configuration, honoring the
// BRIGHTPEARL_LOG_LEVEL environment variable.
func DefaultConfig() Config {
	level := os.Getenv("BRIGHTPEARL_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return Config{
		Level:  level,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Components
// derive their own loggers from it via NewLogger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// NewLogger returns a logger tagged with a component name. Components in
// this module use the bp- prefix: bp-client, bp-pagination, bp-products,
// bp-availability, bp-reconciler.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// parseLevel maps a level name to a zerolog level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
