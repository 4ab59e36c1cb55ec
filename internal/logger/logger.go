package logger

import (
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/watchman/internal/config"
)

// LogLevelEnv overrides the configured log level.
const LogLevelEnv = "WATCHMAN_LOG_LEVEL"

// NewLogger creates a new hclog.Logger instance based on the configuration and the provided name.
// Operational logs go to stderr so that the stdout sink stays machine readable.
func NewLogger(cfg *config.Config, name string) hclog.Logger {
	return newLogger(cfg, name, os.Stderr)
}

func newLogger(cfg *config.Config, name string, output io.Writer) hclog.Logger {
	jsonFormat := false
	if cfg != nil {
		jsonFormat = cfg.Logging.JSONFormat
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		DisableTime: true,
		JSONFormat:  jsonFormat,
		Output:      output,
		Level:       determineLogLevel(cfg),
	})
}

// WithRunID returns a child logger tagged with a fresh run identifier.
func WithRunID(logger hclog.Logger) (hclog.Logger, string) {
	id := uuid.New().String()
	return logger.With("run_id", id), id
}

// determineLogLevel returns a log level determined first by an environment variable, and if not set, by the provided configuration.
// If neither configuration nor environment variable specifies a log level, it defaults to INFO.
func determineLogLevel(cfg *config.Config) hclog.Level {
	if logLevelEnv := os.Getenv(LogLevelEnv); logLevelEnv != "" {
		return parseLogLevel(strings.ToUpper(logLevelEnv))
	}
	if cfg == nil {
		return hclog.Info
	}
	return parseLogLevel(strings.ToUpper(cfg.Logging.Level))
}

// parseLogLevel converts a string level to hclog.Level.
func parseLogLevel(levelStr string) hclog.Level {
	switch levelStr {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "", "INFO":
		return hclog.Info
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		hclog.New(&hclog.LoggerOptions{
			Level:       hclog.Warn,
			DisableTime: true,
			Output:      os.Stderr,
		}).Warn("Unrecognized log level, defaulting to INFO", "providedLevel", levelStr)
		return hclog.Info
	}
}
