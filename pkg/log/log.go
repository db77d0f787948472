// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

const defaultLevel = slog.LevelInfo

// Setup installs a JSON logger on stderr as the process default. Unknown
// level names fall back to info rather than failing startup.
func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})))
}

func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// WithModule returns a logger tagged with the component it belongs to.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
