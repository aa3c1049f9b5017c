// Package log configures structured logging for all autoflow services.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide slog handler. Unknown level names fall
// back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a logger tagged with the originating service module.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
