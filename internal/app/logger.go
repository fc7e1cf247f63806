package app

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. Output goes to stderr so the player's
// own stdout stays clean.
func NewLogger(cfg LogConfig) *slog.Logger {
	level := parseLogLevel(cfg.Level)
	options := &slog.HandlerOptions{Level: level}
	if strings.ToLower(strings.TrimSpace(cfg.Format)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, options))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
