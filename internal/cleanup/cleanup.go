// Package cleanup removes a session's downloaded data once playback is over.
package cleanup

import (
	"log/slog"
	"os"
)

type Mode string

const (
	// ModeAlways deletes session data on every teardown.
	ModeAlways Mode = "always"
	// ModeKeep leaves downloaded data on disk for later reuse.
	ModeKeep Mode = "keep"
)

func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case ModeAlways, ModeKeep:
		return Mode(value), true
	case "":
		return ModeAlways, true
	default:
		return "", false
	}
}

type Policy struct {
	Mode   Mode
	Logger *slog.Logger
}

// Apply disposes of the data at path according to the policy. Idempotent: a
// missing path is success, and errors are logged rather than propagated so
// teardown never fails on cleanup.
func (p *Policy) Apply(path string) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" || p.Mode == ModeKeep {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		logger.Warn("session data cleanup failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("session data removed", slog.String("path", path))
}
