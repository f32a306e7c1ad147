package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide logger. Init replaces it; the default keeps
// library code usable from tests without setup.
var Log = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Init configures the global logger. Level comes from WETALK_LOG_LEVEL
// (debug|info|warn|error), defaulting to info.
func Init() {
	lvl := strings.ToLower(strings.TrimSpace(os.Getenv("WETALK_LOG_LEVEL")))
	var level slog.Level
	switch lvl {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
