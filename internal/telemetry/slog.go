package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" (case-insensitive)
// to a slog.Level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// NewLogger builds a logger writing to w. format "json" selects the JSON
// handler; anything else is the text handler. Source locations are included
// only at debug level.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// SetupLogger installs a stdout logger as the slog default.
func SetupLogger(format, level string) {
	setup(os.Stdout, format, level)
}

// SetupStderrLogger installs a stderr logger as the slog default. The probe
// binary uses it so stdout carries only probe output.
func SetupStderrLogger(format, level string) {
	setup(os.Stderr, format, level)
}

func setup(w io.Writer, format, level string) {
	slog.SetDefault(NewLogger(w, format, level))
	slog.Debug("logger initialised", "format", format, "level", ParseLevel(level).String())
}
