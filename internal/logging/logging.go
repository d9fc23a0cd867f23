// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a compact logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewCompactHandler(w, level))
}

// Tagged returns logger (or the default logger when nil) with a tag attribute.
func Tagged(logger *slog.Logger, tag string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(TagKey, tag)
}
