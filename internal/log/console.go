// Package log provides configurable logging for ripple.
package log

import (
	"io"
	"log/slog"
)

// NewConsoleHandler creates a text or json handler writing to w. Source
// locations are attached at debug level, where they are worth the noise.
func NewConsoleHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
