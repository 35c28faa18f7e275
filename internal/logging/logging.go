// Package logging configures structured logging with log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger on stderr. Stdout is left to command
// output.
//
// Level values: "debug", "info", "warn", "error" (default "info").
// Format values: "text", "json" (default "text").
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stderr, level, format)
	slog.SetDefault(logger)
	return logger
}

// New returns a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to slog.Level. Unknown names mean info.
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

type uploadIDKey struct{}

// WithUploadID tags ctx with an upload id for FromContext.
func WithUploadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, uploadIDKey{}, id)
}

// UploadID returns the id stored by WithUploadID, or "".
func UploadID(ctx context.Context) string {
	id, _ := ctx.Value(uploadIDKey{}).(string)
	return id
}

// FromContext returns the default logger, carrying upload_id when ctx has one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if id := UploadID(ctx); id != "" {
		logger = logger.With("upload_id", id)
	}
	return logger
}
