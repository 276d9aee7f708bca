package bookrec

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with bookrec-specific helpers so operations log
// consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses the default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// LogBuild logs the outcome of a full pipeline build.
func (l *Logger) LogBuild(ctx context.Context, rows, cols int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed", "error", err)
		return
	}
	l.InfoContext(ctx, "build completed",
		"titles", rows,
		"users", cols,
		"took", took,
	)
}

// LogArtifact logs an artifact cache interaction.
func (l *Logger) LogArtifact(ctx context.Context, action, name string, err error) {
	if err != nil {
		l.WarnContext(ctx, "artifact "+action+" failed",
			"artifact", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "artifact "+action,
		"artifact", name,
	)
}

// LogQuery logs a recommendation query.
func (l *Logger) LogQuery(ctx context.Context, title string, k int, found bool, results int) {
	l.DebugContext(ctx, "recommendation query",
		"title", title,
		"k", k,
		"found", found,
		"results", results,
	)
}
