package latchkv

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger with store-specific events.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithSession tags the logger with a session id.
func (l *Logger) WithSession(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("session", id),
	}
}

// LogCheckpoint logs a checkpoint commit.
func (l *Logger) LogCheckpoint(ctx context.Context, id uuid.UUID, version, final uint64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed",
			"version", version,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "checkpoint committed",
			"checkpoint_id", id.String(),
			"version", version,
			"final_address", final,
			"elapsed", elapsed,
		)
	}
}

// LogRecovery logs a recovery from a checkpoint.
func (l *Logger) LogRecovery(ctx context.Context, id uuid.UUID, recovered, excluded int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recovery failed",
			"checkpoint_id", id.String(),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "recovery completed",
			"checkpoint_id", id.String(),
			"records_recovered", recovered,
			"records_excluded", excluded,
		)
	}
}

// LogFlush logs a flushed log range.
func (l *Logger) LogFlush(from, until uint64, bytes int, elapsed time.Duration) {
	l.Debug("log flushed",
		"from_address", from,
		"until_address", until,
		"bytes", bytes,
		"elapsed", elapsed,
	)
}

// LogFlushError logs a failed flush. The log refuses further writes.
func (l *Logger) LogFlushError(err error) {
	l.Error("log flush failed", "error", err)
}

// LogPageEvicted logs a page leaving memory.
func (l *Logger) LogPageEvicted(page uint64) {
	l.Debug("page evicted", "page", page)
}
