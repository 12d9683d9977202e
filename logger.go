package permuto

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with permuto-specific context.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithDimension adds the feature dimension to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds an element count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogFilter logs the outcome of a filter call.
func (l *Logger) LogFilter(ctx context.Context, stats Stats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "filter failed",
			"elements", stats.Elements,
			"vertices", stats.Vertices,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "filter completed",
		"elements", stats.Elements,
		"vertices", stats.Vertices,
		"written", stats.Written,
		"growths", stats.Growths,
		"duration", stats.Duration.Round(time.Microsecond),
	)
}

// LogGrowth logs a hash table growth event.
func (l *Logger) LogGrowth(ctx context.Context, capacity int) {
	l.DebugContext(ctx, "lattice table grown", "capacity", capacity)
}
