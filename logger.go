package colframe

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with colframe-specific context.
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
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithTable adds a table field to the logger.
func (l *Logger) WithTable(names ...string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", names),
	}
}

// LogOpenTable logs opening the array groups of a table.
func (l *Logger) LogOpenTable(ctx context.Context, names []string, columns int, rows uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open table failed",
			"groups", names,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "table opened",
			"groups", names,
			"columns", columns,
			"rows", rows,
		)
	}
}

// LogOptimize logs an optimizer run.
func (l *Logger) LogOptimize(ctx context.Context, passes, rewrites int, converged bool, d time.Duration) {
	if !converged {
		l.WarnContext(ctx, "plan optimization stopped before convergence",
			"passes", passes,
			"rewrites", rewrites,
			"duration", d,
		)
	} else {
		l.DebugContext(ctx, "plan optimized",
			"passes", passes,
			"rewrites", rewrites,
			"duration", d,
		)
	}
}

// LogScan logs a parallel scan.
func (l *Logger) LogScan(ctx context.Context, tables, threads int, rows int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"tables", tables,
			"threads", threads,
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scan completed",
			"tables", tables,
			"threads", threads,
			"rows", rows,
		)
	}
}
