// Package logger wraps log/slog so every component logs through the same
// handler and picks up the active trace ID automatically, replacing the
// teacher's referenced-but-unused pkg/common/logger with a concrete
// implementation that reads the trace ID through go.opentelemetry.io/otel/trace.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Logger is a thin, leveled wrapper around *slog.Logger. Methods take a
// context so trace correlation can be attached on every call site without
// callers needing to know how that correlation works.
type Logger struct {
	slog *slog.Logger
}

// Config controls the underlying handler.
type Config struct {
	// Level is the minimum level that will be emitted.
	Level slog.Level
	// JSON selects a JSON handler over the default text handler, matching
	// what a production deployment would want for log aggregation.
	JSON bool
	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// New builds a Logger from cfg, tagging every record with the given
// service name.
func New(service string, cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return &Logger{slog: slog.New(handler).With("service", service)}
}

// NewNop returns a Logger that discards everything, for tests that need a
// non-nil logger but don't care about its output.
func NewNop() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a derived Logger that always includes the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) { l.log(ctx, slog.LevelDebug, msg, args) }
func (l *Logger) Info(ctx context.Context, msg string, args ...any)  { l.log(ctx, slog.LevelInfo, msg, args) }
func (l *Logger) Warn(ctx context.Context, msg string, args ...any)  { l.log(ctx, slog.LevelWarn, msg, args) }
func (l *Logger) Error(ctx context.Context, msg string, args ...any) { l.log(ctx, slog.LevelError, msg, args) }

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if !l.slog.Enabled(ctx, level) {
		return
	}
	if traceID := traceIDFrom(ctx); traceID != "" {
		args = append(args, "trace_id", traceID)
	}
	l.slog.Log(ctx, level, msg, args...)
}

// traceIDFrom extracts the active span's trace ID, if any, matching the
// correlation the otelslog bridge would otherwise add for us.
func traceIDFrom(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
