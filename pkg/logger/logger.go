package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"neurocost/pkg/config"
)

// Logger wraps slog.Logger with the field names used across training and
// plan selection.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler on stderr at info level.
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

// NewJSONLogger creates a Logger that writes JSON lines to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// ParseLevel accepts debug, info, warn/warning and error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// FromConfig builds a Logger writing to w according to cfg.
func FromConfig(cfg config.LogConfig, w io.Writer) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "json":
		return NewLogger(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return NewLogger(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", cfg.Format)
}

// Or returns l, or a NoopLogger when l is nil.
func (l *Logger) Or() *Logger {
	if l == nil {
		return NoopLogger()
	}
	return l
}

// WithStage tags subsequent records with a pipeline stage.
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{
		Logger: l.Logger.With("stage", stage),
	}
}

// WithQuery tags subsequent records with a query name.
func (l *Logger) WithQuery(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("query", name),
	}
}

// LogTraining logs the outcome of fitting one model.
func (l *Logger) LogTraining(ctx context.Context, model string, samples int, validationMAE float64, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"model", model,
			"samples", samples,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "training completed",
		"model", model,
		"samples", samples,
		"validation_mae_ms", validationMAE,
		"took", took,
	)
}

// LogSkip logs that training was skipped because an artifact already exists.
func (l *Logger) LogSkip(ctx context.Context, model, key string) {
	l.InfoContext(ctx, "artifact exists, reusing",
		"model", model,
		"key", key,
	)
}

// LogFallback logs a component being rebuilt because its artifact was missing.
func (l *Logger) LogFallback(ctx context.Context, component, reason string) {
	l.WarnContext(ctx, "falling back to training",
		"component", component,
		"reason", reason,
	)
}

// LogArtifact logs a store write.
func (l *Logger) LogArtifact(ctx context.Context, slot, key, runID string, saved bool, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "artifact save failed",
			"slot", slot,
			"key", key,
			"error", err,
		)
	case saved:
		l.InfoContext(ctx, "artifact saved",
			"slot", slot,
			"key", key,
			"run_id", runID,
		)
	default:
		l.DebugContext(ctx, "artifact left in place",
			"slot", slot,
			"key", key,
		)
	}
}

// LogChoice logs the plan chosen for one query.
func (l *Logger) LogChoice(ctx context.Context, query, tag string, predictedMs float64, scored, skipped int) {
	if tag == "" {
		l.WarnContext(ctx, "no candidate could be scored",
			"query", query,
			"skipped", skipped,
		)
		return
	}
	l.DebugContext(ctx, "plan chosen",
		"query", query,
		"tag", tag,
		"predicted_ms", predictedMs,
		"scored", scored,
		"skipped", skipped,
	)
}
