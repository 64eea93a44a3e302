// Package observability carries per-run correlation through context.Context
// and exposes slog helpers that attach it to every record. A run ID is
// generated once per pipeline invocation and travels with the context; there
// is no package-level run state.
package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qaops/migratrack/internal/logfields"
)

// RunContext holds the correlation fields for a single pipeline run.
type RunContext struct {
	RunID   string
	Project string
	Source  string
	Stage   string
}

type runContextKeyType string

const runContextKey runContextKeyType = "run-context"

// NewRunID returns a fresh identifier for a pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

// WithNewRunID attaches a freshly generated run ID to the context.
func WithNewRunID(ctx context.Context) context.Context {
	return WithRunID(ctx, NewRunID())
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	rc := extractRunContext(ctx)
	rc.RunID = runID
	return context.WithValue(ctx, runContextKey, rc)
}

// WithProject adds a project key to the context.
func WithProject(ctx context.Context, project string) context.Context {
	rc := extractRunContext(ctx)
	rc.Project = project
	return context.WithValue(ctx, runContextKey, rc)
}

// WithSource adds a source role to the context.
func WithSource(ctx context.Context, source string) context.Context {
	rc := extractRunContext(ctx)
	rc.Source = source
	return context.WithValue(ctx, runContextKey, rc)
}

// WithStage adds a pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	rc := extractRunContext(ctx)
	rc.Stage = stage
	return context.WithValue(ctx, runContextKey, rc)
}

// extractRunContext retrieves or creates a RunContext from the context.
func extractRunContext(ctx context.Context) RunContext {
	if rc, ok := ctx.Value(runContextKey).(RunContext); ok {
		return rc
	}
	return RunContext{}
}

// getLogAttrs returns slog attributes for the context's RunContext.
func getLogAttrs(ctx context.Context) []slog.Attr {
	rc := extractRunContext(ctx)
	attrs := []slog.Attr{}

	if rc.RunID != "" {
		attrs = append(attrs, logfields.RunID(rc.RunID))
	}
	if rc.Project != "" {
		attrs = append(attrs, logfields.Project(rc.Project))
	}
	if rc.Source != "" {
		attrs = append(attrs, logfields.Source(rc.Source))
	}
	if rc.Stage != "" {
		attrs = append(attrs, logfields.Stage(rc.Stage))
	}

	return attrs
}

// InfoContext logs an info message with run correlation attached.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelInfo, msg, allAttrs...)
}

// WarnContext logs a warning message with run correlation attached.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelWarn, msg, allAttrs...)
}

// ErrorContext logs an error message with run correlation attached.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// DebugContext logs a debug message with run correlation attached.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelDebug, msg, allAttrs...)
}

// GetContext returns the run correlation fields from the provided context.
func GetContext(ctx context.Context) RunContext {
	return extractRunContext(ctx)
}

// RunIDFromContext returns the run ID, or "" when none was attached.
func RunIDFromContext(ctx context.Context) string {
	return extractRunContext(ctx).RunID
}
