package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging.
// Use these constants instead of raw strings so log queries stay stable.
const (
	// Identity
	FieldRunID     = "run_id"
	FieldJobID     = "job_id"
	FieldJobName   = "job_name"
	FieldHistoryID = "history_id"
	FieldTaskID    = "task_id"
	FieldStream    = "job_stream"

	// Components
	FieldComponent = "component"

	// Schedule and windows
	FieldWeekday      = "weekday"
	FieldScheduleTime = "schedule_time"
	FieldWindowStart  = "window_start"
	FieldWindowEnd    = "window_end"
	FieldStrategy     = "strategy"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldNextRun    = "next_run"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount = "count"

	// Outcome
	FieldStatus  = "status"
	FieldVerdict = "verdict"
	FieldRule    = "rule"

	// Files and addresses
	FieldPath = "path"
	FieldHost = "host"
)

type contextKey string

const runIDKey contextKey = "logger_run_id"

// WithRunID adds a report run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the report run ID carried by ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	runID, _ := ctx.Value(runIDKey).(string)
	return runID
}

// FromContext returns base with the run ID from ctx attached.
// Components call this at the top of a run-scoped operation so every line
// they log can be correlated with the report it belongs to.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		return base.With(FieldRunID, runID)
	}
	return base
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection:
//
//	resolver := due.NewResolver(st, logger.ComponentLogger("due"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
