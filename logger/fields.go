package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings so log queries stay stable.
const (
	// Identity and context
	FieldCycleID        = "cycle_id"
	FieldProposalID     = "proposal_id"
	FieldExternalJobID  = "external_job_id"
	FieldFeedsManagerID = "feeds_manager_id"
	FieldNetwork        = "network"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldURL       = "url"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldAttempt    = "attempt"
	FieldNextIn     = "next_in"

	// Errors
	FieldError    = "error"
	FieldReason   = "reason"
	FieldHTTPCode = "http_status"

	// Counts
	FieldCount    = "count"
	FieldApproved = "approved"
	FieldFailed   = "failed"
	FieldSkipped  = "skipped"

	// Status
	FieldStatus  = "status"
	FieldOutcome = "outcome"
	FieldState   = "state"
)

// Context keys for propagating logging context
type contextKey string

const (
	cycleIDKey   contextKey = "logger_cycle_id"
	componentKey contextKey = "logger_component"
)

// WithCycleID adds a cycle ID to the context for logging
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey, cycleID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// CycleIDFromContext returns the cycle ID stored in ctx, or "".
func CycleIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey).(string)
	return id
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if cycleID, ok := ctx.Value(cycleIDKey).(string); ok && cycleID != "" {
		fields = append(fields, FieldCycleID, cycleID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext returns base enriched with fields carried by ctx.
// A nil base falls back to the global Logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Manager struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewManager() *Manager {
//	    return &Manager{
//	        logger: logger.ComponentLogger("node.session"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	proposalLogger := logger.ChildLogger(baseLogger, logger.FieldProposalID, p.ID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
