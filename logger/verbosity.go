package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
//
// INFO lines are the audit trail of approvals; the default level is INFO.
const (
	VerbosityDefault = 0 // No flags: approvals, cycle summaries, warnings, errors
	VerbosityDebug   = 1 // -v: + HTTP calls, session lifecycle, skipped proposals
)

// VerbosityToLevel maps verbosity flags (-v, -vv) to zap log levels
//
// Mapping:
//
//	0 (none)  -> InfoLevel
//	1+ (-v)   -> DebugLevel
//	negative  -> WarnLevel (--quiet)
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity < VerbosityDefault:
		return zapcore.WarnLevel
	case verbosity == VerbosityDefault:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
