// Package errors provides error handling for apruver.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details that survive wrapping
//
// On top of that it defines the failure taxonomy used across the approval loop:
//
//	ErrAuth         - login failed or the session could not be re-established
//	ErrUnauthorized - a single call was rejected with 401; triggers re-login
//	ErrNetwork      - connection or timeout failure; absorbed by scheduler backoff
//	ErrAPI          - well-formed error from the node for one request
//	ErrNotification - webhook delivery failed; never fatal
//	ErrFatal        - marks an error that must terminate the process
//
// Usage:
//
//	if err := client.Login(ctx); err != nil {
//	    return errors.NewAuthError(err, "login rejected")
//	}
//
//	if errors.IsFatal(err) {
//	    os.Exit(1)
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	Mark           = crdb.Mark
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors for the approval loop.
// Use these with errors.Is(); the constructors below mark wrapped errors with them.
var (
	// ErrAuth indicates authentication against the node failed
	ErrAuth = New("authentication failed")

	// ErrUnauthorized indicates the node rejected a call for a missing or expired session
	ErrUnauthorized = New("unauthorized")

	// ErrNetwork indicates a transport-level failure (connection refused, timeout, DNS)
	ErrNetwork = New("network error")

	// ErrAPI indicates the node returned a well-formed error for a specific request
	ErrAPI = New("api error")

	// ErrNotification indicates the notification webhook could not be reached
	ErrNotification = New("notification failed")

	// ErrFatal marks an error that must stop the process
	ErrFatal = New("fatal")

	// ErrInvalidConfig indicates the configuration failed validation
	ErrInvalidConfig = New("invalid configuration")
)

// NewAuthError wraps err as an authentication failure
func NewAuthError(err error, msg string) error {
	if err == nil {
		return Mark(New(msg), ErrAuth)
	}
	return Mark(Wrap(err, msg), ErrAuth)
}

// NewNetworkError wraps err as a transient network failure
func NewNetworkError(err error, msg string) error {
	return Mark(Wrap(err, msg), ErrNetwork)
}

// NewAPIError creates an API error with a formatted message
func NewAPIError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrAPI)
}

// NewNotificationError wraps err as a notification delivery failure
func NewNotificationError(err error, msg string) error {
	if err == nil {
		return Mark(New(msg), ErrNotification)
	}
	return Mark(Wrap(err, msg), ErrNotification)
}

// NewUnauthorized creates an unauthorized error for the given operation
func NewUnauthorized(operation string) error {
	return Mark(Newf("%s: node returned 401", operation), ErrUnauthorized)
}

// MarkFatal marks err so that IsFatal reports true
func MarkFatal(err error) error {
	if err == nil {
		return nil
	}
	return Mark(err, ErrFatal)
}

// IsAuth checks if an error is or wraps ErrAuth
func IsAuth(err error) bool {
	return err != nil && Is(err, ErrAuth)
}

// IsUnauthorized checks if an error is or wraps ErrUnauthorized
func IsUnauthorized(err error) bool {
	return err != nil && Is(err, ErrUnauthorized)
}

// IsNetwork checks if an error is or wraps ErrNetwork
func IsNetwork(err error) bool {
	return err != nil && Is(err, ErrNetwork)
}

// IsAPI checks if an error is or wraps ErrAPI
func IsAPI(err error) bool {
	return err != nil && Is(err, ErrAPI)
}

// IsNotification checks if an error is or wraps ErrNotification
func IsNotification(err error) bool {
	return err != nil && Is(err, ErrNotification)
}

// IsFatal checks if an error is or wraps ErrFatal
func IsFatal(err error) bool {
	return err != nil && Is(err, ErrFatal)
}

// NewInvalidConfigError creates a configuration error with a formatted message
func NewInvalidConfigError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidConfig)
}

// IsInvalidConfig checks if an error is or wraps ErrInvalidConfig
func IsInvalidConfig(err error) bool {
	return err != nil && Is(err, ErrInvalidConfig)
}
