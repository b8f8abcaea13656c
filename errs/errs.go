// Package errs defines the failure taxonomy shared by the loader, the
// storage adapter and the benchmark drivers. Every failure is fatal to
// the run that raised it; the kind only decides how it is reported.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindSourceUnavailable    Kind = "SOURCE_UNAVAILABLE"
	KindConnection           Kind = "CONNECTION"
	KindDuplicateKey         Kind = "DUPLICATE_KEY"
	KindInvalidConfiguration Kind = "INVALID_CONFIGURATION"
	KindWorkerFailure        Kind = "WORKER_FAILURE"
	KindLookup               Kind = "LOOKUP"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrSourceUnavailable    = &Error{Kind: KindSourceUnavailable}
	ErrConnection           = &Error{Kind: KindConnection}
	ErrDuplicateKey         = &Error{Kind: KindDuplicateKey}
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	ErrWorkerFailure        = &Error{Kind: KindWorkerFailure}
	ErrLookup               = &Error{Kind: KindLookup}
)

// Error is the structured error returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	// Key is the offending lookup key, set for duplicate-key failures.
	Key   string
	Cause error
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key %q)", msg, e.Key)
	}

	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}

	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}

	return false
}

// New creates an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Invalid is shorthand for an INVALID_CONFIGURATION error.
func Invalid(format string, args ...any) *Error {
	return New(KindInvalidConfiguration, fmt.Sprintf(format, args...))
}

// Duplicate reports a uniqueness violation on key.
func Duplicate(key string, cause error) *Error {
	return &Error{
		Kind:    KindDuplicateKey,
		Message: "duplicate key",
		Key:     key,
		Cause:   cause,
	}
}

// KindOf extracts the outermost kind from an error chain.
// Returns empty string if the chain carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}
