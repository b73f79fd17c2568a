package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the dispatcher configuration is unusable
	ErrInvalidConfig = errors.New("invalid speech configuration")

	// ErrNilBackend is returned when no backend is supplied to the dispatcher
	ErrNilBackend = errors.New("speech backend cannot be nil")

	// ErrNilSink is returned when no output sink is supplied to the dispatcher
	ErrNilSink = errors.New("output sink cannot be nil")

	// ErrBackendPanic wraps a panic recovered from a backend call
	ErrBackendPanic = errors.New("backend panicked")
)

// ErrorCode identifies where in the speech pipeline an error occurred.
type ErrorCode string

const (
	// ErrorCodeLaunchFailure means a spoken response could not be scheduled
	ErrorCodeLaunchFailure ErrorCode = "LAUNCH_FAILURE"

	// ErrorCodeBackendSay means the backend rejected a batch for synthesis
	ErrorCodeBackendSay ErrorCode = "BACKEND_SAY"

	// ErrorCodeBackendFlush means the backend failed to play a batch
	ErrorCodeBackendFlush ErrorCode = "BACKEND_FLUSH"

	// ErrorCodeInvalidConfig means the configuration was rejected
	ErrorCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Error is a speech pipeline error with the session it belongs to.
type Error struct {
	Code    ErrorCode
	Message string
	Session string
	Batch   int
	Cause   error
}

// NewError creates a new speech error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Batch:   -1,
		Cause:   cause,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Session != "" {
		msg += fmt.Sprintf(" (session %s", e.Session)
		if e.Batch >= 0 {
			msg += fmt.Sprintf(", batch %d", e.Batch)
		}
		msg += ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSession records which session and batch the error happened in.
func (e *Error) WithSession(id string, batch int) *Error {
	e.Session = id
	e.Batch = batch
	return e
}

// IsBackendError reports whether err came from a Say or Flush call.
func IsBackendError(err error) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == ErrorCodeBackendSay || se.Code == ErrorCodeBackendFlush
}
