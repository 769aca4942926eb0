package errors

import "fmt"

// ErrorCode identifies the failure class of a startup error. The ranges
// mirror the boot sequence: 1xxx configuration, 2xxx readiness gate,
// 3xxx privilege setup, 4xxx process handoff.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Readiness gate
	ErrCodeStoreUnready  ErrorCode = 2001
	ErrCodeMigrateFailed ErrorCode = 2002

	// Privilege setup
	ErrCodeGroupSetup     ErrorCode = 3001
	ErrCodeOwnershipSetup ErrorCode = 3002
	ErrCodeDropFailed     ErrorCode = 3003

	// Handoff
	ErrCodeTargetNotFound  ErrorCode = 4001
	ErrCodeExecFailed      ErrorCode = 4002
	ErrCodeModeUnknown     ErrorCode = 4003
	ErrCodeBootstrapFailed ErrorCode = 4004
)

// StartupError carries the error code, the operation that was underway,
// and the underlying cause. Every fatal path in castellan surfaces one of
// these before the process exits non-zero.
type StartupError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *StartupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *StartupError) Unwrap() error {
	return e.Err
}

// New creates a new StartupError with the specified code, operation, message,
// and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &StartupError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// Code extracts the ErrorCode from err, or ErrCodeUnknown when err is not a
// StartupError.
func Code(err error) ErrorCode {
	if se, ok := err.(*StartupError); ok {
		return se.Code
	}
	return ErrCodeUnknown
}
