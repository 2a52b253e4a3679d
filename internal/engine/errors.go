package engine

import (
	"errors"
	"fmt"

	"github.com/sluicedata/sluice/internal/provision"
	"github.com/sluicedata/sluice/internal/translate"
)

// ErrorCode categorizes engine failures.
type ErrorCode string

const (
	// ErrCodeConnection indicates storage or the job coordinator could
	// not be reached during Init.
	ErrCodeConnection ErrorCode = "CONNECTION"

	// ErrCodeExecution indicates a job launch or monitoring failure.
	ErrCodeExecution ErrorCode = "EXECUTION"

	// ErrCodeUnsupported marks operations this engine deliberately does
	// not implement. Callers must not mistake it for an empty result.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_OPERATION"

	// ErrCodeState indicates a call in the wrong lifecycle state, such as
	// Execute before Init.
	ErrCodeState ErrorCode = "BAD_STATE"
)

// Error is an engine failure with its category and cause.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine: %s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsUnsupported reports whether err marks a deliberately unimplemented
// operation.
func IsUnsupported(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeUnsupported
}

// IsConnection reports whether err is an init-time connection failure.
func IsConnection(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeConnection
}

func newError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

func unsupported(op string) *Error {
	return newError(ErrCodeUnsupported, op, "not supported by this engine")
}

// wrapExecution applies the pass-through policy: engine, compilation, and
// provisioning errors cross the Execute boundary unchanged; anything else
// is wrapped with its cause preserved.
func wrapExecution(op string, err error) error {
	var (
		ee *Error
		ce *translate.CompileError
		pe *provision.Error
	)
	if errors.As(err, &ee) || errors.As(err, &ce) || errors.As(err, &pe) {
		return err
	}
	return &Error{Code: ErrCodeExecution, Op: op, Message: err.Error(), Cause: err}
}
