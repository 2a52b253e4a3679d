package provision

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes handshake failures.
type ErrorCode string

const (
	// ErrCodeIO indicates the provisioning command could not be started
	// or its stream failed mid-read.
	ErrCodeIO ErrorCode = "HANDSHAKE_IO"

	// ErrCodeIncomplete indicates the stream closed before the
	// coordinator endpoint was captured.
	ErrCodeIncomplete ErrorCode = "INCOMPLETE_HANDSHAKE"

	// ErrCodeMalformed indicates a captured endpoint value that is not
	// host:port.
	ErrCodeMalformed ErrorCode = "MALFORMED_ENDPOINT"

	// ErrCodeResolve indicates the reachability check could not resolve
	// a discovered host.
	ErrCodeResolve ErrorCode = "HOST_UNRESOLVED"

	// ErrCodeMissingConf indicates the stream carried no cluster
	// configuration reference.
	ErrCodeMissingConf ErrorCode = "MISSING_CLUSTER_CONF"
)

// Error is a handshake failure with its category and cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provisioning: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsError reports whether err is (or wraps) a provisioning Error.
func IsError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
