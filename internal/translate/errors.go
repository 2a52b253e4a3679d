package translate

import (
	"errors"
	"fmt"

	"github.com/sluicedata/sluice/internal/plan"
)

// CompileErrorCode categorizes translation failures.
type CompileErrorCode string

const (
	// ErrCodeNilPlan indicates Compile was handed no plan at all.
	ErrCodeNilPlan CompileErrorCode = "NIL_PLAN"

	// ErrCodeUnknownOperator indicates an operator variant or binary
	// operator name the translator does not recognize.
	ErrCodeUnknownOperator CompileErrorCode = "UNKNOWN_OPERATOR"

	// ErrCodeSchema indicates a node whose schema could not be resolved.
	ErrCodeSchema CompileErrorCode = "UNRESOLVED_SCHEMA"

	// ErrCodeArity indicates a node with a missing or extra input.
	ErrCodeArity CompileErrorCode = "INVALID_ARITY"
)

// CompileError reports the first node-level failure encountered during
// translation. The physical plan under construction is discarded; a
// CompileError never accompanies a partially wired plan.
type CompileError struct {
	Code    CompileErrorCode
	Key     plan.OperatorKey // offending logical node, zero for plan-level failures
	Message string
	Cause   error
}

func (e *CompileError) Error() string {
	if e.Key != (plan.OperatorKey{}) {
		return fmt.Sprintf("%s at %s: %s", e.Code, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// IsCompileError reports whether err is (or wraps) a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

func newError(code CompileErrorCode, key plan.OperatorKey, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Key: key, Message: fmt.Sprintf(format, args...)}
}
