package exec

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/docbridge/internal/ir"
)

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// ErrCodeBackend indicates the native backend failed the request.
	ErrCodeBackend ErrorCode = "BACKEND_FAILED"

	// ErrCodeCoercion indicates a native value does not convert to the
	// output column's type.
	ErrCodeCoercion ErrorCode = "COERCION_FAILED"

	// ErrCodeUnresolved indicates an output column matches no native field.
	ErrCodeUnresolved ErrorCode = "COLUMN_UNRESOLVED"

	// ErrCodeState indicates a call the cursor's current state does not allow.
	ErrCodeState ErrorCode = "INVALID_STATE"
)

// ErrCursorClosed is returned by Next after Close or Cancel.
var ErrCursorClosed = errors.New("cursor closed")

// BackendError wraps a failure reported by the native backend. It fails
// only the request that observed it.
type BackendError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCodeBackend, e.Op, e.Err)
}

// Unwrap returns the native cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// CoercionError reports a native value that cannot be converted to the
// type recorded for its output column. It fails only the current read; the
// cursor stays usable.
type CoercionError struct {
	Column string
	Value  ir.IRValue
	Err    error
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("%s: column %q value %s: %v", ErrCodeCoercion, e.Column, describe(e.Value), e.Err)
}

// Unwrap returns the conversion failure.
func (e *CoercionError) Unwrap() error {
	return e.Err
}

// StateError reports an operation the cursor's state does not allow.
type StateError struct {
	Op    string
	State State
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s in state %s", ErrCodeState, e.Op, e.State)
}

// Unavailable is returned by a RowSource or Opener when the backend has no
// data yet. The cursor turns it into a RetryAfter result, never an error.
type Unavailable struct {
	After time.Duration
}

// Error implements the error interface.
func (e *Unavailable) Error() string {
	return fmt.Sprintf("data not available, retry after %s", e.After)
}

// IsBackendError returns true if err is a native backend failure.
// Uses errors.As to handle wrapped errors.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// IsCoercionError returns true if err is a result coercion failure.
// Uses errors.As to handle wrapped errors.
func IsCoercionError(err error) bool {
	var ce *CoercionError
	return errors.As(err, &ce)
}

// retryDelay reports whether err asks the caller to come back later.
func retryDelay(err error) (time.Duration, bool) {
	var u *Unavailable
	if errors.As(err, &u) {
		return u.After, true
	}
	return 0, false
}

func describe(v ir.IRValue) string {
	if v == nil {
		return "null"
	}
	b, err := ir.MarshalIRValue(v)
	if err != nil {
		return ir.KindOf(v)
	}
	return string(b)
}
