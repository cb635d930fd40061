package translate

import (
	"errors"
	"fmt"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
)

var (
	// ErrUnsupportedOperator is returned for a comparison operator outside
	// the backend primitive set.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnknownColumn is returned when a condition references a column the
	// table does not have.
	ErrUnknownColumn = errors.New("unknown column")
)

// CoercionError reports a literal that cannot be converted to the type of
// the column it is compared with.
type CoercionError struct {
	Column string
	Value  ir.IRValue
	Target schema.DataType
	Err    error
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("COERCION_FAILED: literal %s for column %q (%s): %v",
		ir.KindOf(e.Value), e.Column, e.Target, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CoercionError) Unwrap() error {
	return e.Err
}

// IsCoercionError returns true if err is a literal coercion failure.
// Uses errors.As to handle wrapped errors.
func IsCoercionError(err error) bool {
	var ce *CoercionError
	return errors.As(err, &ce)
}
