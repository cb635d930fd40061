package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/docbridge/internal/ir"
)

// DataType is the canonical runtime type of a column.
type DataType int

const (
	// TypeUnknown is only used while a column has seen nothing but nulls.
	// It never survives into a built schema.
	TypeUnknown DataType = iota
	TypeString
	TypeBoolean
	TypeInteger
	TypeLong
	TypeDouble
	TypeBigInteger
	TypeBigDecimal
	// TypeObject is the universal supertype of columns whose observed
	// values disagree in type.
	TypeObject
)

var typeNames = map[DataType]string{
	TypeUnknown:    "unknown",
	TypeString:     "string",
	TypeBoolean:    "boolean",
	TypeInteger:    "integer",
	TypeLong:       "long",
	TypeDouble:     "double",
	TypeBigInteger: "biginteger",
	TypeBigDecimal: "bigdecimal",
	TypeObject:     "object",
}

// String implements fmt.Stringer.
func (t DataType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType parses the name produced by String.
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s && t != TypeUnknown {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown data type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(b []byte) error {
	parsed, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TypeOf returns the observed type of a scalar document value.
// Null yields TypeUnknown: a null never assigns a type on its own.
// Arrays and objects are containers, not column values; they map to
// TypeObject if they ever reach a column.
func TypeOf(v ir.IRValue) DataType {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return TypeUnknown
	case ir.IRString:
		return TypeString
	case ir.IRBool:
		return TypeBoolean
	case ir.IRInt:
		if val >= math.MinInt32 && val <= math.MaxInt32 {
			return TypeInteger
		}
		return TypeLong
	case ir.IRFloat:
		return TypeDouble
	case ir.IRBigInt:
		return TypeBigInteger
	case ir.IRDecimal:
		return TypeBigDecimal
	default:
		return TypeObject
	}
}

// Merge combines the current type of a column with a newly observed type.
// The first known type wins; any different later type widens to
// TypeObject. Once TypeObject, always TypeObject.
func Merge(current, observed DataType) DataType {
	switch {
	case observed == TypeUnknown:
		return current
	case current == TypeUnknown:
		return observed
	case current == observed:
		return current
	default:
		return TypeObject
	}
}

// Resolved returns the type a column ends up with once inference is done:
// columns that only ever saw nulls default to TypeString.
func (t DataType) Resolved() DataType {
	if t == TypeUnknown {
		return TypeString
	}
	return t
}
