package schema

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/docbridge/internal/ir"
)

// Coerce converts v to the runtime representation of t:
//
//	TypeString      ir.IRString
//	TypeBoolean     ir.IRBool
//	TypeInteger     ir.IRInt within int32
//	TypeLong        ir.IRInt
//	TypeDouble      ir.IRFloat
//	TypeBigInteger  ir.IRBigInt
//	TypeBigDecimal  ir.IRDecimal
//	TypeObject      v unchanged
//
// Null stays null for every type. Conversions that lose information, such
// as 1.5 to an integer type, fail.
func Coerce(v ir.IRValue, t DataType) (ir.IRValue, error) {
	if v == nil {
		return ir.IRNull{}, nil
	}
	if _, ok := v.(ir.IRNull); ok {
		return v, nil
	}

	switch t {
	case TypeObject:
		return v, nil
	case TypeString, TypeUnknown:
		if s, ok := v.(ir.IRString); ok {
			return s, nil
		}
		if text, ok := ScalarText(v); ok {
			return ir.IRString(text), nil
		}
	case TypeBoolean:
		return toBool(v)
	case TypeInteger, TypeLong:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if t == TypeInteger && (n < math.MinInt32 || n > math.MaxInt32) {
			return nil, fmt.Errorf("value %d out of integer range", n)
		}
		return ir.IRInt(n), nil
	case TypeDouble:
		d, err := toDecimal(v)
		if err != nil {
			return nil, err
		}
		f, _ := d.Float64()
		return ir.IRFloat(f), nil
	case TypeBigInteger:
		d, err := toDecimal(v)
		if err != nil {
			return nil, err
		}
		if !d.Equal(d.Truncate(0)) {
			return nil, fmt.Errorf("value %s is not integral", d)
		}
		return ir.IRBigInt{V: d.BigInt()}, nil
	case TypeBigDecimal:
		d, err := toDecimal(v)
		if err != nil {
			return nil, err
		}
		return ir.IRDecimal{V: d}, nil
	}
	return nil, fmt.Errorf("cannot convert %s to %s", ir.KindOf(v), t)
}

func toBool(v ir.IRValue) (ir.IRValue, error) {
	switch val := v.(type) {
	case ir.IRBool:
		return val, nil
	case ir.IRInt:
		if val == 0 || val == 1 {
			return ir.IRBool(val == 1), nil
		}
	case ir.IRString:
		if b, err := strconv.ParseBool(strings.TrimSpace(string(val))); err == nil {
			return ir.IRBool(b), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %s to %s", ir.KindOf(v), TypeBoolean)
}

func toInt64(v ir.IRValue) (int64, error) {
	switch val := v.(type) {
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return 1, nil
		}
		return 0, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("value %s is not integral", d)
	}
	bi := d.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("value %s out of long range", bi)
	}
	return bi.Int64(), nil
}

func toDecimal(v ir.IRValue) (decimal.Decimal, error) {
	switch val := v.(type) {
	case ir.IRInt:
		return decimal.NewFromInt(int64(val)), nil
	case ir.IRFloat:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, fmt.Errorf("non-finite number %v", f)
		}
		return decimal.NewFromFloat(f), nil
	case ir.IRBigInt:
		return decimal.NewFromBigInt(new(big.Int).Set(val.V), 0), nil
	case ir.IRDecimal:
		return val.V, nil
	case ir.IRString:
		d, err := decimal.NewFromString(strings.TrimSpace(string(val)))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("cannot convert %q to a number", string(val))
		}
		return d, nil
	}
	return decimal.Decimal{}, fmt.Errorf("cannot convert %s to a number", ir.KindOf(v))
}
