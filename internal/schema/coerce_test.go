package schema

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docbridge/internal/ir"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   ir.IRValue
		to   DataType
		want ir.IRValue
	}{
		{"null stays null", ir.IRNull{}, TypeInteger, ir.IRNull{}},
		{"nil is null", nil, TypeString, ir.IRNull{}},
		{"string to string", ir.IRString("a"), TypeString, ir.IRString("a")},
		{"int to string", ir.IRInt(7), TypeString, ir.IRString("7")},
		{"bool to string", ir.IRBool(true), TypeString, ir.IRString("true")},
		{"string to bool", ir.IRString("false"), TypeBoolean, ir.IRBool(false)},
		{"int to bool", ir.IRInt(1), TypeBoolean, ir.IRBool(true)},
		{"string to integer", ir.IRString(" 42 "), TypeInteger, ir.IRInt(42)},
		{"float to long", ir.IRFloat(3), TypeLong, ir.IRInt(3)},
		{"decimal to long", ir.IRDecimal{V: decimal.RequireFromString("10.00")}, TypeLong, ir.IRInt(10)},
		{"int to double", ir.IRInt(2), TypeDouble, ir.IRFloat(2)},
		{"string to double", ir.IRString("2.5"), TypeDouble, ir.IRFloat(2.5)},
		{"int to biginteger", ir.IRInt(5), TypeBigInteger, ir.IRBigInt{V: big.NewInt(5)}},
		{"anything to object", ir.IRArray{ir.IRInt(1)}, TypeObject, ir.IRArray{ir.IRInt(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce_BigDecimal(t *testing.T) {
	got, err := Coerce(ir.IRString("1.10"), TypeBigDecimal)
	require.NoError(t, err)
	d, ok := got.(ir.IRDecimal)
	require.True(t, ok)
	assert.True(t, d.V.Equal(decimal.RequireFromString("1.1")))
}

func TestCoerce_Failures(t *testing.T) {
	tests := []struct {
		name string
		in   ir.IRValue
		to   DataType
	}{
		{"fraction to integer", ir.IRFloat(1.5), TypeInteger},
		{"int32 overflow", ir.IRInt(1 << 40), TypeInteger},
		{"text to long", ir.IRString("abc"), TypeLong},
		{"bigint overflow", ir.IRBigInt{V: new(big.Int).Lsh(big.NewInt(1), 80)}, TypeLong},
		{"two to bool", ir.IRInt(2), TypeBoolean},
		{"object to string", ir.IRObject{}, TypeString},
		{"array to double", ir.IRArray{}, TypeDouble},
		{"fraction to biginteger", ir.IRString("1.5"), TypeBigInteger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(tt.in, tt.to)
			assert.Error(t, err)
		})
	}
}
