package schema

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docbridge/internal/ir"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		in   ir.IRValue
		want DataType
	}{
		{"null", ir.IRNull{}, TypeUnknown},
		{"nil", nil, TypeUnknown},
		{"string", ir.IRString("a"), TypeString},
		{"bool", ir.IRBool(true), TypeBoolean},
		{"small int", ir.IRInt(42), TypeInteger},
		{"int32 max", ir.IRInt(2147483647), TypeInteger},
		{"int32 overflow", ir.IRInt(2147483648), TypeLong},
		{"negative long", ir.IRInt(-2147483649), TypeLong},
		{"float", ir.IRFloat(1.5), TypeDouble},
		{"bigint", ir.IRBigInt{V: big.NewInt(1)}, TypeBigInteger},
		{"decimal", ir.IRDecimal{V: decimal.RequireFromString("1.25")}, TypeBigDecimal},
		{"array", ir.IRArray{}, TypeObject},
		{"object", ir.IRObject{}, TypeObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.in))
		})
	}
}

func TestMerge_MonotonicWidening(t *testing.T) {
	tests := []struct {
		name     string
		current  DataType
		observed DataType
		want     DataType
	}{
		{"first type wins", TypeUnknown, TypeInteger, TypeInteger},
		{"null keeps type", TypeString, TypeUnknown, TypeString},
		{"same type", TypeLong, TypeLong, TypeLong},
		{"conflict widens", TypeInteger, TypeString, TypeObject},
		{"object stays object", TypeObject, TypeString, TypeObject},
		{"object ignores null", TypeObject, TypeUnknown, TypeObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.current, tt.observed))
		})
	}
}

func TestMerge_NeverNarrows(t *testing.T) {
	observed := []DataType{TypeString, TypeInteger, TypeUnknown, TypeString, TypeBoolean}
	cur := TypeUnknown
	for _, o := range observed {
		cur = Merge(cur, o)
	}
	assert.Equal(t, TypeObject, cur)
}

func TestResolved(t *testing.T) {
	assert.Equal(t, TypeString, TypeUnknown.Resolved())
	assert.Equal(t, TypeDouble, TypeDouble.Resolved())
}

func TestParseDataType(t *testing.T) {
	for dt, name := range typeNames {
		if dt == TypeUnknown {
			continue
		}
		got, err := ParseDataType(name)
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}

	got, err := ParseDataType(" BigDecimal ")
	require.NoError(t, err)
	assert.Equal(t, TypeBigDecimal, got)

	_, err = ParseDataType("unknown")
	assert.Error(t, err)
	_, err = ParseDataType("varchar")
	assert.Error(t, err)
}

func TestDataType_Text(t *testing.T) {
	b, err := TypeLong.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "long", string(b))

	var dt DataType
	require.NoError(t, dt.UnmarshalText([]byte("boolean")))
	assert.Equal(t, TypeBoolean, dt)
	assert.Error(t, dt.UnmarshalText([]byte("nope")))
}
