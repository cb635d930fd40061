package ir

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRFloat(1.5)
	var _ IRValue = IRBigInt{V: big.NewInt(1)}
	var _ IRValue = IRDecimal{V: decimal.NewFromInt(1)}
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{"a": IRInt(1), "A": IRInt(2), "aa": IRInt(3), "aA": IRInt(4), "Aa": IRInt(5), "AA": IRInt(6)}
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestUnmarshalIRValue_Numbers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, v IRValue)
	}{
		{"small int", `4`, func(t *testing.T, v IRValue) { assert.Equal(t, IRInt(4), v) }},
		{"negative int", `-17`, func(t *testing.T, v IRValue) { assert.Equal(t, IRInt(-17), v) }},
		{"big int", `123456789012345678901234567890`, func(t *testing.T, v IRValue) {
			bi, ok := v.(IRBigInt)
			require.True(t, ok, "expected IRBigInt, got %T", v)
			assert.Equal(t, "123456789012345678901234567890", bi.V.String())
		}},
		{"double", `2.5`, func(t *testing.T, v IRValue) { assert.Equal(t, IRFloat(2.5), v) }},
		{"exponent", `1e3`, func(t *testing.T, v IRValue) { assert.Equal(t, IRFloat(1000), v) }},
		{"long decimal", `3.14159265358979323846`, func(t *testing.T, v IRValue) {
			d, ok := v.(IRDecimal)
			require.True(t, ok, "expected IRDecimal, got %T", v)
			assert.Equal(t, "3.14159265358979323846", d.V.String())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := UnmarshalIRValue([]byte(tt.input))
			require.NoError(t, err)
			tt.check(t, v)
		})
	}
}

func TestUnmarshalIRObject(t *testing.T) {
	obj, err := UnmarshalIRObject([]byte(`{"type":"car","wheels":4,"tags":["a",null],"owner":{"name":"x"}}`))
	require.NoError(t, err)

	assert.Equal(t, IRString("car"), obj["type"])
	assert.Equal(t, IRInt(4), obj["wheels"])
	assert.Equal(t, IRArray{IRString("a"), IRNull{}}, obj["tags"])
	assert.Equal(t, IRObject{"name": IRString("x")}, obj["owner"])
}

func TestUnmarshalIRObject_RejectsNonObject(t *testing.T) {
	_, err := UnmarshalIRObject([]byte(`[1,2]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON object")
}

func TestMarshalIRValue_RoundTrip(t *testing.T) {
	input := `{"a":[1,2.5,true,null],"b":{"c":"d"},"n":123456789012345678901234567890}`
	v, err := UnmarshalIRValue([]byte(input))
	require.NoError(t, err)

	out, err := MarshalIRValue(v)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
}

func TestToNative(t *testing.T) {
	v := IRObject{"a": IRArray{IRInt(1), IRString("x"), IRNull{}}, "b": IRBool(true)}
	native := ToNative(v)
	assert.Equal(t, map[string]any{"a": []any{int64(1), "x", nil}, "b": true}, native)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "null", KindOf(IRNull{}))
	assert.Equal(t, "integer", KindOf(IRInt(1)))
	assert.Equal(t, "number", KindOf(IRFloat(1)))
	assert.Equal(t, "array", KindOf(IRArray{}))
}

func TestIRObjectLookup(t *testing.T) {
	obj := IRObject{
		"engine": IRObject{"hp": IRInt(300)},
		"name":   IRString("x"),
	}

	v, ok := obj.Lookup("engine", "hp")
	require.True(t, ok)
	assert.Equal(t, IRInt(300), v)

	_, ok = obj.Lookup("engine", "torque")
	assert.False(t, ok)

	_, ok = obj.Lookup("name", "first")
	assert.False(t, ok, "string is not traversable")

	self, ok := obj.Lookup()
	require.True(t, ok)
	assert.Equal(t, obj, self)
}
