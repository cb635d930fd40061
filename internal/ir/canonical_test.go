package ir

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"int", IRInt(-100), "-100"},
		{"big int", IRBigInt{V: new(big.Int).Lsh(big.NewInt(1), 70)}, "1180591620717411303424"},
		{"bool", IRBool(false), "false"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"go slice", []string{"b", "a"}, `["b","a"]`},
		{"nested sorted", IRObject{"z": IRObject{"b": IRInt(1), "a": IRInt(2)}, "a": IRInt(3)}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"map", map[string]any{"y": "v", "x": int64(1)}, `{"x":1,"y":"v"}`},
		{"no html escape", IRString("<a&b>"), `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	for _, v := range []any{nil, IRNull{}, IRFloat(1.5), 2.5, IRObject{"a": IRFloat(1)}} {
		_, err := MarshalCanonical(v)
		assert.Error(t, err, "%#v", v)
	}
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(IRString("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	result, err = MarshalCanonical(IRString(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	result, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestFingerprint(t *testing.T) {
	a := IRObject{"name": IRString("car"), "cols": IRArray{IRString("documentID")}}
	b := IRObject{"cols": IRArray{IRString("documentID")}, "name": IRString("car")}

	fa, err := Fingerprint(DomainSchema, a)
	require.NoError(t, err)
	fb, err := Fingerprint(DomainSchema, b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 32)

	other, err := Fingerprint(DomainTable, a)
	require.NoError(t, err)
	assert.NotEqual(t, fa, other, "domain separates fingerprints")

	_, err = Fingerprint(DomainSchema, IRFloat(1))
	assert.Error(t, err)
}
