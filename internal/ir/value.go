package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/shopspring/decimal"
)

// IRValue is a sealed interface over the values a semi-structured document
// can hold. Only the types in this file implement it.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integral number that fits in int64.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a binary floating point number (a "double" column).
type IRFloat float64

func (IRFloat) irValue() {}

// IRBigInt represents an integral number outside the int64 range.
type IRBigInt struct {
	V *big.Int
}

func (IRBigInt) irValue() {}

// IRDecimal represents a decimal number whose digits do not survive a
// round trip through float64.
type IRDecimal struct {
	V decimal.Decimal
}

func (IRDecimal) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRString creates an IRString value.
func NewIRString(s string) IRString {
	return IRString(s)
}

// NewIRInt creates an IRInt value.
func NewIRInt(n int64) IRInt {
	return IRInt(n)
}

// NewIRBool creates an IRBool value.
func NewIRBool(b bool) IRBool {
	return IRBool(b)
}

// NewIRArray creates an IRArray from values.
func NewIRArray(vals ...IRValue) IRArray {
	return IRArray(vals)
}

// IRPair represents a key-value pair for IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// NewIRObjectFromPairs creates an IRObject from key-value pairs.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// O is a shorthand for IRPair.
// Example: NewIRObjectFromPairs(O("type", NewIRString("car")), O("wheels", NewIRInt(4)))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for astral characters.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Lookup follows a key path through nested objects. It reports false when a
// key is absent or an intermediate value is not an object. An empty path
// returns obj itself.
func (obj IRObject) Lookup(path ...string) (IRValue, bool) {
	var cur IRValue = obj
	for _, key := range path {
		o, ok := cur.(IRObject)
		if !ok {
			return nil, false
		}
		cur, ok = o[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Document is one stored object together with its identifier.
// The identifier is kept outside the body, the way document stores expose
// it through metadata rather than as a regular attribute.
type Document struct {
	ID   string
	Body IRObject
}

// UnmarshalIRValue decodes JSON into an IRValue.
//
// Numbers keep as much precision as the JSON text carries: integers that fit
// int64 become IRInt, larger ones IRBigInt; fractional numbers become
// IRFloat unless float64 would lose digits, in which case they become
// IRDecimal.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromNative(raw)
}

// UnmarshalIRObject decodes a JSON object. Anything other than an object is
// rejected.
func UnmarshalIRObject(data []byte) (IRObject, error) {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", KindOf(v))
	}
	return obj, nil
}

// FromNative converts a decoded Go value (as produced by encoding/json with
// UseNumber, or by database drivers) into an IRValue.
func FromNative(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case []byte:
		return IRString(string(val)), nil
	case int:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case float32:
		return IRFloat(val), nil
	case float64:
		return IRFloat(val), nil
	case *big.Int:
		return IRBigInt{V: val}, nil
	case decimal.Decimal:
		return IRDecimal{V: val}, nil
	case json.Number:
		return parseNumber(string(val))
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// parseNumber classifies a JSON number literal.
func parseNumber(s string) (IRValue, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IRInt(n), nil
		}
		bi, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return IRBigInt{V: bi}, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err == nil && !math.IsInf(f, 0) && significantDigits(s) <= 15 {
		return IRFloat(f), nil
	}
	d, derr := decimal.NewFromString(s)
	if derr != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, derr)
	}
	return IRDecimal{V: d}, nil
}

// significantDigits counts mantissa digits, ignoring leading zeros.
func significantDigits(s string) int {
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "+-")
	s = strings.Replace(s, ".", "", 1)
	s = strings.TrimLeft(s, "0")
	return len(s)
}

// ToNative converts an IRValue into plain Go values: nil, string, int64,
// float64, *big.Int, decimal.Decimal, bool, []any and map[string]any.
func ToNative(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBigInt:
		return val.V
	case IRDecimal:
		return val.V
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToNative(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToNative(elem)
		}
		return out
	default:
		return nil
	}
}

// KindOf names the JSON-level kind of a value, for diagnostics.
func KindOf(v IRValue) string {
	switch v.(type) {
	case nil, IRNull:
		return "null"
	case IRString:
		return "string"
	case IRInt, IRBigInt:
		return "integer"
	case IRFloat, IRDecimal:
		return "number"
	case IRBool:
		return "boolean"
	case IRArray:
		return "array"
	case IRObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to JSON bytes.
// This is NOT canonical marshaling; use MarshalCanonical for fingerprints.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return json.Marshal(int64(val))
	case IRFloat:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite number %v", f)
		}
		return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
	case IRBigInt:
		return []byte(val.V.String()), nil
	case IRDecimal:
		return []byte(val.V.String()), nil
	case IRBool:
		return json.Marshal(bool(val))
	case IRArray:
		return val.MarshalJSON()
	case IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}
