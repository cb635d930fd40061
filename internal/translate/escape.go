package translate

import (
	"fmt"
	"strings"

	"github.com/roach88/docbridge/internal/ir"
)

// escapes lists the characters replaced by Escape. Every sequence is three
// bytes long: a backslash and two hex digits.
var escapes = map[byte]string{
	'\\': `\5c`,
	'*':  `\2a`,
	'(':  `\28`,
	')':  `\29`,
	0:    `\00`,
}

// Escape replaces the characters that are special in native filter syntax
// with a backslash and two hex digits: \ * ( ) and NUL. The same escaping is
// used for every backend.
func Escape(s string) string {
	if !strings.ContainsAny(s, "\\*()\x00") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if esc, ok := escapes[s[i]]; ok {
			b.WriteString(esc)
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Unescape decodes every backslash-hex-hex sequence. A backslash not
// followed by two hex digits is an error.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
			return "", fmt.Errorf("invalid escape at offset %d in %q", i, s)
		}
		b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
		i += 2
	}
	return b.String(), nil
}

// EscapeValue escapes string values and returns other values unchanged.
func EscapeValue(v ir.IRValue) ir.IRValue {
	if s, ok := v.(ir.IRString); ok {
		return ir.IRString(Escape(string(s)))
	}
	return v
}

// UnescapeValue reverses EscapeValue.
func UnescapeValue(v ir.IRValue) (ir.IRValue, error) {
	s, ok := v.(ir.IRString)
	if !ok {
		return v, nil
	}
	out, err := Unescape(string(s))
	if err != nil {
		return nil, err
	}
	return ir.IRString(out), nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
