package cache

import (
	"fmt"
	"strings"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

// Attribute names the value a filter tests: a key path inside the entry,
// or the entry key itself.
type Attribute struct {
	path []string
	key  bool
}

// Having names the attribute at path. Nested keys are separate elements.
func Having(path ...string) Attribute {
	return Attribute{path: append([]string(nil), path...)}
}

// HavingKey names the entry key.
func HavingKey() Attribute {
	return Attribute{key: true}
}

func (a Attribute) value(key string, body ir.IRObject) (ir.IRValue, bool) {
	if a.key {
		return ir.IRString(key), true
	}
	return body.Lookup(a.path...)
}

// String renders the attribute the way it is written in the DSL.
func (a Attribute) String() string {
	if a.key {
		return "key()"
	}
	quoted := make([]string, len(a.path))
	for i, p := range a.path {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return "having(" + strings.Join(quoted, ", ") + ")"
}

// Filter is a predicate over cache entries. Filters combine with And, Or
// and Not and evaluate with three-valued logic: an entry is selected only
// when its filter is true. A literal that fails to decode poisons the
// filter; the error surfaces when the query executes.
type Filter struct {
	n   node
	err error
}

type node interface {
	eval(key string, body ir.IRObject) queryir.Truth
	write(b *strings.Builder)
}

// And selects entries matching both filters.
func (f Filter) And(g Filter) Filter {
	return Filter{n: logicNode{and: true, l: f.n, r: g.n}, err: firstErr(f.err, g.err)}
}

// Or selects entries matching either filter.
func (f Filter) Or(g Filter) Filter {
	return Filter{n: logicNode{l: f.n, r: g.n}, err: firstErr(f.err, g.err)}
}

// Not negates f. Unknown stays unknown.
func Not(f Filter) Filter {
	return Filter{n: notNode{f.n}, err: f.err}
}

// Err returns the literal decoding error, if any.
func (f Filter) Err() error { return f.err }

// String renders the filter in DSL form.
func (f Filter) String() string {
	if f.n == nil {
		return ""
	}
	var b strings.Builder
	f.n.write(&b)
	return b.String()
}

func (f Filter) match(key string, body ir.IRObject) bool {
	return f.n == nil || f.n.eval(key, body) == queryir.True
}

func firstErr(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

// Eq matches entries whose attribute equals v. String literals are written
// in escaped form.
func (a Attribute) Eq(v ir.IRValue) Filter { return a.compare("eq", v) }

// Lt matches entries whose attribute orders before v.
func (a Attribute) Lt(v ir.IRValue) Filter { return a.compare("lt", v) }

// Lte matches entries whose attribute orders before or equal to v.
func (a Attribute) Lte(v ir.IRValue) Filter { return a.compare("lte", v) }

// Gt matches entries whose attribute orders after v.
func (a Attribute) Gt(v ir.IRValue) Filter { return a.compare("gt", v) }

// Gte matches entries whose attribute orders after or equal to v.
func (a Attribute) Gte(v ir.IRValue) Filter { return a.compare("gte", v) }

func (a Attribute) compare(op string, raw ir.IRValue) Filter {
	lit, err := translate.UnescapeValue(raw)
	if err != nil {
		return Filter{n: cmpNode{attr: a, op: op, raw: raw}, err: fmt.Errorf("%s %s: %w", a, op, err)}
	}
	return Filter{n: cmpNode{attr: a, op: op, lit: lit, raw: raw}}
}

// In matches entries whose attribute equals one of vs.
func (a Attribute) In(vs ...ir.IRValue) Filter {
	n := inNode{attr: a, raw: vs, lits: make([]ir.IRValue, len(vs))}
	for i, raw := range vs {
		lit, err := translate.UnescapeValue(raw)
		if err != nil {
			return Filter{n: n, err: fmt.Errorf("%s in: %w", a, err)}
		}
		n.lits[i] = lit
	}
	return Filter{n: n}
}

// Like matches string attributes against a glob: * matches any run, ?
// matches one character and \hh is a literal byte.
func (a Attribute) Like(glob string) Filter {
	pattern, err := globToLike(glob)
	if err != nil {
		return Filter{n: likeNode{attr: a, glob: glob}, err: fmt.Errorf("%s like: %w", a, err)}
	}
	return Filter{n: likeNode{attr: a, glob: glob, pattern: pattern}}
}

// IsNull matches entries where the attribute is missing or null.
func (a Attribute) IsNull() Filter {
	return Filter{n: nullNode{attr: a}}
}

// IsMissing matches entries where the attribute is absent. An explicit
// null is present.
func (a Attribute) IsMissing() Filter {
	return Filter{n: nullNode{attr: a, missingOnly: true}}
}

// EqText matches entries whose scalar attribute renders as text s, so
// "7" matches both the string and the number. s is in escaped form.
func (a Attribute) EqText(s string) Filter {
	text, err := translate.Unescape(s)
	if err != nil {
		return Filter{n: textNode{attr: a, raw: s}, err: fmt.Errorf("%s eqText: %w", a, err)}
	}
	return Filter{n: textNode{attr: a, raw: s, text: text}}
}

type cmpNode struct {
	attr Attribute
	op   string
	lit  ir.IRValue
	raw  ir.IRValue
}

func (n cmpNode) eval(key string, body ir.IRObject) queryir.Truth {
	v, ok := n.attr.value(key, body)
	if !ok {
		return queryir.Unknown
	}
	cmp, ok := queryir.CompareValues(v, n.lit)
	if !ok {
		return queryir.Unknown
	}
	switch n.op {
	case "eq":
		return truth(cmp == 0)
	case "lt":
		return truth(cmp < 0)
	case "lte":
		return truth(cmp <= 0)
	case "gt":
		return truth(cmp > 0)
	case "gte":
		return truth(cmp >= 0)
	}
	return queryir.Unknown
}

func (n cmpNode) write(b *strings.Builder) {
	fmt.Fprintf(b, "%s.%s(%s)", n.attr, n.op, literal(n.raw))
}

type inNode struct {
	attr Attribute
	lits []ir.IRValue
	raw  []ir.IRValue
}

func (n inNode) eval(key string, body ir.IRObject) queryir.Truth {
	v, ok := n.attr.value(key, body)
	if !ok {
		return queryir.Unknown
	}
	if _, null := v.(ir.IRNull); null {
		return queryir.Unknown
	}
	result := queryir.False
	for _, lit := range n.lits {
		cmp, ok := queryir.CompareValues(v, lit)
		switch {
		case !ok:
			result = queryir.Unknown
		case cmp == 0:
			return queryir.True
		}
	}
	return result
}

func (n inNode) write(b *strings.Builder) {
	parts := make([]string, len(n.raw))
	for i, v := range n.raw {
		parts[i] = literal(v)
	}
	fmt.Fprintf(b, "%s.in(%s)", n.attr, strings.Join(parts, ", "))
}

type likeNode struct {
	attr    Attribute
	glob    string
	pattern string
}

func (n likeNode) eval(key string, body ir.IRObject) queryir.Truth {
	v, ok := n.attr.value(key, body)
	if !ok {
		return queryir.Unknown
	}
	s, ok := v.(ir.IRString)
	if !ok {
		return queryir.Unknown
	}
	return truth(queryir.MatchLike(string(s), n.pattern, likeEscape))
}

func (n likeNode) write(b *strings.Builder) {
	fmt.Fprintf(b, "%s.like(%q)", n.attr, n.glob)
}

type nullNode struct {
	attr        Attribute
	missingOnly bool
}

func (n nullNode) eval(key string, body ir.IRObject) queryir.Truth {
	v, ok := n.attr.value(key, body)
	if !ok {
		return queryir.True
	}
	if n.missingOnly {
		return queryir.False
	}
	_, null := v.(ir.IRNull)
	return truth(null)
}

func (n nullNode) write(b *strings.Builder) {
	if n.missingOnly {
		fmt.Fprintf(b, "%s.isMissing()", n.attr)
		return
	}
	fmt.Fprintf(b, "%s.isNull()", n.attr)
}

type textNode struct {
	attr Attribute
	text string
	raw  string
}

func (n textNode) eval(key string, body ir.IRObject) queryir.Truth {
	v, ok := n.attr.value(key, body)
	if !ok {
		return queryir.False
	}
	text, ok := schema.ScalarText(v)
	return truth(ok && text == n.text)
}

func (n textNode) write(b *strings.Builder) {
	fmt.Fprintf(b, "%s.eqText(%q)", n.attr, n.raw)
}

type logicNode struct {
	and  bool
	l, r node
}

func (n logicNode) eval(key string, body ir.IRObject) queryir.Truth {
	l := n.l.eval(key, body)
	r := n.r.eval(key, body)
	if n.and {
		switch {
		case l == queryir.False || r == queryir.False:
			return queryir.False
		case l == queryir.True && r == queryir.True:
			return queryir.True
		}
		return queryir.Unknown
	}
	switch {
	case l == queryir.True || r == queryir.True:
		return queryir.True
	case l == queryir.False && r == queryir.False:
		return queryir.False
	}
	return queryir.Unknown
}

func (n logicNode) write(b *strings.Builder) {
	op := "or"
	if n.and {
		op = "and"
	}
	b.WriteString("(")
	n.l.write(b)
	b.WriteString(")." + op + "(")
	n.r.write(b)
	b.WriteString(")")
}

type notNode struct {
	inner node
}

func (n notNode) eval(key string, body ir.IRObject) queryir.Truth {
	switch n.inner.eval(key, body) {
	case queryir.True:
		return queryir.False
	case queryir.False:
		return queryir.True
	}
	return queryir.Unknown
}

func (n notNode) write(b *strings.Builder) {
	b.WriteString("not(")
	n.inner.write(b)
	b.WriteString(")")
}

func truth(b bool) queryir.Truth {
	if b {
		return queryir.True
	}
	return queryir.False
}

// literal renders a value in DSL form. Strings keep their escaped text.
func literal(v ir.IRValue) string {
	if s, ok := v.(ir.IRString); ok {
		return fmt.Sprintf("%q", string(s))
	}
	if text, ok := schema.ScalarText(v); ok {
		return text
	}
	return "null"
}

// likeEscape is the escape character of patterns built by globToLike.
const likeEscape = '!'

// globToLike rewrites a glob as an equivalent LIKE pattern.
func globToLike(glob string) (string, error) {
	var b strings.Builder
	b.Grow(len(glob) + 4)
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			b.WriteByte('%')
			continue
		case '?':
			b.WriteByte('_')
			continue
		case '\\':
			decoded, err := translate.Unescape(glob[i:min(i+3, len(glob))])
			if err != nil {
				return "", fmt.Errorf("invalid escape at offset %d in %q", i, glob)
			}
			c = decoded[0]
			i += 2
		}
		if c == '%' || c == '_' || c == likeEscape {
			b.WriteByte(likeEscape)
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}
