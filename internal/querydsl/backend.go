package querydsl

import (
	"fmt"
	"strings"

	"github.com/roach88/docbridge/internal/cache"
	"github.com/roach88/docbridge/internal/capability"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

// Backend renders conditions as cache DSL filters over a root table.
//
// String values arrive escaped and are handed to the DSL unchanged; the
// DSL decodes them itself. LIKE patterns are rewritten as globs.
type Backend struct{}

var _ translate.Backend[cache.Filter, struct{}] = Backend{}

// Capabilities implements translate.Backend.
func (Backend) Capabilities() capability.Descriptor { return capability.ObjectCache() }

// And implements translate.Backend.
func (Backend) And(_ translate.Context[struct{}], left, right cache.Filter) (cache.Filter, bool, error) {
	return left.And(right), true, nil
}

// Or implements translate.Backend.
func (Backend) Or(_ translate.Context[struct{}], left, right cache.Filter) (cache.Filter, bool, error) {
	return left.Or(right), true, nil
}

// Not implements translate.Backend.
func (Backend) Not(_ translate.Context[struct{}], inner cache.Filter) (cache.Filter, bool, error) {
	return cache.Not(inner), true, nil
}

// Compare implements translate.Backend.
func (Backend) Compare(_ translate.Context[struct{}], col schema.Column, prim translate.Primitive, value ir.IRValue) (cache.Filter, bool, error) {
	attr, ok := attribute(col)
	if !ok {
		return cache.Filter{}, false, nil
	}
	switch prim {
	case translate.PrimEq:
		return attr.Eq(value), true, nil
	case translate.PrimLt:
		return attr.Lt(value), true, nil
	case translate.PrimLte:
		return attr.Lte(value), true, nil
	case translate.PrimGt:
		return attr.Gt(value), true, nil
	case translate.PrimGte:
		return attr.Gte(value), true, nil
	}
	return cache.Filter{}, false, fmt.Errorf("%w: %s", translate.ErrUnsupportedOperator, prim)
}

// In implements translate.Backend.
func (Backend) In(_ translate.Context[struct{}], col schema.Column, values []ir.IRValue) (cache.Filter, bool, error) {
	attr, ok := attribute(col)
	if !ok {
		return cache.Filter{}, false, nil
	}
	return attr.In(values...), true, nil
}

// Like implements translate.Backend.
func (Backend) Like(_ translate.Context[struct{}], col schema.Column, pattern string, escape rune) (cache.Filter, bool, error) {
	attr, ok := attribute(col)
	if !ok {
		return cache.Filter{}, false, nil
	}
	glob, err := LikeToGlob(pattern, escape)
	if err != nil {
		return cache.Filter{}, false, err
	}
	return attr.Like(glob), true, nil
}

// IsNull implements translate.Backend. The DSL's isNull matches both a
// missing attribute and an explicit null, as a relational NULL does.
func (Backend) IsNull(_ translate.Context[struct{}], col schema.Column) (cache.Filter, bool, error) {
	attr, ok := attribute(col)
	if !ok {
		return cache.Filter{}, false, nil
	}
	return attr.IsNull(), true, nil
}

// attribute maps a root-table column onto the entry it reads.
func attribute(col schema.Column) (cache.Attribute, bool) {
	switch col.Kind {
	case schema.KindDocumentID:
		return cache.HavingKey(), true
	case schema.KindValue:
		if len(col.SourcePath) == 0 {
			return cache.Attribute{}, false
		}
		return cache.Having(col.SourcePath...), true
	}
	return cache.Attribute{}, false
}

// globSpecial lists the characters written as \hh in a glob.
const globSpecial = "\\*?()\x00"

// LikeToGlob rewrites an escaped SQL LIKE pattern as a DSL glob: % becomes
// *, _ becomes ?, and literal characters that a glob treats specially are
// hex-escaped.
func LikeToGlob(pattern string, escape rune) (string, error) {
	raw, err := translate.Unescape(pattern)
	if err != nil {
		return "", fmt.Errorf("decode pattern: %w", err)
	}

	runes := []rune(raw)
	var b strings.Builder
	b.Grow(len(raw) + 4)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escape != 0 && r == escape && i+1 < len(runes):
			i++
			r = runes[i]
		case r == '%':
			b.WriteByte('*')
			continue
		case r == '_':
			b.WriteByte('?')
			continue
		}
		if r < 0x80 && strings.ContainsRune(globSpecial, r) {
			fmt.Fprintf(&b, `\%02x`, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}
