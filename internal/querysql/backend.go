package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/docbridge/internal/capability"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

// fragment is a piece of WHERE clause together with the values it binds,
// in placeholder order.
type fragment struct {
	sql  string
	args []any
}

// Backend renders conditions as SQLite JSON1 predicates over the layout of
// one table.
//
// String values arrive escaped and are bound as unescape(?) so SQLite
// compares the decoded text. Object columns, bigdecimal columns, decimal
// literals and integers beyond int64 are declined; SQLite reads such
// numbers as REAL and would match float-rounded neighbours.
type Backend struct{}

var _ translate.Backend[fragment, *layout] = Backend{}

// Capabilities implements translate.Backend.
func (Backend) Capabilities() capability.Descriptor { return capability.DocumentStore() }

// And implements translate.Backend.
func (Backend) And(_ translate.Context[*layout], left, right fragment) (fragment, bool, error) {
	return join("AND", left, right), true, nil
}

// Or implements translate.Backend.
func (Backend) Or(_ translate.Context[*layout], left, right fragment) (fragment, bool, error) {
	return join("OR", left, right), true, nil
}

func join(op string, left, right fragment) fragment {
	return fragment{
		sql:  "(" + left.sql + " " + op + " " + right.sql + ")",
		args: append(append([]any{}, left.args...), right.args...),
	}
}

// Not implements translate.Backend.
func (Backend) Not(_ translate.Context[*layout], inner fragment) (fragment, bool, error) {
	return fragment{sql: "NOT (" + inner.sql + ")", args: inner.args}, true, nil
}

var comparators = map[translate.Primitive]string{
	translate.PrimEq:  "=",
	translate.PrimLt:  "<",
	translate.PrimLte: "<=",
	translate.PrimGt:  ">",
	translate.PrimGte: ">=",
}

// Compare implements translate.Backend.
func (Backend) Compare(ctx translate.Context[*layout], col schema.Column, prim translate.Primitive, value ir.IRValue) (fragment, bool, error) {
	expr, ok := ctx.Builder.filter[col.Name]
	if !ok || !exactColumn(col) {
		return fragment{}, false, nil
	}
	op, ok := comparators[prim]
	if !ok {
		return fragment{}, false, fmt.Errorf("%w: %s", translate.ErrUnsupportedOperator, prim)
	}
	ph, arg, ok := bind(value)
	if !ok {
		return fragment{}, false, nil
	}
	return fragment{sql: expr + " " + op + " " + ph, args: []any{arg}}, true, nil
}

// In implements translate.Backend.
func (Backend) In(ctx translate.Context[*layout], col schema.Column, values []ir.IRValue) (fragment, bool, error) {
	expr, ok := ctx.Builder.filter[col.Name]
	if !ok || !exactColumn(col) {
		return fragment{}, false, nil
	}
	phs := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		ph, arg, ok := bind(v)
		if !ok {
			return fragment{}, false, nil
		}
		phs[i] = ph
		args[i] = arg
	}
	return fragment{sql: expr + " IN (" + strings.Join(phs, ", ") + ")", args: args}, true, nil
}

// Like implements translate.Backend. The document store runs with
// case_sensitive_like enabled.
func (Backend) Like(ctx translate.Context[*layout], col schema.Column, pattern string, escape rune) (fragment, bool, error) {
	expr, ok := ctx.Builder.filter[col.Name]
	if !ok {
		return fragment{}, false, nil
	}
	f := fragment{
		sql:  expr + " LIKE " + UnescapeFunc + "(?)",
		args: []any{pattern},
	}
	if escape != 0 {
		f.sql += " ESCAPE " + UnescapeFunc + "(?)"
		f.args = append(f.args, translate.Escape(string(escape)))
	}
	return f, true, nil
}

// IsNull implements translate.Backend. json_extract gives NULL for both an
// explicit null and a missing key.
func (Backend) IsNull(ctx translate.Context[*layout], col schema.Column) (fragment, bool, error) {
	expr, ok := ctx.Builder.filter[col.Name]
	if !ok {
		return fragment{}, false, nil
	}
	return fragment{sql: expr + " IS NULL"}, true, nil
}

// exactColumn reports whether SQLite compares values of col exactly.
func exactColumn(col schema.Column) bool {
	return col.Type != schema.TypeObject && col.Type != schema.TypeBigDecimal
}

// bind returns the placeholder and driver value for a literal. ok is false
// for values SQLite cannot compare exactly.
func bind(v ir.IRValue) (string, any, bool) {
	switch val := v.(type) {
	case ir.IRString:
		return UnescapeFunc + "(?)", string(val), true
	case ir.IRInt:
		return "?", int64(val), true
	case ir.IRFloat:
		return "?", float64(val), true
	case ir.IRBool:
		// ->> yields 1 and 0 for JSON booleans.
		if val {
			return "?", int64(1), true
		}
		return "?", int64(0), true
	case ir.IRBigInt:
		if val.V.IsInt64() {
			return "?", val.V.Int64(), true
		}
	}
	return "", nil, false
}
