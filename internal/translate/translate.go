// Package translate turns a queryir condition tree into a backend's native
// filter, node by node, through a small set of backend primitives.
//
// Every translation result is (fragment, pushed, error). pushed false with a
// nil error means the node cannot be pushed down and the planner evaluates
// it instead; only broken input such as an unknown column or an
// unconvertible literal is an error.
package translate

import (
	"fmt"

	"github.com/roach88/docbridge/internal/capability"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
)

// Scope is the boolean operator a node is translated under.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeAnd
	ScopeOr
)

// String implements fmt.Stringer.
func (s Scope) String() string {
	switch s {
	case ScopeAnd:
		return "and"
	case ScopeOr:
		return "or"
	default:
		return "none"
	}
}

// Context carries the backend's builder handle and the current scope
// through one translation. It is passed by value; each level of the tree
// gets its own copy.
type Context[B any] struct {
	Builder B
	Scope   Scope

	// Report, when set, collects the nodes left out of the native filter.
	Report *Report

	// strict is set below OR and NOT, where leaving a node out changes the
	// result set instead of only widening it.
	strict bool
}

// NewContext starts a translation with builder.
func NewContext[B any](builder B, report *Report) Context[B] {
	return Context[B]{Builder: builder, Report: report}
}

func (c Context[B]) with(scope Scope, strict bool) Context[B] {
	c.Scope = scope
	c.strict = c.strict || strict
	return c
}

func (c Context[B]) drop(cond queryir.Condition, reason string) {
	if c.Report != nil {
		c.Report.Dropped = append(c.Report.Dropped, Dropped{Condition: cond, Reason: reason, Strict: c.strict})
	}
}

// Dropped is a condition node left out of the native filter.
type Dropped struct {
	Condition queryir.Condition
	Reason    string

	// Strict is true when the node sat below OR or NOT. Leaving out such a
	// node can remove matching rows, so the native filter cannot be used
	// as a superset of the result.
	Strict bool
}

// Report collects the nodes left out of one translation.
type Report struct {
	Dropped []Dropped
}

// Exact reports whether the native filter is equivalent to the condition.
func (r *Report) Exact() bool {
	return r == nil || len(r.Dropped) == 0
}

// Superset reports whether the native filter selects at least every row the
// condition selects. When true, re-applying the full condition to the
// native result yields the exact answer.
func (r *Report) Superset() bool {
	if r == nil {
		return true
	}
	for _, d := range r.Dropped {
		if d.Strict {
			return false
		}
	}
	return true
}

// Primitive is a comparison primitive every backend provides. <> has no
// primitive of its own; it is Not over PrimEq.
type Primitive int

const (
	PrimEq Primitive = iota
	PrimLt
	PrimLte
	PrimGt
	PrimGte
)

var primitiveNames = [...]string{"eq", "lt", "lte", "gt", "gte"}

// String implements fmt.Stringer.
func (p Primitive) String() string {
	if int(p) >= 0 && int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("Primitive(%d)", int(p))
}

// Backend builds native fragments of type F with a builder of type B.
//
// Values handed to a backend are already coerced to the column type and
// string values are escaped with Escape. A primitive may still decline a
// node by returning pushed false.
type Backend[F, B any] interface {
	Capabilities() capability.Descriptor
	And(ctx Context[B], left, right F) (F, bool, error)
	Or(ctx Context[B], left, right F) (F, bool, error)
	Not(ctx Context[B], inner F) (F, bool, error)
	Compare(ctx Context[B], col schema.Column, prim Primitive, value ir.IRValue) (F, bool, error)
	In(ctx Context[B], col schema.Column, values []ir.IRValue) (F, bool, error)
	Like(ctx Context[B], col schema.Column, pattern string, escape rune) (F, bool, error)
	IsNull(ctx Context[B], col schema.Column) (F, bool, error)
}

// Translate translates cond for table with backend.
//
// AND keeps whichever sides translate. OR drops a side that does not
// translate and is not pushable when neither does. NOT wraps exactly its
// child's translation. Nodes left out are recorded in ctx.Report.
func Translate[F, B any](cond queryir.Condition, ctx Context[B], backend Backend[F, B], table *schema.Table) (F, bool, error) {
	var zero F
	if cond == nil {
		return zero, false, nil
	}
	caps := backend.Capabilities()
	if table.IsArray && !caps.SupportsArrayTableFiltering() {
		ctx.drop(cond, "array table filtering not supported")
		return zero, false, nil
	}
	t := &translator[F, B]{backend: backend, caps: caps, table: table}
	return t.translate(ctx, cond)
}

type translator[F, B any] struct {
	backend Backend[F, B]
	caps    capability.Descriptor
	table   *schema.Table
}

func (t *translator[F, B]) translate(ctx Context[B], cond queryir.Condition) (F, bool, error) {
	var zero F
	switch c := cond.(type) {
	case queryir.AndOr:
		if c.Op == queryir.OpOr {
			return t.or(ctx, c)
		}
		return t.and(ctx, c)
	case queryir.Not:
		return t.not(ctx, c)
	case queryir.Comparison:
		return t.comparison(ctx, c)
	case queryir.In:
		return t.in(ctx, c)
	case queryir.Like:
		return t.like(ctx, c)
	case queryir.IsNull:
		return t.isNull(ctx, c)
	default:
		return zero, false, fmt.Errorf("unknown condition type %T", cond)
	}
}

func (t *translator[F, B]) and(ctx Context[B], c queryir.AndOr) (F, bool, error) {
	var zero F
	if !t.caps.SupportsAnd() {
		ctx.drop(c, "AND not supported")
		return zero, false, nil
	}
	inner := ctx.with(ScopeAnd, false)
	left, lok, err := t.translate(inner, c.Left)
	if err != nil {
		return zero, false, err
	}
	right, rok, err := t.translate(inner, c.Right)
	if err != nil {
		return zero, false, err
	}
	switch {
	case lok && rok:
		return t.push(ctx, c, func() (F, bool, error) { return t.backend.And(ctx, left, right) })
	case lok:
		return left, true, nil
	case rok:
		return right, true, nil
	default:
		return zero, false, nil
	}
}

func (t *translator[F, B]) or(ctx Context[B], c queryir.AndOr) (F, bool, error) {
	var zero F
	if !t.caps.SupportsOr() {
		ctx.drop(c, "OR not supported")
		return zero, false, nil
	}
	inner := ctx.with(ScopeOr, true)
	left, lok, err := t.translate(inner, c.Left)
	if err != nil {
		return zero, false, err
	}
	right, rok, err := t.translate(inner, c.Right)
	if err != nil {
		return zero, false, err
	}
	switch {
	case lok && rok:
		return t.push(ctx, c, func() (F, bool, error) { return t.backend.Or(ctx, left, right) })
	case lok:
		return left, true, nil
	case rok:
		return right, true, nil
	default:
		return zero, false, nil
	}
}

func (t *translator[F, B]) not(ctx Context[B], c queryir.Not) (F, bool, error) {
	var zero F
	if !t.caps.SupportsNot() {
		ctx.drop(c, "NOT not supported")
		return zero, false, nil
	}
	inner, ok, err := t.translate(ctx.with(ScopeNone, true), c.Inner)
	if err != nil || !ok {
		return zero, false, err
	}
	return t.push(ctx, c, func() (F, bool, error) { return t.backend.Not(ctx, inner) })
}

// negate wraps frag in Not for negated leaf predicates.
func (t *translator[F, B]) negate(ctx Context[B], cond queryir.Condition, frag F) (F, bool, error) {
	var zero F
	if !t.caps.SupportsNot() {
		ctx.drop(cond, "NOT not supported")
		return zero, false, nil
	}
	return t.push(ctx, cond, func() (F, bool, error) { return t.backend.Not(ctx, frag) })
}

// push runs a backend primitive and records a decline.
func (t *translator[F, B]) push(ctx Context[B], cond queryir.Condition, build func() (F, bool, error)) (F, bool, error) {
	frag, ok, err := build()
	if err != nil {
		var zero F
		return zero, false, err
	}
	if !ok {
		ctx.drop(cond, "declined by backend")
	}
	return frag, ok, nil
}

func (t *translator[F, B]) column(name string) (schema.Column, error) {
	col, ok := t.table.Column(name)
	if !ok {
		return schema.Column{}, fmt.Errorf("%w %q in table %q", ErrUnknownColumn, name, t.table.Name)
	}
	return col, nil
}

// literal coerces v to col's type and escapes it.
func (t *translator[F, B]) literal(col schema.Column, v ir.IRValue) (ir.IRValue, error) {
	coerced, err := schema.Coerce(v, col.Type)
	if err != nil {
		return nil, &CoercionError{Column: col.Name, Value: v, Target: col.Type, Err: err}
	}
	return EscapeValue(coerced), nil
}

func isNullLiteral(v ir.IRValue) bool {
	switch v.(type) {
	case nil, ir.IRNull:
		return true
	}
	return false
}

func (t *translator[F, B]) comparison(ctx Context[B], c queryir.Comparison) (F, bool, error) {
	var zero F

	op := c.Op
	ref, lit, ok := columnAndLiteral(c.Left, c.Right)
	if !ok {
		ref, lit, ok = columnAndLiteral(c.Right, c.Left)
		op = op.Flip()
	}
	if !ok {
		ctx.drop(c, "comparison needs exactly one column and one literal")
		return zero, false, nil
	}

	var prim Primitive
	negated := false
	switch op {
	case queryir.OpEq:
		prim = PrimEq
	case queryir.OpNe:
		prim, negated = PrimEq, true
	case queryir.OpLt:
		prim = PrimLt
	case queryir.OpLe:
		prim = PrimLte
	case queryir.OpGt:
		prim = PrimGt
	case queryir.OpGe:
		prim = PrimGte
	default:
		return zero, false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}

	supported := t.caps.SupportsCompareEquals()
	if op.Ordered() {
		supported = t.caps.SupportsCompareOrdered()
	}
	if !supported {
		ctx.drop(c, fmt.Sprintf("comparison %s not supported", op))
		return zero, false, nil
	}

	col, err := t.column(ref.Name)
	if err != nil {
		return zero, false, err
	}
	if isNullLiteral(lit.Value) {
		ctx.drop(c, "comparison with NULL")
		return zero, false, nil
	}
	value, err := t.literal(col, lit.Value)
	if err != nil {
		return zero, false, err
	}

	frag, ok, err := t.push(ctx, c, func() (F, bool, error) { return t.backend.Compare(ctx, col, prim, value) })
	if err != nil || !ok || !negated {
		return frag, ok, err
	}
	return t.negate(ctx, c, frag)
}

func columnAndLiteral(a, b queryir.Expr) (queryir.ColumnRef, queryir.Literal, bool) {
	ref, isCol := a.(queryir.ColumnRef)
	lit, isLit := b.(queryir.Literal)
	return ref, lit, isCol && isLit
}

func (t *translator[F, B]) in(ctx Context[B], c queryir.In) (F, bool, error) {
	var zero F
	ref, ok := c.Left.(queryir.ColumnRef)
	if !ok {
		ctx.drop(c, "IN needs a column on the left")
		return zero, false, nil
	}
	if !t.caps.AcceptsInList(len(c.Values)) {
		ctx.drop(c, fmt.Sprintf("IN list of %d values not accepted", len(c.Values)))
		return zero, false, nil
	}
	col, err := t.column(ref.Name)
	if err != nil {
		return zero, false, err
	}

	values := make([]ir.IRValue, 0, len(c.Values))
	for _, e := range c.Values {
		lit, ok := e.(queryir.Literal)
		if !ok || isNullLiteral(lit.Value) {
			ctx.drop(c, "IN list must hold non-null literals")
			return zero, false, nil
		}
		v, err := t.literal(col, lit.Value)
		if err != nil {
			return zero, false, err
		}
		values = append(values, v)
	}

	frag, ok, err := t.push(ctx, c, func() (F, bool, error) { return t.backend.In(ctx, col, values) })
	if err != nil || !ok || !c.Negated {
		return frag, ok, err
	}
	return t.negate(ctx, c, frag)
}

func (t *translator[F, B]) like(ctx Context[B], c queryir.Like) (F, bool, error) {
	var zero F
	ref, ok := c.Left.(queryir.ColumnRef)
	if !ok {
		ctx.drop(c, "LIKE needs a column on the left")
		return zero, false, nil
	}
	if !t.caps.SupportsLike() || c.Escape != 0 && !t.caps.SupportsLikeEscape() {
		ctx.drop(c, "LIKE not supported")
		return zero, false, nil
	}
	col, err := t.column(ref.Name)
	if err != nil {
		return zero, false, err
	}
	if col.Type != schema.TypeString {
		ctx.drop(c, fmt.Sprintf("LIKE on %s column", col.Type))
		return zero, false, nil
	}

	pattern := Escape(c.Pattern)
	frag, ok, err := t.push(ctx, c, func() (F, bool, error) { return t.backend.Like(ctx, col, pattern, c.Escape) })
	if err != nil || !ok || !c.Negated {
		return frag, ok, err
	}
	return t.negate(ctx, c, frag)
}

func (t *translator[F, B]) isNull(ctx Context[B], c queryir.IsNull) (F, bool, error) {
	var zero F
	ref, ok := c.Expr.(queryir.ColumnRef)
	if !ok {
		ctx.drop(c, "IS NULL needs a column")
		return zero, false, nil
	}
	if !t.caps.SupportsIsNull() {
		ctx.drop(c, "IS NULL not supported")
		return zero, false, nil
	}
	col, err := t.column(ref.Name)
	if err != nil {
		return zero, false, err
	}

	frag, ok, err := t.push(ctx, c, func() (F, bool, error) { return t.backend.IsNull(ctx, col) })
	if err != nil || !ok || !c.Negated {
		return frag, ok, err
	}
	return t.negate(ctx, c, frag)
}

// Split decides how a translated condition is used. push is false when the
// native filter must not be applied at all. residual is the condition the
// caller still has to evaluate in memory, or nil when the native filter is
// exact.
func Split(cond queryir.Condition, pushed bool, report *Report) (push bool, residual queryir.Condition) {
	switch {
	case cond == nil:
		return false, nil
	case !pushed:
		return false, cond
	case report.Exact():
		return true, nil
	case report.Superset():
		return true, cond
	default:
		return false, cond
	}
}
