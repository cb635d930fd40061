package queryir

import (
	"fmt"

	"github.com/roach88/docbridge/internal/ir"
)

// Condition is a node of a boolean condition tree.
//
// This is a sealed interface - only types in this package implement it.
//
// Condition types:
//   - AndOr: binary conjunction or disjunction
//   - Comparison: <expr> <op> <expr>
//   - Like: <expr> [NOT] LIKE 'pattern' [ESCAPE 'c']
//   - In: <expr> [NOT] IN (<expr>, ...)
//   - IsNull: <expr> IS [NOT] NULL
//   - Not: NOT <condition>
type Condition interface {
	conditionNode() // Marker method - seals interface to this package
}

// Expr is an operand of a predicate.
//
// This is a sealed interface - only ColumnRef and Literal implement it.
type Expr interface {
	exprNode()
}

// ColumnRef references a column of the table being queried.
type ColumnRef struct {
	Name string
}

func (ColumnRef) exprNode() {}

// Literal is a constant value.
type Literal struct {
	Value ir.IRValue
}

func (Literal) exprNode() {}

// LogicalOp is the operator of an AndOr node.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

// String implements fmt.Stringer.
func (op LogicalOp) String() string {
	if op == OpOr {
		return "OR"
	}
	return "AND"
}

// AndOr combines two conditions.
//
// Semantics:
//
//	<left> AND <right>
//	<left> OR <right>
//
// Longer chains nest to the left; see And and Or.
type AndOr struct {
	Op    LogicalOp
	Left  Condition
	Right Condition
}

func (AndOr) conditionNode() {}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var compareOpText = [...]string{
	OpEq: "=",
	OpNe: "<>",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

// String implements fmt.Stringer.
func (op CompareOp) String() string {
	if int(op) >= 0 && int(op) < len(compareOpText) {
		return compareOpText[op]
	}
	return fmt.Sprintf("CompareOp(%d)", int(op))
}

// Flip returns the operator with its operands swapped: a < b is b > a.
func (op CompareOp) Flip() CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op
	}
}

// Ordered reports whether the operator needs an ordering rather than plain
// equality.
func (op CompareOp) Ordered() bool {
	return op != OpEq
}

// Comparison compares two expressions.
//
// Semantics:
//
//	<left> <op> <right>
//
// Only column/literal pairs can be pushed down; column/column and
// literal/literal comparisons are evaluated by the planner.
type Comparison struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (Comparison) conditionNode() {}

// Like matches an expression against a SQL pattern.
//
// Semantics:
//
//	<left> [NOT] LIKE '<pattern>' [ESCAPE '<escape>']
//
// '%' matches any run of characters, '_' exactly one. Escape, when non-zero,
// makes the following '%', '_' or escape character literal. Matching is
// case-sensitive.
type Like struct {
	Left    Expr
	Pattern string
	Escape  rune
	Negated bool
}

func (Like) conditionNode() {}

// In tests membership in a list of expressions.
//
// Semantics:
//
//	<left> [NOT] IN (<values>...)
type In struct {
	Left    Expr
	Values  []Expr
	Negated bool
}

func (In) conditionNode() {}

// IsNull tests an expression for null.
//
// Semantics:
//
//	<expr> IS [NOT] NULL
//
// Whether an absent field counts as null is backend-dependent; see
// capability.Descriptor.NullDistinguishesMissing.
type IsNull struct {
	Expr    Expr
	Negated bool
}

func (IsNull) conditionNode() {}

// Not negates exactly one condition.
type Not struct {
	Inner Condition
}

func (Not) conditionNode() {}

// Col is shorthand for ColumnRef{Name: name}.
func Col(name string) ColumnRef {
	return ColumnRef{Name: name}
}

// Lit wraps a Go value as a Literal. It panics if v has no IRValue form;
// use it with constants.
func Lit(v any) Literal {
	val, err := ir.FromNative(v)
	if err != nil {
		panic(fmt.Sprintf("queryir.Lit: %v", err))
	}
	return Literal{Value: val}
}

// Compare builds <column> <op> <literal>.
func Compare(column string, op CompareOp, v any) Comparison {
	return Comparison{Op: op, Left: Col(column), Right: Lit(v)}
}

// And folds conditions into a left-nested conjunction. Nil conditions are
// skipped; And() is nil.
func And(conds ...Condition) Condition {
	return fold(OpAnd, conds)
}

// Or folds conditions into a left-nested disjunction.
func Or(conds ...Condition) Condition {
	return fold(OpOr, conds)
}

func fold(op LogicalOp, conds []Condition) Condition {
	var out Condition
	for _, c := range conds {
		if c == nil {
			continue
		}
		if out == nil {
			out = c
			continue
		}
		out = AndOr{Op: op, Left: out, Right: c}
	}
	return out
}

// Projection selects one column, optionally under another name.
type Projection struct {
	Column string
	Alias  string
}

// Name is the output name of the projection.
func (p Projection) Name() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Column
}

// OrderBy sorts by one column.
type OrderBy struct {
	Column string
	Desc   bool
}

// Select is a single-table relational request.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <where>
//	ORDER BY <order by> LIMIT <limit> OFFSET <offset>
//
// Example:
//
//	Select{
//	  From:    "car",
//	  Columns: []Projection{{Column: "name"}, {Column: "engine_hp", Alias: "hp"}},
//	  Where:   Compare("engine_hp", OpGt, 200),
//	  OrderBy: []OrderBy{{Column: "name"}},
//	  Limit:   10,
//	}
//
// Empty Columns selects every column of the table in declaration order.
// A nil Where selects every row. Limit 0 means no limit.
type Select struct {
	From    string
	Columns []Projection
	Where   Condition
	OrderBy []OrderBy
	Limit   int
	Offset  int
}

// ColumnsOf lists the column names referenced by cond, in first-use order.
func ColumnsOf(cond Condition) []string {
	seen := map[string]bool{}
	var out []string
	add := func(e Expr) {
		if c, ok := e.(ColumnRef); ok && !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c.Name)
		}
	}
	var walk func(Condition)
	walk = func(c Condition) {
		switch n := c.(type) {
		case AndOr:
			walk(n.Left)
			walk(n.Right)
		case Not:
			walk(n.Inner)
		case Comparison:
			add(n.Left)
			add(n.Right)
		case Like:
			add(n.Left)
		case In:
			add(n.Left)
			for _, v := range n.Values {
				add(v)
			}
		case IsNull:
			add(n.Expr)
		}
	}
	walk(cond)
	return out
}
