package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/docbridge/internal/ir"
)

func TestCondition_Sealed(t *testing.T) {
	conds := []Condition{
		AndOr{}, Comparison{}, Like{}, In{}, IsNull{}, Not{},
	}
	for _, c := range conds {
		switch c.(type) {
		case AndOr, Comparison, Like, In, IsNull, Not:
		default:
			t.Fatalf("unexpected condition type %T", c)
		}
	}
}

func TestCompareOp_Flip(t *testing.T) {
	tests := []struct {
		op   CompareOp
		want CompareOp
	}{
		{OpEq, OpEq},
		{OpNe, OpNe},
		{OpLt, OpGt},
		{OpLe, OpGe},
		{OpGt, OpLt},
		{OpGe, OpLe},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.Flip())
			assert.Equal(t, tt.op, tt.op.Flip().Flip())
		})
	}
}

func TestAndOr_FoldLeft(t *testing.T) {
	a := Compare("a", OpEq, 1)
	b := Compare("b", OpEq, 2)
	c := Compare("c", OpEq, 3)

	assert.Nil(t, And())
	assert.Equal(t, a, And(nil, a))
	assert.Equal(t, AndOr{Op: OpAnd, Left: AndOr{Op: OpAnd, Left: a, Right: b}, Right: c}, And(a, b, c))
	assert.Equal(t, AndOr{Op: OpOr, Left: a, Right: b}, Or(a, b))
}

func TestLit(t *testing.T) {
	assert.Equal(t, Literal{Value: ir.IRString("x")}, Lit("x"))
	assert.Equal(t, Literal{Value: ir.IRInt(3)}, Lit(3))
	assert.Equal(t, Literal{Value: ir.IRNull{}}, Lit(nil))
	assert.Panics(t, func() { Lit(struct{}{}) })
}

func TestProjectionName(t *testing.T) {
	assert.Equal(t, "hp", Projection{Column: "engine_hp", Alias: "hp"}.Name())
	assert.Equal(t, "engine_hp", Projection{Column: "engine_hp"}.Name())
}

func TestColumnsOf(t *testing.T) {
	cond := And(
		Compare("a", OpEq, 1),
		Or(
			Not{Inner: IsNull{Expr: Col("b")}},
			In{Left: Col("a"), Values: []Expr{Lit(1), Col("c")}},
		),
		Like{Left: Col("d"), Pattern: "x%"},
	)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ColumnsOf(cond))
	assert.Empty(t, ColumnsOf(nil))
}
