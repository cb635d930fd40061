// Package capability describes which query shapes a backend connector
// accepts for pushdown.
//
// A Descriptor is a value type. It is built once when a connector is created
// and never changes afterwards; the upstream planner reads it through the
// accessor methods before it builds any condition tree for the backend.
package capability

import "fmt"

// Flags is the fixed set of named predicate and clause shapes.
type Flags struct {
	CompareEquals       bool // col = literal
	CompareOrdered      bool // <, <=, >, >=, <>
	Like                bool
	LikeEscape          bool // LIKE ... ESCAPE 'c'
	In                  bool
	InSubquery          bool
	IsNull              bool
	And                 bool
	Or                  bool
	Not                 bool
	Aggregates          bool
	Joins               bool
	Unions              bool
	OrderBy             bool
	Limit               bool
	SelectExpressions   bool // anonymous expressions in the select list
	NullDistinguishes   bool // IS NULL is distinct from "field absent"
	ArrayTableFiltering bool // predicates on array-table columns
}

// Limits holds the numeric limits of a backend.
type Limits struct {
	MaxInListSize int // 0 means unlimited
	MaxFromGroups int // 0 means unlimited
}

// Descriptor is the immutable capability contract of one connector.
type Descriptor struct {
	name   string
	flags  Flags
	limits Limits
}

// New creates a Descriptor. Flags and limits are copied; later changes to
// the arguments do not affect the descriptor.
func New(name string, flags Flags, limits Limits) Descriptor {
	return Descriptor{name: name, flags: flags, limits: limits}
}

// Name identifies the backend the descriptor belongs to.
func (d Descriptor) Name() string { return d.name }

// Flags returns a copy of the flag set.
func (d Descriptor) Flags() Flags { return d.flags }

// Limits returns a copy of the limits.
func (d Descriptor) Limits() Limits { return d.limits }

func (d Descriptor) SupportsCompareEquals() bool     { return d.flags.CompareEquals }
func (d Descriptor) SupportsCompareOrdered() bool    { return d.flags.CompareOrdered }
func (d Descriptor) SupportsLike() bool              { return d.flags.Like }
func (d Descriptor) SupportsLikeEscape() bool        { return d.flags.LikeEscape }
func (d Descriptor) SupportsIn() bool                { return d.flags.In }
func (d Descriptor) SupportsInSubquery() bool        { return d.flags.InSubquery }
func (d Descriptor) SupportsIsNull() bool            { return d.flags.IsNull }
func (d Descriptor) SupportsAnd() bool               { return d.flags.And }
func (d Descriptor) SupportsOr() bool                { return d.flags.Or }
func (d Descriptor) SupportsNot() bool               { return d.flags.Not }
func (d Descriptor) SupportsAggregates() bool        { return d.flags.Aggregates }
func (d Descriptor) SupportsJoins() bool             { return d.flags.Joins }
func (d Descriptor) SupportsUnions() bool            { return d.flags.Unions }
func (d Descriptor) SupportsOrderBy() bool           { return d.flags.OrderBy }
func (d Descriptor) SupportsLimit() bool             { return d.flags.Limit }
func (d Descriptor) SupportsSelectExpressions() bool { return d.flags.SelectExpressions }

// NullDistinguishesMissing reports whether IS NULL can tell an explicit null
// apart from an absent field. When false the planner must not rely on the
// difference.
func (d Descriptor) NullDistinguishesMissing() bool { return d.flags.NullDistinguishes }

// SupportsArrayTableFiltering reports whether predicates on columns of
// array tables can be pushed down.
func (d Descriptor) SupportsArrayTableFiltering() bool { return d.flags.ArrayTableFiltering }

// MaxInListSize is the largest IN list the backend accepts; 0 is unlimited.
func (d Descriptor) MaxInListSize() int { return d.limits.MaxInListSize }

// MaxFromGroups is the largest number of FROM groups; 0 is unlimited.
func (d Descriptor) MaxFromGroups() int { return d.limits.MaxFromGroups }

// AcceptsInList reports whether an IN list of n elements is within limits.
func (d Descriptor) AcceptsInList(n int) bool {
	return d.flags.In && (d.limits.MaxInListSize == 0 || n <= d.limits.MaxInListSize)
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return fmt.Sprintf("capabilities(%s)", d.name)
}

// Names returns every flag name with its value, in declaration order.
// Used for display.
func (d Descriptor) Names() []NamedFlag {
	f := d.flags
	return []NamedFlag{
		{"compare_equals", f.CompareEquals},
		{"compare_ordered", f.CompareOrdered},
		{"like", f.Like},
		{"like_escape", f.LikeEscape},
		{"in", f.In},
		{"in_subquery", f.InSubquery},
		{"is_null", f.IsNull},
		{"and", f.And},
		{"or", f.Or},
		{"not", f.Not},
		{"aggregates", f.Aggregates},
		{"joins", f.Joins},
		{"unions", f.Unions},
		{"order_by", f.OrderBy},
		{"limit", f.Limit},
		{"select_expressions", f.SelectExpressions},
		{"null_distinguishes_missing", f.NullDistinguishes},
		{"array_table_filtering", f.ArrayTableFiltering},
	}
}

// NamedFlag pairs a flag name with its value.
type NamedFlag struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}
