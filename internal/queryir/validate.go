package queryir

import (
	"fmt"

	"github.com/roach88/docbridge/internal/capability"
)

// ValidationResult lists the shapes of a request a backend refuses.
type ValidationResult struct {
	// Supported indicates the whole request can be handed to the backend.
	Supported bool

	// Refusals names every refused shape. Empty when Supported is true.
	Refusals []string
}

// Validate checks a request against a backend's capability descriptor.
//
// It mirrors the check the upstream planner performs before building a
// condition tree for the backend: a refused node is evaluated by the planner
// instead of being pushed down. Column existence and value types are not
// checked here; translation reports those.
//
// Validate is a pure function with no side effects.
func Validate(sel Select, caps capability.Descriptor) ValidationResult {
	v := &validator{caps: caps, refusals: []string{}}

	if sel.Where != nil {
		v.validateCondition(sel.Where)
	}
	if len(sel.OrderBy) > 0 && !caps.SupportsOrderBy() {
		v.refuse("ORDER BY not supported")
	}
	if (sel.Limit > 0 || sel.Offset > 0) && !caps.SupportsLimit() {
		v.refuse("LIMIT/OFFSET not supported")
	}
	return ValidationResult{
		Supported: len(v.refusals) == 0,
		Refusals:  v.refusals,
	}
}

// validator accumulates refusals during traversal.
type validator struct {
	caps     capability.Descriptor
	refusals []string
}

func (v *validator) refuse(format string, args ...any) {
	v.refusals = append(v.refusals, fmt.Sprintf(format, args...))
}

func (v *validator) validateCondition(c Condition) {
	switch cond := c.(type) {
	case AndOr:
		if cond.Op == OpAnd && !v.caps.SupportsAnd() {
			v.refuse("AND not supported")
		}
		if cond.Op == OpOr && !v.caps.SupportsOr() {
			v.refuse("OR not supported")
		}
		v.validateCondition(cond.Left)
		v.validateCondition(cond.Right)
	case Not:
		if !v.caps.SupportsNot() {
			v.refuse("NOT not supported")
		}
		v.validateCondition(cond.Inner)
	case Comparison:
		v.validateComparison(cond)
	case Like:
		if !v.caps.SupportsLike() {
			v.refuse("LIKE not supported")
		}
		if cond.Escape != 0 && !v.caps.SupportsLikeEscape() {
			v.refuse("LIKE ... ESCAPE not supported")
		}
		if cond.Negated && !v.caps.SupportsNot() {
			v.refuse("NOT LIKE not supported")
		}
	case In:
		if !v.caps.SupportsIn() {
			v.refuse("IN not supported")
		} else if !v.caps.AcceptsInList(len(cond.Values)) {
			v.refuse("IN list of %d values exceeds limit %d", len(cond.Values), v.caps.MaxInListSize())
		}
		for _, val := range cond.Values {
			if _, ok := val.(Literal); !ok {
				v.refuse("IN list contains a non-literal value")
				break
			}
		}
		if cond.Negated && !v.caps.SupportsNot() {
			v.refuse("NOT IN not supported")
		}
	case IsNull:
		if !v.caps.SupportsIsNull() {
			v.refuse("IS NULL not supported")
		}
		if cond.Negated && !v.caps.SupportsNot() {
			v.refuse("IS NOT NULL not supported")
		}
	case nil:
		v.refuse("nil condition")
	default:
		v.refuse("unknown condition type %T", c)
	}
}

func (v *validator) validateComparison(cmp Comparison) {
	_, leftCol := cmp.Left.(ColumnRef)
	_, rightCol := cmp.Right.(ColumnRef)
	switch {
	case leftCol && rightCol:
		v.refuse("column compared to column")
	case !leftCol && !rightCol:
		v.refuse("literal compared to literal")
	}

	if cmp.Op.Ordered() {
		if !v.caps.SupportsCompareOrdered() {
			v.refuse("comparison %s not supported", cmp.Op)
		}
		return
	}
	if !v.caps.SupportsCompareEquals() {
		v.refuse("comparison = not supported")
	}
}
