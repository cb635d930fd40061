package exec

import (
	"fmt"

	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
)

// Output is one column of the mapped result.
type Output struct {
	// Name is the table column the value comes from.
	Name string

	// Alias is the declared output name, if the request aliased the column.
	Alias string

	// Type is the runtime type values are coerced to.
	Type schema.DataType

	// Hidden columns are fetched for the residual filter only and are not
	// part of the returned row.
	Hidden bool
}

// Label is the name the column is returned under.
func (o Output) Label() string {
	if o.Alias != "" {
		return o.Alias
	}
	return o.Name
}

// Plan describes how native rows become result rows.
type Plan struct {
	Outputs []Output

	// Residual is evaluated in memory against every native row. Nil when
	// the native filter is exact.
	Residual queryir.Condition

	// Offset and Limit are applied after Residual. They are zero when the
	// backend applied them.
	Offset int
	Limit  int
}

// NewPlan resolves the projection of sel against table. Columns referenced
// only by residual are added as hidden outputs. When pushed is true the
// backend already applied sel's offset and limit.
func NewPlan(sel queryir.Select, table *schema.Table, residual queryir.Condition, pushed bool) (Plan, error) {
	var p Plan

	if len(sel.Columns) == 0 {
		for _, c := range table.Columns {
			p.Outputs = append(p.Outputs, Output{Name: c.Name, Type: c.Type})
		}
	}
	for _, proj := range sel.Columns {
		c, ok := table.Column(proj.Column)
		if !ok {
			return Plan{}, fmt.Errorf("unknown column %q in table %q", proj.Column, table.Name)
		}
		p.Outputs = append(p.Outputs, Output{Name: c.Name, Alias: proj.Alias, Type: c.Type})
	}

	if residual != nil {
		for _, name := range queryir.ColumnsOf(residual) {
			if p.has(name) {
				continue
			}
			c, ok := table.Column(name)
			if !ok {
				return Plan{}, fmt.Errorf("unknown column %q in table %q", name, table.Name)
			}
			p.Outputs = append(p.Outputs, Output{Name: c.Name, Type: c.Type, Hidden: true})
		}
		p.Residual = residual
	}

	if !pushed {
		p.Offset = sel.Offset
		p.Limit = sel.Limit
	}
	return p, nil
}

func (p Plan) has(name string) bool {
	for _, o := range p.Outputs {
		if o.Name == name {
			return true
		}
	}
	return false
}

// Labels returns the labels of the visible outputs in order.
func (p Plan) Labels() []string {
	out := make([]string, 0, len(p.Outputs))
	for _, o := range p.Outputs {
		if !o.Hidden {
			out = append(out, o.Label())
		}
	}
	return out
}

// FieldLabels returns the label each output should carry in a native
// result. An output whose label equals the name or label of another output
// is labelled "$n" for its position n instead, so resolve never confuses
// the two.
func (p Plan) FieldLabels() []string {
	out := make([]string, len(p.Outputs))
	for i, o := range p.Outputs {
		out[i] = o.Label()
		for j, other := range p.Outputs {
			if i != j && (other.Name == out[i] || other.Label() == out[i]) {
				out[i] = fmt.Sprintf("$%d", i+1)
				break
			}
		}
	}
	return out
}

// resolve maps every output to a native field position: the $n placeholder
// for position n first, then the exact column name, then the alias.
func (p Plan) resolve(fields []string) ([]int, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := index[f]; !dup {
			index[f] = i
		}
	}

	positions := make([]int, len(p.Outputs))
	for i, o := range p.Outputs {
		if pos, ok := index[fmt.Sprintf("$%d", i+1)]; ok {
			positions[i] = pos
			continue
		}
		if pos, ok := index[o.Name]; ok {
			positions[i] = pos
			continue
		}
		if o.Alias != "" {
			if pos, ok := index[o.Alias]; ok {
				positions[i] = pos
				continue
			}
		}
		return nil, fmt.Errorf("%s: output %q matches no field of %v", ErrCodeUnresolved, o.Label(), fields)
	}
	return positions, nil
}
