package querydsl

import (
	"fmt"

	"github.com/roach88/docbridge/internal/cache"
	"github.com/roach88/docbridge/internal/exec"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

// Compiled is a cache query ready to run.
type Compiled struct {
	// Query is the DSL query over the table's region.
	Query *cache.Query

	// Plan maps projected rows onto the requested columns and carries the
	// part of the request the cache does not evaluate.
	Plan exec.Plan

	// Pushed reports whether the DSL filter carries the condition.
	Pushed bool

	// Report lists the condition nodes left out of the DSL filter.
	Report *translate.Report

	table *schema.Table

	// sortRows holds an order the cache cannot apply to entries; rows are
	// sorted in memory after projection.
	sortRows []queryir.OrderBy
}

// Compile compiles sel against table into a query on c.
//
// Root tables push the filter, the order and the row window into the DSL.
// Array tables cannot be filtered by the cache: the query selects whole
// entries, and filtering, ordering and the row window run over the
// projected rows.
func Compile(c *cache.Cache, sel queryir.Select, table *schema.Table) (Compiled, error) {
	for _, o := range sel.OrderBy {
		if _, ok := table.Column(o.Column); !ok {
			return Compiled{}, fmt.Errorf("%w %q in table %q", translate.ErrUnknownColumn, o.Column, table.Name)
		}
	}

	report := &translate.Report{}
	filter, pushed, err := translate.Translate[cache.Filter](sel.Where, translate.NewContext(struct{}{}, report), Backend{}, table)
	if err != nil {
		return Compiled{}, fmt.Errorf("translate where: %w", err)
	}
	push, residual := translate.Split(sel.Where, pushed, report)

	q := c.From(table.SourceName)
	if d := table.Discriminator; d != nil {
		q.Where(cache.Having(d.Attribute).EqText(translate.Escape(d.Value)))
	}
	if push {
		q.Where(filter)
	}

	out := Compiled{Query: q, Pushed: push, Report: report, table: table}

	if table.IsArray {
		out.sortRows = sel.OrderBy
	} else {
		for _, o := range sel.OrderBy {
			col, _ := table.Column(o.Column)
			attr, ok := attribute(col)
			if !ok {
				out.sortRows = sel.OrderBy
				break
			}
			q.OrderBy(attr, o.Desc)
		}
	}

	windowPushed := residual == nil && !table.IsArray && out.sortRows == nil
	if windowPushed {
		if sel.Offset > 0 {
			q.StartOffset(sel.Offset)
		}
		if sel.Limit > 0 {
			q.MaxResults(sel.Limit)
		}
	}

	out.Plan, err = exec.NewPlan(sel, table, residual, windowPushed)
	if err != nil {
		return Compiled{}, err
	}
	return out, nil
}
