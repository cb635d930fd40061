package querydsl

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/roach88/docbridge/internal/cache"
	"github.com/roach88/docbridge/internal/exec"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
)

// errRowsClosed is returned by Next after Close.
var errRowsClosed = errors.New("rows closed")

// Rows projects cache entries onto a table. It implements exec.RowSource
// with one field per table column.
type Rows struct {
	it     *cache.Iterator
	table  *schema.Table
	fields []string

	mu      sync.Mutex
	pending []schema.Row
	closed  bool
}

var _ exec.RowSource = (*Rows)(nil)

// Open runs the query. A suspended cache is reported as exec.Unavailable.
func (c Compiled) Open(ctx context.Context) (exec.RowSource, error) {
	it, err := c.Query.Execute(ctx)
	if err != nil {
		var unavailable *cache.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, &exec.Unavailable{After: unavailable.After}
		}
		return nil, err
	}

	r := &Rows{it: it, table: c.table, fields: c.table.ColumnNames()}
	if len(c.sortRows) > 0 {
		r.sortAll(c.sortRows)
	}
	return r, nil
}

// Opener returns c.Open as an exec.Opener.
func (c Compiled) Opener() exec.Opener {
	return c.Open
}

// sortAll projects every remaining entry and sorts the rows. Ties keep
// entry order, then element order.
func (r *Rows) sortAll(order []queryir.OrderBy) {
	for {
		doc, ok := r.it.Next()
		if !ok {
			break
		}
		r.pending = append(r.pending, r.table.Rows(doc)...)
	}
	sort.SliceStable(r.pending, func(i, j int) bool {
		for _, o := range order {
			cmp := cache.CompareOrder(r.pending[i][o.Column], r.pending[j][o.Column])
			if cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// Fields implements exec.RowSource.
func (r *Rows) Fields() []string { return r.fields }

// Next implements exec.RowSource.
func (r *Rows) Next(ctx context.Context) ([]ir.IRValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errRowsClosed
	}
	for len(r.pending) == 0 {
		doc, ok := r.it.Next()
		if !ok {
			return nil, io.EOF
		}
		r.pending = r.table.Rows(doc)
	}
	row := r.pending[0]
	r.pending = r.pending[1:]

	values := make([]ir.IRValue, len(r.fields))
	for i, f := range r.fields {
		v, ok := row[f]
		if !ok {
			v = ir.IRNull{}
		}
		values[i] = v
	}
	return values, nil
}

// Close implements exec.RowSource.
func (r *Rows) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.pending = nil
	r.it.Close()
	return nil
}
