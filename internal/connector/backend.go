package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/docbridge/internal/cache"
	"github.com/roach88/docbridge/internal/capability"
	"github.com/roach88/docbridge/internal/docstore"
	"github.com/roach88/docbridge/internal/exec"
	"github.com/roach88/docbridge/internal/inference"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/querydsl"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/querysql"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

// backend is the native side of a connector.
type backend interface {
	inference.Source

	name() string
	capabilities() capability.Descriptor
	put(ctx context.Context, keyspace string, docs []ir.Document) ([]string, error)
	compile(sel queryir.Select, table *schema.Table) (compiled, error)
	close() error
}

// compiled is a backend-neutral view of a compiled request.
type compiled struct {
	native string
	args   []any
	open   exec.Opener
	plan   exec.Plan
	pushed bool
	report *translate.Report
}

type documentBackend struct {
	*docstore.Store
}

func (documentBackend) name() string { return capability.BackendDocument }

func (documentBackend) capabilities() capability.Descriptor { return capability.DocumentStore() }

func (b documentBackend) put(ctx context.Context, keyspace string, docs []ir.Document) ([]string, error) {
	return b.Put(ctx, keyspace, docs...)
}

func (b documentBackend) compile(sel queryir.Select, table *schema.Table) (compiled, error) {
	stmt, err := querysql.Compile(sel, table)
	if err != nil {
		return compiled{}, err
	}
	return compiled{
		native: stmt.SQL,
		args:   stmt.Args,
		open:   b.Opener(stmt),
		plan:   stmt.Plan,
		pushed: stmt.Pushed,
		report: stmt.Report,
	}, nil
}

func (b documentBackend) close() error { return b.Close() }

type cacheBackend struct {
	*cache.Cache
}

func (cacheBackend) name() string { return capability.BackendCache }

func (cacheBackend) capabilities() capability.Descriptor { return capability.ObjectCache() }

func (b cacheBackend) put(ctx context.Context, keyspace string, docs []ir.Document) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Put(keyspace, docs...), nil
}

func (b cacheBackend) compile(sel queryir.Select, table *schema.Table) (compiled, error) {
	c, err := querydsl.Compile(b.Cache, sel, table)
	if err != nil {
		return compiled{}, err
	}
	return compiled{
		native: c.Query.String(),
		open:   c.Opener(),
		plan:   c.Plan,
		pushed: c.Pushed,
		report: c.Report,
	}, nil
}

func (cacheBackend) close() error { return nil }

// formatArgs renders bound values for display.
func formatArgs(args []any) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			out[i] = fmt.Sprintf("%q", v)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

// requestKey identifies a request for the explanation cache.
func requestKey(sel queryir.Select) string {
	var b strings.Builder
	b.WriteString(sel.From)
	b.WriteString("|")
	for _, p := range sel.Columns {
		b.WriteString(p.Column + " AS " + p.Alias + ",")
	}
	b.WriteString("|")
	if sel.Where != nil {
		b.WriteString(queryir.Format(sel.Where))
	}
	b.WriteString("|")
	for _, o := range sel.OrderBy {
		fmt.Fprintf(&b, "%s %t,", o.Column, o.Desc)
	}
	fmt.Fprintf(&b, "|%d|%d", sel.Offset, sel.Limit)
	return b.String()
}
