package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
)

// Query is a fluent query over one region. Every builder call is recorded
// and can be inspected with Calls.
type Query struct {
	c      *Cache
	region string
	filter Filter
	order  []ordering
	offset int
	limit  int
	calls  []string
}

type ordering struct {
	attr Attribute
	desc bool
}

// From starts a query over a region.
func (c *Cache) From(region string) *Query {
	return &Query{c: c, region: region, calls: []string{fmt.Sprintf("from(%q)", region)}}
}

// Where restricts the query to entries matching f. Repeated calls are
// combined with And.
func (q *Query) Where(f Filter) *Query {
	if q.filter.n == nil {
		q.filter = f
	} else {
		q.filter = q.filter.And(f)
	}
	q.calls = append(q.calls, "where("+f.String()+")")
	return q
}

// OrderBy sorts results by attr. Missing and null values sort first in
// ascending order. Later calls break ties of earlier ones; the entry key
// breaks any remaining tie.
func (q *Query) OrderBy(attr Attribute, desc bool) *Query {
	q.order = append(q.order, ordering{attr: attr, desc: desc})
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.calls = append(q.calls, fmt.Sprintf("orderBy(%s, %s)", attr, dir))
	return q
}

// StartOffset skips the first n results.
func (q *Query) StartOffset(n int) *Query {
	q.offset = n
	q.calls = append(q.calls, fmt.Sprintf("startOffset(%d)", n))
	return q
}

// MaxResults caps the number of results. Zero or less means no cap.
func (q *Query) MaxResults(n int) *Query {
	q.limit = n
	q.calls = append(q.calls, fmt.Sprintf("maxResults(%d)", n))
	return q
}

// Calls returns the recorded builder calls in order.
func (q *Query) Calls() []string {
	return append([]string(nil), q.calls...)
}

// String renders the query as a call chain.
func (q *Query) String() string {
	return strings.Join(q.calls, ".")
}

// Execute runs the query against a snapshot of the region. The returned
// iterator must be closed. A region with no entries yields no results.
func (q *Query) Execute(ctx context.Context) (*Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.filter.Err(); err != nil {
		return nil, fmt.Errorf("decode literal: %w", err)
	}
	if after := q.c.suspended.Load(); after != 0 {
		return nil, &UnavailableError{After: time.Duration(after)}
	}

	// A missing region is empty.
	all, _ := q.c.snapshot(q.region)
	docs := make([]ir.Document, 0, len(all))
	for _, d := range all {
		if q.filter.match(d.ID, d.Body) {
			docs = append(docs, d)
		}
	}
	if len(q.order) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, o := range q.order {
				a, _ := o.attr.value(docs[i].ID, docs[i].Body)
				b, _ := o.attr.value(docs[j].ID, docs[j].Body)
				cmp := CompareOrder(a, b)
				if cmp == 0 {
					continue
				}
				if o.desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if q.offset > 0 {
		if q.offset >= len(docs) {
			docs = nil
		} else {
			docs = docs[q.offset:]
		}
	}
	if q.limit > 0 && q.limit < len(docs) {
		docs = docs[:q.limit]
	}

	q.c.open.Add(1)
	return &Iterator{c: q.c, docs: docs}, nil
}

// CompareOrder orders any two values the way OrderBy does: null before
// booleans before numbers before strings before containers.
func CompareOrder(a, b ir.IRValue) int {
	ra, rb := sortRank(a), sortRank(b)
	if ra != rb {
		return ra - rb
	}
	if cmp, ok := queryir.CompareValues(a, b); ok {
		return cmp
	}
	return 0
}

func sortRank(v ir.IRValue) int {
	switch v.(type) {
	case nil, ir.IRNull:
		return 0
	case ir.IRBool:
		return 1
	case ir.IRInt, ir.IRFloat, ir.IRBigInt, ir.IRDecimal:
		return 2
	case ir.IRString:
		return 3
	default:
		return 4
	}
}

// Iterator walks query results. Close may be called from any goroutine
// and more than once.
type Iterator struct {
	c *Cache

	mu     sync.Mutex
	docs   []ir.Document
	pos    int
	closed bool
}

// Next returns the next entry. ok is false at the end or after Close.
func (it *Iterator) Next() (doc ir.Document, ok bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed || it.pos >= len(it.docs) {
		return ir.Document{}, false
	}
	doc = it.docs[it.pos]
	it.pos++
	return doc, true
}

// Remaining returns the number of entries not yet returned.
func (it *Iterator) Remaining() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return 0
	}
	return len(it.docs) - it.pos
}

// Close releases the iterator.
func (it *Iterator) Close() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return
	}
	it.closed = true
	it.docs = nil
	it.c.open.Add(-1)
}
