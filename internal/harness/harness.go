package harness

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/docbridge/internal/config"
	"github.com/roach88/docbridge/internal/connector"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
)

// Harness runs one scenario against one backend.
type Harness struct {
	scenario *Scenario
	conn     *connector.Connector
	docs     map[string][]ir.Document
	result   *Result
}

// Run executes a scenario on every backend it lists and returns the result.
//
// Each run works in a fresh temporary directory, so document store files
// never leak between scenarios.
//
// Execution flow:
// 1. Load every keyspace into the backend
// 2. Infer and publish the schema
// 3. Evaluate schema assertions
// 4. Run each query, checking expected rows and the in-memory evaluation
// 5. Check that all backends inferred the same schema and returned the same rows
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "docbridge-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	docs := make(map[string][]ir.Document, len(scenario.Documents))
	for ks := range scenario.Documents {
		d, err := scenario.Load(ks)
		if err != nil {
			return nil, err
		}
		docs[ks] = d
	}

	result := NewResult()
	for _, backend := range scenario.BackendNames() {
		conn, err := open(scenario, backend, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s backend: %w", backend, err)
		}
		h := &Harness{scenario: scenario, conn: conn, docs: docs, result: result}
		br, err := h.run(ctx)
		conn.Close()
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", backend, err)
		}
		result.Backends = append(result.Backends, br)
	}

	compareBackends(result)
	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"backends", len(result.Backends),
		"pass", result.Pass)
	return result, nil
}

func open(s *Scenario, backend, dir string) (*connector.Connector, error) {
	p := config.Defaults()
	p.Backend = backend
	p.StorePath = filepath.Join(dir, s.Name+"-"+backend+".db")
	p.TypeNameList = s.TypeNameList
	if s.SampleSize > 0 {
		p.SampleSize = s.SampleSize
	}
	cfg, err := config.New(p)
	if err != nil {
		return nil, err
	}
	return connector.Open(cfg)
}

func (h *Harness) fail(format string, args ...any) {
	h.result.AddError(h.conn.Backend() + ": " + fmt.Sprintf(format, args...))
}

func (h *Harness) run(ctx context.Context) (*BackendResult, error) {
	for _, ks := range slices.Sorted(maps.Keys(h.docs)) {
		if _, err := h.conn.Load(ctx, ks, h.docs[ks]); err != nil {
			return nil, err
		}
	}

	s, report, err := h.conn.RefreshSchema(ctx)
	if err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		h.fail("inference: %v", err)
	}
	fp, err := s.Fingerprint()
	if err != nil {
		return nil, err
	}

	br := &BackendResult{Backend: h.conn.Backend(), Fingerprint: fp, Schema: s}
	for _, err := range EvaluateAssertions(s, h.scenario.Assertions) {
		h.fail("%v", err)
	}

	for _, q := range h.scenario.Queries {
		qr, err := h.query(ctx, s, q)
		if err != nil {
			h.fail("query %s: %v", q.Name, err)
			continue
		}
		br.Queries = append(br.Queries, qr)
	}
	return br, nil
}

func (h *Harness) query(ctx context.Context, s *schema.Schema, q QueryStep) (QueryResult, error) {
	sel, err := q.Select()
	if err != nil {
		return QueryResult{}, err
	}
	t, err := h.conn.Translate(sel)
	if err != nil {
		return QueryResult{}, err
	}
	cur := t.Cursor()
	if err := cur.Execute(ctx); err != nil {
		return QueryResult{}, err
	}
	rows, err := connector.ReadAll(ctx, cur)
	if err != nil {
		return QueryResult{}, err
	}

	qr := QueryResult{
		Name:    q.Name,
		Native:  t.Native,
		Pushed:  t.Pushed,
		Exact:   t.Plan.Residual == nil,
		Columns: t.Plan.Labels(),
		Rows:    rows,
	}

	if q.Expect != nil {
		if err := checkExpected(q.Expect, qr); err != nil {
			h.fail("query %s: %v", q.Name, err)
		}
	}

	// Without a row window the result must match in-memory evaluation
	// regardless of order.
	if sel.Offset == 0 && sel.Limit == 0 {
		table, _ := s.Table(sel.From)
		want := evaluate(table, h.docs[table.SourceName], sel)
		if got, exp := sortedKeys(rows), sortedKeys(want); !slices.Equal(got, exp) {
			h.fail("query %s: rows %v differ from in-memory evaluation %v", q.Name, got, exp)
		}
	}
	return qr, nil
}

func checkExpected(exp *ExpectedRows, qr QueryResult) error {
	if len(exp.Columns) > 0 && !slices.Equal(exp.Columns, qr.Columns) {
		return fmt.Errorf("columns %v, want %v", qr.Columns, exp.Columns)
	}
	want := make([]string, len(exp.Rows))
	for i, r := range exp.Rows {
		v, err := ir.FromNative(r)
		if err != nil {
			return fmt.Errorf("expect.rows[%d]: %w", i, err)
		}
		want[i] = rowKey(v.(ir.IRArray))
	}
	got := make([]string, len(qr.Rows))
	for i, r := range qr.Rows {
		got[i] = rowKey(r)
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("rows\n    got:  %s\n    want: %s", strings.Join(got, " "), strings.Join(want, " "))
	}
	return nil
}

// evaluate computes sel over the table rows of docs with queryir.Eval.
// Row order and the row window are not applied.
func evaluate(t *schema.Table, docs []ir.Document, sel queryir.Select) [][]ir.IRValue {
	cols := sel.Columns
	if len(cols) == 0 {
		for _, name := range t.ColumnNames() {
			cols = append(cols, queryir.Projection{Column: name})
		}
	}

	var out [][]ir.IRValue
	for _, doc := range docs {
		for _, row := range t.Rows(doc) {
			if sel.Where != nil && queryir.Eval(sel.Where, row) != queryir.True {
				continue
			}
			values := make([]ir.IRValue, len(cols))
			for i, p := range cols {
				v, ok := row[p.Column]
				if !ok {
					v = ir.IRNull{}
				}
				if col, ok := t.Column(p.Column); ok {
					if coerced, err := schema.Coerce(v, col.Type); err == nil {
						v = coerced
					}
				}
				values[i] = v
			}
			out = append(out, values)
		}
	}
	return out
}

// compareBackends checks that every backend agrees with the first one.
func compareBackends(r *Result) {
	if len(r.Backends) < 2 {
		return
	}
	first := r.Backends[0]
	for _, other := range r.Backends[1:] {
		if other.Fingerprint != first.Fingerprint {
			r.AddError(fmt.Sprintf("%s and %s inferred different schemas", first.Backend, other.Backend))
		}
		for _, q := range first.Queries {
			oq, ok := other.Query(q.Name)
			if !ok {
				continue
			}
			a, b := rowKeys(q.Rows), rowKeys(oq.Rows)
			if !slices.Equal(a, b) {
				r.AddError(fmt.Sprintf("query %s: %s returned %v, %s returned %v", q.Name, first.Backend, a, other.Backend, b))
			}
		}
	}
}

func rowKey(row []ir.IRValue) string {
	data, err := ir.MarshalIRValue(ir.IRArray(row))
	if err != nil {
		return fmt.Sprintf("%v", row)
	}
	return string(data)
}

func rowKeys(rows [][]ir.IRValue) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = rowKey(r)
	}
	return keys
}

func sortedKeys(rows [][]ir.IRValue) []string {
	keys := rowKeys(rows)
	slices.Sort(keys)
	return keys
}
