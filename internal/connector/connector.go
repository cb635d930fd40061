// Package connector ties a native backend to schema inference, predicate
// translation and result cursors.
//
// A Connector owns one backend (the SQLite document store or the object
// cache), a schema.Holder with the current inferred schema, and optional
// metrics. Requests are translated against the schema snapshot current at
// the time of the call.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/docbridge/internal/cache"
	"github.com/roach88/docbridge/internal/capability"
	"github.com/roach88/docbridge/internal/config"
	"github.com/roach88/docbridge/internal/docstore"
	"github.com/roach88/docbridge/internal/exec"
	"github.com/roach88/docbridge/internal/inference"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/metrics"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

// ErrUnknownTable is returned for a request on a table the current schema
// does not have.
var ErrUnknownTable = errors.New("unknown table")

// Option configures a Connector.
type Option func(*Connector)

// WithMetrics records translator activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connector) { c.metrics = m }
}

// WithScope sets the lifetime of cached explanations. ScopeRequest
// disables the cache.
func WithScope(s CacheScope) Option {
	return func(c *Connector) { c.scope = s }
}

// Connector serves relational requests from one native backend.
// It is safe for concurrent use.
type Connector struct {
	cfg     *config.Config
	backend backend
	holder  *schema.Holder
	engine  *inference.Engine
	metrics *metrics.Metrics
	scope   CacheScope

	mu        sync.Mutex
	explained map[string][]byte
}

// Open creates the backend named by cfg.Backend. The document backend
// opens (or creates) the SQLite file at cfg.StorePath; the cache backend
// starts empty.
func Open(cfg *config.Config, opts ...Option) (*Connector, error) {
	switch cfg.Backend {
	case config.BackendDocument:
		store, err := docstore.Open(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open document store: %w", err)
		}
		return NewDocument(cfg, store, opts...), nil
	case config.BackendCache:
		return NewCache(cfg, cache.New(), opts...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewDocument creates a connector over an open document store. Close
// closes the store.
func NewDocument(cfg *config.Config, store *docstore.Store, opts ...Option) *Connector {
	return newConnector(cfg, documentBackend{store}, opts)
}

// NewCache creates a connector over an object cache.
func NewCache(cfg *config.Config, c *cache.Cache, opts ...Option) *Connector {
	return newConnector(cfg, cacheBackend{c}, opts)
}

func newConnector(cfg *config.Config, b backend, opts []Option) *Connector {
	c := &Connector{
		cfg:     cfg,
		backend: b,
		holder:  schema.NewHolder(),
		engine: inference.New(inference.Options{
			SampleSize: cfg.SampleSize,
			TypeNames:  cfg.TypeNames.Map(),
			Workers:    cfg.InferenceWorkers,
		}),
		scope:     ScopeService,
		explained: map[string][]byte{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the backend.
func (c *Connector) Close() error {
	return c.backend.close()
}

// Backend returns the backend name.
func (c *Connector) Backend() string { return c.backend.name() }

// Capabilities returns the backend's capability descriptor.
func (c *Connector) Capabilities() capability.Descriptor { return c.backend.capabilities() }

// Scope returns the lifetime of cached explanations.
func (c *Connector) Scope() CacheScope { return c.scope }

// Load stores documents in a keyspace. Documents without an ID get a
// generated one. The schema is not refreshed.
func (c *Connector) Load(ctx context.Context, keyspace string, docs []ir.Document) ([]string, error) {
	ids, err := c.backend.put(ctx, keyspace, docs)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", keyspace, err)
	}
	slog.Debug("documents loaded", "backend", c.backend.name(), "keyspace", keyspace, "count", len(ids))
	return ids, nil
}

// Schema returns the current schema snapshot.
func (c *Connector) Schema() *schema.Schema {
	return c.holder.Load()
}

// RefreshSchema infers a new schema from the backend and publishes it.
// On failure the previous snapshot stays current.
func (c *Connector) RefreshSchema(ctx context.Context) (*schema.Schema, *inference.Report, error) {
	var report *inference.Report
	s, err := c.holder.Refresh(ctx, func(ctx context.Context) (*schema.Schema, error) {
		b := schema.NewBuilder()
		r, err := c.engine.Infer(ctx, c.backend, b)
		if err != nil {
			return nil, err
		}
		report = r
		return b.Build()
	})
	if err != nil {
		return nil, nil, fmt.Errorf("refresh schema: %w", err)
	}

	c.metrics.RecordInference(report)
	slog.Info("schema refreshed",
		"backend", c.backend.name(),
		"tables", s.Len(),
		"documents", report.Documents,
		"failures", len(report.Failures),
		"duration", report.Duration)
	return s, report, nil
}

// Translation is a request compiled for the backend.
type Translation struct {
	Table *schema.Table

	// Native is the backend query: SQL for the document store, the DSL
	// call chain for the cache.
	Native string
	Args   []any

	Pushed bool
	Report *translate.Report
	Plan   exec.Plan

	open    exec.Opener
	backend string
	metrics *metrics.Metrics
}

// Translate compiles sel against the current schema snapshot.
func (c *Connector) Translate(sel queryir.Select) (*Translation, error) {
	table, ok := c.holder.Load().Table(sel.From)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTable, sel.From)
	}

	out, err := c.backend.compile(sel, table)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordTranslation(c.backend.name(), sel.Where != nil, out.pushed, out.report)

	slog.Debug("request translated",
		"backend", c.backend.name(),
		"table", table.Name,
		"pushed", out.pushed,
		"dropped", len(out.report.Dropped))
	return &Translation{
		Table:   table,
		Native:  out.native,
		Args:    out.args,
		Pushed:  out.pushed,
		Report:  out.report,
		Plan:    out.plan,
		open:    out.open,
		backend: c.backend.name(),
		metrics: c.metrics,
	}, nil
}

// Cursor creates an unstarted cursor for the translation. Each call
// returns an independent cursor.
func (t *Translation) Cursor() *Cursor {
	return &Cursor{Cursor: exec.NewCursor(t.open, t.Plan), backend: t.backend, metrics: t.metrics}
}

// Query translates sel and starts a cursor over it.
func (c *Connector) Query(ctx context.Context, sel queryir.Select) (*Cursor, error) {
	t, err := c.Translate(sel)
	if err != nil {
		return nil, err
	}
	cur := t.Cursor()
	if err := cur.Execute(ctx); err != nil {
		return nil, err
	}
	return cur, nil
}

// Cursor is an exec.Cursor that records returned rows and retries.
type Cursor struct {
	*exec.Cursor
	backend string
	metrics *metrics.Metrics
}

// Next returns the next result, see exec.Cursor.Next.
func (c *Cursor) Next(ctx context.Context) (exec.Result, error) {
	res, err := c.Cursor.Next(ctx)
	if err != nil {
		return res, err
	}
	switch res.Kind {
	case exec.KindRow:
		c.metrics.RecordRows(c.backend, 1)
	case exec.KindRetry:
		c.metrics.RecordRetry(c.backend)
	}
	return res, nil
}

// ReadAll drains cur, waiting out retry requests, and closes it.
func ReadAll(ctx context.Context, cur *Cursor) ([][]ir.IRValue, error) {
	defer cur.Close()

	rows := [][]ir.IRValue{}
	for {
		res, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		switch res.Kind {
		case exec.KindEnd:
			return rows, nil
		case exec.KindRow:
			rows = append(rows, res.Row)
		case exec.KindRetry:
			timer := time.NewTimer(res.After)
			select {
			case <-ctx.Done():
				timer.Stop()
				cur.Cancel()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// Explanation describes how a request is split between the backend and
// the in-memory cursor.
type Explanation struct {
	Backend  string    `json:"backend"`
	Table    string    `json:"table"`
	Native   string    `json:"native"`
	Args     []string  `json:"args,omitempty"`
	Pushed   bool      `json:"pushed"`
	Exact    bool      `json:"exact"`
	Residual string    `json:"residual,omitempty"`
	Dropped  []Dropped `json:"dropped,omitempty"`
	Columns  []string  `json:"columns"`
	Offset   int       `json:"offset,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

// Dropped is a condition node left out of the native query.
type Dropped struct {
	Condition string `json:"condition"`
	Reason    string `json:"reason"`
	Strict    bool   `json:"strict"`
}

// Explain translates sel and describes the result. Explanations are cached
// per schema snapshot at the connector's scope; scopes that require
// serializable values keep them as JSON.
func (c *Connector) Explain(sel queryir.Select) (Explanation, error) {
	var key string
	if c.scope != ScopeRequest {
		fp, err := c.holder.Load().Fingerprint()
		if err != nil {
			return Explanation{}, fmt.Errorf("fingerprint schema: %w", err)
		}
		key = fp + "|" + requestKey(sel)
		if e, ok := c.cachedExplanation(key); ok {
			return e, nil
		}
	}

	t, err := c.Translate(sel)
	if err != nil {
		return Explanation{}, err
	}
	e := Explanation{
		Backend: c.backend.name(),
		Table:   t.Table.Name,
		Native:  t.Native,
		Args:    formatArgs(t.Args),
		Pushed:  t.Pushed,
		Exact:   t.Plan.Residual == nil,
		Columns: t.Plan.Labels(),
		Offset:  t.Plan.Offset,
		Limit:   t.Plan.Limit,
	}
	if t.Plan.Residual != nil {
		e.Residual = queryir.Format(t.Plan.Residual)
	}
	for _, d := range t.Report.Dropped {
		e.Dropped = append(e.Dropped, Dropped{Condition: queryir.Format(d.Condition), Reason: d.Reason, Strict: d.Strict})
	}

	if key != "" {
		c.storeExplanation(key, e)
	}
	return e, nil
}

func (c *Connector) cachedExplanation(key string) (Explanation, bool) {
	c.mu.Lock()
	data, ok := c.explained[key]
	c.mu.Unlock()
	if !ok {
		return Explanation{}, false
	}
	var e Explanation
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Warn("dropping unreadable cached explanation", "error", err)
		return Explanation{}, false
	}
	return e, true
}

func (c *Connector) storeExplanation(key string, e Explanation) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("explanation not cached", "error", err)
		return
	}
	c.mu.Lock()
	c.explained[key] = data
	c.mu.Unlock()
}
