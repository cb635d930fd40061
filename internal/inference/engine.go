package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
)

const (
	// DefaultSampleSize is the number of documents sampled per logical
	// table when no sample size is configured.
	DefaultSampleSize = 100

	// DefaultWorkers bounds concurrent sampling queries.
	DefaultWorkers = 4
)

// Options configures an Engine.
type Options struct {
	// SampleSize caps the documents read per logical table.
	SampleSize int

	// TypeNames maps a keyspace to its discriminator attribute.
	TypeNames map[string]string

	// Workers bounds concurrent Sample calls.
	Workers int
}

// Engine infers relational tables from sampled documents.
// An Engine holds no per-run state and may be shared.
type Engine struct {
	opts Options
}

// New creates an Engine, filling unset options with defaults.
func New(opts Options) *Engine {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Failure is a logical table that could not be inferred.
type Failure struct {
	Keyspace string
	Table    string
	Err      error
}

// Error implements the error interface.
func (f Failure) Error() string {
	if f.Table == "" {
		return fmt.Sprintf("keyspace %q: %v", f.Keyspace, f.Err)
	}
	return fmt.Sprintf("table %q (keyspace %q): %v", f.Table, f.Keyspace, f.Err)
}

// Unwrap returns the underlying cause.
func (f Failure) Unwrap() error {
	return f.Err
}

// Report summarizes one inference run.
type Report struct {
	// Tables lists every emitted table in creation order.
	Tables []string

	// Failures lists logical tables skipped because sampling failed.
	Failures []Failure

	// Documents is the number of sampled documents.
	Documents int

	Duration time.Duration
}

// Err joins the failures into one error, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// logicalTable is one root table planned for a keyspace.
type logicalTable struct {
	keyspace string
	name     string
	disc     *schema.Discriminator
	docs     []ir.Document
	err      error
}

// Infer samples src and writes the inferred tables into sink.
//
// Sampling failures of individual tables are collected in the report while
// the other tables continue. Sink errors and context cancellation abort the
// run. The sink is only written after all sampling finished.
func (e *Engine) Infer(ctx context.Context, src Source, sink schema.MetadataFactory) (*Report, error) {
	start := time.Now()
	report := &Report{}

	keyspaces, err := src.Keyspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keyspaces: %w", err)
	}
	keyspaces = slices.Clone(keyspaces)
	slices.Sort(keyspaces)

	a := newArena()
	plan := e.plan(ctx, src, keyspaces, a, report)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.sample(ctx, src, plan); err != nil {
		return nil, err
	}

	// Scanning is sequential so table and column order only depend on the
	// data, never on sampling completion order.
	for _, lt := range plan {
		if lt.err != nil {
			slog.Warn("sampling failed, table skipped",
				"keyspace", lt.keyspace,
				"table", lt.name,
				"error", lt.err)
			report.Failures = append(report.Failures, Failure{Keyspace: lt.keyspace, Table: lt.name, Err: lt.err})
			continue
		}
		root := a.root(lt.name, lt.keyspace, lt.disc)
		s := &scanner{arena: a, root: root}
		for _, doc := range lt.docs {
			s.scanObject(root, doc.Body, "", nil, dimension{})
		}
		report.Documents += len(lt.docs)
		slog.Debug("logical table scanned",
			"keyspace", lt.keyspace,
			"table", lt.name,
			"documents", len(lt.docs))
	}

	if err := a.emit(sink); err != nil {
		return nil, err
	}
	for _, t := range a.tables {
		report.Tables = append(report.Tables, t.name)
	}
	report.Duration = time.Since(start)

	slog.Info("schema inference complete",
		"keyspaces", len(keyspaces),
		"tables", len(report.Tables),
		"documents", report.Documents,
		"failures", len(report.Failures),
		"duration", report.Duration)
	return report, nil
}

// plan decides the logical tables of every keyspace and reserves their
// names. Keyspaces without a discriminator claim their own name first;
// discriminator values are named afterwards and take a "<keyspace>_" prefix
// when the bare value is taken. Keyspaces and values are visited in sorted
// order, so names are stable across runs.
func (e *Engine) plan(ctx context.Context, src Source, keyspaces []string, a *arena, report *Report) []*logicalTable {
	var plan []*logicalTable
	for _, ks := range keyspaces {
		attr, ok := e.opts.TypeNames[ks]
		if !ok {
			plan = append(plan, &logicalTable{keyspace: ks, name: a.reserve(ks)})
			continue
		}

		values, err := src.DistinctValues(ctx, ks, attr)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("discriminator lookup failed, keyspace skipped",
				"keyspace", ks,
				"attribute", attr,
				"error", err)
			report.Failures = append(report.Failures, Failure{Keyspace: ks, Err: fmt.Errorf("distinct values of %q: %w", attr, err)})
			continue
		}
		if len(values) == 0 {
			slog.Warn("discriminator has no values, using single table",
				"keyspace", ks,
				"attribute", attr)
			plan = append(plan, &logicalTable{keyspace: ks, name: a.reserve(ks)})
			continue
		}

		values = slices.Clone(values)
		slices.Sort(values)
		values = slices.Compact(values)
		for _, v := range values {
			plan = append(plan, &logicalTable{
				keyspace: ks,
				disc:     &schema.Discriminator{Attribute: attr, Value: v},
			})
		}
	}

	for _, lt := range plan {
		if lt.disc != nil {
			lt.name = a.reserve(lt.disc.Value, lt.keyspace+"_"+lt.disc.Value)
		}
	}
	return plan
}

// sample fills docs or err of every planned table, running at most
// Workers queries at a time.
func (e *Engine) sample(ctx context.Context, src Source, plan []*logicalTable) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, lt := range plan {
		g.Go(func() error {
			docs, err := src.Sample(gctx, lt.keyspace, lt.disc, e.opts.SampleSize)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				lt.err = err
				return nil
			}
			if len(docs) > e.opts.SampleSize {
				docs = docs[:e.opts.SampleSize]
			}
			lt.docs = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
