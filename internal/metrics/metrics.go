// Package metrics records translator activity as Prometheus collectors.
//
// Every collector lives in the Metrics' own registry, so several connectors
// in one process never collide. A nil *Metrics is valid and records
// nothing, which keeps instrumentation optional for callers and tests.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/docbridge/internal/inference"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/translate"
)

// Translation outcomes, used as the "outcome" label.
const (
	OutcomeExact    = "exact"    // native filter equals the condition
	OutcomeSuperset = "superset" // native filter plus in-memory re-check
	OutcomeResidual = "residual" // nothing pushed, evaluated in memory
	OutcomeNone     = "none"     // request had no condition
)

// Metrics holds the translator's collectors.
type Metrics struct {
	reg *prometheus.Registry

	translations  *prometheus.CounterVec // docbridge_translations_total
	dropped       *prometheus.CounterVec // docbridge_dropped_conditions_total
	inferTables   *prometheus.CounterVec // docbridge_inference_tables_total
	inferDuration prometheus.Histogram   // docbridge_inference_duration_seconds
	rows          *prometheus.CounterVec // docbridge_cursor_rows_total
	retries       *prometheus.CounterVec // docbridge_cursor_retries_total
}

// New creates the collectors and registers them in a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_translations_total",
			Help: "Predicate translations, partitioned by backend and pushdown outcome.",
		}, []string{"backend", "outcome"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_dropped_conditions_total",
			Help: "Condition nodes left out of a native filter, partitioned by backend and node kind.",
		}, []string{"backend", "kind"}),
		inferTables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_inference_tables_total",
			Help: "Tables produced or skipped by schema inference.",
		}, []string{"status"}),
		inferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbridge_inference_duration_seconds",
			Help:    "Duration of schema inference runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_cursor_rows_total",
			Help: "Rows returned by result cursors, partitioned by backend.",
		}, []string{"backend"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_cursor_retries_total",
			Help: "Retry requests returned by result cursors, partitioned by backend.",
		}, []string{"backend"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"translations":       m.translations,
		"dropped conditions": m.dropped,
		"inference tables":   m.inferTables,
		"inference duration": m.inferDuration,
		"cursor rows":        m.rows,
		"cursor retries":     m.retries,
	} {
		if err := m.reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}
	return m, nil
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Outcome classifies one translation for the "outcome" label.
func Outcome(hasCondition, pushed bool, report *translate.Report) string {
	switch {
	case !hasCondition:
		return OutcomeNone
	case !pushed:
		return OutcomeResidual
	case report.Exact():
		return OutcomeExact
	default:
		return OutcomeSuperset
	}
}

// RecordTranslation counts one translation and its dropped nodes.
func (m *Metrics) RecordTranslation(backend string, hasCondition, pushed bool, report *translate.Report) {
	if m == nil {
		return
	}
	m.translations.WithLabelValues(backend, Outcome(hasCondition, pushed, report)).Inc()
	if report == nil {
		return
	}
	for _, d := range report.Dropped {
		m.dropped.WithLabelValues(backend, conditionKind(d.Condition)).Inc()
	}
}

func conditionKind(c queryir.Condition) string {
	switch n := c.(type) {
	case queryir.AndOr:
		if n.Op == queryir.OpAnd {
			return "and"
		}
		return "or"
	case queryir.Not:
		return "not"
	case queryir.Comparison:
		return "comparison"
	case queryir.In:
		return "in"
	case queryir.Like:
		return "like"
	case queryir.IsNull:
		return "is_null"
	default:
		return "other"
	}
}

// RecordInference counts the tables of one inference run and its duration.
func (m *Metrics) RecordInference(report *inference.Report) {
	if m == nil || report == nil {
		return
	}
	m.inferTables.WithLabelValues("created").Add(float64(len(report.Tables)))
	m.inferTables.WithLabelValues("failed").Add(float64(len(report.Failures)))
	m.inferDuration.Observe(report.Duration.Seconds())
}

// RecordRows counts rows returned by a cursor.
func (m *Metrics) RecordRows(backend string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(backend).Add(float64(n))
}

// RecordRetry counts one retry request.
func (m *Metrics) RecordRetry(backend string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(backend).Inc()
}
