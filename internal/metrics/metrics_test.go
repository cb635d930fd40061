package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docbridge/internal/inference"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/translate"
)

// histogramCount reads the sample count of a histogram.
func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, h.Write(m))
	require.NotNil(t, m.GetHistogram())
	return m.GetHistogram().GetSampleCount()
}

func TestOutcome(t *testing.T) {
	dropped := &translate.Report{Dropped: []translate.Dropped{{Reason: "x"}}}

	tests := []struct {
		name         string
		hasCondition bool
		pushed       bool
		report       *translate.Report
		want         string
	}{
		{"no condition", false, false, nil, OutcomeNone},
		{"not pushed", true, false, dropped, OutcomeResidual},
		{"exact", true, true, &translate.Report{}, OutcomeExact},
		{"exact nil report", true, true, nil, OutcomeExact},
		{"superset", true, true, dropped, OutcomeSuperset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.hasCondition, tt.pushed, tt.report))
		})
	}
}

func TestRecordTranslation(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	report := &translate.Report{Dropped: []translate.Dropped{
		{Condition: queryir.Like{Left: queryir.Col("n"), Pattern: "a%"}, Reason: "LIKE not supported"},
		{Condition: queryir.Compare("n", queryir.OpEq, 1), Reason: "declined by backend"},
		{Condition: queryir.Compare("m", queryir.OpEq, 1), Reason: "declined by backend"},
	}}
	m.RecordTranslation("cache", true, true, report)
	m.RecordTranslation("cache", true, true, &translate.Report{})
	m.RecordTranslation("document", false, false, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.translations.WithLabelValues("cache", OutcomeSuperset)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.translations.WithLabelValues("cache", OutcomeExact)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.translations.WithLabelValues("document", OutcomeNone)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dropped.WithLabelValues("cache", "comparison")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("cache", "like")))
}

func TestRecordInferenceRowsRetries(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.RecordInference(&inference.Report{
		Tables:   []string{"car", "car_tags"},
		Failures: []inference.Failure{{}},
		Duration: 20 * time.Millisecond,
	})
	m.RecordRows("document", 3)
	m.RecordRows("document", 0)
	m.RecordRetry("cache")
	m.RecordRetry("cache")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inferTables.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inferTables.WithLabelValues("failed")))
	assert.Equal(t, uint64(1), histogramCount(t, m.inferDuration))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rows.WithLabelValues("document")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retries.WithLabelValues("cache")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTranslation("cache", true, true, nil)
		m.RecordInference(&inference.Report{})
		m.RecordRows("cache", 1)
		m.RecordRetry("cache")
	})
	assert.Nil(t, m.Registry())
}
