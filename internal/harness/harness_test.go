package harness

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docbridge/internal/config"
	"github.com/roach88/docbridge/internal/ir"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Backends, len(s.BackendNames()))
		})
	}
}

func TestRunWithGolden_Cars(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cars.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	require.True(t, result.Pass, strings.Join(result.Errors, "\n"))

	doc, ok := result.Backend(config.BackendDocument)
	require.True(t, ok)
	cache, ok := result.Backend(config.BackendCache)
	require.True(t, ok)
	assert.Equal(t, doc.Fingerprint, cache.Fingerprint)

	q, ok := cache.Query("like_special_characters")
	require.True(t, ok)
	assert.True(t, q.Pushed)
	assert.True(t, q.Exact)
	assert.Contains(t, q.Native, `like("*\\28gt\\29\\2a")`)

	q, ok = doc.Query("like_special_characters")
	require.True(t, ok)
	assert.Contains(t, q.Native, "LIKE")
}

func TestRun_ReportsMismatches(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: mismatch
description: Wrong expectations are reported per backend.
backends: [cache]
documents:
  car:
    - id: c1
      body: {name: civic, hp: 158}
queries:
  - name: all
    from: car
    columns: [name]
    expect:
      rows:
        - [mustang]
  - name: missing_table
    from: boat
assertions:
  - type: column_type
    table: car
    column: hp
    data_type: string
  - type: table_exists
    table: car_tags
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "cache: query all: rows")
	assert.Contains(t, joined, "cache: query missing_table: unknown table")
	assert.Contains(t, joined, "assertion failed: column_type on car")
	assert.Contains(t, joined, "assertion failed: table_exists on car_tags")

	cache, ok := result.Backend(config.BackendCache)
	require.True(t, ok)
	q, ok := cache.Query("all")
	require.True(t, ok)
	assert.Equal(t, [][]ir.IRValue{{ir.IRString("civic")}}, q.Rows)
}

func TestCompareBackends(t *testing.T) {
	r := NewResult()
	r.Backends = []*BackendResult{
		{Backend: "document", Fingerprint: "a", Queries: []QueryResult{{Name: "q", Rows: [][]ir.IRValue{{ir.IRInt(1)}}}}},
		{Backend: "cache", Fingerprint: "b", Queries: []QueryResult{{Name: "q", Rows: [][]ir.IRValue{{ir.IRInt(2)}}}}},
	}
	compareBackends(r)

	assert.False(t, r.Pass)
	require.Len(t, r.Errors, 2)
	assert.Contains(t, r.Errors[0], "inferred different schemas")
	assert.Contains(t, r.Errors[1], "query q: document returned [[1]], cache returned [[2]]")
}
