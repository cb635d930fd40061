package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
)

// SchemaSnapshot renders an inferred schema as canonical JSON.
// The output only depends on the inferred tables, never on the backend.
func SchemaSnapshot(s *schema.Schema) ([]byte, error) {
	return ir.MarshalCanonical(s.Describe())
}

// RunWithGolden executes a scenario and compares the schema inferred by the
// first backend against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the schema doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if len(result.Backends) == 0 {
		return result, nil
	}
	if err := AssertGolden(t, scenario.Name, result.Backends[0].Schema); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares s against the golden file named name.
func AssertGolden(t *testing.T, name string, s *schema.Schema) error {
	t.Helper()

	data, err := SchemaSnapshot(s)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
