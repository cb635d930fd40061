package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/docbridge/internal/schema"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Table    string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Tables   []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s on %s\n", e.Type, e.Table)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)
	if len(e.Tables) > 0 {
		fmt.Fprintf(&buf, "  tables: %s\n", strings.Join(e.Tables, ", "))
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against s and returns the
// failures.
func EvaluateAssertions(s *schema.Schema, assertions []Assertion) []error {
	var errs []error
	for _, a := range assertions {
		if err := evaluateAssertion(s, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func evaluateAssertion(s *schema.Schema, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Table: a.Table, Expected: expected, Actual: actual, Tables: tableNames(s)}
	}

	t, ok := s.Table(a.Table)
	if !ok {
		return fail("table exists", "table not found")
	}

	switch a.Type {
	case AssertTableExists:
		return nil

	case AssertColumnType:
		want, err := schema.ParseDataType(a.DataType)
		if err != nil {
			return err
		}
		col, ok := t.Column(a.Column)
		if !ok {
			return fail(fmt.Sprintf("column %s of type %s", a.Column, want), fmt.Sprintf("no such column, have %v", t.ColumnNames()))
		}
		if col.Type != want {
			return fail(fmt.Sprintf("column %s of type %s", a.Column, want), col.Type.String())
		}
		return nil

	case AssertPrimaryKey:
		if !slices.Equal(t.PrimaryKey, a.Columns) {
			return fail(fmt.Sprintf("primary key %v", a.Columns), fmt.Sprintf("%v", t.PrimaryKey))
		}
		return nil

	case AssertForeignKey:
		want := fmt.Sprintf("foreign key %v -> %s", a.Columns, a.Parent)
		fk := t.ForeignKey
		if fk == nil {
			return fail(want, "no foreign key")
		}
		if fk.Parent != a.Parent || !slices.Equal(fk.Columns, a.Columns) {
			return fail(want, fmt.Sprintf("foreign key %v -> %s", fk.Columns, fk.Parent))
		}
		return nil

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func tableNames(s *schema.Schema) []string {
	tables := s.Tables()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}
