package harness

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docbridge/internal/config"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
)

// Scenario defines a conformance scenario.
// Documents are loaded into every listed backend, the schema is inferred,
// and the queries run against each backend.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// TypeNameList configures discriminators, in config syntax.
	TypeNameList string `yaml:"type_name_list,omitempty"`

	// SampleSize overrides the inference sample size.
	SampleSize int `yaml:"sample_size,omitempty"`

	// Backends lists the backends to run. Empty means both.
	Backends []string `yaml:"backends,omitempty"`

	// Documents maps a keyspace to the documents stored in it.
	Documents map[string][]DocumentSpec `yaml:"documents"`

	// Queries run after inference, in order.
	Queries []QueryStep `yaml:"queries,omitempty"`

	// Assertions validate the inferred schema.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// DocumentSpec is one document of a keyspace.
type DocumentSpec struct {
	// ID is the document identifier. Empty IDs are generated.
	ID string `yaml:"id,omitempty"`

	// Body is the document content. YAML values convert with ir.FromNative.
	Body map[string]any `yaml:"body"`
}

// QueryStep is one relational request.
type QueryStep struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`

	// Columns are "column" or "column AS alias". Empty selects every column.
	Columns []string `yaml:"columns,omitempty"`

	// Where is a condition in queryir.Parse syntax.
	Where string `yaml:"where,omitempty"`

	// OrderBy entries are "column", "column ASC" or "column DESC".
	OrderBy []string `yaml:"order_by,omitempty"`

	Offset int `yaml:"offset,omitempty"`
	Limit  int `yaml:"limit,omitempty"`

	// Expect is compared with the rows of every backend. Rows are
	// compared in order.
	Expect *ExpectedRows `yaml:"expect,omitempty"`
}

// ExpectedRows is the expected output of a query.
type ExpectedRows struct {
	Columns []string `yaml:"columns,omitempty"`
	Rows    [][]any  `yaml:"rows"`
}

// Assertion validates the inferred schema.
type Assertion struct {
	// Type specifies the assertion type:
	// - "table_exists": Table is present
	// - "column_type": Column of Table has DataType
	// - "primary_key": Table's primary key equals Columns
	// - "foreign_key": Table references Parent through Columns
	Type string `yaml:"type"`

	Table    string   `yaml:"table"`
	Column   string   `yaml:"column,omitempty"`
	DataType string   `yaml:"data_type,omitempty"`
	Columns  []string `yaml:"columns,omitempty"`
	Parent   string   `yaml:"parent,omitempty"`
}

// Assertion type constants.
const (
	AssertTableExists = "table_exists"
	AssertColumnType  = "column_type"
	AssertPrimaryKey  = "primary_key"
	AssertForeignKey  = "foreign_key"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Documents) == 0 {
		return fmt.Errorf("documents are required and must be non-empty")
	}
	if s.SampleSize < 0 {
		return fmt.Errorf("sample_size must be non-negative")
	}
	if len(s.Queries) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("at least one query or assertion is required")
	}

	for _, b := range s.Backends {
		if b != config.BackendDocument && b != config.BackendCache {
			return fmt.Errorf("unknown backend %q", b)
		}
	}

	for ks, docs := range s.Documents {
		for i, d := range docs {
			if d.Body == nil {
				return fmt.Errorf("documents[%s][%d]: body is required", ks, i)
			}
		}
	}

	names := map[string]bool{}
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
		if _, err := q.Select(); err != nil {
			return fmt.Errorf("queries[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Table == "" {
		return fmt.Errorf("assertions[%d]: table is required", index)
	}

	switch a.Type {
	case AssertTableExists:
	case AssertColumnType:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for column_type", index)
		}
		if _, err := schema.ParseDataType(a.DataType); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertPrimaryKey:
		if len(a.Columns) == 0 {
			return fmt.Errorf("assertions[%d]: columns are required for primary_key", index)
		}
	case AssertForeignKey:
		if a.Parent == "" || len(a.Columns) == 0 {
			return fmt.Errorf("assertions[%d]: parent and columns are required for foreign_key", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// BackendNames returns the backends to run, in run order.
func (s *Scenario) BackendNames() []string {
	if len(s.Backends) == 0 {
		return []string{config.BackendDocument, config.BackendCache}
	}
	return s.Backends
}

// Load converts the documents of a keyspace.
func (s *Scenario) Load(keyspace string) ([]ir.Document, error) {
	specs := s.Documents[keyspace]
	docs := make([]ir.Document, len(specs))
	for i, d := range specs {
		v, err := ir.FromNative(d.Body)
		if err != nil {
			return nil, fmt.Errorf("documents[%s][%d]: %w", keyspace, i, err)
		}
		obj, ok := v.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("documents[%s][%d]: body is %s, not an object", keyspace, i, ir.KindOf(v))
		}
		docs[i] = ir.Document{ID: d.ID, Body: obj}
	}
	return docs, nil
}

var aliasRE = regexp.MustCompile(`(?i)^\s*(\S+)\s+AS\s+(\S+)\s*$`)

// Select builds the relational request.
func (q QueryStep) Select() (queryir.Select, error) {
	if q.From == "" {
		return queryir.Select{}, fmt.Errorf("from is required")
	}
	if q.Offset < 0 || q.Limit < 0 {
		return queryir.Select{}, fmt.Errorf("offset and limit must be non-negative")
	}
	sel := queryir.Select{From: q.From, Offset: q.Offset, Limit: q.Limit}

	for _, c := range q.Columns {
		if m := aliasRE.FindStringSubmatch(c); m != nil {
			sel.Columns = append(sel.Columns, queryir.Projection{Column: m[1], Alias: m[2]})
			continue
		}
		name := strings.TrimSpace(c)
		if name == "" || strings.ContainsAny(name, " \t") {
			return queryir.Select{}, fmt.Errorf("invalid column %q", c)
		}
		sel.Columns = append(sel.Columns, queryir.Projection{Column: name})
	}

	if q.Where != "" {
		cond, err := queryir.Parse(q.Where)
		if err != nil {
			return queryir.Select{}, fmt.Errorf("where: %w", err)
		}
		sel.Where = cond
	}

	for _, o := range q.OrderBy {
		fields := strings.Fields(o)
		switch {
		case len(fields) == 1:
			sel.OrderBy = append(sel.OrderBy, queryir.OrderBy{Column: fields[0]})
		case len(fields) == 2 && strings.EqualFold(fields[1], "ASC"):
			sel.OrderBy = append(sel.OrderBy, queryir.OrderBy{Column: fields[0]})
		case len(fields) == 2 && strings.EqualFold(fields[1], "DESC"):
			sel.OrderBy = append(sel.OrderBy, queryir.OrderBy{Column: fields[0], Desc: true})
		default:
			return queryir.Select{}, fmt.Errorf("invalid order_by %q", o)
		}
	}
	return sel, nil
}
