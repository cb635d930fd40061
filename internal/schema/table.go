package schema

import (
	"fmt"
	"slices"

	"github.com/roach88/docbridge/internal/ir"
)

// DocumentIDColumn is the synthetic primary-key column of every root table
// and the leading foreign-key column of every array table.
const DocumentIDColumn = "documentID"

// ColumnKind tells where a column's value comes from.
type ColumnKind int

const (
	// KindValue columns read a path inside the row's element.
	KindValue ColumnKind = iota
	// KindDocumentID columns carry the document identifier.
	KindDocumentID
	// KindIndex columns carry the position inside one array level.
	KindIndex
)

// String implements fmt.Stringer.
func (k ColumnKind) String() string {
	switch k {
	case KindDocumentID:
		return "document_id"
	case KindIndex:
		return "index"
	default:
		return "value"
	}
}

// Column is one relational column of an inferred table.
type Column struct {
	Name string
	// SourcePath is the key path inside the row's element: the document
	// body for root tables, the array element for array tables. An empty
	// path means the element itself.
	SourcePath []string
	Type       DataType
	Kind       ColumnKind
	// IndexLevel is the zero-based array level of a KindIndex column.
	IndexLevel int
	Updatable  bool
	Nullable   bool
}

// ForeignKey links an array table to its nearest ancestor table.
type ForeignKey struct {
	Columns       []string
	Parent        string
	ParentColumns []string
}

// Discriminator restricts a logical table to the documents of a keyspace
// whose Attribute equals Value.
type Discriminator struct {
	Attribute string
	Value     string
}

// Table is one relational table inferred from a keyspace.
//
// Tables belong to an immutable Schema snapshot and must not be modified
// after the snapshot is built.
type Table struct {
	Name string
	// SourceName is the keyspace the table's rows come from.
	SourceName    string
	IsArray       bool
	Columns       []Column
	PrimaryKey    []string
	ForeignKey    *ForeignKey
	Discriminator *Discriminator
	// ArrayPath lists the array hops from the document root down to this
	// table's elements. Each hop is a key path relative to the previous
	// hop's element. Root tables have no hops.
	ArrayPath [][]string
}

// Depth is the number of array levels between the document root and the
// table's rows.
func (t *Table) Depth() int {
	return len(t.ArrayPath)
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IndexColumns returns the table's index columns ordered by level.
func (t *Table) IndexColumns() []Column {
	var idx []Column
	for _, c := range t.Columns {
		if c.Kind == KindIndex {
			idx = append(idx, c)
		}
	}
	slices.SortStableFunc(idx, func(a, b Column) int { return a.IndexLevel - b.IndexLevel })
	return idx
}

// describe renders the table as an IRObject for fingerprints and golden
// snapshots. Every field that affects query translation is included.
func (t *Table) describe() ir.IRObject {
	cols := make(ir.IRArray, len(t.Columns))
	for i, c := range t.Columns {
		path := make(ir.IRArray, len(c.SourcePath))
		for j, p := range c.SourcePath {
			path[j] = ir.IRString(p)
		}
		cols[i] = ir.IRObject{
			"name":        ir.IRString(c.Name),
			"type":        ir.IRString(c.Type.String()),
			"kind":        ir.IRString(c.Kind.String()),
			"index_level": ir.IRInt(c.IndexLevel),
			"source_path": path,
			"updatable":   ir.IRBool(c.Updatable),
			"nullable":    ir.IRBool(c.Nullable),
		}
	}

	hops := make(ir.IRArray, len(t.ArrayPath))
	for i, hop := range t.ArrayPath {
		h := make(ir.IRArray, len(hop))
		for j, p := range hop {
			h[j] = ir.IRString(p)
		}
		hops[i] = h
	}

	obj := ir.IRObject{
		"name":        ir.IRString(t.Name),
		"source":      ir.IRString(t.SourceName),
		"is_array":    ir.IRBool(t.IsArray),
		"columns":     cols,
		"primary_key": stringArray(t.PrimaryKey),
		"array_path":  hops,
	}
	if t.ForeignKey != nil {
		obj["foreign_key"] = ir.IRObject{
			"columns":        stringArray(t.ForeignKey.Columns),
			"parent":         ir.IRString(t.ForeignKey.Parent),
			"parent_columns": stringArray(t.ForeignKey.ParentColumns),
		}
	}
	if t.Discriminator != nil {
		obj["discriminator"] = ir.IRObject{
			"attribute": ir.IRString(t.Discriminator.Attribute),
			"value":     ir.IRString(t.Discriminator.Value),
		}
	}
	return obj
}

func stringArray(ss []string) ir.IRArray {
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	return arr
}

// Schema is an immutable snapshot of inferred tables.
type Schema struct {
	tables []*Table
	byName map[string]*Table
}

// Empty returns a schema with no tables.
func Empty() *Schema {
	return &Schema{byName: map[string]*Table{}}
}

// NewSchema validates the tables and wraps them in a snapshot.
//
// Checked invariants:
//   - table names are unique
//   - every table has a non-empty primary key made of its own columns
//   - every array table has a foreign key to an existing parent and exactly
//     Depth() index columns
//   - no column is left with TypeUnknown
func NewSchema(tables []*Table) (*Schema, error) {
	s := &Schema{
		tables: make([]*Table, 0, len(tables)),
		byName: make(map[string]*Table, len(tables)),
	}
	for _, t := range tables {
		if _, dup := s.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table name %q", t.Name)
		}
		s.byName[t.Name] = t
		s.tables = append(s.tables, t)
	}

	for _, t := range s.tables {
		if err := s.validateTable(t); err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
	}
	return s, nil
}

func (s *Schema) validateTable(t *Table) error {
	if len(t.PrimaryKey) == 0 {
		return fmt.Errorf("missing primary key")
	}
	for _, pk := range t.PrimaryKey {
		if _, ok := t.Column(pk); !ok {
			return fmt.Errorf("primary key column %q not found", pk)
		}
	}
	for _, c := range t.Columns {
		if c.Type == TypeUnknown {
			return fmt.Errorf("column %q has no resolved type", c.Name)
		}
	}

	if !t.IsArray {
		if t.ForeignKey != nil {
			return fmt.Errorf("root table must not have a foreign key")
		}
		return nil
	}

	if t.ForeignKey == nil {
		return fmt.Errorf("array table without foreign key")
	}
	if _, ok := s.byName[t.ForeignKey.Parent]; !ok {
		return fmt.Errorf("foreign key parent %q not found", t.ForeignKey.Parent)
	}
	if got := len(t.IndexColumns()); got != t.Depth() {
		return fmt.Errorf("array table at depth %d has %d index columns", t.Depth(), got)
	}
	return nil
}

// Tables returns the tables in the order they were created.
func (s *Schema) Tables() []*Table {
	return slices.Clone(s.tables)
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	return len(s.tables)
}

// Describe renders the whole schema as an IRObject keyed by table name.
func (s *Schema) Describe() ir.IRObject {
	out := make(ir.IRObject, len(s.tables))
	for _, t := range s.tables {
		out[t.Name] = t.describe()
	}
	return out
}

// Fingerprint identifies the schema's content. Two inferences that produce
// the same tables, columns, types and keys share a fingerprint.
func (s *Schema) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainSchema, s.Describe())
}
