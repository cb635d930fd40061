package schema

import (
	"fmt"
	"slices"
)

// TableHandle identifies a table inside a MetadataFactory.
type TableHandle interface {
	TableName() string
}

// MetadataFactory is the sink schema inference writes into. It is owned by
// the caller; inference only calls these four operations.
type MetadataFactory interface {
	AddTable(name string) (TableHandle, error)
	AddColumn(t TableHandle, name string, typ DataType) error
	AddPrimaryKey(t TableHandle, cols []string) error
	AddForeignKey(t TableHandle, cols []string, parent TableHandle) error
}

// TableInfo carries source-mapping metadata of a table.
type TableInfo struct {
	SourceName    string
	IsArray       bool
	Discriminator *Discriminator
	ArrayPath     [][]string
}

// ColumnInfo carries source-mapping metadata of a column.
type ColumnInfo struct {
	SourcePath []string
	Kind       ColumnKind
	IndexLevel int
	Updatable  bool
	Nullable   bool
}

// TableAnnotator is implemented by sinks that also keep the source mapping
// needed to translate queries. Inference calls it when available.
type TableAnnotator interface {
	AnnotateTable(t TableHandle, info TableInfo) error
	AnnotateColumn(t TableHandle, column string, info ColumnInfo) error
}

// Builder is the in-process MetadataFactory. It collects tables and turns
// them into an immutable Schema.
type Builder struct {
	tables []*Table
	byName map[string]*Table
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byName: map[string]*Table{}}
}

type builderHandle struct {
	t *Table
}

func (h builderHandle) TableName() string { return h.t.Name }

func (b *Builder) table(h TableHandle) (*Table, error) {
	if h == nil {
		return nil, fmt.Errorf("nil table handle")
	}
	t, ok := b.byName[h.TableName()]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", h.TableName())
	}
	return t, nil
}

// AddTable implements MetadataFactory.
func (b *Builder) AddTable(name string) (TableHandle, error) {
	if name == "" {
		return nil, fmt.Errorf("empty table name")
	}
	if _, dup := b.byName[name]; dup {
		return nil, fmt.Errorf("duplicate table name %q", name)
	}
	t := &Table{Name: name, SourceName: name}
	b.byName[name] = t
	b.tables = append(b.tables, t)
	return builderHandle{t: t}, nil
}

// AddColumn implements MetadataFactory.
func (b *Builder) AddColumn(h TableHandle, name string, typ DataType) error {
	t, err := b.table(h)
	if err != nil {
		return err
	}
	if _, dup := t.Column(name); dup {
		return fmt.Errorf("table %q: duplicate column %q", t.Name, name)
	}
	t.Columns = append(t.Columns, Column{
		Name:       name,
		SourcePath: []string{name},
		Type:       typ,
		Updatable:  true,
		Nullable:   true,
	})
	return nil
}

// AddPrimaryKey implements MetadataFactory.
func (b *Builder) AddPrimaryKey(h TableHandle, cols []string) error {
	t, err := b.table(h)
	if err != nil {
		return err
	}
	if len(t.PrimaryKey) > 0 {
		return fmt.Errorf("table %q: primary key already set", t.Name)
	}
	for _, c := range cols {
		if _, ok := t.Column(c); !ok {
			return fmt.Errorf("table %q: primary key column %q not found", t.Name, c)
		}
	}
	t.PrimaryKey = slices.Clone(cols)
	return nil
}

// AddForeignKey implements MetadataFactory. The referenced columns are the
// parent's primary key, which must already be set.
func (b *Builder) AddForeignKey(h TableHandle, cols []string, parent TableHandle) error {
	t, err := b.table(h)
	if err != nil {
		return err
	}
	p, err := b.table(parent)
	if err != nil {
		return err
	}
	if t.ForeignKey != nil {
		return fmt.Errorf("table %q: foreign key already set", t.Name)
	}
	if len(p.PrimaryKey) != len(cols) {
		return fmt.Errorf("table %q: foreign key has %d columns, parent %q key has %d",
			t.Name, len(cols), p.Name, len(p.PrimaryKey))
	}
	t.ForeignKey = &ForeignKey{
		Columns:       slices.Clone(cols),
		Parent:        p.Name,
		ParentColumns: slices.Clone(p.PrimaryKey),
	}
	return nil
}

// AnnotateTable implements TableAnnotator.
func (b *Builder) AnnotateTable(h TableHandle, info TableInfo) error {
	t, err := b.table(h)
	if err != nil {
		return err
	}
	t.SourceName = info.SourceName
	t.IsArray = info.IsArray
	t.Discriminator = info.Discriminator
	t.ArrayPath = info.ArrayPath
	return nil
}

// AnnotateColumn implements TableAnnotator.
func (b *Builder) AnnotateColumn(h TableHandle, column string, info ColumnInfo) error {
	t, err := b.table(h)
	if err != nil {
		return err
	}
	for i := range t.Columns {
		if t.Columns[i].Name == column {
			t.Columns[i].SourcePath = slices.Clone(info.SourcePath)
			t.Columns[i].Kind = info.Kind
			t.Columns[i].IndexLevel = info.IndexLevel
			t.Columns[i].Updatable = info.Updatable
			t.Columns[i].Nullable = info.Nullable
			return nil
		}
	}
	return fmt.Errorf("table %q: unknown column %q", t.Name, column)
}

// Build validates the collected tables and returns the snapshot.
// The Builder must not be used afterwards.
func (b *Builder) Build() (*Schema, error) {
	return NewSchema(b.tables)
}
