package schema

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docbridge/internal/ir"
)

// carTables builds the car / car_tags pair by hand.
func carTables() []*Table {
	car := &Table{
		Name:       "car",
		SourceName: "car",
		Columns: []Column{
			{Name: DocumentIDColumn, Type: TypeString, Kind: KindDocumentID},
			{Name: "name", SourcePath: []string{"name"}, Type: TypeString, Updatable: true, Nullable: true},
			{Name: "engine_hp", SourcePath: []string{"engine", "hp"}, Type: TypeInteger, Updatable: true, Nullable: true},
		},
		PrimaryKey: []string{DocumentIDColumn},
	}
	tags := &Table{
		Name:       "car_tags",
		SourceName: "car",
		IsArray:    true,
		Columns: []Column{
			{Name: DocumentIDColumn, Type: TypeString, Kind: KindDocumentID},
			{Name: "tags_idx", Type: TypeInteger, Kind: KindIndex, IndexLevel: 0},
			{Name: "tags", Type: TypeString, Updatable: true, Nullable: true},
		},
		PrimaryKey: []string{DocumentIDColumn, "tags_idx"},
		ForeignKey: &ForeignKey{
			Columns:       []string{DocumentIDColumn},
			Parent:        "car",
			ParentColumns: []string{DocumentIDColumn},
		},
		ArrayPath: [][]string{{"tags"}},
	}
	return []*Table{car, tags}
}

func TestNewSchema_Valid(t *testing.T) {
	s, err := NewSchema(carTables())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	tags, ok := s.Table("car_tags")
	require.True(t, ok)
	assert.Equal(t, 1, tags.Depth())
	assert.Equal(t, []string{DocumentIDColumn, "tags_idx", "tags"}, tags.ColumnNames())

	_, ok = s.Table("boat")
	assert.False(t, ok)
}

func TestNewSchema_Invariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]*Table) []*Table
		errMsg string
	}{
		{
			name: "duplicate name",
			mutate: func(ts []*Table) []*Table {
				ts[1].Name = "car"
				return ts
			},
			errMsg: "duplicate table name",
		},
		{
			name: "missing primary key",
			mutate: func(ts []*Table) []*Table {
				ts[0].PrimaryKey = nil
				return ts
			},
			errMsg: "missing primary key",
		},
		{
			name: "primary key column absent",
			mutate: func(ts []*Table) []*Table {
				ts[0].PrimaryKey = []string{"vin"}
				return ts
			},
			errMsg: `primary key column "vin" not found`,
		},
		{
			name: "unknown type",
			mutate: func(ts []*Table) []*Table {
				ts[0].Columns[1].Type = TypeUnknown
				return ts
			},
			errMsg: "no resolved type",
		},
		{
			name: "array table without foreign key",
			mutate: func(ts []*Table) []*Table {
				ts[1].ForeignKey = nil
				return ts
			},
			errMsg: "without foreign key",
		},
		{
			name: "foreign key to missing parent",
			mutate: func(ts []*Table) []*Table {
				return ts[1:]
			},
			errMsg: `parent "car" not found`,
		},
		{
			name: "index columns do not match depth",
			mutate: func(ts []*Table) []*Table {
				ts[1].ArrayPath = [][]string{{"tags"}, {}}
				return ts
			},
			errMsg: "depth 2 has 1 index columns",
		},
		{
			name: "root table with foreign key",
			mutate: func(ts []*Table) []*Table {
				ts[0].ForeignKey = &ForeignKey{Parent: "car_tags"}
				return ts
			},
			errMsg: "root table must not have a foreign key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.mutate(carTables()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSchemaFingerprint_Stable(t *testing.T) {
	a, err := NewSchema(carTables())
	require.NoError(t, err)
	b, err := NewSchema(carTables())
	require.NoError(t, err)

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 32)

	changed := carTables()
	changed[0].Columns[2].Type = TypeObject
	c, err := NewSchema(changed)
	require.NoError(t, err)
	fc, err := c.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}

func TestIndexColumns_OrderedByLevel(t *testing.T) {
	tbl := &Table{Columns: []Column{
		{Name: "b_idx", Kind: KindIndex, IndexLevel: 1},
		{Name: "v"},
		{Name: "a_idx", Kind: KindIndex, IndexLevel: 0},
	}}
	idx := tbl.IndexColumns()
	require.Len(t, idx, 2)
	assert.Equal(t, "a_idx", idx[0].Name)
	assert.Equal(t, "b_idx", idx[1].Name)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	car, err := b.AddTable("car")
	require.NoError(t, err)
	require.NoError(t, b.AddColumn(car, DocumentIDColumn, TypeString))
	require.NoError(t, b.AddColumn(car, "name", TypeString))
	require.NoError(t, b.AddPrimaryKey(car, []string{DocumentIDColumn}))
	require.NoError(t, b.AnnotateColumn(car, DocumentIDColumn, ColumnInfo{Kind: KindDocumentID}))

	tags, err := b.AddTable("car_tags")
	require.NoError(t, err)
	require.NoError(t, b.AddColumn(tags, DocumentIDColumn, TypeString))
	require.NoError(t, b.AddColumn(tags, "tags_idx", TypeInteger))
	require.NoError(t, b.AddColumn(tags, "tags", TypeString))
	require.NoError(t, b.AddPrimaryKey(tags, []string{DocumentIDColumn, "tags_idx"}))
	require.NoError(t, b.AddForeignKey(tags, []string{DocumentIDColumn}, car))
	require.NoError(t, b.AnnotateTable(tags, TableInfo{SourceName: "car", IsArray: true, ArrayPath: [][]string{{"tags"}}}))
	require.NoError(t, b.AnnotateColumn(tags, "tags_idx", ColumnInfo{Kind: KindIndex}))
	require.NoError(t, b.AnnotateColumn(tags, "tags", ColumnInfo{Updatable: true, Nullable: true}))

	s, err := b.Build()
	require.NoError(t, err)

	got, ok := s.Table("car_tags")
	require.True(t, ok)
	assert.Equal(t, "car", got.ForeignKey.Parent)
	assert.Equal(t, []string{DocumentIDColumn}, got.ForeignKey.ParentColumns)
	col, ok := got.Column("tags")
	require.True(t, ok)
	assert.Empty(t, col.SourcePath)
}

func TestBuilder_Errors(t *testing.T) {
	b := NewBuilder()
	car, err := b.AddTable("car")
	require.NoError(t, err)

	_, err = b.AddTable("car")
	assert.Error(t, err)
	_, err = b.AddTable("")
	assert.Error(t, err)

	require.NoError(t, b.AddColumn(car, "a", TypeString))
	assert.Error(t, b.AddColumn(car, "a", TypeString))
	assert.Error(t, b.AddPrimaryKey(car, []string{"missing"}))
	require.NoError(t, b.AddPrimaryKey(car, []string{"a"}))
	assert.Error(t, b.AddPrimaryKey(car, []string{"a"}), "one primary key per table")

	child, err := b.AddTable("child")
	require.NoError(t, err)
	assert.Error(t, b.AddForeignKey(child, []string{"x", "y"}, car), "arity mismatch")
	assert.Error(t, b.AnnotateColumn(child, "nope", ColumnInfo{}))
}

func TestHolder_RefreshSwapsAtomically(t *testing.T) {
	h := NewHolder()
	assert.Equal(t, 0, h.Load().Len())

	old := h.Load()
	s, err := h.Refresh(context.Background(), func(context.Context) (*Schema, error) {
		return NewSchema(carTables())
	})
	require.NoError(t, err)
	assert.Same(t, s, h.Load())
	assert.Equal(t, 0, old.Len(), "readers keep their snapshot")

	_, err = h.Refresh(context.Background(), func(context.Context) (*Schema, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Same(t, s, h.Load(), "failed refresh keeps previous snapshot")
}

func TestHolder_RefreshSerialized(t *testing.T) {
	h := NewHolder()
	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Refresh(context.Background(), func(context.Context) (*Schema, error) {
				mu.Lock()
				running++
				maxSeen = max(maxSeen, running)
				mu.Unlock()

				s, err := NewSchema(carTables())

				mu.Lock()
				running--
				mu.Unlock()
				return s, err
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 2, h.Load().Len())
}

func TestHolder_RefreshCancelled(t *testing.T) {
	h := NewHolder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Refresh(ctx, func(context.Context) (*Schema, error) {
		t.Fatal("build must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTableRows(t *testing.T) {
	s, err := NewSchema(carTables())
	require.NoError(t, err)
	car, _ := s.Table("car")
	tags, _ := s.Table("car_tags")

	doc := ir.Document{ID: "c1", Body: ir.IRObject{
		"name":   ir.IRString("roadster"),
		"engine": ir.IRObject{"hp": ir.IRInt(300)},
		"tags":   ir.IRArray{ir.IRString("fast"), ir.IRString("red")},
	}}

	rows := car.Rows(doc)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{
		DocumentIDColumn: ir.IRString("c1"),
		"name":           ir.IRString("roadster"),
		"engine_hp":      ir.IRInt(300),
	}, rows[0])

	rows = tags.Rows(doc)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{DocumentIDColumn: ir.IRString("c1"), "tags_idx": ir.IRInt(1), "tags": ir.IRString("red")}, rows[1])

	missing := ir.Document{ID: "c2", Body: ir.IRObject{"name": ir.IRNull{}}}
	rows = car.Rows(missing)
	require.Len(t, rows, 1)
	assert.Equal(t, ir.IRNull{}, rows[0]["name"], "explicit null is kept")
	_, present := rows[0]["engine_hp"]
	assert.False(t, present, "absent field stays absent")
	assert.Empty(t, tags.Rows(missing))
}

func TestTableRows_NestedArrays(t *testing.T) {
	grid := &Table{
		Name:    "m_grid_dim2",
		IsArray: true,
		Columns: []Column{
			{Name: DocumentIDColumn, Type: TypeString, Kind: KindDocumentID},
			{Name: "grid_idx", Type: TypeInteger, Kind: KindIndex, IndexLevel: 0},
			{Name: "grid_dim2_idx", Type: TypeInteger, Kind: KindIndex, IndexLevel: 1},
			{Name: "grid_dim2", Type: TypeInteger},
		},
		ArrayPath: [][]string{{"grid"}, {}},
	}
	doc := ir.Document{ID: "m", Body: ir.IRObject{
		"grid": ir.IRArray{
			ir.IRArray{ir.IRInt(1), ir.IRInt(2)},
			ir.IRArray{ir.IRInt(3)},
		},
	}}
	rows := grid.Rows(doc)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{
		DocumentIDColumn: ir.IRString("m"),
		"grid_idx":       ir.IRInt(1),
		"grid_dim2_idx":  ir.IRInt(0),
		"grid_dim2":      ir.IRInt(3),
	}, rows[2])
}

func TestTableMatches(t *testing.T) {
	tbl := &Table{Discriminator: &Discriminator{Attribute: "kind", Value: "car"}}
	assert.True(t, tbl.Matches(ir.Document{Body: ir.IRObject{"kind": ir.IRString("car")}}))
	assert.False(t, tbl.Matches(ir.Document{Body: ir.IRObject{"kind": ir.IRString("boat")}}))
	assert.False(t, tbl.Matches(ir.Document{Body: ir.IRObject{}}))

	numeric := &Table{Discriminator: &Discriminator{Attribute: "v", Value: "2"}}
	assert.True(t, numeric.Matches(ir.Document{Body: ir.IRObject{"v": ir.IRInt(2)}}))

	plain := &Table{}
	assert.True(t, plain.Matches(ir.Document{}))
}
