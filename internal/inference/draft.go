package inference

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/schema"
)

// tableDraft is a table under construction inside one inference session.
type tableDraft struct {
	name      string
	source    string
	isArray   bool
	pathName  string
	disc      *schema.Discriminator
	arrayPath [][]string
	parent    *tableDraft
	fkCols    []string
	pk        []string
	columns   []*columnDraft
	byName    map[string]*columnDraft
}

type columnDraft struct {
	name  string
	path  []string
	typ   schema.DataType
	kind  schema.ColumnKind
	level int
}

func (t *tableDraft) column(name string, path []string, kind schema.ColumnKind, level int) *columnDraft {
	if c, ok := t.byName[name]; ok {
		return c
	}
	c := &columnDraft{name: name, path: slices.Clone(path), kind: kind, level: level}
	t.byName[name] = c
	t.columns = append(t.columns, c)
	return c
}

// observe records a scalar value for a value column, widening its type.
func (t *tableDraft) observe(name string, path []string, v ir.IRValue) {
	c := t.column(name, path, schema.KindValue, 0)
	c.typ = schema.Merge(c.typ, schema.TypeOf(v))
}

// dimension tracks array nesting below one root table. It is passed by value
// so each recursion level sees only its own ancestors.
type dimension struct {
	level   int
	hops    [][]string
	indexes []string
}

func (d dimension) descend(hop []string, indexColumn string) dimension {
	return dimension{
		level:   d.level + 1,
		hops:    append(slices.Clone(d.hops), append([]string{}, hop...)),
		indexes: append(slices.Clone(d.indexes), indexColumn),
	}
}

// arena owns every draft of a session. Table names are unique across the
// whole session; child tables are memoized by parent and hop.
type arena struct {
	tables   []*tableDraft
	names    map[string]bool
	children map[childKey]*tableDraft
}

type childKey struct {
	parent   *tableDraft
	pathName string
	hop      string
}

func newArena() *arena {
	return &arena{names: map[string]bool{}, children: map[childKey]*tableDraft{}}
}

// reserve returns a free table name. The first candidate that is unused
// wins; if every candidate is taken the last one gets a numeric suffix.
func (a *arena) reserve(candidates ...string) string {
	for _, c := range candidates {
		if !a.names[c] {
			a.names[c] = true
			return c
		}
	}
	base := candidates[len(candidates)-1]
	for i := 2; ; i++ {
		name := base + "_" + strconv.Itoa(i)
		if !a.names[name] {
			a.names[name] = true
			return name
		}
	}
}

func (a *arena) newTable(name, source string) *tableDraft {
	t := &tableDraft{name: name, source: source, byName: map[string]*columnDraft{}}
	a.tables = append(a.tables, t)
	return t
}

func (a *arena) root(name, source string, disc *schema.Discriminator) *tableDraft {
	t := a.newTable(name, source)
	t.disc = disc
	t.column(schema.DocumentIDColumn, nil, schema.KindDocumentID, 0).typ = schema.TypeString
	t.pk = []string{schema.DocumentIDColumn}
	return t
}

// child returns the array table for pathName below parent, creating it on
// first use. root is the logical table the array belongs to.
func (a *arena) child(root, parent *tableDraft, pathName string, hop []string, dim dimension) (*tableDraft, dimension) {
	next := dim.descend(hop, pathName+"_idx")
	key := childKey{parent: parent, pathName: pathName, hop: strings.Join(hop, "\x00")}
	if t, ok := a.children[key]; ok {
		return t, next
	}

	t := a.newTable(a.reserve(root.name+"_"+pathName), root.source)
	t.isArray = true
	t.pathName = pathName
	t.disc = root.disc
	t.parent = parent
	t.arrayPath = next.hops

	t.column(schema.DocumentIDColumn, nil, schema.KindDocumentID, 0).typ = schema.TypeString
	for lvl, idx := range next.indexes {
		t.column(idx, nil, schema.KindIndex, lvl).typ = schema.TypeInteger
	}
	t.fkCols = append([]string{schema.DocumentIDColumn}, dim.indexes...)
	t.pk = append([]string{schema.DocumentIDColumn}, next.indexes...)

	a.children[key] = t
	return t, next
}

// scanner walks sampled documents of one logical table.
type scanner struct {
	arena *arena
	root  *tableDraft
}

func joinName(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}

func extend(path []string, key string) []string {
	return append(slices.Clone(path), key)
}

// scanObject flattens obj into t. prefix is the column-name prefix and path
// the key path relative to t's element.
func (s *scanner) scanObject(t *tableDraft, obj ir.IRObject, prefix string, path []string, dim dimension) {
	for _, k := range obj.SortedKeys() {
		name := joinName(prefix, k)
		switch v := obj[k].(type) {
		case ir.IRObject:
			s.scanObject(t, v, name, extend(path, k), dim)
		case ir.IRArray:
			s.scanArray(t, v, name, extend(path, k), dim)
		default:
			t.observe(name, extend(path, k), v)
		}
	}
}

// scanArray maps arr into the child table named after pathName. hop is the
// array's key path relative to parent's element.
func (s *scanner) scanArray(parent *tableDraft, arr ir.IRArray, pathName string, hop []string, dim dimension) {
	child, next := s.arena.child(s.root, parent, pathName, hop, dim)
	for _, elem := range arr {
		switch v := elem.(type) {
		case ir.IRObject:
			s.scanObject(child, v, pathName, nil, next)
		case ir.IRArray:
			nested := pathName + "_dim" + strconv.Itoa(next.level+1)
			s.scanArray(child, v, nested, nil, next)
		default:
			child.observe(pathName, nil, v)
		}
	}
}

// placeholder gives array tables that only ever saw empty arrays a value
// column named after the array path.
func (t *tableDraft) placeholder() {
	if !t.isArray {
		return
	}
	for _, c := range t.columns {
		if c.kind == schema.KindValue {
			return
		}
	}
	t.column(t.pathName, nil, schema.KindValue, 0)
}

// emit writes the arena into sink in creation order.
func (a *arena) emit(sink schema.MetadataFactory) error {
	annotator, _ := sink.(schema.TableAnnotator)
	handles := make(map[*tableDraft]schema.TableHandle, len(a.tables))

	for _, t := range a.tables {
		t.placeholder()
		h, err := sink.AddTable(t.name)
		if err != nil {
			return fmt.Errorf("add table %q: %w", t.name, err)
		}
		handles[t] = h

		for _, c := range t.columns {
			if err := sink.AddColumn(h, c.name, c.typ.Resolved()); err != nil {
				return fmt.Errorf("add column %s.%s: %w", t.name, c.name, err)
			}
		}
		if err := sink.AddPrimaryKey(h, t.pk); err != nil {
			return fmt.Errorf("add primary key %q: %w", t.name, err)
		}
		if t.parent != nil {
			if err := sink.AddForeignKey(h, t.fkCols, handles[t.parent]); err != nil {
				return fmt.Errorf("add foreign key %q: %w", t.name, err)
			}
		}

		if annotator == nil {
			continue
		}
		if err := annotator.AnnotateTable(h, schema.TableInfo{
			SourceName:    t.source,
			IsArray:       t.isArray,
			Discriminator: t.disc,
			ArrayPath:     t.arrayPath,
		}); err != nil {
			return fmt.Errorf("annotate table %q: %w", t.name, err)
		}
		for _, c := range t.columns {
			value := c.kind == schema.KindValue
			if err := annotator.AnnotateColumn(h, c.name, schema.ColumnInfo{
				SourcePath: c.path,
				Kind:       c.kind,
				IndexLevel: c.level,
				Updatable:  value,
				Nullable:   value,
			}); err != nil {
				return fmt.Errorf("annotate column %s.%s: %w", t.name, c.name, err)
			}
		}
	}
	return nil
}
