package schema

import (
	"strconv"

	"github.com/roach88/docbridge/internal/ir"
)

// Row is one relational row projected out of a document. A column that is
// absent from the map had no value in the document; an explicit JSON null is
// kept as ir.IRNull.
type Row map[string]ir.IRValue

// Matches reports whether doc belongs to the table's logical partition.
// Tables without a discriminator accept every document of their keyspace.
func (t *Table) Matches(doc ir.Document) bool {
	if t.Discriminator == nil {
		return true
	}
	v, ok := doc.Body.Lookup(t.Discriminator.Attribute)
	if !ok {
		return false
	}
	text, ok := ScalarText(v)
	return ok && text == t.Discriminator.Value
}

// Rows projects doc onto the table. Root tables yield one row per document;
// array tables yield one row per element at the table's array depth, in
// document order.
func (t *Table) Rows(doc ir.Document) []Row {
	if !t.Matches(doc) {
		return nil
	}
	var rows []Row
	t.unnest(doc.ID, doc.Body, 0, nil, &rows)
	return rows
}

func (t *Table) unnest(id string, elem ir.IRValue, level int, idx []int, out *[]Row) {
	if level == len(t.ArrayPath) {
		*out = append(*out, t.row(id, elem, idx))
		return
	}
	v, ok := lookupValue(elem, t.ArrayPath[level])
	if !ok {
		return
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return
	}
	for i, child := range arr {
		next := append(idx[:len(idx):len(idx)], i)
		t.unnest(id, child, level+1, next, out)
	}
}

func (t *Table) row(id string, elem ir.IRValue, idx []int) Row {
	r := make(Row, len(t.Columns))
	for _, c := range t.Columns {
		switch c.Kind {
		case KindDocumentID:
			r[c.Name] = ir.IRString(id)
		case KindIndex:
			if c.IndexLevel < len(idx) {
				r[c.Name] = ir.IRInt(idx[c.IndexLevel])
			}
		default:
			if v, ok := lookupValue(elem, c.SourcePath); ok {
				r[c.Name] = v
			}
		}
	}
	return r
}

// lookupValue is IRObject.Lookup extended to non-object roots: an empty path
// returns v itself.
func lookupValue(v ir.IRValue, path []string) (ir.IRValue, bool) {
	if len(path) == 0 {
		return v, v != nil
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, false
	}
	return obj.Lookup(path...)
}

// ScalarText renders a scalar as the text used for discriminator values.
// Containers and null have no text form.
func ScalarText(v ir.IRValue) (string, bool) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), true
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10), true
	case ir.IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), true
	case ir.IRBigInt:
		return val.V.String(), true
	case ir.IRDecimal:
		return val.V.String(), true
	case ir.IRBool:
		return strconv.FormatBool(bool(val)), true
	default:
		return "", false
	}
}
