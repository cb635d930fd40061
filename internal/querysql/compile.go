package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/docbridge/internal/exec"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

// Statement is a compiled document-store query.
type Statement struct {
	// SQL is the SQLite query over the keyspace table. Every value is
	// bound through Args.
	SQL  string
	Args []any

	// Plan maps the selected fields onto the requested columns and carries
	// whatever part of the request SQLite does not evaluate.
	Plan exec.Plan

	// Pushed reports whether the WHERE clause carries the condition.
	Pushed bool

	// Report lists the condition nodes left out of the WHERE clause.
	Report *translate.Report
}

// Compile compiles sel against table into SQLite JSON1 SQL.
//
// Every statement ends with an ORDER BY on the document id and the array
// indexes, after any requested order, so results are deterministic.
//
// Array tables are unnested with one json_each per array level. Tables
// with a discriminator only see documents whose attribute text matches.
func Compile(sel queryir.Select, table *schema.Table) (Statement, error) {
	l, err := newLayout(table)
	if err != nil {
		return Statement{}, err
	}

	report := &translate.Report{}
	frag, pushed, err := translate.Translate[fragment](sel.Where, translate.NewContext(l, report), Backend{}, table)
	if err != nil {
		return Statement{}, fmt.Errorf("translate where: %w", err)
	}
	push, residual := translate.Split(sel.Where, pushed, report)
	limitPushed := residual == nil

	plan, err := exec.NewPlan(sel, table, residual, limitPushed)
	if err != nil {
		return Statement{}, err
	}

	var b strings.Builder
	var args []any

	labels := plan.FieldLabels()
	b.WriteString("SELECT ")
	for i, o := range plan.Outputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(l.project[o.Name])
		b.WriteString(" AS ")
		b.WriteString(QuoteIdent(labels[i]))
	}

	b.WriteString(" FROM ")
	b.WriteString(l.from)

	where := append([]string{}, l.joins...)
	if table.Discriminator != nil {
		text, err := DiscriminatorText(docAlias+".doc", table.Discriminator.Attribute)
		if err != nil {
			return Statement{}, err
		}
		where = append(where, text+" = ?")
		args = append(args, table.Discriminator.Value)
	}
	if push {
		where = append(where, frag.sql)
		args = append(args, frag.args...)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	b.WriteString(" ORDER BY ")
	for _, o := range sel.OrderBy {
		expr, ok := l.filter[o.Column]
		if !ok {
			return Statement{}, fmt.Errorf("%w %q in table %q", translate.ErrUnknownColumn, o.Column, table.Name)
		}
		b.WriteString(expr)
		if o.Desc {
			b.WriteString(" DESC")
		}
		b.WriteString(", ")
	}
	b.WriteString(l.tiebreak)

	if limitPushed && (sel.Limit > 0 || sel.Offset > 0) {
		limit := -1
		if sel.Limit > 0 {
			limit = sel.Limit
		}
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
		if sel.Offset > 0 {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.Itoa(sel.Offset))
		}
	}

	return Statement{
		SQL:    b.String(),
		Args:   args,
		Plan:   plan,
		Pushed: push,
		Report: report,
	}, nil
}

// layout holds the SQL expressions for one table's columns.
type layout struct {
	from     string
	joins    []string
	tiebreak string

	// filter holds the SQL value of each column, used in WHERE and ORDER BY.
	filter map[string]string

	// project holds the JSON text of each column, used in the select list.
	project map[string]string
}

func newLayout(t *schema.Table) (*layout, error) {
	l := &layout{
		from:    QuoteIdent(CollectionTable(t.SourceName)) + " AS " + docAlias,
		filter:  make(map[string]string, len(t.Columns)),
		project: make(map[string]string, len(t.Columns)),
	}
	doc := docAlias + ".doc"
	order := []string{docAlias + ".id COLLATE BINARY"}

	// One json_each per array level. Each level iterates the array found
	// at its hop below the previous level's element.
	var elem string
	for i, hop := range t.ArrayPath {
		alias := "a" + strconv.Itoa(i+1)
		var target string
		switch {
		case i == 0:
			p, err := JSONPath(hop)
			if err != nil {
				return nil, err
			}
			target = quoteString(p)
		case len(hop) == 0:
			target = elem
		default:
			p, err := relPath(hop)
			if err != nil {
				return nil, err
			}
			target = elem + " || " + quoteString(p)
		}
		l.from += fmt.Sprintf(", json_each(%s, %s) AS %s", doc, target, alias)
		l.joins = append(l.joins, fmt.Sprintf("json_type(%s, %s) = 'array'", doc, target))
		order = append(order, alias+".key")
		elem = alias + ".fullkey"
	}
	l.tiebreak = strings.Join(order, ", ")

	for _, c := range t.Columns {
		switch c.Kind {
		case schema.KindDocumentID:
			l.filter[c.Name] = docAlias + ".id"
			l.project[c.Name] = "json_quote(" + docAlias + ".id)"
		case schema.KindIndex:
			idx := "a" + strconv.Itoa(c.IndexLevel+1) + ".key"
			l.filter[c.Name] = idx
			l.project[c.Name] = idx
		default:
			var path string
			if elem == "" {
				p, err := JSONPath(c.SourcePath)
				if err != nil {
					return nil, err
				}
				path = quoteString(p)
			} else if len(c.SourcePath) == 0 {
				path = elem
			} else {
				p, err := relPath(c.SourcePath)
				if err != nil {
					return nil, err
				}
				path = "(" + elem + " || " + quoteString(p) + ")"
			}
			l.filter[c.Name] = doc + " ->> " + path
			l.project[c.Name] = doc + " -> " + path
		}
	}
	return l, nil
}
