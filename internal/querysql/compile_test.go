package querysql

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

func carTable() *schema.Table {
	return &schema.Table{
		Name:       "car",
		SourceName: "car",
		Columns: []schema.Column{
			{Name: schema.DocumentIDColumn, Type: schema.TypeString, Kind: schema.KindDocumentID},
			{Name: "name", SourcePath: []string{"name"}, Type: schema.TypeString},
			{Name: "engine_hp", SourcePath: []string{"engine", "hp"}, Type: schema.TypeInteger},
			{Name: "specs", SourcePath: []string{"specs"}, Type: schema.TypeObject},
		},
		PrimaryKey: []string{schema.DocumentIDColumn},
	}
}

func tagsTable() *schema.Table {
	return &schema.Table{
		Name:       "car_tags",
		SourceName: "car",
		IsArray:    true,
		Columns: []schema.Column{
			{Name: schema.DocumentIDColumn, Type: schema.TypeString, Kind: schema.KindDocumentID},
			{Name: "tags_idx", Type: schema.TypeInteger, Kind: schema.KindIndex},
			{Name: "tags", Type: schema.TypeString},
		},
		PrimaryKey: []string{schema.DocumentIDColumn, "tags_idx"},
		ArrayPath:  [][]string{{"tags"}},
	}
}

func TestCompile_RootTable(t *testing.T) {
	sel := queryir.Select{
		From:    "car",
		Columns: []queryir.Projection{{Column: "name"}, {Column: "engine_hp", Alias: "hp"}},
		Where:   queryir.Compare("engine_hp", queryir.OpGt, 200),
		OrderBy: []queryir.OrderBy{{Column: "name", Desc: true}},
		Limit:   10,
		Offset:  5,
	}
	stmt, err := Compile(sel, carTable())
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT d.doc -> '$."name"' AS "name", d.doc -> '$."engine"."hp"' AS "hp" `+
			`FROM "docs_car" AS d `+
			`WHERE d.doc ->> '$."engine"."hp"' > ? `+
			`ORDER BY d.doc ->> '$."name"' DESC, d.id COLLATE BINARY LIMIT 10 OFFSET 5`,
		stmt.SQL)
	assert.Equal(t, []any{int64(200)}, stmt.Args)
	assert.True(t, stmt.Pushed)
	assert.True(t, stmt.Report.Exact())
	assert.Nil(t, stmt.Plan.Residual)
	assert.Zero(t, stmt.Plan.Limit)
	assert.Equal(t, []string{"name", "hp"}, stmt.Plan.Labels())
}

func TestCompile_ValuesAreBound(t *testing.T) {
	sel := queryir.Select{
		From: "car",
		Where: queryir.And(
			queryir.Compare("name", queryir.OpEq, "it's (a) *test*"),
			queryir.Like{Left: queryir.Col("name"), Pattern: `50\%`, Escape: '\\'},
		),
	}
	stmt, err := Compile(sel, carTable())
	require.NoError(t, err)

	assert.NotContains(t, stmt.SQL, "test")
	assert.Contains(t, stmt.SQL, `(d.doc ->> '$."name"' = unescape(?) AND d.doc ->> '$."name"' LIKE unescape(?) ESCAPE unescape(?))`)
	assert.Equal(t, []any{`it's \28a\29 \2atest\2a`, `50\5c%`, `\5c`}, stmt.Args)
}

func TestCompile_Negation(t *testing.T) {
	sel := queryir.Select{
		From: "car",
		Where: queryir.Or(
			queryir.Not{Inner: queryir.In{Left: queryir.Col("engine_hp"), Values: []queryir.Expr{queryir.Lit(1), queryir.Lit(2)}}},
			queryir.IsNull{Expr: queryir.Col("name"), Negated: true},
		),
	}
	stmt, err := Compile(sel, carTable())
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL,
		`WHERE (NOT (d.doc ->> '$."engine"."hp"' IN (?, ?)) OR NOT (d.doc ->> '$."name"' IS NULL))`)
	assert.Equal(t, []any{int64(1), int64(2)}, stmt.Args)
}

func TestCompile_ArrayTable(t *testing.T) {
	sel := queryir.Select{From: "car_tags", Where: queryir.Compare("tags", queryir.OpEq, "red")}
	stmt, err := Compile(sel, tagsTable())
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT json_quote(d.id) AS "documentID", a1.key AS "tags_idx", d.doc -> a1.fullkey AS "tags" `+
			`FROM "docs_car" AS d, json_each(d.doc, '$."tags"') AS a1 `+
			`WHERE json_type(d.doc, '$."tags"') = 'array' AND d.doc ->> a1.fullkey = unescape(?) `+
			`ORDER BY d.id COLLATE BINARY, a1.key`,
		stmt.SQL)
	assert.Equal(t, []any{"red"}, stmt.Args)
}

func TestCompile_NestedArrays(t *testing.T) {
	table := &schema.Table{
		Name:       "car_owners_cars",
		SourceName: "car",
		IsArray:    true,
		Columns: []schema.Column{
			{Name: schema.DocumentIDColumn, Type: schema.TypeString, Kind: schema.KindDocumentID},
			{Name: "owners_idx", Type: schema.TypeInteger, Kind: schema.KindIndex, IndexLevel: 0},
			{Name: "owners_cars_idx", Type: schema.TypeInteger, Kind: schema.KindIndex, IndexLevel: 1},
			{Name: "owners_cars_model", SourcePath: []string{"model"}, Type: schema.TypeString},
		},
		ArrayPath: [][]string{{"owners"}, {"cars"}},
	}
	stmt, err := Compile(queryir.Select{From: table.Name}, table)
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, `json_each(d.doc, '$."owners"') AS a1, json_each(d.doc, a1.fullkey || '."cars"') AS a2`)
	assert.Contains(t, stmt.SQL, `a2.key AS "owners_cars_idx"`)
	assert.Contains(t, stmt.SQL, `d.doc -> (a2.fullkey || '."model"') AS "owners_cars_model"`)
	assert.Contains(t, stmt.SQL, `json_type(d.doc, a1.fullkey || '."cars"') = 'array'`)
	assert.Contains(t, stmt.SQL, `ORDER BY d.id COLLATE BINARY, a1.key, a2.key`)
}

func TestCompile_Discriminator(t *testing.T) {
	table := carTable()
	table.Name = "sedan"
	table.Discriminator = &schema.Discriminator{Attribute: "type", Value: "sedan"}

	stmt, err := Compile(queryir.Select{From: "sedan", Where: queryir.Compare("name", queryir.OpEq, "x")}, table)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, `CASE json_type(d.doc, '$."type"') WHEN 'true' THEN 'true'`)
	assert.Equal(t, []any{"sedan", "x"}, stmt.Args)
}

func TestCompile_PartialPushdown(t *testing.T) {
	unpushable := queryir.Like{Left: queryir.Col("engine_hp"), Pattern: "1%"}

	t.Run("and keeps pushable side", func(t *testing.T) {
		sel := queryir.Select{
			From:  "car",
			Where: queryir.And(queryir.Compare("name", queryir.OpEq, "x"), unpushable),
			Limit: 3,
		}
		stmt, err := Compile(sel, carTable())
		require.NoError(t, err)
		assert.True(t, stmt.Pushed)
		assert.Contains(t, stmt.SQL, "WHERE d.doc ->> '$.\"name\"' = unescape(?)")
		assert.NotContains(t, stmt.SQL, "LIMIT")
		assert.Equal(t, sel.Where, stmt.Plan.Residual)
		assert.Equal(t, 3, stmt.Plan.Limit)
	})

	t.Run("or with unpushable side is not pushed", func(t *testing.T) {
		sel := queryir.Select{
			From:    "car",
			Columns: []queryir.Projection{{Column: "name"}},
			Where:   queryir.Or(queryir.Compare("name", queryir.OpEq, "x"), unpushable),
		}
		stmt, err := Compile(sel, carTable())
		require.NoError(t, err)
		assert.False(t, stmt.Pushed)
		assert.NotContains(t, stmt.SQL, "WHERE")
		assert.Empty(t, stmt.Args)
		require.Len(t, stmt.Plan.Outputs, 2)
		assert.True(t, stmt.Plan.Outputs[1].Hidden)
	})

	t.Run("object column comparison is declined", func(t *testing.T) {
		sel := queryir.Select{From: "car", Where: queryir.Compare("specs", queryir.OpEq, "x")}
		stmt, err := Compile(sel, carTable())
		require.NoError(t, err)
		assert.False(t, stmt.Pushed)
		require.Len(t, stmt.Report.Dropped, 1)
		assert.Equal(t, "declined by backend", stmt.Report.Dropped[0].Reason)
	})

	t.Run("bigdecimal comparison is declined", func(t *testing.T) {
		table := carTable()
		table.Columns = append(table.Columns, schema.Column{Name: "price", SourcePath: []string{"price"}, Type: schema.TypeBigDecimal})
		conds := []queryir.Condition{
			queryir.Compare("price", queryir.OpEq, decimal.RequireFromString("0.12345678901234567891")),
			queryir.Compare("price", queryir.OpGt, 1),
			queryir.In{Left: queryir.Col("price"), Values: []queryir.Expr{queryir.Lit(decimal.RequireFromString("0.1"))}},
		}
		for _, cond := range conds {
			stmt, err := Compile(queryir.Select{From: "car", Where: cond}, table)
			require.NoError(t, err)
			assert.False(t, stmt.Pushed)
			assert.Empty(t, stmt.Args)
			assert.Equal(t, cond, stmt.Plan.Residual)
		}
	})
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile(queryir.Select{From: "car", Where: queryir.Compare("color", queryir.OpEq, "x")}, carTable())
	assert.ErrorIs(t, err, translate.ErrUnknownColumn)

	_, err = Compile(queryir.Select{From: "car", OrderBy: []queryir.OrderBy{{Column: "color"}}}, carTable())
	assert.ErrorIs(t, err, translate.ErrUnknownColumn)

	_, err = Compile(queryir.Select{From: "car", Where: queryir.Compare("engine_hp", queryir.OpEq, "fast")}, carTable())
	assert.True(t, translate.IsCoercionError(err))
}

func TestJSONPath(t *testing.T) {
	p, err := JSONPath([]string{"a b", "c.d"})
	require.NoError(t, err)
	assert.Equal(t, `$."a b"."c.d"`, p)

	_, err = JSONPath([]string{`x"y`})
	assert.Error(t, err)

	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}
