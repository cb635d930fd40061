package querydsl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docbridge/internal/cache"
	"github.com/roach88/docbridge/internal/exec"
	"github.com/roach88/docbridge/internal/inference"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
	"github.com/roach88/docbridge/internal/schema"
	"github.com/roach88/docbridge/internal/translate"
)

func carDocs() []ir.Document {
	return []ir.Document{
		{ID: "c1", Body: ir.IRObject{
			"name":   ir.IRString("civic"),
			"engine": ir.IRObject{"hp": ir.IRInt(158)},
			"used":   ir.IRBool(false),
			"tags":   ir.IRArray{ir.IRString("red"), ir.IRString("compact")},
		}},
		{ID: "c2", Body: ir.IRObject{
			"name":   ir.IRString("mustang (gt)*"),
			"engine": ir.IRObject{"hp": ir.IRInt(450)},
			"used":   ir.IRBool(true),
			"tags":   ir.IRArray{ir.IRString("red"), ir.IRString("fast")},
		}},
		{ID: "c3", Body: ir.IRObject{
			"name":   ir.IRString(`back\slash`),
			"engine": ir.IRObject{"hp": ir.IRNull{}},
			"tags":   ir.IRArray{},
		}},
		{ID: "c4", Body: ir.IRObject{
			"name":   ir.IRString("Model 3"),
			"engine": ir.IRObject{"hp": ir.IRInt(283)},
			"used":   ir.IRBool(false),
		}},
	}
}

func loadCars(t *testing.T) (*cache.Cache, *schema.Schema) {
	t.Helper()
	c := cache.New()
	c.Put("car", carDocs()...)

	b := schema.NewBuilder()
	report, err := inference.New(inference.Options{}).Infer(context.Background(), c, b)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	sch, err := b.Build()
	require.NoError(t, err)
	return c, sch
}

func compile(t *testing.T, c *cache.Cache, sch *schema.Schema, sel queryir.Select) Compiled {
	t.Helper()
	table, ok := sch.Table(sel.From)
	require.True(t, ok, sel.From)
	compiled, err := Compile(c, sel, table)
	require.NoError(t, err)
	return compiled
}

func run(t *testing.T, c *cache.Cache, sch *schema.Schema, sel queryir.Select) [][]ir.IRValue {
	t.Helper()
	compiled := compile(t, c, sch, sel)

	cur := exec.NewCursor(compiled.Opener(), compiled.Plan)
	require.NoError(t, cur.Execute(context.Background()))
	defer cur.Close()

	rows := [][]ir.IRValue{}
	for {
		res, err := cur.Next(context.Background())
		require.NoError(t, err)
		if res.Kind == exec.KindEnd {
			return rows
		}
		rows = append(rows, res.Row)
	}
}

func expect(sch *schema.Schema, sel queryir.Select) [][]ir.IRValue {
	table, _ := sch.Table(sel.From)
	rows := [][]ir.IRValue{}
	for _, d := range carDocs() {
		for _, r := range table.Rows(d) {
			if queryir.Eval(sel.Where, r) != queryir.True {
				continue
			}
			out := []ir.IRValue{}
			for _, p := range sel.Columns {
				v, ok := r[p.Column]
				if !ok {
					v = ir.IRNull{}
				}
				out = append(out, v)
			}
			rows = append(rows, out)
		}
	}
	return rows
}

func TestCompile_MatchesInMemoryEvaluation(t *testing.T) {
	c, sch := loadCars(t)
	project := []queryir.Projection{{Column: schema.DocumentIDColumn}}

	conds := map[string]queryir.Condition{
		"equality":        queryir.Compare("name", queryir.OpEq, "civic"),
		"ordered":         queryir.Compare("engine_hp", queryir.OpGe, 283),
		"not equal":       queryir.Compare("engine_hp", queryir.OpNe, 158),
		"and within or":   queryir.And(queryir.Compare("used", queryir.OpEq, false), queryir.Or(queryir.Compare("engine_hp", queryir.OpGt, 200), queryir.Compare("name", queryir.OpEq, "civic"))),
		"not over null":   queryir.Not{Inner: queryir.Compare("engine_hp", queryir.OpGt, 200)},
		"in":              queryir.In{Left: queryir.Col("name"), Values: []queryir.Expr{queryir.Lit("civic"), queryir.Lit("Model 3")}},
		"not in":          queryir.In{Left: queryir.Col("engine_hp"), Values: []queryir.Expr{queryir.Lit(158)}, Negated: true},
		"like":            queryir.Like{Left: queryir.Col("name"), Pattern: "%(gt)*"},
		"like underscore": queryir.Like{Left: queryir.Col("name"), Pattern: "civi_"},
		"like is cased":   queryir.Like{Left: queryir.Col("name"), Pattern: "model%"},
		"like escape":     queryir.Like{Left: queryir.Col("name"), Pattern: `back!\%`, Escape: '!'},
		"is null":         queryir.IsNull{Expr: queryir.Col("engine_hp")},
		"is not null":     queryir.IsNull{Expr: queryir.Col("used"), Negated: true},
		"backslash value": queryir.Compare("name", queryir.OpEq, `back\slash`),
		"special value":   queryir.Compare("name", queryir.OpEq, "mustang (gt)*"),
		"document id":     queryir.Compare(schema.DocumentIDColumn, queryir.OpLt, "c3"),
		"partial or":      queryir.Or(queryir.Compare("engine_hp", queryir.OpLt, 200), queryir.Comparison{Op: queryir.OpEq, Left: queryir.Col("name"), Right: queryir.Col("name")}),
	}
	for name, cond := range conds {
		t.Run(name, func(t *testing.T) {
			sel := queryir.Select{From: "car", Columns: project, Where: cond}
			assert.Equal(t, expect(sch, sel), run(t, c, sch, sel))
		})
	}
}

func TestCompile_IsNullCoversMissingAttribute(t *testing.T) {
	c, sch := loadCars(t)
	assert.False(t, Backend{}.Capabilities().NullDistinguishesMissing())

	sel := queryir.Select{
		From:    "car",
		Columns: []queryir.Projection{{Column: schema.DocumentIDColumn}},
		Where:   queryir.IsNull{Expr: queryir.Col("used")},
	}
	compiled := compile(t, c, sch, sel)
	assert.True(t, compiled.Pushed)
	assert.Nil(t, compiled.Plan.Residual)
	assert.Equal(t, [][]ir.IRValue{{ir.IRString("c3")}}, run(t, c, sch, sel))
}

func TestCompile_Calls(t *testing.T) {
	c, sch := loadCars(t)

	compiled := compile(t, c, sch, queryir.Select{
		From:    "car",
		Columns: []queryir.Projection{{Column: "name"}},
		Where: queryir.And(
			queryir.Compare("engine_hp", queryir.OpGt, 200),
			queryir.Like{Left: queryir.Col("name"), Pattern: "m%(gt)*"},
		),
		OrderBy: []queryir.OrderBy{{Column: "engine_hp", Desc: true}},
		Offset:  1,
		Limit:   2,
	})

	assert.True(t, compiled.Pushed)
	assert.True(t, compiled.Report.Exact())
	assert.Nil(t, compiled.Plan.Residual)
	assert.Zero(t, compiled.Plan.Limit)
	assert.Equal(t, []string{
		`from("car")`,
		`where((having("engine", "hp").gt(200)).and(having("name").like("m*\\28gt\\29\\2a")))`,
		`orderBy(having("engine", "hp"), desc)`,
		`startOffset(1)`,
		`maxResults(2)`,
	}, compiled.Query.Calls())
}

func TestCompile_PartialPushdownKeepsWindowInCursor(t *testing.T) {
	c, sch := loadCars(t)

	sel := queryir.Select{
		From:    "car",
		Columns: []queryir.Projection{{Column: "name"}},
		Where: queryir.And(
			queryir.Compare("used", queryir.OpEq, false),
			queryir.Comparison{Op: queryir.OpEq, Left: queryir.Col("name"), Right: queryir.Col("name")},
		),
		OrderBy: []queryir.OrderBy{{Column: "engine_hp", Desc: true}},
		Limit:   1,
	}
	compiled := compile(t, c, sch, sel)
	assert.True(t, compiled.Pushed)
	assert.False(t, compiled.Report.Exact())
	assert.NotNil(t, compiled.Plan.Residual)
	assert.Equal(t, 1, compiled.Plan.Limit)
	assert.NotContains(t, compiled.Query.String(), "maxResults")

	assert.Equal(t, [][]ir.IRValue{{ir.IRString("Model 3")}}, run(t, c, sch, sel))
}

func TestCompile_ArrayTable(t *testing.T) {
	c, sch := loadCars(t)

	sel := queryir.Select{
		From:    "car_tags",
		Columns: []queryir.Projection{{Column: schema.DocumentIDColumn}, {Column: "tags_idx"}, {Column: "tags", Alias: "tag"}},
		Where:   queryir.Compare("tags", queryir.OpEq, "red"),
	}
	compiled := compile(t, c, sch, sel)
	assert.False(t, compiled.Pushed)
	assert.Equal(t, []string{`from("car")`}, compiled.Query.Calls())

	assert.Equal(t, [][]ir.IRValue{
		{ir.IRString("c1"), ir.IRInt(0), ir.IRString("red")},
		{ir.IRString("c2"), ir.IRInt(0), ir.IRString("red")},
	}, run(t, c, sch, sel))

	sorted := queryir.Select{
		From:    "car_tags",
		Columns: []queryir.Projection{{Column: "tags"}},
		OrderBy: []queryir.OrderBy{{Column: "tags"}},
		Limit:   3,
	}
	assert.Equal(t, [][]ir.IRValue{
		{ir.IRString("compact")}, {ir.IRString("fast")}, {ir.IRString("red")},
	}, run(t, c, sch, sorted))
}

func TestCompile_Discriminator(t *testing.T) {
	c := cache.New()
	c.Put("vehicle",
		ir.Document{ID: "v1", Body: ir.IRObject{"kind": ir.IRString("car"), "wheels": ir.IRInt(4)}},
		ir.Document{ID: "v2", Body: ir.IRObject{"kind": ir.IRString("bike"), "wheels": ir.IRInt(2)}},
	)
	table := &schema.Table{
		Name:          "vehicle_car",
		SourceName:    "vehicle",
		Discriminator: &schema.Discriminator{Attribute: "kind", Value: "car"},
		Columns: []schema.Column{
			{Name: schema.DocumentIDColumn, Type: schema.TypeString, Kind: schema.KindDocumentID},
			{Name: "wheels", SourcePath: []string{"wheels"}, Type: schema.TypeInteger, Nullable: true},
		},
		PrimaryKey: []string{schema.DocumentIDColumn},
	}

	compiled, err := Compile(c, queryir.Select{From: "vehicle_car"}, table)
	require.NoError(t, err)
	assert.Equal(t, []string{`from("vehicle")`, `where(having("kind").eqText("car"))`}, compiled.Query.Calls())

	cur := exec.NewCursor(compiled.Opener(), compiled.Plan)
	require.NoError(t, cur.Execute(context.Background()))
	defer cur.Close()
	res, err := cur.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ir.IRValue{ir.IRString("v1"), ir.IRInt(4)}, res.Row)
	res, err = cur.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exec.KindEnd, res.Kind)
}

func TestCompile_Errors(t *testing.T) {
	c, sch := loadCars(t)
	table, _ := sch.Table("car")

	_, err := Compile(c, queryir.Select{From: "car", Where: queryir.Compare("wheels", queryir.OpEq, 4)}, table)
	assert.ErrorIs(t, err, translate.ErrUnknownColumn)

	_, err = Compile(c, queryir.Select{From: "car", OrderBy: []queryir.OrderBy{{Column: "wheels"}}}, table)
	assert.ErrorIs(t, err, translate.ErrUnknownColumn)

	_, err = Compile(c, queryir.Select{From: "car", Where: queryir.Compare("engine_hp", queryir.OpEq, "fast")}, table)
	assert.True(t, translate.IsCoercionError(err))
}

func TestOpen_UnavailableRetries(t *testing.T) {
	c, sch := loadCars(t)
	compiled := compile(t, c, sch, queryir.Select{From: "car", Columns: []queryir.Projection{{Column: "name"}}})

	c.Suspend(20 * time.Millisecond)
	cur := exec.NewCursor(compiled.Opener(), compiled.Plan)
	require.NoError(t, cur.Execute(context.Background()))
	assert.Equal(t, exec.StateExecuting, cur.State())

	res, err := cur.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exec.KindRetry, res.Kind)
	assert.Equal(t, 20*time.Millisecond, res.After)

	c.Resume()
	res, err = cur.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exec.KindRow, res.Kind)
	assert.Equal(t, 1, c.OpenIterators())

	require.NoError(t, cur.Close())
	assert.Equal(t, 0, c.OpenIterators())
}

func TestLikeToGlob(t *testing.T) {
	tests := []struct {
		pattern string
		escape  rune
		want    string
	}{
		{"abc", 0, "abc"},
		{"a%b_c", 0, "a*b?c"},
		{"what?", 0, `what\3f`},
		{translate.Escape("a*(b)"), 0, `a\2a\28b\29`},
		{translate.Escape(`back\slash`), 0, `back\5cslash`},
		{"100!%", '!', `100%`},
		{"a!_b", '!', "a_b"},
		{"a!!b", '!', "a!b"},
		{translate.Escape(`a\%`), '\\', "a%"},
		{"trailing!", '!', "trailing!"},
		{"ünï%", 0, "ünï*"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := LikeToGlob(tt.pattern, tt.escape)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := LikeToGlob(`bad\zz`, 0)
	assert.Error(t, err)
}
