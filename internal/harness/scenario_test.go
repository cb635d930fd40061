package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docbridge/internal/config"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/queryir"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cars.yaml")
	require.NoError(t, err)

	assert.Equal(t, "cars", s.Name)
	assert.Equal(t, []string{config.BackendDocument, config.BackendCache}, s.BackendNames())
	require.Len(t, s.Documents["car"], 4)

	docs, err := s.Load("car")
	require.NoError(t, err)
	assert.Equal(t, "c1", docs[0].ID)
	assert.Equal(t, ir.IRObject{"hp": ir.IRInt(158)}, docs[0].Body["engine"])
	assert.Equal(t, ir.IRObject{"hp": ir.IRNull{}}, docs[2].Body["engine"])
	assert.Equal(t, ir.IRString(`back\slash`), docs[2].Body["name"])
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\ndocument: {}\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\ndocuments: {k: [{body: {a: 1}}]}\nassertions: [{type: table_exists, table: k}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing documents",
			yaml:    "name: x\ndescription: d\nassertions: [{type: table_exists, table: k}]\n",
			wantErr: "documents are required",
		},
		{
			name:    "nothing to check",
			yaml:    "name: x\ndescription: d\ndocuments: {k: [{body: {a: 1}}]}\n",
			wantErr: "at least one query or assertion",
		},
		{
			name:    "unknown backend",
			yaml:    "name: x\ndescription: d\nbackends: [ldap]\ndocuments: {k: [{body: {a: 1}}]}\nassertions: [{type: table_exists, table: k}]\n",
			wantErr: `unknown backend "ldap"`,
		},
		{
			name:    "document without body",
			yaml:    "name: x\ndescription: d\ndocuments: {k: [{id: a}]}\nassertions: [{type: table_exists, table: k}]\n",
			wantErr: "body is required",
		},
		{
			name:    "bad where",
			yaml:    "name: x\ndescription: d\ndocuments: {k: [{body: {a: 1}}]}\nqueries: [{name: q, from: k, where: 'a ='}]\n",
			wantErr: "queries[0]: where",
		},
		{
			name:    "duplicate query",
			yaml:    "name: x\ndescription: d\ndocuments: {k: [{body: {a: 1}}]}\nqueries: [{name: q, from: k}, {name: q, from: k}]\n",
			wantErr: "duplicate name",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\ndocuments: {k: [{body: {a: 1}}]}\nassertions: [{type: row_count, table: k}]\n",
			wantErr: `unknown assertion type "row_count"`,
		},
		{
			name:    "bad data type",
			yaml:    "name: x\ndescription: d\ndocuments: {k: [{body: {a: 1}}]}\nassertions: [{type: column_type, table: k, column: a, data_type: float}]\n",
			wantErr: "unknown data type",
		},
		{
			name:    "foreign key without parent",
			yaml:    "name: x\ndescription: d\ndocuments: {k: [{body: {a: 1}}]}\nassertions: [{type: foreign_key, table: k, columns: [documentID]}]\n",
			wantErr: "parent and columns are required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQueryStep_Select(t *testing.T) {
	q := QueryStep{
		Name:    "q",
		From:    "car",
		Columns: []string{"documentID", "engine_hp AS hp", "name as model"},
		Where:   "engine_hp > 200 AND name LIKE 'm%'",
		OrderBy: []string{"engine_hp DESC", "name asc", "documentID"},
		Offset:  1,
		Limit:   2,
	}
	sel, err := q.Select()
	require.NoError(t, err)

	assert.Equal(t, queryir.Select{
		From: "car",
		Columns: []queryir.Projection{
			{Column: "documentID"},
			{Column: "engine_hp", Alias: "hp"},
			{Column: "name", Alias: "model"},
		},
		Where: queryir.AndOr{
			Op:    queryir.OpAnd,
			Left:  queryir.Compare("engine_hp", queryir.OpGt, 200),
			Right: queryir.Like{Left: queryir.Col("name"), Pattern: "m%"},
		},
		OrderBy: []queryir.OrderBy{
			{Column: "engine_hp", Desc: true},
			{Column: "name"},
			{Column: "documentID"},
		},
		Offset: 1,
		Limit:  2,
	}, sel)

	for _, bad := range []QueryStep{
		{Name: "q"},
		{Name: "q", From: "car", Columns: []string{"a b c"}},
		{Name: "q", From: "car", OrderBy: []string{"a sideways"}},
		{Name: "q", From: "car", Limit: -1},
	} {
		_, err := bad.Select()
		assert.Error(t, err, "%+v", bad)
	}
}
