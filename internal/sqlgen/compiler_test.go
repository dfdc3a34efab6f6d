package sqlgen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql-systems/askql/pkg/types"
)

func mustPlan(t *testing.T, raw string) *types.RootPlan {
	t.Helper()
	var root types.RootPlan
	require.NoError(t, json.Unmarshal([]byte(raw), &root))
	return &root
}

func TestCompileSimpleSelect(t *testing.T) {
	root := mustPlan(t, `{
		"main_query": {
			"table": "t",
			"columns": ["id", "type"],
			"filters": [{"column": "type", "op": "=", "value": "PushEvent"}],
			"limit": 10
		}
	}`)

	sql, err := Compile(root)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, type FROM t WHERE type = 'PushEvent' LIMIT 10", sql)
}

func TestCompileDeterministic(t *testing.T) {
	root := mustPlan(t, `{
		"ctes": [{"name": "recent", "query": {"table": "events", "columns": ["id"], "limit": 5}}],
		"main_query": {
			"table": "recent",
			"columns": ["id", "actor"],
			"filters": [
				{"logic": "OR", "filters": [
					{"column": "a", "op": "=", "value": 1},
					{"column": "b", "op": "=", "value": 2}
				]}
			],
			"groupBy": ["actor"],
			"orderBy": [{"column": "id", "direction": "DESC"}]
		}
	}`)

	first, err := Compile(root)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Compile(root)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompileNestedGroupParenthesization(t *testing.T) {
	root := mustPlan(t, `{
		"main_query": {
			"table": "t",
			"columns": ["x"],
			"filters": [
				{"logic": "OR", "filters": [
					{"logic": "AND", "filters": [
						{"column": "a", "op": "=", "value": 1},
						{"column": "b", "op": "=", "value": 2}
					]},
					{"logic": "AND", "filters": [
						{"column": "c", "op": "=", "value": 3},
						{"column": "d", "op": "=", "value": 4}
					]}
				]}
			]
		}
	}`)

	sql, err := Compile(root)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT x FROM t WHERE ((a = 1 AND b = 2) OR (c = 3 AND d = 4)) LIMIT 20",
		sql)
}

func TestCompileLimits(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit string
	}{
		{"absent defaults", 0, "LIMIT 20"},
		{"negative defaults", -1, "LIMIT 20"},
		{"within range", 35, "LIMIT 35"},
		{"at max", 50, "LIMIT 50"},
		{"clamped to max", 5000, "LIMIT 50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := &types.RootPlan{MainQuery: &types.QueryPlan{
				Table:   "t",
				Columns: []string{"id"},
				Limit:   tt.limit,
			}}
			sql, err := Compile(root)
			require.NoError(t, err)
			assert.Contains(t, sql, tt.wantLimit)
		})
	}
}

func TestCompileNoFiltersTautology(t *testing.T) {
	root := &types.RootPlan{MainQuery: &types.QueryPlan{
		Table:   "t",
		Columns: []string{"id"},
	}}
	sql, err := Compile(root)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM t WHERE 1=1 LIMIT 20", sql)
}

func TestCompileCTEs(t *testing.T) {
	root := mustPlan(t, `{
		"ctes": [
			{"name": "a", "query": {"table": "t1", "columns": ["x"], "limit": 5}},
			{"name": "b", "query": {"table": "t2", "columns": ["y"], "limit": 5}}
		],
		"main_query": {"table": "a", "columns": ["x"], "limit": 5}
	}`)

	sql, err := Compile(root)
	require.NoError(t, err)
	assert.Equal(t,
		"WITH a AS (SELECT x FROM t1 WHERE 1=1 LIMIT 5), b AS (SELECT y FROM t2 WHERE 1=1 LIMIT 5) "+
			"SELECT x FROM a WHERE 1=1 LIMIT 5",
		sql)
}

func TestCompileShapeErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{
			"empty columns",
			`{"main_query": {"table": "t", "columns": []}}`,
			"columns must not be empty",
		},
		{
			"wildcard column",
			`{"main_query": {"table": "t", "columns": ["*"]}}`,
			"wildcard",
		},
		{
			"disallowed operator names the operator",
			`{"main_query": {"table": "t", "columns": ["id"],
				"filters": [{"column": "id", "op": "REGEXP", "value": "x"}]}}`,
			`"REGEXP"`,
		},
		{
			"between needs two elements",
			`{"main_query": {"table": "t", "columns": ["id"],
				"filters": [{"column": "id", "op": "BETWEEN", "value": [1, 2, 3]}]}}`,
			"2-element",
		},
		{
			"between needs an array",
			`{"main_query": {"table": "t", "columns": ["id"],
				"filters": [{"column": "id", "op": "BETWEEN", "value": 7}]}}`,
			"2-element",
		},
		{
			"in needs an array",
			`{"main_query": {"table": "t", "columns": ["id"],
				"filters": [{"column": "id", "op": "IN", "value": "x"}]}}`,
			"array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(mustPlan(t, tt.raw))
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Error(), tt.wantMsg)
		})
	}
}

func TestCompileMissingMainQuery(t *testing.T) {
	_, err := Compile(nil)
	require.Error(t, err)
	_, err = Compile(&types.RootPlan{})
	require.Error(t, err)
}

func TestRenderValues(t *testing.T) {
	root := mustPlan(t, `{
		"main_query": {
			"table": "t",
			"columns": ["id"],
			"filters": [
				{"column": "name", "op": "=", "value": "O'Brien"},
				{"column": "n", "op": ">", "value": 1.5},
				{"column": "active", "op": "=", "value": true},
				{"column": "deleted_at", "op": "IS", "value": null},
				{"column": "kind", "op": "IN", "value": ["a", "b"]},
				{"column": "day", "op": "BETWEEN", "value": [{"var": "start_day"}, {"var": "end_day"}]},
				{"column": "suffix", "op": "=", "value": {"var": "shard"}}
			]
		}
	}`)

	sql, err := Compile(root)
	require.NoError(t, err)
	assert.Contains(t, sql, "name = 'O''Brien'")
	assert.Contains(t, sql, "n > 1.5")
	assert.Contains(t, sql, "active = TRUE")
	assert.Contains(t, sql, "deleted_at IS NULL")
	assert.Contains(t, sql, "kind IN ('a', 'b')")
	assert.Contains(t, sql, "day BETWEEN start_day AND end_day")
	assert.Contains(t, sql, "suffix = shard")
}

func TestCompileOrderByWithoutDirection(t *testing.T) {
	root := &types.RootPlan{MainQuery: &types.QueryPlan{
		Table:   "t",
		Columns: []string{"id"},
		OrderBy: []types.OrderBy{{Column: "id"}, {Column: "n", Direction: types.Ascending}},
	}}
	sql, err := Compile(root)
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY id, n ASC")
}
