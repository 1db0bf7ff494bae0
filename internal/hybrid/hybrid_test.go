package hybrid

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/corvusdb/corvus/internal/parser"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "tenant.db"), 5000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExecute_VariableLengthChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	people := []string{"a", "b", "c", "d"}
	for _, id := range people {
		_, err := s.Execute(ctx, store.Statement{
			SQL:    `INSERT INTO nodes (id, label, properties) VALUES (?, '["Person"]', ?)`,
			Params: []any{id, `{"name":"` + id + `"}`},
		})
		require.NoError(t, err)
	}
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}}
	for i, e := range edges {
		_, err := s.Execute(ctx, store.Statement{
			SQL:    `INSERT INTO edges (id, type, source_id, target_id, properties) VALUES (?, 'KNOWS', ?, ?, '{}')`,
			Params: []any{"e" + string(rune('0'+i)), e[0], e[1]},
		})
		require.NoError(t, err)
	}

	stmt, err := parser.Parse(`MATCH (a:Person {name: "a"})-[:KNOWS*1..3]->(b:Person) RETURN a, b`)
	require.NoError(t, err)
	plan := planner.Evaluate(stmt.Queries[0], 50)
	require.True(t, plan.Eligible, plan.Reason)

	rows, err := Execute(ctx, s, plan.Chain, nil)
	require.NoError(t, err)
	ends := map[string]bool{}
	for _, r := range rows {
		ends[r["b"].ID] = true
	}
	require.Equal(t, map[string]bool{"b": true, "c": true, "d": true}, ends)
}
