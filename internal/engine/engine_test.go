package engine

import (
	"context"
	"testing"

	"github.com/corvusdb/corvus/internal/config"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	dir := t.TempDir()
	registry := store.NewRegistry(dir, 5000)
	t.Cleanup(func() { _ = registry.Close() })
	cfg := &config.Config{DataDir: dir, MaxQueryLength: 100_000, DefaultMaxHops: 50, BusyTimeoutMS: 5000}
	return New(registry, cfg, nil)
}

func TestExecute_CreateThenMatchReturn(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.Execute(ctx, "t1", `CREATE (n:Person {name: "Ada", active: true})`, nil, ExecuteOptions{})
	require.NoError(t, err)

	res, err := e.Execute(ctx, "t1", `MATCH (n:Person {name: "Ada"}) RETURN n`, nil, ExecuteOptions{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	n := res.Rows[0]["n"].(map[string]any)
	props := n["properties"].(map[string]any)
	require.Equal(t, "Ada", props["name"])
	require.Equal(t, true, props["active"])
}

func TestExecute_SetAndReturnProperty(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.Execute(ctx, "t1", `CREATE (n:Person {name: "Bob", age: 30})`, nil, ExecuteOptions{})
	require.NoError(t, err)

	_, err = e.Execute(ctx, "t1", `MATCH (n:Person {name: "Bob"}) SET n.age = 31`, nil, ExecuteOptions{})
	require.NoError(t, err)

	res, err := e.Execute(ctx, "t1", `MATCH (n:Person {name: "Bob"}) RETURN n.age AS age`, nil, ExecuteOptions{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.EqualValues(t, 31, res.Rows[0]["age"])
}

func TestExecute_MultiPhaseMatchCreate(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.Execute(ctx, "t1", `CREATE (a:Person {name: "Ann"})`, nil, ExecuteOptions{})
	require.NoError(t, err)
	_, err = e.Execute(ctx, "t1", `CREATE (b:Person {name: "Ben"})`, nil, ExecuteOptions{})
	require.NoError(t, err)

	res, err := e.Execute(ctx, "t1",
		`MATCH (a:Person {name: "Ann"}) MATCH (b:Person {name: "Ben"}) CREATE (a)-[r:KNOWS {since: 2020}]->(b) RETURN r.since AS since`,
		nil, ExecuteOptions{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.EqualValues(t, 2020, res.Rows[0]["since"])

	check, err := e.Execute(ctx, "t1", `MATCH (a:Person {name: "Ann"})-[:KNOWS]->(b:Person) RETURN b.name AS name`, nil, ExecuteOptions{})
	require.NoError(t, err)
	require.Len(t, check.Rows, 1)
	require.Equal(t, "Ben", check.Rows[0]["name"])
}

func TestExecute_VariableLengthPathUsesHybridPlan(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		_, err := e.Execute(ctx, "t1", `CREATE (:Person {name: $name})`, map[string]any{"name": n}, ExecuteOptions{})
		require.NoError(t, err)
	}
	for i := 0; i < len(names)-1; i++ {
		_, err := e.Execute(ctx, "t1",
			`MATCH (a:Person {name: $from}) MATCH (b:Person {name: $to}) CREATE (a)-[:KNOWS]->(b)`,
			map[string]any{"from": names[i], "to": names[i+1]}, ExecuteOptions{})
		require.NoError(t, err)
	}

	res, err := e.Execute(ctx, "t1", `MATCH (a:Person {name: "a"})-[:KNOWS*1..3]->(b:Person) RETURN a, b`, nil, ExecuteOptions{})
	require.NoError(t, err)
	ends := map[string]bool{}
	for _, row := range res.Rows {
		b := row["b"].(map[string]any)
		props := b["properties"].(map[string]any)
		ends[props["name"].(string)] = true
	}
	require.Equal(t, map[string]bool{"b": true, "c": true, "d": true}, ends)
}

func TestExecute_ExplainDoesNotWrite(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	res, err := e.Execute(ctx, "t1", `CREATE (:Person {name: "Never"})`, nil, ExecuteOptions{Explain: true})
	require.NoError(t, err)
	require.NotNil(t, res.Explain)
	require.NotEmpty(t, res.Explain.Writes)

	check, err := e.Execute(ctx, "t1", `MATCH (n:Person {name: "Never"}) RETURN n`, nil, ExecuteOptions{})
	require.NoError(t, err)
	require.Empty(t, check.Rows)
}

func TestExecute_QueryTooLongHitsResourceCap(t *testing.T) {
	e := newTestExecutor(t)
	e.cfg.MaxQueryLength = 10

	_, err := e.Execute(context.Background(), "t1", `MATCH (n) RETURN n`, nil, ExecuteOptions{})
	require.Error(t, err)
}
