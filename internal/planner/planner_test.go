package planner

import (
	"testing"

	"github.com/corvusdb/corvus/internal/parser"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_VariableLengthIsEligible(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (a:Person)-[:KNOWS*1..3]->(b:Person) RETURN a, b`)
	require.NoError(t, err)
	plan := Evaluate(stmt.Queries[0], 50)
	require.True(t, plan.Eligible, plan.Reason)
	require.Equal(t, "a", plan.Chain.AnchorVariable)
	require.Len(t, plan.Chain.Hops, 1)
	require.Equal(t, 1, plan.Chain.Hops[0].MinHops)
	require.Equal(t, 3, plan.Chain.Hops[0].MaxHops)
}

func TestEvaluate_SingleFixedHopIsNotEligible(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a, b`)
	require.NoError(t, err)
	plan := Evaluate(stmt.Queries[0], 50)
	require.False(t, plan.Eligible)
}

func TestEvaluate_UnlabeledNodeIsNotEligible(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (a:Person)-[:KNOWS*1..3]->(b) RETURN a, b`)
	require.NoError(t, err)
	plan := Evaluate(stmt.Queries[0], 50)
	require.False(t, plan.Eligible)
}

func TestEvaluate_AggregateForcesSQLPath(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (a:Person)-[:KNOWS*1..3]->(b:Person) RETURN count(b)`)
	require.NoError(t, err)
	plan := Evaluate(stmt.Queries[0], 50)
	require.False(t, plan.Eligible)
}

func TestEvaluate_MultiHopFixedIsEligible(t *testing.T) {
	stmt, err := parser.Parse(`MATCH (a:Person)-[:KNOWS]->(b:Person)-[:KNOWS]->(c:Person) RETURN a, c`)
	require.NoError(t, err)
	plan := Evaluate(stmt.Queries[0], 50)
	require.True(t, plan.Eligible, plan.Reason)
	require.Len(t, plan.Chain.Hops, 2)
}
