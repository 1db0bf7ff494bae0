package translator

import (
	"testing"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/parser"
	"github.com/stretchr/testify/require"
)

func mustParseStatement(t *testing.T, text string) *ast.Statement {
	t.Helper()
	stmt, err := parser.Parse(text)
	require.NoError(t, err)
	return stmt
}

func TestTranslate_CreateNode(t *testing.T) {
	stmt := mustParseStatement(t, `CREATE (n:Person {name: "Ada", active: true}) RETURN n`)
	tr, err := Translate(stmt, nil)
	require.NoError(t, err)
	require.Len(t, tr.Writes, 1)
	require.Contains(t, tr.Writes[0].SQL, "INSERT INTO nodes")
	require.NotNil(t, tr.Select)
	require.Contains(t, tr.Select.SQL, "SELECT")
	require.Equal(t, []string{"n"}, tr.Columns)
}

func TestTranslate_MatchWithLabelAndProperty(t *testing.T) {
	stmt := mustParseStatement(t, `MATCH (p:Person {name: "Ada"}) RETURN p.name AS name`)
	tr, err := Translate(stmt, nil)
	require.NoError(t, err)
	require.Empty(t, tr.Writes)
	require.NotNil(t, tr.Select)
	require.Contains(t, tr.Select.SQL, "json_each")
	require.Contains(t, tr.Select.SQL, "json_extract")
	require.Equal(t, []string{"name"}, tr.Columns)
}

func TestTranslate_MatchRelationshipChain(t *testing.T) {
	stmt := mustParseStatement(t, `MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a, b`)
	tr, err := Translate(stmt, nil)
	require.NoError(t, err)
	require.NotNil(t, tr.Select)
	require.Contains(t, tr.Select.SQL, "JOIN edges")
	require.Contains(t, tr.Select.SQL, "JOIN nodes")
}

func TestTranslate_VariableLengthPath(t *testing.T) {
	stmt := mustParseStatement(t, `MATCH (a:Person)-[:KNOWS*1..3]->(b:Person) RETURN a, b`)
	tr, err := Translate(stmt, nil)
	require.NoError(t, err)
	require.NotNil(t, tr.Select)
	require.Contains(t, tr.Select.SQL, "WITH RECURSIVE")
}

func TestTranslate_DeleteRequiresMatch(t *testing.T) {
	stmt := mustParseStatement(t, `MATCH (n:Person {name: "Ada"}) DETACH DELETE n`)
	tr, err := Translate(stmt, nil)
	require.NoError(t, err)
	require.Len(t, tr.Writes, 1)
	require.Contains(t, tr.Writes[0].SQL, "DELETE FROM nodes")
	require.Nil(t, tr.Select)
}

func TestTranslate_SetProperty(t *testing.T) {
	stmt := mustParseStatement(t, `MATCH (n:Person {name: "Ada"}) SET n.age = 37`)
	tr, err := Translate(stmt, nil)
	require.NoError(t, err)
	require.Len(t, tr.Writes, 1)
	require.Contains(t, tr.Writes[0].SQL, "json_set")
}

func TestTranslate_ParamReference(t *testing.T) {
	stmt := mustParseStatement(t, `MATCH (n:Person {name: $name}) RETURN n`)
	tr, err := Translate(stmt, map[string]any{"name": "Grace"})
	require.NoError(t, err)
	require.NotNil(t, tr.Select)
	require.Contains(t, tr.Select.Params, "Grace")
}
