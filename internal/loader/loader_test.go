package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/corvusdb/corvus/internal/graphmem"
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

func seedChain(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	nodes := []string{"a", "b", "c"}
	for _, id := range nodes {
		_, err := s.Execute(ctx, store.Statement{
			SQL:    `INSERT INTO nodes (id, label, properties) VALUES (?, ?, ?)`,
			Params: []any{id, `["Person"]`, `{"name":"` + id + `"}`},
		})
		require.NoError(t, err)
	}
	edges := [][3]string{{"e1", "a", "b"}, {"e2", "b", "c"}}
	for _, e := range edges {
		_, err := s.Execute(ctx, store.Statement{
			SQL:    `INSERT INTO edges (id, type, source_id, target_id, properties) VALUES (?, 'KNOWS', ?, ?, '{}')`,
			Params: []any{e[0], e[1], e[2]},
		})
		require.NoError(t, err)
	}
}

func TestFindAnchors(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)
	ids, err := FindAnchors(context.Background(), s, AnchorFilter{Label: "Person", Properties: map[string]any{"name": "a"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids)
}

func TestLoadSubgraph_NoDanglingEdges(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)
	g, err := LoadSubgraph(context.Background(), s, Options{
		AnchorIDs: []string{"a"},
		MaxDepth:  2,
		Direction: graphmem.DirOut,
	})
	require.NoError(t, err)
	require.Equal(t, 3, g.NodeCount())
	for _, n := range g.AllNodes() {
		for _, e := range g.GetOutEdges(n.ID, "") {
			require.NotNil(t, g.GetNode(e.Source))
			require.NotNil(t, g.GetNode(e.Target))
		}
	}
}

func TestLoadSubgraph_NonexistentAnchorYieldsEmptyGraph(t *testing.T) {
	s := newTestStore(t)
	seedChain(t, s)
	g, err := LoadSubgraph(context.Background(), s, Options{
		AnchorIDs: []string{"does-not-exist"},
		MaxDepth:  2,
		Direction: graphmem.DirOut,
	})
	require.NoError(t, err)
	require.Equal(t, 0, g.NodeCount())
}
