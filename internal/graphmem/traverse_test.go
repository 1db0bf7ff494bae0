package graphmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraversePaths_CyclicGraphTerminatesAndDedupsEndpoints(t *testing.T) {
	// A -[:L]-> B -[:L]-> C -[:L]-> A, per spec.md §8 scenario 5.
	g := New()
	g.AddNode(&Node{ID: "A", Labels: []string{"N"}, Properties: map[string]any{"name": "A"}})
	g.AddNode(&Node{ID: "B", Labels: []string{"N"}, Properties: map[string]any{"name": "B"}})
	g.AddNode(&Node{ID: "C", Labels: []string{"N"}, Properties: map[string]any{"name": "C"}})
	g.AddEdge(&Edge{ID: "e1", Type: "L", Source: "A", Target: "B"})
	g.AddEdge(&Edge{ID: "e2", Type: "L", Source: "B", Target: "C"})
	g.AddEdge(&Edge{ID: "e3", Type: "L", Source: "C", Target: "A"})

	endpoints := map[string]bool{}
	count := 0
	g.TraversePaths("A", "L", 1, 10, DirOut, func(p Path) bool {
		count++
		endpoints[p.End()] = true
		for i, e := range p.Edges {
			for j, other := range p.Edges {
				if i != j {
					require.NotEqual(t, e.ID, other.ID, "edge reused within one path")
				}
			}
		}
		return true
	})
	require.Less(t, count, 100, "enumeration must terminate")
	require.Equal(t, map[string]bool{"A": true, "B": true, "C": true}, endpoints)
}

func TestTraversePaths_ZeroDepthYieldsStartFirst(t *testing.T) {
	g := New()
	g.AddNode(&Node{ID: "A"})
	g.AddNode(&Node{ID: "B"})
	g.AddEdge(&Edge{ID: "e1", Type: "L", Source: "A", Target: "B"})

	var firstEnd string
	first := true
	g.TraversePaths("A", "L", 0, 1, DirOut, func(p Path) bool {
		if first {
			firstEnd = p.End()
			first = false
		}
		return true
	})
	require.Equal(t, "A", firstEnd)
}

func TestTraversePaths_RespectsHopBounds(t *testing.T) {
	g := New()
	for _, id := range []string{"A", "B", "C", "D"} {
		g.AddNode(&Node{ID: id})
	}
	g.AddEdge(&Edge{ID: "e1", Type: "L", Source: "A", Target: "B"})
	g.AddEdge(&Edge{ID: "e2", Type: "L", Source: "B", Target: "C"})
	g.AddEdge(&Edge{ID: "e3", Type: "L", Source: "C", Target: "D"})

	var ends []string
	g.TraversePaths("A", "L", 2, 2, DirOut, func(p Path) bool {
		ends = append(ends, p.End())
		return true
	})
	require.Equal(t, []string{"C"}, ends)
}
