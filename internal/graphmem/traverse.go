package graphmem

// Path is one enumerated simple path: the node ids visited (including the
// start) and the edges traversed, in order.
type Path struct {
	NodeIDs []string
	Edges   []*Edge
}

// End returns the final node id of the path (the start node id for a
// zero-length path).
func (p Path) End() string {
	return p.NodeIDs[len(p.NodeIDs)-1]
}

// TraversePaths lazily enumerates simple paths from startID whose edge count
// lies in [minDepth, maxDepth] (spec.md §4.3). A path never reuses an edge
// (cycle prevention is per-path edge-set membership, so a node may recur).
// Enumeration is depth-first and yield order follows edge insertion order,
// guaranteeing termination on any graph since an edge cannot be traversed
// twice within one path and the graph has finitely many edges.
//
// yield is called once per matching path; it returns false to stop
// enumeration early (e.g. once a caller has found what it needs).
func (g *Graph) TraversePaths(startID string, edgeType string, minDepth, maxDepth int, dir Direction, yield func(Path) bool) {
	if _, ok := g.nodes[startID]; !ok {
		return
	}
	usedEdges := map[string]bool{}
	path := Path{NodeIDs: []string{startID}}

	var walk func(nodeID string, depth int) bool
	walk = func(nodeID string, depth int) bool {
		if depth >= minDepth {
			if !yield(clonePath(path)) {
				return false
			}
		}
		if depth >= maxDepth {
			return true
		}
		for _, nb := range g.Neighbors(nodeID, dir, edgeType) {
			if usedEdges[nb.Edge.ID] {
				continue
			}
			usedEdges[nb.Edge.ID] = true
			path.NodeIDs = append(path.NodeIDs, nb.NodeID)
			path.Edges = append(path.Edges, nb.Edge)

			cont := walk(nb.NodeID, depth+1)

			path.NodeIDs = path.NodeIDs[:len(path.NodeIDs)-1]
			path.Edges = path.Edges[:len(path.Edges)-1]
			usedEdges[nb.Edge.ID] = false

			if !cont {
				return false
			}
		}
		return true
	}
	walk(startID, 0)
}

func clonePath(p Path) Path {
	nodeIDs := make([]string, len(p.NodeIDs))
	copy(nodeIDs, p.NodeIDs)
	edges := make([]*Edge, len(p.Edges))
	copy(edges, p.Edges)
	return Path{NodeIDs: nodeIDs, Edges: edges}
}
