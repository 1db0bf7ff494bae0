package graphmem

import (
	"encoding/json"
	"fmt"
)

// FromRows parses raw JSON label/property columns and populates adjacency in
// one pass (spec.md §4.3 fromRows). Nodes referenced by an edge but absent
// from nodeRows are skipped for that edge's endpoint resolution by the
// caller — FromRows itself only rejects malformed JSON.
func FromRows(nodeRows []NodeRow, edgeRows []EdgeRow) (*Graph, error) {
	g := New()
	for _, nr := range nodeRows {
		var labels []string
		if err := json.Unmarshal([]byte(nr.LabelJSON), &labels); err != nil {
			return nil, fmt.Errorf("graphmem: decode labels for node %s: %w", nr.ID, err)
		}
		props := map[string]any{}
		if nr.PropsJSON != "" {
			if err := json.Unmarshal([]byte(nr.PropsJSON), &props); err != nil {
				return nil, fmt.Errorf("graphmem: decode properties for node %s: %w", nr.ID, err)
			}
		}
		g.AddNode(&Node{ID: nr.ID, Labels: labels, Properties: props})
	}
	for _, er := range edgeRows {
		props := map[string]any{}
		if er.PropsJSON != "" {
			if err := json.Unmarshal([]byte(er.PropsJSON), &props); err != nil {
				return nil, fmt.Errorf("graphmem: decode properties for edge %s: %w", er.ID, err)
			}
		}
		g.AddEdge(&Edge{ID: er.ID, Type: er.Type, Source: er.Source, Target: er.Target, Properties: props})
	}
	return g, nil
}
