// Package loader materializes a bounded in-memory subgraph (graphmem.Graph)
// from the row store, for use by the hybrid planner/executor (spec.md §4.4
// Subgraph Loader).
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corvusdb/corvus/internal/errs"
	"github.com/corvusdb/corvus/internal/graphmem"
	"github.com/corvusdb/corvus/internal/store"
)

// AnchorFilter restricts FindAnchors to nodes carrying label and matching
// every key/value pair in Properties.
type AnchorFilter struct {
	Label      string
	Properties map[string]any
}

// Options bounds one subgraph load (spec.md §4.4 "loadSubgraph").
type Options struct {
	AnchorIDs []string
	MaxDepth  int
	EdgeTypes []string // empty means any type
	Direction graphmem.Direction
}

// FindAnchors returns the ids of every node matching filter, the entry point
// for a hybrid-eligible pattern's first MATCH variable (spec.md §4.4
// "findAnchors(label, propFilter)").
func FindAnchors(ctx context.Context, s *store.Store, filter AnchorFilter) ([]string, error) {
	sql := `SELECT id FROM nodes WHERE EXISTS (SELECT 1 FROM json_each(label) je WHERE je.value = ?)`
	params := []any{filter.Label}
	for k, v := range filter.Properties {
		sql += fmt.Sprintf(" AND json_extract(properties, '$.%s') = ?", k)
		params = append(params, v)
	}
	res, err := s.Execute(ctx, store.Statement{SQL: sql, Params: params})
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, err, "find anchors for label %q", filter.Label)
	}
	ids := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if id, ok := row["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// LoadSubgraph performs a bounded BFS from opts.AnchorIDs out to opts.MaxDepth
// hops and bulk-fetches every node/edge it touches, returning an in-memory
// graph with no dangling edges (spec.md §4.4). Nonexistent anchors yield an
// empty graph rather than an error.
func LoadSubgraph(ctx context.Context, s *store.Store, opts Options) (*graphmem.Graph, error) {
	if len(opts.AnchorIDs) == 0 {
		return graphmem.New(), nil
	}

	visited := map[string]bool{}
	frontier := append([]string{}, opts.AnchorIDs...)
	for _, id := range frontier {
		visited[id] = true
	}

	edgeIDs := map[string]bool{}
	var edgeRows []store.Result

	for depth := 0; depth < opts.MaxDepth && len(frontier) > 0; depth++ {
		res, err := fetchAdjacentEdges(ctx, s, frontier, opts.EdgeTypes, opts.Direction)
		if err != nil {
			return nil, err
		}
		edgeRows = append(edgeRows, *res)

		var next []string
		for _, row := range res.Rows {
			id, _ := row["id"].(string)
			if id == "" || edgeIDs[id] {
				continue
			}
			edgeIDs[id] = true
			src, _ := row["source_id"].(string)
			tgt, _ := row["target_id"].(string)
			for _, candidate := range []string{src, tgt} {
				if candidate != "" && !visited[candidate] {
					visited[candidate] = true
					next = append(next, candidate)
				}
			}
		}
		frontier = next
	}

	ids := make([]string, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	nodeRows, err := fetchNodes(ctx, s, ids)
	if err != nil {
		return nil, err
	}

	var allEdgeRows []graphmem.EdgeRow
	seen := map[string]bool{}
	for _, res := range edgeRows {
		for _, row := range res.Rows {
			id, _ := row["id"].(string)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			allEdgeRows = append(allEdgeRows, rowToEdgeRow(row))
		}
	}

	g, err := graphmem.FromRows(nodeRows, allEdgeRows)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, err, "decode subgraph rows")
	}
	return g, nil
}

func fetchNodes(ctx context.Context, s *store.Store, ids []string) ([]graphmem.NodeRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	sql := fmt.Sprintf(`SELECT id, label, properties FROM nodes WHERE id IN (%s)`, placeholders)
	params := make([]any, len(ids))
	for i, id := range ids {
		params[i] = id
	}
	res, err := s.Execute(ctx, store.Statement{SQL: sql, Params: params})
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, err, "bulk fetch nodes")
	}
	rows := make([]graphmem.NodeRow, 0, len(res.Rows))
	for _, row := range res.Rows {
		rows = append(rows, rowToNodeRow(row))
	}
	return rows, nil
}

func fetchAdjacentEdges(ctx context.Context, s *store.Store, ids []string, edgeTypes []string, dir graphmem.Direction) (*store.Result, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	var where string
	switch dir {
	case graphmem.DirOut:
		where = fmt.Sprintf("source_id IN (%s)", placeholders)
	case graphmem.DirIn:
		where = fmt.Sprintf("target_id IN (%s)", placeholders)
	default:
		where = fmt.Sprintf("source_id IN (%s) OR target_id IN (%s)", placeholders, placeholders)
	}
	params := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		params = append(params, id)
	}
	if dir == graphmem.DirBoth {
		for _, id := range ids {
			params = append(params, id)
		}
	}
	sql := fmt.Sprintf(`SELECT id, type, source_id, target_id, properties FROM edges WHERE (%s)`, where)
	if len(edgeTypes) > 0 {
		tp := strings.TrimSuffix(strings.Repeat("?,", len(edgeTypes)), ",")
		sql += fmt.Sprintf(" AND type IN (%s)", tp)
		for _, t := range edgeTypes {
			params = append(params, t)
		}
	}
	res, err := s.Execute(ctx, store.Statement{SQL: sql, Params: params})
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, err, "fetch adjacent edges")
	}
	return res, nil
}

func rowToNodeRow(row map[string]any) graphmem.NodeRow {
	return graphmem.NodeRow{
		ID:        asString(row["id"]),
		LabelJSON: asString(row["label"]),
		PropsJSON: asString(row["properties"]),
	}
}

func rowToEdgeRow(row map[string]any) graphmem.EdgeRow {
	return graphmem.EdgeRow{
		ID:        asString(row["id"]),
		Type:      asString(row["type"]),
		Source:    asString(row["source_id"]),
		Target:    asString(row["target_id"]),
		PropsJSON: asString(row["properties"]),
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
