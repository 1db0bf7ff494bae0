// Package hybrid executes a planner.Plan by materializing a bounded subgraph
// and backtracking through it hop by hop, instead of compiling the pattern
// to SQL (spec.md §4.6 Hybrid Executor).
package hybrid

import (
	"context"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/errs"
	"github.com/corvusdb/corvus/internal/graphmem"
	"github.com/corvusdb/corvus/internal/loader"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/store"
)

// Row is one emitted match: pattern variable name -> materialized node.
type Row map[string]*graphmem.Node

// Execute runs chain against the tenant store: discovers anchors, loads a
// subgraph sized to the chain's total hop budget, then backtracks through it
// hop by hop, verifying labels and single-variable predicates along the way
// (spec.md §4.6).
func Execute(ctx context.Context, s *store.Store, chain *planner.PatternChainParams, params map[string]any) ([]Row, error) {
	anchorIDs, err := loader.FindAnchors(ctx, s, loader.AnchorFilter{
		Label:      chain.AnchorLabel,
		Properties: chain.AnchorFilter,
	})
	if err != nil {
		return nil, err
	}
	if len(anchorIDs) == 0 {
		return nil, nil
	}

	totalHops := 0
	for _, h := range chain.Hops {
		totalHops += h.MaxHops
	}
	edgeTypes := uniqueEdgeTypes(chain.Hops)
	direction := graphmem.DirBoth

	g, err := loader.LoadSubgraph(ctx, s, loader.Options{
		AnchorIDs: anchorIDs,
		MaxDepth:  totalHops,
		EdgeTypes: edgeTypes,
		Direction: direction,
	})
	if err != nil {
		return nil, err
	}

	predsByVar := map[string][]ast.Expression{}
	for _, p := range chain.Predicates {
		predsByVar[p.Variable] = append(predsByVar[p.Variable], p.Expr)
	}

	var rows []Row
	for _, anchorID := range anchorIDs {
		anchorNode := g.GetNode(anchorID)
		if anchorNode == nil {
			continue
		}
		if !satisfies(anchorNode, predsByVar[chain.AnchorVariable], params) {
			continue
		}
		bindings := Row{chain.AnchorVariable: anchorNode}
		walkHop(g, anchorNode.ID, chain.Hops, 0, bindings, predsByVar, params, &rows)
	}
	return rows, nil
}

// walkHop performs the backtracking DFS described in spec.md §4.6: one hop
// at a time, verifying the target label and any single-variable predicate
// before recursing into the next hop.
func walkHop(g *graphmem.Graph, fromID string, hops []planner.HopParams, idx int, bindings Row, preds map[string][]ast.Expression, params map[string]any, out *[]Row) {
	if idx == len(hops) {
		*out = append(*out, cloneRow(bindings))
		return
	}
	hop := hops[idx]
	dir := dirFromAST(hop.Direction)
	edgeType := ""
	if len(hop.EdgeTypes) == 1 {
		edgeType = hop.EdgeTypes[0]
	}

	g.TraversePaths(fromID, edgeType, max1(hop.MinHops), hop.MaxHops, dir, func(p graphmem.Path) bool {
		if len(p.NodeIDs) == 0 {
			return true
		}
		endID := p.End()
		node := g.GetNode(endID)
		if node == nil {
			return true
		}
		if hop.ToLabel != "" && !hasLabel(node, hop.ToLabel) {
			return true
		}
		if !matchesFilter(node, hop.ToFilter) {
			return true
		}
		if !satisfies(node, preds[hop.ToVariable], params) {
			return true
		}
		bindings[hop.ToVariable] = node
		walkHop(g, endID, hops, idx+1, bindings, preds, params, out)
		delete(bindings, hop.ToVariable)
		return true
	})
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func dirFromAST(d ast.Direction) graphmem.Direction {
	switch d {
	case ast.DirOut:
		return graphmem.DirOut
	case ast.DirIn:
		return graphmem.DirIn
	default:
		return graphmem.DirBoth
	}
}

func hasLabel(n *graphmem.Node, label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func matchesFilter(n *graphmem.Node, filter map[string]any) bool {
	for k, v := range filter {
		if n.Properties[k] != v {
			return false
		}
	}
	return true
}

// satisfies evaluates every single-variable predicate attached to node's
// pattern variable against the node's own properties (spec.md §4.6 "label +
// predicate verification").
func satisfies(n *graphmem.Node, preds []ast.Expression, params map[string]any) bool {
	for _, p := range preds {
		ok, err := evalPredicate(p, n, params)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func evalPredicate(e ast.Expression, n *graphmem.Node, params map[string]any) (bool, error) {
	v, err := evalExpr(e, n, params)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errs.New(errs.KindUnsupported, "predicate did not evaluate to a boolean")
	}
	return b, nil
}

func evalExpr(e ast.Expression, n *graphmem.Node, params map[string]any) (any, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Value, nil
	case *ast.ParamRef:
		val, ok := params[v.Name]
		if !ok {
			return nil, errs.New(errs.KindUnsupported, "unbound parameter $%s", v.Name)
		}
		return val, nil
	case *ast.PropertyAccess:
		if v.Property == "id" {
			return n.ID, nil
		}
		return n.Properties[v.Property], nil
	case *ast.UnaryOp:
		inner, err := evalExpr(v.Operand, n, params)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case "NOT":
			b, _ := inner.(bool)
			return !b, nil
		case "IS NULL":
			return inner == nil, nil
		case "IS NOT NULL":
			return inner != nil, nil
		}
		return nil, errs.New(errs.KindUnsupported, "unary operator %q not supported in hybrid predicates", v.Op)
	case *ast.BinaryOp:
		left, err := evalExpr(v.Left, n, params)
		if err != nil {
			return nil, err
		}
		if v.Op == "AND" || v.Op == "OR" {
			lb, _ := left.(bool)
			if v.Op == "AND" && !lb {
				return false, nil
			}
			if v.Op == "OR" && lb {
				return true, nil
			}
			right, err := evalExpr(v.Right, n, params)
			if err != nil {
				return nil, err
			}
			rb, _ := right.(bool)
			return rb, nil
		}
		right, err := evalExpr(v.Right, n, params)
		if err != nil {
			return nil, err
		}
		return compare(v.Op, left, right)
	default:
		return nil, errs.New(errs.KindUnsupported, "expression type %T not supported in hybrid predicates", e)
	}
}

func compare(op string, left, right any) (any, error) {
	switch op {
	case "=":
		return left == right, nil
	case "<>":
		return left != right, nil
	}
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, errs.New(errs.KindUnsupported, "operator %q requires numeric operands", op)
	}
	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, errs.New(errs.KindUnsupported, "operator %q not supported in hybrid predicates", op)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return float64(n), true
	default:
		return 0, false
	}
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func uniqueEdgeTypes(hops []planner.HopParams) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range hops {
		for _, t := range h.EdgeTypes {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
