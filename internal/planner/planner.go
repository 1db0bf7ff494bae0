// Package planner decides whether a parsed MATCH...RETURN query is eligible
// for in-memory traversal instead of SQL translation (spec.md §4.5 Hybrid
// Planner), and extracts the chain parameters the hybrid executor needs.
package planner

import (
	"github.com/corvusdb/corvus/internal/ast"
)

// Plan is the outcome of evaluating one Query for hybrid eligibility.
type Plan struct {
	Eligible bool
	Reason   string // why Eligible is false; empty when Eligible is true
	Chain    *PatternChainParams
}

// PatternChainParams describes one MATCH pattern's node/edge chain in a form
// the hybrid executor can traverse directly, without holding onto AST nodes
// or host-language closures (spec.md §9 "Closure filters → predicate trees").
type PatternChainParams struct {
	AnchorVariable string
	AnchorLabel    string
	AnchorFilter   map[string]any // constant property filters on the anchor, resolved from the AST

	Hops []HopParams

	// Predicates holds the single-variable WHERE predicates that accompanied
	// the MATCH, each already bound to the one variable it inspects.
	Predicates []Predicate

	ReturnVariables []string
}

// HopParams is one relationship step in the chain.
type HopParams struct {
	EdgeTypes   []string
	Direction   ast.Direction
	MinHops     int
	MaxHops     int
	ToVariable  string
	ToLabel     string
	ToFilter    map[string]any
}

// Predicate is a serializable node describing one WHERE condition tied to a
// single pattern variable, evaluated during hybrid path verification.
type Predicate struct {
	Variable string
	Expr     ast.Expression // single-variable sub-expression; evaluated by internal/hybrid
}

// Evaluate applies spec.md §4.5's eligibility rules to one Query and, if
// eligible, extracts its PatternChainParams.
func Evaluate(q *ast.Query, defaultMaxHops int) Plan {
	if len(q.Clauses) != 2 {
		return Plan{Reason: "hybrid planning requires exactly one MATCH followed by one RETURN"}
	}
	m, ok := q.Clauses[0].(*ast.MatchClause)
	if !ok || m.Optional {
		return Plan{Reason: "first clause must be a required MATCH"}
	}
	ret, ok := q.Clauses[1].(*ast.ReturnClause)
	if !ok {
		return Plan{Reason: "second clause must be RETURN"}
	}
	if len(ret.OrderBy) > 0 {
		return Plan{Reason: "ORDER BY forces SQL translation"}
	}
	if returnHasAggregate(ret) {
		return Plan{Reason: "aggregate functions force SQL translation"}
	}
	if len(m.Patterns) != 1 {
		return Plan{Reason: "hybrid planning supports exactly one pattern per MATCH"}
	}
	p := m.Patterns[0]
	if len(p.Edges) == 0 {
		return Plan{Reason: "pattern has no relationship; nothing to traverse"}
	}
	for _, np := range p.Nodes {
		if len(np.Labels) == 0 {
			return Plan{Reason: "every node in the pattern must carry a label"}
		}
	}
	for _, ep := range p.Edges {
		if len(ep.Properties) > 0 {
			return Plan{Reason: "relationship property predicates are not supported by the hybrid path"}
		}
	}

	hasVarLength := false
	for _, ep := range p.Edges {
		if ep.VarLength {
			hasVarLength = true
		}
	}
	if !hasVarLength && len(p.Edges) < 2 {
		return Plan{Reason: "a single fixed-hop relationship is cheaper to translate directly to SQL"}
	}

	preds, err := extractPredicates(m.Where)
	if err != "" {
		return Plan{Reason: err}
	}
	for _, np := range p.Nodes {
		for k, e := range np.Properties {
			if _, ok := e.(*ast.Literal); ok {
				continue
			}
			if np.Variable == "" {
				return Plan{Reason: "non-constant property filters on an unnamed node are not hybrid-eligible"}
			}
			preds = append(preds, Predicate{Variable: np.Variable, Expr: &ast.BinaryOp{Op: "=", Left: &ast.PropertyAccess{Variable: np.Variable, Property: k}, Right: e}})
		}
	}

	anchor := p.Nodes[0]
	chain := &PatternChainParams{
		AnchorVariable: anchor.Variable,
		AnchorLabel:    anchor.Labels[0],
		AnchorFilter:   constantProps(anchor.Properties),
		Predicates:     preds,
	}
	for i, ep := range p.Edges {
		to := p.Nodes[i+1]
		minHops, maxHops := 1, 1
		if ep.VarLength {
			minHops = 1
			if ep.MinHops != nil {
				minHops = *ep.MinHops
			}
			maxHops = defaultMaxHops
			if ep.MaxHops != nil {
				maxHops = *ep.MaxHops
			}
		}
		chain.Hops = append(chain.Hops, HopParams{
			EdgeTypes:  ep.Types,
			Direction:  ep.Direction,
			MinHops:    minHops,
			MaxHops:    maxHops,
			ToVariable: to.Variable,
			ToLabel:    to.Labels[0],
			ToFilter:   constantProps(to.Properties),
		})
	}
	for _, item := range ret.Items {
		vr, ok := item.Expr.(*ast.VarRef)
		if !ok || (item.Alias != "" && item.Alias != vr.Name) {
			return Plan{Reason: "hybrid path only projects whole-node variables"}
		}
		chain.ReturnVariables = append(chain.ReturnVariables, vr.Name)
	}

	return Plan{Eligible: true, Chain: chain}
}

func returnHasAggregate(ret *ast.ReturnClause) bool {
	for _, item := range ret.Items {
		if containsAggregate(item.Expr) {
			return true
		}
	}
	return false
}

var aggregateNames = map[string]bool{"count": true, "sum": true, "avg": true, "min": true, "max": true}

func containsAggregate(e ast.Expression) bool {
	switch v := e.(type) {
	case *ast.FunctionCall:
		if aggregateNames[lower(v.Name)] {
			return true
		}
		for _, a := range v.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *ast.BinaryOp:
		return containsAggregate(v.Left) || containsAggregate(v.Right)
	case *ast.UnaryOp:
		return containsAggregate(v.Operand)
	}
	return false
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// constantProps resolves a node/edge pattern's property map to constant Go
// values, dropping (not erroring on) any non-constant entry — Evaluate turns
// those into equality Predicates instead.
func constantProps(props map[string]ast.Expression) map[string]any {
	out := map[string]any{}
	for k, e := range props {
		if lit, ok := e.(*ast.Literal); ok {
			out[k] = lit.Value
		}
	}
	return out
}

// extractPredicates enforces spec.md §4.5's restriction that hybrid-eligible
// WHERE clauses only contain predicates that each reference a single pattern
// variable, splitting on top-level AND.
func extractPredicates(where ast.Expression) ([]Predicate, string) {
	if where == nil {
		return nil, ""
	}
	var preds []Predicate
	var walk func(e ast.Expression) string
	walk = func(e ast.Expression) string {
		if b, ok := e.(*ast.BinaryOp); ok && b.Op == "AND" {
			if msg := walk(b.Left); msg != "" {
				return msg
			}
			return walk(b.Right)
		}
		vars := map[string]bool{}
		collectVars(e, vars)
		if len(vars) != 1 {
			return "WHERE predicates referencing more than one variable are not hybrid-eligible"
		}
		for v := range vars {
			preds = append(preds, Predicate{Variable: v, Expr: e})
		}
		return ""
	}
	if msg := walk(where); msg != "" {
		return nil, msg
	}
	return preds, ""
}

func collectVars(e ast.Expression, out map[string]bool) {
	switch v := e.(type) {
	case *ast.VarRef:
		out[v.Name] = true
	case *ast.PropertyAccess:
		out[v.Variable] = true
	case *ast.BinaryOp:
		collectVars(v.Left, out)
		collectVars(v.Right, out)
	case *ast.UnaryOp:
		collectVars(v.Operand, out)
	case *ast.FunctionCall:
		for _, a := range v.Args {
			collectVars(a, out)
		}
	}
}
