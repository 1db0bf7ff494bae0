package translator

import (
	"fmt"
	"strings"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/errs"
)

// filterCond is a WHERE-position SQL fragment contributed by a node or edge
// pattern's inline label/type/property filters.
type filterCond struct {
	sql    string
	params []any
}

// registerMatchPattern wires one comma-separated MATCH pattern into the
// Context's FROM/JOIN chain, returning the inline label/property filters the
// pattern itself implies (spec.md §4.2 "registered patterns").
func (c *Context) registerMatchPattern(p ast.Pattern, optional bool) ([]filterCond, error) {
	var conds []filterCond
	var prevAlias string

	for i, np := range p.Nodes {
		alias, isNew, err := c.ensureNode(np)
		if err != nil {
			return nil, err
		}
		if isNew {
			conds = append(conds, c.nodeFilterConds(alias, np)...)
			if i == 0 {
				c.joinNodeTable(alias, optional)
			}
		}
		if i > 0 {
			ep := p.Edges[i-1]
			nodeWasNew := isNew
			ec, err := c.registerEdgePattern(ep, prevAlias, alias, nodeWasNew, optional)
			if err != nil {
				return nil, err
			}
			conds = append(conds, ec...)
		}
		prevAlias = alias
	}
	return conds, nil
}

// ensureNode returns the table alias bound to np.Variable, creating a fresh
// one (and binding it) if this is the first time the variable appears.
func (c *Context) ensureNode(np ast.NodePattern) (alias string, isNew bool, err error) {
	if np.Variable != "" {
		if b, ok := c.vars[np.Variable]; ok {
			if b.Kind != BindNode {
				return "", false, errs.New(errs.KindUnsupported, "variable %q is already bound to a relationship", np.Variable)
			}
			return b.Alias, false, nil
		}
	}
	alias = c.nextAlias("n")
	c.bindNode(np.Variable, alias, np.Labels)
	return alias, true, nil
}

// joinNodeTable adds the first appearance of a node alias to the query's
// FROM clause (or a cross join, if a FROM clause already exists from an
// earlier disconnected pattern).
func (c *Context) joinNodeTable(alias string, optional bool) {
	if len(c.fromClauses) == 0 {
		c.fromClauses = append(c.fromClauses, "nodes "+alias)
		return
	}
	word := "JOIN"
	if optional {
		word = "LEFT JOIN"
	}
	c.joinClauses = append(c.joinClauses, fmt.Sprintf("%s nodes %s ON 1=1", word, alias))
}

func (c *Context) nodeFilterConds(alias string, np ast.NodePattern) []filterCond {
	var conds []filterCond
	for _, label := range np.Labels {
		conds = append(conds, filterCond{
			sql:    fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s.label) je WHERE je.value = ?)", alias),
			params: []any{label},
		})
	}
	for prop, expr := range np.Properties {
		val, err := c.resolveValue(expr)
		if err != nil {
			// non-constant property filters are compiled like a WHERE expression;
			// one the expression compiler also rejects is skipped
			fr, ferr := c.compileExpr(expr)
			if ferr != nil {
				continue
			}
			conds = append(conds, filterCond{
				sql:    fmt.Sprintf("json_extract(%s.properties, '$.%s') = %s", alias, prop, fr.sql),
				params: fr.params,
			})
			continue
		}
		conds = append(conds, filterCond{
			sql:    fmt.Sprintf("json_extract(%s.properties, '$.%s') = ?", alias, prop),
			params: []any{val},
		})
	}
	return conds
}

// registerEdgePattern wires one edge segment of a pattern chain, handling
// fixed-hop joins directly and variable-length hops via a recursive CTE
// (spec.md §4.2 "variable-length path → recursive CTE").
func (c *Context) registerEdgePattern(ep ast.EdgePattern, fromAlias, toAlias string, toIsNew, optional bool) ([]filterCond, error) {
	if ep.VarLength {
		return c.registerVarLengthEdge(ep, fromAlias, toAlias, toIsNew, optional)
	}
	return c.registerFixedEdge(ep, fromAlias, toAlias, toIsNew, optional)
}

func (c *Context) registerFixedEdge(ep ast.EdgePattern, fromAlias, toAlias string, toIsNew, optional bool) ([]filterCond, error) {
	edgeAlias := c.nextAlias("e")
	c.bindEdge(ep.Variable, edgeAlias, firstOr(ep.Types, ""))

	word := "JOIN"
	if optional {
		word = "LEFT JOIN"
	}

	var onParts []string
	switch ep.Direction {
	case ast.DirOut:
		onParts = append(onParts, fmt.Sprintf("%s.source_id = %s.id", edgeAlias, fromAlias))
	case ast.DirIn:
		onParts = append(onParts, fmt.Sprintf("%s.target_id = %s.id", edgeAlias, fromAlias))
	default:
		onParts = append(onParts, fmt.Sprintf("(%s.source_id = %s.id OR %s.target_id = %s.id)", edgeAlias, fromAlias, edgeAlias, fromAlias))
	}

	var edgeParams []any
	if len(ep.Types) > 0 {
		placeholders := strings.Repeat("?,", len(ep.Types))
		placeholders = strings.TrimSuffix(placeholders, ",")
		onParts = append(onParts, fmt.Sprintf("%s.type IN (%s)", edgeAlias, placeholders))
		for _, t := range ep.Types {
			edgeParams = append(edgeParams, t)
		}
	}
	c.joinClauses = append(c.joinClauses, fmt.Sprintf("%s edges %s ON %s", word, edgeAlias, strings.Join(onParts, " AND ")))
	if len(edgeParams) > 0 {
		c.extraJoinParams = append(c.extraJoinParams, edgeParams...)
	}

	var conds []filterCond
	for prop, expr := range ep.Properties {
		val, err := c.resolveValue(expr)
		if err != nil {
			continue
		}
		conds = append(conds, filterCond{
			sql:    fmt.Sprintf("json_extract(%s.properties, '$.%s') = ?", edgeAlias, prop),
			params: []any{val},
		})
	}

	if toIsNew {
		var toOn string
		switch ep.Direction {
		case ast.DirOut:
			toOn = fmt.Sprintf("%s.id = %s.target_id", toAlias, edgeAlias)
		case ast.DirIn:
			toOn = fmt.Sprintf("%s.id = %s.source_id", toAlias, edgeAlias)
		default:
			toOn = fmt.Sprintf("(%s.id = %s.target_id OR %s.id = %s.source_id) AND %s.id != %s.id", toAlias, edgeAlias, toAlias, edgeAlias, toAlias, fromAlias)
		}
		c.joinClauses = append(c.joinClauses, fmt.Sprintf("%s nodes %s ON %s", word, toAlias, toOn))
	} else {
		var eq string
		switch ep.Direction {
		case ast.DirOut:
			eq = fmt.Sprintf("%s.target_id = %s.id", edgeAlias, toAlias)
		case ast.DirIn:
			eq = fmt.Sprintf("%s.source_id = %s.id", edgeAlias, toAlias)
		default:
			eq = fmt.Sprintf("(%s.target_id = %s.id OR %s.source_id = %s.id)", edgeAlias, toAlias, edgeAlias, toAlias)
		}
		conds = append(conds, filterCond{sql: eq})
	}
	return conds, nil
}

// registerVarLengthEdge expands a `[*min..max]` relationship into a
// `WITH RECURSIVE` CTE over the edges table, bounded by maxHops (spec.md
// §4.2, §4.3 "guaranteed termination"). When the pattern leaves MaxHops
// unbounded a fixed cap of 50 is used; config.Config.DefaultMaxHops is not
// read here.
func (c *Context) registerVarLengthEdge(ep ast.EdgePattern, fromAlias, toAlias string, toIsNew, optional bool) ([]filterCond, error) {
	minHops := 1
	if ep.MinHops != nil {
		minHops = *ep.MinHops
	}
	maxHops := 50
	if ep.MaxHops != nil {
		maxHops = *ep.MaxHops
	}

	cteName := c.nextAlias("vlp")
	dirCol, otherCol := "source_id", "target_id"
	if ep.Direction == ast.DirIn {
		dirCol, otherCol = "target_id", "source_id"
	}

	typeFilter := ""
	var typeParams []any
	if len(ep.Types) > 0 {
		placeholders := strings.Repeat("?,", len(ep.Types))
		placeholders = strings.TrimSuffix(placeholders, ",")
		typeFilter = fmt.Sprintf(" AND type IN (%s)", placeholders)
		for _, t := range ep.Types {
			typeParams = append(typeParams, t)
		}
	}

	var baseCase, recursiveCase string
	var baseParams, recurParams []any
	if ep.Direction == ast.DirBoth {
		baseCase = fmt.Sprintf(
			`SELECT source_id AS start_id, target_id AS end_id, 1 AS depth FROM edges WHERE 1=1%s
			 UNION ALL
			 SELECT target_id AS start_id, source_id AS end_id, 1 AS depth FROM edges WHERE 1=1%s`,
			typeFilter, typeFilter)
		baseParams = append(append([]any{}, typeParams...), typeParams...)

		recursiveCase = fmt.Sprintf(
			`SELECT %s.start_id, edges.target_id, %s.depth + 1 FROM %s JOIN edges ON edges.source_id = %s.end_id WHERE %s.depth < ?%s
			 UNION ALL
			 SELECT %s.start_id, edges.source_id, %s.depth + 1 FROM %s JOIN edges ON edges.target_id = %s.end_id WHERE %s.depth < ?%s`,
			cteName, cteName, cteName, cteName, cteName, typeFilter,
			cteName, cteName, cteName, cteName, cteName, typeFilter)
		recurParams = append(recurParams, maxHops)
		recurParams = append(recurParams, typeParams...)
		recurParams = append(recurParams, maxHops)
		recurParams = append(recurParams, typeParams...)
	} else {
		baseCase = fmt.Sprintf(`SELECT %s AS start_id, %s AS end_id, 1 AS depth FROM edges WHERE 1=1%s`, dirCol, otherCol, typeFilter)
		baseParams = typeParams

		recursiveCase = fmt.Sprintf(
			`SELECT %s.start_id, edges.%s, %s.depth + 1 FROM %s JOIN edges ON edges.%s = %s.end_id WHERE %s.depth < ?%s`,
			cteName, otherCol, cteName, cteName, dirCol, cteName, cteName, typeFilter)
		recurParams = append(recurParams, maxHops)
		recurParams = append(recurParams, typeParams...)
	}

	c.ctes = append(c.ctes, cteDef{
		name:       cteName,
		baseSQL:    baseCase,
		baseParam:  baseParams,
		recurSQL:   recursiveCase,
		recurParam: recurParams,
		maxHops:    maxHops,
	})

	word := "JOIN"
	if optional {
		word = "LEFT JOIN"
	}
	c.joinClauses = append(c.joinClauses, fmt.Sprintf("%s %s ON %s.start_id = %s.id", word, cteName, cteName, fromAlias))

	var conds []filterCond
	conds = append(conds, filterCond{
		sql:    fmt.Sprintf("%s.depth BETWEEN ? AND ?", cteName),
		params: []any{minHops, maxHops},
	})

	if toIsNew {
		c.joinClauses = append(c.joinClauses, fmt.Sprintf("%s nodes %s ON %s.id = %s.end_id", word, toAlias, toAlias, cteName))
	} else {
		conds = append(conds, filterCond{sql: fmt.Sprintf("%s.end_id = %s.id", cteName, toAlias)})
	}
	return conds, nil
}

// cteDef is one WITH RECURSIVE branch backing a variable-length pattern.
type cteDef struct {
	name       string
	baseSQL    string
	baseParam  []any
	recurSQL   string
	recurParam []any
	maxHops    int
}

func firstOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return items[0]
}
