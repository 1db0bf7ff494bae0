package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/errs"
)

// compileCreateClause emits one INSERT statement per node and edge pattern
// element that isn't already a known (matched) variable (spec.md §4.2
// "CREATE → parameterized INSERT"). Variables bound by an earlier MATCH in
// the same query (and therefore already present in c.vars as a BindNode with
// a table Alias) are never re-created: unless BindKnownID supplied their id
// they are rejected as unsupported. The engine resolves their concrete id
// via its multi-phase MATCH→CREATE handling (spec.md §4.7) and calls
// BindKnownID before compiling this phase.
func (c *Context) compileCreateClause(cl *ast.CreateClause) error {
	for _, p := range cl.Patterns {
		if err := c.compileCreatePattern(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) compileCreatePattern(p ast.Pattern) error {
	var prevID, prevVar string
	for i, np := range p.Nodes {
		id, err := c.ensureCreateNodeID(np)
		if err != nil {
			return err
		}
		if i > 0 {
			ep := p.Edges[i-1]
			if err := c.compileCreateEdge(ep, prevVar, prevID, np.Variable, id); err != nil {
				return err
			}
		}
		prevID, prevVar = id, np.Variable
	}
	return nil
}

// ensureCreateNodeID resolves the concrete row id CREATE should use for one
// node pattern element: the id of an already-known variable, or a freshly
// generated UUID backed by a new INSERT.
func (c *Context) ensureCreateNodeID(np ast.NodePattern) (string, error) {
	if np.Variable != "" {
		if b, ok := c.vars[np.Variable]; ok && b.Kind == BindNode && b.NewID != "" {
			return b.NewID, nil
		}
		if id, ok := c.knownIDs[np.Variable]; ok {
			c.vars[np.Variable] = &Binding{Kind: BindNode, NewID: id, Labels: np.Labels}
			return id, nil
		}
		if b, ok := c.vars[np.Variable]; ok && b.Alias != "" && b.NewID == "" {
			return "", errs.New(errs.KindUnsupported, "CREATE cannot reference variable %q bound by MATCH outside the multi-phase MATCH→CREATE path", np.Variable)
		}
	}
	id := c.newUUID()
	props := map[string]any{}
	for k, expr := range np.Properties {
		val, err := c.resolveValue(expr)
		if err != nil {
			return "", err
		}
		props[k] = val
	}
	labelJSON, err := json.Marshal(np.Labels)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidProperty, err, "encode labels")
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidProperty, err, "encode properties")
	}
	c.emit(`INSERT INTO nodes (id, label, properties) VALUES (?, ?, ?)`, []any{id, string(labelJSON), string(propsJSON)})
	if np.Variable != "" {
		c.vars[np.Variable] = &Binding{Kind: BindNode, NewID: id, Labels: np.Labels}
		c.order = append(c.order, np.Variable)
	}
	return id, nil
}

func (c *Context) compileCreateEdge(ep ast.EdgePattern, fromVar, fromID, toVar, toID string) error {
	if ep.VarLength {
		return errs.New(errs.KindUnsupported, "CREATE does not support variable-length relationship patterns")
	}
	sourceID, targetID := fromID, toID
	if ep.Direction == ast.DirIn {
		sourceID, targetID = toID, fromID
	}
	edgeID := c.newUUID()
	props := map[string]any{}
	for k, expr := range ep.Properties {
		val, err := c.resolveValue(expr)
		if err != nil {
			return err
		}
		props[k] = val
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return errs.Wrap(errs.KindInvalidProperty, err, "encode properties")
	}
	edgeType := firstOr(ep.Types, "")
	if edgeType == "" {
		return errs.New(errs.KindUnsupported, "CREATE requires a relationship type")
	}
	c.emit(`INSERT INTO edges (id, type, source_id, target_id, properties) VALUES (?, ?, ?, ?, ?)`,
		[]any{edgeID, edgeType, sourceID, targetID, string(propsJSON)})
	if ep.Variable != "" {
		c.vars[ep.Variable] = &Binding{Kind: BindEdge, NewID: edgeID, EdgeTyp: edgeType}
		c.order = append(c.order, ep.Variable)
	}
	return nil
}

// BindKnownID tells the Context that variable already resolves to id,
// letting a second translation phase (the engine's post-MATCH CREATE phase,
// spec.md §4.7) treat it as an existing row rather than creating a new one.
func (c *Context) BindKnownID(variable, id string) {
	if c.knownIDs == nil {
		c.knownIDs = map[string]string{}
	}
	c.knownIDs[variable] = id
}

// compileMergeClause supports the common single-node MERGE form: match-or-
// create one node, applying ON CREATE SET only to the inserted row and ON
// MATCH SET to a pre-existing one (spec.md §4.2 "MERGE → INSERT ... WHERE
// NOT EXISTS"). Multi-node/edge MERGE patterns are not translated here.
func (c *Context) compileMergeClause(cl *ast.MergeClause) error {
	if len(cl.Pattern.Nodes) != 1 || len(cl.Pattern.Edges) != 0 {
		return errs.New(errs.KindUnsupported, "MERGE is only supported for a single node pattern")
	}
	np := cl.Pattern.Nodes[0]

	matchConds, matchParams := c.staticNodeMatchConds("nodes", np)

	props := map[string]any{}
	for k, expr := range np.Properties {
		val, err := c.resolveValue(expr)
		if err != nil {
			return err
		}
		props[k] = val
	}
	for _, item := range cl.OnCreateSet {
		if item.Property == "" {
			continue
		}
		val, err := c.resolveValue(item.Value)
		if err != nil {
			return err
		}
		props[item.Property] = val
	}

	id := c.newUUID()
	labelJSON, _ := json.Marshal(np.Labels)
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return errs.Wrap(errs.KindInvalidProperty, err, "encode properties")
	}

	insertSQL := fmt.Sprintf(
		`INSERT INTO nodes (id, label, properties) SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM nodes WHERE %s)`,
		strings.Join(matchConds, " AND "))
	insertParams := append([]any{id, string(labelJSON), string(propsJSON)}, matchParams...)

	if len(cl.OnMatchSet) > 0 {
		setSQL, setParams, err := c.buildJSONSetSQL("nodes", cl.OnMatchSet)
		if err != nil {
			return err
		}
		updateSQL := fmt.Sprintf(`UPDATE nodes SET %s WHERE %s`, setSQL, strings.Join(matchConds, " AND "))
		c.emit(updateSQL, append(setParams, matchParams...))
	}
	c.emit(insertSQL, insertParams)

	alias := c.nextAlias("n")
	c.fromClauses = nil // MERGE stands alone; a subsequent RETURN addresses the merged row by a fresh lookup
	c.joinClauses = nil
	c.fromClauses = append(c.fromClauses, "nodes "+alias)
	aliasedConds := strings.Replace(strings.Join(matchConds, " AND "), "nodes.", alias+".", -1)
	c.inlineFilters = append(c.inlineFilters, filterCond{sql: aliasedConds, params: matchParams})
	if np.Variable != "" {
		c.bindNode(np.Variable, alias, np.Labels)
	}
	return nil
}

// staticNodeMatchConds builds the label/property equality conditions used to
// test whether a MERGE target already exists.
func (c *Context) staticNodeMatchConds(table string, np ast.NodePattern) ([]string, []any) {
	var conds []string
	var params []any
	for _, label := range np.Labels {
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s.label) je WHERE je.value = ?)", table))
		params = append(params, label)
	}
	for prop, expr := range np.Properties {
		val, err := c.resolveValue(expr)
		if err != nil {
			continue
		}
		conds = append(conds, fmt.Sprintf("json_extract(%s.properties, '$.%s') = ?", table, prop))
		params = append(params, val)
	}
	if len(conds) == 0 {
		conds = append(conds, "1=1")
	}
	return conds, params
}

// compileSetClause emits UPDATE statements for each distinct variable
// targeted by SET, applying property assignments via json_set and label
// additions via a guarded json_insert (spec.md §4.2 "SET → json_set").
func (c *Context) compileSetClause(cl *ast.SetClause) error {
	byVar := map[string][]ast.SetItem{}
	var order []string
	for _, item := range cl.Items {
		if _, ok := byVar[item.Variable]; !ok {
			order = append(order, item.Variable)
		}
		byVar[item.Variable] = append(byVar[item.Variable], item)
	}
	for _, variable := range order {
		b, err := c.lookup(variable)
		if err != nil {
			return err
		}
		table := "nodes"
		if b.Kind == BindEdge {
			table = "edges"
		}
		setSQL, setParams, err := c.buildJSONSetSQL(table, byVar[variable])
		if err != nil {
			return err
		}
		if setSQL == "" {
			continue
		}
		idSQL, idParams, err := c.buildIDSubquery(b.Alias)
		if err != nil {
			return err
		}
		sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id IN (%s)`, table, setSQL, idSQL)
		c.emit(sql, append(setParams, idParams...))
	}
	return nil
}

// buildJSONSetSQL turns a batch of SET items belonging to one variable into
// a single "properties = json_set(...)" / "label = ..." assignment list.
func (c *Context) buildJSONSetSQL(table string, items []ast.SetItem) (string, []any, error) {
	var propAssign []string
	var params []any
	var labelAssign string
	var labelParams []any
	for _, item := range items {
		switch {
		case item.Property != "":
			val, err := c.resolveValue(item.Value)
			if err != nil {
				return "", nil, err
			}
			encoded, err := json.Marshal(val)
			if err != nil {
				return "", nil, errs.Wrap(errs.KindInvalidProperty, err, "encode value for %s", item.Property)
			}
			propAssign = append(propAssign, fmt.Sprintf("'$.%s'", item.Property), "json(?)")
			params = append(params, string(encoded))
		case item.Label != "":
			labelAssign = fmt.Sprintf(
				"CASE WHEN EXISTS (SELECT 1 FROM json_each(label) je WHERE je.value = ?) THEN label ELSE json_insert(label, '$[#]', ?) END",
			)
			labelParams = append(labelParams, item.Label, item.Label)
		}
	}
	var assigns []string
	var allParams []any
	if len(propAssign) > 0 {
		assigns = append(assigns, fmt.Sprintf("properties = json_set(properties, %s)", strings.Join(propAssign, ", ")))
		allParams = append(allParams, params...)
	}
	if labelAssign != "" {
		assigns = append(assigns, "label = "+labelAssign)
		allParams = append(allParams, labelParams...)
	}
	return strings.Join(assigns, ", "), allParams, nil
}

// compileRemoveClause mirrors compileSetClause for REMOVE: property removal
// via json_remove, label removal via a json_each-indexed json_remove.
func (c *Context) compileRemoveClause(cl *ast.RemoveClause) error {
	byVar := map[string][]ast.RemoveItem{}
	var order []string
	for _, item := range cl.Items {
		if _, ok := byVar[item.Variable]; !ok {
			order = append(order, item.Variable)
		}
		byVar[item.Variable] = append(byVar[item.Variable], item)
	}
	for _, variable := range order {
		b, err := c.lookup(variable)
		if err != nil {
			return err
		}
		table := "nodes"
		if b.Kind == BindEdge {
			table = "edges"
		}
		var propPaths []string
		var labelAssign string
		var labelParams []any
		for _, item := range byVar[variable] {
			switch {
			case item.Property != "":
				propPaths = append(propPaths, fmt.Sprintf("'$.%s'", item.Property))
			case item.Label != "":
				labelAssign = `(SELECT json_group_array(je.value) FROM json_each(label) je WHERE je.value != ?)`
				labelParams = append(labelParams, item.Label)
			}
		}
		var assigns []string
		var params []any
		if len(propPaths) > 0 {
			assigns = append(assigns, fmt.Sprintf("properties = json_remove(properties, %s)", strings.Join(propPaths, ", ")))
		}
		if labelAssign != "" {
			assigns = append(assigns, "label = "+labelAssign)
			params = append(params, labelParams...)
		}
		if len(assigns) == 0 {
			continue
		}
		idSQL, idParams, err := c.buildIDSubquery(b.Alias)
		if err != nil {
			return err
		}
		sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id IN (%s)`, table, strings.Join(assigns, ", "), idSQL)
		c.emit(sql, append(params, idParams...))
	}
	return nil
}

// compileDeleteClause emits a DELETE per targeted variable. DETACH DELETE
// relies on the edges table's ON DELETE CASCADE foreign keys (spec.md §6) to
// remove incident relationships; a plain DELETE on a node with remaining
// edges surfaces as a store-level constraint error, matching spec.md §4.2's
// "DELETE on a node with edges -> constraint violation" edge case.
func (c *Context) compileDeleteClause(cl *ast.DeleteClause) error {
	for _, variable := range cl.Variables {
		b, err := c.lookup(variable)
		if err != nil {
			return err
		}
		table := "nodes"
		if b.Kind == BindEdge {
			table = "edges"
		}
		idSQL, idParams, err := c.buildIDSubquery(b.Alias)
		if err != nil {
			return err
		}
		sql := fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, table, idSQL)
		c.emit(sql, idParams)
	}
	return nil
}

// buildIDSubquery produces "SELECT alias.id FROM <registered joins> WHERE
// <registered conditions>", used to target SET/REMOVE/DELETE statements at
// rows selected by the query's MATCH clauses (SQLite's UPDATE/DELETE do not
// support arbitrary join syntax).
func (c *Context) buildIDSubquery(alias string) (string, []any, error) {
	return c.assembleSelect([]frag{{sql: alias + ".id"}}, false)
}

// compileWithClause folds a WITH projection's aliases into the context so a
// later RETURN (or ORDER BY/WHERE) can refer to them, and applies WITH's own
// WHERE as a pre-filter on the accumulated join (spec.md §4.2 "WITH → scope
// handoff"). Full per-stage re-aggregation is out of scope; WITH is treated
// as a single continuous SELECT's projection stage, which covers the
// non-aggregating pass-through pipelines spec.md's scenarios exercise.
func (c *Context) compileWithClause(cl *ast.WithClause) error {
	if c.mods.aliases == nil {
		c.mods.aliases = map[string]ast.Expression{}
	}
	for _, item := range cl.Items {
		if item.Alias != "" {
			c.mods.aliases[item.Alias] = item.Expr
		}
	}
	if cl.Where != nil {
		c.whereConds = append(c.whereConds, cl.Where)
	}
	c.mods.active = true
	c.mods.distinct = cl.Distinct
	c.mods.orderBy = cl.OrderBy
	c.mods.skip = cl.Skip
	c.mods.limit = cl.Limit
	return nil
}

// resolveAliasedExpr substitutes a WITH-introduced alias with the expression
// it stands for, so RETURN/ORDER BY can reference WITH projections by name.
func (c *Context) resolveAliasedExpr(e ast.Expression) ast.Expression {
	if vr, ok := e.(*ast.VarRef); ok && c.mods.aliases != nil {
		if aliased, ok := c.mods.aliases[vr.Name]; ok {
			return aliased
		}
	}
	return e
}

// compileUnwindClause joins the list-valued source expression against
// json_each and records the per-row value column so later clauses can refer
// to cl.Variable as an ordinary expression (spec.md §4.2 "UNWIND →
// json_each join").
func (c *Context) compileUnwindClause(cl *ast.UnwindClause) error {
	src, err := c.compileExpr(cl.Source)
	if err != nil {
		return err
	}
	idx := len(c.joinClauses)
	jeAlias := fmt.Sprintf("je%d", idx)
	c.joinClauses = append(c.joinClauses, fmt.Sprintf("JOIN json_each(%s) %s", src.sql, jeAlias))
	c.extraJoinParams = append(c.extraJoinParams, src.params...)
	if c.unwindSQLAliases == nil {
		c.unwindSQLAliases = map[string]string{}
	}
	c.unwindSQLAliases[cl.Variable] = jeAlias + ".value"
	return nil
}
