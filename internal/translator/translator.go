package translator

import (
	"fmt"
	"strings"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/errs"
)

// Translation is the compiled output of one Cypher statement: zero or more
// write statements to run inside one transaction, plus an optional final
// SELECT and its projected column names (spec.md §4.2).
type Translation struct {
	Writes  []Stmt
	Select  *Stmt
	Columns []string
}

// Translate compiles a parsed Statement into a Translation. Each UNION
// branch gets its own Context (spec.md §4.2 "UNION/UNION ALL → independent
// contexts concatenated"); only the first branch's write statements are
// meaningful since spec.md restricts UNION branches to be read-only by
// construction of the grammar's RETURN requirement.
func Translate(stmt *ast.Statement, params map[string]any) (*Translation, error) {
	var writes []Stmt
	var selectParts []string
	var selectParams []any
	var columns []string

	for _, q := range stmt.Queries {
		ctx := NewContext(params)
		sel, cols, err := ctx.compileQuery(q)
		if err != nil {
			return nil, err
		}
		writes = append(writes, ctx.statements...)
		if sel != nil {
			if columns == nil {
				columns = cols
			}
			selectParts = append(selectParts, "SELECT * FROM ("+sel.SQL+")")
			selectParams = append(selectParams, sel.Params...)
		}
	}

	var out Translation
	out.Writes = writes
	out.Columns = columns
	if len(selectParts) > 0 {
		var sb strings.Builder
		sb.WriteString(selectParts[0])
		for i := 1; i < len(selectParts); i++ {
			word := "UNION"
			if i-1 < len(stmt.UnionAll) && stmt.UnionAll[i-1] {
				word = "UNION ALL"
			}
			sb.WriteString(" " + word + " " + selectParts[i])
		}
		out.Select = &Stmt{SQL: sb.String(), Params: selectParams}
	}
	return &out, nil
}

// compileQuery walks one linear clause chain, accumulating write statements
// on the Context and returning the final RETURN's compiled SELECT (nil for a
// write-only query with no RETURN).
func (c *Context) compileQuery(q *ast.Query) (*Stmt, []string, error) {
	for _, clause := range q.Clauses {
		switch cl := clause.(type) {
		case *ast.MatchClause:
			for _, p := range cl.Patterns {
				conds, err := c.registerMatchPattern(p, cl.Optional)
				if err != nil {
					return nil, nil, err
				}
				c.inlineFilters = append(c.inlineFilters, conds...)
			}
			if cl.Where != nil {
				if cl.Optional {
					c.optionalWhereConds[fmt.Sprintf("optional%d", len(c.optionalWhereConds))] = cl.Where
				} else {
					c.whereConds = append(c.whereConds, cl.Where)
				}
			}

		case *ast.CreateClause:
			if err := c.compileCreateClause(cl); err != nil {
				return nil, nil, err
			}

		case *ast.MergeClause:
			if err := c.compileMergeClause(cl); err != nil {
				return nil, nil, err
			}

		case *ast.SetClause:
			if err := c.compileSetClause(cl); err != nil {
				return nil, nil, err
			}

		case *ast.RemoveClause:
			if err := c.compileRemoveClause(cl); err != nil {
				return nil, nil, err
			}

		case *ast.DeleteClause:
			if err := c.compileDeleteClause(cl); err != nil {
				return nil, nil, err
			}

		case *ast.WithClause:
			if err := c.compileWithClause(cl); err != nil {
				return nil, nil, err
			}

		case *ast.UnwindClause:
			if err := c.compileUnwindClause(cl); err != nil {
				return nil, nil, err
			}

		case *ast.ReturnClause:
			return c.compileReturnClause(cl)

		default:
			return nil, nil, errs.New(errs.KindUnsupported, "clause type %T is not supported", clause)
		}
	}
	return nil, nil, nil
}

// compileReturnClause builds the final SELECT for a query (spec.md §4.2
// "RETURN → SELECT synthesis with join chains").
func (c *Context) compileReturnClause(cl *ast.ReturnClause) (*Stmt, []string, error) {
	var frags []frag
	var columns []string
	for _, item := range cl.Items {
		expr := c.resolveAliasedExpr(item.Expr)
		fr, err := c.compileExpr(expr)
		if err != nil {
			return nil, nil, err
		}
		name := item.Alias
		if name == "" {
			name = deriveColumnName(item.Expr)
		}
		frags = append(frags, frag{sql: fr.sql + ` AS "` + name + `"`, params: fr.params})
		columns = append(columns, name)
	}

	// RETURN's own modifiers take precedence over a preceding WITH's, since
	// both ultimately shape the same concatenated SELECT.
	c.mods.distinct = cl.Distinct
	if len(cl.OrderBy) > 0 {
		c.mods.orderBy = cl.OrderBy
	}
	if cl.Skip != nil {
		c.mods.skip = cl.Skip
	}
	if cl.Limit != nil {
		c.mods.limit = cl.Limit
	}

	sql, params, err := c.assembleSelect(frags, true)
	if err != nil {
		return nil, nil, err
	}
	return &Stmt{SQL: sql, Params: params}, columns, nil
}

// assembleSelect renders the accumulated FROM/JOIN/CTE/WHERE state into one
// SELECT statement, projecting selectFrags (each already carrying its own
// "AS alias" suffix where applicable).
func (c *Context) assembleSelect(selectFrags []frag, applyModifiers bool) (string, []any, error) {
	var sb strings.Builder
	var params []any

	if len(c.ctes) > 0 {
		sb.WriteString("WITH RECURSIVE ")
		parts := make([]string, 0, len(c.ctes))
		var cteParams []any
		for _, cte := range c.ctes {
			parts = append(parts, fmt.Sprintf("%s(start_id, end_id, depth) AS (%s UNION ALL %s)", cte.name, cte.baseSQL, cte.recurSQL))
			cteParams = append(cteParams, cte.baseParam...)
			cteParams = append(cteParams, cte.recurParam...)
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString(" ")
		params = append(params, cteParams...)
	}

	sb.WriteString("SELECT ")
	if applyModifiers && c.mods.distinct {
		sb.WriteString("DISTINCT ")
	}
	items := make([]string, 0, len(selectFrags))
	for _, f := range selectFrags {
		items = append(items, f.sql)
		params = append(params, f.params...)
	}
	sb.WriteString(strings.Join(items, ", "))

	sb.WriteString(" FROM ")
	if len(c.fromClauses) == 0 {
		sb.WriteString("(SELECT 1) dual")
	} else {
		sb.WriteString(strings.Join(c.fromClauses, ", "))
	}
	for _, j := range c.joinClauses {
		sb.WriteString(" ")
		sb.WriteString(j)
	}
	params = append(params, c.extraJoinParams...)

	var condSQL []string
	for _, f := range c.inlineFilters {
		condSQL = append(condSQL, f.sql)
		params = append(params, f.params...)
	}
	for _, e := range c.whereConds {
		fr, err := c.compileExpr(c.resolveAliasedExpr(e))
		if err != nil {
			return "", nil, err
		}
		condSQL = append(condSQL, fr.sql)
		params = append(params, fr.params...)
	}
	for _, e := range c.optionalWhereConds {
		fr, err := c.compileExpr(c.resolveAliasedExpr(e))
		if err != nil {
			return "", nil, err
		}
		condSQL = append(condSQL, fr.sql)
		params = append(params, fr.params...)
	}
	if len(condSQL) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(condSQL, " AND "))
	}

	if applyModifiers {
		if len(c.mods.orderBy) > 0 {
			var items []string
			for _, o := range c.mods.orderBy {
				fr, err := c.compileExpr(c.resolveAliasedExpr(o.Expr))
				if err != nil {
					return "", nil, err
				}
				dir := "ASC"
				if o.Descending {
					dir = "DESC"
				}
				items = append(items, fr.sql+" "+dir)
				params = append(params, fr.params...)
			}
			sb.WriteString(" ORDER BY " + strings.Join(items, ", "))
		}
		if c.mods.limit != nil {
			val, err := c.resolveValue(c.mods.limit)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(" LIMIT ?")
			params = append(params, val)
		}
		if c.mods.skip != nil {
			val, err := c.resolveValue(c.mods.skip)
			if err != nil {
				return "", nil, err
			}
			if c.mods.limit == nil {
				sb.WriteString(" LIMIT -1")
			}
			sb.WriteString(" OFFSET ?")
			params = append(params, val)
		}
	}
	return sb.String(), params, nil
}

func deriveColumnName(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.VarRef:
		return v.Name
	case *ast.PropertyAccess:
		return v.Variable + "." + v.Property
	case *ast.FunctionCall:
		return v.Name
	default:
		return "expr"
	}
}
