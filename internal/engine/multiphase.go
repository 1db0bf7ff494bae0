package engine

import (
	"context"
	"fmt"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/errs"
	"github.com/corvusdb/corvus/internal/format"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/translator"
)

// multiPhaseShape is a MATCH(...)+ CREATE [RETURN] query: a CREATE clause
// that can reference variables bound by a preceding MATCH needs those
// variables' concrete row ids before it can be compiled, since the
// Translator otherwise only knows them as a table alias inside a SELECT
// (spec.md §4.7 "Multi-phase MATCH→CREATE execution").
type multiPhaseShape struct {
	matches []*ast.MatchClause
	create  *ast.CreateClause
	ret     *ast.ReturnClause
}

// detectMultiPhase reports whether q is shaped as one or more MATCH clauses
// followed by exactly one CREATE and an optional trailing RETURN, with
// nothing else. Any other shape is left to the single-phase path.
func detectMultiPhase(q *ast.Query) *multiPhaseShape {
	var shape multiPhaseShape
	i := 0
	for i < len(q.Clauses) {
		m, ok := q.Clauses[i].(*ast.MatchClause)
		if !ok {
			break
		}
		shape.matches = append(shape.matches, m)
		i++
	}
	if len(shape.matches) == 0 || i >= len(q.Clauses) {
		return nil
	}
	create, ok := q.Clauses[i].(*ast.CreateClause)
	if !ok {
		return nil
	}
	shape.create = create
	i++
	if i < len(q.Clauses) {
		ret, ok := q.Clauses[i].(*ast.ReturnClause)
		if !ok || i != len(q.Clauses)-1 {
			return nil
		}
		shape.ret = ret
	}
	return &shape
}

// matchedVariables collects every distinct node/edge variable bound across
// shape's MATCH clauses, in first-seen order.
func matchedVariables(matches []*ast.MatchClause) []string {
	seen := map[string]bool{}
	var vars []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			vars = append(vars, v)
		}
	}
	for _, m := range matches {
		for _, p := range m.Patterns {
			for _, n := range p.Nodes {
				add(n.Variable)
			}
			for _, e := range p.Edges {
				add(e.Variable)
			}
		}
	}
	return vars
}

// runMultiPhase executes shape per spec.md §4.7 step 4: phase 1 resolves
// every matched variable's row id, phase 2 runs the CREATE (and the
// RETURN's projection) once per matched row, all inside one transaction.
func runMultiPhase(ctx context.Context, s *store.Store, shape *multiPhaseShape, params map[string]any) (*execResult, error) {
	vars := matchedVariables(shape.matches)

	phase1 := &ast.Query{}
	for _, m := range shape.matches {
		phase1.Clauses = append(phase1.Clauses, m)
	}
	var items []ast.ReturnItem
	for _, v := range vars {
		items = append(items, ast.ReturnItem{Expr: &ast.FunctionCall{Name: "id", Args: []ast.Expression{&ast.VarRef{Name: v}}}, Alias: v})
	}
	phase1.Clauses = append(phase1.Clauses, &ast.ReturnClause{Items: items})

	tr, err := translator.Translate(&ast.Statement{Queries: []*ast.Query{phase1}}, params)
	if err != nil {
		return nil, err
	}
	if tr.Select == nil {
		return nil, errs.New(errs.KindUnsupported, "multi-phase MATCH produced no rows to project")
	}

	matchRes, err := s.Execute(ctx, store.Statement{SQL: tr.Select.SQL, Params: tr.Select.Params})
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, err, "resolve matched variable ids")
	}

	var resultRows []format.Row
	var columns []string
	if shape.ret != nil {
		for _, item := range shape.ret.Items {
			columns = append(columns, returnItemName(item))
		}
	}

	var changes int64
	txErr := s.Transaction(ctx, func(tx *store.Tx) error {
		for _, row := range matchRes.Rows {
			rowIDs := map[string]string{}
			for _, v := range vars {
				id, _ := row[v].(string)
				rowIDs[v] = id
			}

			createCtx := translator.NewContext(params)
			for v, id := range rowIDs {
				createCtx.BindKnownID(v, id)
			}
			if err := createCtx.CompileCreateForMultiPhase(shape.create); err != nil {
				return err
			}
			for _, w := range createCtx.Statements() {
				res, err := tx.Execute(ctx, store.Statement{SQL: w.SQL, Params: w.Params})
				if err != nil {
					return err
				}
				changes += res.Changes
			}

			if shape.ret != nil {
				newIDs := createCtx.AllKnownIDs()
				for v, id := range rowIDs {
					newIDs[v] = id
				}
				rowOut, err := projectKnownRow(ctx, tx, shape.ret, newIDs)
				if err != nil {
					return err
				}
				resultRows = append(resultRows, rowOut)
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, errs.Wrap(errs.KindStore, txErr, "multi-phase MATCH→CREATE transaction")
	}

	return &execResult{Columns: columns, Rows: resultRows, Changes: changes}, nil
}

func returnItemName(item ast.ReturnItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	switch v := item.Expr.(type) {
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

// projectKnownRow evaluates a RETURN clause against variables whose row ids
// are already known (rather than bound to a SQL table alias), issuing one
// scalar subselect per item (spec.md §4.7's CREATE-phase RETURN).
func projectKnownRow(ctx context.Context, tx *store.Tx, ret *ast.ReturnClause, ids map[string]string) (format.Row, error) {
	var selectItems []string
	var params []any
	var columns []string
	for _, item := range ret.Items {
		name := returnItemName(item)
		columns = append(columns, name)
		sqlFrag, p, err := compileKnownIDExpr(item.Expr, ids)
		if err != nil {
			return nil, err
		}
		selectItems = append(selectItems, fmt.Sprintf("%s AS %q", sqlFrag, name))
		params = append(params, p...)
	}
	sql := "SELECT " + joinComma(selectItems)
	res, err := tx.Execute(ctx, store.Statement{SQL: sql, Params: params})
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, err, "project multi-phase RETURN row")
	}
	if len(res.Rows) == 0 {
		return format.Row{}, nil
	}
	return format.Rows(res.Rows, columns)[0], nil
}

func compileKnownIDExpr(e ast.Expression, ids map[string]string) (string, []any, error) {
	switch v := e.(type) {
	case *ast.VarRef:
		id, ok := ids[v.Name]
		if !ok {
			return "", nil, errs.New(errs.KindUnknownVariable, "variable %q is not bound", v.Name)
		}
		return `(SELECT json_object('id', id, 'labels', json(label), 'properties', json(properties)) FROM nodes WHERE id = ?
			UNION ALL SELECT json_object('id', id, 'type', type, 'source', source_id, 'target', target_id, 'properties', json(properties)) FROM edges WHERE id = ? LIMIT 1)`,
			[]any{id, id}, nil
	case *ast.PropertyAccess:
		id, ok := ids[v.Variable]
		if !ok {
			return "", nil, errs.New(errs.KindUnknownVariable, "variable %q is not bound", v.Variable)
		}
		if v.Property == "id" {
			return "?", []any{id}, nil
		}
		return `(SELECT json_extract(properties, '$.` + v.Property + `') FROM nodes WHERE id = ?
			UNION ALL SELECT json_extract(properties, '$.` + v.Property + `') FROM edges WHERE id = ? LIMIT 1)`,
			[]any{id, id}, nil
	case *ast.FunctionCall:
		if len(v.Args) == 1 {
			if vr, ok := v.Args[0].(*ast.VarRef); ok {
				if id, ok := ids[vr.Name]; ok {
					switch v.Name {
					case "id":
						return "?", []any{id}, nil
					case "labels":
						return `(SELECT json(label) FROM nodes WHERE id = ?)`, []any{id}, nil
					case "type":
						return `(SELECT type FROM edges WHERE id = ?)`, []any{id}, nil
					}
				}
			}
		}
	}
	return "", nil, errs.New(errs.KindUnsupported, "expression %T is not supported in a multi-phase RETURN", e)
}

func joinComma(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += it
	}
	return out
}
