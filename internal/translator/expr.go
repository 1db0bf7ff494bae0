package translator

import (
	"fmt"
	"strings"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/errs"
)

// frag is a compiled expression: a SQL fragment plus the positional
// parameters it references, in order.
type frag struct {
	sql    string
	params []any
}

func lit(sql string, params ...any) frag { return frag{sql: sql, params: params} }

// compileExpr turns one Expression into a SQL fragment evaluable against the
// aliases currently registered in the Context (spec.md §4.2 "Expression
// evaluator").
func (c *Context) compileExpr(e ast.Expression) (frag, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return lit("?", v.Value), nil

	case *ast.ParamRef:
		val, ok := c.params[v.Name]
		if !ok {
			return frag{}, errs.New(errs.KindUnsupported, "unbound query parameter $%s", v.Name)
		}
		return lit("?", val), nil

	case *ast.VarRef:
		if sql, ok := c.unwindSQLAliases[v.Name]; ok {
			return lit(sql), nil
		}
		if c.mods.aliases != nil {
			if aliased, ok := c.mods.aliases[v.Name]; ok {
				return c.compileExpr(aliased)
			}
		}
		b, err := c.lookup(v.Name)
		if err != nil {
			return frag{}, err
		}
		return c.projectBinding(v.Name, b), nil

	case *ast.PropertyAccess:
		if sql, ok := c.unwindSQLAliases[v.Variable]; ok {
			return lit(fmt.Sprintf("json_extract(%s, '$.%s')", sql, v.Property)), nil
		}
		b, err := c.lookup(v.Variable)
		if err != nil {
			return frag{}, err
		}
		return c.propertyFrag(b, v.Property), nil

	case *ast.FunctionCall:
		return c.compileFunctionCall(v)

	case *ast.ListLiteral:
		parts := make([]string, 0, len(v.Items))
		var params []any
		for _, item := range v.Items {
			f, err := c.compileExpr(item)
			if err != nil {
				return frag{}, err
			}
			parts = append(parts, f.sql)
			params = append(params, f.params...)
		}
		return frag{sql: "(" + strings.Join(parts, ", ") + ")", params: params}, nil

	case *ast.MapLiteral:
		return frag{}, errs.New(errs.KindUnsupported, "map literals are only supported in CREATE/SET property position")

	case *ast.BinaryOp:
		return c.compileBinaryOp(v)

	case *ast.UnaryOp:
		return c.compileUnaryOp(v)

	case *ast.CaseExpr:
		return c.compileCase(v)

	case *ast.ListComprehension:
		return frag{}, errs.New(errs.KindUnsupported, "list comprehensions are not translatable to SQL directly")

	case *ast.ExistsPattern:
		return frag{}, errs.New(errs.KindUnsupported, "EXISTS(pattern) requires the hybrid executor")

	default:
		return frag{}, errs.New(errs.KindUnsupported, "expression type %T is not supported", e)
	}
}

// propertyFrag compiles `variable.property`. "id" on a node or edge binding
// addresses the primary-key column directly rather than the JSON blob.
func (c *Context) propertyFrag(b *Binding, property string) frag {
	switch {
	case property == "id":
		return lit(b.Alias + ".id")
	case b.Kind == BindEdge && property == "type":
		return lit(b.Alias + ".type")
	case b.Kind == BindEdge && property == "source_id":
		return lit(b.Alias + ".source_id")
	case b.Kind == BindEdge && property == "target_id":
		return lit(b.Alias + ".target_id")
	default:
		return lit(fmt.Sprintf("json_extract(%s.properties, '$.%s')", b.Alias, property))
	}
}

// projectBinding compiles a bare variable reference into the JSON object
// returned for that node/edge in RETURN rows (spec.md §4.8 Result formatting
// expects one JSON-encoded object per returned node/edge).
func (c *Context) projectBinding(name string, b *Binding) frag {
	switch b.Kind {
	case BindNode:
		return lit(fmt.Sprintf(
			"json_object('id', %s.id, 'labels', json(%s.label), 'properties', json(%s.properties))",
			b.Alias, b.Alias, b.Alias))
	default:
		return lit(fmt.Sprintf(
			"json_object('id', %s.id, 'type', %s.type, 'source', %s.source_id, 'target', %s.target_id, 'properties', json(%s.properties))",
			b.Alias, b.Alias, b.Alias, b.Alias, b.Alias))
	}
}

func (c *Context) compileFunctionCall(f *ast.FunctionCall) (frag, error) {
	name := strings.ToLower(f.Name)
	switch name {
	case "id":
		if len(f.Args) != 1 {
			return frag{}, errs.New(errs.KindUnsupported, "id() takes exactly one argument")
		}
		vr, ok := f.Args[0].(*ast.VarRef)
		if !ok {
			return frag{}, errs.New(errs.KindUnsupported, "id() requires a variable argument")
		}
		b, err := c.lookup(vr.Name)
		if err != nil {
			return frag{}, err
		}
		return lit(b.Alias + ".id"), nil

	case "labels":
		vr, ok := f.Args[0].(*ast.VarRef)
		if !ok {
			return frag{}, errs.New(errs.KindUnsupported, "labels() requires a variable argument")
		}
		b, err := c.lookup(vr.Name)
		if err != nil {
			return frag{}, err
		}
		return lit(fmt.Sprintf("json(%s.label)", b.Alias)), nil

	case "type":
		vr, ok := f.Args[0].(*ast.VarRef)
		if !ok {
			return frag{}, errs.New(errs.KindUnsupported, "type() requires a variable argument")
		}
		b, err := c.lookup(vr.Name)
		if err != nil {
			return frag{}, err
		}
		return lit(b.Alias + ".type"), nil

	case "count":
		if len(f.Args) == 0 {
			return lit("COUNT(*)"), nil
		}
		if vr, ok := f.Args[0].(*ast.VarRef); ok && vr.Name == "*" {
			return lit("COUNT(*)"), nil
		}
		inner, err := c.compileExpr(f.Args[0])
		if err != nil {
			return frag{}, err
		}
		prefix := "COUNT("
		if f.Distinct {
			prefix = "COUNT(DISTINCT "
		}
		return frag{sql: prefix + inner.sql + ")", params: inner.params}, nil

	case "sum", "avg", "min", "max":
		if len(f.Args) != 1 {
			return frag{}, errs.New(errs.KindUnsupported, "%s() takes exactly one argument", name)
		}
		inner, err := c.compileExpr(f.Args[0])
		if err != nil {
			return frag{}, err
		}
		return frag{sql: strings.ToUpper(name) + "(" + inner.sql + ")", params: inner.params}, nil

	default:
		return frag{}, errs.New(errs.KindUnsupported, "function %s() is not supported", f.Name)
	}
}

var binaryOpSQL = map[string]string{
	"=": "=", "<>": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
	"+": "+", "-": "-", "*": "*", "/": "/", "%": "%",
	"AND": "AND", "OR": "OR", "XOR": "<>",
}

func (c *Context) compileBinaryOp(b *ast.BinaryOp) (frag, error) {
	left, err := c.compileExpr(b.Left)
	if err != nil {
		return frag{}, err
	}
	switch strings.ToUpper(b.Op) {
	case "IN":
		right, err := c.compileExpr(b.Right)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: left.sql + " IN " + right.sql, params: append(left.params, right.params...)}, nil

	case "CONTAINS":
		right, err := c.compileExpr(b.Right)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: left.sql + " LIKE '%' || " + right.sql + " || '%'", params: append(left.params, right.params...)}, nil

	case "STARTS WITH":
		right, err := c.compileExpr(b.Right)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: left.sql + " LIKE " + right.sql + " || '%'", params: append(left.params, right.params...)}, nil

	case "ENDS WITH":
		right, err := c.compileExpr(b.Right)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: left.sql + " LIKE '%' || " + right.sql, params: append(left.params, right.params...)}, nil
	}

	opSQL, ok := binaryOpSQL[strings.ToUpper(b.Op)]
	if !ok {
		return frag{}, errs.New(errs.KindUnsupported, "operator %q is not supported", b.Op)
	}
	right, err := c.compileExpr(b.Right)
	if err != nil {
		return frag{}, err
	}
	return frag{
		sql:    "(" + left.sql + " " + opSQL + " " + right.sql + ")",
		params: append(left.params, right.params...),
	}, nil
}

func (c *Context) compileUnaryOp(u *ast.UnaryOp) (frag, error) {
	switch u.Op {
	case "NOT":
		inner, err := c.compileExpr(u.Operand)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: "NOT (" + inner.sql + ")", params: inner.params}, nil
	case "-":
		inner, err := c.compileExpr(u.Operand)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: "-(" + inner.sql + ")", params: inner.params}, nil
	case "IS NULL":
		inner, err := c.compileExpr(u.Operand)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: "(" + inner.sql + ") IS NULL", params: inner.params}, nil
	case "IS NOT NULL":
		inner, err := c.compileExpr(u.Operand)
		if err != nil {
			return frag{}, err
		}
		return frag{sql: "(" + inner.sql + ") IS NOT NULL", params: inner.params}, nil
	default:
		return frag{}, errs.New(errs.KindUnsupported, "unary operator %q is not supported", u.Op)
	}
}

func (c *Context) compileCase(ce *ast.CaseExpr) (frag, error) {
	var sb strings.Builder
	var params []any
	sb.WriteString("CASE")
	if ce.Operand != nil {
		op, err := c.compileExpr(ce.Operand)
		if err != nil {
			return frag{}, err
		}
		sb.WriteString(" " + op.sql)
		params = append(params, op.params...)
	}
	for _, w := range ce.Whens {
		when, err := c.compileExpr(w.When)
		if err != nil {
			return frag{}, err
		}
		then, err := c.compileExpr(w.Then)
		if err != nil {
			return frag{}, err
		}
		sb.WriteString(" WHEN " + when.sql + " THEN " + then.sql)
		params = append(params, when.params...)
		params = append(params, then.params...)
	}
	if ce.Else != nil {
		els, err := c.compileExpr(ce.Else)
		if err != nil {
			return frag{}, err
		}
		sb.WriteString(" ELSE " + els.sql)
		params = append(params, els.params...)
	}
	sb.WriteString(" END")
	return frag{sql: sb.String(), params: params}, nil
}
