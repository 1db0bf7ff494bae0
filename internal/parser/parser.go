// Package parser implements a recursive-descent parser that turns Cypher
// text into the typed AST of package ast (spec.md §4.1).
//
// The parser never returns a partial AST: any unrecognized token or
// structural violation aborts with a *ParseError carrying the precise
// byte offset, line, and column of the failure.
package parser

import (
	"fmt"
	"strconv"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/token"
)

// ParseError is returned for any unrecognized token or structural violation.
type ParseError struct {
	Message string
	Pos     token.Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Pos.Line, e.Pos.Column)
}

// Parser holds the token stream and one-token lookahead buffer for a single
// parse. A Parser is not reused across calls to Parse.
type Parser struct {
	lex  *token.Lexer
	cur  token.Token
	peek *token.Token // buffered next token, for lookahead beyond cur
}

// Parse parses Cypher text into a Statement, or returns a *ParseError.
func Parse(text string) (stmt *ast.Statement, err error) {
	p := &Parser{lex: token.NewLexer(text)}
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*ParseError); ok {
				stmt, err = nil, pe
				return
			}
			panic(r)
		}
	}()
	_ = p.advance()
	return p.parseStatement(), nil
}

// advance consumes the current token and loads the next one, panicking with
// a *ParseError if the lexer hits an unrecognized character.
func (p *Parser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.Next()
	if err != nil {
		le, _ := err.(*token.LexError)
		if le != nil {
			p.fail(le.Pos, "%s", le.Message)
		}
		p.fail(token.Position{}, "%s", err.Error())
	}
	p.cur = t
	return nil
}

func (p *Parser) fail(pos token.Position, format string, args ...any) {
	panic(&ParseError{Message: fmt.Sprintf(format, args...), Pos: pos})
}

func (p *Parser) failHere(format string, args ...any) {
	p.fail(p.cur.Pos, format, args...)
}

func (p *Parser) expect(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		p.failHere("expected %s, found %q", kind, p.cur.Text)
	}
	t := p.cur
	_ = p.advance()
	return t
}

func (p *Parser) at(kind token.Kind) bool { return p.cur.Kind == kind }

func (p *Parser) atAny(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.cur.Kind == k {
			return true
		}
	}
	return false
}

// parseStatement parses Query (UNION [ALL] Query)*.
func (p *Parser) parseStatement() *ast.Statement {
	stmt := &ast.Statement{}
	stmt.Queries = append(stmt.Queries, p.parseQuery())
	for p.at(token.UNION) {
		_ = p.advance()
		all := false
		if p.at(token.ALL) {
			all = true
			_ = p.advance()
		}
		stmt.UnionAll = append(stmt.UnionAll, all)
		stmt.Queries = append(stmt.Queries, p.parseQuery())
	}
	if p.cur.Kind != token.EOF {
		p.failHere("unexpected token %q", p.cur.Text)
	}
	return stmt
}

// parseQuery parses a sequence of clauses until EOF or UNION.
func (p *Parser) parseQuery() *ast.Query {
	q := &ast.Query{}
	for !p.at(token.EOF) && !p.at(token.UNION) {
		q.Clauses = append(q.Clauses, p.parseClause())
	}
	if len(q.Clauses) == 0 {
		p.failHere("empty query")
	}
	return q
}

func (p *Parser) parseClause() ast.Clause {
	switch {
	case p.at(token.OPTIONAL):
		_ = p.advance()
		p.expect(token.MATCH)
		return p.parseMatch(true)
	case p.at(token.MATCH):
		_ = p.advance()
		return p.parseMatch(false)
	case p.at(token.CREATE):
		_ = p.advance()
		return &ast.CreateClause{Patterns: p.parsePatternList()}
	case p.at(token.MERGE):
		_ = p.advance()
		return p.parseMerge()
	case p.at(token.SET):
		_ = p.advance()
		return &ast.SetClause{Items: p.parseSetItems()}
	case p.at(token.REMOVE):
		_ = p.advance()
		return p.parseRemove()
	case p.at(token.DETACH):
		_ = p.advance()
		p.expect(token.DELETE)
		return &ast.DeleteClause{Detach: true, Variables: p.parseIdentList()}
	case p.at(token.DELETE):
		_ = p.advance()
		return &ast.DeleteClause{Variables: p.parseIdentList()}
	case p.at(token.WITH):
		_ = p.advance()
		return p.parseWith()
	case p.at(token.RETURN):
		_ = p.advance()
		return p.parseReturn()
	case p.at(token.UNWIND):
		_ = p.advance()
		return p.parseUnwind()
	default:
		p.failHere("unexpected token %q at start of clause", p.cur.Text)
		return nil
	}
}

// ---- MATCH ----

func (p *Parser) parseMatch(optional bool) *ast.MatchClause {
	m := &ast.MatchClause{Optional: optional, Patterns: p.parsePatternList()}
	if p.at(token.WHERE) {
		_ = p.advance()
		m.Where = p.parseExpression()
	}
	return m
}

func (p *Parser) parsePatternList() []ast.Pattern {
	patterns := []ast.Pattern{p.parsePattern()}
	for p.at(token.COMMA) {
		_ = p.advance()
		patterns = append(patterns, p.parsePattern())
	}
	return patterns
}

// parsePattern parses one node-(edge-node)* chain.
func (p *Parser) parsePattern() ast.Pattern {
	var pat ast.Pattern
	pat.Nodes = append(pat.Nodes, p.parseNodePattern())
	for p.at(token.MINUS) || p.at(token.ARROW_L) {
		edge := p.parseEdgePattern()
		pat.Edges = append(pat.Edges, edge)
		pat.Nodes = append(pat.Nodes, p.parseNodePattern())
	}
	return pat
}

func (p *Parser) parseNodePattern() ast.NodePattern {
	pos := p.cur.Pos
	p.expect(token.LPAREN)
	var n ast.NodePattern
	n.Pos = pos
	if p.at(token.IDENT) {
		n.Variable = p.cur.Text
		_ = p.advance()
	}
	for p.at(token.COLON) {
		_ = p.advance()
		n.Labels = append(n.Labels, p.expect(token.IDENT).Text)
	}
	if p.at(token.LBRACE) {
		n.Properties = p.parsePropertyMap()
	}
	p.expect(token.RPAREN)
	return n
}

// parseEdgePattern parses one of: -[...]->, <-[...]-, -[...]-.
func (p *Parser) parseEdgePattern() ast.EdgePattern {
	var e ast.EdgePattern
	leftArrow := false
	if p.at(token.ARROW_L) {
		leftArrow = true
		_ = p.advance()
	} else {
		p.expect(token.MINUS)
	}
	e.Pos = p.cur.Pos
	if p.at(token.LBRACKET) {
		_ = p.advance()
		if p.at(token.IDENT) {
			e.Variable = p.cur.Text
			_ = p.advance()
		}
		if p.at(token.COLON) {
			_ = p.advance()
			e.Types = append(e.Types, p.expect(token.IDENT).Text)
			for p.at(token.PIPE) {
				_ = p.advance()
				e.Types = append(e.Types, p.expect(token.IDENT).Text)
			}
		}
		if p.at(token.STAR) {
			_ = p.advance()
			e.VarLength = true
			e.MinHops, e.MaxHops = p.parseHopRange()
		}
		if p.at(token.LBRACE) {
			e.Properties = p.parsePropertyMap()
		}
		p.expect(token.RBRACKET)
	}
	// closing arm
	if leftArrow {
		p.expect(token.MINUS)
		e.Direction = ast.DirIn
	} else if p.at(token.ARROW_R) {
		_ = p.advance()
		e.Direction = ast.DirOut
	} else {
		p.expect(token.MINUS)
		e.Direction = ast.DirBoth
	}
	return e
}

// parseHopRange parses the body of `*min..max`, `*min..`, `*..max`, `*n`, or bare `*`.
func (p *Parser) parseHopRange() (min, max *int) {
	if p.at(token.INT) {
		n := mustAtoi(p.cur.Text)
		_ = p.advance()
		if p.at(token.DOTDOT) {
			_ = p.advance()
			minVal := n
			if p.at(token.INT) {
				maxVal := mustAtoi(p.cur.Text)
				_ = p.advance()
				return &minVal, &maxVal
			}
			return &minVal, nil
		}
		return &n, &n
	}
	if p.at(token.DOTDOT) {
		_ = p.advance()
		if p.at(token.INT) {
			maxVal := mustAtoi(p.cur.Text)
			_ = p.advance()
			return nil, &maxVal
		}
		return nil, nil
	}
	return nil, nil
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func (p *Parser) parsePropertyMap() map[string]ast.Expression {
	p.expect(token.LBRACE)
	m := map[string]ast.Expression{}
	if p.at(token.RBRACE) {
		_ = p.advance()
		return m
	}
	for {
		key := p.expect(token.IDENT).Text
		p.expect(token.COLON)
		m[key] = p.parseExpression()
		if p.at(token.COMMA) {
			_ = p.advance()
			continue
		}
		break
	}
	p.expect(token.RBRACE)
	return m
}

func (p *Parser) parseIdentList() []string {
	ids := []string{p.expect(token.IDENT).Text}
	for p.at(token.COMMA) {
		_ = p.advance()
		ids = append(ids, p.expect(token.IDENT).Text)
	}
	return ids
}

// ---- MERGE ----

func (p *Parser) parseMerge() *ast.MergeClause {
	m := &ast.MergeClause{Pattern: p.parsePattern()}
	for p.at(token.ON) {
		_ = p.advance()
		switch {
		case p.at(token.CREATE):
			_ = p.advance()
			p.expect(token.SET)
			m.OnCreateSet = p.parseSetItems()
		case p.at(token.MATCH):
			_ = p.advance()
			p.expect(token.SET)
			m.OnMatchSet = p.parseSetItems()
		default:
			p.failHere("expected CREATE or MATCH after ON")
		}
	}
	return m
}

// ---- SET / REMOVE ----

func (p *Parser) parseSetItems() []ast.SetItem {
	items := []ast.SetItem{p.parseSetItem()}
	for p.at(token.COMMA) {
		_ = p.advance()
		items = append(items, p.parseSetItem())
	}
	return items
}

func (p *Parser) parseSetItem() ast.SetItem {
	variable := p.expect(token.IDENT).Text
	if p.at(token.COLON) {
		_ = p.advance()
		label := p.expect(token.IDENT).Text
		return ast.SetItem{Variable: variable, Label: label}
	}
	p.expect(token.DOT)
	prop := p.expect(token.IDENT).Text
	p.expect(token.EQ)
	value := p.parseExpression()
	return ast.SetItem{Variable: variable, Property: prop, Value: value}
}

func (p *Parser) parseRemove() *ast.RemoveClause {
	r := &ast.RemoveClause{}
	for {
		variable := p.expect(token.IDENT).Text
		if p.at(token.COLON) {
			_ = p.advance()
			label := p.expect(token.IDENT).Text
			r.Items = append(r.Items, ast.RemoveItem{Variable: variable, Label: label})
		} else {
			p.expect(token.DOT)
			prop := p.expect(token.IDENT).Text
			r.Items = append(r.Items, ast.RemoveItem{Variable: variable, Property: prop})
		}
		if p.at(token.COMMA) {
			_ = p.advance()
			continue
		}
		break
	}
	return r
}

// ---- WITH / RETURN ----

func (p *Parser) parseWith() *ast.WithClause {
	w := &ast.WithClause{}
	if p.at(token.DISTINCT) {
		w.Distinct = true
		_ = p.advance()
	}
	w.Items = p.parseReturnItems()
	if p.at(token.ORDER) {
		w.OrderBy = p.parseOrderBy()
	}
	if p.at(token.WHERE) {
		_ = p.advance()
		w.Where = p.parseExpression()
	}
	if p.at(token.SKIP) {
		_ = p.advance()
		w.Skip = p.parseExpression()
	}
	if p.at(token.LIMIT) {
		_ = p.advance()
		w.Limit = p.parseExpression()
	}
	return w
}

func (p *Parser) parseReturn() *ast.ReturnClause {
	r := &ast.ReturnClause{}
	if p.at(token.DISTINCT) {
		r.Distinct = true
		_ = p.advance()
	}
	r.Items = p.parseReturnItems()
	if p.at(token.ORDER) {
		r.OrderBy = p.parseOrderBy()
	}
	if p.at(token.SKIP) {
		_ = p.advance()
		r.Skip = p.parseExpression()
	}
	if p.at(token.LIMIT) {
		_ = p.advance()
		r.Limit = p.parseExpression()
	}
	return r
}

func (p *Parser) parseReturnItems() []ast.ReturnItem {
	items := []ast.ReturnItem{p.parseReturnItem()}
	for p.at(token.COMMA) {
		_ = p.advance()
		items = append(items, p.parseReturnItem())
	}
	return items
}

func (p *Parser) parseReturnItem() ast.ReturnItem {
	expr := p.parseExpression()
	item := ast.ReturnItem{Expr: expr}
	if p.at(token.AS) {
		_ = p.advance()
		item.Alias = p.expect(token.IDENT).Text
	}
	return item
}

func (p *Parser) parseOrderBy() []ast.OrderItem {
	p.expect(token.ORDER)
	p.expect(token.BY)
	items := []ast.OrderItem{p.parseOrderItem()}
	for p.at(token.COMMA) {
		_ = p.advance()
		items = append(items, p.parseOrderItem())
	}
	return items
}

func (p *Parser) parseOrderItem() ast.OrderItem {
	expr := p.parseExpression()
	item := ast.OrderItem{Expr: expr}
	if p.at(token.ASC) {
		_ = p.advance()
	} else if p.at(token.DESC) {
		item.Descending = true
		_ = p.advance()
	}
	return item
}

// ---- UNWIND ----

func (p *Parser) parseUnwind() *ast.UnwindClause {
	source := p.parseExpression()
	p.expect(token.AS)
	variable := p.expect(token.IDENT).Text
	return &ast.UnwindClause{Source: source, Variable: variable}
}

// ---- Expressions (precedence climbing) ----
//
// Precedence, loosest to tightest:
//   OR
//   AND
//   NOT (unary)
//   comparison (= <> < > <= >=, CONTAINS, STARTS WITH, ENDS WITH, IN, IS [NOT] NULL)
//   additive (+ -)
//   multiplicative (* / %)
//   unary (-)
//   postfix (.prop)
//   primary

func (p *Parser) parseExpression() ast.Expression {
	return p.parseOr()
}

func (p *Parser) parseOr() ast.Expression {
	left := p.parseAnd()
	for p.at(token.OR) {
		_ = p.advance()
		right := p.parseAnd()
		left = &ast.BinaryOp{Op: "OR", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expression {
	left := p.parseNot()
	for p.at(token.AND) {
		_ = p.advance()
		right := p.parseNot()
		left = &ast.BinaryOp{Op: "AND", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseNot() ast.Expression {
	if p.at(token.NOT) {
		_ = p.advance()
		operand := p.parseNot()
		return &ast.UnaryOp{Op: "NOT", Operand: operand}
	}
	return p.parseComparison()
}

var comparisonOps = map[token.Kind]string{
	token.EQ: "=", token.NEQ: "<>", token.LT: "<", token.GT: ">",
	token.LTE: "<=", token.GTE: ">=",
}

func (p *Parser) parseComparison() ast.Expression {
	left := p.parseAdditive()
	for {
		if op, ok := comparisonOps[p.cur.Kind]; ok {
			_ = p.advance()
			right := p.parseAdditive()
			left = &ast.BinaryOp{Op: op, Left: left, Right: right}
			continue
		}
		if p.at(token.CONTAINS) {
			_ = p.advance()
			right := p.parseAdditive()
			left = &ast.BinaryOp{Op: "CONTAINS", Left: left, Right: right}
			continue
		}
		if p.at(token.STARTS) {
			_ = p.advance()
			p.expect(token.WITH)
			right := p.parseAdditive()
			left = &ast.BinaryOp{Op: "STARTS WITH", Left: left, Right: right}
			continue
		}
		if p.at(token.ENDS) {
			_ = p.advance()
			p.expect(token.WITH)
			right := p.parseAdditive()
			left = &ast.BinaryOp{Op: "ENDS WITH", Left: left, Right: right}
			continue
		}
		if p.at(token.IN) {
			_ = p.advance()
			right := p.parseAdditive()
			left = &ast.BinaryOp{Op: "IN", Left: left, Right: right}
			continue
		}
		if p.at(token.IS) {
			_ = p.advance()
			notNull := false
			if p.at(token.NOT) {
				notNull = true
				_ = p.advance()
			}
			p.expect(token.NULL)
			if notNull {
				left = &ast.UnaryOp{Op: "IS NOT NULL", Operand: left}
			} else {
				left = &ast.UnaryOp{Op: "IS NULL", Operand: left}
			}
			continue
		}
		break
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.at(token.PLUS) || p.at(token.MINUS) {
		op := p.cur.Text
		_ = p.advance()
		right := p.parseMultiplicative()
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for p.at(token.STAR) || p.at(token.SLASH) || p.at(token.PERCENT) {
		op := p.cur.Text
		_ = p.advance()
		right := p.parseUnary()
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.at(token.MINUS) {
		_ = p.advance()
		return &ast.UnaryOp{Op: "-", Operand: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()
	for p.at(token.DOT) {
		_ = p.advance()
		prop := p.expect(token.IDENT).Text
		ref, ok := expr.(*ast.VarRef)
		if !ok {
			p.failHere("property access is only supported on a variable")
		}
		expr = &ast.PropertyAccess{Variable: ref.Name, Property: prop}
	}
	return expr
}

func (p *Parser) parsePrimary() ast.Expression {
	switch {
	case p.at(token.INT):
		n, _ := strconv.ParseInt(p.cur.Text, 10, 64)
		_ = p.advance()
		return &ast.Literal{Value: n}
	case p.at(token.FLOAT):
		f, _ := strconv.ParseFloat(p.cur.Text, 64)
		_ = p.advance()
		return &ast.Literal{Value: f}
	case p.at(token.STRING):
		s := p.cur.Text
		_ = p.advance()
		return &ast.Literal{Value: s}
	case p.at(token.TRUE):
		_ = p.advance()
		return &ast.Literal{Value: true}
	case p.at(token.FALSE):
		_ = p.advance()
		return &ast.Literal{Value: false}
	case p.at(token.NULL):
		_ = p.advance()
		return &ast.Literal{Value: nil}
	case p.at(token.PARAM):
		name := p.cur.Text
		_ = p.advance()
		return &ast.ParamRef{Name: name}
	case p.at(token.LPAREN):
		_ = p.advance()
		expr := p.parseExpression()
		p.expect(token.RPAREN)
		return expr
	case p.at(token.LBRACKET):
		return p.parseListOrComprehension()
	case p.at(token.LBRACE):
		return p.parseMapLiteral()
	case p.at(token.CASE):
		return p.parseCase()
	case p.at(token.EXISTS):
		return p.parseExists()
	case p.at(token.MINUS):
		_ = p.advance()
		return &ast.UnaryOp{Op: "-", Operand: p.parseUnary()}
	case p.at(token.IDENT):
		name := p.cur.Text
		_ = p.advance()
		if p.at(token.LPAREN) {
			return p.parseFunctionCall(name)
		}
		return &ast.VarRef{Name: name}
	default:
		p.failHere("unexpected token %q in expression", p.cur.Text)
		return nil
	}
}

func (p *Parser) parseFunctionCall(name string) ast.Expression {
	p.expect(token.LPAREN)
	call := &ast.FunctionCall{Name: name}
	if p.at(token.DISTINCT) {
		call.Distinct = true
		_ = p.advance()
	}
	if p.at(token.STAR) {
		// count(*) — the only place a bare "*" is a legal argument.
		_ = p.advance()
		call.Args = append(call.Args, &ast.VarRef{Name: "*"})
	} else if !p.at(token.RPAREN) {
		call.Args = append(call.Args, p.parseExpression())
		for p.at(token.COMMA) {
			_ = p.advance()
			call.Args = append(call.Args, p.parseExpression())
		}
	}
	p.expect(token.RPAREN)
	return call
}

// parseListOrComprehension parses `[...]`: a plain list literal, or
// `[x IN expr [WHERE cond] [| projection]]`.
func (p *Parser) parseListOrComprehension() ast.Expression {
	p.expect(token.LBRACKET)
	if p.at(token.RBRACKET) {
		_ = p.advance()
		return &ast.ListLiteral{}
	}
	if p.at(token.IDENT) && p.peekIsIn() {
		variable := p.cur.Text
		_ = p.advance()
		p.expect(token.IN)
		source := p.parseExpression()
		lc := &ast.ListComprehension{Variable: variable, Source: source}
		if p.at(token.WHERE) {
			_ = p.advance()
			lc.Where = p.parseExpression()
		}
		if p.at(token.PIPE) {
			_ = p.advance()
			lc.Projection = p.parseExpression()
		}
		p.expect(token.RBRACKET)
		return lc
	}
	list := &ast.ListLiteral{Items: []ast.Expression{p.parseExpression()}}
	for p.at(token.COMMA) {
		_ = p.advance()
		list.Items = append(list.Items, p.parseExpression())
	}
	p.expect(token.RBRACKET)
	return list
}

// peekIsIn reports whether the token after the current IDENT is IN, which
// disambiguates a list-comprehension head from the start of a plain
// expression list (e.g. `[x IN y]` vs `[x, y]` vs `[x.a]`).
func (p *Parser) peekIsIn() bool {
	if p.peek == nil {
		t, err := p.lex.Next()
		if err != nil {
			return false
		}
		p.peek = &t
	}
	return p.peek.Kind == token.IN
}

func (p *Parser) parseMapLiteral() ast.Expression {
	m := p.parsePropertyMap()
	lit := &ast.MapLiteral{}
	for k, v := range m {
		lit.Keys = append(lit.Keys, k)
		lit.Values = append(lit.Values, v)
	}
	return lit
}

func (p *Parser) parseCase() ast.Expression {
	p.expect(token.CASE)
	c := &ast.CaseExpr{}
	if !p.at(token.WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.at(token.WHEN) {
		_ = p.advance()
		when := p.parseExpression()
		p.expect(token.THEN)
		then := p.parseExpression()
		c.Whens = append(c.Whens, ast.CaseWhen{When: when, Then: then})
	}
	if len(c.Whens) == 0 {
		p.failHere("CASE requires at least one WHEN branch")
	}
	if p.at(token.ELSE) {
		_ = p.advance()
		c.Else = p.parseExpression()
	}
	p.expect(token.END)
	return c
}

func (p *Parser) parseExists() ast.Expression {
	p.expect(token.EXISTS)
	p.expect(token.LPAREN)
	pat := p.parsePattern()
	p.expect(token.RPAREN)
	return &ast.ExistsPattern{Pattern: pat}
}
