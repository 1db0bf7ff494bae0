// Package translator compiles a parsed Cypher AST into an ordered list of
// parameterized store statements plus an optional return-column list
// (spec.md §4.2). It never executes anything itself; it only produces
// Stmt values (the same shape as store.Statement) for the caller (the
// top-level Executor) to run.
package translator

import (
	"fmt"

	"github.com/corvusdb/corvus/internal/ast"
	"github.com/corvusdb/corvus/internal/errs"
	"github.com/google/uuid"
)

// BindingKind distinguishes a node binding from an edge binding in the
// variable table.
type BindingKind int

const (
	BindNode BindingKind = iota
	BindEdge
)

// Binding is what the variable table stores for one logical Cypher name:
// either a fresh alias for a newly created row, or a table alias for a
// matched row (spec.md §4.2 "Context maintained during translation").
type Binding struct {
	Kind    BindingKind
	Alias   string // table alias (matched); empty for a created row, whose id is in NewID
	NewID   string // non-empty for a freshly generated UUID (CREATE)
	Labels  []string
	EdgeTyp string
}

// scopeMods holds the DISTINCT/ORDER BY/SKIP/LIMIT/WHERE modifiers a WITH
// clause hands to the next RETURN (spec.md §4.2 "pending WITH modifiers").
type scopeMods struct {
	active   bool
	distinct bool
	orderBy  []ast.OrderItem
	skip     ast.Expression
	limit    ast.Expression
	where    ast.Expression
	// aliases maps a WITH projection alias to the expression it stands for,
	// so RETURN/WHERE after WITH can resolve through it (spec.md §4.2
	// "property/function aliases are indexed").
	aliases map[string]ast.Expression
}

// joinEdge records one edge registered by a MATCH/OPTIONAL MATCH pattern, so
// RETURN can build the join chain spec.md §4.2 describes.
type joinEdge struct {
	edge     ast.EdgePattern
	fromVar  string
	toVar    string
	optional bool
}

// Context accumulates translation state across the clauses of one Query
// (spec.md §4.2). A fresh Context is used per UNION branch.
type Context struct {
	params map[string]any

	vars  map[string]*Binding
	order []string // insertion order of vars; FROM/JOIN construction does not read it

	// knownIDs holds variable -> row id for variables resolved by an earlier
	// translation phase (the engine's post-MATCH CREATE phase, spec.md §4.7),
	// set via BindKnownID before a CREATE-only Context is compiled.
	knownIDs map[string]string

	joins []joinEdge

	// fromClauses/joinClauses/extraJoinParams/ctes accumulate the SELECT
	// source for MATCH-derived queries (spec.md §4.2 "joins/predicates").
	fromClauses     []string
	joinClauses     []string
	extraJoinParams []any
	ctes            []cteDef

	whereConds         []ast.Expression // required MATCH WHERE conditions
	optionalWhereConds map[string]ast.Expression // keyed "optional0", "optional1", ... in OPTIONAL MATCH order
	inlineFilters      []filterCond     // label/property filters implied by pattern syntax

	mods scopeMods

	aliasSeq  int
	paramSeq  int
	statements []Stmt

	// unwindSQLAliases maps an UNWIND variable to the json_each row-value SQL
	// it was joined against (spec.md §4.2 "UNWIND → json_each join").
	unwindSQLAliases map[string]string
}

// Stmt mirrors store.Statement without importing the store package, keeping
// the Translator free of any row-store dependency beyond its output shape.
type Stmt struct {
	SQL    string
	Params []any
}

// NewContext builds a translation context for one query with the given
// parameter map (spec.md §4.2).
func NewContext(params map[string]any) *Context {
	if params == nil {
		params = map[string]any{}
	}
	return &Context{
		params:             params,
		vars:               map[string]*Binding{},
		optionalWhereConds: map[string]ast.Expression{},
	}
}

func (c *Context) nextAlias(prefix string) string {
	c.aliasSeq++
	return fmt.Sprintf("%s%d", prefix, c.aliasSeq)
}

func (c *Context) newUUID() string {
	return uuid.NewString()
}

func (c *Context) emit(sql string, params []any) {
	c.statements = append(c.statements, Stmt{SQL: sql, Params: params})
}

// Statements returns every write statement compiled onto this Context so
// far, in emission order.
func (c *Context) Statements() []Stmt {
	return c.statements
}

// AllKnownIDs returns every variable -> row id pair this Context resolved
// while compiling a CREATE clause, covering both variables that were
// already known (via BindKnownID) and variables CREATE itself generated a
// fresh id for (spec.md §4.7's per-row RETURN projection needs both).
func (c *Context) AllKnownIDs() map[string]string {
	out := map[string]string{}
	for v, id := range c.knownIDs {
		out[v] = id
	}
	for v, b := range c.vars {
		if b.NewID != "" {
			out[v] = b.NewID
		}
	}
	return out
}

// CompileCreateForMultiPhase compiles cl in isolation, the shape the
// engine's multi-phase MATCH→CREATE execution uses once per matched row
// (spec.md §4.7): the caller has already called BindKnownID for every
// variable the preceding MATCH bound.
func (c *Context) CompileCreateForMultiPhase(cl *ast.CreateClause) error {
	return c.compileCreateClause(cl)
}

func (c *Context) bindNode(variable string, alias string, labels []string) {
	if variable == "" {
		return
	}
	if _, exists := c.vars[variable]; !exists {
		c.order = append(c.order, variable)
	}
	c.vars[variable] = &Binding{Kind: BindNode, Alias: alias, Labels: labels}
}

func (c *Context) bindEdge(variable string, alias string, edgeType string) {
	if variable == "" {
		return
	}
	if _, exists := c.vars[variable]; !exists {
		c.order = append(c.order, variable)
	}
	c.vars[variable] = &Binding{Kind: BindEdge, Alias: alias, EdgeTyp: edgeType}
}

func (c *Context) lookup(variable string) (*Binding, error) {
	b, ok := c.vars[variable]
	if !ok {
		return nil, errs.New(errs.KindUnknownVariable, "variable %q is not bound", variable)
	}
	return b, nil
}

// resolveValue evaluates a literal/parameter expression to a Go value for
// use as a bind parameter (property maps, SET values, WHERE literals that
// the caller wants pre-resolved rather than compiled as SQL).
func (c *Context) resolveValue(e ast.Expression) (any, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Value, nil
	case *ast.ParamRef:
		val, ok := c.params[v.Name]
		if !ok {
			return nil, errs.New(errs.KindUnsupported, "unbound query parameter $%s", v.Name)
		}
		return val, nil
	case *ast.ListLiteral:
		items := make([]any, 0, len(v.Items))
		for _, it := range v.Items {
			val, err := c.resolveValue(it)
			if err != nil {
				return nil, err
			}
			items = append(items, val)
		}
		return items, nil
	case *ast.MapLiteral:
		m := map[string]any{}
		for i, k := range v.Keys {
			val, err := c.resolveValue(v.Values[i])
			if err != nil {
				return nil, err
			}
			m[k] = val
		}
		return m, nil
	case *ast.UnaryOp:
		if v.Op == "-" {
			val, err := c.resolveValue(v.Operand)
			if err != nil {
				return nil, err
			}
			switch n := val.(type) {
			case int64:
				return -n, nil
			case float64:
				return -n, nil
			}
		}
		return nil, errs.New(errs.KindUnsupported, "expression is not a constant value")
	default:
		return nil, errs.New(errs.KindUnsupported, "expression is not a constant value")
	}
}
