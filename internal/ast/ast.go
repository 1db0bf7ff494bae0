// Package ast defines the closed-sum-type abstract syntax produced by the
// parser: Statement/Query/Clause, Pattern, and Expression. Every sum type is
// a Go interface with an unexported marker method, so the set of concrete
// implementations is closed to this package (spec.md §9 "Dynamic typing →
// tagged variants").
package ast

import "github.com/corvusdb/corvus/internal/token"

// Statement is the result of parsing one Cypher query: one Query per UNION
// branch, with the UnionAll flag recorded between consecutive branches.
type Statement struct {
	Queries  []*Query
	UnionAll []bool // len == len(Queries)-1
}

// Query is a linear sequence of clauses sharing one logical scope chain
// (a MATCH/CREATE/.../RETURN pipeline, possibly broken into stages by WITH).
type Query struct {
	Clauses []Clause
}

// Clause is any top-level Cypher clause.
type Clause interface {
	clauseMarker()
}

// MatchClause represents MATCH or OPTIONAL MATCH. Multiple comma-separated
// patterns in one clause are kept distinct so the Translator can register
// each independently.
type MatchClause struct {
	Optional bool
	Patterns []Pattern
	Where    Expression // nil if absent
}

func (*MatchClause) clauseMarker() {}

// CreateClause represents CREATE.
type CreateClause struct {
	Patterns []Pattern
}

func (*CreateClause) clauseMarker() {}

// MergeClause represents MERGE, including optional ON CREATE/ON MATCH SET actions.
type MergeClause struct {
	Pattern     Pattern
	OnCreateSet []SetItem
	OnMatchSet  []SetItem
}

func (*MergeClause) clauseMarker() {}

// SetClause represents SET.
type SetClause struct {
	Items []SetItem
}

func (*SetClause) clauseMarker() {}

// SetItem is one `var.prop = expr` or `var:Label` assignment within SET.
type SetItem struct {
	Variable string
	Property string // empty if this item sets a label instead
	Label    string // empty if this item sets a property instead
	Value    Expression
}

// RemoveClause represents REMOVE (label or property removal).
type RemoveClause struct {
	Items []RemoveItem
}

func (*RemoveClause) clauseMarker() {}

// RemoveItem is one `var.prop` or `var:Label` target within REMOVE.
type RemoveItem struct {
	Variable string
	Property string
	Label    string
}

// DeleteClause represents DELETE or DETACH DELETE.
type DeleteClause struct {
	Detach    bool
	Variables []string
}

func (*DeleteClause) clauseMarker() {}

// WithClause represents WITH, a scope boundary carrying projection plus the
// modifiers that the following RETURN (or next WITH) must apply.
type WithClause struct {
	Items    []ReturnItem
	Distinct bool
	Where    Expression
	OrderBy  []OrderItem
	Skip     Expression
	Limit    Expression
}

func (*WithClause) clauseMarker() {}

// ReturnClause represents RETURN.
type ReturnClause struct {
	Items    []ReturnItem
	Distinct bool
	OrderBy  []OrderItem
	Skip     Expression
	Limit    Expression
}

func (*ReturnClause) clauseMarker() {}

// ReturnItem is one projected expression, optionally aliased with AS.
type ReturnItem struct {
	Expr  Expression
	Alias string // empty if no AS given
}

// OrderItem is one ORDER BY term.
type OrderItem struct {
	Expr       Expression
	Descending bool
}

// UnwindClause represents UNWIND expr AS var.
type UnwindClause struct {
	Source   Expression
	Variable string
}

func (*UnwindClause) clauseMarker() {}

// ---- Patterns ----

// Pattern is a chain of nodes connected by edges: Nodes[i] and Nodes[i+1]
// are joined by Edges[i]. len(Edges) == len(Nodes)-1 for a non-empty pattern.
type Pattern struct {
	Nodes []NodePattern
	Edges []EdgePattern
}

// NodePattern is one `(var:Label {props})` pattern element.
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties map[string]Expression
	Pos        token.Position
}

// Direction is the direction of a relationship pattern.
type Direction int

const (
	DirBoth Direction = iota
	DirOut
	DirIn
)

// EdgePattern is one `-[var:TYPE {props}]->` (or left/undirected) element.
type EdgePattern struct {
	Variable   string
	Types      []string
	Direction  Direction
	Properties map[string]Expression
	VarLength  bool
	MinHops    *int // nil when VarLength is false (fixed single hop)
	MaxHops    *int // nil means unbounded; Translator/Planner apply the default cap
	Pos        token.Position
}

// ---- Expressions ----

// Expression is any Cypher expression: literal, reference, or compound.
type Expression interface {
	exprMarker()
}

// Literal is a constant scalar, list, or map value already in Go form.
type Literal struct {
	Value any
}

func (*Literal) exprMarker() {}

// ParamRef is a `$name` parameter reference.
type ParamRef struct {
	Name string
}

func (*ParamRef) exprMarker() {}

// VarRef is a bare variable reference (e.g. `n` in `RETURN n`).
type VarRef struct {
	Name string
}

func (*VarRef) exprMarker() {}

// PropertyAccess is `var.prop`.
type PropertyAccess struct {
	Variable string
	Property string
}

func (*PropertyAccess) exprMarker() {}

// FunctionCall is `name(args...)`, optionally with DISTINCT (for aggregates).
type FunctionCall struct {
	Name     string
	Args     []Expression
	Distinct bool
}

func (*FunctionCall) exprMarker() {}

// ListLiteral is `[e1, e2, ...]`.
type ListLiteral struct {
	Items []Expression
}

func (*ListLiteral) exprMarker() {}

// MapLiteral is `{k1: e1, k2: e2, ...}`.
type MapLiteral struct {
	Keys   []string
	Values []Expression
}

func (*MapLiteral) exprMarker() {}

// ListComprehension is `[x IN expr [WHERE cond] [| projection]]`.
type ListComprehension struct {
	Variable   string
	Source     Expression
	Where      Expression // nil if absent
	Projection Expression // nil means the comprehension yields the variable itself
}

func (*ListComprehension) exprMarker() {}

// CaseWhen is one WHEN cond THEN result branch.
type CaseWhen struct {
	When Expression
	Then Expression
}

// CaseExpr is `CASE [operand] WHEN ... THEN ... [ELSE ...] END`.
type CaseExpr struct {
	Operand Expression // nil for the generic boolean-WHEN form
	Whens   []CaseWhen
	Else    Expression // nil if absent
}

func (*CaseExpr) exprMarker() {}

// BinaryOp covers arithmetic, comparison, AND/OR, CONTAINS/STARTS WITH/ENDS
// WITH, and IN. Op is one of the operator literals ("+", "=", "AND", "IN", ...).
type BinaryOp struct {
	Op    string
	Left  Expression
	Right Expression
}

func (*BinaryOp) exprMarker() {}

// UnaryOp covers NOT, unary minus, IS NULL, and IS NOT NULL.
type UnaryOp struct {
	Op      string // "NOT", "-", "IS NULL", "IS NOT NULL"
	Operand Expression
}

func (*UnaryOp) exprMarker() {}

// ExistsPattern is `EXISTS(pattern)`.
type ExistsPattern struct {
	Pattern Pattern
}

func (*ExistsPattern) exprMarker() {}
