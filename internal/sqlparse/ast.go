// Package sqlparse implements a minimal SQL frontend for the sheet query
// dialect: a lexer, a recursive-descent parser producing a small AST, and a
// serializer emitting canonical SQL for the embedded engine.
//
// The dialect extends plain SELECT with dotted file.sheet table references
// (segments may start with digits or contain non-ASCII word characters) and
// CROSS JOIN UNNEST(alias.field) array expansion. Rewrites are performed as
// AST transforms and re-serialized, never as text substitution.
package sqlparse

import "strings"

// Statement is a single SELECT statement.
type Statement struct {
	Distinct bool
	Select   []SelectItem
	From     []TableExpr
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    Expr
	Offset   Expr
}

// SelectItem is one entry of the select list: either a (possibly qualified)
// star or an expression with an optional alias.
type SelectItem struct {
	Star      bool
	Qualifier string // "t" in "t.*"; empty for a bare "*"
	Expr      Expr
	Alias     string
}

// TableRef is a dotted table reference as written in the query.
type TableRef struct {
	Parts []string
}

// Raw returns the reference as written, segments joined with dots.
func (r TableRef) Raw() string { return strings.Join(r.Parts, ".") }

// UnnestExpr is the argument of an UNNEST table function:
// UNNEST(qualifier.field).
type UnnestExpr struct {
	Qualifier string
	Field     string
}

// TableExpr is one entry of the FROM clause. The first entry has Join == "";
// subsequent entries carry the join keyword that introduced them. Exactly one
// of Ref or Unnest is set.
type TableExpr struct {
	Join   string // "", "JOIN", "LEFT JOIN", "RIGHT JOIN", "FULL JOIN", "CROSS JOIN", ","
	Ref    TableRef
	Unnest *UnnestExpr
	Alias  string
	On     Expr
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Expr is a node of the expression tree.
type Expr interface{ isExpr() }

// Ident is a (possibly dotted) identifier reference.
type Ident struct {
	Parts []string
}

// LiteralKind discriminates literal values.
type LiteralKind int

const (
	LitNumber LiteralKind = iota
	LitString
	LitNull
	LitBool
)

// Literal is a scalar literal. Text holds the source form (unquoted for
// strings).
type Literal struct {
	Kind LiteralKind
	Text string
}

// Param is a bind parameter: ":name" or a positional "?" (Name == "").
type Param struct {
	Name string
}

// Binary is a binary operation, including comparisons, arithmetic, string
// concatenation, LIKE/NOT LIKE, and AND/OR.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// Unary is a prefix operation: NOT or arithmetic negation.
type Unary struct {
	Op      string
	Operand Expr
}

// Call is a function invocation. Star marks COUNT(*).
type Call struct {
	Name     string
	Distinct bool
	Star     bool
	Args     []Expr
}

// In is an IN/NOT IN list membership test.
type In struct {
	Not  bool
	Left Expr
	List []Expr
}

// IsNull is an IS [NOT] NULL test.
type IsNull struct {
	Not     bool
	Operand Expr
}

// Paren preserves explicit grouping through re-serialization.
type Paren struct {
	Operand Expr
}

func (*Ident) isExpr()   {}
func (*Literal) isExpr() {}
func (*Param) isExpr()   {}
func (*Binary) isExpr()  {}
func (*Unary) isExpr()   {}
func (*Call) isExpr()    {}
func (*In) isExpr()      {}
func (*IsNull) isExpr()  {}
func (*Paren) isExpr()   {}

// VisitExprs walks every expression in the statement in source order.
func (s *Statement) VisitExprs(fn func(Expr)) {
	for i := range s.Select {
		walkExpr(s.Select[i].Expr, fn)
	}
	for i := range s.From {
		walkExpr(s.From[i].On, fn)
	}
	walkExpr(s.Where, fn)
	for _, e := range s.GroupBy {
		walkExpr(e, fn)
	}
	walkExpr(s.Having, fn)
	for i := range s.OrderBy {
		walkExpr(s.OrderBy[i].Expr, fn)
	}
	walkExpr(s.Limit, fn)
	walkExpr(s.Offset, fn)
}

// VisitIdents calls fn for every identifier in the statement. The callback
// may mutate the identifier in place; this is how table-reference and
// array-alias rewriting is done.
func (s *Statement) VisitIdents(fn func(*Ident)) {
	s.VisitExprs(func(e Expr) {
		if id, ok := e.(*Ident); ok {
			fn(id)
		}
	})
}

func walkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *Binary:
		walkExpr(n.Left, fn)
		walkExpr(n.Right, fn)
	case *Unary:
		walkExpr(n.Operand, fn)
	case *Call:
		for _, a := range n.Args {
			walkExpr(a, fn)
		}
	case *In:
		walkExpr(n.Left, fn)
		for _, a := range n.List {
			walkExpr(a, fn)
		}
	case *IsNull:
		walkExpr(n.Operand, fn)
	case *Paren:
		walkExpr(n.Operand, fn)
	}
}
