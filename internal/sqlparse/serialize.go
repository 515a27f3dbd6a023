package sqlparse

import (
	"strings"
)

// Serialize renders the statement as canonical SQL for the embedded engine.
// Identifiers are double-quoted whenever they are not plain ASCII words, so
// synthetic relation names and flattened "alias.prop" column names survive.
func Serialize(s *Statement) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, item := range s.Select {
		if i > 0 {
			b.WriteString(", ")
		}
		writeSelectItem(&b, item)
	}
	b.WriteString(" FROM ")
	for _, te := range s.From {
		writeTableExpr(&b, te)
	}
	if s.Where != nil {
		b.WriteString(" WHERE ")
		writeExpr(&b, s.Where, 0)
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, e := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(&b, e, 0)
		}
	}
	if s.Having != nil {
		b.WriteString(" HAVING ")
		writeExpr(&b, s.Having, 0)
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, item := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(&b, item.Expr, 0)
			if item.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if s.Limit != nil {
		b.WriteString(" LIMIT ")
		writeExpr(&b, s.Limit, 0)
		if s.Offset != nil {
			b.WriteString(" OFFSET ")
			writeExpr(&b, s.Offset, 0)
		}
	}
	return b.String()
}

func writeSelectItem(b *strings.Builder, item SelectItem) {
	if item.Star {
		if item.Qualifier != "" {
			b.WriteString(QuoteIdent(item.Qualifier))
			b.WriteString(".")
		}
		b.WriteString("*")
		return
	}
	writeExpr(b, item.Expr, 0)
	if item.Alias != "" {
		b.WriteString(" AS ")
		b.WriteString(QuoteIdent(item.Alias))
	}
}

func writeTableExpr(b *strings.Builder, te TableExpr) {
	switch te.Join {
	case "":
	case ",":
		b.WriteString(", ")
	default:
		b.WriteString(" ")
		b.WriteString(te.Join)
		b.WriteString(" ")
	}
	if te.Unnest != nil {
		b.WriteString("UNNEST(")
		b.WriteString(QuoteIdent(te.Unnest.Qualifier))
		b.WriteString(".")
		b.WriteString(QuoteIdent(te.Unnest.Field))
		b.WriteString(")")
	} else {
		for i, part := range te.Ref.Parts {
			if i > 0 {
				b.WriteString(".")
			}
			b.WriteString(QuoteIdent(part))
		}
	}
	if te.Alias != "" {
		b.WriteString(" ")
		b.WriteString(QuoteIdent(te.Alias))
	}
	if te.On != nil {
		b.WriteString(" ON ")
		writeExpr(b, te.On, 0)
	}
}

// Operator precedence for parenthesization during re-serialization. Higher
// binds tighter.
func prec(op string) int {
	switch op {
	case "OR":
		return 1
	case "AND":
		return 2
	case "=", "!=", "<>", "<", "<=", ">", ">=", "LIKE", "NOT LIKE":
		return 4
	case "+", "-", "||":
		return 5
	case "*", "/", "%":
		return 6
	}
	return 7
}

func writeExpr(b *strings.Builder, e Expr, parentPrec int) {
	switch n := e.(type) {
	case *Ident:
		for i, part := range n.Parts {
			if i > 0 {
				b.WriteString(".")
			}
			b.WriteString(QuoteIdent(part))
		}
	case *Literal:
		switch n.Kind {
		case LitString:
			b.WriteString("'")
			b.WriteString(strings.ReplaceAll(n.Text, "'", "''"))
			b.WriteString("'")
		default:
			b.WriteString(n.Text)
		}
	case *Param:
		if n.Name == "" {
			b.WriteString("?")
		} else {
			b.WriteString(":")
			b.WriteString(n.Name)
		}
	case *Binary:
		p := prec(n.Op)
		if p < parentPrec {
			b.WriteString("(")
		}
		writeExpr(b, n.Left, p)
		b.WriteString(" ")
		b.WriteString(n.Op)
		b.WriteString(" ")
		writeExpr(b, n.Right, p+1)
		if p < parentPrec {
			b.WriteString(")")
		}
	case *Unary:
		if n.Op == "NOT" {
			b.WriteString("NOT ")
			writeExpr(b, n.Operand, 3)
		} else {
			b.WriteString(n.Op)
			writeExpr(b, n.Operand, 7)
		}
	case *Call:
		b.WriteString(n.Name)
		b.WriteString("(")
		if n.Star {
			b.WriteString("*")
		} else {
			if n.Distinct {
				b.WriteString("DISTINCT ")
			}
			for i, a := range n.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				writeExpr(b, a, 0)
			}
		}
		b.WriteString(")")
	case *In:
		writeExpr(b, n.Left, 4)
		if n.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (")
		for i, a := range n.List {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, a, 0)
		}
		b.WriteString(")")
	case *IsNull:
		writeExpr(b, n.Operand, 4)
		if n.Not {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}
	case *Paren:
		b.WriteString("(")
		writeExpr(b, n.Operand, 0)
		b.WriteString(")")
	}
}

// QuoteIdent quotes a SQL identifier unless it is a plain ASCII word that is
// not a reserved keyword. Uses double quotes.
func QuoteIdent(s string) string {
	if s == "" {
		return `""`
	}
	plain := true
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				plain = false
			}
		default:
			plain = false
		}
		if !plain {
			break
		}
	}
	if plain && !reserved[strings.ToUpper(s)] {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
