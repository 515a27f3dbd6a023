package sqlparse

import (
	"fmt"
	"strings"
)

// reserved are keywords that terminate an implicit alias position.
var reserved = map[string]bool{
	"SELECT": true, "DISTINCT": true, "AS": true, "FROM": true,
	"WHERE": true, "GROUP": true, "BY": true, "HAVING": true,
	"ORDER": true, "LIMIT": true, "OFFSET": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "OUTER": true, "CROSS": true, "ON": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true,
	"NULL": true, "LIKE": true, "ASC": true, "DESC": true,
	"UNNEST": true, "UNION": true, "TRUE": true, "FALSE": true,
}

type parser struct {
	toks []token
	i    int
}

// Parse parses a single SELECT statement of the sheet query dialect.
func Parse(sql string) (*Statement, error) {
	toks, err := lex(sql)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	for p.acceptSymbol(";") {
	}
	if p.cur().kind != tokEOF {
		return nil, p.errf("unexpected %q after end of statement", p.cur().text)
	}
	return stmt, nil
}

func (p *parser) cur() token  { return p.toks[p.i] }
func (p *parser) peek() token { return p.toks[min(p.i+1, len(p.toks)-1)] }
func (p *parser) advance()    { p.i++ }

func (p *parser) errf(format string, args ...interface{}) error {
	return fmt.Errorf("parse error at offset %d: %s", p.cur().pos, fmt.Sprintf(format, args...))
}

func (p *parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errf("expected %s, got %q", kw, p.cur().text)
	}
	return nil
}

func (p *parser) isSymbol(s string) bool {
	t := p.cur()
	return t.kind == tokSymbol && t.text == s
}

func (p *parser) acceptSymbol(s string) bool {
	if p.isSymbol(s) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectSymbol(s string) error {
	if !p.acceptSymbol(s) {
		return p.errf("expected %q, got %q", s, p.cur().text)
	}
	return nil
}

func (p *parser) parseStatement() (*Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &Statement{}
	stmt.Distinct = p.acceptKeyword("DISTINCT")

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmt.Select = append(stmt.Select, item)
		if !p.acceptSymbol(",") {
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	first, err := p.parseTableExpr("")
	if err != nil {
		return nil, err
	}
	stmt.From = append(stmt.From, first)

	for {
		join, ok, err := p.parseJoinKeyword()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		te, err := p.parseTableExpr(join)
		if err != nil {
			return nil, err
		}
		if p.acceptKeyword("ON") {
			on, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			te.On = on
		}
		stmt.From = append(stmt.From, te)
	}

	if p.acceptKeyword("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if p.acceptKeyword("HAVING") {
		if stmt.Having, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: e}
			if p.acceptKeyword("DESC") {
				item.Desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if p.acceptKeyword("LIMIT") {
		if stmt.Limit, err = p.parseExpr(); err != nil {
			return nil, err
		}
		if p.acceptKeyword("OFFSET") {
			if stmt.Offset, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
	}
	return stmt, nil
}

// parseJoinKeyword consumes a join introducer and returns its normalized
// form. INNER JOIN normalizes to JOIN; OUTER is absorbed into the
// directional joins.
func (p *parser) parseJoinKeyword() (string, bool, error) {
	switch {
	case p.acceptSymbol(","):
		return ",", true, nil
	case p.acceptKeyword("JOIN"):
		return "JOIN", true, nil
	case p.acceptKeyword("INNER"):
		return "JOIN", true, p.expectKeyword("JOIN")
	case p.acceptKeyword("CROSS"):
		return "CROSS JOIN", true, p.expectKeyword("JOIN")
	case p.acceptKeyword("LEFT"):
		p.acceptKeyword("OUTER")
		return "LEFT JOIN", true, p.expectKeyword("JOIN")
	case p.acceptKeyword("RIGHT"):
		p.acceptKeyword("OUTER")
		return "RIGHT JOIN", true, p.expectKeyword("JOIN")
	case p.acceptKeyword("FULL"):
		p.acceptKeyword("OUTER")
		return "FULL JOIN", true, p.expectKeyword("JOIN")
	}
	return "", false, nil
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	if p.acceptSymbol("*") {
		return SelectItem{Star: true}, nil
	}
	// Qualified star: ident '.' '*'
	if (p.cur().kind == tokIdent || p.cur().kind == tokQuotedIdent) && !reserved[strings.ToUpper(p.cur().text)] {
		if p.peek().kind == tokSymbol && p.peek().text == "." &&
			p.i+2 < len(p.toks) && p.toks[p.i+2].kind == tokSymbol && p.toks[p.i+2].text == "*" {
			q := p.cur().text
			p.advance()
			p.advance()
			p.advance()
			return SelectItem{Star: true, Qualifier: q}, nil
		}
	}
	e, err := p.parseExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: e}
	if p.acceptKeyword("AS") {
		name, err := p.parseName()
		if err != nil {
			return SelectItem{}, err
		}
		item.Alias = name
	} else if p.implicitAliasAhead() {
		item.Alias = p.cur().text
		p.advance()
	}
	return item, nil
}

// implicitAliasAhead reports whether the current token can serve as a bare
// alias (an identifier that is not a reserved keyword).
func (p *parser) implicitAliasAhead() bool {
	t := p.cur()
	if t.kind == tokQuotedIdent {
		return true
	}
	return t.kind == tokIdent && !reserved[strings.ToUpper(t.text)]
}

func (p *parser) parseName() (string, error) {
	t := p.cur()
	if t.kind == tokIdent || t.kind == tokQuotedIdent {
		p.advance()
		return t.text, nil
	}
	return "", p.errf("expected identifier, got %q", t.text)
}

// parseRefSegment accepts identifier, quoted identifier, or bare number
// tokens as segments of a dotted table reference (sheet names like "2023").
func (p *parser) parseRefSegment() (string, error) {
	t := p.cur()
	if t.kind == tokIdent || t.kind == tokQuotedIdent || t.kind == tokNumber {
		p.advance()
		return t.text, nil
	}
	return "", p.errf("expected reference segment, got %q", t.text)
}

func (p *parser) parseTableExpr(join string) (TableExpr, error) {
	if p.acceptKeyword("UNNEST") {
		if err := p.expectSymbol("("); err != nil {
			return TableExpr{}, err
		}
		qual, err := p.parseName()
		if err != nil {
			return TableExpr{}, err
		}
		if err := p.expectSymbol("."); err != nil {
			return TableExpr{}, err
		}
		field, err := p.parseRefSegment()
		if err != nil {
			return TableExpr{}, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return TableExpr{}, err
		}
		te := TableExpr{Join: join, Unnest: &UnnestExpr{Qualifier: qual, Field: field}}
		te.Alias, err = p.parseOptionalAlias()
		return te, err
	}

	seg, err := p.parseRefSegment()
	if err != nil {
		return TableExpr{}, err
	}
	parts := []string{seg}
	for p.acceptSymbol(".") {
		seg, err := p.parseRefSegment()
		if err != nil {
			return TableExpr{}, err
		}
		parts = append(parts, seg)
	}
	te := TableExpr{Join: join, Ref: TableRef{Parts: parts}}
	te.Alias, err = p.parseOptionalAlias()
	return te, err
}

func (p *parser) parseOptionalAlias() (string, error) {
	if p.acceptKeyword("AS") {
		return p.parseName()
	}
	if p.implicitAliasAhead() {
		t := p.cur()
		p.advance()
		return t.text, nil
	}
	return "", nil
}

// --- expressions, precedence climbing ---

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.acceptKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]string{
	"=": "=", "==": "=", "!=": "!=", "<>": "<>",
	"<": "<", "<=": "<=", ">": ">", ">=": ">=",
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if t := p.cur(); t.kind == tokSymbol {
		if op, ok := comparisonOps[t.text]; ok {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &Binary{Op: op, Left: left, Right: right}, nil
		}
	}

	not := false
	if p.isKeyword("NOT") && (strings.EqualFold(p.peek().text, "LIKE") || strings.EqualFold(p.peek().text, "IN")) {
		p.advance()
		not = true
	}
	switch {
	case p.acceptKeyword("LIKE"):
		pattern, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		op := "LIKE"
		if not {
			op = "NOT LIKE"
		}
		return &Binary{Op: op, Left: left, Right: pattern}, nil
	case p.acceptKeyword("IN"):
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		var list []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list = append(list, e)
			if !p.acceptSymbol(",") {
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &In{Not: not, Left: left, List: list}, nil
	case p.acceptKeyword("IS"):
		isNot := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNull{Not: isNot, Operand: left}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		if t.kind != tokSymbol || (t.text != "+" && t.text != "-" && t.text != "||") {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		if t.kind != tokSymbol || (t.text != "*" && t.text != "/" && t.text != "%") {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.acceptSymbol("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", Operand: operand}, nil
	}
	p.acceptSymbol("+")
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.advance()
		return &Literal{Kind: LitNumber, Text: t.text}, nil
	case tokString:
		p.advance()
		return &Literal{Kind: LitString, Text: t.text}, nil
	case tokParam:
		p.advance()
		return &Param{Name: t.text}, nil
	case tokSymbol:
		if t.text == "(" {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return &Paren{Operand: e}, nil
		}
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "NULL":
			p.advance()
			return &Literal{Kind: LitNull, Text: "NULL"}, nil
		case "TRUE", "FALSE":
			p.advance()
			return &Literal{Kind: LitBool, Text: strings.ToUpper(t.text)}, nil
		}
		if p.peek().kind == tokSymbol && p.peek().text == "(" {
			return p.parseCall(t.text)
		}
		return p.parseCompoundIdent()
	case tokQuotedIdent:
		return p.parseCompoundIdent()
	}
	return nil, p.errf("unexpected token %q", t.text)
}

func (p *parser) parseCall(name string) (Expr, error) {
	p.advance() // name
	p.advance() // (
	call := &Call{Name: name}
	if p.acceptSymbol("*") {
		call.Star = true
		return call, p.expectSymbol(")")
	}
	if p.acceptSymbol(")") {
		return call, nil
	}
	call.Distinct = p.acceptKeyword("DISTINCT")
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.acceptSymbol(",") {
			break
		}
	}
	return call, p.expectSymbol(")")
}

func (p *parser) parseCompoundIdent() (Expr, error) {
	seg, err := p.parseName()
	if err != nil {
		return nil, err
	}
	parts := []string{seg}
	for p.isSymbol(".") {
		p.advance()
		seg, err := p.parseRefSegment()
		if err != nil {
			return nil, err
		}
		parts = append(parts, seg)
	}
	return &Ident{Parts: parts}, nil
}
