package sqlparse

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, sql string) *Statement {
	t.Helper()
	stmt, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	return stmt
}

func TestParseSimpleSelect(t *testing.T) {
	stmt := mustParse(t, "SELECT a, b FROM Sales.Orders WHERE a > 10 ORDER BY b DESC LIMIT 5")

	if len(stmt.Select) != 2 {
		t.Fatalf("select items = %d, want 2", len(stmt.Select))
	}
	if len(stmt.From) != 1 {
		t.Fatalf("from entries = %d, want 1", len(stmt.From))
	}
	ref := stmt.From[0].Ref
	if ref.Raw() != "Sales.Orders" {
		t.Errorf("ref = %q, want Sales.Orders", ref.Raw())
	}
	if stmt.Where == nil || len(stmt.OrderBy) != 1 || !stmt.OrderBy[0].Desc || stmt.Limit == nil {
		t.Errorf("clause parsing incomplete: %+v", stmt)
	}
}

func TestParseNumericSheetSegment(t *testing.T) {
	// Sheet names can be bare numbers; the lexer must not absorb ".2023"
	// into a float literal.
	stmt := mustParse(t, "SELECT * FROM Sales.2023 s WHERE s.amount > 1000")
	parts := stmt.From[0].Ref.Parts
	if len(parts) != 2 || parts[0] != "Sales" || parts[1] != "2023" {
		t.Fatalf("ref parts = %v, want [Sales 2023]", parts)
	}
	if stmt.From[0].Alias != "s" {
		t.Errorf("alias = %q, want s", stmt.From[0].Alias)
	}
}

func TestParseStripsLineComments(t *testing.T) {
	stmt := mustParse(t, "SELECT a -- trailing comment\nFROM f.s -- another\n")
	if len(stmt.Select) != 1 || stmt.Select[0].Star {
		t.Fatalf("unexpected select: %+v", stmt.Select)
	}
}

func TestParseUnicodeIdentifiers(t *testing.T) {
	stmt := mustParse(t, "SELECT Ümsätze FROM Dätei.Blätt")
	id, ok := stmt.Select[0].Expr.(*Ident)
	if !ok || id.Parts[0] != "Ümsätze" {
		t.Fatalf("select expr = %#v", stmt.Select[0].Expr)
	}
	if stmt.From[0].Ref.Raw() != "Dätei.Blätt" {
		t.Errorf("ref = %q", stmt.From[0].Ref.Raw())
	}
}

func TestParseJoins(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM a.b x LEFT OUTER JOIN c.d y ON x.id = y.id")
	if len(stmt.From) != 2 {
		t.Fatalf("from entries = %d, want 2", len(stmt.From))
	}
	if stmt.From[1].Join != "LEFT JOIN" {
		t.Errorf("join = %q, want LEFT JOIN", stmt.From[1].Join)
	}
	if stmt.From[1].On == nil {
		t.Error("ON clause missing")
	}
}

func TestParseUnnest(t *testing.T) {
	stmt := mustParse(t, "SELECT o.id, item FROM Orders.Data o CROSS JOIN UNNEST(o.items) AS item")
	if len(stmt.From) != 2 {
		t.Fatalf("from entries = %d, want 2", len(stmt.From))
	}
	u := stmt.From[1].Unnest
	if u == nil || u.Qualifier != "o" || u.Field != "items" {
		t.Fatalf("unnest = %+v", u)
	}
	if stmt.From[1].Alias != "item" {
		t.Errorf("alias = %q, want item", stmt.From[1].Alias)
	}
}

func TestParseParams(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM f.s WHERE a = :minAmount AND b IN ('x', 'y')")
	var params []string
	stmt.VisitExprs(func(e Expr) {
		if p, ok := e.(*Param); ok {
			params = append(params, p.Name)
		}
	})
	if len(params) != 1 || params[0] != "minAmount" {
		t.Fatalf("params = %v", params)
	}
}

func TestParseDoubleEqualsNormalized(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM f.s WHERE a == 1")
	bin, ok := stmt.Where.(*Binary)
	if !ok || bin.Op != "=" {
		t.Fatalf("where = %#v, want = comparison", stmt.Where)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"UPDATE f.s SET a = 1",
		"SELECT FROM f.s",
		"SELECT * FROM f.s WHERE",
		"SELECT * FROM f.s GROUP a",
		"SELECT a FROM f.s trailing nonsense here (",
	}
	for _, sql := range bad {
		if _, err := Parse(sql); err == nil {
			t.Errorf("Parse(%q): expected error", sql)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	cases := []string{
		"SELECT * FROM t",
		"SELECT DISTINCT a, b AS total FROM f.s WHERE a > 1 AND b < 2",
		"SELECT COUNT(*) FROM f.s GROUP BY region HAVING COUNT(*) > 2",
		"SELECT * FROM a.b x JOIN c.d y ON x.id = y.id ORDER BY x.id LIMIT 10 OFFSET 5",
		"SELECT * FROM f.s WHERE name LIKE 'A%' OR name IS NULL",
		"SELECT * FROM f.s WHERE a IN (1, 2, 3) AND NOT b = 4",
	}
	for _, sql := range cases {
		first := Serialize(mustParse(t, sql))
		second := Serialize(mustParse(t, first))
		if first != second {
			t.Errorf("serialization not stable:\n sql:    %s\n first:  %s\n second: %s", sql, first, second)
		}
	}
}

func TestSerializePreservesGrouping(t *testing.T) {
	// (a OR b) AND c must not flatten to a OR b AND c.
	stmt := mustParse(t, "SELECT * FROM f.s WHERE (a = 1 OR b = 2) AND c = 3")
	out := Serialize(stmt)
	if !strings.Contains(out, "(") {
		t.Errorf("grouping lost: %s", out)
	}
	reparsed := mustParse(t, out)
	bin, ok := reparsed.Where.(*Binary)
	if !ok || bin.Op != "AND" {
		t.Fatalf("top-level op = %#v, want AND", reparsed.Where)
	}
}

func TestSerializeQuotesNonPlainIdents(t *testing.T) {
	stmt := mustParse(t, `SELECT s."item.name" FROM f.s`)
	out := Serialize(stmt)
	if !strings.Contains(out, `"item.name"`) {
		t.Errorf("flattened column not quoted: %s", out)
	}
}

func TestQuoteIdent(t *testing.T) {
	cases := map[string]string{
		"plain":   "plain",
		"Sales":   "Sales",
		"2023":    `"2023"`,
		"a b":     `"a b"`,
		"item.x":  `"item.x"`,
		"Ümsätze": `"Ümsätze"`,
		"select":  `"select"`,
		`qu"ote`:  `"qu""ote"`,
	}
	for in, want := range cases {
		if got := QuoteIdent(in); got != want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", in, got, want)
		}
	}
}
