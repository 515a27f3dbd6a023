package rules

import (
	"encoding/json"
	"testing"

	"sheetql/internal/domain"
)

func TestEvaluateComparisons(t *testing.T) {
	row := domain.Row{"a": float64(5), "b": "5", "name": "widget", "empty": ""}

	cases := []struct {
		expr string
		want bool
	}{
		{"5 > 3", true},
		{"3 > 5", false},
		{"a = b", true}, // equality coerces to string form
		{"a == 5", true},
		{"a != 4", true},
		{"a >= 5", true},
		{"a <= 4", false},
		{"name = 'widget'", true},
		{"name = 'gadget'", false},
		{"a > 'not a number'", false}, // ordering needs numeric operands
	}
	for _, tc := range cases {
		if got := Evaluate(tc.expr, row); got != tc.want {
			t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluateBooleanCombinators(t *testing.T) {
	row := domain.Row{"v": float64(5)}

	if !Evaluate("v > 3 AND v < 10", row) {
		t.Error("AND of two true leaves should hold")
	}
	if Evaluate("v > 3 AND v > 10", row) {
		t.Error("AND with a false leaf should fail")
	}
	if !Evaluate("v > 10 OR v = 5", row) {
		t.Error("OR with a true leaf should hold")
	}
	// Mixing AND and OR has no defined grouping: fail closed.
	if Evaluate("v > 3 AND v < 10 OR v = 5", row) {
		t.Error("mixed AND/OR must evaluate to false")
	}
}

func TestEvaluateFailClosed(t *testing.T) {
	row := domain.Row{"a": float64(1)}
	for _, expr := range []string{
		"",
		"NO_SUCH_FUNC(a) > 0 AND",
		"a > ",
	} {
		if Evaluate(expr, row) {
			t.Errorf("Evaluate(%q) should fail closed", expr)
		}
	}
}

func TestArrayLengthRoundTrip(t *testing.T) {
	arrays := [][]interface{}{
		{},
		{"a"},
		{"a", "b", "c"},
		{float64(1), float64(2)},
	}
	for _, arr := range arrays {
		serialized, err := json.Marshal(arr)
		if err != nil {
			t.Fatal(err)
		}
		row := domain.Row{"items": string(serialized)}
		if got := arrayLength(row["items"]); got != len(arr) {
			t.Errorf("arrayLength(%s) = %d, want %d", serialized, got, len(arr))
		}
	}
}

func TestArrayLengthFallbacks(t *testing.T) {
	cases := []struct {
		value interface{}
		want  int
	}{
		{nil, 0},
		{"", 0},
		{"a,b,c", 3},     // comma-split fallback
		{"scalar", 1},    // non-array scalar
		{float64(42), 1}, // non-string scalar
		{[]interface{}{"x", "y"}, 2},
	}
	for _, tc := range cases {
		if got := arrayLength(tc.value); got != tc.want {
			t.Errorf("arrayLength(%v) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestEvaluateArrayLengthInExpression(t *testing.T) {
	row := domain.Row{"items": `["a","b"]`, "none": "[]"}
	if !Evaluate("ARRAY_LENGTH(items) > 0", row) {
		t.Error("two-element array should have positive length")
	}
	if Evaluate("ARRAY_LENGTH(none) > 0", row) {
		t.Error("empty array should have zero length")
	}
	if !Evaluate("ARRAY_LENGTH(items) = 2", row) {
		t.Error("length should equal 2")
	}
}

func TestJSONExtract(t *testing.T) {
	row := domain.Row{"doc": `{"type":"order","qty":3}`}
	if !Evaluate("JSON_EXTRACT(doc, '$.type') = 'order'", row) {
		t.Error("$.type should extract the type property")
	}
	if !Evaluate("JSON_EXTRACT(doc, 'qty') = 3", row) {
		t.Error("bare property path should work")
	}
	if Evaluate("JSON_EXTRACT(doc, '$.missing') = 'order'", row) {
		t.Error("missing property should not compare equal")
	}
}

func TestJSONExtractFilteredOrdering(t *testing.T) {
	data := `[{"k":"a","v":1},{"k":"b","v":2},{"k":"a","v":3}]`

	got := jsonExtractFiltered(data, "k", "a", "v")
	if got != "[1,3]" {
		t.Errorf("projection = %s, want [1,3]", got)
	}

	if got := jsonExtractFiltered("not an array", "k", "a", "v"); got != "[]" {
		t.Errorf("non-array input = %s, want []", got)
	}
	if got := jsonExtractFiltered(`{"k":"a"}`, "k", "a", "v"); got != "[]" {
		t.Errorf("object input = %s, want []", got)
	}
}

func TestEvaluateNestedCalls(t *testing.T) {
	row := domain.Row{"doc": `{"tags":["x","y","z"]}`}
	if !Evaluate("ARRAY_LENGTH(JSON_EXTRACT(doc, 'tags')) = 3", row) {
		t.Error("nested call should resolve inside-out")
	}
}

func TestUnknownFunctionFallsBackToZero(t *testing.T) {
	row := domain.Row{}
	if !Evaluate("BOGUS(1) = 0", row) {
		t.Error("unknown function should resolve to the literal \"0\"")
	}
}

func TestStrictModeCollectsWarnings(t *testing.T) {
	ev := &evaluator{strict: true}
	ev.eval("BOGUS(1) = 1", domain.Row{})
	ev.eval("a > 1 AND b < 2 OR c = 3", domain.Row{})
	if len(ev.warnings) < 2 {
		t.Fatalf("warnings = %v, want unknown-function and mixed-combinator diagnostics", ev.warnings)
	}
}

func TestSplitArgsRespectsNesting(t *testing.T) {
	got := splitArgs(`doc, 'a,b', [1,2], {"k":"v,w"}`)
	want := []string{"doc", "'a,b'", "[1,2]", `{"k":"v,w"}`}
	if len(got) != len(want) {
		t.Fatalf("splitArgs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, got[i], want[i])
		}
	}
}
