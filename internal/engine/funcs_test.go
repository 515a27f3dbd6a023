package engine

import "testing"

func TestWalkPath(t *testing.T) {
	doc := map[string]interface{}{
		"a": map[string]interface{}{
			"b": []interface{}{
				map[string]interface{}{"c": "x"},
				map[string]interface{}{"c": "y"},
			},
		},
		"n": float64(3),
	}
	cases := []struct {
		path string
		want interface{}
	}{
		{"$.n", float64(3)},
		{"n", float64(3)},
		{"'n'", float64(3)},
		{"a.b[0].c", "x"},
		{"a.b[1].c", "y"},
		{"a.b[5].c", nil},
		{"a.missing", nil},
		{"n.too.deep", nil},
	}
	for _, tc := range cases {
		if got := walkPath(doc, tc.path); got != tc.want {
			t.Errorf("walkPath(%q) = %#v, want %#v", tc.path, got, tc.want)
		}
	}
}

func TestSQLJSONExtract(t *testing.T) {
	v, err := sqlJSONExtract(`{"type":"order","nested":{"k":1}}`, "$.type")
	if err != nil || v != "order" {
		t.Errorf("extract type = %#v, %v", v, err)
	}
	v, _ = sqlJSONExtract(`{"nested":{"k":1}}`, "nested")
	if v != `{"k":1}` {
		t.Errorf("object result should be serialized JSON, got %#v", v)
	}
	v, _ = sqlJSONExtract("not json at all {", "$.x")
	if v != nil {
		t.Errorf("unparsable doc = %#v, want nil", v)
	}
}

func TestSQLArrayLength(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int64
	}{
		{nil, 0},
		{`[1,2,3]`, 3},
		{`[]`, 0},
		{"a,b", 2},
		{"plain", 1},
		{`{"k":1}`, 1},
		{[]interface{}{"x"}, 1},
	}
	for _, tc := range cases {
		got, err := sqlArrayLength(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("sqlArrayLength(%#v) = %d, %v, want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestSQLArrayContains(t *testing.T) {
	ok, _ := sqlArrayContains(`["a","b"]`, "a")
	if !ok {
		t.Error("a should be contained")
	}
	ok, _ = sqlArrayContains(`[1,2]`, int64(2))
	if !ok {
		t.Error("loose equality should match 2 against JSON number 2")
	}
	ok, _ = sqlArrayContains(`"scalar"`, "scalar")
	if ok {
		t.Error("non-array doc contains nothing")
	}
}

func TestSQLJSONContains(t *testing.T) {
	ok, _ := sqlJSONContains(`{"a":1,"b":{"c":2}}`, `{"b":{"c":2}}`)
	if !ok {
		t.Error("object containment should hold")
	}
	ok, _ = sqlJSONContains(`{"a":1}`, `{"a":2}`)
	if ok {
		t.Error("mismatched value must not be contained")
	}
	ok, _ = sqlJSONContains(`[1,2,3]`, `[3,1]`)
	if !ok {
		t.Error("array membership containment should hold")
	}
	ok, _ = sqlJSONContains(`[1,2]`, "2")
	if !ok {
		t.Error("scalar membership in array should hold")
	}
}

func TestSQLJSONSchemaValid(t *testing.T) {
	schema := `{"type":"object","required":["id"],"properties":{"id":{"type":"integer"}}}`
	ok, _ := sqlJSONSchemaValid(schema, `{"id":1}`)
	if !ok {
		t.Error("valid document rejected")
	}
	ok, _ = sqlJSONSchemaValid(schema, `{"name":"x"}`)
	if ok {
		t.Error("document missing required id accepted")
	}
	ok, _ = sqlJSONSchemaValid("{ not a schema", `{}`)
	if ok {
		t.Error("broken schema should yield false, not error")
	}
}

func TestSQLJSONObjectPreservesOrder(t *testing.T) {
	got, err := sqlJSONObject("z", int64(1), "a", "two")
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"z":1,"a":"two"}` {
		t.Errorf("json_object = %s", got)
	}
	if _, err := sqlJSONObject("key"); err == nil {
		t.Error("odd argument count should error")
	}
}

func TestSQLJSONArray(t *testing.T) {
	got, err := sqlJSONArray(int64(1), "x")
	if err != nil || got != `[1,"x"]` {
		t.Errorf("json_array = %s, %v", got, err)
	}
	got, _ = sqlJSONArray()
	if got != "[]" {
		t.Errorf("empty json_array = %s", got)
	}
}

func TestBindValue(t *testing.T) {
	if got := bindValue("42"); got != int64(42) {
		t.Errorf("bindValue(42) = %#v", got)
	}
	if got := bindValue("-3.5"); got != float64(-3.5) {
		t.Errorf("bindValue(-3.5) = %#v", got)
	}
	// Leading zeros carry meaning (codes, phone numbers): keep the string.
	if got := bindValue("007"); got != "007" {
		t.Errorf("bindValue(007) = %#v", got)
	}
	if got := bindValue("abc"); got != "abc" {
		t.Errorf("bindValue(abc) = %#v", got)
	}
	if got := bindValue(map[string]interface{}{"k": "v"}); got != `{"k":"v"}` {
		t.Errorf("bindValue(map) = %#v", got)
	}
	if got := bindValue(nil); got != nil {
		t.Errorf("bindValue(nil) = %#v", got)
	}
}
