package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// scalarFuncs are the sheet dialect's custom SQL functions, registered on
// every engine connection. Names are case-insensitive in SQLite.
var scalarFuncs = map[string]interface{}{
	"json_extract":          sqlJSONExtract,
	"json_value":            sqlJSONValue,
	"json_extract_filtered": sqlJSONExtractFiltered,
	"array_length":          sqlArrayLength,
	"array_contains":        sqlArrayContains,
	"json_contains":         sqlJSONContains,
	"json_schema_valid":     sqlJSONSchemaValid,
	"json_object":           sqlJSONObject,
	"json_array":            sqlJSONArray,
}

// sqlJSONExtract walks a dotted path, including prop[index] segments, into
// a JSON document. Scalars come back as themselves; objects and arrays come
// back re-serialized. A miss anywhere along the path yields NULL.
func sqlJSONExtract(value, path interface{}) (interface{}, error) {
	doc, ok := parseJSON(value)
	if !ok {
		return nil, nil
	}
	result := walkPath(doc, toString(path))
	if result == nil {
		return nil, nil
	}
	switch result.(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(result)
		if err != nil {
			return nil, nil
		}
		return string(b), nil
	}
	return result, nil
}

// sqlJSONValue is JSON_EXTRACT with the result always collapsed to text.
func sqlJSONValue(value, path interface{}) (interface{}, error) {
	v, err := sqlJSONExtract(value, path)
	if err != nil || v == nil {
		return nil, err
	}
	return stringify(v), nil
}

// sqlJSONExtractFiltered keeps the elements of a JSON array whose key
// property loosely equals val, projects the target property from the
// survivors, and returns them as a JSON array string. Non-array input
// yields "[]".
func sqlJSONExtractFiltered(value, key, val, target interface{}) (string, error) {
	arr, ok := parseJSONArray(value)
	if !ok {
		return "[]", nil
	}
	keyName := toString(key)
	want := stringify(val)
	targetName := toString(target)

	projected := []interface{}{}
	for _, elem := range arr {
		obj, ok := elem.(map[string]interface{})
		if !ok {
			continue
		}
		if stringify(obj[keyName]) == want {
			projected = append(projected, obj[targetName])
		}
	}
	b, err := json.Marshal(projected)
	if err != nil {
		return "[]", nil
	}
	return string(b), nil
}

// sqlArrayLength returns the element count of an array value. Strings that
// fail to parse as JSON fall back to a comma-split count; any other
// non-array scalar counts as 1.
func sqlArrayLength(value interface{}) (int64, error) {
	switch t := value.(type) {
	case nil:
		return 0, nil
	case []interface{}:
		return int64(len(t)), nil
	}
	s := toString(value)
	if arr, ok := parseJSONArray(s); ok {
		return int64(len(arr)), nil
	}
	if looksLikeJSON(s) {
		return 1, nil
	}
	if strings.Contains(s, ",") {
		return int64(len(strings.Split(s, ","))), nil
	}
	return 1, nil
}

// sqlArrayContains reports whether a JSON array holds an element loosely
// equal to val.
func sqlArrayContains(value, val interface{}) (bool, error) {
	arr, ok := parseJSONArray(value)
	if !ok {
		return false, nil
	}
	want := stringify(val)
	for _, elem := range arr {
		if stringify(elem) == want {
			return true, nil
		}
	}
	return false, nil
}

// sqlJSONContains reports whether doc structurally contains candidate:
// objects by key/value containment, arrays by element membership, scalars
// by loose equality.
func sqlJSONContains(doc, candidate interface{}) (bool, error) {
	d, ok := parseJSON(doc)
	if !ok {
		return false, nil
	}
	c, ok := parseJSON(candidate)
	if !ok {
		c = candidate
	}
	return jsonContains(d, c), nil
}

func jsonContains(doc, candidate interface{}) bool {
	switch c := candidate.(type) {
	case map[string]interface{}:
		d, ok := doc.(map[string]interface{})
		if !ok {
			return false
		}
		for k, v := range c {
			dv, ok := d[k]
			if !ok || !jsonContains(dv, v) {
				return false
			}
		}
		return true
	case []interface{}:
		d, ok := doc.([]interface{})
		if !ok {
			return false
		}
		for _, cv := range c {
			found := false
			for _, dv := range d {
				if jsonContains(dv, cv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		if d, ok := doc.([]interface{}); ok {
			for _, dv := range d {
				if stringify(dv) == stringify(candidate) {
					return true
				}
			}
			return false
		}
		return stringify(doc) == stringify(candidate)
	}
}

// sqlJSONSchemaValid validates a JSON document against a JSON Schema. Any
// compile or validation failure yields false rather than an error.
func sqlJSONSchemaValid(schemaText, doc interface{}) (bool, error) {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(toString(schemaText)))
	if err != nil {
		return false, nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", schemaDoc); err != nil {
		return false, nil
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return false, nil
	}
	instance, ok := parseJSON(doc)
	if !ok {
		instance = doc
	}
	return schema.Validate(instance) == nil, nil
}

// sqlJSONObject builds a JSON object from alternating key/value arguments,
// preserving argument order.
func sqlJSONObject(args ...interface{}) (string, error) {
	if len(args)%2 != 0 {
		return "", fmt.Errorf("JSON_OBJECT requires an even number of arguments")
	}
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i < len(args); i += 2 {
		if i > 0 {
			b.WriteString(",")
		}
		key, _ := json.Marshal(toString(args[i]))
		b.Write(key)
		b.WriteString(":")
		val, err := json.Marshal(args[i+1])
		if err != nil {
			return "", err
		}
		b.Write(val)
	}
	b.WriteString("}")
	return b.String(), nil
}

// sqlJSONArray builds a JSON array from its arguments.
func sqlJSONArray(args ...interface{}) (string, error) {
	if args == nil {
		return "[]", nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// --- value helpers ---

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// stringify renders a value the way the rule evaluator compares it: numbers
// without trailing zeros, structures as JSON.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{")
}

// parseJSON returns the structured form of v: pass-through for already
// structured values, a JSON parse for strings and blobs.
func parseJSON(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}, []interface{}:
		return t, true
	case string:
		return unmarshalAny(t)
	case []byte:
		return unmarshalAny(string(t))
	case nil:
		return nil, false
	default:
		return t, true
	}
}

func parseJSONArray(v interface{}) ([]interface{}, bool) {
	doc, ok := parseJSON(v)
	if !ok {
		return nil, false
	}
	arr, ok := doc.([]interface{})
	return arr, ok
}

func unmarshalAny(s string) (interface{}, bool) {
	if !looksLikeJSON(s) {
		return s, true
	}
	var out interface{}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}

var pathIndex = regexp.MustCompile(`\[(\d+)\]`)

// walkPath navigates a parsed JSON value along a dotted path. Each segment
// may carry one or more [index] suffixes.
func walkPath(doc interface{}, path string) interface{} {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, `'"`)
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return doc
	}
	current := doc
	for _, segment := range strings.Split(path, ".") {
		name := segment
		var indices []int
		if matches := pathIndex.FindAllStringSubmatch(segment, -1); len(matches) > 0 {
			name = segment[:strings.Index(segment, "[")]
			for _, m := range matches {
				idx, err := strconv.Atoi(m[1])
				if err != nil {
					return nil
				}
				indices = append(indices, idx)
			}
		}
		if name != "" {
			obj, ok := current.(map[string]interface{})
			if !ok {
				return nil
			}
			current = obj[name]
		}
		for _, idx := range indices {
			arr, ok := current.([]interface{})
			if !ok || idx >= len(arr) {
				return nil
			}
			current = arr[idx]
		}
	}
	return current
}
