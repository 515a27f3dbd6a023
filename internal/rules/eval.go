// Package rules evaluates validation-rule expressions against result rows.
//
// The rule language is deliberately small: a handful of built-in functions
// (JSON_EXTRACT, JSON_EXTRACT_FILTERED, ARRAY_LENGTH) resolved textually
// inside-out, then flat comparisons joined by AND or OR. Evaluation is
// fail-closed: any malformed expression is false, never an error.
package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"sheetql/internal/domain"
)

// Evaluate runs a single rule expression against a row. It is the
// standalone entry point; diagnostics are discarded.
func Evaluate(expression string, row domain.Row) bool {
	ev := &evaluator{}
	return ev.eval(expression, row)
}

// evaluator carries strict-mode diagnostics across one validation run.
type evaluator struct {
	strict   bool
	warnings []string
}

func (ev *evaluator) warnf(format string, args ...interface{}) {
	if !ev.strict {
		return
	}
	ev.warnings = append(ev.warnings, fmt.Sprintf(format, args...))
}

// eval never panics: any failure during function resolution or comparison
// makes the whole expression false.
func (ev *evaluator) eval(expression string, row domain.Row) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			ev.warnf("rule %q: evaluation panicked: %v", expression, r)
			result = false
		}
	}()
	resolved := ev.resolveFunctions(expression, row)
	return ev.evalBoolean(resolved, expression, row)
}

// innermostCall matches a function call whose argument text contains no
// nested parentheses, so repeated substitution resolves calls inside-out.
var innermostCall = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(([^()]*)\)`)

// resolveFunctions textually replaces every function call with the string
// form of its result, innermost first, until none remain.
func (ev *evaluator) resolveFunctions(expression string, row domain.Row) string {
	// The bound only matters for pathological self-referencing input; real
	// rules nest two or three calls deep.
	for i := 0; i < 64; i++ {
		loc := innermostCall.FindStringSubmatchIndex(expression)
		if loc == nil {
			return expression
		}
		name := strings.ToUpper(expression[loc[2]:loc[3]])
		argText := expression[loc[4]:loc[5]]
		args := make([]interface{}, 0, 4)
		for _, raw := range splitArgs(argText) {
			args = append(args, ev.resolveOperand(raw, row))
		}
		result := ev.dispatch(name, args)
		expression = expression[:loc[0]] + stringify(result) + expression[loc[1]:]
	}
	return expression
}

func (ev *evaluator) dispatch(name string, args []interface{}) interface{} {
	switch name {
	case "JSON_EXTRACT":
		if len(args) < 2 {
			return nil
		}
		return jsonExtract(args[0], toText(args[1]))
	case "JSON_EXTRACT_FILTERED":
		if len(args) < 4 {
			return "[]"
		}
		return jsonExtractFiltered(args[0], toText(args[1]), toText(args[2]), toText(args[3]))
	case "ARRAY_LENGTH":
		if len(args) < 1 {
			return 0
		}
		return arrayLength(args[0])
	default:
		ev.warnf("unknown rule function %s, substituting \"0\"", name)
		return "0"
	}
}

// splitArgs splits a call's argument text on top-level commas. Commas
// inside quotes, brackets, or braces do not split.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var args []string
	var quote rune
	depth := 0
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '{':
			depth++
		case r == ']' || r == '}':
			depth--
		case r == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

// resolveOperand turns one textual operand into a value: quoted text is a
// string literal, a verbatim column name yields the row's value, numeric
// text becomes a number, and anything else stays a string.
func (ev *evaluator) resolveOperand(raw string, row domain.Row) interface{} {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) >= 2 {
		if (trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'') ||
			(trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"') {
			return trimmed[1 : len(trimmed)-1]
		}
	}
	if v, ok := row[trimmed]; ok {
		return v
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n
	}
	return trimmed
}

// --- built-in functions ---

// jsonExtract returns a single top-level property of a JSON object. Paths
// like "$.type" or "type" address the same key; deep paths are not
// supported in rule expressions.
func jsonExtract(value interface{}, path string) interface{} {
	obj, ok := asObject(value)
	if !ok {
		return nil
	}
	key := strings.TrimPrefix(strings.Trim(path, `'"`), "$.")
	return obj[key]
}

// jsonExtractFiltered keeps array elements whose key property loosely
// equals want, projects target from the survivors, and returns the
// projection as a JSON array string. Non-array input yields "[]".
func jsonExtractFiltered(value interface{}, key, want, target string) string {
	arr, ok := asArray(value)
	if !ok {
		return "[]"
	}
	out := make([]interface{}, 0, len(arr))
	for _, elem := range arr {
		obj, ok := elem.(map[string]interface{})
		if !ok {
			continue
		}
		if toText(obj[key]) != want {
			continue
		}
		out = append(out, obj[target])
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// arrayLength reports element count: parsed length for arrays and JSON
// array text, comma-split count for plain delimited text, 1 for any other
// scalar.
func arrayLength(value interface{}) int {
	switch t := value.(type) {
	case nil:
		return 0
	case []interface{}:
		return len(t)
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return 0
		}
		var arr []interface{}
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			return len(arr)
		}
		return len(strings.Split(trimmed, ","))
	default:
		return 1
	}
}

func asObject(value interface{}) (map[string]interface{}, bool) {
	switch t := value.(type) {
	case map[string]interface{}:
		return t, true
	case string:
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(t), &obj); err != nil {
			return nil, false
		}
		return obj, true
	default:
		return nil, false
	}
}

func asArray(value interface{}) ([]interface{}, bool) {
	switch t := value.(type) {
	case []interface{}:
		return t, true
	case string:
		var arr []interface{}
		if err := json.Unmarshal([]byte(t), &arr); err != nil {
			return nil, false
		}
		return arr, true
	default:
		return nil, false
	}
}

// --- boolean combination and comparison ---

// evalBoolean splits the resolved expression on AND or OR and evaluates
// the leaves. Mixing both combinators in one rule has no defined grouping,
// so it fails closed.
func (ev *evaluator) evalBoolean(resolved, original string, row domain.Row) bool {
	hasAnd := containsKeyword(resolved, "AND")
	hasOr := containsKeyword(resolved, "OR")
	switch {
	case hasAnd && hasOr:
		ev.warnf("rule %q mixes AND and OR without defined grouping; treating as failed", original)
		return false
	case hasAnd:
		for _, leaf := range splitKeyword(resolved, "AND") {
			if !ev.evalComparison(leaf, original, row) {
				return false
			}
		}
		return true
	case hasOr:
		for _, leaf := range splitKeyword(resolved, "OR") {
			if ev.evalComparison(leaf, original, row) {
				return true
			}
		}
		return false
	default:
		return ev.evalComparison(resolved, original, row)
	}
}

func containsKeyword(s, kw string) bool {
	return strings.Contains(strings.ToUpper(s), " "+kw+" ")
}

func splitKeyword(s, kw string) []string {
	var parts []string
	upper := strings.ToUpper(s)
	needle := " " + kw + " "
	for {
		i := strings.Index(upper, needle)
		if i < 0 {
			parts = append(parts, strings.TrimSpace(s))
			return parts
		}
		parts = append(parts, strings.TrimSpace(s[:i]))
		s = s[i+len(needle):]
		upper = upper[i+len(needle):]
	}
}

// comparisonOps in scan order: two-character operators first so "a >= b"
// never splits on the bare ">".
var comparisonOps = []string{"==", "!=", ">=", "<=", "=", ">", "<"}

// evalComparison splits a leaf on its first operator occurrence and
// compares the resolved operands. Equality compares string forms (5 = "5"
// holds); ordering operators require both sides numeric.
func (ev *evaluator) evalComparison(leaf, original string, row domain.Row) bool {
	op, left, right, ok := splitComparison(leaf)
	if !ok {
		// A bare term with no operator is truthy when it resolves to a
		// non-empty, non-zero, non-false value.
		return truthy(ev.resolveOperand(leaf, row))
	}
	lv := ev.resolveOperand(left, row)
	rv := ev.resolveOperand(right, row)

	switch op {
	case "=", "==":
		return toText(lv) == toText(rv)
	case "!=":
		return toText(lv) != toText(rv)
	}

	ln, lok := toNumber(lv)
	rn, rok := toNumber(rv)
	if !lok || !rok {
		ev.warnf("rule %q: operands of %s are not numeric", original, op)
		return false
	}
	switch op {
	case ">":
		return ln > rn
	case ">=":
		return ln >= rn
	case "<":
		return ln < rn
	case "<=":
		return ln <= rn
	}
	return false
}

// splitComparison finds the leftmost operator in the leaf, preferring the
// longest operator at any position.
func splitComparison(leaf string) (op, left, right string, ok bool) {
	var inQuote rune
	for i := 0; i < len(leaf); i++ {
		c := rune(leaf[i])
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			continue
		}
		for _, cand := range comparisonOps {
			if strings.HasPrefix(leaf[i:], cand) {
				return cand, strings.TrimSpace(leaf[:i]), strings.TrimSpace(leaf[i+len(cand):]), true
			}
		}
	}
	return "", "", "", false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		return t != "" && t != "0" && !strings.EqualFold(t, "false")
	default:
		return true
	}
}

func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// toText is the loose string form used for equality and function keys.
func toText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// stringify renders a resolved function result back into expression text.
func stringify(v interface{}) string {
	return toText(v)
}
