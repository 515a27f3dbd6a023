package query

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"sheetql/internal/domain"
	"sheetql/internal/sqlparse"
)

// Registrar registers relations with the engine session for the current
// execution.
type Registrar interface {
	Register(ctx context.Context, name string, columns []string, rows []domain.Row) error
}

// Expander turns one row with an array-valued field into N rows, one per
// element, and materializes the result as a synthetic relation.
type Expander struct {
	Loader *Loader
}

// Expand detects an array-expansion source in the resolution, loads and
// filters the base table, expands it, registers the expansion under a
// synthetic name, and rewrites the statement to select from that relation.
// Returns nil stats when the query has no expansion source.
//
// An unloadable base table is fatal for the whole query.
func (e *Expander) Expand(ctx context.Context, res *Resolution, reg Registrar, nextName func() string) (*domain.ExpansionStats, error) {
	if len(res.ArrayFields) == 0 {
		return nil, nil
	}
	var alias string
	var ref ArrayFieldRef
	first := true
	for a, r := range res.ArrayFields {
		if first || r.FromIndex < ref.FromIndex {
			alias, ref, first = a, r, false
		}
	}

	baseRef, ok := res.Aliases[ref.BaseAlias]
	if !ok {
		return nil, domain.ErrValidation("UNNEST references unknown alias %q", ref.BaseAlias)
	}

	keep := pushdownFilter(res.Statement.Where, ref.BaseAlias)
	load, err := e.Loader.Load(baseRef, keep)
	if err != nil {
		return nil, fmt.Errorf("load UNNEST base table %s: %w", describeRef(baseRef), err)
	}

	topField := strings.Split(ref.FieldPath, ".")[0]
	columns := make([]string, 0, len(load.Columns)+1)
	for _, c := range load.Columns {
		if c != topField {
			columns = append(columns, c)
		}
	}
	columns = append(columns, alias)
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
	}

	// Every flattened column the statement references must exist in the
	// schema even when no element supplies it, so an all-empty expansion
	// still leaves the query runnable against the placeholder row.
	res.Statement.VisitIdents(func(id *sqlparse.Ident) {
		if len(id.Parts) < 2 || id.Parts[0] != alias {
			return
		}
		key := alias + "." + strings.Join(id.Parts[1:], ".")
		if !seen[key] {
			seen[key] = true
			columns = append(columns, key)
		}
	})

	var expanded []domain.Row
	for _, row := range load.Rows {
		value, _ := fieldValue(row, ref.FieldPath)
		for _, elem := range toArray(value) {
			out := row.Clone()
			delete(out, topField)
			out[alias] = elem
			if obj, isObj := elem.(map[string]interface{}); isObj {
				keys := make([]string, 0, len(obj))
				for k := range obj {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					key := alias + "." + k
					out[key] = obj[k]
					if !seen[key] {
						seen[key] = true
						columns = append(columns, key)
					}
				}
			}
			expanded = append(expanded, out)
		}
	}

	stats := &domain.ExpansionStats{
		OriginalRowCount: load.TotalRows,
		FilteredRowCount: len(load.Rows),
		ExpandedRowCount: len(expanded),
	}
	if len(expanded) == 0 {
		// Keep the pipeline non-empty: exactly one all-null placeholder row.
		placeholder := make(domain.Row, len(columns))
		for _, c := range columns {
			placeholder[c] = nil
		}
		expanded = append(expanded, placeholder)
	}

	name := nextName()
	if err := reg.Register(ctx, name, columns, expanded); err != nil {
		return nil, err
	}
	rewriteExpansion(res.Statement, ref.FromIndex, name, ref.BaseAlias, alias)
	return stats, nil
}

// toArray coerces a field value to its array form, parsing JSON text when
// needed. Anything non-array yields nil (the row contributes no expanded
// rows).
func toArray(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return t
	case string:
		trimmed := strings.TrimSpace(t)
		if !strings.HasPrefix(trimmed, "[") {
			return nil
		}
		var arr []interface{}
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			return nil
		}
		return arr
	default:
		return nil
	}
}

// rewriteExpansion drops the expansion entry from FROM, points the base
// table at the synthetic relation, and requalifies array-alias field
// references ("x.prop") onto the base alias's flattened columns. Doing this
// on the AST keeps ON-clause and outer-join references intact through
// re-serialization.
func rewriteExpansion(stmt *sqlparse.Statement, fromIndex int, synthetic, baseAlias, arrayAlias string) {
	stmt.From = append(stmt.From[:fromIndex], stmt.From[fromIndex+1:]...)
	for i := range stmt.From {
		if stmt.From[i].Alias == baseAlias {
			stmt.From[i].Ref = sqlparse.TableRef{Parts: []string{synthetic}}
			stmt.From[i].Unnest = nil
			break
		}
	}
	stmt.VisitIdents(func(id *sqlparse.Ident) {
		if len(id.Parts) == 0 || id.Parts[0] != arrayAlias {
			return
		}
		if len(id.Parts) == 1 {
			id.Parts = []string{baseAlias, arrayAlias}
			return
		}
		flattened := arrayAlias + "." + strings.Join(id.Parts[1:], ".")
		id.Parts = []string{baseAlias, flattened}
	})
}

// --- pushdown predicate extraction ---

// pushdownFilter compiles the WHERE conjuncts that reference only the base
// alias's columns into a row predicate applied at load time. Returns nil
// when nothing can be pushed down.
func pushdownFilter(where sqlparse.Expr, baseAlias string) func(domain.Row) bool {
	var conjuncts []sqlparse.Expr
	collectConjuncts(where, &conjuncts)

	var preds []func(domain.Row) bool
	for _, c := range conjuncts {
		if p := compilePredicate(c, baseAlias); p != nil {
			preds = append(preds, p)
		}
	}
	if len(preds) == 0 {
		return nil
	}
	return func(row domain.Row) bool {
		for _, p := range preds {
			if !p(row) {
				return false
			}
		}
		return true
	}
}

func collectConjuncts(e sqlparse.Expr, out *[]sqlparse.Expr) {
	switch n := e.(type) {
	case nil:
		return
	case *sqlparse.Binary:
		if n.Op == "AND" {
			collectConjuncts(n.Left, out)
			collectConjuncts(n.Right, out)
			return
		}
		*out = append(*out, n)
	case *sqlparse.Paren:
		collectConjuncts(n.Operand, out)
	default:
		if e != nil {
			*out = append(*out, e)
		}
	}
}

// compilePredicate turns a simple comparison, IN, or LIKE conjunct over a
// base-alias column and literal operands into a row predicate. Anything
// more complex is left for the engine.
func compilePredicate(e sqlparse.Expr, baseAlias string) func(domain.Row) bool {
	switch n := e.(type) {
	case *sqlparse.Binary:
		col, ok := baseColumn(n.Left, baseAlias)
		if !ok {
			return nil
		}
		lit, ok := n.Right.(*sqlparse.Literal)
		if !ok {
			return nil
		}
		op := n.Op
		return func(row domain.Row) bool {
			return comparePushdown(row[col], op, lit)
		}
	case *sqlparse.In:
		col, ok := baseColumn(n.Left, baseAlias)
		if !ok {
			return nil
		}
		var wants []*sqlparse.Literal
		for _, item := range n.List {
			lit, ok := item.(*sqlparse.Literal)
			if !ok {
				return nil
			}
			wants = append(wants, lit)
		}
		not := n.Not
		// Membership uses the same loose comparison as "=", so the pushdown
		// never rejects a row the engine's IN would keep.
		return func(row domain.Row) bool {
			found := false
			for _, w := range wants {
				if comparePushdown(row[col], "=", w) {
					found = true
					break
				}
			}
			return found != not
		}
	}
	return nil
}

func baseColumn(e sqlparse.Expr, baseAlias string) (string, bool) {
	id, ok := e.(*sqlparse.Ident)
	if !ok || len(id.Parts) != 2 || id.Parts[0] != baseAlias {
		return "", false
	}
	return id.Parts[1], true
}

func comparePushdown(value interface{}, op string, lit *sqlparse.Literal) bool {
	switch op {
	case "LIKE", "NOT LIKE":
		matched := likeMatch(valueString(value), lit.Text)
		if op == "NOT LIKE" {
			return !matched
		}
		return matched
	}
	left := valueString(value)
	right := lit.Text

	leftNum, leftErr := strconv.ParseFloat(left, 64)
	rightNum, rightErr := strconv.ParseFloat(right, 64)
	if leftErr == nil && rightErr == nil {
		switch op {
		case "=":
			return leftNum == rightNum
		case "!=", "<>":
			return leftNum != rightNum
		case ">":
			return leftNum > rightNum
		case ">=":
			return leftNum >= rightNum
		case "<":
			return leftNum < rightNum
		case "<=":
			return leftNum <= rightNum
		}
		return false
	}
	switch op {
	case "=":
		return left == right
	case "!=", "<>":
		return left != right
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "<":
		return left < right
	case "<=":
		return left <= right
	}
	return false
}

// likeMatch maps SQL wildcards onto a case-insensitive regexp: % becomes
// .* and _ becomes a single-character match.
func likeMatch(value, pattern string) bool {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, "%", ".*")
	escaped = strings.ReplaceAll(escaped, "_", ".")
	re, err := regexp.Compile("(?is)^" + escaped + "$")
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

// valueString renders a loaded cell value for pushdown comparison.
func valueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
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
