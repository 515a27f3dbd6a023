package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sheetql/internal/domain"
)

// Loader converts raw sheet data into relation rows, applying the global
// column exclusion policy and speculative JSON parsing.
type Loader struct {
	Source   domain.DataSource
	Excluded []string
}

// LoadResult is a loaded (and possibly pushdown-filtered) relation.
type LoadResult struct {
	Columns []string
	Rows    []domain.Row
	// TotalRows counts data rows before the pushdown filter.
	TotalRows int
	// FileMatches is the number of files that matched the lookup name.
	FileMatches int
}

// placeholderColumn keeps a relation well-formed when its sheet is missing.
const placeholderColumn = "_empty"

// Load fetches the referenced sheet and converts it to rows. keep, when
// non-nil, is the pushdown predicate applied row by row during conversion.
//
// A missing file is an error naming the file. A missing sheet inside an
// existing file degrades to an empty single-column relation so joins
// against it produce zero rows instead of failing the query.
func (l *Loader) Load(ref domain.TableReference, keep func(domain.Row) bool) (*LoadResult, error) {
	sheet, err := l.Source.Lookup(ref.FileName, ref.SheetName)
	if err != nil {
		var sheetErr *domain.SheetNotFoundError
		if errors.As(err, &sheetErr) {
			return &LoadResult{Columns: []string{placeholderColumn}, FileMatches: 1}, nil
		}
		return nil, err
	}
	if len(sheet.Cells) == 0 {
		return &LoadResult{Columns: []string{placeholderColumn}, FileMatches: sheet.FileMatches}, nil
	}

	excluded := make(map[string]bool, len(l.Excluded))
	for _, c := range l.Excluded {
		excluded[c] = true
	}

	header := sheet.Cells[0]
	columns := make([]string, 0, len(header))
	for _, h := range header {
		if !excluded[h] {
			columns = append(columns, h)
		}
	}
	if len(columns) == 0 {
		columns = []string{placeholderColumn}
	}

	result := &LoadResult{Columns: columns, FileMatches: sheet.FileMatches}
	for _, cells := range sheet.Cells[1:] {
		result.TotalRows++
		row := make(domain.Row, len(columns))
		for i, h := range header {
			if excluded[h] || i >= len(cells) {
				continue
			}
			row[h] = parseCell(cells[i])
		}
		if keep != nil && !keep(row) {
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

// parseCell speculatively parses JSON-looking cell text. Parse failures
// keep the raw string.
func parseCell(s string) interface{} {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
		return s
	}
	var out interface{}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return s
	}
	return out
}

// fieldValue walks a dotted field path starting at a row: the first segment
// is a column lookup, later segments descend into parsed JSON objects.
func fieldValue(row domain.Row, path string) (interface{}, string) {
	segments := strings.Split(path, ".")
	top := segments[0]
	current, ok := row[top]
	if !ok {
		return nil, top
	}
	for _, seg := range segments[1:] {
		obj, ok := current.(map[string]interface{})
		if !ok {
			if s, isStr := current.(string); isStr {
				var parsed interface{}
				if err := json.Unmarshal([]byte(s), &parsed); err == nil {
					if obj, ok = parsed.(map[string]interface{}); !ok {
						return nil, top
					}
				} else {
					return nil, top
				}
			} else {
				return nil, top
			}
		}
		current = obj[seg]
	}
	return current, top
}

// describeRef renders a reference for error messages.
func describeRef(ref domain.TableReference) string {
	return fmt.Sprintf("%s.%s", ref.FileName, ref.SheetName)
}
