// Package query orchestrates query execution: table-reference resolution,
// data loading, UNNEST array expansion, rewriting, and execution against a
// per-call engine session.
package query

import (
	"strings"

	"sheetql/internal/domain"
	"sheetql/internal/sqlparse"
)

// ArrayFieldRef is an array-expansion source discovered in the FROM clause:
// either UNNEST(alias.field) or the dotted alias.field.arrayField form.
type ArrayFieldRef struct {
	BaseAlias string
	FieldPath string // dotted path from the base row to the array value
	FromIndex int    // index of the FROM entry that introduced it
	RawText   string
}

// Resolution is the outcome of scanning a statement for table references.
type Resolution struct {
	Statement *sqlparse.Statement
	// Tables lists direct file.sheet references per occurrence, in
	// discovery order. No dedup here; identity is resolved later by
	// synthetic-name assignment.
	Tables []domain.TableReference
	// Aliases maps alias tokens to their reference. Last write wins on
	// duplicates.
	Aliases map[string]domain.TableReference
	// ArrayFields maps expansion aliases to their array-field source.
	ArrayFields map[string]ArrayFieldRef
}

// Resolve parses the query text (line comments are stripped by the lexer)
// and collects table references and alias bindings from the FROM clause.
//
// A reference with exactly two dot-separated segments is a direct
// file.sheet table. Three segments whose first matches an already-bound
// alias denote an array-field access, not a table. Anything else fails to
// bind and is left for the engine to reject at execution time.
func Resolve(sqlText string) (*Resolution, error) {
	stmt, err := sqlparse.Parse(sqlText)
	if err != nil {
		return nil, err
	}
	res := &Resolution{
		Statement:   stmt,
		Aliases:     make(map[string]domain.TableReference),
		ArrayFields: make(map[string]ArrayFieldRef),
	}
	for i := range stmt.From {
		te := &stmt.From[i]
		if te.Unnest != nil {
			alias := te.Alias
			if alias == "" {
				alias = te.Unnest.Field
			}
			res.ArrayFields[alias] = ArrayFieldRef{
				BaseAlias: te.Unnest.Qualifier,
				FieldPath: te.Unnest.Field,
				FromIndex: i,
				RawText:   te.Unnest.Qualifier + "." + te.Unnest.Field,
			}
			continue
		}
		parts := te.Ref.Parts
		switch {
		case len(parts) == 2:
			ref := domain.TableReference{
				RawText:   te.Ref.Raw(),
				FileName:  parts[0],
				SheetName: parts[1],
				Alias:     te.Alias,
			}
			res.Tables = append(res.Tables, ref)
			if te.Alias != "" {
				res.Aliases[te.Alias] = ref
			}
		case len(parts) == 3:
			if _, bound := res.Aliases[parts[0]]; bound {
				alias := te.Alias
				if alias == "" {
					alias = parts[len(parts)-1]
				}
				res.ArrayFields[alias] = ArrayFieldRef{
					BaseAlias: parts[0],
					FieldPath: strings.Join(parts[1:], "."),
					FromIndex: i,
					RawText:   te.Ref.Raw(),
				}
			}
			// Otherwise malformed; the engine reports it as an unknown
			// relation at execution time.
		}
	}
	return res, nil
}
