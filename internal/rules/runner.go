package rules

import "sheetql/internal/domain"

// In-band row annotations written by Run. Mutating result rows in place is
// deliberate: callers see validation state next to the data.
const (
	statusColumn = "validationStatus"
	errorsColumn = "validationErrors"

	statusValid   = "valid"
	statusInvalid = "invalid"
)

// Run applies every rule expression to every row. Rules are independent: a
// row can fail several rules and each (row, rule) failure is recorded with
// a snapshot of the row taken at failure time, before annotation.
func Run(rows []domain.Row, ruleExprs []string, strict bool) *domain.ValidationResult {
	ev := &evaluator{strict: strict}
	result := &domain.ValidationResult{TotalRows: len(rows)}
	for i, row := range rows {
		var failed []string
		for _, rule := range ruleExprs {
			if ev.eval(rule, row) {
				continue
			}
			failed = append(failed, rule)
			result.Errors = append(result.Errors, domain.RuleFailure{
				RowIndex: i,
				Rule:     rule,
				Data:     row.Clone(),
			})
		}
		if len(failed) > 0 {
			result.ErrorRows++
			row[statusColumn] = statusInvalid
			row[errorsColumn] = failed
		} else {
			row[statusColumn] = statusValid
		}
	}
	result.Warnings = dedupe(ev.warnings)
	return result
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
