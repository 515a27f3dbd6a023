package domain

// Timings holds per-checkpoint durations, in milliseconds, captured during
// one query execution.
type Timings struct {
	Init       int64 `json:"init"`
	TableLoad  int64 `json:"tableLoad"`
	Execution  int64 `json:"execution"`
	Formatting int64 `json:"formatting"`
}

// QueryStats is the observability block attached to every result, including
// failed ones.
type QueryStats struct {
	RowCount      int     `json:"rowCount"`
	ExecutionTime int64   `json:"executionTime"` // total wall time in ms
	Timings       Timings `json:"timings"`
	SQL           string  `json:"sql,omitempty"` // rewritten SQL, when rewriting succeeded
}

// ExpansionStats reports the row accounting of one UNNEST expansion.
type ExpansionStats struct {
	OriginalRowCount int `json:"originalRowCount"`
	FilteredRowCount int `json:"filteredRowCount"`
	ExpandedRowCount int `json:"expandedRowCount"`
}

// RuleFailure records one (row, rule) validation failure together with a
// snapshot of the row data at failure time.
type RuleFailure struct {
	RowIndex int    `json:"rowIndex"`
	Rule     string `json:"rule"`
	Data     Row    `json:"data"`
}

// ValidationResult summarises a validation run over a query result.
type ValidationResult struct {
	TotalRows int           `json:"totalRows"`
	ErrorRows int           `json:"errorRows"`
	Errors    []RuleFailure `json:"errors"`
	// Warnings carries strict-mode diagnostics (unknown functions, mixed
	// AND/OR, unparsable operands). Empty outside strict mode.
	Warnings []string `json:"warnings,omitempty"`
}

// QueryResult is the envelope returned by the executor. Exactly one of Data
// or Error is meaningful; Stats is always populated.
type QueryResult struct {
	Data       []Row             `json:"data,omitempty"`
	Columns    []string          `json:"columns,omitempty"` // display order
	Error      string            `json:"error,omitempty"`
	Stats      QueryStats        `json:"stats"`
	Expansion  *ExpansionStats   `json:"expansion,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}
