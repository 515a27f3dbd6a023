// Package sheetql is the embeddable library surface: execute SQL queries
// over spreadsheet data sources and evaluate validation-rule expressions
// against rows.
package sheetql

import (
	"context"
	"log/slog"

	"sheetql/internal/domain"
	"sheetql/internal/query"
	"sheetql/internal/rules"
	"sheetql/internal/source"
)

// Re-exported result and source types.
type (
	Row              = domain.Row
	QueryResult      = domain.QueryResult
	ValidationResult = domain.ValidationResult
	TableDescriptor  = domain.TableDescriptor
	DataSource       = domain.DataSource
)

// Engine executes queries against one data source.
type Engine struct {
	executor *query.Executor
	source   domain.DataSource
}

// Options configures an Engine.
type Options struct {
	// ExcludedColumns are removed from every loaded table.
	ExcludedColumns []string
	// Strict surfaces evaluation fallbacks and ambiguous file matches as
	// warnings on results.
	Strict bool
	// Logger receives execution diagnostics; nil uses slog.Default.
	Logger *slog.Logger
}

// NewEngine creates an Engine over a data source.
func NewEngine(src DataSource, opts Options) *Engine {
	return &Engine{
		executor: query.New(src, opts.ExcludedColumns, opts.Logger, query.WithStrict(opts.Strict)),
		source:   src,
	}
}

// NewCSVDirSource reads tables from <root>/<file>/<sheet>.csv.
func NewCSVDirSource(root string) DataSource { return source.NewCSVDir(root) }

// NewXLSXDirSource reads tables from .xlsx workbooks under root.
func NewXLSXDirSource(root string) DataSource { return source.NewXLSXDir(root) }

// Execute runs a query. Failures are reported inside the result envelope,
// never as a panic or error.
func (e *Engine) Execute(ctx context.Context, sql string, params map[string]interface{}) *QueryResult {
	return e.executor.Execute(ctx, sql, params)
}

// ExecuteWithValidation runs a query and applies the rule expressions to
// every result row.
func (e *Engine) ExecuteWithValidation(ctx context.Context, sql string, params map[string]interface{}, ruleExprs []string) *QueryResult {
	return e.executor.ExecuteWithValidation(ctx, sql, params, ruleExprs)
}

// Tables lists the file.sheet tables visible to the data source.
func (e *Engine) Tables() ([]TableDescriptor, error) {
	return e.source.Tables()
}

// Evaluate checks a single validation-rule expression against a row. Any
// malformed expression evaluates to false.
func Evaluate(expression string, row Row) bool {
	return rules.Evaluate(expression, row)
}
