package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sheetql/internal/domain"
	"sheetql/internal/engine"
	"sheetql/internal/rules"
	"sheetql/internal/sqlparse"
)

// Executor runs sheet queries end to end: resolve references, expand
// arrays, load and register relations in a per-call engine session, execute
// the rewritten SQL, and restore display column order.
//
// Every failure is caught and returned inside the result envelope; Execute
// never panics into or errors at its caller.
type Executor struct {
	loader  *Loader
	strict  bool
	log     *slog.Logger
	history domain.HistoryRecorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithStrict enables strict diagnostics: evaluator fallbacks and ambiguous
// file matches surface as warnings on results.
func WithStrict(strict bool) Option {
	return func(x *Executor) { x.strict = strict }
}

// WithHistory attaches a best-effort execution history recorder.
func WithHistory(h domain.HistoryRecorder) Option {
	return func(x *Executor) { x.history = h }
}

// New creates an Executor over the given data source. excluded lists column
// names that must never appear in loaded rows.
func New(source domain.DataSource, excluded []string, log *slog.Logger, opts ...Option) *Executor {
	if log == nil {
		log = slog.Default()
	}
	x := &Executor{
		loader: &Loader{Source: source, Excluded: excluded},
		log:    log,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs the query and returns the result envelope.
func (x *Executor) Execute(ctx context.Context, sqlText string, params map[string]interface{}) *domain.QueryResult {
	result := x.run(ctx, sqlText, params)
	x.record(ctx, sqlText, result, 0)
	return result
}

// ExecuteWithValidation runs the query and applies the rule expressions to
// every result row.
func (x *Executor) ExecuteWithValidation(ctx context.Context, sqlText string, params map[string]interface{}, ruleExprs []string) *domain.QueryResult {
	result := x.run(ctx, sqlText, params)
	if result.Error == "" {
		result.Validation = rules.Run(result.Data, ruleExprs, x.strict)
	}
	validationErrors := 0
	if result.Validation != nil {
		validationErrors = len(result.Validation.Errors)
	}
	x.record(ctx, sqlText, result, validationErrors)
	return result
}

func (x *Executor) run(ctx context.Context, sqlText string, params map[string]interface{}) (result *domain.QueryResult) {
	start := time.Now()
	result = &domain.QueryResult{}
	defer func() {
		if r := recover(); r != nil {
			x.log.Error("query execution panicked", "panic", r)
			result.Error = fmt.Sprintf("internal error: %v", r)
		}
		result.Stats.ExecutionTime = time.Since(start).Milliseconds()
	}()

	res, err := Resolve(sqlText)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	session, err := engine.NewSession(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer session.Close() //nolint:errcheck
	result.Stats.Timings.Init = time.Since(start).Milliseconds()

	loadStart := time.Now()
	expander := &Expander{Loader: x.loader}
	expansion, err := expander.Expand(ctx, res, session, syntheticName)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Expansion = expansion

	// Load each remaining reference once per distinct file.sheet key and
	// point every occurrence at its synthetic relation. columnOrder keeps
	// the original header order per key for SELECT * display.
	registered := make(map[string]string)
	columnOrder := make(map[string][]string)
	for i := range res.Statement.From {
		te := &res.Statement.From[i]
		if te.Unnest != nil || len(te.Ref.Parts) != 2 {
			// Array-field dotted forms were consumed by expansion; other
			// shapes fall through to the engine as unknown relations.
			continue
		}
		ref := domain.TableReference{FileName: te.Ref.Parts[0], SheetName: te.Ref.Parts[1], Alias: te.Alias}
		name, ok := registered[ref.Key()]
		if !ok {
			load, err := x.loader.Load(ref, nil)
			if err != nil {
				result.Error = err.Error()
				return result
			}
			if x.strict && load.FileMatches > 1 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("file name %q matched %d files; using the first match", ref.FileName, load.FileMatches))
			}
			name = syntheticName()
			if err := session.Register(ctx, name, load.Columns, load.Rows); err != nil {
				result.Error = err.Error()
				return result
			}
			registered[ref.Key()] = name
			columnOrder[ref.Key()] = load.Columns
		}
		rewriteReference(res.Statement, te, name)
	}
	result.Stats.Timings.TableLoad = time.Since(loadStart).Milliseconds()

	rewritten := sqlparse.Serialize(res.Statement)
	result.Stats.SQL = rewritten

	execStart := time.Now()
	cols, rows, err := session.Query(ctx, rewritten, params)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Stats.Timings.Execution = time.Since(execStart).Milliseconds()

	formatStart := time.Now()
	result.Data = rows
	result.Columns = cols
	result.Stats.RowCount = len(rows)
	if order, ok := selectStarOrder(res, columnOrder); ok {
		result.Columns = restoreColumnOrder(cols, order)
	}
	result.Stats.Timings.Formatting = time.Since(formatStart).Milliseconds()
	return result
}

// rewriteReference points one FROM occurrence at its synthetic relation.
// When the query gave no alias, the sheet name becomes the alias so
// qualified column references keep resolving; fully qualified
// file.sheet.column identifiers are requalified the same way.
func rewriteReference(stmt *sqlparse.Statement, te *sqlparse.TableExpr, synthetic string) {
	fileName := te.Ref.Parts[0]
	sheetName := te.Ref.Parts[1]
	qualifier := te.Alias
	if qualifier == "" {
		qualifier = sheetName
		te.Alias = sheetName
	}
	te.Ref = sqlparse.TableRef{Parts: []string{synthetic}}

	stmt.VisitIdents(func(id *sqlparse.Ident) {
		if len(id.Parts) >= 3 && id.Parts[0] == fileName && id.Parts[1] == sheetName {
			id.Parts = append([]string{qualifier}, id.Parts[2:]...)
		}
	})
	for i := range stmt.Select {
		if stmt.Select[i].Star && stmt.Select[i].Qualifier == sheetName && te.Alias != sheetName {
			stmt.Select[i].Qualifier = te.Alias
		}
	}
}

// selectStarOrder reports the original column order to restore when the
// query was an unqualified SELECT * over a single table with no joins.
func selectStarOrder(res *Resolution, columnOrder map[string][]string) ([]string, bool) {
	stmt := res.Statement
	if len(stmt.From) != 1 || len(stmt.Select) != 1 {
		return nil, false
	}
	item := stmt.Select[0]
	if !item.Star || item.Qualifier != "" {
		return nil, false
	}
	if len(res.Tables) != 1 {
		return nil, false
	}
	order, ok := columnOrder[res.Tables[0].Key()]
	return order, ok
}

// restoreColumnOrder reorders result columns to the table's original header
// order, appending computed or extra columns afterwards in engine order.
func restoreColumnOrder(cols, original []string) []string {
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c] = true
	}
	out := make([]string, 0, len(cols))
	used := make(map[string]bool, len(cols))
	for _, c := range original {
		if present[c] {
			out = append(out, c)
			used[c] = true
		}
	}
	for _, c := range cols {
		if !used[c] {
			out = append(out, c)
		}
	}
	return out
}

// syntheticName generates a relation identifier that cannot collide within
// or across executions and never needs quoting.
func syntheticName() string {
	return "rel_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (x *Executor) record(ctx context.Context, sqlText string, result *domain.QueryResult, validationErrors int) {
	if x.history == nil {
		return
	}
	rec := domain.QueryRecord{
		SQL:              sqlText,
		RewrittenSQL:     result.Stats.SQL,
		DurationMs:       result.Stats.ExecutionTime,
		RowCount:         result.Stats.RowCount,
		Error:            result.Error,
		ValidationErrors: validationErrors,
	}
	if err := x.history.Record(ctx, rec); err != nil {
		x.log.Warn("record query history", "error", err)
	}
}
