package domain

import "context"

// QueryRecord is the per-execution observability record persisted by the
// optional history store. Result rows are never recorded.
type QueryRecord struct {
	SQL              string
	RewrittenSQL     string
	DurationMs       int64
	RowCount         int
	Error            string
	ValidationErrors int
}

// HistoryRecorder receives a best-effort record after each execution.
// Implemented by history.Store.
type HistoryRecorder interface {
	Record(ctx context.Context, rec QueryRecord) error
}
