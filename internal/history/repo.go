package history

import (
	"context"
	"time"

	"sheetql/internal/domain"
)

// Entry is one persisted execution record.
type Entry struct {
	ID               int64     `json:"id"`
	SQL              string    `json:"sql"`
	RewrittenSQL     string    `json:"rewrittenSql,omitempty"`
	DurationMs       int64     `json:"durationMs"`
	RowCount         int       `json:"rowCount"`
	Error            string    `json:"error,omitempty"`
	ValidationErrors int       `json:"validationErrors"`
	ExecutedAt       time.Time `json:"executedAt"`
}

// Record persists one execution record. Implements domain.HistoryRecorder.
func (s *Store) Record(ctx context.Context, rec domain.QueryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_history (sql_text, rewritten_sql, duration_ms, row_count, error, validation_errors)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SQL, rec.RewrittenSQL, rec.DurationMs, rec.RowCount, rec.Error, rec.ValidationErrors,
	)
	return err
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sql_text, rewritten_sql, duration_ms, row_count, error, validation_errors, executed_at
		FROM query_history
		ORDER BY executed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SQL, &e.RewrittenSQL, &e.DurationMs, &e.RowCount, &e.Error, &e.ValidationErrors, &e.ExecutedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
