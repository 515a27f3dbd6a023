// Package engine hosts the embedded relational engine: a fresh in-memory
// SQLite database per query execution, with the sheet dialect's custom
// scalar functions registered on every connection.
//
// Sessions are single-use: relations registered during one execution are
// discarded when the session closes, so nothing leaks across calls.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"

	"sheetql/internal/domain"
)

const driverName = "sqlite3_sheetql"

var registerDriverOnce sync.Once

func registerDriver() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for name, fn := range scalarFuncs {
				if err := conn.RegisterFunc(name, fn, true); err != nil {
					return fmt.Errorf("register %s: %w", name, err)
				}
			}
			return nil
		},
	})
}

// Session is one embedded-engine instance scoped to a single query
// execution.
type Session struct {
	db *sql.DB
}

// NewSession opens a fresh in-memory engine.
func NewSession(ctx context.Context) (*Session, error) {
	registerDriverOnce.Do(registerDriver)
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	// A second pooled connection would see a different :memory: database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return &Session{db: db}, nil
}

// Close discards the session and every relation registered in it.
func (s *Session) Close() error { return s.db.Close() }

// Register creates a relation under the given synthetic name and fills it
// with the rows. Column order is preserved; values keep their natural
// storage class (numeric-looking strings become numbers so comparisons and
// ORDER BY behave numerically), and structured values are stored as JSON
// text for the scalar functions to consume.
func (s *Session) Register(ctx context.Context, name string, columns []string, rows []domain.Row) error {
	if len(columns) == 0 {
		return domain.ErrValidation("relation %s has no columns", name)
	}
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(quoted, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create relation %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil
	}

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(placeholders, ", "))
	stmt, err := s.db.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", name, err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		args := make([]interface{}, len(columns))
		for i, c := range columns {
			args[i] = bindValue(row[c])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", name, err)
		}
	}
	return nil
}

// Query runs the canonical SQL with named bind parameters and returns the
// result as ordered columns plus row maps.
func (s *Session) Query(ctx context.Context, sqlText string, params map[string]interface{}) ([]string, []domain.Row, error) {
	args := make([]interface{}, 0, len(params))
	for k, v := range params {
		args = append(args, sql.Named(k, v))
	}
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out []domain.Row
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(domain.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

var numericCell = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// bindValue maps a loaded cell value to its engine storage form.
func bindValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if numericCell.MatchString(t) {
			if !strings.Contains(t, ".") {
				if i, err := strconv.ParseInt(t, 10, 64); err == nil {
					return i
				}
			}
			if f, err := strconv.ParseFloat(t, 64); err == nil {
				return f
			}
		}
		return t
	case bool, int, int64, float64:
		return t
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
