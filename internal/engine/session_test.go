package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetql/internal/domain"
)

func TestSessionRegisterAndQuery(t *testing.T) {
	ctx := context.Background()
	s, err := NewSession(ctx)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	err = s.Register(ctx, "rel_test", []string{"id", "amount"}, []domain.Row{
		{"id": "1", "amount": "1500"},
		{"id": "2", "amount": "800"},
	})
	require.NoError(t, err)

	cols, rows, err := s.Query(ctx, `SELECT id, amount FROM rel_test WHERE amount > 1000`, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount"}, cols)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
}

func TestSessionNamedParams(t *testing.T) {
	ctx := context.Background()
	s, err := NewSession(ctx)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	require.NoError(t, s.Register(ctx, "t", []string{"v"}, []domain.Row{{"v": "1"}, {"v": "2"}}))
	_, rows, err := s.Query(ctx, "SELECT v FROM t WHERE v > :min", map[string]interface{}{"min": 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSessionQuotedColumns(t *testing.T) {
	ctx := context.Background()
	s, err := NewSession(ctx)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	// Flattened expansion columns and non-ASCII headers need quoting.
	err = s.Register(ctx, "t", []string{"item.sku", "Ümsatz"}, []domain.Row{
		{"item.sku": "a", "Ümsatz": "10"},
	})
	require.NoError(t, err)
	_, rows, err := s.Query(ctx, `SELECT "item.sku", "Ümsatz" FROM t`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["item.sku"])
}

func TestSessionCustomFunctionsRegistered(t *testing.T) {
	ctx := context.Background()
	s, err := NewSession(ctx)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	require.NoError(t, s.Register(ctx, "t", []string{"doc"}, []domain.Row{
		{"doc": `{"tags":["x","y"]}`},
	}))
	_, rows, err := s.Query(ctx, `SELECT ARRAY_LENGTH(JSON_EXTRACT(doc, 'tags')) AS n FROM t`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["n"])
}

func TestSessionIsolation(t *testing.T) {
	ctx := context.Background()
	first, err := NewSession(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Register(ctx, "t", []string{"v"}, []domain.Row{{"v": "1"}}))
	require.NoError(t, first.Close())

	second, err := NewSession(ctx)
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck
	_, _, err = second.Query(ctx, "SELECT * FROM t", nil)
	assert.Error(t, err, "relations must not leak across sessions")
}

func TestSessionRegisterNoColumns(t *testing.T) {
	ctx := context.Background()
	s, err := NewSession(ctx)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	assert.Error(t, s.Register(ctx, "t", nil, nil))
}
