package migrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	queries []string
	failAt  int
}

func (r *recordingExecer) ExecContext(_ context.Context, q string, _ ...any) (sql.Result, error) {
	if len(r.queries) == r.failAt {
		return nil, errors.New("boom")
	}
	r.queries = append(r.queries, q)
	return nil, nil
}

func TestEnsureSchema(t *testing.T) {
	rec := &recordingExecer{failAt: -1}
	require.NoError(t, EnsureSchema(context.Background(), rec))
	assert.Equal(t, Statements, rec.queries)
}

func TestEnsureSchema_StopsOnError(t *testing.T) {
	rec := &recordingExecer{failAt: 1}
	err := EnsureSchema(context.Background(), rec)
	assert.ErrorContains(t, err, "schema statement 1")
	assert.Len(t, rec.queries, 1)
}
