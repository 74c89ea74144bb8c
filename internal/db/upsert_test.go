package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestBulkUpsertEmptyRowsIsNoop(t *testing.T) {
	mock := newMockPool(t)

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "award_stats",
		Columns:      []string{"a", "b"},
		ConflictKeys: []string{"a"},
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertRequiresColumnsAndKeys(t *testing.T) {
	mock := newMockPool(t)
	rows := [][]any{{"x", 1}}

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{Table: "t", ConflictKeys: []string{"a"}}, rows)
	require.Error(t, err)

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{Table: "t", Columns: []string{"a"}}, rows)
	require.Error(t, err)
}

func TestBulkUpsertCopiesAndInserts(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_award_stats"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_award_stats"}, []string{"program_id", "project_type", "total_applications"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "award_stats" .* ON CONFLICT \("program_id", "project_type"\) DO UPDATE SET "total_applications" = EXCLUDED\."total_applications"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"prog-a", "solar", 10},
		{"prog-a", "multifamily", 20},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "award_stats",
		Columns:      []string{"program_id", "project_type", "total_applications"},
		ConflictKeys: []string{"program_id", "project_type"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
