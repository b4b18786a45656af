package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "sources",
		Columns:      []string{"link", "title"},
		ConflictKeys: []string{"link"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "sources",
		ConflictKeys: []string{"link"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "sources",
		Columns: []string{"link", "title"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_IgnoreDups(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_blacklist"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_blacklist"}, []string{"domain", "url"}).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("domain"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "blacklist",
		Columns:      []string{"domain", "url"},
		ConflictKeys: []string{"domain"},
		IgnoreDups:   true,
	}, [][]any{{"a.com", "https://a.com/x"}, {"b.com", "https://b.com/y"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_sources"}, []string{"link"}).WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "sources",
		Columns:      []string{"link"},
		ConflictKeys: []string{"link"},
	}, [][]any{{"https://a.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for sources")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictAction(t *testing.T) {
	assert.Equal(t, "DO NOTHING", conflictAction(UpsertConfig{IgnoreDups: true}))
	assert.Equal(t, `DO UPDATE SET "title" = EXCLUDED."title"`, conflictAction(UpsertConfig{
		Columns:      []string{"link", "title"},
		ConflictKeys: []string{"link"},
	}))
	assert.Equal(t, "DO NOTHING", conflictAction(UpsertConfig{
		Columns:      []string{"link"},
		ConflictKeys: []string{"link"},
	}))
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"cache.sources", `"cache"."sources"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, identifier(tt.input).Sanitize())
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"link", "title", "date"`, quoteAndJoin([]string{"link", "title", "date"}))
}
