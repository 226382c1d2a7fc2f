package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotter/internal/jot/model"
)

func newPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStoreRead(t *testing.T) {
	s, mock := newPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT content, updated_at FROM jots WHERE token = $1")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"content", "updated_at"}).AddRow("hello", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT content, updated_at FROM jots WHERE token = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"content", "updated_at"}))

	content, err := s.Read(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	_, err = s.Read(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreWrite(t *testing.T) {
	s, mock := newPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO jots .* DO UPDATE SET content = EXCLUDED.content").
		WithArgs("abc", "hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO jots").
		WithArgs("abc", "boom").
		WillReturnError(errors.New("connection reset"))

	require.NoError(t, s.Write(ctx, "abc", "hello"))
	assert.Error(t, s.Write(ctx, "abc", "boom"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLastModified(t *testing.T) {
	s, mock := newPostgresStore(t)
	ctx := context.Background()
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT updated_at, octet_length(content), xmin::text FROM jots WHERE token = $1")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at", "octet_length", "xmin"}).AddRow(updated, int64(5), "7301"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT updated_at, octet_length(content), xmin::text FROM jots WHERE token = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at", "octet_length", "xmin"}))

	v, err := s.LastModified(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, v.Equal(model.Version{ModTime: updated, Size: 5, Tag: "7301"}))

	_, err = s.LastModified(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateIfAbsent(t *testing.T) {
	s, mock := newPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (token) DO NOTHING")).
		WithArgs("abc", "seed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (token) DO NOTHING")).
		WithArgs("abc", "seed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := s.CreateIfAbsent(ctx, "abc", "seed")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateIfAbsent(ctx, "abc", "seed")
	require.NoError(t, err)
	assert.False(t, created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreExistsAndEmpty(t *testing.T) {
	s, mock := newPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM jots WHERE token = $1)")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM jots)")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	empty, err := s.Empty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	assert.NoError(t, mock.ExpectationsWereMet())
}
