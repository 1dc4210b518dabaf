package entrylog

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/postgres"
)

func setupPostgresMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS directory_entries`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	l, err := NewPostgres(context.Background(), postgres.NewFromDB(db))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return l, mock
}

func TestPostgres_SchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS directory_entries`)).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	_, err = NewPostgres(context.Background(), postgres.NewFromDB(db))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Put(t *testing.T) {
	l, mock := setupPostgresMock(t)

	data := []byte(`{"id":5}`)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO directory_entries (id, data) VALUES ($1, $2)`)).
		WithArgs(int64(5), data).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, l.Put(context.Background(), 5, data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutError(t *testing.T) {
	l, mock := setupPostgresMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO directory_entries`)).
		WillReturnError(errors.New("connection reset"))

	require.Error(t, l.Put(context.Background(), 5, []byte("x")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get(t *testing.T) {
	l, mock := setupPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM directory_entries WHERE id = $1`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("two")))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM directory_entries WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	got, err := l.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	_, err = l.Get(context.Background(), 9)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Iterate(t *testing.T) {
	l, mock := setupPostgresMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM directory_entries ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow(int64(1), []byte("one")).
			AddRow(int64(4), []byte("four")))

	ids, rows := collect(t, l)
	assert.Equal(t, []int32{1, 4}, ids)
	assert.Equal(t, []byte("four"), rows[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}
