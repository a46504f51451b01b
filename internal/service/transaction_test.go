package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
)

type sqlmockTx struct {
	db *sqlx.DB
}

func (p *sqlmockTx) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return &sqlmockTx{db: sqlx.NewDb(raw, "sqlmock")}, mock
}

func TestInTxCommits(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	ran := false
	err := inTx(context.Background(), tx, "commit failed", func(*sqlx.Tx) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	conflict := appErrors.Clone(appErrors.ErrConflict, "Account already exists")
	err := inTx(context.Background(), tx, "commit failed", func(*sqlx.Tx) error { return conflict })
	assert.Same(t, conflict, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxWrapsCommitFailure(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := inTx(context.Background(), tx, "failed to commit transition", func(*sqlx.Tx) error { return nil })
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "failed to commit transition", appErr.Message)
}

func TestInTxWithoutProvider(t *testing.T) {
	err := inTx(context.Background(), nil, "commit failed", func(*sqlx.Tx) error { return nil })
	assert.Error(t, err)
}
