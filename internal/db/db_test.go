package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, database))

	v, err := Version(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestInTxCommitsAndRollsBack(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()

	err := database.InTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`, "a", "1")
		return err
	})
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = database.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`, "b", "2"); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	var count int
	require.NoError(t, database.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestInTxSetsPostgresLockTimeout(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	database := New(mockDB, Postgres, 1500*time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = '1500ms'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE stock SET quantity = \$1 WHERE warehouse_id = \$2`).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = database.InTx(context.Background(), func(tx *Tx) error {
		_, err := tx.ExecContext(context.Background(), `UPDATE stock SET quantity = ? WHERE warehouse_id = ?`, 5, 1)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("prenos.sqlite3")
	assert.Contains(t, dsn, "prenos.sqlite3?_pragma=busy_timeout(5000)")
	assert.Contains(t, dsn, "_txlock=immediate")

	dsn = sqliteDSN("file:prenos.db?cache=shared")
	assert.Contains(t, dsn, "cache=shared&_pragma=")
}
