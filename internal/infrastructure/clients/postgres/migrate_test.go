package postgres

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesFilesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	files := fstest.MapFS{
		"002_indexes.sql": {Data: []byte("CREATE INDEX b")},
		"001_tables.sql":  {Data: []byte("CREATE TABLE a")},
		"003_empty.sql":   {Data: []byte("  \n")},
		"README.md":       {Data: []byte("ignored")},
	}

	mock.ExpectExec("CREATE TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX b").WillReturnResult(sqlmock.NewResult(0, 0))

	client := NewClientFromDB(db)
	require.NoError(t, client.Migrate(context.Background(), files))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	files := fstest.MapFS{
		"001_tables.sql":  {Data: []byte("CREATE TABLE a")},
		"002_indexes.sql": {Data: []byte("CREATE INDEX b")},
	}
	mock.ExpectExec("CREATE TABLE a").WillReturnError(errors.New("syntax error"))

	client := NewClientFromDB(db)
	err = client.Migrate(context.Background(), files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_tables.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
