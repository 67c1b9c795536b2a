package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSqliteDB_Memory(t *testing.T) {
	database, err := NewSqliteDB()
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);")
	require.NoError(t, err)
}

func TestNewSqliteDB_FileCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "journal.db")

	database, err := NewSqliteDB(WithPath(path), WithMaxOpenConns(1))
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY);")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestNewSqliteDB_CustomPragmas(t *testing.T) {
	database, err := NewSqliteDB(WithPragmas("PRAGMA foreign_keys=ON;"), WithMaxOpenConns(1))
	require.NoError(t, err)
	defer database.Close()

	var on int
	require.NoError(t, database.Get(&on, "PRAGMA foreign_keys;"))
	assert.Equal(t, 1, on)
}

func TestNewSqliteDB_BadPragmas(t *testing.T) {
	_, err := NewSqliteDB(WithPragmas("THIS IS NOT SQL;"))
	assert.Error(t, err)
}
