package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	for dialect, want := range map[string]string{
		"postgres": "pgx",
		"mysql":    "mysql",
		"sqlite":   "sqlite3",
		"tsql":     "sqlserver",
	} {
		got, err := Name(dialect)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := Name("oracle")
	assert.Error(t, err)
}

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Ping(context.Background(), db))

	_, err = db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t (name) VALUES (?)`, "x")
	require.NoError(t, err)

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM t WHERE id = ?`, 1).Scan(&name))
	assert.Equal(t, "x", name)
}
