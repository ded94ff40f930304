package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The cursor lowering compiles WHILE @@FETCH_STATUS = 0 into rows.Next()
// iteration. This exercises that exact shape against a real engine: a
// cursor over three seeded rows inserts into a second table once per row,
// in the seeded order.
func TestCursorShapeCopiesThreeRowsInOrder(t *testing.T) {
	ctx := context.Background()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, `CREATE TABLE Source (Id INTEGER, Name TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE Target (Id INTEGER, Name TEXT)`)
	require.NoError(t, err)
	for _, row := range []struct {
		id   int64
		name string
	}{{1, "first"}, {2, "second"}, {3, "third"}} {
		_, err = db.ExecContext(ctx, `INSERT INTO Source (Id, Name) VALUES (?, ?)`, row.id, row.name)
		require.NoError(t, err)
	}

	// The transpiled form: OPEN runs the query, the loop scans and inserts.
	var id int64
	var name string
	rowCursorRows, err := db.QueryContext(ctx, `SELECT Id, Name FROM Source`)
	require.NoError(t, err)
	defer rowCursorRows.Close()
	for rowCursorRows.Next() {
		require.NoError(t, rowCursorRows.Scan(&id, &name))
		_, err = db.ExecContext(ctx, `INSERT INTO Target (Id, Name) VALUES (?, ?)`, id, name)
		require.NoError(t, err)
	}
	require.NoError(t, rowCursorRows.Err())

	rows, err := db.QueryContext(ctx, `SELECT Id, Name FROM Target ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		require.NoError(t, rows.Scan(&id, &name))
		got = append(got, name)
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

// A zero-row source executes the body zero times.
func TestCursorShapeZeroRows(t *testing.T) {
	ctx := context.Background()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, `CREATE TABLE Empty (Id INTEGER)`)
	require.NoError(t, err)

	iterations := 0
	rows, err := db.QueryContext(ctx, `SELECT Id FROM Empty`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		iterations++
	}
	assert.Zero(t, iterations)
}
