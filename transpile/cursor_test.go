package transpile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cursorProc = `
CREATE PROCEDURE dbo.CopyRows
AS
BEGIN
    DECLARE @Id INT
    DECLARE @Name VARCHAR(50)

    DECLARE row_cursor CURSOR FOR SELECT Id, Name FROM Source
    OPEN row_cursor
    FETCH NEXT FROM row_cursor INTO @Id, @Name

    WHILE @@FETCH_STATUS = 0
    BEGIN
        INSERT INTO Target (Id, Name) VALUES (@Id, @Name)
        FETCH NEXT FROM row_cursor INTO @Id, @Name
    END

    CLOSE row_cursor
    DEALLOCATE row_cursor
END
`

func TestCursorFoldsToRowIteration(t *testing.T) {
	res := mustTranspile(t, cursorProc, DefaultConfig())
	code := res.Code

	// OPEN runs the query; the WHILE folds into the iterator loop.
	assert.Contains(t, code, "row_cursorRows, err")
	assert.Contains(t, code, "QueryContext")
	assert.Contains(t, code, "for row_cursorRows.Next() {")
	assert.Contains(t, code, "row_cursorRows.Scan(&id, &name)")
	assert.Contains(t, code, "defer row_cursorRows.Close()")

	// FETCH statements disappear into the loop.
	assert.NotContains(t, code, "FETCH NEXT")

	// The insert runs once per row, inside the loop.
	loop := code[strings.Index(code, "for row_cursorRows.Next()"):]
	assert.Contains(t, loop, "ExecContext")
}

func TestCursorAdvisoryWarning(t *testing.T) {
	res := mustTranspile(t, cursorProc, DefaultConfig())
	found := false
	for _, d := range res.Diagnostics {
		if d.Category == DiagCursorUsed {
			found = true
		}
	}
	assert.True(t, found, "cursor use is surfaced as an advisory")
}

func TestCursorCompoundCondition(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.BoundedCopy
    @Max INT
AS
BEGIN
    DECLARE @Id INT
    DECLARE @Count INT = 0

    DECLARE c CURSOR FOR SELECT Id FROM Source
    OPEN c
    FETCH NEXT FROM c INTO @Id

    WHILE @@FETCH_STATUS = 0 AND @Count < @Max
    BEGIN
        SET @Count = @Count + 1
        FETCH NEXT FROM c INTO @Id
    END

    CLOSE c
    DEALLOCATE c
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	require.Contains(t, code, "for cRows.Next() {")
	assert.Contains(t, code, "if !((count < max)) {")
	assert.Contains(t, code, "break")
}

func TestFetchWithoutCursorFails(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Broken
AS
BEGIN
    DECLARE @Id INT
    FETCH NEXT FROM ghost INTO @Id
END
`
	_, err := Transpile(sql, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
