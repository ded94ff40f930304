package transpile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectSingleRowPostgres(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.GetUserById
    @UserId INT
AS
BEGIN
    SELECT Id, Email, FirstName FROM Users WHERE Id = @UserId
END
`
	cfg := DefaultConfig()
	cfg.Dialect = "postgres"
	res := mustTranspile(t, sql, cfg)
	code := res.Code

	assert.Contains(t, code, "QueryRowContext")
	assert.Contains(t, code, "$1")
	assert.Contains(t, code, "row.Scan(")
}

func TestSelectMultiRow(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.ListUsers
AS
BEGIN
    SELECT Id, Email FROM Users
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "QueryContext")
	assert.Contains(t, code, "for rows.Next() {")
	assert.Contains(t, code, "defer rows.Close()")
}

func TestSelectIntoVariables(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.GetEmail
    @UserId INT,
    @Email VARCHAR(255) OUTPUT
AS
BEGIN
    SELECT @Email = Email FROM Users WHERE Id = @UserId
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, ".Scan(&email)")
	assert.Contains(t, code, "sql.ErrNoRows")
}

func TestInsertExecAndPlaceholderStyles(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.CreateUser
    @Email VARCHAR(255),
    @Name VARCHAR(100)
AS
BEGIN
    INSERT INTO Users (Email, Name) VALUES (@Email, @Name)
END
`
	for dialectName, placeholder := range map[string]string{
		"postgres": "$2",
		"mysql":    "?",
		"tsql":     "@p2",
	} {
		cfg := DefaultConfig()
		cfg.Dialect = dialectName
		res := mustTranspile(t, sql, cfg)
		assert.Contains(t, res.Code, "ExecContext", dialectName)
		assert.Contains(t, res.Code, placeholder, dialectName)
	}
}

func TestUpdateWithoutWhereWarns(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.TouchAll
AS
BEGIN
    UPDATE Users SET IsActive = 1
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, DiagUpdateWithoutWhere, res.Diagnostics[0].Category)
}

func TestDeleteWithoutWhereWarns(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Purge
AS
BEGIN
    DELETE FROM Sessions
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	found := false
	for _, d := range res.Diagnostics {
		if d.Category == DiagDeleteWithoutWhere {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSetFromSubquery(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.CountUsers
    @Total INT OUTPUT
AS
BEGIN
    SET @Total = (SELECT COUNT(*) FROM Users)
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "QueryRowContext")
	assert.Contains(t, code, "Scan(&total)")
	assert.Contains(t, code, "sql.ErrNoRows")
	assert.Contains(t, code, "total = 0", "no rows lowers to the zero value, not an error")
}

func TestTableHintsStripped(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.ReadDirty
    @Id INT
AS
BEGIN
    SELECT Id, Email FROM Users WITH (NOLOCK) WHERE Id = @Id
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	assert.NotContains(t, res.Code, "NOLOCK")
}

func TestTransactionLowering(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Move
    @From INT,
    @To INT
AS
BEGIN
    BEGIN TRANSACTION
    UPDATE Accounts SET Touched = 1 WHERE Id = @From
    UPDATE Accounts SET Touched = 1 WHERE Id = @To
    COMMIT TRANSACTION
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "BeginTx(ctx, nil)")
	assert.Contains(t, code, "tx.Rollback()")
	assert.Contains(t, code, "tx.Commit()")
	assert.Contains(t, code, "tx.ExecContext(ctx", "DML inside the transaction uses the tx handle")
}

func TestNestedTransactionRejected(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Nested
AS
BEGIN
    BEGIN TRANSACTION
    BEGIN TRANSACTION
    COMMIT TRANSACTION
    COMMIT TRANSACTION
END
`
	_, err := Transpile(sql, DefaultConfig())
	require.Error(t, err)
	var unsupported *UnsupportedStatementError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Kind, "nested BEGIN TRANSACTION")
}

func TestDynamicSQLWarns(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Dyn
    @Sql VARCHAR(4000)
AS
BEGIN
    EXEC (@Sql)
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	found := false
	for _, d := range res.Diagnostics {
		if d.Category == DiagDynamicSQL {
			found = true
		}
	}
	assert.True(t, found)
	assert.Contains(t, res.Code, "not statically analyzable")
}

func TestExecProcedureCall(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Caller
    @Id INT
AS
BEGIN
    EXEC usp_DoWork @Id
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	assert.Contains(t, res.Code, "DoWork(")
}

func TestTempTableLifecycle(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Staging
AS
BEGIN
    CREATE TABLE #Stage (Id INT, Name VARCHAR(50))
    INSERT INTO #Stage (Id, Name) VALUES (1, 'x')
    TRUNCATE TABLE #Stage
    DROP TABLE #Stage
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, `tempTables.Create("#Stage"`)
	assert.Contains(t, code, `tempTables.Truncate("#Stage")`)
	assert.Contains(t, code, `tempTables.Drop("#Stage")`)
	assert.Contains(t, res.TempTables, "#Stage")
}

func TestTempTableRPCFallback(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Hybrid
    @Id INT
AS
BEGIN
    INSERT INTO #Scratch (Id) VALUES (@Id)
END
`
	cfg := DefaultConfig()
	cfg.Backend = BackendRPC
	res := mustTranspile(t, sql, cfg)

	require.NotEmpty(t, res.TempTableWarnings)
	assert.Contains(t, res.TempTableWarnings[0], "#Scratch")
	assert.Contains(t, res.Code, "ExecContext", "statement fell back to the sql back-end")

	found := false
	for _, d := range res.Diagnostics {
		if d.Category == DiagTempTableFallback {
			found = true
		}
	}
	assert.True(t, found, "implicit fallback must be surfaced")
}

func TestTempTableExplicitFallbackSilent(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Hybrid2
    @Id INT
AS
BEGIN
    INSERT INTO #Scratch (Id) VALUES (@Id)
END
`
	cfg := DefaultConfig()
	cfg.Backend = BackendRPC
	cfg.Fallback = BackendSQL
	cfg.FallbackExplicit = true
	res := mustTranspile(t, sql, cfg)

	for _, d := range res.Diagnostics {
		assert.NotEqual(t, DiagTempTableFallback, d.Category,
			"explicitly chosen fallback emits no advisory")
	}
}

func TestCTEInlinedUnderSQL(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.TopUsers
AS
BEGIN
    WITH Ranked AS (SELECT Id, Email FROM Users)
    SELECT Id, Email FROM Ranked
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "// WITH Ranked")
	assert.Contains(t, code, "WITH Ranked AS", "the CTE text is inlined into the final SQL")
}

func TestCTEUnderRPCRejected(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.TopUsers2
AS
BEGIN
    WITH Ranked AS (SELECT Id FROM Users)
    SELECT Id FROM Ranked
END
`
	cfg := DefaultConfig()
	cfg.Backend = BackendRPC
	_, err := Transpile(sql, cfg)
	require.Error(t, err)
	var unsupported *UnsupportedStatementError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Hint, "sql back-end")
}

func TestDDLPolicies(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.WithDDL
AS
BEGIN
    CREATE TABLE AuditLog (Id INT)
    INSERT INTO Events (Kind) VALUES ('x')
END
`
	t.Run("skip-warn", func(t *testing.T) {
		res := mustTranspile(t, sql, DefaultConfig())
		require.NotEmpty(t, res.DDLWarnings)
		assert.Contains(t, res.DDLWarnings[0], "AuditLog")
		assert.Contains(t, res.Code, "skipped")
	})

	t.Run("strict", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DDL = DDLStrict
		_, err := Transpile(sql, cfg)
		require.Error(t, err)
	})

	t.Run("extract", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DDL = DDLExtract
		res := mustTranspile(t, sql, cfg)
		require.Len(t, res.ExtractedDDL, 1)
		assert.Contains(t, res.ExtractedDDL[0], "AuditLog")
	})
}

const mergeProc = `
CREATE PROCEDURE dbo.UpsertBalance
    @Id INT,
    @Balance DECIMAL(18,2)
AS
BEGIN
    MERGE Accounts AS t
    USING (SELECT @Id AS Id, @Balance AS Balance) AS s
    ON t.Id = s.Id
    WHEN MATCHED THEN UPDATE SET t.Balance = s.Balance
    WHEN NOT MATCHED THEN INSERT (Id, Balance) VALUES (s.Id, s.Balance);
END
`

func TestMergePassThroughOnTSQL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialect = "tsql"
	res := mustTranspile(t, mergeProc, cfg)

	assert.Contains(t, res.Code, "ExecContext")
	assert.Contains(t, res.Code, "MERGE", "the native engine keeps the MERGE text")
	assert.NotContains(t, res.Code, "ON CONFLICT")
}

func TestMergeRewrittenOnConflict(t *testing.T) {
	for _, dialectName := range []string{"postgres", "sqlite"} {
		cfg := DefaultConfig()
		cfg.Dialect = dialectName
		res := mustTranspile(t, mergeProc, cfg)

		assert.Contains(t, res.Code, "ON CONFLICT (Id) DO UPDATE SET", dialectName)
		assert.NotContains(t, res.Code, "WHEN MATCHED", dialectName)
	}
}

func TestMergeRewrittenOnDuplicateKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialect = "mysql"
	res := mustTranspile(t, mergeProc, cfg)

	assert.Contains(t, res.Code, "ON DUPLICATE KEY UPDATE")
	assert.NotContains(t, res.Code, "WHEN MATCHED")
}

func TestMergeUnderRPCRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendRPC
	_, err := Transpile(mergeProc, cfg)
	require.Error(t, err)
	var unsupported *UnsupportedStatementError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Hint, "sql back-end")
}

func TestMergeTableSourceRejectedOffTSQL(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.UpsertFromStaging
AS
BEGIN
    MERGE Accounts AS t
    USING Staging AS s
    ON t.Id = s.Id
    WHEN MATCHED THEN UPDATE SET t.Balance = s.Balance;
END
`
	cfg := DefaultConfig()
	cfg.Dialect = "postgres"
	_, err := Transpile(sql, cfg)
	require.Error(t, err)
	var unsupported *UnsupportedStatementError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, unsupported.Hint, "split the MERGE")
}

func TestExistsSQL(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.HasUser
    @Email VARCHAR(255),
    @Found BIT OUTPUT
AS
BEGIN
    IF EXISTS (SELECT 1 FROM Users WHERE Email = @Email)
    BEGIN
        SET @Found = 1
    END
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "SELECT 1 WHERE EXISTS(")
	assert.Contains(t, code, "found = true")
}
