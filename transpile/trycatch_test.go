package transpile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryCatchShape(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Guarded
    @Id INT,
    @Msg VARCHAR(255) OUTPUT
AS
BEGIN
    BEGIN TRY
        UPDATE Users SET IsActive = 1 WHERE Id = @Id
    END TRY
    BEGIN CATCH
        SET @Msg = ERROR_MESSAGE()
    END CATCH
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	// The TRY body runs inside an immediately-invoked function guarded by a
	// deferred recover.
	assert.Contains(t, code, "func() {")
	assert.Contains(t, code, "defer func() {")
	assert.Contains(t, code, "if _recovered := recover(); _recovered != nil {")
	assert.Contains(t, code, `msg = fmt.Sprintf("%v", _recovered)`)

	// The handler registration precedes the TRY body.
	deferIdx := strings.Index(code, "defer func()")
	updateIdx := strings.Index(code, "ExecContext")
	require.Greater(t, deferIdx, 0)
	require.Greater(t, updateIdx, 0)
	assert.Less(t, deferIdx, updateIdx)
}

func TestErrorAccessorsInCatch(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Diagnostics
    @Num INT OUTPUT,
    @Sev INT OUTPUT,
    @Proc VARCHAR(128) OUTPUT
AS
BEGIN
    BEGIN TRY
        INSERT INTO Things (X) VALUES (1)
    END TRY
    BEGIN CATCH
        SET @Num = ERROR_NUMBER()
        SET @Sev = ERROR_SEVERITY()
        SET @Proc = ERROR_PROCEDURE()
    END CATCH
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "num = 50000", "ERROR_NUMBER returns the documented default")
	assert.Contains(t, code, "sev = 16", "ERROR_SEVERITY returns the documented default")
	assert.Contains(t, code, `proc = "Diagnostics"`)
}

func TestReturnInsideTryIsBare(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.EarlyOut
    @Id INT,
    @Out INT OUTPUT
AS
BEGIN
    BEGIN TRY
        SET @Out = 1
        RETURN
    END TRY
    BEGIN CATCH
        SET @Out = 2
    END CATCH
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	// Inside the anonymous function the RETURN exits the IIFE; the named
	// outputs deliver the values at the procedure's final return.
	assert.Contains(t, res.Code, "\t\treturn\n")
}

func TestRaiserrorOutsideTry(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Validate
    @Age INT,
    @Ok BIT OUTPUT
AS
BEGIN
    IF @Age < 0
    BEGIN
        RAISERROR('age cannot be negative', 16, 1)
    END
    SET @Ok = 1
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, `fmt.Errorf("age cannot be negative")`)
	assert.Contains(t, code, "return false, fmt.Errorf", "outputs return zero values on the error path")
}

func TestRaiserrorInsideTryPanics(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Panicky
    @Out INT OUTPUT
AS
BEGIN
    BEGIN TRY
        RAISERROR('boom', 16, 1)
    END TRY
    BEGIN CATCH
        SET @Out = 1
    END CATCH
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	assert.Contains(t, res.Code, `panic(fmt.Errorf("boom"))`)
}

func TestThrowRethrow(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Rethrower
    @Out INT OUTPUT
AS
BEGIN
    BEGIN TRY
        INSERT INTO T (X) VALUES (1)
    END TRY
    BEGIN CATCH
        THROW
    END CATCH
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	assert.Contains(t, res.Code, "panic(_recovered)", "bare THROW re-raises the caught value")
}

func TestSPLoggerRewritesCatchBlock(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Transfer
    @Amount DECIMAL(18,2)
AS
BEGIN
    BEGIN TRY
        UPDATE Accounts SET Balance = 0 WHERE Id = 1
    END TRY
    BEGIN CATCH
        DECLARE @Params XML = (SELECT ISNULL(CONVERT(VARCHAR(50), @Amount), '') AS Amount FOR XML PATH('Params'))
        INSERT INTO ErrorLog (Message) VALUES ('failed')
    END CATCH
END
`
	cfg := DefaultConfig()
	cfg.Logger = LoggerSlog
	res := mustTranspile(t, sql, cfg)
	code := res.Code

	assert.Contains(t, code, `sqlrt.Capture("Transfer", _recovered`)
	assert.Contains(t, code, "spLogger.LogError(ctx, _spErr)")
	assert.NotContains(t, code, "INSERT INTO ErrorLog", "the log INSERT is replaced by the logger hook")
	assert.NotContains(t, code, "var params", "XML parameter DECLAREs are elided")
}

func TestLoggerInitBlock(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Tiny
    @Out INT OUTPUT
AS
BEGIN
    SET @Out = 1
END
`
	cfg := DefaultConfig()
	cfg.Logger = LoggerSlog
	cfg.EmitLoggerInit = true
	res := mustTranspile(t, sql, cfg)

	assert.Contains(t, res.Code, "var spLogger sqlrt.Logger")
	assert.Contains(t, res.Code, "func init() {")
	assert.Contains(t, res.Code, "sqlrt.NewSlogLogger(nil)")
}
