package transpile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTranspile(t *testing.T, sql string, cfg Config) *Result {
	t.Helper()
	res, err := Transpile(sql, cfg)
	require.NoError(t, err)
	return res
}

func TestProcedureShell(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.AddNumbers
    @A INT,
    @B INT,
    @Result INT OUTPUT
AS
BEGIN
    SET @Result = @A + @B
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "package procs")
	assert.Contains(t, code, "func AddNumbers(a int32, b int32) (result int32)")
	assert.Contains(t, code, "result = (a + b)")
	assert.Contains(t, code, "return result")
	assert.NotContains(t, code, "err error", "no DML, no error channel")
}

func TestReturnCodeAndErrorChannel(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.SaveUser
    @Email VARCHAR(255)
AS
BEGIN
    INSERT INTO Users (Email) VALUES (@Email)
    RETURN 1
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "returnCode int32")
	assert.Contains(t, code, "err error")
	assert.Contains(t, code, "ctx context.Context", "DML forces the context parameter")
	assert.Contains(t, code, "return 1, nil")
}

func TestBareReturnArity(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.JustReturn
    @Out INT OUTPUT
AS
BEGIN
    SET @Out = 7
    RETURN 3
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	// Outputs + return code, no DML: two-slot tuple.
	assert.Contains(t, res.Code, "return out, 3")
}

func TestNullToZeroLowering(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Nulls
AS
BEGIN
    DECLARE @Amount DECIMAL(18,2) = NULL
    DECLARE @Name VARCHAR(50)
    DECLARE @Count INT
    SET @Name = NULL
    SET @Count = NULL
    SET @Amount = NULL
    PRINT @Name
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "var amount decimal.Decimal = decimal.Zero")
	assert.Contains(t, code, `name = ""`)
	assert.Contains(t, code, "count = 0")
	assert.Contains(t, code, "amount = decimal.Zero")
	assert.NotContains(t, code, "amount = nil")
}

func TestElseIfChain(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Grade
    @Score INT,
    @Grade VARCHAR(2) OUTPUT
AS
BEGIN
    IF @Score >= 90
    BEGIN
        SET @Grade = 'A'
    END
    ELSE IF @Score >= 80
    BEGIN
        SET @Grade = 'B'
    END
    ELSE
    BEGIN
        SET @Grade = 'F'
    END
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "if (score >= 90) {")
	assert.Contains(t, code, "} else if (score >= 80) {")
	assert.Contains(t, code, "} else {")
}

func TestWhileLoop(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.SumTo
    @N INT,
    @Total INT OUTPUT
AS
BEGIN
    DECLARE @I INT = 1
    WHILE @I <= @N
    BEGIN
        SET @Total = @Total + @I
        SET @I = @I + 1
    END
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "for (i <= n) {")
	assert.Contains(t, code, "total = (total + i)")
}

func TestUnusedVariableSuppression(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Unused
    @Out INT OUTPUT
AS
BEGIN
    DECLARE @Never INT = 5
    SET @Out = 1
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	assert.Contains(t, res.Code, "_ = never", "unread local gets a blank assignment on scope exit")
}

func TestSuppressionStaysReachable(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.UnusedBeforeReturn
    @Out INT OUTPUT
AS
BEGIN
    DECLARE @Never INT = 5
    SET @Out = 1
    RETURN
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code
	sup := strings.Index(code, "_ = never")
	ret := strings.Index(code, "return out")
	require.Greater(t, sup, 0)
	require.Greater(t, ret, 0)
	assert.Less(t, sup, ret, "suppression must precede the trailing return")
}

func TestImportsSortedAndDeduplicated(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Mixed
    @Amount DECIMAL(10,2),
    @When DATETIME,
    @Out VARCHAR(20) OUTPUT
AS
BEGIN
    SET @Out = UPPER('x')
    SET @Amount = @Amount + 1
    SET @When = GETDATE()
    PRINT @Out
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	start := strings.Index(code, "import (")
	require.Greater(t, start, 0)
	end := strings.Index(code[start:], ")")
	block := code[start : start+end]

	var imports []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, `"`) {
			imports = append(imports, strings.Trim(line, `"`))
		}
	}
	require.NotEmpty(t, imports)
	for i := 1; i < len(imports); i++ {
		assert.Less(t, imports[i-1], imports[i], "imports must be sorted lexicographically")
	}
	seen := map[string]bool{}
	for _, imp := range imports {
		assert.False(t, seen[imp], "duplicate import %s", imp)
		seen[imp] = true
	}
}

func TestDeterministicOutput(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Deterministic
    @A DECIMAL(10,2),
    @B INT,
    @Out VARCHAR(10) OUTPUT
AS
BEGIN
    DECLARE @When DATETIME = GETDATE()
    SET @Out = UPPER('x')
    SET @A = @A * @B
    PRINT @When
END
`
	first := mustTranspile(t, sql, DefaultConfig()).Code
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, mustTranspile(t, sql, DefaultConfig()).Code,
			"same input must produce byte-identical output")
	}
}

func TestStatementsWithoutUnitsFail(t *testing.T) {
	_, err := Transpile(`SELECT 1 FROM Dual`, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration tooling")
}

func TestCommentsCarriedOver(t *testing.T) {
	sql := `
-- Adds two integers.
CREATE PROCEDURE dbo.AddTwo
    @A INT,
    @Out INT OUTPUT
AS
BEGIN
    -- bump by two
    SET @Out = @A + 2
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	assert.Contains(t, res.Code, "// Adds two integers.")
	assert.Contains(t, res.Code, "// bump by two")
}

func TestReceiverAndContextArg(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.GetUserById
    @UserId INT
AS
BEGIN
    SELECT Id, Email FROM Users WHERE Id = @UserId
END
`
	cfg := DefaultConfig()
	cfg.Receiver = "r"
	cfg.ReceiverType = "*Repository"
	cfg.StoreVar = "r.db"
	res := mustTranspile(t, sql, cfg)

	assert.Contains(t, res.Code, "func (r *Repository) GetUserById(ctx context.Context, userId int32)")
	assert.Contains(t, res.Code, "r.db.QueryRowContext(ctx")
}

func TestRowCountAccumulator(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Touch
    @Id INT,
    @Rows INT OUTPUT
AS
BEGIN
    UPDATE Users SET IsActive = 1 WHERE Id = @Id
    SET @Rows = @@ROWCOUNT
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	code := res.Code

	assert.Contains(t, code, "var rowsAffected int32")
	assert.Contains(t, code, "result.RowsAffected()")
	assert.Contains(t, code, "rows = rowsAffected")
}

func TestSelfAssignmentElided(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Self
    @X INT OUTPUT
AS
BEGIN
    SET @X = @X
    SET @X = 2
END
`
	res := mustTranspile(t, sql, DefaultConfig())
	assert.NotContains(t, res.Code, "x = x")
}
