package transpile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendRPC
	cfg.RPCClientVar = "client"
	cfg.ProtoPackage = "crmpb"
	return cfg
}

func TestRPCSelectByColumn(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.GetUserByEmail
    @Email VARCHAR(255),
    @UserId INT OUTPUT
AS
BEGIN
    SELECT @UserId = Id FROM Users WHERE Email = @Email
END
`
	res := mustTranspile(t, sql, rpcConfig())
	code := res.Code

	assert.Contains(t, code, "client.GetUserByEmail(ctx, &crmpb.GetUserByEmailRequest{")
	assert.Contains(t, code, "Email: email,")
	assert.Contains(t, code, "userId = resp.Id")
}

func TestRPCSelectById(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.LoadUser
    @Id INT
AS
BEGIN
    SELECT Id, Email FROM Users WHERE Id = @Id
END
`
	res := mustTranspile(t, sql, rpcConfig())
	assert.Contains(t, res.Code, "client.GetUser(ctx, &crmpb.GetUserRequest{")
}

func TestRPCSelectList(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.AllUsers
AS
BEGIN
    SELECT Id, Email FROM Users
END
`
	res := mustTranspile(t, sql, rpcConfig())
	assert.Contains(t, res.Code, "client.ListUsers(ctx")
}

func TestRPCInsertBecomesCreate(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.NewUser
    @Email VARCHAR(255)
AS
BEGIN
    INSERT INTO Users (Email) VALUES (@Email)
END
`
	res := mustTranspile(t, sql, rpcConfig())
	assert.Contains(t, res.Code, "client.CreateUser(ctx, &crmpb.CreateUserRequest{")
}

func TestRPCDeleteBecomesDelete(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.DropUser
    @Id INT
AS
BEGIN
    DELETE FROM Users WHERE Id = @Id
END
`
	res := mustTranspile(t, sql, rpcConfig())
	assert.Contains(t, res.Code, "client.DeleteUser(ctx, &crmpb.DeleteUserRequest{")
}

func TestRPCUpdateStateVerb(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.ApproveIt
    @OrderId INT
AS
BEGIN
    UPDATE Orders SET ApprovalStatus = 'Approved' WHERE Id = @OrderId
END
`
	res := mustTranspile(t, sql, rpcConfig())
	assert.Contains(t, res.Code, "client.ApproveOrder(ctx", "SET of an approval column promotes the verb")
}

func TestRPCExistsLowersToGetBy(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.CheckUser
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
	res := mustTranspile(t, sql, rpcConfig())
	code := res.Code

	assert.Contains(t, code, "client.GetUserByEmail(ctx")
	assert.Contains(t, code, "return err == nil && resp != nil")
}

func TestRPCExecExplicitMapping(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.Orchestrate
    @UserId INT
AS
BEGIN
    EXEC usp_ScreenUser @UserId = @UserId
END
`
	cfg := rpcConfig()
	cfg.ProcMappings = map[string]string{"usp_ScreenUser": "ScreeningService.ScreenUser"}
	res := mustTranspile(t, sql, cfg)
	code := res.Code

	assert.Contains(t, code, "screeningServiceClient.ScreenUser(ctx, &screeningpb.ScreenUserRequest{")
	assert.Contains(t, code, "UserId: userId,")
}

func TestRPCTableToServiceRouting(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.FetchProduct
    @Id INT
AS
BEGIN
    SELECT Id, Sku FROM Products WHERE Id = @Id
END
`
	cfg := rpcConfig()
	cfg.TableToService = map[string]string{"Products": "CatalogService"}
	res := mustTranspile(t, sql, cfg)

	assert.Contains(t, res.Code, "catalogServiceClient.GetProduct(ctx, &catalogpb.GetProductRequest{")
}

func TestMockSelect(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.FindUser
    @Email VARCHAR(255),
    @UserId INT OUTPUT
AS
BEGIN
    SELECT @UserId = Id FROM Users WHERE Email = @Email
END
`
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.MockStoreVar = "store"
	res := mustTranspile(t, sql, cfg)
	code := res.Code

	assert.Contains(t, code, `store.Call(ctx, mockrpc.Request{Method: "GetUserByEmail"`)
	assert.Contains(t, code, `"Email": email`)
	require.Contains(t, code, "len(resp.Records) > 0")
}

func TestMockInsert(t *testing.T) {
	sql := `
CREATE PROCEDURE dbo.AddUser
    @Email VARCHAR(255)
AS
BEGIN
    INSERT INTO Users (Email) VALUES (@Email)
END
`
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	res := mustTranspile(t, sql, cfg)

	assert.Contains(t, res.Code, `mockrpc.Request{Method: "CreateUser"`)
	assert.Contains(t, res.Code, `Values: map[string]any{"Email": email}`)
}

func TestVerbConflictAvoided(t *testing.T) {
	assert.True(t, verbConflicts("Transfer", "Transfer"))
	assert.True(t, verbConflicts("Transfer", "TransferAccounting"))
	assert.False(t, verbConflicts("Approve", "Order"))
}

func TestExtractActionVerb(t *testing.T) {
	assert.Equal(t, "Approve", extractActionVerb("ApprovalStatus"))
	assert.Equal(t, "Reject", extractActionVerb("'Rejected'"))
	assert.Equal(t, "Deactivate", extractActionVerb("DeactivationDate"))
	assert.Equal(t, "", extractActionVerb("Email"))
}
