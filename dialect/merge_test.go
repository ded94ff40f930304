package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const canonicalMerge = `MERGE Accounts AS t USING (SELECT @Id AS Id, @Balance AS Balance) AS s ON t.Id = s.Id WHEN MATCHED THEN UPDATE SET t.Balance = s.Balance WHEN NOT MATCHED THEN INSERT (Id, Balance) VALUES (s.Id, s.Balance);`

func TestUpsertStyles(t *testing.T) {
	assert.Equal(t, UpsertMerge, TSQL{}.Upsert())
	assert.Equal(t, UpsertMerge, ANSI{}.Upsert())
	assert.Equal(t, UpsertOnConflict, Postgres{}.Upsert())
	assert.Equal(t, UpsertOnConflict, SQLite{}.Upsert())
	assert.Equal(t, UpsertOnDuplicateKey, MySQL{}.Upsert())
}

func TestRewriteMergePassThrough(t *testing.T) {
	out, err := RewriteMerge(canonicalMerge, UpsertMerge)
	require.NoError(t, err)
	assert.Equal(t, canonicalMerge, out)
}

func TestRewriteMergeOnConflict(t *testing.T) {
	out, err := RewriteMerge(canonicalMerge, UpsertOnConflict)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO Accounts (Id, Balance) VALUES (@Id, @Balance) ON CONFLICT (Id) DO UPDATE SET Balance = @Balance",
		out)
}

func TestRewriteMergeOnDuplicateKey(t *testing.T) {
	out, err := RewriteMerge(canonicalMerge, UpsertOnDuplicateKey)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO Accounts (Id, Balance) VALUES (@Id, @Balance) ON DUPLICATE KEY UPDATE Balance = @Balance",
		out)
}

func TestRewriteMergeInsertOnly(t *testing.T) {
	sql := `MERGE Accounts AS t USING (SELECT @Id AS Id) AS s ON t.Id = s.Id WHEN NOT MATCHED THEN INSERT (Id) VALUES (s.Id)`

	out, err := RewriteMerge(sql, UpsertOnConflict)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO Accounts (Id) VALUES (@Id) ON CONFLICT (Id) DO NOTHING", out)

	out, err = RewriteMerge(sql, UpsertOnDuplicateKey)
	require.NoError(t, err)
	assert.Equal(t, "INSERT IGNORE INTO Accounts (Id) VALUES (@Id)", out)
}

func TestRewriteMergeUpdateOnly(t *testing.T) {
	sql := `MERGE Accounts AS t USING (SELECT @Id AS Id, @Balance AS Balance) AS s ON t.Id = s.Id WHEN MATCHED THEN UPDATE SET t.Balance = s.Balance`

	out, err := RewriteMerge(sql, UpsertOnConflict)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE Accounts SET Balance = @Balance WHERE Id = @Id", out)
}

func TestRewriteMergeCompositeKey(t *testing.T) {
	sql := `MERGE INTO Rates USING (SELECT @From AS FromCode, @To AS ToCode, @Rate AS Rate) AS s ON Rates.FromCode = s.FromCode AND Rates.ToCode = s.ToCode WHEN MATCHED THEN UPDATE SET Rates.Rate = s.Rate WHEN NOT MATCHED THEN INSERT (FromCode, ToCode, Rate) VALUES (s.FromCode, s.ToCode, s.Rate)`

	out, err := RewriteMerge(sql, UpsertOnConflict)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO Rates (FromCode, ToCode, Rate) VALUES (@From, @To, @Rate) ON CONFLICT (FromCode, ToCode) DO UPDATE SET Rate = @Rate",
		out)
}

func TestRewriteMergeRejectsTableSource(t *testing.T) {
	_, err := RewriteMerge(`MERGE Accounts AS t USING Staging AS s ON t.Id = s.Id WHEN MATCHED THEN UPDATE SET t.X = s.X`, UpsertOnConflict)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USING (SELECT")
}

func TestRewriteMergeRejectsBySource(t *testing.T) {
	_, err := RewriteMerge(`MERGE Accounts AS t USING (SELECT @Id AS Id) AS s ON t.Id = s.Id WHEN NOT MATCHED BY SOURCE THEN DELETE`, UpsertOnConflict)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BY SOURCE")
}

func TestRewriteMergeRejectsMissingWhen(t *testing.T) {
	_, err := RewriteMerge(`MERGE Accounts AS t USING (SELECT @Id AS Id) AS s ON t.Id = s.Id`, UpsertOnConflict)
	require.Error(t, err)
}
