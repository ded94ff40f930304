package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForName(t *testing.T) {
	assert.Equal(t, "postgres", ForName("postgres").Name())
	assert.Equal(t, "postgres", ForName("postgres-like").Name())
	assert.Equal(t, "tsql", ForName("sqlserver").Name())
	assert.Equal(t, "mysql", ForName("mysql-like").Name())
	assert.Equal(t, "sqlite", ForName("sqlite3").Name())
	assert.Equal(t, "ansi", ForName("something-else").Name())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$3", Postgres{}.Placeholder(3))
	assert.Equal(t, "?", MySQL{}.Placeholder(7))
	assert.Equal(t, "?", SQLite{}.Placeholder(1))
	assert.Equal(t, "@p2", TSQL{}.Placeholder(2))
	assert.Equal(t, "?", ANSI{}.Placeholder(9))
}

func TestPostgresNormalize(t *testing.T) {
	got := Postgres{}.Normalize("SELECT ISNULL(Name, ''), GETDATE(), LEN(Code) FROM T")
	assert.Equal(t, "SELECT COALESCE(Name, ''), NOW(), LENGTH(Code) FROM T", got)
}

func TestSQLiteNormalize(t *testing.T) {
	got := SQLite{}.Normalize("SELECT IsNull(a, b), getdate() FROM T")
	assert.Equal(t, "SELECT IFNULL(a, b), DATETIME('now') FROM T", got)
}

func TestStripTableHints(t *testing.T) {
	cases := []struct{ in, want string }{
		{"SELECT * FROM Users WITH (NOLOCK) WHERE Id = 1", "SELECT * FROM Users WHERE Id = 1"},
		{"SELECT * FROM Users WITH (NOLOCK, ROWLOCK)", "SELECT * FROM Users"},
		{"SELECT * FROM Users (NOLOCK)", "SELECT * FROM Users"},
		{"SELECT COUNT(*) FROM Orders", "SELECT COUNT(*) FROM Orders"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StripTableHints(c.in), c.in)
	}
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, "[Order]", TSQL{}.QuoteIdentifier("Order"))
	assert.Equal(t, "`Order`", MySQL{}.QuoteIdentifier("Order"))
	assert.Equal(t, `"Order"`, Postgres{}.QuoteIdentifier("Order"))
}
