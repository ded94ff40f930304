// Package dialect provides SQL dialect strategies for the emitted queries:
// parameter placeholder style, identifier quoting, and the T-SQL-to-target
// rewrites applied to serialized statements.
package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect describes one target SQL variant.
type Dialect interface {
	// Name is the canonical dialect name used in configuration.
	Name() string

	// Placeholder returns the parameter placeholder for the n-th bound value
	// (1-based).
	Placeholder(n int) string

	// QuoteIdentifier quotes a single identifier for this dialect.
	QuoteIdentifier(name string) string

	// Normalize rewrites T-SQL-specific scalar syntax that the target engine
	// does not accept. The input has already had table hints stripped.
	Normalize(sql string) string

	// SupportsReturning reports whether INSERT ... RETURNING is available,
	// which is how OUTPUT clauses are carried over.
	SupportsReturning() bool

	// Upsert names the dialect's upsert form; MERGE statements are rewritten
	// through RewriteMerge when it is not UpsertMerge.
	Upsert() UpsertStyle
}

// ForName returns the dialect registered under name. Unknown names fall back
// to ANSI.
func ForName(name string) Dialect {
	switch strings.ToLower(name) {
	case "tsql", "sqlserver", "mssql":
		return TSQL{}
	case "postgres", "postgres-like", "pgx":
		return Postgres{}
	case "mysql", "mysql-like":
		return MySQL{}
	case "sqlite", "sqlite-like", "sqlite3":
		return SQLite{}
	default:
		return ANSI{}
	}
}

// Names lists the recognized dialect names, for flag validation.
func Names() []string {
	return []string{"ansi", "tsql", "postgres", "mysql", "sqlite"}
}

// ANSI is the least-common-denominator dialect: question-mark placeholders,
// double-quoted identifiers, no engine-specific rewrites.
type ANSI struct{}

func (ANSI) Name() string                    { return "ansi" }
func (ANSI) Placeholder(n int) string        { return "?" }
func (ANSI) QuoteIdentifier(s string) string { return `"` + s + `"` }
func (ANSI) Normalize(sql string) string     { return sql }
func (ANSI) SupportsReturning() bool         { return false }
func (ANSI) Upsert() UpsertStyle             { return UpsertMerge }

// TSQL keeps the source syntax mostly intact; queries pass through to a SQL
// Server compatible engine with named @pN placeholders.
type TSQL struct{}

func (TSQL) Name() string             { return "tsql" }
func (TSQL) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }
func (TSQL) QuoteIdentifier(s string) string {
	return "[" + s + "]"
}
func (TSQL) Normalize(sql string) string { return sql }
func (TSQL) SupportsReturning() bool     { return false }
func (TSQL) Upsert() UpsertStyle         { return UpsertMerge }

// Postgres uses numbered dollar placeholders and rewrites the common T-SQL
// scalar functions the engine lacks.
type Postgres struct{}

func (Postgres) Name() string             { return "postgres" }
func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (Postgres) QuoteIdentifier(s string) string {
	return `"` + s + `"`
}

var (
	pgIsnullRe  = regexp.MustCompile(`(?i)\bISNULL\s*\(`)
	pgGetdateRe = regexp.MustCompile(`(?i)\bGETDATE\s*\(\s*\)`)
	pgLenRe     = regexp.MustCompile(`(?i)\bLEN\s*\(`)
)

func (Postgres) Normalize(sql string) string {
	sql = pgIsnullRe.ReplaceAllString(sql, "COALESCE(")
	sql = pgGetdateRe.ReplaceAllString(sql, "NOW()")
	sql = pgLenRe.ReplaceAllString(sql, "LENGTH(")
	return sql
}
func (Postgres) SupportsReturning() bool { return true }
func (Postgres) Upsert() UpsertStyle     { return UpsertOnConflict }

// MySQL uses question-mark placeholders and backtick quoting.
type MySQL struct{}

func (MySQL) Name() string             { return "mysql" }
func (MySQL) Placeholder(n int) string { return "?" }
func (MySQL) QuoteIdentifier(s string) string {
	return "`" + s + "`"
}

var (
	myGetdateRe = regexp.MustCompile(`(?i)\bGETDATE\s*\(\s*\)`)
	myLenRe     = regexp.MustCompile(`(?i)\bLEN\s*\(`)
)

func (MySQL) Normalize(sql string) string {
	sql = myGetdateRe.ReplaceAllString(sql, "NOW()")
	sql = myLenRe.ReplaceAllString(sql, "LENGTH(")
	return sql
}
func (MySQL) SupportsReturning() bool { return false }
func (MySQL) Upsert() UpsertStyle     { return UpsertOnDuplicateKey }

// SQLite uses question-mark placeholders and double-quoted identifiers.
type SQLite struct{}

func (SQLite) Name() string             { return "sqlite" }
func (SQLite) Placeholder(n int) string { return "?" }
func (SQLite) QuoteIdentifier(s string) string {
	return `"` + s + `"`
}

var (
	sqGetdateRe = regexp.MustCompile(`(?i)\bGETDATE\s*\(\s*\)`)
	sqIsnullRe  = regexp.MustCompile(`(?i)\bISNULL\s*\(`)
	sqLenRe     = regexp.MustCompile(`(?i)\bLEN\s*\(`)
)

func (SQLite) Normalize(sql string) string {
	sql = sqGetdateRe.ReplaceAllString(sql, "DATETIME('now')")
	sql = sqIsnullRe.ReplaceAllString(sql, "IFNULL(")
	sql = sqLenRe.ReplaceAllString(sql, "LENGTH(")
	return sql
}
func (SQLite) SupportsReturning() bool { return true }
func (SQLite) Upsert() UpsertStyle     { return UpsertOnConflict }

// hintWords are the SQL Server table hints stripped from every serialized
// statement before placeholder substitution.
const hintWords = `NOLOCK|READUNCOMMITTED|READCOMMITTED|REPEATABLEREAD|SERIALIZABLE|ROWLOCK|PAGLOCK|TABLOCK|TABLOCKX|UPDLOCK|XLOCK|HOLDLOCK|NOWAIT|READPAST`

var (
	withHintRe   = regexp.MustCompile(`(?i)\s*WITH\s*\(\s*(` + hintWords + `)(\s*,\s*(` + hintWords + `))*\s*\)`)
	legacyHintRe = regexp.MustCompile(`(?i)(\s)\(\s*(` + hintWords + `)(\s*,\s*(` + hintWords + `))*\s*\)`)
)

// StripTableHints removes WITH (NOLOCK)-style hints; they have no meaning
// outside SQL Server and several engines reject them outright.
func StripTableHints(sql string) string {
	sql = withHintRe.ReplaceAllString(sql, "")
	sql = legacyHintRe.ReplaceAllString(sql, "")
	for strings.Contains(sql, "  ") {
		sql = strings.ReplaceAll(sql, "  ", " ")
	}
	return sql
}
