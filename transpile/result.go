package transpile

import "fmt"

// Diagnostic categories are stable; callers filter on them.
const (
	DiagDDLSkipped         = "ddl-skipped"
	DiagTempTableFallback  = "temp-table-rpc-fallback"
	DiagCursorUsed         = "cursor-used"
	DiagDeleteWithoutWhere = "delete-without-where"
	DiagUpdateWithoutWhere = "update-without-where"
	DiagDynamicSQL         = "dynamic-sql-detected"
	DiagUnsupported        = "unsupported-statement"
)

// Diagnostic is one advisory finding surfaced with the output.
type Diagnostic struct {
	Category string
	Message  string
}

func (d Diagnostic) String() string {
	return d.Category + ": " + d.Message
}

// Result is everything a batch produces.
type Result struct {
	// Code is the emitted Go source.
	Code string

	// DDLWarnings lists DDL statements skipped under the skip-warn policy.
	DDLWarnings []string

	// ExtractedDDL holds verbatim DDL text under the extract policy.
	ExtractedDDL []string

	// TempTables lists temp-table names encountered, deduplicated.
	TempTables []string

	// TempTableWarnings lists temp-table statements that forced a fallback
	// back-end.
	TempTableWarnings []string

	// Diagnostics carries every advisory finding, including the ones above.
	Diagnostics []Diagnostic
}

func (r *Result) warn(category, format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	})
}

// UnsupportedStatementError is the structured fatal error for statement
// kinds the core does not lower. Hint directs the user at the workaround.
type UnsupportedStatementError struct {
	Kind string // AST node kind, e.g. "*ast.CreateViewStatement"
	Hint string
}

func (e *UnsupportedStatementError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("unsupported statement %s", e.Kind)
	}
	return fmt.Sprintf("unsupported statement %s: %s", e.Kind, e.Hint)
}
