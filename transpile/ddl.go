package transpile

import (
	"fmt"
	"strings"

	"github.com/ha1tch/tsqlparser/ast"
)

// Temp tables lower to sqlrt.TempTables registrations. Everything else is
// DDL and follows the configured policy: skipped with a warning, collected
// verbatim, or fatal.

func (e *emitter) lowerCreateTable(s *ast.CreateTableStatement) (string, error) {
	table := s.Name.String()
	if strings.HasPrefix(table, "#") {
		e.hasDML = true
		e.recordTempTable(table)
		return e.lowerCreateTempTable(s, table)
	}
	return e.applyDDLPolicy("CREATE TABLE "+table, s.String())
}

func (e *emitter) lowerCreateTempTable(s *ast.CreateTableStatement, table string) (string, error) {
	e.addImport(runtimeImport)

	var out strings.Builder
	fmt.Fprintf(&out, "// CREATE TABLE %s\n%s", table, e.pad())
	out.WriteString("{\n")
	out.WriteString(e.pad() + "\tcolumns := []sqlrt.Column{\n")
	for _, col := range s.Columns {
		out.WriteString(e.pad() + "\t\t{")
		fmt.Fprintf(&out, "Name: %q", col.Name.Value)
		if col.DataType != nil {
			fmt.Fprintf(&out, ", Type: %q", strings.ToUpper(col.DataType.Name))
			if col.DataType.Length != nil {
				fmt.Fprintf(&out, ", Length: %d", *col.DataType.Length)
			} else if col.DataType.Max {
				out.WriteString(", Length: -1")
			}
		}
		if col.Nullable == nil || *col.Nullable {
			out.WriteString(", Nullable: true")
		}
		if col.Identity != nil {
			fmt.Fprintf(&out, ", Identity: true, Seed: %d, Step: %d", col.Identity.Seed, col.Identity.Increment)
		}
		out.WriteString("},\n")
	}
	out.WriteString(e.pad() + "\t}\n")
	fmt.Fprintf(&out, "%s\tif _, err := tempTables.Create(%q, columns); err != nil {\n", e.pad(), table)
	out.WriteString(e.pad() + "\t\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "\t}\n")
	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

func (e *emitter) lowerDropTable(s *ast.DropTableStatement) (string, error) {
	var parts []string
	for _, table := range s.Tables {
		name := table.String()
		if !strings.HasPrefix(name, "#") {
			code, err := e.applyDDLPolicy("DROP TABLE "+name, "DROP TABLE "+name)
			if err != nil {
				return "", err
			}
			parts = append(parts, code)
			continue
		}
		e.hasDML = true
		e.recordTempTable(name)
		e.addImport(runtimeImport)

		var out strings.Builder
		fmt.Fprintf(&out, "// DROP TABLE %s\n%s", name, e.pad())
		if s.IfExists {
			fmt.Fprintf(&out, "_ = tempTables.Drop(%q)", name)
		} else {
			fmt.Fprintf(&out, "if err := tempTables.Drop(%q); err != nil {\n", name)
			out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
			out.WriteString(e.pad() + "}")
		}
		parts = append(parts, out.String())
	}
	return strings.Join(parts, "\n"+e.pad()), nil
}

func (e *emitter) lowerTruncateTable(s *ast.TruncateTableStatement) (string, error) {
	name := s.Table.String()
	if !strings.HasPrefix(name, "#") {
		return e.applyDDLPolicy("TRUNCATE TABLE "+name, "TRUNCATE TABLE "+name)
	}
	e.hasDML = true
	e.recordTempTable(name)
	e.addImport(runtimeImport)

	var out strings.Builder
	fmt.Fprintf(&out, "// TRUNCATE TABLE %s\n%s", name, e.pad())
	fmt.Fprintf(&out, "if err := tempTables.Truncate(%q); err != nil {\n", name)
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

// applyDDLPolicy handles non-temp DDL according to configuration.
func (e *emitter) applyDDLPolicy(label, verbatim string) (string, error) {
	switch e.cfg.DDL {
	case DDLStrict:
		return "", &UnsupportedStatementError{
			Kind: label,
			Hint: "DDL is rejected under the strict policy; move it to migration tooling",
		}
	case DDLExtract:
		e.res.ExtractedDDL = append(e.res.ExtractedDDL, verbatim)
		e.res.warn(DiagDDLSkipped, "%s extracted", label)
		return fmt.Sprintf("// %s extracted to the DDL sink", label), nil
	default: // skip-warn
		e.res.DDLWarnings = append(e.res.DDLWarnings, label+" skipped")
		e.res.warn(DiagDDLSkipped, "%s skipped; run it through migration tooling", label)
		return fmt.Sprintf("// %s skipped (ddl-policy: skip-warn)", label), nil
	}
}
