package transpile

import (
	"fmt"
	"strings"

	"github.com/ha1tch/tsqlparser/ast"
)

// typeInfo is the descriptor the analyzer assigns to every expression.
type typeInfo struct {
	goType     string
	isNumeric  bool
	isDecimal  bool
	isString   bool
	isBool     bool
	isDateTime bool
}

var opaqueType = &typeInfo{goType: "interface{}"}

func decimalType() *typeInfo {
	return &typeInfo{goType: "decimal.Decimal", isDecimal: true, isNumeric: true}
}

// descriptorFor classifies a T-SQL data type.
func descriptorFor(dt *ast.DataType) *typeInfo {
	if dt == nil {
		return opaqueType
	}
	switch strings.ToUpper(dt.Name) {
	case "TINYINT":
		return &typeInfo{goType: "uint8", isNumeric: true}
	case "SMALLINT":
		return &typeInfo{goType: "int16", isNumeric: true}
	case "INT", "INTEGER":
		return &typeInfo{goType: "int32", isNumeric: true}
	case "BIGINT":
		return &typeInfo{goType: "int64", isNumeric: true}
	case "REAL", "FLOAT":
		return &typeInfo{goType: "float64", isNumeric: true}
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return decimalType()
	case "CHAR", "VARCHAR", "TEXT", "NCHAR", "NVARCHAR", "NTEXT", "SYSNAME":
		return &typeInfo{goType: "string", isString: true}
	case "DATE", "TIME", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET":
		return &typeInfo{goType: "time.Time", isDateTime: true}
	case "BIT":
		return &typeInfo{goType: "bool", isBool: true}
	case "BINARY", "VARBINARY", "IMAGE":
		return &typeInfo{goType: "[]byte"}
	case "UNIQUEIDENTIFIER", "XML":
		return &typeInfo{goType: "string", isString: true}
	case "SQL_VARIANT":
		return opaqueType
	default:
		return opaqueType
	}
}

// goTypeFor maps a T-SQL data type to its Go spelling, registering imports.
func (e *emitter) goTypeFor(dt *ast.DataType) (string, error) {
	if dt == nil {
		return "", fmt.Errorf("nil data type")
	}
	ti := descriptorFor(dt)
	if ti == opaqueType && !strings.EqualFold(dt.Name, "SQL_VARIANT") {
		return "", fmt.Errorf("unsupported data type: %s", dt.Name)
	}
	switch ti.goType {
	case "decimal.Decimal":
		e.addImport("github.com/shopspring/decimal")
	case "time.Time":
		e.addImport("time")
	}
	return ti.goType, nil
}

// zeroValue is the NULL-to-zero lowering target for a slot type.
func (e *emitter) zeroValue(ti *typeInfo) string {
	if ti == nil {
		return "nil"
	}
	switch ti.goType {
	case "uint8", "int16", "int32", "int64", "int":
		return "0"
	case "float32", "float64":
		return "0.0"
	case "string":
		return `""`
	case "bool":
		return "false"
	case "time.Time":
		e.addImport("time")
		return "time.Time{}"
	case "decimal.Decimal":
		e.addImport("github.com/shopspring/decimal")
		return "decimal.Zero"
	default:
		return "nil"
	}
}

// zeroValueNamed is zeroValue keyed on a Go type name.
func (e *emitter) zeroValueNamed(goType string) string {
	switch goType {
	case "uint8", "int16", "int32", "int64", "int":
		return "0"
	case "float32", "float64":
		return "0.0"
	case "string":
		return `""`
	case "bool":
		return "false"
	case "time.Time":
		e.addImport("time")
		return "time.Time{}"
	case "decimal.Decimal":
		e.addImport("github.com/shopspring/decimal")
		return "decimal.Zero"
	default:
		return "nil"
	}
}

// widerNumeric picks the promotion target for mixed-integer arithmetic.
func widerNumeric(a, b string) string {
	rank := map[string]int{"uint8": 1, "int16": 2, "int32": 3, "int64": 4, "float64": 5}
	if rank[a] >= rank[b] {
		return a
	}
	return b
}

// goName converts a T-SQL identifier or @variable to a lower-camel Go
// identifier.
func goName(name string) string {
	name = strings.TrimPrefix(name, "@@")
	name = strings.TrimPrefix(name, "@")
	name = strings.TrimPrefix(name, "[")
	name = strings.TrimSuffix(name, "]")
	if name == "" {
		return name
	}

	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	// Always lower the first rune; locals and params stay lower-camel.
	return strings.ToLower(out[:1]) + out[1:]
}

// exportedName converts an identifier to an exported PascalCase Go name.
func exportedName(name string) string {
	name = strings.TrimPrefix(name, "#")
	name = strings.TrimPrefix(name, "#")
	name = strings.TrimPrefix(name, "@@")
	name = strings.TrimPrefix(name, "@")

	var b strings.Builder
	upperNext := true
	for _, r := range name {
		if r == '_' || r == '-' || r == ' ' || r == '.' || r == '[' || r == ']' {
			upperNext = true
			continue
		}
		if upperNext && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upperNext = false
		b.WriteRune(r)
	}
	return b.String()
}

// cleanProcName strips schema and usp_/sp_ style prefixes.
func cleanProcName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	for _, p := range []string{"usp_", "sp_", "proc_", "p_"} {
		if strings.HasPrefix(strings.ToLower(name), p) {
			name = name[len(p):]
			break
		}
	}
	return name
}

func singularize(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(lower, "ses"), strings.HasSuffix(lower, "xes"), strings.HasSuffix(lower, "zes"):
		return s[:len(s)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
		return s[:len(s)-1]
	}
	return s
}

func pluralize(s string) string {
	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") &&
		!strings.HasSuffix(lower, "us") && !strings.HasSuffix(lower, "is") {
		return s
	}
	if strings.HasSuffix(lower, "y") && len(s) > 1 {
		prev := lower[len(lower)-2]
		if prev != 'a' && prev != 'e' && prev != 'i' && prev != 'o' && prev != 'u' {
			return s[:len(s)-1] + "ies"
		}
	}
	if strings.HasSuffix(lower, "x") || strings.HasSuffix(lower, "z") ||
		strings.HasSuffix(lower, "ch") || strings.HasSuffix(lower, "sh") ||
		strings.HasSuffix(lower, "ss") {
		return s + "es"
	}
	return s + "s"
}

func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
