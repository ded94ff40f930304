// Package match computes the confidence-weighted mapping between a parsed
// proto catalog and an inventory of stored procedures. The RPC back-end
// consumes its output to decide which client method a statement becomes.
package match

import (
	"regexp"
	"strings"
)

// Procedure is the summary of one stored procedure the matcher scores
// against RPC methods.
type Procedure struct {
	Name       string
	Parameters []Parameter
	ResultSets []ResultSet
	RawSQL     string
}

// Parameter is one procedure parameter, name stored without the @ prefix.
type Parameter struct {
	Name         string
	SQLType      string
	GoType       string
	Output       bool
	HasDefault   bool
	DefaultValue string
	Position     int
}

// ResultSet is the column shape of one SELECT the procedure returns.
type ResultSet struct {
	FromTable string
	Columns   []Column
}

// Column is one result-set column.
type Column struct {
	Name   string
	Source string
}

var sqlGoTypes = map[string]string{
	"bigint":           "int64",
	"int":              "int32",
	"smallint":         "int16",
	"tinyint":          "uint8",
	"bit":              "bool",
	"decimal":          "decimal.Decimal",
	"numeric":          "decimal.Decimal",
	"money":            "decimal.Decimal",
	"smallmoney":       "decimal.Decimal",
	"float":            "float64",
	"real":             "float64",
	"datetime":         "time.Time",
	"datetime2":        "time.Time",
	"smalldatetime":    "time.Time",
	"date":             "time.Time",
	"time":             "time.Time",
	"datetimeoffset":   "time.Time",
	"char":             "string",
	"varchar":          "string",
	"nchar":            "string",
	"nvarchar":         "string",
	"text":             "string",
	"ntext":            "string",
	"binary":           "[]byte",
	"varbinary":        "[]byte",
	"image":            "[]byte",
	"uniqueidentifier": "string",
	"xml":              "string",
}

func sqlTypeToGo(sqlType string) string {
	base := strings.ToLower(sqlType)
	if i := strings.Index(base, "("); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)
	if g, ok := sqlGoTypes[base]; ok {
		return g
	}
	return "interface{}"
}

var (
	procSplitRe = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+ALTER\s+)?PROC(?:EDURE)?\b`)
	procNameRe  = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+ALTER\s+)?PROC(?:EDURE)?\s+(?:\[?\w+\]?\.)?\[?(\w+)\]?`)
	procAsRe    = regexp.MustCompile(`(?i)\bAS\s*\n|\bAS\s+BEGIN\b`)
	paramRe     = regexp.MustCompile(`(?i)@(\w+)\s+(\w+(?:\s*\([^)]+\))?)\s*(?:=\s*([^,\n@]+?))?\s*(OUTPUT|OUT)?\s*(?:,|$)`)
	selectRe    = regexp.MustCompile(`(?is)\bSELECT\s+(.*?)\s+FROM\s+(#?\w+)`)
	existsRe    = regexp.MustCompile(`(?is)\bEXISTS\s*\(\s*SELECT`)
)

// ExtractProcedures pulls procedure summaries out of a T-SQL batch. It is a
// lexical extractor: enough shape for matching, not a parse.
func ExtractProcedures(sql string) []*Procedure {
	var procs []*Procedure
	locs := procSplitRe.FindAllStringIndex(sql, -1)
	for i, loc := range locs {
		end := len(sql)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if p := extractOne(sql[loc[0]:end]); p != nil {
			procs = append(procs, p)
		}
	}
	return procs
}

func extractOne(sql string) *Procedure {
	m := procNameRe.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}
	p := &Procedure{Name: m[1], RawSQL: sql}
	p.Parameters = extractParams(sql)
	p.ResultSets = extractResultSets(sql)
	return p
}

func extractParams(sql string) []Parameter {
	asLoc := procAsRe.FindStringIndex(sql)
	if asLoc == nil {
		return nil
	}
	nameLoc := procNameRe.FindStringIndex(sql)
	if nameLoc == nil || nameLoc[1] > asLoc[0] {
		return nil
	}
	block := sql[nameLoc[1]:asLoc[0]]

	var params []Parameter
	for i, m := range paramRe.FindAllStringSubmatch(block, -1) {
		name := m[1]
		sqlType := strings.TrimSpace(m[2])
		def := strings.TrimSpace(m[3])
		params = append(params, Parameter{
			Name:         name,
			SQLType:      sqlType,
			GoType:       sqlTypeToGo(sqlType),
			Output:       m[4] != "",
			HasDefault:   def != "",
			DefaultValue: def,
			Position:     i,
		})
	}
	return params
}

func extractResultSets(sql string) []ResultSet {
	var sets []ResultSet

	existsLocs := existsRe.FindAllStringIndex(sql, -1)
	inExists := func(pos int) bool {
		for _, e := range existsLocs {
			if pos > e[0] && pos < e[1]+200 {
				return true
			}
		}
		return false
	}

	for _, idx := range selectRe.FindAllStringSubmatchIndex(sql, -1) {
		if inExists(idx[0]) {
			continue
		}
		cols := sql[idx[2]:idx[3]]
		table := sql[idx[4]:idx[5]]

		trimmed := strings.TrimSpace(cols)
		if strings.HasPrefix(trimmed, "@") || trimmed == "1" || trimmed == "*" {
			continue
		}
		if strings.Contains(strings.ToUpper(cols), "INTO") {
			continue
		}

		rs := ResultSet{FromTable: table, Columns: parseColumns(cols)}
		if len(rs.Columns) > 0 {
			sets = append(sets, rs)
		}
	}
	return sets
}

func parseColumns(list string) []Column {
	var cols []Column
	for _, raw := range splitTopLevel(list) {
		c := strings.TrimSpace(raw)
		if c == "" {
			continue
		}
		name := c
		upper := strings.ToUpper(c)
		if i := strings.LastIndex(upper, " AS "); i >= 0 {
			name = strings.TrimSpace(c[i+4:])
		} else if i := strings.LastIndex(c, "."); i >= 0 && !strings.Contains(c, "(") {
			name = c[i+1:]
		}
		name = strings.Trim(name, "[]")
		if name == "" || strings.ContainsAny(name, "()'") {
			continue
		}
		cols = append(cols, Column{Name: name, Source: c})
	}
	return cols
}

// splitTopLevel splits a column list on commas that are outside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
