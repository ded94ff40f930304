package dialect

import (
	"fmt"
	"strings"
)

// UpsertStyle describes how a dialect expresses an upsert.
type UpsertStyle int

const (
	UpsertMerge          UpsertStyle = iota // native MERGE text passes through
	UpsertOnConflict                        // INSERT ... ON CONFLICT (keys) DO UPDATE (PostgreSQL 9.5+, SQLite 3.24+)
	UpsertOnDuplicateKey                    // INSERT ... ON DUPLICATE KEY UPDATE (MySQL)
)

// RewriteMerge lowers a serialized MERGE statement to the dialect's upsert
// form. The canonical procedure shape is supported:
//
//	MERGE [INTO] Target [AS t]
//	USING (SELECT expr AS Col, ...) AS s
//	ON t.Key = s.Key [AND ...]
//	[WHEN MATCHED THEN UPDATE SET t.Col = s.Col, ...]
//	[WHEN NOT MATCHED THEN INSERT (cols) VALUES (vals)]
//
// Source-alias references are resolved back to the USING expressions so the
// rewritten text needs no MERGE-specific row source. Anything outside this
// shape (table sources, WHEN NOT MATCHED BY SOURCE, WHEN ... DELETE) returns
// an error for the caller to surface.
func RewriteMerge(sql string, style UpsertStyle) (string, error) {
	if style == UpsertMerge {
		return sql, nil
	}
	p, err := parseMerge(sql)
	if err != nil {
		return "", err
	}
	switch style {
	case UpsertOnConflict:
		return p.onConflict()
	case UpsertOnDuplicateKey:
		return p.onDuplicateKey()
	default:
		return "", fmt.Errorf("MERGE has no upsert rewrite for this dialect")
	}
}

type mergeParts struct {
	target     string
	keyCols    []string
	whereEq    [][2]string // key column, resolved source value
	updateSet  [][2]string // target column, resolved value
	insertCols []string
	insertVals []string
}

func parseMerge(sql string) (*mergeParts, error) {
	src := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if !strings.HasPrefix(strings.ToUpper(src), "MERGE") {
		return nil, fmt.Errorf("not a MERGE statement")
	}
	rest := strings.TrimSpace(src[len("MERGE"):])
	if strings.HasPrefix(strings.ToUpper(rest), "INTO ") {
		rest = strings.TrimSpace(rest[len("INTO"):])
	}

	usingIdx := indexWord(rest, "USING")
	if usingIdx < 0 {
		return nil, fmt.Errorf("MERGE without a USING clause")
	}
	p := &mergeParts{}
	targetAlias := ""
	switch fields := strings.Fields(rest[:usingIdx]); len(fields) {
	case 1:
		p.target = fields[0]
	case 2:
		p.target = fields[0]
		targetAlias = fields[1]
	case 3:
		if !strings.EqualFold(fields[1], "AS") {
			return nil, fmt.Errorf("unrecognized MERGE target clause")
		}
		p.target = fields[0]
		targetAlias = fields[2]
	default:
		return nil, fmt.Errorf("unrecognized MERGE target clause")
	}

	rest = strings.TrimSpace(rest[usingIdx+len("USING"):])
	if !strings.HasPrefix(rest, "(") {
		return nil, fmt.Errorf("only MERGE USING (SELECT ...) sources are rewritten")
	}
	inner, tail, ok := balancedParen(rest)
	if !ok {
		return nil, fmt.Errorf("unbalanced MERGE source parentheses")
	}
	aliasExprs, err := parseSourceSelect(inner)
	if err != nil {
		return nil, err
	}

	tail = strings.TrimSpace(tail)
	if strings.HasPrefix(strings.ToUpper(tail), "AS ") {
		tail = strings.TrimSpace(tail[2:])
	}
	fields := strings.Fields(tail)
	if len(fields) == 0 {
		return nil, fmt.Errorf("MERGE source needs an alias")
	}
	sourceAlias := fields[0]

	onIdx := indexWord(tail, "ON")
	if onIdx < 0 {
		return nil, fmt.Errorf("MERGE without an ON condition")
	}
	tail = tail[onIdx+len("ON"):]

	onClause := tail
	whenText := ""
	if whenIdx := indexWord(tail, "WHEN"); whenIdx >= 0 {
		onClause = tail[:whenIdx]
		whenText = strings.TrimSpace(tail[whenIdx:])
	}

	resolve := func(ref string) string {
		ref = strings.TrimSpace(ref)
		if i := strings.Index(ref, "."); i > 0 && !strings.ContainsAny(ref[:i], "('@ ") {
			qual, name := ref[:i], ref[i+1:]
			if strings.EqualFold(qual, sourceAlias) {
				if expr, ok := aliasExprs[strings.ToLower(name)]; ok {
					return expr
				}
				return name
			}
			if strings.EqualFold(qual, targetAlias) {
				return name
			}
		}
		return ref
	}

	for _, pred := range splitTopWord(onClause, "AND") {
		lhs, rhs, ok := splitEq(pred)
		if !ok {
			return nil, fmt.Errorf("MERGE ON supports only column equality predicates")
		}
		keyCol, srcRef := lhs, rhs
		if refQualifier(lhs, sourceAlias) {
			keyCol, srcRef = rhs, lhs
		}
		keyCol = stripQualifier(keyCol)
		p.keyCols = append(p.keyCols, keyCol)
		p.whereEq = append(p.whereEq, [2]string{keyCol, resolve(srcRef)})
	}
	if len(p.keyCols) == 0 {
		return nil, fmt.Errorf("MERGE ON condition has no key columns")
	}

	for _, section := range splitTopWord(whenText, "WHEN") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if setText, ok := consumeKeywords(section, "MATCHED", "THEN", "UPDATE", "SET"); ok {
			for _, item := range splitTopComma(setText) {
				lhs, rhs, ok := splitEq(item)
				if !ok {
					return nil, fmt.Errorf("unrecognized MERGE SET assignment %q", strings.TrimSpace(item))
				}
				p.updateSet = append(p.updateSet, [2]string{stripQualifier(lhs), resolve(rhs)})
			}
			continue
		}
		if _, ok := consumeKeywords(section, "NOT", "MATCHED", "BY", "SOURCE"); ok {
			return nil, fmt.Errorf("WHEN NOT MATCHED BY SOURCE has no upsert equivalent")
		}
		if rest, ok := consumeKeywords(section, "NOT", "MATCHED"); ok {
			insIdx := indexWord(rest, "INSERT")
			if insIdx < 0 {
				return nil, fmt.Errorf("WHEN NOT MATCHED supports only THEN INSERT")
			}
			after := strings.TrimSpace(rest[insIdx+len("INSERT"):])
			cols, after, ok := balancedParen(after)
			if !ok {
				return nil, fmt.Errorf("MERGE INSERT needs an explicit column list")
			}
			valIdx := indexWord(after, "VALUES")
			if valIdx < 0 {
				return nil, fmt.Errorf("MERGE INSERT needs a VALUES list")
			}
			vals, _, ok := balancedParen(strings.TrimSpace(after[valIdx+len("VALUES"):]))
			if !ok {
				return nil, fmt.Errorf("unbalanced MERGE VALUES parentheses")
			}
			for _, c := range splitTopComma(cols) {
				p.insertCols = append(p.insertCols, stripQualifier(c))
			}
			for _, v := range splitTopComma(vals) {
				p.insertVals = append(p.insertVals, resolve(v))
			}
			continue
		}
		if _, ok := consumeKeywords(section, "MATCHED"); ok {
			return nil, fmt.Errorf("WHEN MATCHED supports only THEN UPDATE SET")
		}
		return nil, fmt.Errorf("unrecognized MERGE WHEN clause")
	}

	if len(p.updateSet) == 0 && len(p.insertCols) == 0 {
		return nil, fmt.Errorf("MERGE without WHEN clauses has nothing to rewrite")
	}
	return p, nil
}

func (p *mergeParts) onConflict() (string, error) {
	if len(p.insertCols) == 0 {
		return p.plainUpdate()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		p.target, strings.Join(p.insertCols, ", "), strings.Join(p.insertVals, ", "),
		strings.Join(p.keyCols, ", "))
	if len(p.updateSet) == 0 {
		b.WriteString("DO NOTHING")
		return b.String(), nil
	}
	b.WriteString("DO UPDATE SET " + joinAssignments(p.updateSet))
	return b.String(), nil
}

func (p *mergeParts) onDuplicateKey() (string, error) {
	if len(p.insertCols) == 0 {
		return p.plainUpdate()
	}
	if len(p.updateSet) == 0 {
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)",
			p.target, strings.Join(p.insertCols, ", "), strings.Join(p.insertVals, ", ")), nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		p.target, strings.Join(p.insertCols, ", "), strings.Join(p.insertVals, ", "),
		joinAssignments(p.updateSet)), nil
}

// plainUpdate covers an update-only MERGE: no insert arm, so the rewrite is
// an ordinary UPDATE keyed on the ON columns.
func (p *mergeParts) plainUpdate() (string, error) {
	if len(p.updateSet) == 0 {
		return "", fmt.Errorf("MERGE has neither an update nor an insert arm")
	}
	var where []string
	for _, kv := range p.whereEq {
		where = append(where, kv[0]+" = "+kv[1])
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		p.target, joinAssignments(p.updateSet), strings.Join(where, " AND ")), nil
}

func joinAssignments(set [][2]string) string {
	var parts []string
	for _, kv := range set {
		parts = append(parts, kv[0]+" = "+kv[1])
	}
	return strings.Join(parts, ", ")
}

// parseSourceSelect maps each aliased column of the USING (SELECT ...) row
// source to its expression.
func parseSourceSelect(inner string) (map[string]string, error) {
	inner = strings.TrimSpace(inner)
	if !strings.HasPrefix(strings.ToUpper(inner), "SELECT") {
		return nil, fmt.Errorf("only MERGE USING (SELECT ...) sources are rewritten")
	}
	list := strings.TrimSpace(inner[len("SELECT"):])
	if fromIdx := indexWord(list, "FROM"); fromIdx >= 0 {
		return nil, fmt.Errorf("MERGE USING (SELECT ... FROM ...) sources are not rewritten")
	}
	out := make(map[string]string)
	for _, item := range splitTopComma(list) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		asIdx := lastIndexWord(item, "AS")
		if asIdx < 0 {
			return nil, fmt.Errorf("MERGE source column %q needs an AS alias", item)
		}
		alias := strings.TrimSpace(item[asIdx+len("AS"):])
		expr := strings.TrimSpace(item[:asIdx])
		if alias == "" || expr == "" {
			return nil, fmt.Errorf("MERGE source column %q needs an AS alias", item)
		}
		out[strings.ToLower(alias)] = expr
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("MERGE source selects no columns")
	}
	return out, nil
}

func splitEq(s string) (lhs, rhs string, ok bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '=':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return "", "", false
}

func refQualifier(ref, alias string) bool {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, "."); i > 0 {
		return strings.EqualFold(ref[:i], alias)
	}
	return false
}

func stripQualifier(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, "."); i >= 0 && !strings.ContainsAny(ref[:i], "(' ") {
		return ref[i+1:]
	}
	return ref
}

// indexWord finds the first whole-word, top-level (outside parentheses)
// occurrence of the keyword, case-insensitive.
func indexWord(s, word string) int {
	upper := strings.ToUpper(s)
	word = strings.ToUpper(word)
	depth := 0
	for i := 0; i+len(word) <= len(upper); i++ {
		switch upper[i] {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 || upper[i:i+len(word)] != word {
			continue
		}
		before := i == 0 || !isIdentByte(upper[i-1])
		after := i+len(word) == len(upper) || !isIdentByte(upper[i+len(word)])
		if before && after {
			return i
		}
	}
	return -1
}

func lastIndexWord(s, word string) int {
	idx := -1
	for off := 0; ; {
		i := indexWord(s[off:], word)
		if i < 0 {
			return idx
		}
		idx = off + i
		off = idx + len(word)
	}
}

// splitTopWord splits on whole-word occurrences of the keyword at paren
// depth zero, dropping empty leading pieces.
func splitTopWord(s, word string) []string {
	var parts []string
	for {
		i := indexWord(s, word)
		if i < 0 {
			if t := strings.TrimSpace(s); t != "" {
				parts = append(parts, t)
			}
			return parts
		}
		if t := strings.TrimSpace(s[:i]); t != "" {
			parts = append(parts, t)
		}
		s = s[i+len(word):]
	}
}

func splitTopComma(s string) []string {
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
	return append(parts, s[start:])
}

// balancedParen consumes a leading parenthesized group, returning its
// content and the remainder.
func balancedParen(s string) (inner, rest string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return "", "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[1:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// consumeKeywords strips the given leading keywords, tolerating arbitrary
// whitespace between them, and returns what follows.
func consumeKeywords(s string, words ...string) (string, bool) {
	for _, w := range words {
		s = strings.TrimSpace(s)
		if len(s) < len(w) || !strings.EqualFold(s[:len(w)], w) {
			return "", false
		}
		if len(s) > len(w) && isIdentByte(s[len(w)]) {
			return "", false
		}
		s = s[len(w):]
	}
	return strings.TrimSpace(s), true
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
