// Package sqlrt is the runtime companion for transpiled procedures. The
// transpiler emits calls into it for the pieces of T-SQL that have no direct
// Go equivalent: temp tables, the CATCH-block error logger, NEWID generation,
// and XML/JSON scalar helpers.
package sqlrt

import (
	"fmt"
	"strings"
	"sync"
)

// Column describes one column of a registered temp table.
type Column struct {
	Name     string
	Type     string // normalized T-SQL type name, e.g. "INT", "NVARCHAR"
	Length   int    // -1 for MAX
	Nullable bool
	Identity bool
	Seed     int64
	Step     int64
}

// Table is an in-memory temp table. Rows are positional; cell values carry
// whatever Go type the transpiled code inserted.
type Table struct {
	Name    string
	Columns []Column

	mu       sync.Mutex
	rows     [][]any
	identity int64
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Insert appends a row given as column-name/value pairs. Identity columns are
// assigned automatically when absent; the assigned value is returned.
func (t *Table) Insert(values map[string]any) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := make([]any, len(t.Columns))
	var assigned int64
	for i, c := range t.Columns {
		v, ok := values[c.Name]
		if !ok {
			// Case-insensitive second pass.
			for k, vv := range values {
				if strings.EqualFold(k, c.Name) {
					v, ok = vv, true
					break
				}
			}
		}
		if !ok && c.Identity {
			t.identity += c.Step
			v = t.identity + c.Seed - c.Step
			assigned = v.(int64)
			ok = true
		}
		if !ok && !c.Nullable {
			return 0, fmt.Errorf("temp table %s: column %s requires a value", t.Name, c.Name)
		}
		row[i] = v
	}
	t.rows = append(t.rows, row)
	return assigned, nil
}

// InsertRow appends a positional row.
func (t *Table) InsertRow(values []any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("temp table %s: expected %d values, got %d", t.Name, len(t.Columns), len(values))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	row := make([]any, len(values))
	copy(row, values)
	t.rows = append(t.rows, row)
	return nil
}

// Select returns the rows matching pred, in insertion order. A nil predicate
// matches everything.
func (t *Table) Select(pred func(row []any) bool) [][]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [][]any
	for _, r := range t.rows {
		if pred == nil || pred(r) {
			cp := make([]any, len(r))
			copy(cp, r)
			out = append(out, cp)
		}
	}
	return out
}

// Update applies set to every row matching pred and returns the count.
func (t *Table) Update(set map[string]any, pred func(row []any) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.rows {
		if pred != nil && !pred(r) {
			continue
		}
		for name, v := range set {
			if idx := t.ColumnIndex(name); idx >= 0 {
				r[idx] = v
			}
		}
		n++
	}
	return n
}

// Delete removes rows matching pred and returns the count.
func (t *Table) Delete(pred func(row []any) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var kept [][]any
	n := 0
	for _, r := range t.rows {
		if pred != nil && !pred(r) {
			kept = append(kept, r)
			continue
		}
		n++
	}
	t.rows = kept
	return n
}

// Truncate drops all rows but keeps the schema and identity counter reset.
func (t *Table) Truncate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	t.identity = 0
}

// RowCount returns the current number of rows.
func (t *Table) RowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// TempTables manages the temp tables of one procedure session. Transpiled
// CREATE TABLE #T statements register schemas here; DROP and TRUNCATE route
// to the matching methods.
type TempTables struct {
	mu     sync.Mutex
	tables map[string]*Table
}

// NewTempTables returns an empty manager.
func NewTempTables() *TempTables {
	return &TempTables{tables: make(map[string]*Table)}
}

func tempKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Create registers a temp table schema. Re-creating an existing name is an
// error, matching the source semantics.
func (m *TempTables) Create(name string, columns []Column) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tempKey(name)
	if _, exists := m.tables[key]; exists {
		return nil, fmt.Errorf("temp table %s already exists", name)
	}
	t := &Table{Name: name, Columns: columns}
	for i := range t.Columns {
		if t.Columns[i].Identity && t.Columns[i].Step == 0 {
			t.Columns[i].Step = 1
		}
		if t.Columns[i].Identity && t.Columns[i].Seed == 0 {
			t.Columns[i].Seed = 1
		}
	}
	m.tables[key] = t
	return t, nil
}

// Get returns a registered table.
func (m *TempTables) Get(name string) (*Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[tempKey(name)]
	return t, ok
}

// Exists reports whether name is registered. Backs OBJECT_ID('tempdb..#T')
// checks in transpiled code.
func (m *TempTables) Exists(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Drop removes a table.
func (m *TempTables) Drop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tempKey(name)
	if _, ok := m.tables[key]; !ok {
		return fmt.Errorf("temp table %s does not exist", name)
	}
	delete(m.tables, key)
	return nil
}

// Truncate clears a table's rows.
func (m *TempTables) Truncate(name string) error {
	t, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("temp table %s does not exist", name)
	}
	t.Truncate()
	return nil
}

// Clear drops every table; called at end of session.
func (m *TempTables) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = make(map[string]*Table)
}
