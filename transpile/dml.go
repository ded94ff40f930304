package transpile

import (
	"fmt"
	"strings"

	"github.com/ha1tch/tsqlparser/ast"

	"github.com/sqlport/sqlport/dialect"
)

// storeHandle is the handle DML runs against: the transaction while one is
// open, otherwise the configured store variable.
func (e *emitter) storeHandle() string {
	if e.inTransaction {
		return "tx"
	}
	return e.cfg.StoreVar
}

func argList(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return ", " + strings.Join(args, ", ")
}

// serializeQuery turns serialized T-SQL into dialect SQL: hints stripped,
// @variables replaced by placeholders (collecting the Go identifiers), and
// dialect scalar rewrites applied.
func (e *emitter) serializeQuery(sql string) (string, []string) {
	d := dialect.ForName(e.cfg.Dialect)
	sql = dialect.StripTableHints(sql)

	var out strings.Builder
	var args []string
	n := 1
	for i := 0; i < len(sql); {
		c := sql[i]
		if c == '@' && i+1 < len(sql) {
			if sql[i+1] == '@' {
				// System variables pass through untouched.
				j := i + 2
				for j < len(sql) && isWordByte(sql[j]) {
					j++
				}
				out.WriteString(sql[i:j])
				i = j
				continue
			}
			if isWordByte(sql[i+1]) {
				j := i + 1
				for j < len(sql) && isWordByte(sql[j]) {
					j++
				}
				name := sql[i+1 : j]
				out.WriteString(d.Placeholder(n))
				n++
				args = append(args, goName(name))
				e.scopes.markRead(name)
				i = j
				continue
			}
		}
		out.WriteByte(c)
		i++
	}
	return d.Normalize(out.String()), args
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// effectiveBackend applies the temp-table fallback rule for one statement.
func (e *emitter) effectiveBackend(table string) Backend {
	if !isTempTable(table) {
		return e.cfg.Backend
	}
	e.recordTempTable(table)
	if e.cfg.Backend == BackendRPC || e.cfg.Backend == BackendMock {
		msg := fmt.Sprintf("temp table %s cannot go through the %s back-end; using %s", table, e.cfg.Backend, e.cfg.Fallback)
		e.res.TempTableWarnings = append(e.res.TempTableWarnings, msg)
		if !e.cfg.FallbackExplicit {
			e.res.warn(DiagTempTableFallback, "%s", msg)
		}
		return e.cfg.Fallback
	}
	return e.cfg.Backend
}

func isTempTable(name string) bool {
	return strings.HasPrefix(name, "#") || strings.HasPrefix(name, "@")
}

func (e *emitter) recordTempTable(name string) {
	for _, t := range e.res.TempTables {
		if t == name {
			return
		}
	}
	e.res.TempTables = append(e.res.TempTables, name)
}

// assignOp picks := or = for the rows/result/err helper variables.
func (e *emitter) assignOp(names ...string) string {
	all := true
	for _, n := range names {
		if !e.scopes.declared(n) {
			all = false
		}
	}
	for _, n := range names {
		e.scopes.defineHelper(n)
	}
	if all {
		return "="
	}
	return ":="
}

// originalComment prepends the source SQL under standard/verbose annotation.
func (e *emitter) originalComment(out *strings.Builder, stmt fmt.Stringer) {
	if !e.cfg.emitOriginal() {
		return
	}
	text := stmt.String()
	if len(text) > 100 {
		text = text[:97] + "..."
	}
	fmt.Fprintf(out, "// Original: %s\n%s", text, e.pad())
}

// ---------------------------------------------------------------------------
// SELECT

func (e *emitter) lowerSelect(s *ast.SelectStatement) (string, error) {
	e.hasDML = true
	table := mainTable(s)
	switch e.effectiveBackend(table) {
	case BackendRPC:
		return e.lowerSelectRPC(s, table)
	case BackendMock:
		return e.lowerSelectMock(s, table)
	case BackendInline:
		return e.lowerSelectInline(s)
	default:
		return e.lowerSelectSQL(s)
	}
}

func (e *emitter) lowerSelectSQL(s *ast.SelectStatement) (string, error) {
	// SELECT @a = col switches to the single-row scan form.
	if assigns := selectAssignments(s); len(assigns) > 0 {
		return e.lowerSelectIntoVars(s, assigns)
	}

	query, args := e.serializeQuery(s.String())
	columns := e.selectColumns(s)
	decls, targets := e.scanTargets(columns)

	var out strings.Builder
	e.originalComment(&out, s)

	if decls != "" {
		out.WriteString(decls + "\n" + e.pad())
	}

	if e.singleRowSelect(s) {
		fmt.Fprintf(&out, "row := %s.QueryRowContext(%s, %q%s)\n", e.storeHandle(), e.cfg.ContextArg, query, argList(args))
		fmt.Fprintf(&out, "%sif err := row.Scan(%s); err != nil {\n", e.pad(), targets)
		out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
		out.WriteString(e.pad() + "}")
		return out.String(), nil
	}

	op := e.assignOp("rows", "err")
	fmt.Fprintf(&out, "rows, err %s %s.QueryContext(%s, %q%s)\n", op, e.storeHandle(), e.cfg.ContextArg, query, argList(args))
	out.WriteString(e.pad() + "if err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")
	out.WriteString(e.pad() + "defer rows.Close()\n")
	out.WriteString(e.pad() + "for rows.Next() {\n")
	fmt.Fprintf(&out, "%s\tif err := rows.Scan(%s); err != nil {\n", e.pad(), targets)
	out.WriteString(e.pad() + "\t\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "\t}\n")
	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

func (e *emitter) lowerSelectIntoVars(s *ast.SelectStatement, assigns []varAssign) (string, error) {
	e.addImport("database/sql")

	query, args := e.serializeQuery(selectWithoutAssignments(s))

	var targets []string
	for _, a := range assigns {
		targets = append(targets, "&"+a.varName)
	}

	var out strings.Builder
	e.originalComment(&out, s)
	op := e.assignOp("err")
	fmt.Fprintf(&out, "err %s %s.QueryRowContext(%s, %q%s).Scan(%s)\n",
		op, e.storeHandle(), e.cfg.ContextArg, query, argList(args), strings.Join(targets, ", "))
	out.WriteString(e.pad() + "if err != nil && err != sql.ErrNoRows {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

// selectWithoutAssignments re-serializes a SELECT with "@v =" prefixes
// removed; the Scan does the assigning.
func selectWithoutAssignments(s *ast.SelectStatement) string {
	var cols []string
	for _, item := range s.Columns {
		if item.Variable != nil && item.Expression != nil {
			cols = append(cols, item.Expression.String())
		} else {
			cols = append(cols, item.String())
		}
	}
	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(cols, ", "))
	if s.From != nil {
		var tables []string
		for _, t := range s.From.Tables {
			tables = append(tables, t.String())
		}
		b.WriteString(" FROM " + strings.Join(tables, ", "))
	}
	if s.Where != nil {
		b.WriteString(" WHERE " + s.Where.String())
	}
	return b.String()
}

func (e *emitter) lowerSelectInline(s *ast.SelectStatement) (string, error) {
	query, args := e.serializeQuery(s.String())
	var out strings.Builder
	fmt.Fprintf(&out, "query := %q\n", query)
	out.WriteString(e.pad() + "args := []interface{}{" + strings.Join(args, ", ") + "}\n")
	out.WriteString(e.pad() + "_ = query\n")
	out.WriteString(e.pad() + "_ = args")
	return out.String(), nil
}

// ---------------------------------------------------------------------------
// INSERT / UPDATE / DELETE / MERGE

func (e *emitter) lowerInsert(s *ast.InsertStatement) (string, error) {
	e.hasDML = true
	table := tableOf(s.Table)
	switch e.effectiveBackend(table) {
	case BackendRPC:
		return e.lowerInsertRPC(s, table)
	case BackendMock:
		return e.lowerWriteMock("Create", table, e.insertValues(s), nil)
	default:
		return e.lowerInsertSQL(s)
	}
}

func (e *emitter) lowerInsertSQL(s *ast.InsertStatement) (string, error) {
	query, args := e.serializeQuery(s.String())

	var out strings.Builder
	e.originalComment(&out, s)

	d := dialect.ForName(e.cfg.Dialect)
	if s.Output != nil && d.SupportsReturning() {
		if e.cfg.emitTODOs() {
			out.WriteString("// TODO: OUTPUT carried over as RETURNING; verify the column list\n" + e.pad())
		}
		fmt.Fprintf(&out, "row := %s.QueryRowContext(%s, %q%s)\n", e.storeHandle(), e.cfg.ContextArg, query, argList(args))
		outputVars := insertOutputTargets(s)
		scan := strings.Join(outputVars, ", ")
		if scan == "" {
			scan = "new(interface{})"
		}
		fmt.Fprintf(&out, "%sif err := row.Scan(%s); err != nil {\n", e.pad(), scan)
		out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
		out.WriteString(e.pad() + "}")
		return out.String(), nil
	}

	op := e.assignOp("result", "err")
	fmt.Fprintf(&out, "result, err %s %s.ExecContext(%s, %q%s)\n", op, e.storeHandle(), e.cfg.ContextArg, query, argList(args))
	out.WriteString(e.pad() + "if err != nil {\n")
	if e.inCatch {
		out.WriteString(e.pad() + "\t_ = err // logging failed inside the error handler\n")
	} else {
		out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	}
	out.WriteString(e.pad() + "}\n")
	e.emitResultCapture(&out)
	return out.String(), nil
}

// emitResultCapture captures RowsAffected when the unit reads @@ROWCOUNT.
func (e *emitter) emitResultCapture(out *strings.Builder) {
	if e.usesRowCount {
		out.WriteString(e.pad() + "if ra, raErr := result.RowsAffected(); raErr == nil { rowsAffected = int32(ra) }")
		return
	}
	out.WriteString(e.pad() + "_ = result")
}

func insertOutputTargets(s *ast.InsertStatement) []string {
	var targets []string
	if s.Output == nil || s.Output.Columns == nil {
		return targets
	}
	for _, col := range s.Output.Columns {
		name := ""
		if qid, ok := col.Expression.(*ast.QualifiedIdentifier); ok && len(qid.Parts) >= 2 {
			name = qid.Parts[len(qid.Parts)-1].Value
		} else if id, ok := col.Expression.(*ast.Identifier); ok {
			name = id.Value
		}
		if name != "" {
			targets = append(targets, "&"+goName(name))
		}
	}
	return targets
}

func (e *emitter) lowerUpdate(s *ast.UpdateStatement) (string, error) {
	e.hasDML = true
	table := tableOf(s.Table)
	if s.Where == nil {
		e.res.warn(DiagUpdateWithoutWhere, "UPDATE %s has no WHERE clause", table)
	}
	switch e.effectiveBackend(table) {
	case BackendRPC:
		return e.lowerUpdateRPC(s, table)
	case BackendMock:
		return e.lowerWriteMock("Update", table, e.updateSetValues(s), whereFieldsOf(s.Where))
	default:
		return e.lowerExecSQL(s, "UPDATE")
	}
}

func (e *emitter) lowerDelete(s *ast.DeleteStatement) (string, error) {
	e.hasDML = true
	table := tableOf(s.Table)
	if s.Where == nil {
		e.res.warn(DiagDeleteWithoutWhere, "DELETE from %s has no WHERE clause", table)
	}
	switch e.effectiveBackend(table) {
	case BackendRPC:
		return e.lowerDeleteRPC(s, table)
	case BackendMock:
		return e.lowerWriteMock("Delete", table, nil, whereFieldsOf(s.Where))
	default:
		return e.lowerExecSQL(s, "DELETE")
	}
}

// lowerMerge upserts through the dialect: native MERGE text for tsql/ansi,
// INSERT ... ON CONFLICT for postgres/sqlite, ON DUPLICATE KEY for mysql.
// Shapes the rewriter cannot express come back as a structured error.
func (e *emitter) lowerMerge(s *ast.MergeStatement) (string, error) {
	e.hasDML = true
	table := tableOf(s.Target)
	backend := e.effectiveBackend(table)
	if backend == BackendRPC || backend == BackendMock {
		return "", &UnsupportedStatementError{
			Kind: "*ast.MergeStatement",
			Hint: "MERGE has no RPC equivalent; run it through the sql back-end or split into update+insert",
		}
	}

	d := dialect.ForName(e.cfg.Dialect)
	text := dialect.StripTableHints(s.String())
	if d.Upsert() != dialect.UpsertMerge {
		rewritten, err := dialect.RewriteMerge(text, d.Upsert())
		if err != nil {
			return "", &UnsupportedStatementError{
				Kind: "*ast.MergeStatement",
				Hint: err.Error() + "; split the MERGE into UPDATE + INSERT",
			}
		}
		text = rewritten
	}
	return e.lowerExecText(s, text)
}

// lowerExecSQL is the shared exec-call path for write statements.
func (e *emitter) lowerExecSQL(stmt fmt.Stringer, _ string) (string, error) {
	return e.lowerExecText(stmt, stmt.String())
}

// lowerExecText emits the ExecContext glue for already-shaped SQL text.
func (e *emitter) lowerExecText(stmt fmt.Stringer, text string) (string, error) {
	query, args := e.serializeQuery(text)

	var out strings.Builder
	e.originalComment(&out, stmt)
	op := e.assignOp("result", "err")
	fmt.Fprintf(&out, "result, err %s %s.ExecContext(%s, %q%s)\n", op, e.storeHandle(), e.cfg.ContextArg, query, argList(args))
	out.WriteString(e.pad() + "if err != nil {\n")
	if e.inCatch {
		out.WriteString(e.pad() + "\t_ = err // already in the error handler\n")
	} else {
		out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	}
	out.WriteString(e.pad() + "}\n")
	e.emitResultCapture(&out)
	return out.String(), nil
}

// ---------------------------------------------------------------------------
// EXEC

func (e *emitter) lowerExec(s *ast.ExecStatement) (string, error) {
	// EXEC(<string>) cannot be analyzed; warn and emit nothing executable.
	if s.DynamicSQL != nil {
		e.res.warn(DiagDynamicSQL, "EXEC of a dynamic SQL string cannot be analyzed; the call site is a no-op")
		return "// EXEC(<dynamic sql>): not statically analyzable, provide a hand-written stub", nil
	}

	e.hasDML = true
	procName := ""
	if s.Procedure != nil {
		procName = s.Procedure.String()
	}
	procName = cleanProcName(procName)

	if e.cfg.Backend == BackendRPC {
		if mapping, ok := e.procMapping(procName); ok {
			return e.lowerExecRPC(s, procName, mapping)
		}
		if e.cfg.ProtoPackage != "" || len(e.cfg.TableToService) > 0 {
			return e.lowerExecRPCInferred(s, procName)
		}
	}

	return e.lowerExecCall(s, procName)
}

// procMapping resolves an explicit procedure -> Service.Method override,
// tolerating usp_/sp_ prefix differences.
func (e *emitter) procMapping(procName string) (string, bool) {
	if len(e.cfg.ProcMappings) == 0 {
		return "", false
	}
	if m, ok := e.cfg.ProcMappings[procName]; ok {
		return m, true
	}
	want := strings.ToLower(cleanProcName(procName))
	for key, m := range e.cfg.ProcMappings {
		if strings.ToLower(cleanProcName(key)) == want {
			return m, true
		}
	}
	return "", false
}

// lowerExecCall emits a plain Go call for EXEC proc, wiring OUTPUT params to
// assignment targets.
func (e *emitter) lowerExecCall(s *ast.ExecStatement, procName string) (string, error) {
	funcName := exportedName(procName)

	var out strings.Builder
	fmt.Fprintf(&out, "// EXEC %s\n%s", procName, e.pad())

	var outputVars, callArgs []string
	for _, p := range s.Parameters {
		if p.Output {
			if v, ok := p.Value.(*ast.Variable); ok {
				outputVars = append(outputVars, goName(v.Name))
			}
			continue
		}
		arg, err := e.lowerExpr(p.Value)
		if err != nil {
			return "", err
		}
		callArgs = append(callArgs, arg)
	}

	if s.ReturnVariable != nil {
		resultVar := goName(s.ReturnVariable.Value)
		fmt.Fprintf(&out, "%s = %s(%s)", resultVar, funcName, strings.Join(callArgs, ", "))
		return out.String(), nil
	}

	if len(outputVars) > 0 {
		out.WriteString(strings.Join(outputVars, ", ") + " = ")
	}
	fmt.Fprintf(&out, "%s(%s)", funcName, strings.Join(callArgs, ", "))
	return out.String(), nil
}

// ---------------------------------------------------------------------------
// WITH (CTE)

func (e *emitter) lowerWith(s *ast.WithStatement) (string, error) {
	e.hasDML = true

	if e.cfg.Backend == BackendRPC || e.cfg.Backend == BackendMock {
		return "", &UnsupportedStatementError{
			Kind: "*ast.WithStatement",
			Hint: "CTEs are only lowered by the sql back-end; the query cannot be decomposed into RPC calls",
		}
	}

	names := make([]string, 0, len(s.CTEs))
	for _, cte := range s.CTEs {
		if cte.Name != nil {
			names = append(names, cte.Name.Value)
		}
	}
	header := fmt.Sprintf("// WITH %s\n", strings.Join(names, ", "))

	query, args := e.serializeQuery(s.String())

	switch inner := s.Query.(type) {
	case *ast.SelectStatement:
		if assigns := selectAssignments(inner); len(assigns) > 0 {
			return header + e.pad() + e.cteSelectIntoVars(assigns, query, args), nil
		}
		columns := e.selectColumns(inner)
		decls, targets := e.scanTargets(columns)

		var out strings.Builder
		out.WriteString(header + e.pad())
		if decls != "" {
			out.WriteString(decls + "\n" + e.pad())
		}
		op := e.assignOp("rows", "err")
		fmt.Fprintf(&out, "rows, err %s %s.QueryContext(%s, %q%s)\n", op, e.storeHandle(), e.cfg.ContextArg, query, argList(args))
		out.WriteString(e.pad() + "if err != nil {\n")
		out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
		out.WriteString(e.pad() + "}\n")
		out.WriteString(e.pad() + "defer rows.Close()\n")
		out.WriteString(e.pad() + "for rows.Next() {\n")
		fmt.Fprintf(&out, "%s\tif err := rows.Scan(%s); err != nil {\n", e.pad(), targets)
		out.WriteString(e.pad() + "\t\t" + e.errorReturn() + "\n")
		out.WriteString(e.pad() + "\t}\n")
		out.WriteString(e.pad() + "}")
		return out.String(), nil

	case *ast.InsertStatement, *ast.UpdateStatement, *ast.DeleteStatement:
		var out strings.Builder
		out.WriteString(header + e.pad())
		op := e.assignOp("result", "err")
		fmt.Fprintf(&out, "result, err %s %s.ExecContext(%s, %q%s)\n", op, e.storeHandle(), e.cfg.ContextArg, query, argList(args))
		out.WriteString(e.pad() + "if err != nil {\n")
		out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
		out.WriteString(e.pad() + "}\n")
		e.emitResultCapture(&out)
		return out.String(), nil

	default:
		return "", &UnsupportedStatementError{
			Kind: fmt.Sprintf("%T under WITH", s.Query),
			Hint: "only SELECT/INSERT/UPDATE/DELETE CTE bodies are lowered",
		}
	}
}

func (e *emitter) cteSelectIntoVars(assigns []varAssign, query string, args []string) string {
	e.addImport("database/sql")
	var targets []string
	for _, a := range assigns {
		targets = append(targets, "&"+a.varName)
	}
	var out strings.Builder
	fmt.Fprintf(&out, "if err := %s.QueryRowContext(%s, %q%s).Scan(%s); err != nil {\n",
		e.storeHandle(), e.cfg.ContextArg, query, argList(args), strings.Join(targets, ", "))
	out.WriteString(e.pad() + "\tif err != sql.ErrNoRows {\n")
	out.WriteString(e.pad() + "\t\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "\t}\n")
	out.WriteString(e.pad() + "}")
	return out.String()
}

// ---------------------------------------------------------------------------
// Subquery and EXISTS expressions

func (e *emitter) lowerSubqueryExpr(subq *ast.SubqueryExpression) (string, error) {
	sql := subq.Subquery.String()

	// FOR XML in a CATCH block: rebuild the fragment in-process instead of
	// querying a database that may be the failure source.
	if e.inCatch && strings.Contains(strings.ToUpper(sql), "FOR XML") {
		return e.lowerCatchXML(subq.Subquery)
	}

	e.hasDML = true
	query, args := e.serializeQuery(sql)
	return fmt.Sprintf("func() interface{} {\n"+
		"\t\tvar result interface{}\n"+
		"\t\t_ = %s.QueryRowContext(%s, %q%s).Scan(&result)\n"+
		"\t\treturn result\n"+
		"\t}()", e.storeHandle(), e.cfg.ContextArg, query, argList(args)), nil
}

// lowerCatchXML renders SELECT ... FOR XML as an in-process Sprintf over the
// captured variables.
func (e *emitter) lowerCatchXML(sel *ast.SelectStatement) (string, error) {
	e.addImport("fmt")

	var parts, args []string
	for _, col := range sel.Columns {
		alias := "value"
		if col.Alias != nil {
			alias = col.Alias.Value
		} else if id, ok := col.Expression.(*ast.Identifier); ok {
			alias = id.Value
		}
		parts = append(parts, fmt.Sprintf("<%s>%%v</%s>", alias, alias))
		if v := firstVariableIn(col.Expression); v != "" {
			args = append(args, goName(v))
			continue
		}
		code, err := e.lowerExpr(col.Expression)
		if err != nil {
			args = append(args, `""`)
		} else {
			args = append(args, code)
		}
	}

	root := "Params"
	if sel.ForClause != nil {
		if sel.ForClause.ElementName != "" {
			root = strings.Trim(sel.ForClause.ElementName, `'"`)
		} else if sel.ForClause.Root != "" {
			root = strings.Trim(sel.ForClause.Root, `'"`)
		}
	}
	format := fmt.Sprintf("<%s>%s</%s>", root, strings.Join(parts, ""), root)
	if len(args) == 0 {
		return "`" + format + "`", nil
	}
	return fmt.Sprintf("fmt.Sprintf(`%s`, %s)", format, strings.Join(args, ", ")), nil
}

func firstVariableIn(expr ast.Expression) string {
	switch x := expr.(type) {
	case *ast.Variable:
		return x.Name
	case *ast.FunctionCall:
		for _, arg := range x.Arguments {
			if v := firstVariableIn(arg); v != "" {
				return v
			}
		}
	case *ast.CastExpression:
		return firstVariableIn(x.Expression)
	case *ast.ConvertExpression:
		return firstVariableIn(x.Expression)
	}
	return ""
}

func (e *emitter) lowerExists(exists *ast.ExistsExpression) (string, error) {
	if exists.Subquery == nil {
		return "", fmt.Errorf("EXISTS expression has no subquery")
	}
	e.hasDML = true

	table := mainTable(exists.Subquery)
	switch e.effectiveBackend(table) {
	case BackendRPC:
		return e.lowerExistsRPC(exists.Subquery, table)
	case BackendMock:
		return e.lowerExistsMock(exists.Subquery, table)
	}

	query, args := e.serializeQuery(exists.Subquery.String())
	return fmt.Sprintf("func() bool {\n"+
		"\t\tvar one int\n"+
		"\t\terr := %s.QueryRowContext(%s, \"SELECT 1 WHERE EXISTS(\"+%q+\")\"%s).Scan(&one)\n"+
		"\t\treturn err == nil && one == 1\n"+
		"\t}()", e.storeHandle(), e.cfg.ContextArg, query, argList(args)), nil
}

// ---------------------------------------------------------------------------
// Extraction helpers shared by the back-ends

type varAssign struct {
	varName string
	column  string
}

func selectAssignments(s *ast.SelectStatement) []varAssign {
	var out []varAssign
	for _, item := range s.Columns {
		if item.Variable == nil {
			continue
		}
		varName := goName(item.Variable.Name)
		col := ""
		switch x := item.Expression.(type) {
		case *ast.Identifier:
			col = x.Value
		case *ast.QualifiedIdentifier:
			if len(x.Parts) > 0 {
				col = x.Parts[len(x.Parts)-1].Value
			}
		}
		if col == "" {
			col = varName
		}
		out = append(out, varAssign{varName: varName, column: col})
	}
	return out
}

type whereEq struct {
	column   string
	variable string // Go identifier, or rendered literal
	operator string
}

func whereFieldsOf(where ast.Expression) []whereEq {
	var fields []whereEq
	collectWhere(where, &fields)
	return fields
}

func collectWhere(expr ast.Expression, fields *[]whereEq) {
	infix, ok := expr.(*ast.InfixExpression)
	if !ok {
		return
	}
	op := strings.ToUpper(infix.Operator)
	if op == "AND" || op == "OR" {
		collectWhere(infix.Left, fields)
		collectWhere(infix.Right, fields)
		return
	}

	col := ""
	switch l := infix.Left.(type) {
	case *ast.Identifier:
		col = l.Value
	case *ast.QualifiedIdentifier:
		if len(l.Parts) > 0 {
			col = l.Parts[len(l.Parts)-1].Value
		}
	}
	if col == "" {
		return
	}

	switch r := infix.Right.(type) {
	case *ast.Variable:
		*fields = append(*fields, whereEq{column: col, variable: goName(r.Name), operator: op})
	case *ast.StringLiteral:
		*fields = append(*fields, whereEq{column: col, variable: fmt.Sprintf("%q", r.Value), operator: op})
	case *ast.IntegerLiteral:
		*fields = append(*fields, whereEq{column: col, variable: fmt.Sprintf("%d", r.Value), operator: op})
	case *ast.FloatLiteral:
		*fields = append(*fields, whereEq{column: col, variable: fmt.Sprintf("%v", r.Value), operator: op})
	}
}

func (e *emitter) insertValues(s *ast.InsertStatement) []fieldValue {
	var out []fieldValue
	if s.Columns == nil || len(s.Values) == 0 {
		return out
	}
	for i, col := range s.Columns {
		if i >= len(s.Values[0]) {
			break
		}
		val := e.exprToGo(s.Values[0][i])
		out = append(out, fieldValue{column: col.Value, value: val})
	}
	return out
}

func (e *emitter) updateSetValues(s *ast.UpdateStatement) []fieldValue {
	var out []fieldValue
	for _, set := range s.SetClauses {
		col := ""
		if set.Column != nil && len(set.Column.Parts) > 0 {
			col = set.Column.Parts[len(set.Column.Parts)-1].Value
		}
		if col == "" {
			continue
		}
		out = append(out, fieldValue{column: col, value: e.exprToGo(set.Value)})
	}
	return out
}

type fieldValue struct {
	column string
	value  string
}

// exprToGo renders a simple expression as Go, falling back to lowerExpr.
func (e *emitter) exprToGo(expr ast.Expression) string {
	switch x := expr.(type) {
	case *ast.Variable:
		e.scopes.markRead(x.Name)
		return goName(x.Name)
	case *ast.StringLiteral:
		return fmt.Sprintf("%q", x.Value)
	case *ast.IntegerLiteral:
		return fmt.Sprintf("%d", x.Value)
	case *ast.FloatLiteral:
		return fmt.Sprintf("%v", x.Value)
	case *ast.NullLiteral:
		return "nil"
	}
	if code, err := e.lowerExpr(expr); err == nil {
		return code
	}
	return "nil"
}

func mainTable(s *ast.SelectStatement) string {
	if s.From == nil || len(s.From.Tables) == 0 {
		return ""
	}
	if tn, ok := s.From.Tables[0].(*ast.TableName); ok {
		if tn.Name != nil && len(tn.Name.Parts) > 0 {
			return tn.Name.Parts[len(tn.Name.Parts)-1].Value
		}
	}
	return ""
}

func tableOf(qid *ast.QualifiedIdentifier) string {
	if qid == nil || len(qid.Parts) == 0 {
		return ""
	}
	return qid.Parts[len(qid.Parts)-1].Value
}

// singleRowSelect applies the TOP 1 / unique-key heuristic.
func (e *emitter) singleRowSelect(s *ast.SelectStatement) bool {
	if s.Top != nil {
		if lit, ok := s.Top.Count.(*ast.IntegerLiteral); ok && lit.Value == 1 {
			return true
		}
	}
	if s.Where != nil {
		fields := whereFieldsOf(s.Where)
		if len(fields) == 1 {
			col := strings.ToLower(fields[0].column)
			if strings.HasSuffix(col, "id") {
				return true
			}
		}
	}
	return false
}

// selectColumns pulls names and expressions for scan-target generation.
type selectCol struct {
	name string
	expr ast.Expression
}

func (e *emitter) selectColumns(s *ast.SelectStatement) []selectCol {
	var cols []selectCol
	for _, item := range s.Columns {
		col := selectCol{expr: item.Expression}
		if item.Alias != nil {
			col.name = item.Alias.Value
		} else if item.Expression != nil {
			col.name = columnNameOf(item.Expression)
		}
		if item.Expression != nil && item.Expression.String() == "*" {
			col.name = "*"
		}
		cols = append(cols, col)
	}
	return cols
}

func columnNameOf(expr ast.Expression) string {
	switch x := expr.(type) {
	case *ast.Identifier:
		return x.Value
	case *ast.QualifiedIdentifier:
		if len(x.Parts) > 0 {
			return x.Parts[len(x.Parts)-1].Value
		}
	case *ast.FunctionCall:
		if id, ok := x.Function.(*ast.Identifier); ok {
			return strings.ToLower(id.Value)
		}
	}
	return "col"
}

// scanTargets declares one local per selected column, typed from the
// expression when possible, else from name heuristics.
func (e *emitter) scanTargets(cols []selectCol) (string, string) {
	if len(cols) == 0 {
		return "", "/* no columns */"
	}
	for _, c := range cols {
		if c.name == "*" {
			return "", "/* SELECT * needs explicit columns */"
		}
	}

	used := make(map[string]int)
	var decls, targets []string
	for _, c := range cols {
		name := goName(c.name)
		if name == "" || name == "_" {
			name = "col"
		}
		if n, ok := used[name]; ok {
			used[name] = n + 1
			name = fmt.Sprintf("%s%d", name, n+1)
		} else {
			used[name] = 1
		}

		goType := "interface{}"
		if c.expr != nil {
			if ti := e.inferType(c.expr); ti != opaqueType {
				goType = ti.goType
				switch goType {
				case "decimal.Decimal":
					e.addImport("github.com/shopspring/decimal")
				case "time.Time":
					e.addImport("time")
				}
			}
		}
		if goType == "interface{}" {
			goType = e.columnTypeHeuristic(c.name)
		}

		decls = append(decls, "var "+name+" "+goType)
		targets = append(targets, "&"+name)
	}
	return strings.Join(decls, "\n"+e.pad()), strings.Join(targets, ", ")
}

func (e *emitter) columnTypeHeuristic(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "id"):
		return "int64"
	case strings.HasSuffix(lower, "at"), strings.HasSuffix(lower, "date"), strings.HasSuffix(lower, "time"):
		e.addImport("time")
		return "time.Time"
	case lower == "count", lower == "sum":
		return "int64"
	case strings.HasPrefix(lower, "is"), strings.HasPrefix(lower, "has"), strings.HasSuffix(lower, "active"):
		return "bool"
	case strings.Contains(lower, "price"), strings.Contains(lower, "amount"), strings.Contains(lower, "total"):
		e.addImport("github.com/shopspring/decimal")
		return "decimal.Decimal"
	case strings.Contains(lower, "name"), strings.Contains(lower, "email"),
		strings.Contains(lower, "title"), strings.Contains(lower, "description"):
		return "string"
	default:
		return "interface{}"
	}
}
