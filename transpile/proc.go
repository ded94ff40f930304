package transpile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ha1tch/tsqlparser/ast"
)

// lowerProcedure emits one CREATE PROCEDURE as a Go function (or method when
// a receiver is configured).
func (e *emitter) lowerProcedure(proc *ast.CreateProcedureStatement) (string, error) {
	e.resetUnit()

	procName := proc.Name.Parts[len(proc.Name.Parts)-1].Value
	e.procName = procName
	e.userFuncs[strings.ToLower(procName)] = exportedName(cleanProcName(procName))

	e.hasDML = blockHasDML(proc.Body)
	e.usesRowCount = blockReadsRowCount(proc.Body)

	var out strings.Builder

	for _, c := range e.comments.leading("PROC:" + strings.ToLower(procName)) {
		out.WriteString("// " + c + "\n")
	}

	// Parameters: inputs positional, OUTPUT as named returns.
	var inputs []string
	var outputs []*ast.ParameterDef
	for _, p := range proc.Parameters {
		goType, err := e.goTypeFor(p.DataType)
		if err != nil {
			return "", fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		name := goName(p.Name)
		e.scopes.define(p.Name, descriptorFor(p.DataType), true)
		if p.Output {
			outputs = append(outputs, p)
		} else {
			inputs = append(inputs, name+" "+goType)
		}
	}
	e.outputParams = outputs
	e.hasReturnCode = blockHasValueReturn(proc.Body)

	needsCtx := e.hasDML || e.cfg.Receiver != ""
	if needsCtx {
		e.addImport("context")
		inputs = append([]string{e.cfg.ContextArg + " context.Context"}, inputs...)
	}

	funcName := exportedName(cleanProcName(procName))
	if e.cfg.Receiver != "" {
		recvType := e.cfg.ReceiverType
		if recvType == "" {
			recvType = "*" + exportedName(e.cfg.Receiver)
		}
		fmt.Fprintf(&out, "func (%s %s) %s(", e.cfg.Receiver, recvType, funcName)
	} else {
		fmt.Fprintf(&out, "func %s(", funcName)
	}
	out.WriteString(strings.Join(inputs, ", "))
	out.WriteString(")")

	var returns []string
	for _, p := range outputs {
		goType, _ := e.goTypeFor(p.DataType)
		returns = append(returns, goName(p.Name)+" "+goType)
	}
	if e.hasReturnCode {
		returns = append(returns, "returnCode int32")
	}
	if e.hasDML {
		returns = append(returns, "err error")
	}
	if len(returns) > 0 {
		out.WriteString(" (" + strings.Join(returns, ", ") + ")")
	}
	out.WriteString(" {\n")

	e.indent = 1

	if e.usesRowCount {
		out.WriteString(e.pad() + "var rowsAffected int32\n")
		out.WriteString(e.pad() + "_ = rowsAffected\n")
	}

	if proc.Body != nil {
		body, err := e.lowerScopedBlock(proc.Body)
		if err != nil {
			return "", err
		}
		out.WriteString(body)
	}

	if len(returns) > 0 && !blockEndsWithReturn(proc.Body) {
		out.WriteString(e.pad() + e.buildReturn(nil) + "\n")
	}

	e.indent = 0
	out.WriteString("}")
	return out.String(), nil
}

// buildReturn assembles the return tuple: outputs, optional return code,
// optional error slot.
func (e *emitter) buildReturn(returnValue ast.Expression) string {
	var parts []string
	for _, p := range e.outputParams {
		parts = append(parts, goName(p.Name))
	}
	if e.hasReturnCode {
		if returnValue != nil {
			if val, err := e.lowerExpr(returnValue); err == nil {
				parts = append(parts, val)
			} else {
				parts = append(parts, "0")
			}
		} else {
			parts = append(parts, "0")
		}
	}
	if e.hasDML {
		parts = append(parts, "nil")
	}
	if len(parts) == 0 {
		return "return"
	}
	return "return " + strings.Join(parts, ", ")
}

// errorReturn builds the error-path return for DML failures.
func (e *emitter) errorReturn() string {
	if e.inTry {
		// Inside the TRY IIFE the deferred handler does the catching.
		return "panic(err)"
	}
	if e.inCatch {
		return "_ = err // already in the error handler"
	}
	var parts []string
	for _, p := range e.outputParams {
		parts = append(parts, goName(p.Name))
	}
	if e.hasReturnCode {
		parts = append(parts, "0")
	}
	parts = append(parts, "err")
	return "return " + strings.Join(parts, ", ")
}

func (e *emitter) lowerDeclare(decl *ast.DeclareStatement) (string, error) {
	var parts []string
	for i, v := range decl.Variables {
		if v.TableType != nil {
			return "", &UnsupportedStatementError{
				Kind: "DECLARE @t TABLE",
				Hint: "table variables are not lowered; use a #temp table instead",
			}
		}
		goType, err := e.goTypeFor(v.DataType)
		if err != nil {
			return "", fmt.Errorf("variable %s: %w", v.Name, err)
		}
		name := goName(v.Name)
		ti := descriptorFor(v.DataType)
		e.scopes.define(v.Name, ti, false)

		var prefix string
		if i == 0 {
			for _, c := range e.comments.leading("DECLARE:" + strings.ToLower(strings.TrimPrefix(v.Name, "@"))) {
				prefix += "// " + c + "\n" + e.pad()
			}
		}

		if v.Value != nil {
			val, err := e.lowerInitializer(v.Value, ti)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%svar %s %s = %s", prefix, name, goType, val))
		} else {
			parts = append(parts, fmt.Sprintf("%svar %s %s", prefix, name, goType))
		}
	}
	return strings.Join(parts, "\n"+e.pad()), nil
}

// lowerInitializer lowers a DECLARE/SET right-hand side with the slot type's
// NULL-to-zero and decimal/bool coercions applied.
func (e *emitter) lowerInitializer(value ast.Expression, ti *typeInfo) (string, error) {
	if _, isNull := value.(*ast.NullLiteral); isNull {
		return e.zeroValue(ti), nil
	}
	val, err := e.lowerExpr(value)
	if err != nil {
		return "", err
	}
	if ti != nil && ti.isDecimal {
		val = e.coerceDecimal(value, val)
	}
	if ti != nil && ti.isBool {
		val = e.coerceBool(value, val)
	}
	return val, nil
}

func (e *emitter) lowerSet(set *ast.SetStatement) (string, error) {
	if set.Option != "" {
		// SET NOCOUNT and friends have no Go meaning.
		return fmt.Sprintf("// SET %s %s (no effect)", set.Option, set.OnOff), nil
	}

	varExpr, err := e.lowerExpr(set.Variable)
	if err != nil {
		return "", err
	}

	var prefix, suffix string
	if v, ok := set.Variable.(*ast.Variable); ok {
		sig := "SET:" + strings.ToLower(strings.TrimPrefix(v.Name, "@"))
		for _, c := range e.comments.leading(sig) {
			prefix += "// " + c + "\n" + e.pad()
		}
		if c := e.comments.trailing(sig); c != "" {
			suffix = " // " + c
		}
	}

	if set.Value == nil {
		// Expression-statement form, e.g. @xml.modify(...).
		return prefix + varExpr, nil
	}

	// SET @x = (SELECT ...) switches to a query-row path.
	if subq, ok := set.Value.(*ast.SubqueryExpression); ok {
		return e.lowerSetSubquery(set.Variable, subq, prefix)
	}

	// Self-assignment is a no-op.
	if v, ok := set.Variable.(*ast.Variable); ok {
		if rv, ok := set.Value.(*ast.Variable); ok && normalizeSymbol(v.Name) == normalizeSymbol(rv.Name) {
			return "", nil
		}
	}

	ti := e.inferType(set.Variable)
	val, err := e.lowerInitializer(set.Value, ti)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s = %s%s", prefix, varExpr, val, suffix), nil
}

// lowerSetSubquery emits the QueryRow + scan + no-rows-to-zero glue for
// SET @x = (SELECT ...).
func (e *emitter) lowerSetSubquery(variable ast.Expression, subq *ast.SubqueryExpression, prefix string) (string, error) {
	e.hasDML = true
	e.addImport("database/sql")

	varExpr, err := e.lowerExpr(variable)
	if err != nil {
		return "", err
	}
	ti := e.inferType(variable)

	query, args := e.serializeQuery(subq.Subquery.String())

	var out strings.Builder
	out.WriteString(prefix)
	fmt.Fprintf(&out, "if err := %s.QueryRowContext(%s, %q%s).Scan(&%s); err != nil {\n",
		e.storeHandle(), e.cfg.ContextArg, query, argList(args), varExpr)
	out.WriteString(e.pad() + "\tif err != sql.ErrNoRows {\n")
	out.WriteString(e.pad() + "\t\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "\t}\n")
	fmt.Fprintf(&out, "%s\t%s = %s\n", e.pad(), varExpr, e.zeroValue(ti))
	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

func (e *emitter) lowerIf(ifStmt *ast.IfStatement) (string, error) {
	var out strings.Builder

	cond, err := e.lowerCondition(ifStmt.Condition)
	if err != nil {
		return "", err
	}

	for _, c := range e.comments.leading(conditionSignature("IF", ifStmt.Condition)) {
		out.WriteString("// " + c + "\n" + e.pad())
	}

	fmt.Fprintf(&out, "if %s {\n", cond)
	e.indent++
	conseq, err := e.lowerScopedBlock(ifStmt.Consequence)
	if err != nil {
		return "", err
	}
	out.WriteString(conseq)
	e.indent--

	if ifStmt.Alternative != nil {
		if elseIf, ok := ifStmt.Alternative.(*ast.IfStatement); ok {
			out.WriteString(e.pad() + "} else ")
			chained, err := e.lowerIf(elseIf)
			if err != nil {
				return "", err
			}
			out.WriteString(chained)
			return out.String(), nil
		}
		out.WriteString(e.pad() + "} else {\n")
		e.indent++
		alt, err := e.lowerScopedBlock(ifStmt.Alternative)
		if err != nil {
			return "", err
		}
		out.WriteString(alt)
		e.indent--
	}

	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

func (e *emitter) lowerWhile(whileStmt *ast.WhileStatement) (string, error) {
	if e.isFetchStatusLoop(whileStmt.Condition) {
		return e.lowerCursorLoop(whileStmt)
	}

	var out strings.Builder
	cond, err := e.lowerCondition(whileStmt.Condition)
	if err != nil {
		return "", err
	}

	for _, c := range e.comments.leading(conditionSignature("WHILE", whileStmt.Condition)) {
		out.WriteString("// " + c + "\n" + e.pad())
	}

	fmt.Fprintf(&out, "for %s {\n", cond)
	e.indent++
	body, err := e.lowerScopedBlock(whileStmt.Body)
	if err != nil {
		return "", err
	}
	out.WriteString(body)
	e.indent--
	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

// lowerBareBlock handles a BEGIN...END outside a control structure: a plain
// statement sequence, no new scope.
func (e *emitter) lowerBareBlock(block *ast.BeginEndBlock) (string, error) {
	var parts []string
	for _, stmt := range block.Statements {
		code, err := e.lowerStatement(stmt)
		if err != nil {
			return "", err
		}
		if code != "" {
			parts = append(parts, code)
		}
	}
	return strings.Join(parts, "\n"+e.pad()), nil
}

// lowerTryCatch re-expresses TRY/CATCH as an immediately-invoked function
// with a deferred recover handler. The handler body is the CATCH block; the
// recovered value is bound to _recovered for the ERROR_* accessors.
func (e *emitter) lowerTryCatch(tc *ast.TryCatchStatement) (string, error) {
	var out strings.Builder

	out.WriteString("func() {\n")
	e.indent++
	out.WriteString(e.pad() + "defer func() {\n")
	e.indent++
	out.WriteString(e.pad() + "if _recovered := recover(); _recovered != nil {\n")
	e.indent++

	wasCatch := e.inCatch
	e.inCatch = true

	if e.cfg.useLogger() {
		e.addImport(runtimeImport)
		fmt.Fprintf(&out, "%s_spErr := sqlrt.Capture(%q, _recovered, %s)\n",
			e.pad(), e.procName, e.paramsMap())
	}

	if tc.CatchBlock != nil {
		e.scopes.push()
		var lines []string
		for _, stmt := range tc.CatchBlock.Statements {
			if e.cfg.useLogger() {
				// The XML parameter fragments are rebuilt in-process; their
				// DECLAREs and the logging INSERT are replaced wholesale.
				if decl, ok := stmt.(*ast.DeclareStatement); ok && isXMLParamDeclare(decl) {
					continue
				}
				if ins, ok := stmt.(*ast.InsertStatement); ok && isErrorLogInsert(ins) {
					lines = append(lines, fmt.Sprintf("%s_ = %s.LogError(%s, _spErr)", e.pad(), e.cfg.LoggerVar, e.cfg.ContextArg))
					continue
				}
			}
			code, err := e.lowerStatement(stmt)
			if err != nil {
				e.scopes.pop()
				return "", err
			}
			if code != "" {
				lines = append(lines, e.pad()+code)
			}
		}
		unused := e.scopes.pop()
		if len(unused) > 0 {
			sort.Strings(unused)
			var sup []string
			for _, name := range unused {
				sup = append(sup, e.pad()+"_ = "+name)
			}
			lines = insertBeforeTrailingReturn(lines, sup)
		}
		if len(lines) > 0 {
			out.WriteString(strings.Join(lines, "\n") + "\n")
		}
	}
	e.inCatch = wasCatch

	e.indent--
	out.WriteString(e.pad() + "}\n")
	e.indent--
	out.WriteString(e.pad() + "}()\n")

	wasTry := e.inTry
	e.inTry = true
	if tc.TryBlock != nil {
		body, err := e.lowerScopedBlock(tc.TryBlock)
		if err != nil {
			return "", err
		}
		out.WriteString(body)
	}
	e.inTry = wasTry

	e.indent--
	out.WriteString(e.pad() + "}()")
	return out.String(), nil
}

// paramsMap renders the visible parameters/locals as a map literal for the
// SP-logger snapshot.
func (e *emitter) paramsMap() string {
	names := e.scopes.snapshot()
	if len(names) == 0 {
		return "nil"
	}
	sort.Strings(names)
	var parts []string
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%q: %s", n, n))
	}
	return "map[string]interface{}{" + strings.Join(parts, ", ") + "}"
}

var errorLogTables = []string{"error", "errorlog", "error_log", "logerror", "log_error", "logforstorep"}

// isErrorLogInsert matches the CATCH-block pattern of inserting into an
// error-log table.
func isErrorLogInsert(ins *ast.InsertStatement) bool {
	if ins.Table == nil {
		return false
	}
	table := strings.ToLower(ins.Table.String())
	for _, p := range errorLogTables {
		if strings.Contains(table, p) {
			return true
		}
	}
	return false
}

// isXMLParamDeclare matches CATCH-block DECLAREs that build XML parameter
// fragments for logging.
func isXMLParamDeclare(decl *ast.DeclareStatement) bool {
	for _, v := range decl.Variables {
		name := strings.ToLower(v.Name)
		if strings.Contains(name, "param") || strings.Contains(name, "xml") {
			return true
		}
		if subq, ok := v.Value.(*ast.SubqueryExpression); ok {
			if subq.Subquery != nil && subq.Subquery.ForClause != nil &&
				strings.EqualFold(subq.Subquery.ForClause.ForType, "XML") {
				return true
			}
		}
	}
	return false
}

func (e *emitter) lowerReturn(ret *ast.ReturnStatement) (string, error) {
	// Inside the TRY IIFE or the CATCH handler, a bare return exits the
	// anonymous function; the named outputs carry the values.
	if e.inTry || e.inCatch {
		return "return", nil
	}
	if len(e.outputParams) > 0 || e.hasReturnCode || e.hasDML {
		return e.buildReturn(ret.Value), nil
	}
	if ret.Value != nil {
		val, err := e.lowerExpr(ret.Value)
		if err != nil {
			return "", err
		}
		return "return " + val, nil
	}
	return "return", nil
}

func (e *emitter) lowerPrint(p *ast.PrintStatement) (string, error) {
	e.addImport("fmt")
	expr, err := e.lowerExpr(p.Expression)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("fmt.Println(%s)", expr), nil
}

// lowerRaiserror builds a formatted error value. Inside TRY it panics so the
// deferred handler catches it; inside CATCH the value is assigned to blank;
// otherwise it returns the error with zero-valued outputs.
func (e *emitter) lowerRaiserror(s *ast.RaiserrorStatement) (string, error) {
	e.addImport("fmt")
	msg, err := e.lowerExpr(s.Message)
	if err != nil {
		return "", err
	}
	errExpr := "fmt.Errorf(" + msg
	for _, arg := range s.Args {
		a, err := e.lowerExpr(arg)
		if err != nil {
			return "", err
		}
		errExpr += ", " + a
	}
	errExpr += ")"

	if e.inTry {
		return "panic(" + errExpr + ")", nil
	}
	if e.inCatch {
		return "_ = " + errExpr, nil
	}
	return e.errorExit(errExpr), nil
}

func (e *emitter) lowerThrow(s *ast.ThrowStatement) (string, error) {
	if s.ErrorNum == nil && s.Message == nil {
		// Bare THROW re-raises the caught error.
		if e.inCatch {
			return "panic(_recovered)", nil
		}
		return e.errorExit("err"), nil
	}

	e.addImport("fmt")
	msg := `"unknown error"`
	if s.Message != nil {
		var err error
		msg, err = e.lowerExpr(s.Message)
		if err != nil {
			return "", err
		}
	}
	num := "50000"
	if s.ErrorNum != nil {
		var err error
		num, err = e.lowerExpr(s.ErrorNum)
		if err != nil {
			return "", err
		}
	}
	errExpr := fmt.Sprintf("fmt.Errorf(\"error %%d: %%s\", %s, %s)", num, msg)

	if e.inTry {
		return "panic(" + errExpr + ")", nil
	}
	return e.errorExit(errExpr), nil
}

// errorExit returns errExpr alongside zero-valued outputs.
func (e *emitter) errorExit(errExpr string) string {
	var parts []string
	for _, p := range e.outputParams {
		parts = append(parts, e.zeroValueNamed(mustGoType(p.DataType)))
	}
	if e.hasReturnCode {
		parts = append(parts, "0")
	}
	parts = append(parts, errExpr)
	return "return " + strings.Join(parts, ", ")
}

func mustGoType(dt *ast.DataType) string {
	return descriptorFor(dt).goType
}

// Transactions. BEGIN TRANSACTION opens a tx handle with a deferred
// rollback guard that fires on panic; tx shadows the store handle until
// COMMIT/ROLLBACK. Nested transactions are rejected.

func (e *emitter) lowerBeginTransaction(*ast.BeginTransactionStatement) (string, error) {
	if e.inTransaction {
		return "", &UnsupportedStatementError{
			Kind: "nested BEGIN TRANSACTION",
			Hint: "the source nests transactions without matching outer commits; flatten them first",
		}
	}
	e.inTransaction = true
	e.hasDML = true

	var out strings.Builder
	fmt.Fprintf(&out, "tx, err := %s.BeginTx(%s, nil)\n", e.cfg.StoreVar, e.cfg.ContextArg)
	out.WriteString(e.pad() + "if err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")
	out.WriteString(e.pad() + "defer func() {\n")
	out.WriteString(e.pad() + "\tif p := recover(); p != nil {\n")
	out.WriteString(e.pad() + "\t\t_ = tx.Rollback()\n")
	out.WriteString(e.pad() + "\t\tpanic(p)\n")
	out.WriteString(e.pad() + "\t}\n")
	out.WriteString(e.pad() + "}()")
	e.scopes.defineHelper("tx")
	e.scopes.defineHelper("err")
	return out.String(), nil
}

func (e *emitter) lowerCommitTransaction(*ast.CommitTransactionStatement) (string, error) {
	e.inTransaction = false
	var out strings.Builder
	out.WriteString("if err := tx.Commit(); err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

func (e *emitter) lowerRollbackTransaction(*ast.RollbackTransactionStatement) (string, error) {
	e.inTransaction = false
	return "_ = tx.Rollback()", nil
}

// conditionSignature derives the comment-lookup key from the first
// identifier or variable in a condition.
func conditionSignature(prefix string, cond ast.Expression) string {
	switch c := cond.(type) {
	case *ast.Variable:
		return prefix + ":" + strings.ToLower(strings.TrimPrefix(c.Name, "@"))
	case *ast.Identifier:
		return prefix + ":" + strings.ToLower(c.Value)
	case *ast.InfixExpression:
		if sig := conditionSignature(prefix, c.Left); sig != prefix {
			return sig
		}
		return conditionSignature(prefix, c.Right)
	case *ast.PrefixExpression:
		return conditionSignature(prefix, c.Right)
	}
	return prefix
}

// Body pre-scans.

func blockHasDML(block *ast.BeginEndBlock) bool {
	if block == nil {
		return false
	}
	for _, stmt := range block.Statements {
		if statementHasDML(stmt) {
			return true
		}
	}
	return false
}

func statementHasDML(stmt ast.Statement) bool {
	switch s := stmt.(type) {
	case *ast.SelectStatement, *ast.InsertStatement, *ast.UpdateStatement,
		*ast.DeleteStatement, *ast.MergeStatement, *ast.ExecStatement,
		*ast.WithStatement,
		*ast.CreateTableStatement, *ast.DropTableStatement, *ast.TruncateTableStatement,
		*ast.DeclareCursorStatement, *ast.OpenCursorStatement,
		*ast.BeginTransactionStatement:
		return true
	case *ast.RaiserrorStatement, *ast.ThrowStatement:
		// These need the error channel on the return tuple.
		return true
	case *ast.BeginEndBlock:
		return blockHasDML(s)
	case *ast.IfStatement:
		if exprHasDML(s.Condition) || statementHasDML(s.Consequence) {
			return true
		}
		return s.Alternative != nil && statementHasDML(s.Alternative)
	case *ast.WhileStatement:
		return exprHasDML(s.Condition) || statementHasDML(s.Body)
	case *ast.TryCatchStatement:
		return blockHasDML(s.TryBlock) || blockHasDML(s.CatchBlock)
	case *ast.SetStatement:
		return exprHasDML(s.Value)
	case *ast.DeclareStatement:
		for _, v := range s.Variables {
			if exprHasDML(v.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// exprHasDML reports whether an expression forces database access: scalar
// subqueries and EXISTS checks.
func exprHasDML(expr ast.Expression) bool {
	if expr == nil {
		return false
	}
	switch x := expr.(type) {
	case *ast.SubqueryExpression, *ast.ExistsExpression:
		return true
	case *ast.PrefixExpression:
		return exprHasDML(x.Right)
	case *ast.InfixExpression:
		return exprHasDML(x.Left) || exprHasDML(x.Right)
	case *ast.FunctionCall:
		for _, a := range x.Arguments {
			if exprHasDML(a) {
				return true
			}
		}
	case *ast.CaseExpression:
		if exprHasDML(x.Operand) || exprHasDML(x.ElseClause) {
			return true
		}
		for _, w := range x.WhenClauses {
			if exprHasDML(w.Condition) || exprHasDML(w.Result) {
				return true
			}
		}
	case *ast.CastExpression:
		return exprHasDML(x.Expression)
	case *ast.ConvertExpression:
		return exprHasDML(x.Expression)
	case *ast.IsNullExpression:
		return exprHasDML(x.Expr)
	case *ast.BetweenExpression:
		return exprHasDML(x.Expr) || exprHasDML(x.Low) || exprHasDML(x.High)
	case *ast.InExpression:
		if exprHasDML(x.Expr) {
			return true
		}
		for _, v := range x.Values {
			if exprHasDML(v) {
				return true
			}
		}
	}
	return false
}

func blockHasValueReturn(block *ast.BeginEndBlock) bool {
	if block == nil {
		return false
	}
	for _, stmt := range block.Statements {
		if statementHasValueReturn(stmt) {
			return true
		}
	}
	return false
}

func statementHasValueReturn(stmt ast.Statement) bool {
	switch s := stmt.(type) {
	case *ast.ReturnStatement:
		return s.Value != nil
	case *ast.BeginEndBlock:
		return blockHasValueReturn(s)
	case *ast.IfStatement:
		if statementHasValueReturn(s.Consequence) {
			return true
		}
		return s.Alternative != nil && statementHasValueReturn(s.Alternative)
	case *ast.WhileStatement:
		return statementHasValueReturn(s.Body)
	case *ast.TryCatchStatement:
		return blockHasValueReturn(s.TryBlock) || blockHasValueReturn(s.CatchBlock)
	}
	return false
}

func blockEndsWithReturn(block *ast.BeginEndBlock) bool {
	if block == nil || len(block.Statements) == 0 {
		return false
	}
	switch s := block.Statements[len(block.Statements)-1].(type) {
	case *ast.ReturnStatement:
		return true
	case *ast.BeginEndBlock:
		return blockEndsWithReturn(s)
	}
	return false
}

// blockReadsRowCount pre-scans for @@ROWCOUNT so the accumulator can be
// declared at the top of the function.
func blockReadsRowCount(block *ast.BeginEndBlock) bool {
	if block == nil {
		return false
	}
	found := false
	walkStatements(block.Statements, func(expr ast.Expression) {
		if v, ok := expr.(*ast.Variable); ok && strings.EqualFold(v.Name, "@@ROWCOUNT") {
			found = true
		}
	})
	return found
}

// walkStatements visits every expression reachable from stmts. It covers the
// statement kinds the lowering handles; anything else fails later with an
// unsupported-statement error anyway.
func walkStatements(stmts []ast.Statement, visit func(ast.Expression)) {
	var walkStmt func(ast.Statement)
	var walkExpr func(ast.Expression)

	walkExpr = func(expr ast.Expression) {
		if expr == nil {
			return
		}
		visit(expr)
		switch x := expr.(type) {
		case *ast.PrefixExpression:
			walkExpr(x.Right)
		case *ast.InfixExpression:
			walkExpr(x.Left)
			walkExpr(x.Right)
		case *ast.FunctionCall:
			for _, a := range x.Arguments {
				walkExpr(a)
			}
		case *ast.CaseExpression:
			walkExpr(x.Operand)
			for _, w := range x.WhenClauses {
				walkExpr(w.Condition)
				walkExpr(w.Result)
			}
			walkExpr(x.ElseClause)
		case *ast.CastExpression:
			walkExpr(x.Expression)
		case *ast.ConvertExpression:
			walkExpr(x.Expression)
		case *ast.IsNullExpression:
			walkExpr(x.Expr)
		case *ast.BetweenExpression:
			walkExpr(x.Expr)
			walkExpr(x.Low)
			walkExpr(x.High)
		case *ast.InExpression:
			walkExpr(x.Expr)
			for _, v := range x.Values {
				walkExpr(v)
			}
		}
	}

	walkStmt = func(stmt ast.Statement) {
		switch s := stmt.(type) {
		case *ast.DeclareStatement:
			for _, v := range s.Variables {
				walkExpr(v.Value)
			}
		case *ast.SetStatement:
			walkExpr(s.Variable)
			walkExpr(s.Value)
		case *ast.IfStatement:
			walkExpr(s.Condition)
			walkStmt(s.Consequence)
			if s.Alternative != nil {
				walkStmt(s.Alternative)
			}
		case *ast.WhileStatement:
			walkExpr(s.Condition)
			walkStmt(s.Body)
		case *ast.BeginEndBlock:
			walkStatements(s.Statements, visit)
		case *ast.TryCatchStatement:
			if s.TryBlock != nil {
				walkStatements(s.TryBlock.Statements, visit)
			}
			if s.CatchBlock != nil {
				walkStatements(s.CatchBlock.Statements, visit)
			}
		case *ast.ReturnStatement:
			walkExpr(s.Value)
		case *ast.PrintStatement:
			walkExpr(s.Expression)
		case *ast.SelectStatement:
			walkExpr(s.Where)
		case *ast.InsertStatement:
			for _, row := range s.Values {
				for _, v := range row {
					walkExpr(v)
				}
			}
		case *ast.UpdateStatement:
			walkExpr(s.Where)
		case *ast.DeleteStatement:
			walkExpr(s.Where)
		}
	}

	for _, s := range stmts {
		walkStmt(s)
	}
}
