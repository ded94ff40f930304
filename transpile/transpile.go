package transpile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ha1tch/tsqlparser"
	"github.com/ha1tch/tsqlparser/ast"
)

const runtimeImport = "github.com/sqlport/sqlport/sqlrt"

// Transpile converts one batch of T-SQL into Go source plus diagnostics.
// The same input and config always produce byte-identical output.
func Transpile(source string, cfg Config) (*Result, error) {
	cfg.fillDefaults()

	program, parseErrs := tsqlparser.Parse(source)
	if len(parseErrs) > 0 {
		return nil, fmt.Errorf("parse errors:\n%s", strings.Join(parseErrs, "\n"))
	}

	e := newEmitter(cfg)
	e.comments = indexComments(source)
	return e.run(program)
}

// emitter carries the per-batch state threaded through the lowering passes.
type emitter struct {
	cfg      Config
	comments *commentIndex
	res      *Result
	imports  map[string]bool

	indent int

	// Per-unit state, reset by resetUnit.
	scopes        *scopeStack
	procName      string
	outputParams  []*ast.ParameterDef
	hasReturnCode bool
	hasDML        bool
	usesRowCount  bool
	inTry         bool
	inCatch       bool
	inTransaction bool
	cursors       map[string]*cursorState
	activeCursor  string
	userFuncs     map[string]string
}

func newEmitter(cfg Config) *emitter {
	return &emitter{
		cfg:       cfg,
		res:       &Result{},
		imports:   make(map[string]bool),
		scopes:    newScopeStack(),
		cursors:   make(map[string]*cursorState),
		userFuncs: make(map[string]string),
	}
}

func (e *emitter) addImport(path string) {
	e.imports[path] = true
}

func (e *emitter) pad() string {
	return strings.Repeat("\t", e.indent)
}

func (e *emitter) resetUnit() {
	e.scopes = newScopeStack()
	e.procName = ""
	e.outputParams = nil
	e.hasReturnCode = false
	e.hasDML = false
	e.usesRowCount = false
	e.inTry = false
	e.inCatch = false
	e.inTransaction = false
	e.cursors = make(map[string]*cursorState)
	e.activeCursor = ""
}

// run drives the batch: lower every top-level unit, then assemble.
func (e *emitter) run(program *ast.Program) (*Result, error) {
	var bodies []string
	units := 0
	statements := 0

	for _, stmt := range program.Statements {
		switch stmt.(type) {
		case *ast.CreateProcedureStatement:
			units++
		default:
			statements++
		}
		body, err := e.lowerStatement(stmt)
		if err != nil {
			return nil, err
		}
		if body != "" {
			bodies = append(bodies, body)
		}
	}

	if units == 0 && statements > 0 {
		return nil, fmt.Errorf("batch contains statements but no procedures or functions; loose DDL/DML belongs in migration tooling, not the transpiler")
	}

	e.res.Code = e.assemble(bodies)
	return e.res, nil
}

// assemble produces the final file: package clause, lexicographically sorted
// imports, optional SP-logger init, unit bodies.
func (e *emitter) assemble(bodies []string) string {
	loggerInit := ""
	if e.cfg.useLogger() && e.cfg.EmitLoggerInit {
		loggerInit = e.loggerInit()
	}

	var out strings.Builder
	fmt.Fprintf(&out, "package %s\n\n", e.cfg.Package)

	if len(e.imports) > 0 {
		paths := make([]string, 0, len(e.imports))
		for p := range e.imports {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		out.WriteString("import (\n")
		for _, p := range paths {
			fmt.Fprintf(&out, "\t%q\n", p)
		}
		out.WriteString(")\n\n")
	}

	if loggerInit != "" {
		out.WriteString(loggerInit)
		out.WriteString("\n\n")
	}

	out.WriteString(strings.Join(bodies, "\n\n"))
	out.WriteString("\n")
	return out.String()
}

// loggerInit emits the var + init() block wiring the configured SP-logger
// sink.
func (e *emitter) loggerInit() string {
	e.addImport(runtimeImport)
	var out strings.Builder
	fmt.Fprintf(&out, "var %s sqlrt.Logger\n\n", e.cfg.LoggerVar)
	out.WriteString("func init() {\n")
	switch e.cfg.Logger {
	case LoggerDB:
		out.WriteString("\t// Database sink needs a live *sql.DB; wire it here:\n")
		fmt.Fprintf(&out, "\t// %s = sqlrt.NewDBLogger(db, %q, %q)\n", e.cfg.LoggerVar, e.cfg.LoggerTable, e.cfg.Dialect)
		fmt.Fprintf(&out, "\t%s = sqlrt.NewSlogLogger(nil)\n", e.cfg.LoggerVar)
	case LoggerFile:
		if e.cfg.LoggerFile != "" {
			out.WriteString("\tvar err error\n")
			fmt.Fprintf(&out, "\t%s, err = sqlrt.NewFileLogger(%q, %q)\n", e.cfg.LoggerVar, e.cfg.LoggerFile, e.cfg.LoggerFormat)
			out.WriteString("\tif err != nil {\n")
			fmt.Fprintf(&out, "\t\t%s = sqlrt.NewSlogLogger(nil)\n", e.cfg.LoggerVar)
			out.WriteString("\t}\n")
		} else {
			fmt.Fprintf(&out, "\t%s = sqlrt.NewSlogLogger(nil)\n", e.cfg.LoggerVar)
		}
	case LoggerMulti:
		fmt.Fprintf(&out, "\t%s = sqlrt.NewMultiLogger(sqlrt.NewSlogLogger(nil))\n", e.cfg.LoggerVar)
	case LoggerNop:
		fmt.Fprintf(&out, "\t%s = sqlrt.NewNopLogger()\n", e.cfg.LoggerVar)
	default:
		fmt.Fprintf(&out, "\t%s = sqlrt.NewSlogLogger(nil)\n", e.cfg.LoggerVar)
	}
	out.WriteString("}")
	return out.String()
}

// lowerStatement is the single statement dispatch table.
func (e *emitter) lowerStatement(stmt ast.Statement) (string, error) {
	switch s := stmt.(type) {
	case *ast.CreateProcedureStatement:
		return e.lowerProcedure(s)
	case *ast.DeclareStatement:
		return e.lowerDeclare(s)
	case *ast.SetStatement:
		return e.lowerSet(s)
	case *ast.IfStatement:
		return e.lowerIf(s)
	case *ast.WhileStatement:
		return e.lowerWhile(s)
	case *ast.BeginEndBlock:
		return e.lowerBareBlock(s)
	case *ast.TryCatchStatement:
		return e.lowerTryCatch(s)
	case *ast.ReturnStatement:
		return e.lowerReturn(s)
	case *ast.BreakStatement:
		return "break", nil
	case *ast.ContinueStatement:
		return "continue", nil
	case *ast.PrintStatement:
		return e.lowerPrint(s)
	case *ast.RaiserrorStatement:
		return e.lowerRaiserror(s)
	case *ast.ThrowStatement:
		return e.lowerThrow(s)

	case *ast.SelectStatement:
		return e.lowerSelect(s)
	case *ast.InsertStatement:
		return e.lowerInsert(s)
	case *ast.UpdateStatement:
		return e.lowerUpdate(s)
	case *ast.DeleteStatement:
		return e.lowerDelete(s)
	case *ast.MergeStatement:
		return e.lowerMerge(s)
	case *ast.ExecStatement:
		return e.lowerExec(s)
	case *ast.WithStatement:
		return e.lowerWith(s)

	case *ast.BeginTransactionStatement:
		return e.lowerBeginTransaction(s)
	case *ast.CommitTransactionStatement:
		return e.lowerCommitTransaction(s)
	case *ast.RollbackTransactionStatement:
		return e.lowerRollbackTransaction(s)

	case *ast.CreateTableStatement:
		return e.lowerCreateTable(s)
	case *ast.DropTableStatement:
		return e.lowerDropTable(s)
	case *ast.TruncateTableStatement:
		return e.lowerTruncateTable(s)

	case *ast.DeclareCursorStatement:
		return e.lowerDeclareCursor(s)
	case *ast.OpenCursorStatement:
		return e.lowerOpenCursor(s)
	case *ast.FetchStatement:
		return e.lowerFetch(s)
	case *ast.CloseCursorStatement:
		return e.lowerCloseCursor(s)
	case *ast.DeallocateCursorStatement:
		return e.lowerDeallocateCursor(s)

	default:
		return "", &UnsupportedStatementError{
			Kind: fmt.Sprintf("%T", stmt),
			Hint: hintFor(fmt.Sprintf("%T", stmt)),
		}
	}
}

// hintFor maps an AST kind to a user-facing workaround.
func hintFor(kind string) string {
	switch {
	case strings.Contains(kind, "CreateView"), strings.Contains(kind, "CreateIndex"),
		strings.Contains(kind, "CreateSequence"), strings.Contains(kind, "AlterTable"):
		return "DDL belongs in migration tooling; use ddl-policy extract to collect it"
	case strings.Contains(kind, "CreateFunction"):
		return "inline table-valued functions are not supported yet; rewrite as a procedure"
	case strings.Contains(kind, "Pivot"), strings.Contains(kind, "Unpivot"):
		return "PIVOT/UNPIVOT is not supported; reshape the data in Go after fetching"
	default:
		return "this statement kind is not lowered"
	}
}

// lowerLines lowers one statement or block into indented lines within the
// current scope (no new scope is pushed).
func (e *emitter) lowerLines(stmt ast.Statement) ([]string, error) {
	var lines []string
	appendOne := func(s ast.Statement) error {
		code, err := e.lowerStatement(s)
		if err != nil {
			return err
		}
		if code != "" {
			lines = append(lines, e.pad()+code)
		}
		return nil
	}

	if block, ok := stmt.(*ast.BeginEndBlock); ok {
		for _, s := range block.Statements {
			if err := appendOne(s); err != nil {
				return nil, err
			}
		}
		return lines, nil
	}
	if err := appendOne(stmt); err != nil {
		return nil, err
	}
	return lines, nil
}

// lowerScopedBlock lowers stmt inside a fresh scope and appends the
// blank-assignment suppressions for locals the scope declared but never
// read. Suppressions land before a trailing return so they stay reachable.
func (e *emitter) lowerScopedBlock(stmt ast.Statement) (string, error) {
	e.scopes.push()
	lines, err := e.lowerLines(stmt)
	unused := e.scopes.pop()
	if err != nil {
		return "", err
	}

	if len(unused) > 0 {
		sort.Strings(unused)
		var sup []string
		for _, name := range unused {
			sup = append(sup, e.pad()+"_ = "+name)
		}
		lines = insertBeforeTrailingReturn(lines, sup)
	}

	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func insertBeforeTrailingReturn(lines, sup []string) []string {
	if n := len(lines); n > 0 {
		last := strings.TrimSpace(lines[n-1])
		if last == "return" || strings.HasPrefix(last, "return ") {
			out := append([]string{}, lines[:n-1]...)
			out = append(out, sup...)
			return append(out, lines[n-1])
		}
	}
	return append(lines, sup...)
}
