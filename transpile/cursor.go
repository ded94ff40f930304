package transpile

import (
	"fmt"
	"strings"

	"github.com/ha1tch/tsqlparser/ast"
)

// Cursors compile down to database/sql row iteration. DECLARE stores the
// query; OPEN runs it; FETCH records the target variables; the
// WHILE @@FETCH_STATUS = 0 loop folds into for rows.Next(); CLOSE and
// DEALLOCATE release the iterator.

type cursorState struct {
	name      string
	query     *ast.SelectStatement
	fetchVars []*ast.Variable
	rowsVar   string
	open      bool
}

func (e *emitter) lowerDeclareCursor(s *ast.DeclareCursorStatement) (string, error) {
	name := s.Name.Value
	e.cursors[name] = &cursorState{
		name:    name,
		query:   s.ForSelect,
		rowsVar: goName(name) + "Rows",
	}
	e.res.warn(DiagCursorUsed, "cursor %s lowered to row iteration", name)
	// The query runs on OPEN.
	return fmt.Sprintf("// DECLARE CURSOR %s (query runs on OPEN)", name), nil
}

func (e *emitter) lowerOpenCursor(s *ast.OpenCursorStatement) (string, error) {
	name := s.CursorName.Value
	cur, ok := e.cursors[name]
	if !ok {
		return "", fmt.Errorf("cursor %s not declared", name)
	}
	cur.open = true
	e.activeCursor = name
	e.hasDML = true

	query, args := e.serializeQuery(cur.query.String())

	var out strings.Builder
	fmt.Fprintf(&out, "// OPEN %s\n%s", name, e.pad())
	op := e.assignOp(cur.rowsVar, "err")
	fmt.Fprintf(&out, "%s, err %s %s.QueryContext(%s, %q%s)\n", cur.rowsVar, op, e.storeHandle(), e.cfg.ContextArg, query, argList(args))
	out.WriteString(e.pad() + "if err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")
	fmt.Fprintf(&out, "%sdefer %s.Close()", e.pad(), cur.rowsVar)
	return out.String(), nil
}

func (e *emitter) lowerFetch(s *ast.FetchStatement) (string, error) {
	name := ""
	if s.CursorName != nil {
		name = s.CursorName.Value
	}
	cur, ok := e.cursors[name]
	if !ok {
		return "", fmt.Errorf("cursor %s not declared", name)
	}
	cur.fetchVars = s.IntoVars
	// Both the priming FETCH and the in-loop FETCH are absorbed by the
	// rows.Next() loop.
	return fmt.Sprintf("// FETCH %s handled by the rows.Next() loop", name), nil
}

func (e *emitter) lowerCloseCursor(s *ast.CloseCursorStatement) (string, error) {
	name := s.CursorName.Value
	if cur, ok := e.cursors[name]; ok {
		cur.open = false
	}
	return fmt.Sprintf("// CLOSE %s (deferred Close releases the rows)", name), nil
}

func (e *emitter) lowerDeallocateCursor(s *ast.DeallocateCursorStatement) (string, error) {
	name := s.CursorName.Value
	delete(e.cursors, name)
	if e.activeCursor == name {
		e.activeCursor = ""
	}
	return fmt.Sprintf("// DEALLOCATE %s", name), nil
}

// isFetchStatusLoop recognizes WHILE @@FETCH_STATUS = 0 including compound
// AND conditions.
func (e *emitter) isFetchStatusLoop(expr ast.Expression) bool {
	infix, ok := expr.(*ast.InfixExpression)
	if !ok {
		return false
	}
	if strings.EqualFold(infix.Operator, "AND") {
		return e.isFetchStatusLoop(infix.Left) || e.isFetchStatusLoop(infix.Right)
	}
	return isFetchStatusEq(infix)
}

func isFetchStatusEq(infix *ast.InfixExpression) bool {
	if infix.Operator != "=" {
		return false
	}
	if v, ok := infix.Left.(*ast.Variable); ok && strings.EqualFold(v.Name, "@@FETCH_STATUS") {
		lit, ok := infix.Right.(*ast.IntegerLiteral)
		return ok && lit.Value == 0
	}
	if lit, ok := infix.Left.(*ast.IntegerLiteral); ok && lit.Value == 0 {
		v, ok := infix.Right.(*ast.Variable)
		return ok && strings.EqualFold(v.Name, "@@FETCH_STATUS")
	}
	return false
}

// residualCondition strips the fetch-status check out of a compound loop
// condition; whatever remains becomes an in-loop break guard.
func (e *emitter) residualCondition(expr ast.Expression) ast.Expression {
	infix, ok := expr.(*ast.InfixExpression)
	if !ok {
		return nil
	}
	if strings.EqualFold(infix.Operator, "AND") {
		left := e.residualOf(infix.Left)
		right := e.residualOf(infix.Right)
		switch {
		case left == nil:
			return right
		case right == nil:
			return left
		default:
			return &ast.InfixExpression{Left: left, Operator: "AND", Right: right}
		}
	}
	if isFetchStatusEq(infix) {
		return nil
	}
	return expr
}

func (e *emitter) residualOf(expr ast.Expression) ast.Expression {
	if infix, ok := expr.(*ast.InfixExpression); ok {
		if isFetchStatusEq(infix) {
			return nil
		}
		if strings.EqualFold(infix.Operator, "AND") {
			return e.residualCondition(infix)
		}
	}
	return expr
}

// lowerCursorLoop folds WHILE @@FETCH_STATUS = 0 into the rows iteration:
// Next() is the predicate, Scan fills the recorded FETCH targets, and the
// FETCH statements inside the body disappear.
func (e *emitter) lowerCursorLoop(whileStmt *ast.WhileStatement) (string, error) {
	if e.activeCursor == "" {
		return "", fmt.Errorf("WHILE @@FETCH_STATUS loop without an open cursor")
	}
	cur := e.cursors[e.activeCursor]
	if cur == nil {
		return "", fmt.Errorf("cursor %s not found", e.activeCursor)
	}

	var targets []string
	for _, v := range cur.fetchVars {
		name := goName(v.Name)
		e.scopes.markRead(v.Name)
		targets = append(targets, "&"+name)
	}
	scan := strings.Join(targets, ", ")
	if scan == "" {
		scan = "/* no FETCH INTO targets recorded */"
	}

	var out strings.Builder
	fmt.Fprintf(&out, "for %s.Next() {\n", cur.rowsVar)
	e.indent++
	fmt.Fprintf(&out, "%sif err := %s.Scan(%s); err != nil {\n", e.pad(), cur.rowsVar, scan)
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")

	if residual := e.residualCondition(whileStmt.Condition); residual != nil {
		cond, err := e.lowerCondition(residual)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&out, "%sif !(%s) {\n%s\tbreak\n%s}\n", e.pad(), cond, e.pad(), e.pad())
	}

	body, err := e.lowerCursorBody(whileStmt.Body)
	if err != nil {
		return "", err
	}
	out.WriteString(body)

	e.indent--
	out.WriteString(e.pad() + "}")
	return out.String(), nil
}

// lowerCursorBody lowers the loop body with FETCH statements filtered out,
// inside its own scope.
func (e *emitter) lowerCursorBody(stmt ast.Statement) (string, error) {
	e.scopes.push()
	defer e.scopes.pop()

	var lines []string
	appendStmt := func(s ast.Statement) error {
		if _, isFetch := s.(*ast.FetchStatement); isFetch {
			return nil
		}
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
			if err := appendStmt(s); err != nil {
				return "", err
			}
		}
	} else if err := appendStmt(stmt); err != nil {
		return "", err
	}

	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}
