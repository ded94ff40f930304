package transpile

import (
	"fmt"
	"strings"

	"github.com/ha1tch/tsqlparser/ast"
)

// lowerExpr lowers one expression bottom-up, using the analyzer's type
// descriptors to pick between native operators and method-call dispatch.
func (e *emitter) lowerExpr(expr ast.Expression) (string, error) {
	if expr == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch x := expr.(type) {
	case *ast.Identifier:
		return goName(x.Value), nil

	case *ast.QualifiedIdentifier:
		var parts []string
		for _, p := range x.Parts {
			parts = append(parts, goName(p.Value))
		}
		return strings.Join(parts, "."), nil

	case *ast.Variable:
		switch strings.ToUpper(x.Name) {
		case "@@ROWCOUNT":
			return "rowsAffected", nil
		case "@@IDENTITY":
			return e.lowerScopeIdentity()
		case "@@ERROR":
			return "0 /* @@ERROR: check err != nil instead */", nil
		case "@@TRANCOUNT":
			return "0 /* @@TRANCOUNT: transaction state is explicit in Go */", nil
		}
		name := goName(x.Name)
		e.scopes.markRead(x.Name)
		return name, nil

	case *ast.IntegerLiteral:
		return fmt.Sprintf("%d", x.Value), nil

	case *ast.FloatLiteral:
		return fmt.Sprintf("%v", x.Value), nil

	case *ast.StringLiteral:
		return fmt.Sprintf("%q", x.Value), nil

	case *ast.NullLiteral:
		return "nil", nil

	case *ast.BinaryLiteral:
		return fmt.Sprintf("[]byte(%q)", x.Value), nil

	case *ast.MoneyLiteral:
		e.addImport("github.com/shopspring/decimal")
		return fmt.Sprintf("decimal.RequireFromString(%q)", strings.TrimPrefix(x.Value, "$")), nil

	case *ast.PrefixExpression:
		return e.lowerPrefix(x)

	case *ast.InfixExpression:
		return e.lowerInfix(x)

	case *ast.FunctionCall:
		return e.lowerCall(x)

	case *ast.CaseExpression:
		return e.lowerCase(x)

	case *ast.CastExpression:
		return e.lowerCast(x.Expression, x.TargetType)

	case *ast.ConvertExpression:
		return e.lowerCast(x.Expression, x.TargetType)

	case *ast.IsNullExpression:
		return e.lowerIsNull(x)

	case *ast.BetweenExpression:
		return e.lowerBetween(x)

	case *ast.InExpression:
		return e.lowerIn(x)

	case *ast.TupleExpression:
		var parts []string
		for _, el := range x.Elements {
			s, err := e.lowerExpr(el)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, ", ") + ")", nil

	case *ast.SubqueryExpression:
		return e.lowerSubqueryExpr(x)

	case *ast.ExistsExpression:
		return e.lowerExists(x)

	case *ast.MethodCallExpression:
		return e.lowerMethodCall(x)

	default:
		return "", &UnsupportedStatementError{
			Kind: fmt.Sprintf("%T", expr),
			Hint: exprHint(fmt.Sprintf("%T", expr)),
		}
	}
}

func exprHint(kind string) string {
	switch {
	case strings.Contains(kind, "Over"):
		return "window functions are not lowered; keep the query in the database or aggregate in Go"
	case strings.Contains(kind, "NextValueFor"):
		return "sequences are not lowered; use NEWID or LastInsertId instead"
	default:
		return "this expression kind is not lowered"
	}
}

// lowerCondition lowers an expression used where Go requires a bool,
// coercing bare numeric values to != 0.
func (e *emitter) lowerCondition(expr ast.Expression) (string, error) {
	code, err := e.lowerExpr(expr)
	if err != nil {
		return "", err
	}
	switch expr.(type) {
	case *ast.Variable, *ast.Identifier, *ast.IntegerLiteral:
		ti := e.inferType(expr)
		if ti.isNumeric {
			return "(" + code + " != 0)", nil
		}
	}
	return code, nil
}

func (e *emitter) lowerPrefix(x *ast.PrefixExpression) (string, error) {
	right, err := e.lowerExpr(x.Right)
	if err != nil {
		return "", err
	}
	op := x.Operator
	switch strings.ToUpper(op) {
	case "NOT":
		op = "!"
	case "~":
		op = "^"
	}
	if op == "-" && e.inferType(x.Right).isDecimal {
		return right + ".Neg()", nil
	}
	return "(" + op + right + ")", nil
}

func (e *emitter) lowerInfix(x *ast.InfixExpression) (string, error) {
	left, err := e.lowerExpr(x.Left)
	if err != nil {
		return "", err
	}
	right, err := e.lowerExpr(x.Right)
	if err != nil {
		return "", err
	}

	lt := e.inferType(x.Left)
	rt := e.inferType(x.Right)
	op := strings.ToUpper(x.Operator)

	// BIT idioms: @Flag = 1 is the flag itself; 1 - @Flag is a toggle.
	if op == "=" || op == "<>" || op == "!=" {
		if code, ok := bitComparison(lt, rt, left, right, x, op); ok {
			return code, nil
		}
		// String NULL comparisons become empty-string checks.
		if lt.isString {
			if _, isNull := x.Right.(*ast.NullLiteral); isNull {
				if op == "=" {
					return "(" + left + ` == "")`, nil
				}
				return "(" + left + ` != "")`, nil
			}
		}
		if rt.isString {
			if _, isNull := x.Left.(*ast.NullLiteral); isNull {
				if op == "=" {
					return "(" + right + ` == "")`, nil
				}
				return "(" + right + ` != "")`, nil
			}
		}
	}

	if lt.isDecimal || rt.isDecimal {
		return e.lowerDecimalInfix(left, right, x.Left, x.Right, lt, rt, op)
	}

	if op == "-" {
		if lit, ok := x.Left.(*ast.IntegerLiteral); ok && lit.Value == 1 && rt.isBool {
			return "!" + right, nil
		}
	}

	// Mixed typed integers need an explicit widening; untyped literals
	// adapt on their own.
	arithmetic := op == "+" || op == "-" || op == "*" || op == "/" || op == "%"
	if arithmetic && lt.isNumeric && rt.isNumeric &&
		!isIntLiteral(x.Left) && !isIntLiteral(x.Right) && lt.goType != rt.goType {
		target := widerNumeric(lt.goType, rt.goType)
		if target != lt.goType {
			left = fmt.Sprintf("%s(%s)", target, left)
		}
		if target != rt.goType {
			right = fmt.Sprintf("%s(%s)", target, right)
		}
	}

	// String + with a numeric side means concatenation of the rendered
	// value.
	if op == "+" && (lt.isString || rt.isString) && !(lt.isString && rt.isString) {
		e.addImport("fmt")
		if lt.isString {
			right = fmt.Sprintf("fmt.Sprintf(\"%%v\", %s)", right)
		} else {
			left = fmt.Sprintf("fmt.Sprintf(\"%%v\", %s)", left)
		}
		return "(" + left + " + " + right + ")", nil
	}

	if lt.isDateTime || rt.isDateTime {
		switch op {
		case "=":
			return fmt.Sprintf("%s.Equal(%s)", left, right), nil
		case "<>", "!=":
			return fmt.Sprintf("!%s.Equal(%s)", left, right), nil
		case "<":
			return fmt.Sprintf("%s.Before(%s)", left, right), nil
		case ">":
			return fmt.Sprintf("%s.After(%s)", left, right), nil
		case "<=":
			return fmt.Sprintf("!%s.After(%s)", left, right), nil
		case ">=":
			return fmt.Sprintf("!%s.Before(%s)", left, right), nil
		}
	}

	if op == "AND" || op == "OR" {
		lc, err := e.lowerCondition(x.Left)
		if err != nil {
			return "", err
		}
		rc, err := e.lowerCondition(x.Right)
		if err != nil {
			return "", err
		}
		left, right = lc, rc
	}

	return "(" + left + " " + mapOperator(op) + " " + right + ")", nil
}

func bitComparison(lt, rt *typeInfo, left, right string, x *ast.InfixExpression, op string) (string, bool) {
	if lt.isBool {
		if lit, ok := x.Right.(*ast.IntegerLiteral); ok {
			if lit.Value == 1 {
				if op == "=" {
					return left, true
				}
				return "!" + left, true
			}
			if lit.Value == 0 {
				if op == "=" {
					return "!" + left, true
				}
				return left, true
			}
		}
	}
	if rt.isBool {
		if lit, ok := x.Left.(*ast.IntegerLiteral); ok {
			if lit.Value == 1 {
				if op == "=" {
					return right, true
				}
				return "!" + right, true
			}
			if lit.Value == 0 {
				if op == "=" {
					return "!" + right, true
				}
				return right, true
			}
		}
	}
	return "", false
}

// lowerDecimalInfix dispatches decimal arithmetic and comparison through the
// decimal library; native operators never touch monetary values.
func (e *emitter) lowerDecimalInfix(left, right string, leftExpr, rightExpr ast.Expression, lt, rt *typeInfo, op string) (string, error) {
	e.addImport("github.com/shopspring/decimal")

	if !lt.isDecimal {
		left = e.coerceDecimal(leftExpr, left)
	}
	if !rt.isDecimal {
		right = e.coerceDecimal(rightExpr, right)
	}

	switch op {
	case "+":
		return fmt.Sprintf("%s.Add(%s)", left, right), nil
	case "-":
		return fmt.Sprintf("%s.Sub(%s)", left, right), nil
	case "*":
		return fmt.Sprintf("%s.Mul(%s)", left, right), nil
	case "/":
		return fmt.Sprintf("%s.Div(%s)", left, right), nil
	case "%":
		return fmt.Sprintf("%s.Mod(%s)", left, right), nil
	case "=":
		return fmt.Sprintf("%s.Equal(%s)", left, right), nil
	case "<>", "!=":
		return fmt.Sprintf("!%s.Equal(%s)", left, right), nil
	case "<":
		return fmt.Sprintf("%s.LessThan(%s)", left, right), nil
	case "<=":
		return fmt.Sprintf("%s.LessThanOrEqual(%s)", left, right), nil
	case ">":
		return fmt.Sprintf("%s.GreaterThan(%s)", left, right), nil
	case ">=":
		return fmt.Sprintf("%s.GreaterThanOrEqual(%s)", left, right), nil
	default:
		return "(" + left + " " + mapOperator(op) + " " + right + ")", nil
	}
}

// coerceDecimal wraps a non-decimal operand in the matching constructor.
func (e *emitter) coerceDecimal(expr ast.Expression, code string) string {
	e.addImport("github.com/shopspring/decimal")
	ti := e.inferType(expr)
	if ti.isDecimal {
		return code
	}
	if _, ok := expr.(*ast.IntegerLiteral); ok {
		return "decimal.NewFromInt(" + code + ")"
	}
	if _, ok := expr.(*ast.FloatLiteral); ok {
		return "decimal.NewFromFloat(" + code + ")"
	}
	if ti.isNumeric {
		switch ti.goType {
		case "int32", "int16", "uint8":
			return "decimal.NewFromInt(int64(" + code + "))"
		case "int64":
			return "decimal.NewFromInt(" + code + ")"
		case "float64":
			return "decimal.NewFromFloat(" + code + ")"
		}
	}
	return "decimal.NewFromFloat(float64(" + code + "))"
}

// coerceBool maps BIT 0/1 semantics onto Go bool.
func (e *emitter) coerceBool(expr ast.Expression, code string) string {
	if lit, ok := expr.(*ast.IntegerLiteral); ok {
		switch lit.Value {
		case 0:
			return "false"
		case 1:
			return "true"
		}
		return "(" + code + " != 0)"
	}
	ti := e.inferType(expr)
	if ti.isBool {
		return code
	}
	if ti.isNumeric {
		return "(" + code + " != 0)"
	}
	return code
}

func isIntLiteral(expr ast.Expression) bool {
	if _, ok := expr.(*ast.IntegerLiteral); ok {
		return true
	}
	if p, ok := expr.(*ast.PrefixExpression); ok && p.Operator == "-" {
		_, ok := p.Right.(*ast.IntegerLiteral)
		return ok
	}
	return false
}

func mapOperator(op string) string {
	switch strings.ToUpper(op) {
	case "AND":
		return "&&"
	case "OR":
		return "||"
	case "=":
		return "=="
	case "<>", "!=":
		return "!="
	case "!<":
		return ">="
	case "!>":
		return "<="
	default:
		return op
	}
}

// inferType computes the descriptor for an expression per the bottom-up
// typing rules.
func (e *emitter) inferType(expr ast.Expression) *typeInfo {
	switch x := expr.(type) {
	case *ast.Variable:
		if ti := e.scopes.lookup(x.Name); ti != nil {
			return ti
		}
	case *ast.Identifier:
		if ti := e.scopes.lookup(x.Value); ti != nil {
			return ti
		}
	case *ast.IntegerLiteral:
		return &typeInfo{goType: "int64", isNumeric: true}
	case *ast.FloatLiteral:
		return &typeInfo{goType: "float64", isNumeric: true}
	case *ast.StringLiteral:
		return &typeInfo{goType: "string", isString: true}
	case *ast.MoneyLiteral:
		return decimalType()
	case *ast.NullLiteral:
		return opaqueType
	case *ast.PrefixExpression:
		return e.inferType(x.Right)
	case *ast.InfixExpression:
		op := strings.ToUpper(x.Operator)
		switch op {
		case "=", "<>", "!=", "<", "<=", ">", ">=", "AND", "OR", "!<", "!>":
			return &typeInfo{goType: "bool", isBool: true}
		}
		lt := e.inferType(x.Left)
		rt := e.inferType(x.Right)
		if lt.isDecimal || rt.isDecimal {
			return decimalType()
		}
		if lt.goType == "float64" || rt.goType == "float64" {
			return &typeInfo{goType: "float64", isNumeric: true}
		}
		if lt.isNumeric && rt.isNumeric {
			if isIntLiteral(x.Left) && !isIntLiteral(x.Right) {
				return rt
			}
			if isIntLiteral(x.Right) && !isIntLiteral(x.Left) {
				return lt
			}
			return &typeInfo{goType: widerNumeric(lt.goType, rt.goType), isNumeric: true}
		}
		if lt.isString && rt.isString {
			return lt
		}
	case *ast.FunctionCall:
		if id, ok := x.Function.(*ast.Identifier); ok {
			name := strings.ToUpper(id.Value)
			switch name {
			case "ABS", "CEILING", "CEIL", "FLOOR", "ROUND", "POWER", "SQRT":
				if len(x.Arguments) > 0 && e.inferType(x.Arguments[0]).isDecimal {
					return decimalType()
				}
			case "ISNULL", "COALESCE":
				if len(x.Arguments) > 0 {
					return e.inferType(x.Arguments[0])
				}
			}
			return builtinReturnType(name)
		}
	case *ast.CastExpression:
		return descriptorFor(x.TargetType)
	case *ast.ConvertExpression:
		return descriptorFor(x.TargetType)
	case *ast.CaseExpression:
		return e.inferCaseType(x)
	case *ast.MethodCallExpression:
		return e.inferMethodType(x)
	}
	return opaqueType
}

func builtinReturnType(name string) *typeInfo {
	switch name {
	case "LEN", "DATALENGTH", "CHARINDEX", "PATINDEX", "ASCII", "UNICODE", "ISJSON":
		return &typeInfo{goType: "int32", isNumeric: true}
	case "UPPER", "LOWER", "LTRIM", "RTRIM", "TRIM", "SUBSTRING", "LEFT", "RIGHT",
		"REPLACE", "REPLICATE", "REVERSE", "CONCAT", "CONCAT_WS", "CHAR", "NCHAR",
		"NEWID", "JSON_VALUE", "JSON_QUERY", "JSON_MODIFY":
		return &typeInfo{goType: "string", isString: true}
	case "ABS", "CEILING", "CEIL", "FLOOR", "ROUND", "POWER", "SQRT":
		return &typeInfo{goType: "float64", isNumeric: true}
	case "SIGN":
		return &typeInfo{goType: "int32", isNumeric: true}
	case "GETDATE", "SYSDATETIME", "GETUTCDATE", "SYSUTCDATETIME", "CURRENT_TIMESTAMP", "DATEADD":
		return &typeInfo{goType: "time.Time", isDateTime: true}
	case "DATEDIFF", "DATEPART", "YEAR", "MONTH", "DAY":
		return &typeInfo{goType: "int32", isNumeric: true}
	case "COUNT", "ROW_NUMBER", "RANK", "DENSE_RANK", "NTILE":
		return &typeInfo{goType: "int64", isNumeric: true}
	case "SUM", "AVG", "MIN", "MAX":
		return decimalType()
	}
	return opaqueType
}

func (e *emitter) inferCaseType(c *ast.CaseExpression) *typeInfo {
	if len(c.WhenClauses) > 0 {
		if ti := e.inferType(c.WhenClauses[0].Result); ti != opaqueType {
			return ti
		}
	}
	if c.ElseClause != nil {
		return e.inferType(c.ElseClause)
	}
	return opaqueType
}

func (e *emitter) inferMethodType(m *ast.MethodCallExpression) *typeInfo {
	switch strings.ToLower(m.MethodName) {
	case "value":
		if len(m.Arguments) >= 2 {
			if str, ok := m.Arguments[1].(*ast.StringLiteral); ok {
				return xmlValueType(str.Value)
			}
		}
		return &typeInfo{goType: "string", isString: true}
	case "exist":
		return &typeInfo{goType: "bool", isBool: true}
	case "query", "modify":
		return &typeInfo{goType: "string", isString: true}
	case "nodes":
		return &typeInfo{goType: "[]map[string]string"}
	}
	return opaqueType
}

func xmlValueType(sqlType string) *typeInfo {
	upper := strings.ToUpper(strings.Trim(sqlType, "'\""))
	switch {
	case strings.HasPrefix(upper, "BIGINT"):
		return &typeInfo{goType: "int64", isNumeric: true}
	case strings.HasPrefix(upper, "INT"), strings.HasPrefix(upper, "SMALLINT"), strings.HasPrefix(upper, "TINYINT"):
		return &typeInfo{goType: "int32", isNumeric: true}
	case strings.HasPrefix(upper, "BIT"):
		return &typeInfo{goType: "bool", isBool: true}
	case strings.HasPrefix(upper, "DECIMAL"), strings.HasPrefix(upper, "NUMERIC"), strings.HasPrefix(upper, "MONEY"):
		return decimalType()
	case strings.HasPrefix(upper, "FLOAT"), strings.HasPrefix(upper, "REAL"):
		return &typeInfo{goType: "float64", isNumeric: true}
	case strings.HasPrefix(upper, "DATE"):
		return &typeInfo{goType: "time.Time", isDateTime: true}
	default:
		return &typeInfo{goType: "string", isString: true}
	}
}
