package transpile

import (
	"fmt"
	"strings"

	"github.com/ha1tch/tsqlparser/ast"
)

// The RPC back-end lowers DML to calls on the configured client handle. The
// method is inferred as <Verb><Entity>[By<Column>] from the statement shape;
// request fields come from WHERE equalities and SET/VALUES assignments.

// clientFor resolves the client handle for a table.
func (e *emitter) clientFor(table string) string {
	if c, ok := e.cfg.TableToClient[table]; ok {
		return c
	}
	if c, ok := e.cfg.TableToClient[strings.ToLower(table)]; ok {
		return c
	}
	if svc, ok := e.cfg.TableToService[table]; ok {
		return lowerCamel(svc) + "Client"
	}
	if svc, ok := e.cfg.TableToService[strings.ToLower(table)]; ok {
		return lowerCamel(svc) + "Client"
	}
	return e.cfg.RPCClientVar
}

// protoPackageFor resolves the request-type namespace for a table.
func (e *emitter) protoPackageFor(table string) string {
	svc := e.cfg.TableToService[table]
	if svc == "" {
		svc = e.cfg.TableToService[strings.ToLower(table)]
	}
	if svc != "" {
		if pkg, ok := e.cfg.ServiceToPackage[svc]; ok {
			return pkg
		}
		return strings.ToLower(strings.TrimSuffix(svc, "Service")) + "pb"
	}
	return e.cfg.ProtoPackage
}

func (e *emitter) requestType(pkg, method string) string {
	if pkg != "" {
		return pkg + "." + method + "Request"
	}
	return method + "Request"
}

// rpcCall emits the shared call shape: request literal, error check,
// response binding.
func (e *emitter) rpcCall(table, method string, fields []fieldValue, bind func(out *strings.Builder)) string {
	client := e.clientFor(table)
	pkg := e.protoPackageFor(table)

	var out strings.Builder
	fmt.Fprintf(&out, "// %s.%s\n%s", client, method, e.pad())
	op := e.assignOp("resp", "err")
	fmt.Fprintf(&out, "resp, err %s %s.%s(%s, &%s{\n", op, client, method, e.cfg.ContextArg, e.requestType(pkg, method))
	for _, f := range fields {
		fmt.Fprintf(&out, "%s\t%s: %s,\n", e.pad(), exportedName(f.column), f.value)
	}
	out.WriteString(e.pad() + "})\n")
	out.WriteString(e.pad() + "if err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")
	if bind != nil {
		bind(&out)
	} else {
		out.WriteString(e.pad() + "_ = resp")
	}
	return out.String()
}

func (e *emitter) lowerSelectRPC(s *ast.SelectStatement, table string) (string, error) {
	if table == "" {
		// SELECT of local variables only; nothing to call.
		return "// SELECT of local variables (no call emitted)", nil
	}

	method := e.inferReadMethod(s, table)
	fields := e.whereRequestFields(s.Where)
	assigns := selectAssignments(s)

	code := e.rpcCall(table, method, fields, func(out *strings.Builder) {
		if len(assigns) == 0 {
			out.WriteString(e.pad() + "_ = resp")
			return
		}
		out.WriteString(e.pad() + "if resp != nil {\n")
		for _, a := range assigns {
			fmt.Fprintf(out, "%s\t%s = resp.%s\n", e.pad(), a.varName, exportedName(a.column))
		}
		out.WriteString(e.pad() + "}")
	})
	return code, nil
}

func (e *emitter) lowerInsertRPC(s *ast.InsertStatement, table string) (string, error) {
	method := "Create" + exportedName(singularize(table))
	fields := e.insertValues(s)

	outputs := insertOutputTargets(s)
	code := e.rpcCall(table, method, fields, func(out *strings.Builder) {
		if len(outputs) == 0 {
			out.WriteString(e.pad() + "_ = resp")
			return
		}
		out.WriteString(e.pad() + "if resp != nil {\n")
		for _, target := range outputs {
			name := strings.TrimPrefix(target, "&")
			fmt.Fprintf(out, "%s\t%s = resp.%s\n", e.pad(), name, exportedName(name))
		}
		out.WriteString(e.pad() + "}")
	})
	return code, nil
}

func (e *emitter) lowerUpdateRPC(s *ast.UpdateStatement, table string) (string, error) {
	entity := exportedName(singularize(table))
	method := "Update" + entity
	if verb := actionVerbIn(e.updateSetValues(s)); verb != "" && !verbConflicts(verb, entity) {
		method = verb + entity
	}

	fields := e.updateSetValues(s)
	for _, wf := range whereFieldsOf(s.Where) {
		fields = append(fields, fieldValue{column: wf.column, value: wf.variable})
	}
	return e.rpcCall(table, method, fields, nil), nil
}

func (e *emitter) lowerDeleteRPC(s *ast.DeleteStatement, table string) (string, error) {
	method := "Delete" + exportedName(singularize(table))
	var fields []fieldValue
	for _, wf := range whereFieldsOf(s.Where) {
		fields = append(fields, fieldValue{column: wf.column, value: wf.variable})
	}
	return e.rpcCall(table, method, fields, nil), nil
}

// lowerExistsRPC maps EXISTS(SELECT ... WHERE k = @v) to Get<Entity>By<K>;
// truthy iff the call succeeds with a non-nil response.
func (e *emitter) lowerExistsRPC(s *ast.SelectStatement, table string) (string, error) {
	entity := exportedName(singularize(table))
	fields := whereFieldsOf(s.Where)

	method := "Get" + entity
	var reqFields []fieldValue
	if len(fields) > 0 {
		first := fields[0]
		if !strings.EqualFold(first.column, "id") {
			method += "By" + exportedName(first.column)
		}
		for _, f := range fields {
			reqFields = append(reqFields, fieldValue{column: f.column, value: f.variable})
		}
	}

	client := e.clientFor(table)
	pkg := e.protoPackageFor(table)

	var out strings.Builder
	out.WriteString("func() bool {\n")
	fmt.Fprintf(&out, "\t\tresp, err := %s.%s(%s, &%s{\n", client, method, e.cfg.ContextArg, e.requestType(pkg, method))
	for _, f := range reqFields {
		fmt.Fprintf(&out, "\t\t\t%s: %s,\n", exportedName(f.column), f.value)
	}
	out.WriteString("\t\t})\n")
	out.WriteString("\t\treturn err == nil && resp != nil\n")
	out.WriteString("\t}()")
	return out.String(), nil
}

// lowerExecRPC emits the call for an explicit procedure -> Service.Method
// mapping.
func (e *emitter) lowerExecRPC(s *ast.ExecStatement, procName, mapping string) (string, error) {
	service, method := "", mapping
	if i := strings.Index(mapping, "."); i >= 0 {
		service, method = mapping[:i], mapping[i+1:]
	}

	client := e.cfg.RPCClientVar
	pkg := e.cfg.ProtoPackage
	if service != "" {
		client = lowerCamel(service) + "Client"
		if p, ok := e.cfg.ServiceToPackage[service]; ok {
			pkg = p
		} else {
			pkg = strings.ToLower(strings.TrimSuffix(service, "Service")) + "pb"
		}
	}

	fields, err := e.execRequestFields(s)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "// EXEC %s -> %s\n%s", procName, mapping, e.pad())
	op := e.assignOp("resp", "err")
	fmt.Fprintf(&out, "resp, err %s %s.%s(%s, &%s{\n", op, client, method, e.cfg.ContextArg, e.requestType(pkg, method))
	for _, f := range fields {
		fmt.Fprintf(&out, "%s\t%s: %s,\n", e.pad(), exportedName(f.column), f.value)
	}
	out.WriteString(e.pad() + "})\n")
	out.WriteString(e.pad() + "if err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")
	out.WriteString(e.pad() + "_ = resp")
	return out.String(), nil
}

// lowerExecRPCInferred infers the method name from the procedure name.
func (e *emitter) lowerExecRPCInferred(s *ast.ExecStatement, procName string) (string, error) {
	method := exportedName(procName)
	method = strings.TrimSuffix(method, "ById")

	fields, err := e.execRequestFields(s)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "// EXEC %s -> %s (inferred)\n%s", procName, method, e.pad())
	op := e.assignOp("resp", "err")
	fmt.Fprintf(&out, "resp, err %s %s.%s(%s, &%s{\n", op, e.cfg.RPCClientVar, method, e.cfg.ContextArg, e.requestType(e.cfg.ProtoPackage, method))
	for _, f := range fields {
		fmt.Fprintf(&out, "%s\t%s: %s,\n", e.pad(), exportedName(f.column), f.value)
	}
	out.WriteString(e.pad() + "})\n")
	out.WriteString(e.pad() + "if err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")
	out.WriteString(e.pad() + "_ = resp")
	return out.String(), nil
}

func (e *emitter) execRequestFields(s *ast.ExecStatement) ([]fieldValue, error) {
	var fields []fieldValue
	for _, p := range s.Parameters {
		if p.Name == "" {
			continue
		}
		val, err := e.lowerExpr(p.Value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fieldValue{column: strings.TrimPrefix(p.Name, "@"), value: val})
	}
	return fields, nil
}

// inferReadMethod picks Get/List/Find for a SELECT.
func (e *emitter) inferReadMethod(s *ast.SelectStatement, table string) string {
	entity := exportedName(singularize(table))
	fields := whereFieldsOf(s.Where)

	if len(fields) == 0 {
		return "List" + pluralize(exportedName(table))
	}
	if len(fields) == 1 {
		col := strings.ToLower(fields[0].column)
		if col == "id" || strings.HasSuffix(col, "_id") {
			return "Get" + entity
		}
		return "Get" + entity + "By" + exportedName(fields[0].column)
	}
	return "Find" + pluralize(exportedName(table))
}

// whereRequestFields renders WHERE equalities as request fields.
func (e *emitter) whereRequestFields(where ast.Expression) []fieldValue {
	var fields []fieldValue
	for _, wf := range whereFieldsOf(where) {
		fields = append(fields, fieldValue{column: wf.column, value: wf.variable})
	}
	return fields
}

// lowerExistsMock is the mock-mode EXISTS: truthy iff the Get-style lookup
// returns a record.
func (e *emitter) lowerExistsMock(s *ast.SelectStatement, table string) (string, error) {
	e.addImport("github.com/sqlport/sqlport/mockrpc")
	entity := exportedName(singularize(table))
	fields := whereFieldsOf(s.Where)

	method := "Get" + entity
	if len(fields) > 0 && !strings.EqualFold(fields[0].column, "id") {
		method += "By" + exportedName(fields[0].column)
	}

	var out strings.Builder
	out.WriteString("func() bool {\n")
	fmt.Fprintf(&out, "\t\tresp, err := %s.Call(%s, mockrpc.Request{Method: %q, Entity: %q, Key: map[string]any{",
		e.cfg.MockStoreVar, e.cfg.ContextArg, method, table)
	for i, f := range fields {
		if i > 0 {
			out.WriteString(", ")
		}
		fmt.Fprintf(&out, "%q: %s", exportedName(f.column), f.variable)
	}
	out.WriteString("}})\n")
	out.WriteString("\t\treturn err == nil && resp != nil && len(resp.Records) > 0\n")
	out.WriteString("\t}()")
	return out.String(), nil
}

// Mock back-end: the same inference, against the mockrpc server handle.

func (e *emitter) lowerSelectMock(s *ast.SelectStatement, table string) (string, error) {
	if table == "" {
		return "// SELECT of local variables (no call emitted)", nil
	}
	method := e.inferReadMethod(s, table)
	fields := e.whereRequestFields(s.Where)
	assigns := selectAssignments(s)

	var out strings.Builder
	op := e.assignOp("resp", "err")
	fmt.Fprintf(&out, "resp, err %s %s.Call(%s, mockrpc.Request{Method: %q, Entity: %q, Key: map[string]any{",
		op, e.cfg.MockStoreVar, e.cfg.ContextArg, method, table)
	e.addImport("github.com/sqlport/sqlport/mockrpc")
	for i, f := range fields {
		if i > 0 {
			out.WriteString(", ")
		}
		fmt.Fprintf(&out, "%q: %s", exportedName(f.column), f.value)
	}
	out.WriteString("}})\n")
	out.WriteString(e.pad() + "if err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")
	if len(assigns) > 0 {
		out.WriteString(e.pad() + "if len(resp.Records) > 0 {\n")
		for _, a := range assigns {
			fmt.Fprintf(&out, "%s\t%s, _ = resp.Records[0][%q].(%s)\n", e.pad(), a.varName, exportedName(a.column), e.assignType(a.varName))
		}
		out.WriteString(e.pad() + "}")
	} else {
		out.WriteString(e.pad() + "_ = resp")
	}
	return out.String(), nil
}

// assignType looks up the declared Go type of a variable for mock record
// extraction.
func (e *emitter) assignType(varName string) string {
	if ti := e.scopes.lookup(varName); ti != nil {
		return ti.goType
	}
	return "interface{}"
}

func (e *emitter) lowerWriteMock(verb, table string, values []fieldValue, where []whereEq) (string, error) {
	e.addImport("github.com/sqlport/sqlport/mockrpc")
	method := verb + exportedName(singularize(table))

	var out strings.Builder
	op := e.assignOp("resp", "err")
	fmt.Fprintf(&out, "resp, err %s %s.Call(%s, mockrpc.Request{Method: %q, Entity: %q",
		op, e.cfg.MockStoreVar, e.cfg.ContextArg, method, table)
	if len(where) > 0 {
		out.WriteString(", Key: map[string]any{")
		for i, wf := range where {
			if i > 0 {
				out.WriteString(", ")
			}
			fmt.Fprintf(&out, "%q: %s", exportedName(wf.column), wf.variable)
		}
		out.WriteString("}")
	}
	if len(values) > 0 {
		out.WriteString(", Values: map[string]any{")
		for i, f := range values {
			if i > 0 {
				out.WriteString(", ")
			}
			fmt.Fprintf(&out, "%q: %s", exportedName(f.column), f.value)
		}
		out.WriteString("}")
	}
	out.WriteString("})\n")
	out.WriteString(e.pad() + "if err != nil {\n")
	out.WriteString(e.pad() + "\t" + e.errorReturn() + "\n")
	out.WriteString(e.pad() + "}\n")
	if e.usesRowCount {
		out.WriteString(e.pad() + "rowsAffected = int32(resp.Affected)")
	} else {
		out.WriteString(e.pad() + "_ = resp")
	}
	return out.String(), nil
}

// Action-verb detection for state-transition UPDATEs
// (SET ApprovalStatus = 'Approved' becomes ApproveOrder, not UpdateOrder).

var actionVerbs = []struct {
	verb     string
	patterns []string
}{
	{"Deactivate", []string{"deactivate", "deactivated", "deactivation"}},
	{"Acknowledge", []string{"acknowledge", "acknowledged", "acknowledgement"}},
	{"Approve", []string{"approve", "approved", "approval"}},
	{"Reject", []string{"reject", "rejected", "rejection"}},
	{"Authorize", []string{"authorize", "authorized", "authorization"}},
	{"Suspend", []string{"suspend", "suspended", "suspension"}},
	{"Activate", []string{"activate", "activated", "activation"}},
	{"Cancel", []string{"cancel", "cancelled", "canceled", "cancellation"}},
	{"Complete", []string{"complete", "completed", "completion"}},
	{"Escalate", []string{"escalate", "escalated", "escalation"}},
	{"Validate", []string{"validate", "validated", "validation"}},
	{"Verify", []string{"verify", "verified", "verification"}},
	{"Transfer", []string{"transfer", "transferred"}},
	{"Submit", []string{"submit", "submitted", "submission"}},
}

func extractActionVerb(name string) string {
	lower := strings.ToLower(name)
	for _, av := range actionVerbs {
		for _, p := range av.patterns {
			if strings.Contains(lower, p) {
				return av.verb
			}
		}
	}
	return ""
}

func actionVerbIn(fields []fieldValue) string {
	for _, f := range fields {
		if v := extractActionVerb(f.column); v != "" {
			return v
		}
		if v := extractActionVerb(f.value); v != "" {
			return v
		}
	}
	return ""
}

// verbConflicts avoids TransferTransfer-style method names.
func verbConflicts(verb, entity string) bool {
	v := strings.ToLower(verb)
	en := strings.ToLower(entity)
	return v == en || strings.HasPrefix(en, v)
}
