package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqlport/sqlport/protocat"
)

// Weights for the three matching signals. They sum to 1 so the combined
// confidence stays in [0,1].
const (
	weightName   = 0.5
	weightParams = 0.3
	weightResult = 0.2

	// Methods scoring below this against every procedure stay unmapped.
	confidenceFloor = 0.3
)

// Binding links one proto field to one procedure-side name.
type Binding struct {
	ProtoField string
	ProtoType  string
	SQLName    string // parameter name or result column
	GoType     string
}

// Mapping is the chosen procedure for one RPC method, with field-level
// bindings and free-form notes on anything uncertain.
type Mapping struct {
	Service    string
	Method     string
	Class      protocat.OperationClass
	Procedure  *Procedure
	Confidence float64

	RequestBindings  []Binding // request field -> parameter
	ResponseBindings []Binding // response field <- result column
	Notes            []string
}

// HighConfidence reports a confidence of at least 0.8.
func (m *Mapping) HighConfidence() bool { return m.Confidence >= 0.8 }

// ServiceStats summarizes mapping coverage for one service.
type ServiceStats struct {
	Service  string
	Methods  int
	Mapped   int
	Mappings []*Mapping
}

// Stats aggregates coverage across all services.
type Stats struct {
	Methods  int
	Mapped   int
	Unmapped int
	High     int // >= 0.8
	Medium   int // [0.5, 0.8)
	Low      int // < 0.5
	Services map[string]*ServiceStats
}

// Matcher scores every RPC method of a catalog against a procedure
// inventory. The result is deterministic for a given input: candidate order
// is fixed, and ties break on ascending procedure name.
type Matcher struct {
	catalog    *protocat.Catalog
	procedures []*Procedure
}

// New returns a matcher over catalog and procedures.
func New(catalog *protocat.Catalog, procedures []*Procedure) *Matcher {
	return &Matcher{catalog: catalog, procedures: procedures}
}

// MapAll computes the mapping table, keyed "Service.Method". Methods below
// the confidence floor are absent. Two methods may map to the same
// procedure.
func (m *Matcher) MapAll() map[string]*Mapping {
	out := make(map[string]*Mapping)

	// Deterministic service walk.
	svcNames := make([]string, 0, len(m.catalog.Services))
	for name := range m.catalog.Services {
		svcNames = append(svcNames, name)
	}
	sort.Strings(svcNames)

	for _, svcName := range svcNames {
		svc := m.catalog.Services[svcName]
		for i := range svc.Methods {
			method := &svc.Methods[i]
			if mapping := m.mapMethod(svcName, method); mapping != nil {
				out[svcName+"."+method.Name] = mapping
			}
		}
	}
	return out
}

func (m *Matcher) mapMethod(svcName string, method *protocat.Method) *Mapping {
	var best *Procedure
	var bestScore float64
	var bestNotes []string

	for _, proc := range m.procedures {
		score, notes := m.score(method, proc)
		better := score > bestScore
		// Equal scores break on ascending procedure name.
		tie := best != nil && score == bestScore && proc.Name < best.Name
		if better || tie {
			best = proc
			bestScore = score
			bestNotes = notes
		}
	}

	if best == nil || bestScore < confidenceFloor {
		return nil
	}

	mapping := &Mapping{
		Service:    svcName,
		Method:     method.Name,
		Class:      method.Class(),
		Procedure:  best,
		Confidence: bestScore,
		Notes:      bestNotes,
	}
	mapping.RequestBindings = m.bindRequest(method, best)
	mapping.ResponseBindings = m.bindResponse(method, best)
	return mapping
}

// score combines the three weighted signals for one method/procedure pair.
func (m *Matcher) score(method *protocat.Method, proc *Procedure) (float64, []string) {
	var notes []string

	nameScore := nameSimilarity(method.Name, proc.Name)

	paramScore, paramNote := m.paramOverlap(method, proc)
	if paramNote != "" {
		notes = append(notes, paramNote)
	}

	resultScore, resultNote := m.resultOverlap(method, proc)
	if resultNote != "" {
		notes = append(notes, resultNote)
	}

	total := weightName*nameScore + weightParams*paramScore + weightResult*resultScore
	if nameScore < 0.5 && total >= confidenceFloor {
		notes = append(notes, fmt.Sprintf("weak name similarity (%.2f) between %s and %s", nameScore, method.Name, proc.Name))
	}
	return total, notes
}

// paramOverlap is the fraction of request-message fields with a matching
// procedure parameter.
func (m *Matcher) paramOverlap(method *protocat.Method, proc *Procedure) (float64, string) {
	req := m.catalog.Request(method)
	if req == nil || len(req.Fields) == 0 {
		// Nothing to disagree about.
		return 0.5, ""
	}

	inputs := make(map[string]bool)
	for _, p := range proc.Parameters {
		if p.Output {
			continue
		}
		inputs[normalizeName(p.Name)] = true
	}
	if len(inputs) == 0 {
		return 0.5, ""
	}

	matched := 0
	for _, f := range req.Fields {
		if inputs[normalizeName(f.Name)] {
			matched++
		}
	}
	score := float64(matched) / float64(len(req.Fields))
	note := ""
	if matched < len(req.Fields) {
		note = fmt.Sprintf("%d of %d request fields matched a parameter", matched, len(req.Fields))
	}
	return score, note
}

// resultOverlap is the fraction of response-message scalar fields with a
// matching result-set column. The last result set wins: error paths RETURN
// early, so the final SELECT is the success shape.
func (m *Matcher) resultOverlap(method *protocat.Method, proc *Procedure) (float64, string) {
	resp := m.catalog.Response(method)
	if resp == nil {
		return 0.5, ""
	}

	// A response wrapping a single message field is scored against that
	// message's fields.
	scalars := resp.ScalarFields()
	if len(scalars) == 0 && len(resp.Fields) == 1 && resp.Fields[0].Message {
		if inner := m.catalog.Messages[resp.Fields[0].Type]; inner != nil {
			scalars = inner.ScalarFields()
		}
	}
	if len(scalars) == 0 {
		return 0.5, ""
	}
	if len(proc.ResultSets) == 0 {
		return 0.0, "procedure returns no result set"
	}

	rs := proc.ResultSets[len(proc.ResultSets)-1]
	cols := make(map[string]bool)
	for _, c := range rs.Columns {
		cols[normalizeName(c.Name)] = true
	}

	matched := 0
	for _, f := range scalars {
		if cols[normalizeName(f.Name)] {
			matched++
		}
	}
	score := float64(matched) / float64(len(scalars))
	note := ""
	if matched < len(scalars) {
		note = fmt.Sprintf("%d of %d response fields matched a result column", matched, len(scalars))
	}
	return score, note
}

func (m *Matcher) bindRequest(method *protocat.Method, proc *Procedure) []Binding {
	req := m.catalog.Request(method)
	if req == nil {
		return nil
	}

	params := make(map[string]*Parameter)
	for i := range proc.Parameters {
		p := &proc.Parameters[i]
		if p.Output {
			continue
		}
		params[normalizeName(p.Name)] = p
	}

	var out []Binding
	for _, f := range req.Fields {
		p := params[normalizeName(f.Name)]
		if p == nil && strings.HasSuffix(normalizeName(f.Name), "id") {
			// user_id matches a lone Id parameter.
			p = params["id"]
		}
		if p == nil {
			continue
		}
		out = append(out, Binding{
			ProtoField: f.Name,
			ProtoType:  f.Type,
			SQLName:    p.Name,
			GoType:     p.GoType,
		})
	}
	return out
}

func (m *Matcher) bindResponse(method *protocat.Method, proc *Procedure) []Binding {
	resp := m.catalog.Response(method)
	if resp == nil || len(proc.ResultSets) == 0 {
		return nil
	}

	scalars := resp.ScalarFields()
	if len(scalars) == 0 && len(resp.Fields) == 1 && resp.Fields[0].Message {
		if inner := m.catalog.Messages[resp.Fields[0].Type]; inner != nil {
			scalars = inner.ScalarFields()
		}
	}

	rs := proc.ResultSets[len(proc.ResultSets)-1]
	cols := make(map[string]string)
	for _, c := range rs.Columns {
		cols[normalizeName(c.Name)] = c.Name
	}

	var out []Binding
	for _, f := range scalars {
		if col, ok := cols[normalizeName(f.Name)]; ok {
			out = append(out, Binding{
				ProtoField: f.Name,
				ProtoType:  f.Type,
				SQLName:    col,
				GoType:     protocat.GoType(f.Type),
			})
		}
	}
	return out
}

// StatsFor aggregates the mapping table into per-service coverage numbers.
func (m *Matcher) StatsFor(mappings map[string]*Mapping) Stats {
	st := Stats{Services: make(map[string]*ServiceStats)}
	for name, svc := range m.catalog.Services {
		ss := &ServiceStats{Service: name, Methods: len(svc.Methods)}
		for _, method := range svc.Methods {
			st.Methods++
			if mp, ok := mappings[name+"."+method.Name]; ok {
				st.Mapped++
				ss.Mapped++
				ss.Mappings = append(ss.Mappings, mp)
				switch {
				case mp.Confidence >= 0.8:
					st.High++
				case mp.Confidence >= 0.5:
					st.Medium++
				default:
					st.Low++
				}
			} else {
				st.Unmapped++
			}
		}
		sort.Slice(ss.Mappings, func(i, j int) bool { return ss.Mappings[i].Method < ss.Mappings[j].Method })
		st.Services[name] = ss
	}
	return st
}

// normalizeName lowercases and strips separators plus the usp_/sp_ prefixes
// so UserId, user_id, and @UserID compare equal.
func normalizeName(s string) string {
	s = strings.TrimPrefix(s, "@")
	s = strings.ToLower(s)
	for _, p := range []string{"usp_", "sp_", "proc_", "p_"} {
		s = strings.TrimPrefix(s, p)
	}
	return strings.ReplaceAll(s, "_", "")
}

// operationVerbs are stripped from both sides before name comparison so that
// GetUserByEmail and usp_UserByEmail still align.
var operationVerbs = []string{
	"get", "list", "find", "search",
	"create", "add", "insert",
	"update", "set", "modify",
	"delete", "remove",
}

func stripVerb(s string) string {
	for _, v := range operationVerbs {
		if strings.HasPrefix(s, v) && len(s) > len(v) {
			return s[len(v):]
		}
	}
	return s
}

// nameSimilarity compares normalized names: 1.0 for equality (with or
// without the operation verb), a containment bonus, else an edit-distance
// ratio.
func nameSimilarity(methodName, procName string) float64 {
	a := normalizeName(methodName)
	b := normalizeName(procName)
	if a == b {
		return 1.0
	}
	if stripVerb(a) == stripVerb(b) {
		return 0.95
	}
	sa, sb := stripVerb(a), stripVerb(b)
	if sa != "" && sb != "" && (strings.Contains(sb, sa) || strings.Contains(sa, sb)) {
		return 0.8
	}
	longest := len(sa)
	if len(sb) > longest {
		longest = len(sb)
	}
	if longest == 0 {
		return 0.0
	}
	d := editDistance(sa, sb)
	sim := 1.0 - float64(d)/float64(longest)
	if sim < 0 {
		return 0.0
	}
	return sim
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func minInt(xs ...int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
