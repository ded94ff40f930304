// Package mockrpc is the programmable in-process server the mock back-end
// emits calls against. Behavior is driven by seeded tables plus optional
// hook callbacks; a default handler synthesizes responses by operation
// class.
package mockrpc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sqlport/sqlport/protocat"
)

// Request is the generic call shape the generated code builds.
type Request struct {
	Method string
	Entity string
	Key    map[string]any // lookup / where values
	Values map[string]any // create / update values
	Limit  int
	Offset int
}

// Response is the generic result.
type Response struct {
	Records  []map[string]any
	Affected int64
	LastID   int64
}

// Handler overrides the default behavior for one method name.
type Handler func(ctx context.Context, req Request) (*Response, error)

// Hook observes calls; BeforeCall may veto by returning an error.
type Hook struct {
	BeforeCall func(req Request) error
	AfterCall  func(req Request, resp *Response, err error)
}

// Server holds the seeded data. Safe for concurrent use; within one call the
// hooks run in registration order, outside the server lock, so hooks of
// concurrent calls may interleave.
type Server struct {
	mu       sync.Mutex
	tables   map[string][]map[string]any
	nextID   map[string]int64
	handlers map[string]Handler
	hooks    []Hook
	calls    []string
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{
		tables:   make(map[string][]map[string]any),
		nextID:   make(map[string]int64),
		handlers: make(map[string]Handler),
	}
}

// Seed loads rows into a table, assigning Id when absent.
func (s *Server) Seed(table string, rows []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.insertLocked(table, r)
	}
}

// Handle installs an override for a method name (e.g. "GetCustomerByEmail").
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// AddHook registers an observer. Hooks run in registration order.
func (s *Server) AddHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Calls returns the method names invoked so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Rows returns a copy of a table's rows, in insertion order.
func (s *Server) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[key(table)]
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		cp := make(map[string]any, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Reset drops all data, handlers, hooks, and call history.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string][]map[string]any)
	s.nextID = make(map[string]int64)
	s.handlers = make(map[string]Handler)
	s.hooks = nil
	s.calls = nil
}

// Call dispatches a request: hooks, then handler override, then the default
// behavior for the method's operation class.
func (s *Server) Call(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Method)
	hooks := make([]Hook, len(s.hooks))
	copy(hooks, s.hooks)
	handler := s.handlers[req.Method]
	s.mu.Unlock()

	for _, h := range hooks {
		if h.BeforeCall != nil {
			if err := h.BeforeCall(req); err != nil {
				for _, ah := range hooks {
					if ah.AfterCall != nil {
						ah.AfterCall(req, nil, err)
					}
				}
				return nil, err
			}
		}
	}

	var resp *Response
	var err error
	if handler != nil {
		resp, err = handler(ctx, req)
	} else {
		resp, err = s.defaultCall(req)
	}

	for _, h := range hooks {
		if h.AfterCall != nil {
			h.AfterCall(req, resp, err)
		}
	}
	return resp, err
}

func (s *Server) defaultCall(req Request) (*Response, error) {
	entity := req.Entity
	if entity == "" {
		entity = entityFromMethod(req.Method)
	}
	if entity == "" {
		return nil, fmt.Errorf("mockrpc: cannot infer entity for %s", req.Method)
	}

	switch protocat.ClassifyMethodName(req.Method) {
	case protocat.ClassRead:
		if strings.HasPrefix(req.Method, "List") || strings.HasPrefix(req.Method, "Find") || strings.HasPrefix(req.Method, "Search") {
			return s.list(entity, req)
		}
		return s.get(entity, req)
	case protocat.ClassCreate:
		return s.create(entity, req)
	case protocat.ClassUpdate:
		return s.update(entity, req)
	case protocat.ClassDelete:
		return s.delete(entity, req)
	default:
		// Generic EXEC: echo an empty success.
		return &Response{}, nil
	}
}

// table resolves an entity name to a seeded table, tolerating the
// singular/plural mismatch between method names (GetCustomer) and table
// names (Customers).
func (s *Server) table(entity string) []map[string]any {
	k := key(entity)
	if rows, ok := s.tables[k]; ok {
		return rows
	}
	for _, cand := range []string{k + "s", k + "es", strings.TrimSuffix(k, "y") + "ies", strings.TrimSuffix(k, "s")} {
		if rows, ok := s.tables[cand]; ok {
			return rows
		}
	}
	return nil
}

// tableKey resolves like table but returns the storage key, for writes.
func (s *Server) tableKey(entity string) string {
	k := key(entity)
	if _, ok := s.tables[k]; ok {
		return k
	}
	for _, cand := range []string{k + "s", k + "es", strings.TrimSuffix(k, "y") + "ies", strings.TrimSuffix(k, "s")} {
		if _, ok := s.tables[cand]; ok {
			return cand
		}
	}
	return k
}

func (s *Server) get(entity string, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.table(entity) {
		if matches(r, req.Key) {
			return &Response{Records: []map[string]any{r}}, nil
		}
	}
	return &Response{}, nil
}

func (s *Server) list(entity string, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, r := range s.table(entity) {
		if matches(r, req.Key) {
			out = append(out, r)
		}
	}
	if req.Offset > 0 {
		if req.Offset >= len(out) {
			out = nil
		} else {
			out = out[req.Offset:]
		}
	}
	if req.Limit > 0 && req.Limit < len(out) {
		out = out[:req.Limit]
	}
	return &Response{Records: out}, nil
}

func (s *Server) create(entity string, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := make(map[string]any, len(req.Values))
	for k, v := range req.Values {
		row[k] = v
	}
	id := s.insertLocked(s.tableKey(entity), row)
	return &Response{Affected: 1, LastID: id}, nil
}

func (s *Server) update(entity string, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.table(entity) {
		if matches(r, req.Key) {
			for k, v := range req.Values {
				r[k] = v
			}
			n++
		}
	}
	return &Response{Affected: n}, nil
}

func (s *Server) delete(entity string, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.tableKey(entity)
	var kept []map[string]any
	var n int64
	for _, r := range s.tables[k] {
		if matches(r, req.Key) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.tables[k] = kept
	return &Response{Affected: n}, nil
}

func (s *Server) insertLocked(table string, row map[string]any) int64 {
	k := key(table)
	if _, ok := s.tables[k]; !ok {
		s.nextID[k] = 0
	}
	s.nextID[k]++
	if _, has := row["Id"]; !has {
		row["Id"] = s.nextID[k]
	}
	s.tables[k] = append(s.tables[k], row)
	return s.nextID[k]
}

func matches(row, where map[string]any) bool {
	for k, v := range where {
		got, ok := row[k]
		if !ok {
			// Second pass, case-insensitive.
			for rk, rv := range row {
				if strings.EqualFold(rk, k) {
					got, ok = rv, true
					break
				}
			}
		}
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", v) {
			return false
		}
	}
	return true
}

func key(table string) string {
	return strings.ToLower(table)
}

// entityFromMethod strips the leading operation verb and any By<Column>
// suffix: GetCustomerByEmail -> Customer.
func entityFromMethod(method string) string {
	name := method
	for _, v := range []string{"Get", "List", "Find", "Search", "Create", "Add", "Insert", "Update", "Set", "Modify", "Delete", "Remove"} {
		if strings.HasPrefix(name, v) && len(name) > len(v) {
			name = name[len(v):]
			break
		}
	}
	if i := strings.Index(name, "By"); i > 0 {
		name = name[:i]
	}
	return name
}
