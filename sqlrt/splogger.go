package sqlrt

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// ProcError is the structured record built in a transpiled CATCH block from
// the recovered panic value plus the procedure's parameter snapshot.
type ProcError struct {
	Procedure string         `json:"procedure"`
	Message   string         `json:"message"`
	Number    int32          `json:"number"`
	Severity  int32          `json:"severity"`
	State     int32          `json:"state"`
	Line      int32          `json:"line"`
	Params    map[string]any `json:"params,omitempty"`
	At        time.Time      `json:"at"`
}

// Capture builds a ProcError from a recovered value. The source error-state
// accessors other than the message have no Go equivalent; they carry the
// documented defaults (number 50000, severity 16, state 1, line 0).
func Capture(procName string, recovered any, params map[string]any) ProcError {
	msg := ""
	switch v := recovered.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = fmt.Sprintf("%v", v)
	}
	return ProcError{
		Procedure: procName,
		Message:   msg,
		Number:    50000,
		Severity:  16,
		State:     1,
		Params:    params,
		At:        time.Now().UTC(),
	}
}

// ParamsXML renders the parameter snapshot as the <Params> fragment the
// source procedures used to build with FOR XML before logging.
func (e ProcError) ParamsXML() string {
	if len(e.Params) == 0 {
		return "<Params/>"
	}
	names := make([]string, 0, len(e.Params))
	for k := range e.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("<Params>")
	for _, k := range names {
		fmt.Fprintf(&b, "<%s>%s</%s>", k, xmlEscape(fmt.Sprintf("%v", e.Params[k])), k)
	}
	b.WriteString("</Params>")
	return b.String()
}

// Logger is the hook transpiled CATCH blocks call into.
type Logger interface {
	LogError(ctx context.Context, e ProcError) error
}

// SlogLogger writes through log/slog; the default sink.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l, or slog.Default() when nil.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) LogError(ctx context.Context, e ProcError) error {
	s.l.ErrorContext(ctx, "stored procedure error",
		"procedure", e.Procedure,
		"message", e.Message,
		"number", e.Number,
		"severity", e.Severity,
		"state", e.State,
		"params", e.Params,
	)
	return nil
}

// DBLogger inserts captured errors into a log table, preserving the source
// pattern of INSERT INTO Error.Log in CATCH blocks.
type DBLogger struct {
	db      *sql.DB
	table   string
	dialect string
}

// NewDBLogger logs into table using the given dialect's placeholder style.
func NewDBLogger(db *sql.DB, table, dialect string) *DBLogger {
	if table == "" {
		table = "ErrorLog"
	}
	return &DBLogger{db: db, table: table, dialect: dialect}
}

func (d *DBLogger) placeholder(n int) string {
	switch d.dialect {
	case "postgres":
		return fmt.Sprintf("$%d", n)
	case "tsql", "sqlserver":
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

func (d *DBLogger) LogError(ctx context.Context, e ProcError) error {
	if d.db == nil {
		return fmt.Errorf("db logger: no database handle")
	}
	var ph [6]string
	for i := range ph {
		ph[i] = d.placeholder(i + 1)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (ProcedureName, ErrorMessage, ErrorNumber, ErrorSeverity, Params, LoggedAt) VALUES (%s, %s, %s, %s, %s, %s)",
		d.table, ph[0], ph[1], ph[2], ph[3], ph[4], ph[5],
	)
	_, err := d.db.ExecContext(ctx, q,
		e.Procedure, e.Message, e.Number, e.Severity, e.ParamsXML(), e.At)
	return err
}

// FileLogger appends captured errors to a file as JSON lines or text.
type FileLogger struct {
	path   string
	format string // "json" or "text"
}

// NewFileLogger opens (lazily) a logger for path. format is "json" or "text".
func NewFileLogger(path, format string) (*FileLogger, error) {
	if path == "" {
		return nil, fmt.Errorf("file logger: empty path")
	}
	if format != "json" && format != "text" {
		format = "json"
	}
	return &FileLogger{path: path, format: format}, nil
}

func (f *FileLogger) LogError(_ context.Context, e ProcError) error {
	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer fh.Close()

	var line string
	if f.format == "json" {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		line = string(b)
	} else {
		line = fmt.Sprintf("%s %s: %s", e.At.Format(time.RFC3339), e.Procedure, e.Message)
	}
	_, err = fmt.Fprintln(fh, line)
	return err
}

// MultiLogger fans out to several sinks; the first failure wins but every
// sink is attempted.
type MultiLogger struct {
	sinks []Logger
}

func NewMultiLogger(sinks ...Logger) *MultiLogger {
	return &MultiLogger{sinks: sinks}
}

func (m *MultiLogger) LogError(ctx context.Context, e ProcError) error {
	var first error
	for _, s := range m.sinks {
		if err := s.LogError(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() NopLogger { return NopLogger{} }

func (NopLogger) LogError(context.Context, ProcError) error { return nil }

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
