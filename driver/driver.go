// Package driver opens database/sql handles for the dialects the transpiled
// code targets, registering the matching driver for each.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
)

// driverNames maps dialect names to registered driver names.
var driverNames = map[string]string{
	"postgres": "pgx",
	"mysql":    "mysql",
	"sqlite":   "sqlite3",
	"tsql":     "sqlserver",
	"ansi":     "sqlite3", // closest in-process engine for ANSI text
}

// Name returns the database/sql driver name for a dialect.
func Name(dialect string) (string, error) {
	d, ok := driverNames[strings.ToLower(dialect)]
	if !ok {
		return "", fmt.Errorf("no driver registered for dialect %q", dialect)
	}
	return d, nil
}

// Open opens a handle for the dialect with pool defaults suitable for the
// generated code's QueryContext/ExecContext usage.
func Open(dialect, dsn string) (*sql.DB, error) {
	name, err := Name(dialect)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Ping verifies connectivity with a bounded deadline.
func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
