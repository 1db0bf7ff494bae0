// Package store is the thin typed wrapper over the row store described in
// spec.md §6: prepared statements, transactional scope, and schema
// bootstrap. It is the only package that imports database/sql or the
// SQLite driver — everything above it works in terms of Statement, Result,
// and Tx.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver with json1 + FTS5 + RECURSIVE CTEs
)

// Statement is one parameterized store statement: positional placeholders
// only, never string-interpolated user input (spec.md §4.2).
type Statement struct {
	SQL    string
	Params []any
}

// Result is what one statement returns: row data for SELECTs, row-affected
// counts for writes.
type Result struct {
	Columns      []string
	Rows         []map[string]any
	Changes      int64
	LastInsertID int64
}

// Store owns one tenant's row-store handle.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite file at path, applies pragmas, and bootstraps
// the schema (spec.md §6). It is safe to call concurrently for distinct
// paths; callers needing single-flight semantics for the *same* tenant
// should go through the tenant registry (tenant.go), not this function
// directly.
func Open(ctx context.Context, path string, busyTimeoutMS int) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite serializes writers anyway; one conn avoids lock thrash
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", p, err)
		}
	}
	s := &Store{db: db}
	if err := s.bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Execute runs one statement outside any caller-managed transaction,
// returning its rows (for a SELECT-shaped statement) or its affected-row
// count (for an INSERT/UPDATE/DELETE).
func (s *Store) Execute(ctx context.Context, stmt Statement) (*Result, error) {
	return execOn(ctx, s.db, stmt)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execOn(ctx context.Context, q queryer, stmt Statement) (*Result, error) {
	if isSelectLike(stmt.SQL) {
		rows, err := q.QueryxContext(ctx, stmt.SQL, stmt.Params...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		result := &Result{Columns: cols}
		for rows.Next() {
			row := map[string]any{}
			if err := rows.MapScan(row); err != nil {
				return nil, err
			}
			result.Rows = append(result.Rows, row)
		}
		return result, rows.Err()
	}
	res, err := q.ExecContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	if n, err := res.RowsAffected(); err == nil {
		result.Changes = n
	}
	if id, err := res.LastInsertId(); err == nil {
		result.LastInsertID = id
	}
	return result, nil
}

// isSelectLike reports whether stmt's SQL produces rows rather than an
// affected-row count. WITH handles the recursive-CTE variable-length path
// queries (spec.md §4.2).
func isSelectLike(sqlText string) bool {
	for i := 0; i < len(sqlText); i++ {
		switch sqlText[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return hasPrefixFold(sqlText[i:], "SELECT") || hasPrefixFold(sqlText[i:], "WITH")
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		c, p := s[i], prefix[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != p {
			return false
		}
	}
	return true
}

// Tx is a store statement executed within a transaction (spec.md §4.7:
// "either all statements commit or none do").
type Tx struct {
	tx *sqlx.Tx
}

// Transaction runs fn inside a transaction, committing if fn returns nil and
// rolling back otherwise (spec.md §6 "rolls back on exception").
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Execute runs one statement within the transaction.
func (t *Tx) Execute(ctx context.Context, stmt Statement) (*Result, error) {
	return execOn(ctx, t.tx, stmt)
}

// ExecuteAll runs a list of statements in order within the transaction,
// returning the last statement's result as the logical output (spec.md
// §4.7 step 4: "Capture the last statement's result rows as the logical
// output").
func (t *Tx) ExecuteAll(ctx context.Context, stmts []Statement) (*Result, error) {
	var last *Result
	for _, stmt := range stmts {
		r, err := t.Execute(ctx, stmt)
		if err != nil {
			return nil, err
		}
		last = r
	}
	return last, nil
}
