package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Session is one unit of work's handle on an engine: a single pooled
// connection plus dialect-aware query helpers. Sessions are not safe for
// concurrent use; obtain one per logical operation and close it on every
// exit path.
type Session struct {
	engine *Engine
	conn   *sql.Conn
}

// Engine returns the engine the session is bound to.
func (s *Session) Engine() *Engine { return s.engine }

// Close returns the underlying connection to the engine's pool.
func (s *Session) Close() error { return s.conn.Close() }

// Exec runs a statement, translating placeholders for the backend.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, s.engine.rebind(query), args...)
}

// Query runs a read query, translating placeholders for the backend.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, s.engine.rebind(query), args...)
}

// QueryRow runs a single-row query, translating placeholders for the backend.
func (s *Session) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, s.engine.rebind(query), args...)
}

// WithTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise.
func (s *Session) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin", err)
	}
	done := false
	defer func() {
		if !done {
			_ = sqlTx.Rollback()
		}
	}()
	tx := &Tx{tx: sqlTx, engine: s.engine}
	if err = fn(tx); err != nil {
		return err
	}
	done = true
	if err = sqlTx.Commit(); err != nil {
		return Classify("commit", err)
	}
	return nil
}

// Tx wraps an open transaction with the same dialect-aware helpers as
// Session.
type Tx struct {
	tx     *sql.Tx
	engine *Engine
}

// Exec runs a statement within the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.engine.rebind(query), args...)
}

// Query runs a read query within the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.engine.rebind(query), args...)
}

// QueryRow runs a single-row query within the transaction.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.engine.rebind(query), args...)
}

// rebind rewrites ? placeholders to $n for backends that require ordinal
// parameters. Queries in this module never embed literal question marks.
func (e *Engine) rebind(query string) string {
	if e.backend != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
