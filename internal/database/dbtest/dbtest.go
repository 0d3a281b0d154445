// Package dbtest provides a scripted in-memory database.Pool for tests.
//
// Every statement is passed to the Handler, which decides the rows, the
// affected count or the error. Transactions are counted so tests can
// assert exactly one commit or rollback happened.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Statement is one call made against the pool.
type Statement struct {
	SQL  string
	Args []any
	InTx bool
	// Ctx is the context the statement ran under.
	Ctx context.Context
}

// Has reports whether the statement text contains fragment.
func (s Statement) Has(fragment string) bool {
	return strings.Contains(s.SQL, fragment)
}

// Result is what the Handler returns for a statement.
type Result struct {
	Rows     [][]any
	Affected int64
	Err      error
}

// Row is a one-row Result.
func Row(values ...any) Result {
	return Result{Rows: [][]any{values}}
}

// Rows builds a Result from several rows.
func Rows(rows ...[]any) Result {
	return Result{Rows: rows}
}

// Affected is a Result for a write touching n rows.
func Affected(n int64) Result {
	return Result{Affected: n}
}

// Fail is a Result carrying err.
func Fail(err error) Result {
	return Result{Err: err}
}

// Pool implements database.Pool in memory.
type Pool struct {
	Handler func(Statement) Result

	// BeginErr and CommitErr, when set, are returned by Begin and Commit.
	BeginErr  error
	CommitErr error

	mu         sync.Mutex
	statements []Statement
	begins     int
	commits    int
	rollbacks  int
}

// NewPool returns a pool answering with h.
func NewPool(h func(Statement) Result) *Pool {
	return &Pool{Handler: h}
}

// Statements returns a copy of every statement run so far.
func (p *Pool) Statements() []Statement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Statement(nil), p.statements...)
}

// Count returns how many statements contained fragment.
func (p *Pool) Count(fragment string) int {
	n := 0
	for _, s := range p.Statements() {
		if s.Has(fragment) {
			n++
		}
	}
	return n
}

// Begins returns the number of transactions started.
func (p *Pool) Begins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begins
}

// Commits returns the number of committed transactions.
func (p *Pool) Commits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commits
}

// Rollbacks returns the number of rolled back transactions.
func (p *Pool) Rollbacks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rollbacks
}

func (p *Pool) handle(ctx context.Context, inTx bool, sql string, args []any) Result {
	st := Statement{SQL: sql, Args: args, InTx: inTx, Ctx: ctx}

	p.mu.Lock()
	p.statements = append(p.statements, st)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}
	if p.Handler == nil {
		return Result{}
	}
	return p.Handler(st)
}

func (p *Pool) exec(ctx context.Context, inTx bool, sql string, args []any) (pgconn.CommandTag, error) {
	res := p.handle(ctx, inTx, sql, args)
	if res.Err != nil {
		return pgconn.CommandTag{}, res.Err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", res.Affected)), nil
}

func (p *Pool) query(ctx context.Context, inTx bool, sql string, args []any) (pgx.Rows, error) {
	res := p.handle(ctx, inTx, sql, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return &rows{data: res.Rows, index: -1}, nil
}

func (p *Pool) queryRow(ctx context.Context, inTx bool, sql string, args []any) pgx.Row {
	res := p.handle(ctx, inTx, sql, args)
	return &row{result: res}
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.exec(ctx, false, sql, args)
}

func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.query(ctx, false, sql, args)
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.queryRow(ctx, false, sql, args)
}

func (p *Pool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.BeginErr != nil {
		return nil, p.BeginErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.begins++
	p.mu.Unlock()

	return &tx{pool: p}, nil
}

// tx embeds pgx.Tx for the methods the executor never calls.
type tx struct {
	pgx.Tx
	pool   *Pool
	closed bool
}

func (t *tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.closed {
		return pgconn.CommandTag{}, pgx.ErrTxClosed
	}
	return t.pool.exec(ctx, true, sql, args)
}

func (t *tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if t.closed {
		return nil, pgx.ErrTxClosed
	}
	return t.pool.query(ctx, true, sql, args)
}

func (t *tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if t.closed {
		return &row{result: Result{Err: pgx.ErrTxClosed}}
	}
	return t.pool.queryRow(ctx, true, sql, args)
}

func (t *tx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	if t.pool.CommitErr != nil {
		t.pool.rollbacks++
		return t.pool.CommitErr
	}
	t.pool.commits++
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	t.pool.mu.Lock()
	t.pool.rollbacks++
	t.pool.mu.Unlock()
	return nil
}

type row struct {
	result Result
}

func (r *row) Scan(dest ...any) error {
	if r.result.Err != nil {
		return r.result.Err
	}
	if len(r.result.Rows) == 0 {
		return pgx.ErrNoRows
	}
	return assign(r.result.Rows[0], dest)
}

type rows struct {
	data   [][]any
	index  int
	closed bool
}

func (r *rows) Close()                                       { r.closed = true }
func (r *rows) Err() error                                   { return nil }
func (r *rows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rows) RawValues() [][]byte                          { return nil }
func (r *rows) Conn() *pgx.Conn                              { return nil }

func (r *rows) Next() bool {
	if r.closed {
		return false
	}
	r.index++
	if r.index >= len(r.data) {
		r.closed = true
		return false
	}
	return true
}

func (r *rows) Scan(dest ...any) error {
	if r.index < 0 || r.index >= len(r.data) {
		return errors.New("dbtest: scan outside a row")
	}
	return assign(r.data[r.index], dest)
}

func (r *rows) Values() ([]any, error) {
	if r.index < 0 || r.index >= len(r.data) {
		return nil, errors.New("dbtest: values outside a row")
	}
	return r.data[r.index], nil
}

type scanner interface {
	Scan(src any) error
}

// assign copies values into scan destinations the way pgx would for the
// types the repositories use: direct assignment, conversion, pointer
// targets for nullable columns and sql.Scanner implementations.
func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("dbtest: row has %d values, scan has %d targets", len(values), len(dest))
	}

	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("dbtest: scan target %d is not a pointer", i)
		}
		if err := set(target.Elem(), values[i]); err != nil {
			return fmt.Errorf("dbtest: column %d: %w", i, err)
		}
	}
	return nil
}

func set(elem reflect.Value, value any) error {
	if value == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}

	v := reflect.ValueOf(value)

	if elem.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
		inner := reflect.New(elem.Type().Elem())
		if err := set(inner.Elem(), value); err != nil {
			return err
		}
		elem.Set(inner)
		return nil
	}

	if v.Type().AssignableTo(elem.Type()) {
		elem.Set(v)
		return nil
	}

	if s, ok := elem.Addr().Interface().(scanner); ok {
		return s.Scan(value)
	}

	if v.Type().ConvertibleTo(elem.Type()) {
		elem.Set(v.Convert(elem.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, elem.Type())
}
