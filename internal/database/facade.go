package database

import (
	"context"
	"errors"

	"github.com/deppfellow/user-service/internal/sqlerr"
	"github.com/jackc/pgx/v5"
)

// RowScanner maps one result row to a value.
type RowScanner[T any] func(row pgx.Row) (T, error)

// Runner runs units of work. *Database retries transient failures;
// *Executor runs each unit exactly once.
type Runner interface {
	Run(ctx context.Context, fn UnitOfWork) error
	RunInTx(ctx context.Context, fn UnitOfWork) error
}

// Run executes fn without a transaction, retrying transient failures.
func (db *Database) Run(ctx context.Context, fn UnitOfWork) error {
	return db.policy.Execute(ctx, func(ctx context.Context) error {
		return db.exec.Run(ctx, fn)
	})
}

// RunInTx executes fn in a transaction. A transient failure rolls the
// attempt back and the whole unit is run again in a fresh transaction.
func (db *Database) RunInTx(ctx context.Context, fn UnitOfWork) error {
	return db.policy.Execute(ctx, func(ctx context.Context) error {
		return db.exec.RunInTx(ctx, fn)
	})
}

// QueryMany returns every row the query produces, never nil.
func QueryMany[T any](ctx context.Context, r Runner, sql string, scan RowScanner[T], args ...any) ([]T, error) {
	if err := checkSQL(sql); err != nil {
		return nil, err
	}

	var items []T
	err := r.Run(ctx, func(ctx context.Context, s Session) error {
		rows, err := s.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		collected, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
			return scan(row)
		})
		if err != nil {
			return err
		}
		items = collected
		return nil
	})
	if err != nil {
		return nil, wrap("query many", err)
	}

	if items == nil {
		items = []T{}
	}
	return items, nil
}

// QueryOne returns the first row of the query. The boolean is false when
// the query produced no row.
func QueryOne[T any](ctx context.Context, r Runner, sql string, scan RowScanner[T], args ...any) (T, bool, error) {
	var (
		item  T
		found bool
	)

	if err := checkSQL(sql); err != nil {
		return item, false, err
	}

	err := r.Run(ctx, func(ctx context.Context, s Session) error {
		v, ok, err := ScanOne(ctx, s, sql, scan, args...)
		if err != nil {
			return err
		}
		item, found = v, ok
		return nil
	})
	if err != nil {
		var zero T
		return zero, false, wrap("query one", err)
	}

	return item, found, nil
}

// ExecuteScalar returns the first column of the first row. NULL and an
// empty result both yield T's zero value.
func ExecuteScalar[T any](ctx context.Context, r Runner, sql string, args ...any) (T, error) {
	var value T

	if err := checkSQL(sql); err != nil {
		return value, err
	}

	err := r.Run(ctx, func(ctx context.Context, s Session) error {
		v, err := Scalar[T](ctx, s, sql, args...)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, wrap("execute scalar", err)
	}

	return value, nil
}

// InTransaction runs fn in a transaction and returns its result. When fn
// returns ErrAbort the transaction is rolled back and the result is
// returned with a nil error.
func InTransaction[R any](ctx context.Context, r Runner, fn func(ctx context.Context, s Session) (R, error)) (R, error) {
	var result R

	err := r.RunInTx(ctx, func(ctx context.Context, s Session) error {
		v, err := fn(ctx, s)
		result = v
		return err
	})

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, ErrAbort):
		return result, nil
	default:
		var zero R
		return zero, wrap("in transaction", err)
	}
}

// Execute runs a statement and returns the number of affected rows.
func (db *Database) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	if err := checkSQL(sql); err != nil {
		return 0, err
	}

	var affected int64
	err := db.Run(ctx, func(ctx context.Context, s Session) error {
		tag, err := s.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, wrap("execute", err)
	}

	return affected, nil
}

// ExecuteInTransaction runs fn in a transaction. ErrAbort rolls back and
// is not reported.
func (db *Database) ExecuteInTransaction(ctx context.Context, fn UnitOfWork) error {
	err := db.RunInTx(ctx, fn)
	if err == nil || errors.Is(err, ErrAbort) {
		return nil
	}
	return wrap("execute in transaction", err)
}

// HealthCheck reports whether the database answers SELECT 1. It does not
// retry and never returns an error.
func (db *Database) HealthCheck(ctx context.Context) bool {
	var one int
	err := db.exec.Run(ctx, func(ctx context.Context, s Session) error {
		v, err := Scalar[int](ctx, s, "SELECT 1")
		one = v
		return err
	})
	if err != nil {
		db.log.Debug().Err(err).Msg("database health check failed")
		return false
	}
	return one == 1
}

// ScanOne reads the first row through s. The boolean is false when there
// is no row.
func ScanOne[T any](ctx context.Context, s Session, sql string, scan RowScanner[T], args ...any) (T, bool, error) {
	item, err := scan(s.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return item, true, nil
}

// Scalar reads a single value through s. NULL and no row yield T's zero
// value.
func Scalar[T any](ctx context.Context, s Session, sql string, args ...any) (T, error) {
	var (
		value *T
		zero  T
	)

	err := s.QueryRow(ctx, sql, args...).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, nil
	}
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	return *value, nil
}

// Exists reports whether query, typically "SELECT 1 FROM ... WHERE ...",
// returns a row.
func Exists(ctx context.Context, s Session, sql string, args ...any) (bool, error) {
	_, found, err := ScanOne(ctx, s, sql, func(row pgx.Row) (int, error) {
		var one int
		err := row.Scan(&one)
		return one, err
	}, args...)
	return found, err
}

// ExecChecked runs a write and reports a constraint violation as a Code
// with a nil error. Any other failure is returned as an error. After a
// violation inside a transaction the transaction is unusable and the unit
// of work should finish with ErrAbort.
func ExecChecked(ctx context.Context, s Session, sql string, args ...any) (int64, sqlerr.Code, error) {
	tag, err := s.Exec(ctx, sql, args...)
	if err != nil {
		if code := sqlerr.ErrCode(err); sqlerr.IsConstraintViolation(code) {
			return 0, code, nil
		}
		return 0, sqlerr.Other, err
	}
	return tag.RowsAffected(), sqlerr.Other, nil
}
