package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const rollbackTimeout = 5 * time.Second

// Session issues statements on a pooled connection or inside a
// transaction. Both *pgxpool.Pool and pgx.Tx satisfy it.
type Session interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the connection source the executor draws from.
type Pool interface {
	Session
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UnitOfWork is the body run by the executor.
type UnitOfWork func(ctx context.Context, s Session) error

// Executor runs units of work on pooled sessions. Every statement runs
// under commandTimeout; a zero timeout leaves the caller's deadline alone.
type Executor struct {
	pool           Pool
	commandTimeout time.Duration
	log            *zerolog.Logger
}

func NewExecutor(pool Pool, commandTimeout time.Duration, logger *zerolog.Logger) *Executor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Executor{
		pool:           pool,
		commandTimeout: commandTimeout,
		log:            logger,
	}
}

// Run executes fn without a transaction.
func (e *Executor) Run(ctx context.Context, fn UnitOfWork) error {
	return fn(ctx, e.session(e.pool))
}

// RunInTx executes fn inside a transaction. It commits when fn returns nil
// and the context is still live; otherwise, and on panic, it rolls back.
// Each call ends in exactly one commit or one rollback. fn's error is
// returned unchanged.
func (e *Executor) RunInTx(ctx context.Context, fn UnitOfWork) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return err
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		// The caller's context may already be cancelled; the connection
		// still has to go back to the pool clean.
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			e.log.Warn().Err(rbErr).Msg("transaction rollback failed")
		}
	}()

	if err := fn(ctx, e.session(tx)); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	finished = true
	return tx.Commit(ctx)
}

func (e *Executor) session(s Session) Session {
	if e.commandTimeout <= 0 {
		return s
	}
	return &timedSession{Session: s, timeout: e.commandTimeout}
}

// timedSession bounds each statement by the command timeout.
type timedSession struct {
	Session
	timeout time.Duration
}

func (t *timedSession) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Session.Exec(ctx, sql, args...)
}

func (t *timedSession) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	rows, err := t.Session.Query(ctx, sql, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &timedRows{Rows: rows, cancel: cancel}, nil
}

func (t *timedSession) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	return &timedRow{row: t.Session.QueryRow(ctx, sql, args...), cancel: cancel}
}

// timedRows releases the statement context when the result set is closed.
type timedRows struct {
	pgx.Rows
	cancel context.CancelFunc
}

func (r *timedRows) Close() {
	r.Rows.Close()
	r.cancel()
}

type timedRow struct {
	row    pgx.Row
	cancel context.CancelFunc
}

func (r *timedRow) Scan(dest ...any) error {
	defer r.cancel()
	return r.row.Scan(dest...)
}
