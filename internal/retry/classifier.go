package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorClassifier decides whether an error is worth another attempt.
type ErrorClassifier interface {
	IsTransient(err error) bool
}

// PostgreSQL error codes for transient conditions.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnectionException   = "08"
	pgClassInsufficientResources = "53"

	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
	pgCodeQueryCanceled        = "57014"
	pgCodeAdminShutdown        = "57P01"
	pgCodeCrashShutdown        = "57P02"
	pgCodeCannotConnectNow     = "57P03"
)

// PostgresClassifier recognises the transient failures pgx reports.
//
// Timeouts count as transient: a statement that ran past the command
// timeout is retried in full. Cancellation by the caller never is.
type PostgresClassifier struct{}

// NewPostgresClassifier returns the classifier used by default policies.
func NewPostgresClassifier() *PostgresClassifier {
	return &PostgresClassifier{}
}

// IsTransient reports whether err is likely to succeed on retry.
func (c *PostgresClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientPgCode(pgErr.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	return isNetworkError(err)
}

func isTransientPgCode(code string) bool {
	if strings.HasPrefix(code, pgClassConnectionException) || strings.HasPrefix(code, pgClassInsufficientResources) {
		return true
	}

	switch code {
	case pgCodeSerializationFailure,
		pgCodeDeadlockDetected,
		pgCodeLockNotAvailable,
		pgCodeQueryCanceled,
		pgCodeAdminShutdown,
		pgCodeCrashShutdown,
		pgCodeCannotConnectNow:
		return true
	}

	return false
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	return false
}
