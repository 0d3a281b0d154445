package database

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptySQL is returned before anything is executed when the
	// statement text is blank.
	ErrEmptySQL = errors.New("database: empty sql statement")

	// ErrAbort may be returned by a unit of work together with its result.
	// The transaction is rolled back and the result reaches the caller
	// without an error.
	ErrAbort = errors.New("database: transaction aborted")
)

// Error is a data access failure after retries were exhausted or a fatal
// error was hit. Op names the facade operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}
	return &Error{Op: op, Err: err}
}

func checkSQL(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return ErrEmptySQL
	}
	return nil
}
