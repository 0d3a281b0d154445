// Package sqlerr specifically handles database driver errors.
//
// It classifies pgx errors by SQLSTATE so repositories can branch on the
// kind of failure (a unique violation becomes "already exists") and
// converts the rest into user-friendly HTTP errors without leaking SQL.
package sqlerr
