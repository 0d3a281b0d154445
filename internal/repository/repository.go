// Package repository handles all interactions with the database.
//
// It contains the SQL for roles and accounts and turns storage results
// into model outcomes. Infrastructure failures are logged here and never
// leave the package as errors.
package repository

import (
	"context"
	"errors"

	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/sqlerr"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// ImageCleanup schedules removal of a stored image that could not be
// deleted inline.
type ImageCleanup interface {
	ScheduleImageCleanup(ctx context.Context, reference string) error
}

// failure maps an infrastructure error to an outcome.
func failure(logger *zerolog.Logger, op string, err error) model.Result {
	var pgErr *pgconn.PgError

	switch {
	case sqlerr.ErrCode(err) == sqlerr.UniqueViolation:
		return model.Failed(model.OutcomeAlreadyExists)

	case errors.As(err, &pgErr):
		details := sqlerr.ConvertPgError(pgErr)
		logger.Error().
			Err(err).
			Str("operation", op).
			Str("sqlstate", details.DatabaseCode).
			Str("table", details.TableName).
			Str("constraint", details.ConstraintName).
			Msg("database error")
		return model.Failed(model.OutcomeDatabaseError)

	default:
		logger.Error().Err(err).Str("operation", op).Msg("unexpected error")
		return model.Failed(model.OutcomeUnexpectedError)
	}
}

// violation maps a constraint kind reported at write time.
func violation(code sqlerr.Code) model.Result {
	switch code {
	case sqlerr.UniqueViolation, sqlerr.ExclusionViolation:
		return model.Failed(model.OutcomeAlreadyExists)
	case sqlerr.ForeignKeyViolation:
		return model.Failed(model.OutcomeNotFound)
	default:
		return model.Failed(model.OutcomeOperationFailed)
	}
}
