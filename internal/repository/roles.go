package repository

import (
	"context"

	"github.com/deppfellow/user-service/internal/database"
	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	listRolesSQL = `SELECT id, name FROM roles ORDER BY name ASC`

	roleExistsSQL    = `SELECT 1 FROM roles WHERE id = $1`
	roleNameTakenSQL = `SELECT 1 FROM roles WHERE name = $1`
	roleNameOtherSQL = `SELECT 1 FROM roles WHERE name = $1 AND id <> $2`

	insertRoleSQL = `INSERT INTO roles (name) VALUES ($1)`
	updateRoleSQL = `UPDATE roles SET name = $1 WHERE id = $2`
	deleteRoleSQL = `DELETE FROM roles WHERE id = $1`
)

type RoleRepository struct {
	db     database.Runner
	logger *zerolog.Logger
}

func NewRoleRepository(db database.Runner, logger *zerolog.Logger) *RoleRepository {
	return &RoleRepository{db: db, logger: logger}
}

func scanRole(row pgx.Row) (model.Role, error) {
	var role model.Role
	err := row.Scan(&role.ID, &role.Name)
	return role, err
}

// ListAll returns every role ordered by name.
func (r *RoleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	return database.QueryMany(ctx, r.db, listRolesSQL, scanRole)
}

// Create inserts a role unless the name is taken.
func (r *RoleRepository) Create(ctx context.Context, name string) model.Result {
	result, err := database.InTransaction(ctx, r.db, func(ctx context.Context, s database.Session) (model.Result, error) {
		taken, err := database.Exists(ctx, s, roleNameTakenSQL, name)
		if err != nil {
			return model.Result{}, err
		}
		if taken {
			return model.Failed(model.OutcomeAlreadyExists), nil
		}

		affected, code, err := database.ExecChecked(ctx, s, insertRoleSQL, name)
		if err != nil {
			return model.Result{}, err
		}
		if code != sqlerr.Other {
			return violation(code), database.ErrAbort
		}
		if affected == 0 {
			return model.Failed(model.OutcomeOperationFailed), database.ErrAbort
		}

		return model.Succeeded(model.OutcomeCreated), nil
	})
	if err != nil {
		return failure(r.logger, "create role", err)
	}
	return result
}

// Update renames a role. The name may not belong to another role.
func (r *RoleRepository) Update(ctx context.Context, id uuid.UUID, name string) model.Result {
	result, err := database.InTransaction(ctx, r.db, func(ctx context.Context, s database.Session) (model.Result, error) {
		found, err := database.Exists(ctx, s, roleExistsSQL, id)
		if err != nil {
			return model.Result{}, err
		}
		if !found {
			return model.Failed(model.OutcomeNotFound), nil
		}

		taken, err := database.Exists(ctx, s, roleNameOtherSQL, name, id)
		if err != nil {
			return model.Result{}, err
		}
		if taken {
			return model.Failed(model.OutcomeAlreadyExists), nil
		}

		affected, code, err := database.ExecChecked(ctx, s, updateRoleSQL, name, id)
		if err != nil {
			return model.Result{}, err
		}
		if code != sqlerr.Other {
			return violation(code), database.ErrAbort
		}
		if affected == 0 {
			return model.Failed(model.OutcomeOperationFailed), database.ErrAbort
		}

		return model.Succeeded(model.OutcomeUpdated), nil
	})
	if err != nil {
		return failure(r.logger, "update role", err)
	}
	return result
}

// Delete removes a role. A role still assigned to accounts is kept.
func (r *RoleRepository) Delete(ctx context.Context, id uuid.UUID) model.Result {
	var result model.Result

	err := r.db.Run(ctx, func(ctx context.Context, s database.Session) error {
		affected, code, err := database.ExecChecked(ctx, s, deleteRoleSQL, id)
		if err != nil {
			return err
		}

		switch {
		case code == sqlerr.ForeignKeyViolation:
			r.logger.Info().Str("role_id", id.String()).Msg("role still in use, not deleted")
			result = model.Failed(model.OutcomeOperationFailed)
		case code != sqlerr.Other:
			result = violation(code)
		case affected == 0:
			result = model.Failed(model.OutcomeNotFound)
		default:
			result = model.Succeeded(model.OutcomeDeleted)
		}
		return nil
	})
	if err != nil {
		return failure(r.logger, "delete role", err)
	}
	return result
}
