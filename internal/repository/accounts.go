package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/deppfellow/user-service/internal/database"
	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/sqlerr"
	"github.com/deppfellow/user-service/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

const (
	listAccountsSQL = `
		SELECT a.id, a.full_name, a.username, a.email, a.phone_number, r.name,
		       a.image_url, a.is_active, a.created_at, a.updated_at
		FROM accounts a
		JOIN roles r ON r.id = a.role_id
		ORDER BY a.full_name ASC`

	fullNameTakenSQL      = `SELECT 1 FROM accounts WHERE full_name = $1`
	fullNameTakenOtherSQL = `SELECT 1 FROM accounts WHERE full_name = $1 AND id <> $2`

	insertAccountSQL = `
		INSERT INTO accounts (full_name, username, email, phone_number, role_id, password_hash, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	lockAccountSQL = `
		SELECT full_name, username, email, phone_number, role_id, is_active, image_url
		FROM accounts
		WHERE id = $1
		FOR UPDATE`

	accountImageSQL  = `SELECT image_url FROM accounts WHERE id = $1 FOR UPDATE`
	deleteAccountSQL = `DELETE FROM accounts WHERE id = $1`

	credentialsSQL = `
		SELECT a.id, r.name, a.password_hash
		FROM accounts a
		JOIN roles r ON r.id = a.role_id
		WHERE a.username = $1 AND a.is_active
		LIMIT 1`

	activeAccountSQL = `
		SELECT a.id, a.username, r.name
		FROM accounts a
		JOIN roles r ON r.id = a.role_id
		WHERE a.id = $1 AND a.is_active`
)

type AccountRepository struct {
	db       database.Runner
	store    storage.Store
	cleanup  ImageCleanup
	logger   *zerolog.Logger
	hashCost int

	dummyOnce sync.Once
	dummyHash []byte
}

type AccountOption func(*AccountRepository)

// WithHashCost overrides the bcrypt cost used for new passwords.
func WithHashCost(cost int) AccountOption {
	return func(r *AccountRepository) {
		r.hashCost = cost
	}
}

// NewAccountRepository wires the repository. cleanup may be nil, in which
// case files that fail to delete are only logged.
func NewAccountRepository(db database.Runner, store storage.Store, cleanup ImageCleanup, logger *zerolog.Logger, opts ...AccountOption) *AccountRepository {
	r := &AccountRepository{
		db:       db,
		store:    store,
		cleanup:  cleanup,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.FullName,
		&a.Username,
		&a.Email,
		&a.PhoneNumber,
		&a.Role,
		&a.ImageURL,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func scanStoredAccount(row pgx.Row) (storedAccount, error) {
	var a storedAccount
	err := row.Scan(
		&a.FullName,
		&a.Username,
		&a.Email,
		&a.PhoneNumber,
		&a.RoleID,
		&a.IsActive,
		&a.ImageURL,
	)
	return a, err
}

func scanNullableText(row pgx.Row) (*string, error) {
	var v *string
	err := row.Scan(&v)
	return v, err
}

// ListAll returns every account with its role name, ordered by full name.
func (r *AccountRepository) ListAll(ctx context.Context) ([]model.Account, error) {
	return database.QueryMany(ctx, r.db, listAccountsSQL, scanAccount)
}

// Create stores a new account. The image, if any, is uploaded once even
// when the transaction is retried and removed again if the account is not
// created.
func (r *AccountRepository) Create(ctx context.Context, in model.NewAccount) model.Result {
	if len(in.Password) > maxPasswordBytes {
		return model.Failed(model.OutcomeOperationFailed)
	}

	upload := newPendingUpload(r.store, in.Image)

	result, err := database.InTransaction(ctx, r.db, func(ctx context.Context, s database.Session) (model.Result, error) {
		taken, err := database.Exists(ctx, s, fullNameTakenSQL, in.FullName)
		if err != nil {
			return model.Result{}, err
		}
		if taken {
			return model.Failed(model.OutcomeAlreadyExists), nil
		}

		roleFound, err := database.Exists(ctx, s, roleExistsSQL, in.RoleID)
		if err != nil {
			return model.Result{}, err
		}
		if !roleFound {
			return model.Failed(model.OutcomeNotFound), nil
		}

		var imageURL *string
		if upload != nil {
			name, err := upload.put(ctx)
			if err != nil {
				return model.Result{}, err
			}
			reference := r.store.URL(in.ImageBaseURL, name)
			imageURL = &reference
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), r.hashCost)
		if err != nil {
			return model.Result{}, err
		}

		affected, code, err := database.ExecChecked(ctx, s, insertAccountSQL,
			in.FullName, in.Username, in.Email, in.PhoneNumber, in.RoleID, string(hash), imageURL)
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
		result = failure(r.logger, "create account", err)
	}

	if !result.IsSuccess {
		upload.discard(ctx, r.logger)
	}
	return result
}

// Update applies a patch to a locked row. Only columns whose value
// changes are written.
func (r *AccountRepository) Update(ctx context.Context, p model.AccountPatch) model.Result {
	var upload *pendingUpload
	if !p.RemoveImage {
		upload = newPendingUpload(r.store, p.Image)
	}

	result, err := database.InTransaction(ctx, r.db, func(ctx context.Context, s database.Session) (model.Result, error) {
		current, found, err := database.ScanOne(ctx, s, lockAccountSQL, scanStoredAccount, p.ID)
		if err != nil {
			return model.Result{}, err
		}
		if !found {
			return model.Failed(model.OutcomeNotFound), nil
		}

		if p.FullName != nil {
			taken, err := database.Exists(ctx, s, fullNameTakenOtherSQL, *p.FullName, p.ID)
			if err != nil {
				return model.Result{}, err
			}
			if taken {
				return model.Failed(model.OutcomeAlreadyExists), nil
			}
		}

		roleFound, err := database.Exists(ctx, s, roleExistsSQL, p.RoleID)
		if err != nil {
			return model.Result{}, err
		}
		if !roleFound {
			return model.Failed(model.OutcomeNotFound), nil
		}

		b := newUpdateBuilder(current)
		b.fullName(p.FullName)
		b.username(p.Username)
		b.email(p.Email)
		b.phoneNumber(p.PhoneNumber)
		b.roleID(p.RoleID)
		b.isActive(p.IsActive)

		switch {
		case p.RemoveImage:
			if current.ImageURL != nil {
				r.removeImage(ctx, *current.ImageURL)
			}
			b.image(nil)

		case upload != nil:
			if current.ImageURL != nil {
				r.removeImage(ctx, *current.ImageURL)
			}
			name, err := upload.put(ctx)
			if err != nil {
				return model.Result{}, err
			}
			reference := r.store.URL(p.ImageBaseURL, name)
			b.image(&reference)
		}

		if b.empty() {
			return model.Failed(model.OutcomeNoChanges), nil
		}

		query, args := b.build(p.ID)
		affected, code, err := database.ExecChecked(ctx, s, query, args...)
		if err != nil {
			return model.Result{}, err
		}
		if code != sqlerr.Other {
			return violation(code), database.ErrAbort
		}
		if affected == 0 {
			return model.Failed(model.OutcomeOperationFailed), database.ErrAbort
		}

		r.logger.Debug().
			Str("account_id", p.ID.String()).
			Strs("columns", b.columns()).
			Msg("account updated")

		return model.Succeeded(model.OutcomeUpdated), nil
	})
	if err != nil {
		result = failure(r.logger, "update account", err)
	}

	if !result.IsSuccess {
		upload.discard(ctx, r.logger)
	}
	return result
}

// Delete removes an account and its image.
func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) model.Result {
	result, err := database.InTransaction(ctx, r.db, func(ctx context.Context, s database.Session) (model.Result, error) {
		reference, found, err := database.ScanOne(ctx, s, accountImageSQL, scanNullableText, id)
		if err != nil {
			return model.Result{}, err
		}
		if !found {
			return model.Failed(model.OutcomeNotFound), nil
		}

		if reference != nil {
			r.removeImage(ctx, *reference)
		}

		affected, code, err := database.ExecChecked(ctx, s, deleteAccountSQL, id)
		if err != nil {
			return model.Result{}, err
		}
		if code != sqlerr.Other {
			return violation(code), database.ErrAbort
		}
		if affected == 0 {
			return model.Failed(model.OutcomeNotFound), nil
		}

		return model.Succeeded(model.OutcomeDeleted), nil
	})
	if err != nil {
		return failure(r.logger, "delete account", err)
	}
	return result
}

type credentials struct {
	id   uuid.UUID
	role string
	hash string
}

func scanCredentials(row pgx.Row) (credentials, error) {
	var c credentials
	err := row.Scan(&c.id, &c.role, &c.hash)
	return c, err
}

// Authenticate checks a username and password against an active
// account. Every failure yields the same result.
func (r *AccountRepository) Authenticate(ctx context.Context, username, password string) model.AuthResult {
	denied := model.AuthFailed(model.MessageInvalidCredentials)

	result, err := database.InTransaction(ctx, r.db, func(ctx context.Context, s database.Session) (model.AuthResult, error) {
		creds, found, err := database.ScanOne(ctx, s, credentialsSQL, scanCredentials, username)
		if err != nil {
			return denied, err
		}
		if !found {
			// Unknown users pay for a compare too, so timing matches a wrong password.
			_ = bcrypt.CompareHashAndPassword(r.dummyPasswordHash(), []byte(password))
			return denied, nil
		}

		if err := bcrypt.CompareHashAndPassword([]byte(creds.hash), []byte(password)); err != nil {
			if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				r.logger.Warn().Err(err).Str("account_id", creds.id.String()).Msg("stored password hash is unusable")
			}
			return denied, nil
		}

		return model.AuthSucceeded(creds.id.String(), username, creds.role), nil
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("authentication lookup failed")
		return denied
	}
	return result
}

type identity struct {
	id       uuid.UUID
	username string
	role     string
}

func scanIdentity(row pgx.Row) (identity, error) {
	var i identity
	err := row.Scan(&i.id, &i.username, &i.role)
	return i, err
}

// GetByID returns the identity of an active account.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) model.AuthResult {
	found, ok, err := database.QueryOne(ctx, r.db, activeAccountSQL, scanIdentity, id)
	if err != nil {
		return model.AuthFailed(failure(r.logger, "get account", err).Message)
	}
	if !ok {
		return model.AuthFailed(model.MessageNotFound)
	}
	return model.AuthSucceeded(found.id.String(), found.username, found.role)
}

// dummyPasswordHash is a hash at the configured cost that no password
// is checked in against.
func (r *AccountRepository) dummyPasswordHash() []byte {
	r.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), r.hashCost)
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to build dummy password hash")
			return
		}
		r.dummyHash = hash
	})
	return r.dummyHash
}

// removeImage deletes a stored file. A failure is logged and handed to
// the cleanup queue; it never fails the surrounding operation.
func (r *AccountRepository) removeImage(ctx context.Context, reference string) {
	err := r.store.Delete(ctx, reference)
	if err == nil {
		return
	}

	r.logger.Warn().Err(err).Str("image", reference).Msg("failed to delete account image")

	if r.cleanup == nil {
		return
	}
	if err := r.cleanup.ScheduleImageCleanup(context.WithoutCancel(ctx), reference); err != nil {
		r.logger.Error().Err(err).Str("image", reference).Msg("failed to schedule image cleanup")
	}
}

// pendingUpload uploads at most once, however often the unit of work
// around it runs.
type pendingUpload struct {
	store  storage.Store
	upload *storage.Upload
	name   string
	done   bool
}

func newPendingUpload(store storage.Store, u *storage.Upload) *pendingUpload {
	if u == nil {
		return nil
	}
	return &pendingUpload{store: store, upload: u}
}

func (p *pendingUpload) put(ctx context.Context) (string, error) {
	if p.done {
		return p.name, nil
	}
	name, err := p.store.Upload(ctx, p.upload)
	if err != nil {
		return "", err
	}
	p.name, p.done = name, true
	return name, nil
}

// discard removes the uploaded file, if one was written.
func (p *pendingUpload) discard(ctx context.Context, logger *zerolog.Logger) {
	if p == nil || !p.done {
		return
	}
	if err := p.store.Delete(context.WithoutCancel(ctx), p.name); err != nil {
		logger.Warn().Err(err).Str("image", p.name).Msg("failed to remove orphaned upload")
	}
}
