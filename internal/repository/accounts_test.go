package repository

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/user-service/internal/database/dbtest"
	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const imageBase = "https://users.example.com"

func newAccountRepo(pool *dbtest.Pool, store *memStore, cleanup ImageCleanup) *AccountRepository {
	return NewAccountRepository(newTestDB(pool), store, cleanup, nopLogger(), WithHashCost(bcrypt.MinCost))
}

func pngUpload() *storage.Upload {
	return &storage.Upload{Filename: "avatar.png", ContentType: "image/png", Body: bytes.NewReader([]byte("png"))}
}

func newAccountInput(roleID uuid.UUID) model.NewAccount {
	return model.NewAccount{
		FullName:     "Grace Hopper",
		Username:     "grace.hopper",
		Email:        ptr("grace@example.com"),
		PhoneNumber:  ptr("+1 555 0100"),
		RoleID:       roleID,
		Password:     "cobol-rules",
		ImageBaseURL: imageBase,
	}
}

func TestAccountRepository_ListAll(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	pool := dbtest.NewPool(router{
		listAccountsSQL: always(dbtest.Row(
			id, "Grace Hopper", "grace.hopper", "grace@example.com", nil, "admin",
			nil, true, created, nil,
		)),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	accounts, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	a := accounts[0]
	assert.Equal(t, id, a.ID)
	assert.Equal(t, "admin", a.Role)
	assert.Equal(t, ptr("grace@example.com"), a.Email)
	assert.Nil(t, a.PhoneNumber)
	assert.Nil(t, a.UpdatedAt)
	assert.Equal(t, created, a.CreatedAt)
	assert.Contains(t, listAccountsSQL, "ORDER BY a.full_name ASC")
}

func TestAccountRepository_Create(t *testing.T) {
	roleID := uuid.New()
	var inserted []any

	pool := dbtest.NewPool(router{
		fullNameTakenSQL: always(dbtest.Result{}),
		roleExistsSQL:    always(dbtest.Row(1)),
		insertAccountSQL: func(s dbtest.Statement) dbtest.Result {
			inserted = s.Args
			return dbtest.Affected(1)
		},
	}.handle)
	store := newMemStore()
	repo := newAccountRepo(pool, store, nil)

	in := newAccountInput(roleID)
	in.Image = pngUpload()
	result := repo.Create(context.Background(), in)

	require.True(t, result.IsSuccess, result.Message)
	assert.Equal(t, model.MessageCreated, result.Message)
	assert.Equal(t, 1, pool.Commits())

	require.Len(t, inserted, 7)
	assert.Equal(t, "Grace Hopper", inserted[0])
	assert.Equal(t, roleID, inserted[4])
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(inserted[5].(string)), []byte("cobol-rules")))
	assert.Equal(t, ptr(imageBase+"/images/img-1.png"), inserted[6])
	assert.True(t, store.has("img-1.png"))
}

func TestAccountRepository_Create_WithoutImage(t *testing.T) {
	var inserted []any
	pool := dbtest.NewPool(router{
		fullNameTakenSQL: always(dbtest.Result{}),
		roleExistsSQL:    always(dbtest.Row(1)),
		insertAccountSQL: func(s dbtest.Statement) dbtest.Result {
			inserted = s.Args
			return dbtest.Affected(1)
		},
	}.handle)
	store := newMemStore()
	repo := newAccountRepo(pool, store, nil)

	result := repo.Create(context.Background(), newAccountInput(uuid.New()))

	require.True(t, result.IsSuccess)
	assert.Equal(t, (*string)(nil), inserted[6])
	assert.Equal(t, 0, store.uploads)
}

func TestAccountRepository_Create_PasswordLimitIsBytes(t *testing.T) {
	pool := dbtest.NewPool(router{}.handle)
	store := newMemStore()
	repo := newAccountRepo(pool, store, nil)

	in := newAccountInput(uuid.New())
	in.Password = strings.Repeat("é", 60)
	in.Image = pngUpload()
	result := repo.Create(context.Background(), in)

	assert.Equal(t, model.OutcomeOperationFailed, result.Outcome())
	assert.Equal(t, 0, pool.Begins())
	assert.Equal(t, 0, store.uploads)
}

func TestAccountRepository_Create_FullNameTaken(t *testing.T) {
	pool := dbtest.NewPool(router{
		fullNameTakenSQL: always(dbtest.Row(1)),
	}.handle)
	store := newMemStore()
	repo := newAccountRepo(pool, store, nil)

	in := newAccountInput(uuid.New())
	in.Image = pngUpload()
	result := repo.Create(context.Background(), in)

	assert.Equal(t, model.OutcomeAlreadyExists, result.Outcome())
	assert.Equal(t, 0, pool.Count("INSERT INTO accounts"))
	assert.Equal(t, 0, store.uploads)
}

func TestAccountRepository_Create_RoleMissing(t *testing.T) {
	pool := dbtest.NewPool(router{
		fullNameTakenSQL: always(dbtest.Result{}),
		roleExistsSQL:    always(dbtest.Result{}),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	result := repo.Create(context.Background(), newAccountInput(uuid.New()))

	assert.Equal(t, model.OutcomeNotFound, result.Outcome())
	assert.Equal(t, 0, pool.Count("INSERT INTO accounts"))
}

func TestAccountRepository_Create_UsernameViolationRemovesUpload(t *testing.T) {
	pool := dbtest.NewPool(router{
		fullNameTakenSQL: always(dbtest.Result{}),
		roleExistsSQL:    always(dbtest.Row(1)),
		insertAccountSQL: always(dbtest.Fail(&pgconn.PgError{
			Code:           "23505",
			TableName:      "accounts",
			ConstraintName: "accounts_username_key",
		})),
	}.handle)
	store := newMemStore()
	repo := newAccountRepo(pool, store, nil)

	in := newAccountInput(uuid.New())
	in.Image = pngUpload()
	result := repo.Create(context.Background(), in)

	assert.Equal(t, model.OutcomeAlreadyExists, result.Outcome())
	assert.Equal(t, 0, pool.Commits())
	assert.Equal(t, 1, pool.Rollbacks())
	assert.Equal(t, []string{"img-1.png"}, store.deleted)
	assert.False(t, store.has("img-1.png"))
}

func TestAccountRepository_Create_UploadsOnceAcrossRetries(t *testing.T) {
	attempts := 0
	pool := dbtest.NewPool(router{
		fullNameTakenSQL: always(dbtest.Result{}),
		roleExistsSQL:    always(dbtest.Row(1)),
		insertAccountSQL: func(dbtest.Statement) dbtest.Result {
			attempts++
			if attempts < 3 {
				return dbtest.Fail(deadlock)
			}
			return dbtest.Affected(1)
		},
	}.handle)
	store := newMemStore()
	repo := newAccountRepo(pool, store, nil)

	in := newAccountInput(uuid.New())
	in.Image = pngUpload()
	result := repo.Create(context.Background(), in)

	require.True(t, result.IsSuccess)
	assert.Equal(t, 3, pool.Begins())
	assert.Equal(t, 1, store.uploads)
	assert.Empty(t, store.deleted)
}

func TestAccountRepository_Create_UploadFailure(t *testing.T) {
	pool := dbtest.NewPool(router{
		fullNameTakenSQL: always(dbtest.Result{}),
		roleExistsSQL:    always(dbtest.Row(1)),
	}.handle)
	store := newMemStore()
	store.uploadErr = errors.New("disk full")
	repo := newAccountRepo(pool, store, nil)

	in := newAccountInput(uuid.New())
	in.Image = pngUpload()
	result := repo.Create(context.Background(), in)

	assert.Equal(t, model.OutcomeUnexpectedError, result.Outcome())
	assert.Equal(t, 0, pool.Count("INSERT INTO accounts"))
}

func storedRow(roleID uuid.UUID, image any) dbtest.Result {
	return dbtest.Row("Ada Lovelace", "ada.lovelace", "ada@example.com", nil, roleID, true, image)
}

func unchangedPatch(id, roleID uuid.UUID) model.AccountPatch {
	return model.AccountPatch{
		ID:           id,
		Email:        ptr("ada@example.com"),
		RoleID:       roleID,
		IsActive:     true,
		ImageBaseURL: imageBase,
	}
}

func TestAccountRepository_Update_NotFound(t *testing.T) {
	pool := dbtest.NewPool(router{
		lockAccountSQL: always(dbtest.Result{}),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	result := repo.Update(context.Background(), unchangedPatch(uuid.New(), uuid.New()))

	assert.Equal(t, model.OutcomeNotFound, result.Outcome())
	assert.Equal(t, model.MessageNotFound, result.Message)
}

func TestAccountRepository_Update_NoChanges(t *testing.T) {
	roleID := uuid.New()
	pool := dbtest.NewPool(router{
		lockAccountSQL: always(storedRow(roleID, nil)),
		roleExistsSQL:  always(dbtest.Row(1)),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	p := unchangedPatch(uuid.New(), roleID)
	p.Username = ptr("ada.lovelace")
	result := repo.Update(context.Background(), p)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, model.OutcomeNoChanges, result.Outcome())
	assert.Equal(t, model.MessageNoChanges, result.Message)
	assert.Equal(t, 0, pool.Count("UPDATE accounts"))
}

func TestAccountRepository_Update_WritesOnlyChangedColumns(t *testing.T) {
	roleID := uuid.New()
	id := uuid.New()
	var update dbtest.Statement

	pool := dbtest.NewPool(router{
		lockAccountSQL:        always(storedRow(roleID, nil)),
		fullNameTakenOtherSQL: always(dbtest.Result{}),
		roleExistsSQL:         always(dbtest.Row(1)),
		"UPDATE accounts": func(s dbtest.Statement) dbtest.Result {
			update = s
			return dbtest.Affected(1)
		},
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	p := unchangedPatch(id, roleID)
	p.FullName = ptr("Ada King")
	result := repo.Update(context.Background(), p)

	require.True(t, result.IsSuccess, result.Message)
	assert.Equal(t, model.MessageUpdated, result.Message)
	assert.Equal(t, "UPDATE accounts SET full_name = $1, updated_at = now() WHERE id = $2", update.SQL)
	assert.Equal(t, []any{"Ada King", id}, update.Args)
	assert.True(t, update.InTx)
}

func TestAccountRepository_Update_FullNameTakenByOther(t *testing.T) {
	roleID := uuid.New()
	pool := dbtest.NewPool(router{
		lockAccountSQL:        always(storedRow(roleID, nil)),
		fullNameTakenOtherSQL: always(dbtest.Row(1)),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	p := unchangedPatch(uuid.New(), roleID)
	p.FullName = ptr("Grace Hopper")

	assert.Equal(t, model.OutcomeAlreadyExists, repo.Update(context.Background(), p).Outcome())
}

func TestAccountRepository_Update_RoleMissing(t *testing.T) {
	pool := dbtest.NewPool(router{
		lockAccountSQL: always(storedRow(uuid.New(), nil)),
		roleExistsSQL:  always(dbtest.Result{}),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	result := repo.Update(context.Background(), unchangedPatch(uuid.New(), uuid.New()))
	assert.Equal(t, model.OutcomeNotFound, result.Outcome())
}

func TestAccountRepository_Update_RemoveImage(t *testing.T) {
	roleID := uuid.New()
	var update dbtest.Statement

	pool := dbtest.NewPool(router{
		lockAccountSQL: always(storedRow(roleID, imageBase+"/images/old.png")),
		roleExistsSQL:  always(dbtest.Row(1)),
		"UPDATE accounts": func(s dbtest.Statement) dbtest.Result {
			update = s
			return dbtest.Affected(1)
		},
	}.handle)
	store := newMemStore("old.png")
	repo := newAccountRepo(pool, store, nil)

	p := unchangedPatch(uuid.New(), roleID)
	p.RemoveImage = true
	p.Image = pngUpload()
	result := repo.Update(context.Background(), p)

	require.True(t, result.IsSuccess)
	assert.False(t, store.has("old.png"))
	assert.Equal(t, 0, store.uploads)
	assert.Equal(t, "UPDATE accounts SET image_url = $1, updated_at = now() WHERE id = $2", update.SQL)
	assert.Equal(t, (*string)(nil), update.Args[0])
}

func TestAccountRepository_Update_RemoveImageWithoutStoredImage(t *testing.T) {
	roleID := uuid.New()
	pool := dbtest.NewPool(router{
		lockAccountSQL:    always(storedRow(roleID, nil)),
		roleExistsSQL:     always(dbtest.Row(1)),
		"UPDATE accounts": always(dbtest.Affected(1)),
	}.handle)
	store := newMemStore()
	repo := newAccountRepo(pool, store, nil)

	p := unchangedPatch(uuid.New(), roleID)
	p.RemoveImage = true
	result := repo.Update(context.Background(), p)

	assert.Equal(t, model.OutcomeUpdated, result.Outcome())
	assert.Empty(t, store.deleted)
}

func TestAccountRepository_Update_ReplaceImage(t *testing.T) {
	roleID := uuid.New()
	var update dbtest.Statement

	pool := dbtest.NewPool(router{
		lockAccountSQL: always(storedRow(roleID, imageBase+"/images/old.png")),
		roleExistsSQL:  always(dbtest.Row(1)),
		"UPDATE accounts": func(s dbtest.Statement) dbtest.Result {
			update = s
			return dbtest.Affected(1)
		},
	}.handle)
	store := newMemStore("old.png")
	repo := newAccountRepo(pool, store, nil)

	p := unchangedPatch(uuid.New(), roleID)
	p.Image = pngUpload()
	result := repo.Update(context.Background(), p)

	require.True(t, result.IsSuccess)
	assert.Equal(t, []string{"old.png"}, store.deleted)
	assert.True(t, store.has("img-1.png"))
	assert.Equal(t, ptr(imageBase+"/images/img-1.png"), update.Args[0])
}

func TestAccountRepository_Update_FailedWriteRemovesNewUpload(t *testing.T) {
	roleID := uuid.New()
	pool := dbtest.NewPool(router{
		lockAccountSQL:    always(storedRow(roleID, nil)),
		roleExistsSQL:     always(dbtest.Row(1)),
		"UPDATE accounts": always(dbtest.Affected(0)),
	}.handle)
	store := newMemStore()
	repo := newAccountRepo(pool, store, nil)

	p := unchangedPatch(uuid.New(), roleID)
	p.Image = pngUpload()
	result := repo.Update(context.Background(), p)

	assert.Equal(t, model.OutcomeOperationFailed, result.Outcome())
	assert.False(t, store.has("img-1.png"))
	assert.Equal(t, 0, pool.Commits())
}

func TestAccountRepository_Delete(t *testing.T) {
	id := uuid.New()
	pool := dbtest.NewPool(router{
		accountImageSQL:  always(dbtest.Row(imageBase + "/images/old.png")),
		deleteAccountSQL: always(dbtest.Affected(1)),
	}.handle)
	store := newMemStore("old.png")
	repo := newAccountRepo(pool, store, nil)

	result := repo.Delete(context.Background(), id)

	assert.Equal(t, model.OutcomeDeleted, result.Outcome())
	assert.False(t, store.has("old.png"))
	assert.Equal(t, 1, pool.Commits())
}

func TestAccountRepository_Delete_NotFound(t *testing.T) {
	pool := dbtest.NewPool(router{
		accountImageSQL: always(dbtest.Result{}),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	result := repo.Delete(context.Background(), uuid.New())

	assert.Equal(t, model.OutcomeNotFound, result.Outcome())
	assert.Equal(t, 0, pool.Count(deleteAccountSQL))
}

func TestAccountRepository_Delete_FileFailureSchedulesCleanup(t *testing.T) {
	reference := imageBase + "/images/locked.png"
	pool := dbtest.NewPool(router{
		accountImageSQL:  always(dbtest.Row(reference)),
		deleteAccountSQL: always(dbtest.Affected(1)),
	}.handle)
	store := newMemStore("locked.png")
	store.deleteErr = errors.New("permission denied")
	cleanup := &recordingCleanup{}
	repo := newAccountRepo(pool, store, cleanup)

	result := repo.Delete(context.Background(), uuid.New())

	assert.Equal(t, model.OutcomeDeleted, result.Outcome())
	assert.Equal(t, []string{reference}, cleanup.references)
}

func credentialRow(t *testing.T, id uuid.UUID, password string) dbtest.Result {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return dbtest.Row(id, "admin", string(hash))
}

func TestAccountRepository_Authenticate(t *testing.T) {
	id := uuid.New()
	pool := dbtest.NewPool(router{
		credentialsSQL: func(s dbtest.Statement) dbtest.Result {
			assert.True(t, s.InTx)
			if s.Args[0] == "grace.hopper" {
				return credentialRow(t, id, "cobol-rules")
			}
			return dbtest.Result{}
		},
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)
	ctx := context.Background()

	ok := repo.Authenticate(ctx, "grace.hopper", "cobol-rules")
	assert.Equal(t, model.AuthSucceeded(id.String(), "grace.hopper", "admin"), ok)

	denied := model.AuthFailed(model.MessageInvalidCredentials)
	assert.Equal(t, denied, repo.Authenticate(ctx, "grace.hopper", "fortran"))
	assert.Equal(t, denied, repo.Authenticate(ctx, "nobody", "cobol-rules"))
}

func TestAccountRepository_Authenticate_UnknownUserComparesDummyHash(t *testing.T) {
	pool := dbtest.NewPool(router{
		credentialsSQL: always(dbtest.Result{}),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	result := repo.Authenticate(context.Background(), "nobody", "cobol-rules")
	assert.Equal(t, model.AuthFailed(model.MessageInvalidCredentials), result)

	cost, err := bcrypt.Cost(repo.dummyPasswordHash())
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.ErrorIs(t, bcrypt.CompareHashAndPassword(repo.dummyPasswordHash(), []byte("cobol-rules")), bcrypt.ErrMismatchedHashAndPassword)
}

func TestAccountRepository_Authenticate_InfrastructureFailureLooksLikeBadCredentials(t *testing.T) {
	pool := dbtest.NewPool(router{
		credentialsSQL: always(dbtest.Fail(syntaxError)),
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)

	result := repo.Authenticate(context.Background(), "grace.hopper", "cobol-rules")

	assert.False(t, result.IsSuccess)
	assert.Equal(t, model.MessageInvalidCredentials, result.Message)
	assert.Empty(t, result.UserID)
}

func TestAccountRepository_GetByID(t *testing.T) {
	id := uuid.New()
	pool := dbtest.NewPool(router{
		activeAccountSQL: func(s dbtest.Statement) dbtest.Result {
			if s.Args[0] == id {
				return dbtest.Row(id, "grace.hopper", "admin")
			}
			return dbtest.Result{}
		},
	}.handle)
	repo := newAccountRepo(pool, newMemStore(), nil)
	ctx := context.Background()

	assert.Equal(t, model.AuthSucceeded(id.String(), "grace.hopper", "admin"), repo.GetByID(ctx, id))
	assert.Equal(t, model.AuthFailed(model.MessageNotFound), repo.GetByID(ctx, uuid.New()))
}
