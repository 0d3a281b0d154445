package service

import (
	"context"

	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WelcomeQueue enqueues the welcome email of a new account.
type WelcomeQueue interface {
	EnqueueWelcomeEmail(ctx context.Context, to, fullName, username string) error
}

type AccountService struct {
	repo    *repository.AccountRepository
	welcome WelcomeQueue
	logger  *zerolog.Logger
}

// NewAccountService wires the repository. welcome may be nil.
func NewAccountService(repo *repository.AccountRepository, welcome WelcomeQueue, logger *zerolog.Logger) *AccountService {
	return &AccountService{repo: repo, welcome: welcome, logger: logger}
}

func (s *AccountService) List(ctx context.Context) ([]model.Account, error) {
	return s.repo.ListAll(ctx)
}

// Create stores the account and, once committed, queues the welcome email
// for accounts that have an address. A queueing failure does not change
// the result.
func (s *AccountService) Create(ctx context.Context, in model.NewAccount) model.Result {
	result := s.repo.Create(ctx, in)
	if !result.IsSuccess || in.Email == nil || *in.Email == "" || s.welcome == nil {
		return result
	}

	if err := s.welcome.EnqueueWelcomeEmail(ctx, *in.Email, in.FullName, in.Username); err != nil {
		s.logger.Warn().Err(err).Str("username", in.Username).Msg("failed to enqueue welcome email")
	}
	return result
}

func (s *AccountService) Update(ctx context.Context, p model.AccountPatch) model.Result {
	return s.repo.Update(ctx, p)
}

func (s *AccountService) Delete(ctx context.Context, id uuid.UUID) model.Result {
	return s.repo.Delete(ctx, id)
}

func (s *AccountService) Authenticate(ctx context.Context, username, password string) model.AuthResult {
	return s.repo.Authenticate(ctx, username, password)
}

func (s *AccountService) GetByID(ctx context.Context, id uuid.UUID) model.AuthResult {
	return s.repo.GetByID(ctx, id)
}
