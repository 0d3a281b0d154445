package service

import (
	"context"

	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/repository"
	"github.com/google/uuid"
)

type RoleService struct {
	repo *repository.RoleRepository
}

func NewRoleService(repo *repository.RoleRepository) *RoleService {
	return &RoleService{repo: repo}
}

func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	return s.repo.ListAll(ctx)
}

func (s *RoleService) Create(ctx context.Context, name string) model.Result {
	return s.repo.Create(ctx, name)
}

func (s *RoleService) Update(ctx context.Context, id uuid.UUID, name string) model.Result {
	return s.repo.Update(ctx, id, name)
}

func (s *RoleService) Delete(ctx context.Context, id uuid.UUID) model.Result {
	return s.repo.Delete(ctx, id)
}
