// Package service is the business layer between handlers and repositories.
package service

import (
	"github.com/deppfellow/user-service/internal/repository"
	"github.com/deppfellow/user-service/internal/server"
)

type Services struct {
	Auth     *AuthService
	Roles    *RoleService
	Accounts *AccountService
}

func NewServices(s *server.Server, repos *repository.Repositories) *Services {
	var welcome WelcomeQueue
	if s.Job != nil {
		welcome = s.Job
	}

	return &Services{
		Auth:     NewAuthService(s),
		Roles:    NewRoleService(repos.Roles),
		Accounts: NewAccountService(repos.Accounts, welcome, s.Logger),
	}
}
