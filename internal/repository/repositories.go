package repository

import (
	"github.com/deppfellow/user-service/internal/server"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	Roles    *RoleRepository
	Accounts *AccountRepository
}

// NewRepositories builds the repositories over the server's database,
// file store and job queue.
func NewRepositories(s *server.Server) *Repositories {
	var cleanup ImageCleanup
	if s.Job != nil {
		cleanup = s.Job
	}

	return &Repositories{
		Roles:    NewRoleRepository(s.DB, s.Logger),
		Accounts: NewAccountRepository(s.DB, s.Store, cleanup, s.Logger),
	}
}
