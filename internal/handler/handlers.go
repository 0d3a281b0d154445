package handler

import (
	"github.com/deppfellow/user-service/internal/server"
	"github.com/deppfellow/user-service/internal/service"
)

type Handlers struct {
	Health   *HealthHandler
	OpenAPI  *OpenAPIHandler
	Roles    *RoleHandler
	Accounts *AccountHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(s),
		OpenAPI:  NewOpenAPIHandler(s),
		Roles:    NewRoleHandler(s, services.Roles),
		Accounts: NewAccountHandler(s, services.Accounts),
	}
}
