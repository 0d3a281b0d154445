package handler

import (
	"net/http"

	"context"

	"github.com/deppfellow/user-service/internal/model"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RoleService is the role workflow the handler drives.
type RoleService interface {
	List(ctx context.Context) ([]model.Role, error)
	Create(ctx context.Context, name string) model.Result
	Update(ctx context.Context, id uuid.UUID, name string) model.Result
	Delete(ctx context.Context, id uuid.UUID) model.Result
}

type RoleHandler struct {
	Handler
	roles RoleService
}

func NewRoleHandler(s *server.Server, roles RoleService) *RoleHandler {
	return &RoleHandler{
		Handler: NewHandler(s),
		roles:   roles,
	}
}

func (h *RoleHandler) GetAll() echo.HandlerFunc {
	return Handle(h.Handler, func(c echo.Context, _ *Empty) ([]model.Role, error) {
		return h.roles.List(c.Request().Context())
	}, http.StatusOK)
}

func (h *RoleHandler) Create() echo.HandlerFunc {
	return HandleOutcome(h.Handler, func(c echo.Context, req *CreateRoleRequest) (model.Result, error) {
		return h.roles.Create(c.Request().Context(), req.Name), nil
	})
}

func (h *RoleHandler) Update() echo.HandlerFunc {
	return HandleOutcome(h.Handler, func(c echo.Context, req *UpdateRoleRequest) (model.Result, error) {
		return h.roles.Update(c.Request().Context(), uuid.MustParse(req.ID), req.Name), nil
	})
}

func (h *RoleHandler) Delete() echo.HandlerFunc {
	return HandleOutcome(h.Handler, func(c echo.Context, req *IDParam) (model.Result, error) {
		return h.roles.Delete(c.Request().Context(), req.UUID()), nil
	})
}
