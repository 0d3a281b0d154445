// Package router assembles the echo instance: global middlewares, system
// routes and the versioned API.
package router

import (
	"github.com/deppfellow/user-service/internal/handler"
	"github.com/deppfellow/user-service/internal/middleware"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/deppfellow/user-service/internal/service"
	"github.com/labstack/echo/v4"
)

func NewRouter(s *server.Server, h *handler.Handlers, services *service.Services) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s, services.Auth)

	router := echo.New()
	router.HideBanner = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middlewares.Global.Recover(),
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
	)

	registerSystemRoutes(router, s, h)

	v1 := router.Group("/api/v1")
	registerRoleRoutes(v1, h, middlewares)
	registerAccountRoutes(v1, h, middlewares)

	return router
}

func registerRoleRoutes(api *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	roles := api.Group("/roles", m.Auth.RequireAuth)
	roles.GET("/get-all", h.Roles.GetAll())
	roles.POST("/create", h.Roles.Create())
	roles.PUT("/update", h.Roles.Update())
	roles.DELETE("/delete/:id", h.Roles.Delete())
}

func registerAccountRoutes(api *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	users := api.Group("/users")

	users.POST("/auth", h.Accounts.Authenticate(), m.RateLimit.AuthLimiter())
	users.GET("/get-user/:id", h.Accounts.GetByID())

	users.GET("/get-all", h.Accounts.GetAll(), m.Auth.RequireAuth)
	users.POST("/create", h.Accounts.Create(), m.Auth.RequireAuth)
	users.PATCH("/update", h.Accounts.Update(), m.Auth.RequireAuth)
	users.DELETE("/delete/:id", h.Accounts.Delete(), m.Auth.RequireAuth)
}
