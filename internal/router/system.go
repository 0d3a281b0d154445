package router

import (
	"github.com/deppfellow/user-service/internal/handler"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/labstack/echo/v4"
)

func registerSystemRoutes(r *echo.Echo, s *server.Server, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)

	r.Static("/static", "static")
	r.Static(s.Config.Storage.PublicPath, s.Config.Storage.ImagesDir)

	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
