package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/user-service/internal/middleware"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/labstack/echo/v4"
)

type HealthHandler struct {
	Handler
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

type checkResult struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

// CheckHealth probes the configured dependencies. A failing database makes
// the service unhealthy (503); a failing Redis is reported but tolerated.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	cfg := h.server.Config.Observability.HealthChecks
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	checks := map[string]checkResult{}
	isHealthy := true

	if cfg.Has("database") {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		dbStart := time.Now()
		ok := h.server.DB.HealthCheck(ctx)
		cancel()

		result := checkResult{Status: "healthy", ResponseTime: time.Since(dbStart).String()}
		if !ok {
			result.Status = "unhealthy"
			result.Error = "database is unreachable"
			isHealthy = false

			logger.Error().Dur("response_time", time.Since(dbStart)).Msg("database health check failed")
			h.recordFailure("database", time.Since(dbStart), result.Error)
		}
		checks["database"] = result
	}

	if cfg.Has("redis") && h.server.Redis != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		redisStart := time.Now()
		err := h.server.Redis.Ping(ctx).Err()
		cancel()

		result := checkResult{Status: "healthy", ResponseTime: time.Since(redisStart).String()}
		if err != nil {
			result.Status = "unhealthy"
			result.Error = err.Error()

			logger.Warn().Err(err).Dur("response_time", time.Since(redisStart)).Msg("redis health check failed")
			h.recordFailure("redis", time.Since(redisStart), err.Error())
		}
		checks["redis"] = result
	}

	response := map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}

	if !isHealthy {
		response["status"] = "unhealthy"
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	logger.Debug().Dur("total_duration", time.Since(start)).Msg("health check passed")

	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write JSON response: %w", err)
	}
	return nil
}

func (h *HealthHandler) recordFailure(check string, elapsed time.Duration, message string) {
	if h.server.LoggerService == nil || h.server.LoggerService.GetApplication() == nil {
		return
	}
	h.server.LoggerService.GetApplication().RecordCustomEvent("HealthCheckError", map[string]any{
		"check_type":       check,
		"operation":        "health_check",
		"error_type":       check + "_unhealthy",
		"response_time_ms": elapsed.Milliseconds(),
		"error_message":    message,
	})
}
