package middleware

import (
	"time"

	"github.com/deppfellow/user-service/internal/errs"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type RateLimitMiddleware struct {
	server *server.Server
}

func NewRateLimitMiddleware(s *server.Server) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		server: s,
	}
}

// AuthLimiter throttles login attempts per client IP. It is a pass-through
// when the configured rate is zero.
func (r *RateLimitMiddleware) AuthLimiter() echo.MiddlewareFunc {
	cfg := r.server.Config.Server
	if cfg.AuthRateLimit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.AuthRateLimit),
			Burst:     cfg.AuthRateBurst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			r.RecordRateLimitHit(c.Path())
			GetLogger(c).Warn().Str("ip", identifier).Msg("login rate limit exceeded")
			return errs.NewTooManyRequestsError("Too many login attempts, try again later")
		},
	})
}

// RecordRateLimitHit reports a throttled request to New Relic, when enabled.
func (r *RateLimitMiddleware) RecordRateLimitHit(endpoint string) {
	if r.server.LoggerService != nil && r.server.LoggerService.GetApplication() != nil {
		r.server.LoggerService.GetApplication().RecordCustomEvent("RateLimitHit", map[string]interface{}{
			"endpoint": endpoint,
		})
	}
}
