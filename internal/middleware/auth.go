package middleware

import (
	"strings"
	"time"

	"github.com/deppfellow/user-service/internal/errs"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/deppfellow/user-service/internal/service"
	"github.com/labstack/echo/v4"
)

// TokenParser verifies a raw bearer token.
type TokenParser interface {
	ParseToken(raw string) (*service.Claims, error)
}

type AuthMiddleware struct {
	server *server.Server
	tokens TokenParser
}

func NewAuthMiddleware(s *server.Server, tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
		tokens: tokens,
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's id and role on the context.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			GetLogger(c).Warn().
				Str("function", "RequireAuth").
				Dur("duration", time.Since(start)).
				Msg("missing bearer token")

			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		claims, err := auth.tokens.ParseToken(raw)
		if err != nil {
			GetLogger(c).Warn().
				Err(err).
				Str("function", "RequireAuth").
				Dur("duration", time.Since(start)).
				Msg("rejected bearer token")

			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(UserRoleKey, claims.Role)

		logger := GetLogger(c).With().
			Str("user_id", claims.Subject).
			Str("user_role", claims.Role).
			Logger()
		c.Set(LoggerKey, &logger)

		logger.Debug().
			Str("function", "RequireAuth").
			Dur("duration", time.Since(start)).
			Msg("user authenticated successfully")

		return next(c)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
