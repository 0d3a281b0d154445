package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deppfellow/user-service/internal/config"
	"github.com/deppfellow/user-service/internal/errs"
	"github.com/deppfellow/user-service/internal/server"
	"github.com/deppfellow/user-service/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	claims *service.Claims
	err    error
}

func (s stubTokens) ParseToken(raw string) (*service.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func testServer() *server.Server {
	logger := zerolog.Nop()
	cfg := config.Defaults()
	return &server.Server{Config: cfg, Logger: &logger}
}

func newEcho(s *server.Server) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = NewGlobalMiddlewares(s).GlobalErrorHandler
	e.Use(RequestID(), NewContextEnhancer(s).EnhanceContext())
	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errs.HTTPError {
	t.Helper()
	var body errs.HTTPError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	claims := &service.Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-1"},
	}

	tests := []struct {
		name   string
		header string
		tokens stubTokens
		status int
	}{
		{"valid token", "Bearer abc", stubTokens{claims: claims}, http.StatusOK},
		{"scheme is case insensitive", "bearer abc", stubTokens{claims: claims}, http.StatusOK},
		{"missing header", "", stubTokens{claims: claims}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubTokens{claims: claims}, http.StatusUnauthorized},
		{"empty token", "Bearer ", stubTokens{claims: claims}, http.StatusUnauthorized},
		{"rejected token", "Bearer abc", stubTokens{err: service.ErrInvalidToken}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer()
			e := newEcho(s)
			auth := NewAuthMiddleware(s, tt.tokens)
			e.GET("/private", func(c echo.Context) error {
				return c.String(http.StatusOK, GetUserID(c)+":"+GetUserRole(c))
			}, auth.RequireAuth)

			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "account-1:admin", rec.Body.String())
			} else {
				assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	e := newEcho(testServer())
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestGlobalErrorHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"http error passes through", errs.NewConflictError("taken", false, nil), http.StatusConflict, "CONFLICT"},
		{"pg unique violation", &pgconn.PgError{Code: "23505", TableName: "roles", ConstraintName: "roles_name_key"}, http.StatusConflict, "ROLE_ALREADY_EXISTS"},
		{"unknown error hides details", errors.New("dial tcp: refused"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho(testServer())
			e.GET("/", func(c echo.Context) error { return tt.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, rec.Body.String(), "dial tcp")
		})
	}
}

func TestGlobalErrorHandler_RouteNotFound(t *testing.T) {
	e := newEcho(testServer())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decodeError(t, rec).Message)
}

func TestAuthLimiter(t *testing.T) {
	s := testServer()
	s.Config.Server.AuthRateLimit = 1
	s.Config.Server.AuthRateBurst = 1

	e := newEcho(s)
	e.POST("/auth", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewRateLimitMiddleware(s).AuthLimiter())

	statuses := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth", nil))
		statuses = append(statuses, rec.Code)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Equal(t, http.StatusTooManyRequests, statuses[2])
}

func TestAuthLimiter_DisabledPassesThrough(t *testing.T) {
	s := testServer()
	s.Config.Server.AuthRateLimit = 0

	e := newEcho(s)
	e.POST("/auth", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewRateLimitMiddleware(s).AuthLimiter())

	for range 5 {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
