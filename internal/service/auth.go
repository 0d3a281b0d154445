package service

import (
	"errors"
	"fmt"

	"github.com/deppfellow/user-service/internal/server"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the bearer token claims the API relies on. Subject carries
// the account id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService verifies HS256 bearer tokens signed with the shared secret.
type AuthService struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthService(s *server.Server) *AuthService {
	return NewAuthServiceWithSecret(s.Config.Auth.SecretKey)
}

func NewAuthServiceWithSecret(secret string) *AuthService {
	return &AuthService{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// ParseToken validates the signature and expiry of raw and returns its
// claims. A token without a subject is rejected.
func (a *AuthService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
