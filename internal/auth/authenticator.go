package auth

import (
	"context"
	"strings"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping the token format without changing the
// middleware.
type Authenticator interface {
	// Authenticate verifies a bearer token and returns its claims.
	Authenticate(ctx context.Context, token string) (*Claims, error)
}

var _ Authenticator = (*JWTManager)(nil)

// Authenticate implements Authenticator with Validate.
func (m *JWTManager) Authenticate(_ context.Context, token string) (*Claims, error) {
	return m.Validate(token)
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}
