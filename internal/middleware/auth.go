package middleware

import (
	"context"

	"connectrpc.com/connect"
	"github.com/mmynk/tripsplit/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsKey is the context key for storing the authenticated claims.
const ClaimsKey contextKey = "claims"

// GetClaims extracts the claims from the context.
// Returns nil if the request was not authenticated.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// GetActor extracts the authenticated actor from the context.
// Returns empty string if not found.
func GetActor(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Actor
	}
	return ""
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// CheckTrip fails with PermissionDenied when the request's token is scoped
// to another trip. Contexts without claims are in-process calls and pass.
func CheckTrip(ctx context.Context, tripID string) error {
	claims := GetClaims(ctx)
	if claims == nil || claims.Allows(tripID) {
		return nil
	}
	return connect.NewError(connect.CodePermissionDenied, auth.ErrWrongTrip)
}

// RequireAuth returns a middleware that validates bearer tokens and requires authentication.
// It extracts the token from the Authorization header, validates it, and adds
// the claims to the request context.
func RequireAuth(authenticator auth.Authenticator) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token, err := auth.BearerToken(req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			claims, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithClaims(ctx, claims), req)
		}
	}
}
