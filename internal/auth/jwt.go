package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
	ErrWrongTrip    = errors.New("token does not grant access to this trip")
)

// AllTrips is the trip claim of service tokens that may act on any trip.
const AllTrips = "*"

// JWTManager handles JWT token generation and validation.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// Claims identifies the caller and the trip it may act on.
type Claims struct {
	// Actor is who the token was issued to, e.g. the trip application.
	Actor  string `json:"actor"`
	TripID string `json:"trip_id"`
	jwt.RegisteredClaims
}

// Allows reports whether the claims grant access to tripID.
func (c *Claims) Allows(tripID string) bool {
	return c.TripID == AllTrips || c.TripID == tripID
}

// NewJWTManager creates a new JWT manager with the given secret and token duration.
// secretKey should be a strong random string (e.g., 32 bytes).
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// Generate creates a token for actor scoped to tripID (or AllTrips).
func (m *JWTManager) Generate(actor, tripID string) (string, error) {
	if actor == "" || tripID == "" {
		return "", errors.New("actor and trip are required")
	}
	now := time.Now()
	claims := &Claims{
		Actor:  actor,
		TripID: tripID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate parses and validates a JWT token, returning the claims if valid.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TripID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
