package plume

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens issues and verifies the bearer credentials carried on every
// authenticated request. Tokens are HS256-signed JWTs holding the user id
// as subject and an expiry drawn from TTL. There is no refresh mechanism;
// clients log in again after expiry.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
}

// NewTokens creates a token issuer/verifier.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{Secret: []byte(secret), TTL: ttl}
}

// Issue produces a signed, time-limited credential for userID.
func (t *Tokens) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

// Verify decodes a credential and returns the user id it carries.
// Malformed, unsigned-matching and expired tokens all fail with
// ErrUnauthenticated; callers must not distinguish the cases.
func (t *Tokens) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("verify token: %w", ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("verify token: empty subject: %w", ErrUnauthenticated)
	}

	return claims.Subject, nil
}
