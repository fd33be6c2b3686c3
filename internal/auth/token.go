package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"classboard/pkg/interfaces"
)

// TokenIssuer mints and verifies HS256 session tokens. A token stands in
// for the original credential on reconnects, so a teacher client only
// has to present the password once per session lifetime.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl}
}

// Issue signs a token carrying the granted identity as its subject.
func (t *TokenIssuer) Issue(identity interfaces.Identity) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   identity.Name,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify parses and validates a token, rejecting any signing method
// other than the HMAC family.
func (t *TokenIssuer) Verify(tokenStr string) (interfaces.Identity, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return interfaces.Identity{}, interfaces.ErrUnauthorized
	}
	return interfaces.Identity{Name: claims.Subject}, nil
}
