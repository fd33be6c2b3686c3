// Package auth implements the gate in front of the teacher role. The
// gate is consulted exactly once per privileged connection, at connect
// time; the decision holds until that connection closes. Students never
// pass through here.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"classboard/internal/config"
	"classboard/internal/database"
	"classboard/pkg/interfaces"
)

// Gate authorizes teacher credentials. Depending on configuration it
// accepts a shared password (hex SHA-256 digest comparison), per-teacher
// "name:password" credentials against the store, and signed session
// tokens previously issued by Login.
type Gate struct {
	mode           string
	passwordDigest string
	store          *database.CredentialStore
	tokens         *TokenIssuer
}

// NewGate builds the gate for the configured mode. store may be nil in
// password mode. With an empty password digest in password mode every
// authorization is refused until a credential is configured.
func NewGate(cfg *config.AuthConfig, store *database.CredentialStore) (*Gate, error) {
	if cfg.Mode == config.AuthModeStore && store == nil {
		return nil, errors.New("auth store mode requires a credential store")
	}

	var tokens *TokenIssuer
	if cfg.TokenSecret != "" {
		tokens = NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL)
	}

	return &Gate{
		mode:           cfg.Mode,
		passwordDigest: strings.ToLower(cfg.PasswordDigest),
		store:          store,
		tokens:         tokens,
	}, nil
}

// Tokens returns the gate's token issuer, or nil when tokens are
// disabled. The login endpoint uses it to mint session tokens.
func (g *Gate) Tokens() *TokenIssuer {
	return g.tokens
}

// Authorize checks a credential and returns the granted identity. A
// session token is tried first when tokens are enabled; otherwise the
// credential is checked according to the configured mode. All denials
// surface as interfaces.ErrUnauthorized.
func (g *Gate) Authorize(ctx context.Context, credential string) (interfaces.Identity, error) {
	if credential == "" {
		return interfaces.Identity{}, interfaces.ErrUnauthorized
	}

	if g.tokens != nil && looksLikeToken(credential) {
		if identity, err := g.tokens.Verify(credential); err == nil {
			return identity, nil
		}
		// An invalid token may still be a password containing dots;
		// fall through to the mode check.
	}

	switch g.mode {
	case config.AuthModePassword:
		return g.authorizePassword(credential)
	case config.AuthModeStore:
		return g.authorizeStored(ctx, credential)
	default:
		return interfaces.Identity{}, interfaces.ErrUnauthorized
	}
}

func (g *Gate) authorizePassword(credential string) (interfaces.Identity, error) {
	if g.passwordDigest == "" {
		return interfaces.Identity{}, interfaces.ErrUnauthorized
	}
	digest := DigestPassword(credential)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(g.passwordDigest)) != 1 {
		return interfaces.Identity{}, interfaces.ErrUnauthorized
	}
	return interfaces.Identity{Name: "teacher"}, nil
}

// authorizeStored expects the credential as "name:password".
func (g *Gate) authorizeStored(ctx context.Context, credential string) (interfaces.Identity, error) {
	name, password, found := strings.Cut(credential, ":")
	if !found || name == "" || password == "" {
		return interfaces.Identity{}, interfaces.ErrUnauthorized
	}

	hash, err := g.store.PasswordHash(ctx, name)
	if err != nil {
		return interfaces.Identity{}, interfaces.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return interfaces.Identity{}, interfaces.ErrUnauthorized
	}
	return interfaces.Identity{Name: name}, nil
}

// DigestPassword returns the hex SHA-256 digest used by password mode.
func DigestPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// looksLikeToken is a cheap structural check for a compact JWS.
func looksLikeToken(credential string) bool {
	return strings.Count(credential, ".") == 2
}
