package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenTypeAccess is the typ claim carried by access tokens.
const TokenTypeAccess = "access"

// TokenCodec encodes access tokens and produces opaque refresh secrets.
type TokenCodec interface {
	IssueAccessToken(userID uuid.UUID, tokenVersion int, ttl time.Duration) (string, AccessClaims, error)
	DecodeAccessToken(token string) (AccessClaims, error)
	NewRefreshSecret() (string, error)
	HashRefreshSecret(secret string) string
}

// Blacklist is a TTL-bounded set of revoked access token ids.
type Blacklist interface {
	// Revoke records tokenID until expiresAt. It is a no-op when expiresAt has passed.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Transactor runs fn in a single unit of work. Stores called with the
// context passed to fn take part in it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AccessClaims is the decoded content of an access token.
type AccessClaims struct {
	UserID       uuid.UUID
	TokenVersion int
	TokenID      string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Principal is the identity established by a validated access token.
type Principal struct {
	UserID       uuid.UUID
	TokenVersion int
	TokenID      string
	ExpiresAt    time.Time
}

// TokenPair is handed to the caller exactly once at login, register and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
