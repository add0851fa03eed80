package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore persists hashed refresh tokens. Records are never deleted.
type RefreshTokenStore interface {
	Create(ctx context.Context, token RefreshToken) error
	// FindValid returns the unrevoked, unexpired record with the given hash.
	FindValid(ctx context.Context, tokenHash string, now time.Time) (RefreshToken, error)
	// FindByHash returns the record regardless of its state.
	FindByHash(ctx context.Context, tokenHash string) (RefreshToken, error)
	// Revoke flips the revoked flag. It returns ErrNotFound when no unrevoked
	// record with the id exists, which lets callers detect a lost race.
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// RefreshToken is a persisted refresh token record. Only the hash of the
// secret is stored.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Valid reports whether the record can still be exchanged at now.
func (t RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
