package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	// GetByIDForShare reads the user and holds a shared row lock until the
	// surrounding transaction ends. Outside of a transaction it behaves like GetByID.
	GetByIDForShare(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, user User) (User, error)
	// IncrementTokenVersion atomically bumps the user's token version and returns the new value.
	IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// ReplacePasswordHash stores next only if the current hash still equals
	// current. It reports false when the hash changed or the user is gone.
	ReplacePasswordHash(ctx context.Context, id uuid.UUID, current, next string) (bool, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// User represents a stored account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	TokenVersion int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InitialTokenVersion is the token version assigned to new users.
const InitialTokenVersion = 1
