package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/auth-server/internal/logger"
	"github.com/dtroode/auth-server/internal/model"
	"github.com/dtroode/auth-server/internal/password"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) bool
	NeedsUpgrade(encoded string) bool
}

// SessionManager issues and revokes token pairs.
type SessionManager interface {
	Issue(ctx context.Context, userID uuid.UUID, tokenVersion int) (model.TokenPair, error)
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

// Auth implements account operations: registration, login and profile changes.
type Auth struct {
	users    model.UserStore
	tx       model.Transactor
	hasher   PasswordHasher
	sessions SessionManager
	logger   *logger.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuth(
	users model.UserStore,
	tx model.Transactor,
	hasher PasswordHasher,
	sessions SessionManager,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		users:    users,
		tx:       tx,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger,
	}
}

// Register creates an active account and returns its first token pair.
func (a *Auth) Register(ctx context.Context, email, plaintext string) (model.TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := password.CheckStrength(plaintext); err != nil {
		return model.TokenPair{}, err
	}

	hash, err := a.hasher.Hash(plaintext)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to hash password: %w", err)
	}

	var pair model.TokenPair
	err = a.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := a.users.Create(ctx, model.User{
			ID:           uuid.New(),
			Email:        email,
			PasswordHash: hash,
			IsActive:     true,
			TokenVersion: model.InitialTokenVersion,
		})
		if err != nil {
			return err
		}
		pair, err = a.sessions.Issue(ctx, user.ID, user.TokenVersion)
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrEmailAlreadyRegistered) {
			a.logger.Info("Auth service: email already registered",
				"email", email)
			return model.TokenPair{}, err
		}
		a.logger.Error("Auth service: registration failed",
			"email", email,
			"error", err.Error())
		return model.TokenPair{}, fmt.Errorf("failed to register user: %w", err)
	}

	a.logger.Info("Auth service: user registered",
		"email", email)
	return pair, nil
}

// Login verifies credentials and returns a new token pair.
func (a *Auth) Login(ctx context.Context, email, plaintext string) (model.TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Spend the same KDF time as for a wrong password.
			a.hasher.Verify(plaintext, a.dummy())
			return model.TokenPair{}, model.ErrInvalidCredentials
		}
		return model.TokenPair{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	if !a.hasher.Verify(plaintext, user.PasswordHash) {
		a.logger.Info("Auth service: invalid password",
			"user_id", user.ID)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	var pair model.TokenPair
	err = a.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Re-read under a shared lock so the pair is issued at the version
		// current at commit, not the one seen before password verification.
		locked, err := a.users.GetByIDForShare(ctx, user.ID)
		if err != nil {
			return err
		}
		if !locked.IsActive {
			return model.ErrAccountInactive
		}
		pair, err = a.sessions.Issue(ctx, locked.ID, locked.TokenVersion)
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrAccountInactive) {
			a.logger.Info("Auth service: login to inactive account",
				"user_id", user.ID)
			return model.TokenPair{}, err
		}
		return model.TokenPair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	a.upgradeHash(ctx, user, plaintext)

	a.logger.Info("Auth service: user logged in",
		"user_id", user.ID)
	return pair, nil
}

// upgradeHash re-hashes the password when the stored hash uses weaker parameters.
func (a *Auth) upgradeHash(ctx context.Context, user model.User, plaintext string) {
	if !a.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	hash, err := a.hasher.Hash(plaintext)
	if err != nil {
		a.logger.Warn("Auth service: failed to upgrade password hash",
			"user_id", user.ID,
			"error", err.Error())
		return
	}

	// The password may have changed since it was verified.
	replaced, err := a.users.ReplacePasswordHash(ctx, user.ID, user.PasswordHash, hash)
	if err != nil {
		a.logger.Warn("Auth service: failed to upgrade password hash",
			"user_id", user.ID,
			"error", err.Error())
		return
	}
	if !replaced {
		a.logger.Info("Auth service: password hash upgrade skipped, hash changed concurrently",
			"user_id", user.ID)
	}
}

// dummy returns the hash of a random secret, checked when the email is unknown.
func (a *Auth) dummy() string {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.Hash(uuid.NewString())
		if err != nil {
			a.logger.Warn("Auth service: failed to prepare dummy password hash",
				"error", err.Error())
			return
		}
		a.dummyHash = hash
	})
	return a.dummyHash
}

// GetProfile returns the account of userID.
func (a *Auth) GetProfile(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateEmail changes the login email of userID.
func (a *Auth) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return model.User{}, err
	}

	if err := a.users.UpdateEmail(ctx, userID, email); err != nil {
		if errors.Is(err, model.ErrEmailAlreadyRegistered) {
			return model.User{}, err
		}
		return model.User{}, fmt.Errorf("failed to update email: %w", err)
	}

	a.logger.Info("Auth service: email updated",
		"user_id", userID)
	return a.GetProfile(ctx, userID)
}

// ChangePassword replaces the password after verifying the current one and
// revokes every session of the user.
func (a *Auth) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !a.hasher.Verify(current, user.PasswordHash) {
		return model.ErrInvalidCredentials
	}
	if err := password.CheckStrength(next); err != nil {
		return err
	}

	hash, err := a.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = a.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := a.users.UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}
		return a.sessions.RevokeAll(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	a.logger.Info("Auth service: password changed",
		"user_id", userID)
	return nil
}

// Deactivate disables the account and revokes every session.
func (a *Auth) Deactivate(ctx context.Context, userID uuid.UUID) error {
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := a.users.SetActive(ctx, userID, false); err != nil {
			return err
		}
		return a.sessions.RevokeAll(ctx, userID)
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	a.logger.Info("Auth service: user deactivated",
		"user_id", userID)
	return nil
}

// LogoutAll revokes every session of userID.
func (a *Auth) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return a.sessions.RevokeAll(ctx, userID)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.ErrInvalidEmail
	}
	return email, nil
}
