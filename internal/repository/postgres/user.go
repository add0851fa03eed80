package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/auth-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, email, password_hash, is_active, token_version, created_at, updated_at`

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "get user by id", query, id)
}

func (r *UserRepository) GetByIDForShare(ctx context.Context, id uuid.UUID) (model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR SHARE`
	return r.getOne(ctx, "lock user", query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, "get user by email", query, email)
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	const query = `
		INSERT INTO users (id, email, password_hash, is_active, token_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + userColumns

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.TokenVersion == 0 {
		user.TokenVersion = model.InitialTokenVersion
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	saved, err := scanUser(r.db.executor(ctx).QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.IsActive, user.TokenVersion,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, model.ErrEmailAlreadyRegistered
		}
		return model.User{}, storeError("create user", err)
	}
	return saved, nil
}

func (r *UserRepository) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	const query = `
		UPDATE users SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING token_version`

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var version int
	if err := r.db.executor(ctx).QueryRowContext(ctx, query, id).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, storeError("increment token version", err)
	}
	return version, nil
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	const query = `UPDATE users SET email = $2, updated_at = NOW() WHERE id = $1`

	err := r.execOne(ctx, "update email", query, id, email)
	if isUniqueViolation(err) {
		return model.ErrEmailAlreadyRegistered
	}
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *UserRepository) ReplacePasswordHash(ctx context.Context, id uuid.UUID, current, next string) (bool, error) {
	const query = `UPDATE users SET password_hash = $3, updated_at = NOW() WHERE id = $1 AND password_hash = $2`

	err := r.execOne(ctx, "replace password hash", query, id, current, next)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	const query = `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "set user active", query, id, active)
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, arg any) (model.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	user, err := scanUser(r.db.executor(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, storeError(op, err)
	}
	return user, nil
}

// execOne runs an update that must touch exactly one row.
func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	res, err := r.db.executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return storeError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
