package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/auth-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked, created_at`

type RefreshTokenRepository struct {
	db *Connection
}

func NewRefreshTokenRepository(db *Connection) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return storeError("create refresh token", err)
	}
	return nil
}

func (r *RefreshTokenRepository) FindValid(ctx context.Context, tokenHash string, now time.Time) (model.RefreshToken, error) {
	const query = `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2`
	return r.getOne(ctx, "find valid refresh token", query, tokenHash, now)
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	const query = `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	return r.getOne(ctx, "find refresh token", query, tokenHash)
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	res, err := r.db.executor(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return storeError("revoke refresh token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const query = `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	res, err := r.db.executor(ctx).ExecContext(ctx, query, userID)
	if err != nil {
		return 0, storeError("revoke refresh tokens by user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens by user: %w", err)
	}
	return n, nil
}

func (r *RefreshTokenRepository) getOne(ctx context.Context, op, query string, args ...any) (model.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var rt model.RefreshToken
	err := r.db.executor(ctx).QueryRowContext(ctx, query, args...).Scan(
		&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.Revoked, &rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, model.ErrNotFound
		}
		return model.RefreshToken{}, storeError(op, err)
	}
	return rt, nil
}
