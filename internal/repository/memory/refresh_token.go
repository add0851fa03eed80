package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/auth-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

type RefreshTokenRepository struct {
	s *Store
}

func NewRefreshTokenRepository(s *Store) *RefreshTokenRepository {
	return &RefreshTokenRepository{s: s}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token model.RefreshToken) error {
	defer r.s.lock(ctx)()

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.s.now().UTC()
	}
	token.Revoked = false
	r.s.tokens[token.ID] = token
	return nil
}

func (r *RefreshTokenRepository) FindValid(ctx context.Context, tokenHash string, now time.Time) (model.RefreshToken, error) {
	defer r.s.lock(ctx)()

	for _, t := range r.s.tokens {
		if t.TokenHash == tokenHash && t.Valid(now) {
			return t, nil
		}
	}
	return model.RefreshToken{}, model.ErrNotFound
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	defer r.s.lock(ctx)()

	for _, t := range r.s.tokens {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return model.RefreshToken{}, model.ErrNotFound
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	t, ok := r.s.tokens[id]
	if !ok || t.Revoked {
		return model.ErrNotFound
	}
	t.Revoked = true
	r.s.tokens[id] = t
	return nil
}

func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, t := range r.s.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			r.s.tokens[id] = t
			n++
		}
	}
	return n, nil
}
