package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/auth-server/internal/model"
)

func refreshRows(rt model.RefreshToken) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "revoked", "created_at"}).
		AddRow(rt.ID.String(), rt.UserID.String(), rt.TokenHash, rt.ExpiresAt, rt.Revoked, rt.CreatedAt)
}

func sampleRefreshToken() model.RefreshToken {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.RefreshToken{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		TokenHash: "abc123",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedAt: now,
	}
}

func TestRefreshTokenRepository_Create(t *testing.T) {
	db, mock := newMockConnection(t)
	rt := sampleRefreshToken()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(rt.ID, rt.UserID, rt.TokenHash, rt.ExpiresAt, rt.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewRefreshTokenRepository(db).Create(context.Background(), rt))
}

func TestRefreshTokenRepository_Create_AssignsID(t *testing.T) {
	db, mock := newMockConnection(t)
	rt := sampleRefreshToken()
	rt.ID = uuid.Nil

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(sqlmock.AnyArg(), rt.UserID, rt.TokenHash, rt.ExpiresAt, rt.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewRefreshTokenRepository(db).Create(context.Background(), rt))
}

func TestRefreshTokenRepository_FindValid(t *testing.T) {
	rt := sampleRefreshToken()
	now := rt.CreatedAt.Add(time.Hour)

	t.Run("found", func(t *testing.T) {
		db, mock := newMockConnection(t)
		mock.ExpectQuery(`WHERE token_hash = \$1 AND revoked = FALSE AND expires_at > \$2`).
			WithArgs(rt.TokenHash, now).
			WillReturnRows(refreshRows(rt))

		got, err := NewRefreshTokenRepository(db).FindValid(context.Background(), rt.TokenHash, now)
		require.NoError(t, err)
		assert.Equal(t, rt, got)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMockConnection(t)
		mock.ExpectQuery(`FROM refresh_tokens`).
			WithArgs(rt.TokenHash, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := NewRefreshTokenRepository(db).FindValid(context.Background(), rt.TokenHash, now)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestRefreshTokenRepository_FindByHash(t *testing.T) {
	db, mock := newMockConnection(t)
	rt := sampleRefreshToken()
	rt.Revoked = true

	mock.ExpectQuery(`FROM refresh_tokens WHERE token_hash = \$1$`).
		WithArgs(rt.TokenHash).
		WillReturnRows(refreshRows(rt))

	got, err := NewRefreshTokenRepository(db).FindByHash(context.Background(), rt.TokenHash)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestRefreshTokenRepository_Revoke(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		setup   func(m sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "revoked",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE WHERE id = \$1 AND revoked = FALSE`).
					WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "already revoked",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE`).
					WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: model.ErrNotFound,
		},
		{
			name: "timeout",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE`).
					WithArgs(id).WillReturnError(context.DeadlineExceeded)
			},
			wantErr: model.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockConnection(t)
			tt.setup(mock)

			err := NewRefreshTokenRepository(db).Revoke(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRefreshTokenRepository_RevokeAllForUser(t *testing.T) {
	userID := uuid.New()

	t.Run("counts rows", func(t *testing.T) {
		db, mock := newMockConnection(t)
		mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = \$1 AND revoked = FALSE`).
			WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 3))

		n, err := NewRefreshTokenRepository(db).RevokeAllForUser(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("error", func(t *testing.T) {
		db, mock := newMockConnection(t)
		mock.ExpectExec(`UPDATE refresh_tokens`).
			WithArgs(userID).WillReturnError(errors.New("broken pipe"))

		_, err := NewRefreshTokenRepository(db).RevokeAllForUser(context.Background(), userID)
		assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	})
}
