package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/auth-server/internal/model"
)

func newMockConnection(t *testing.T) (*Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return WrapDB(db, time.Second), mock
}

func userRows(u model.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "is_active", "token_version", "created_at", "updated_at"}).
		AddRow(u.ID.String(), u.Email, u.PasswordHash, u.IsActive, u.TokenVersion, u.CreatedAt, u.UpdatedAt)
}

func sampleUser() model.User {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: "$argon2id$hash",
		IsActive:     true,
		TokenVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	u := sampleUser()

	tests := []struct {
		name    string
		setup   func(m sqlmock.Sqlmock)
		want    model.User
		wantErr error
	}{
		{
			name: "found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1$`).WithArgs(u.ID).WillReturnRows(userRows(u))
			},
			want: u,
		},
		{
			name: "not found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1$`).WithArgs(u.ID).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantErr: model.ErrNotFound,
		},
		{
			name: "connection failure",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1$`).WithArgs(u.ID).
					WillReturnError(errors.New("connection reset by peer"))
			},
			wantErr: model.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockConnection(t)
			tt.setup(mock)

			got, err := NewUserRepository(db).GetByID(context.Background(), u.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserRepository_GetByIDForShare(t *testing.T) {
	db, mock := newMockConnection(t)
	u := sampleUser()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1 FOR SHARE`).WithArgs(u.ID).WillReturnRows(userRows(u))

	got, err := NewUserRepository(db).GetByIDForShare(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.TokenVersion, got.TokenVersion)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := newMockConnection(t)
	u := sampleUser()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).WithArgs(u.Email).WillReturnRows(userRows(u))

	got, err := NewUserRepository(db).GetByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUserRepository_Create(t *testing.T) {
	u := sampleUser()

	t.Run("success", func(t *testing.T) {
		db, mock := newMockConnection(t)
		mock.ExpectQuery(`INSERT INTO users (.+) RETURNING`).
			WithArgs(u.ID, u.Email, u.PasswordHash, true, 1).
			WillReturnRows(userRows(u))

		saved, err := NewUserRepository(db).Create(context.Background(), u)
		require.NoError(t, err)
		assert.Equal(t, u, saved)
	})

	t.Run("defaults version", func(t *testing.T) {
		db, mock := newMockConnection(t)
		in := u
		in.TokenVersion = 0
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(u.ID, u.Email, u.PasswordHash, true, model.InitialTokenVersion).
			WillReturnRows(userRows(u))

		_, err := NewUserRepository(db).Create(context.Background(), in)
		require.NoError(t, err)
	})

	t.Run("duplicate email", func(t *testing.T) {
		db, mock := newMockConnection(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := NewUserRepository(db).Create(context.Background(), u)
		assert.ErrorIs(t, err, model.ErrEmailAlreadyRegistered)
	})
}

func TestUserRepository_IncrementTokenVersion(t *testing.T) {
	id := uuid.New()

	t.Run("atomic increment", func(t *testing.T) {
		db, mock := newMockConnection(t)
		mock.ExpectQuery(`UPDATE users SET token_version = token_version \+ 1(.+)RETURNING token_version`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(5))

		v, err := NewUserRepository(db).IncrementTokenVersion(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	})

	t.Run("unknown user", func(t *testing.T) {
		db, mock := newMockConnection(t)
		mock.ExpectQuery(`UPDATE users SET token_version`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"token_version"}))

		_, err := NewUserRepository(db).IncrementTokenVersion(context.Background(), id)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestUserRepository_Updates(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		query   string
		result  driver.Result
		execErr error
		call    func(r *UserRepository) error
		wantErr error
	}{
		{
			name:   "update email",
			query:  `UPDATE users SET email = \$2`,
			result: sqlmock.NewResult(0, 1),
			call: func(r *UserRepository) error {
				return r.UpdateEmail(context.Background(), id, "new@example.com")
			},
		},
		{
			name:    "update email conflict",
			query:   `UPDATE users SET email = \$2`,
			execErr: &pgconn.PgError{Code: "23505"},
			call: func(r *UserRepository) error {
				return r.UpdateEmail(context.Background(), id, "taken@example.com")
			},
			wantErr: model.ErrEmailAlreadyRegistered,
		},
		{
			name:   "update password",
			query:  `UPDATE users SET password_hash = \$2`,
			result: sqlmock.NewResult(0, 1),
			call: func(r *UserRepository) error {
				return r.UpdatePassword(context.Background(), id, "hash")
			},
		},
		{
			name:   "deactivate missing user",
			query:  `UPDATE users SET is_active = \$2`,
			result: sqlmock.NewResult(0, 0),
			call: func(r *UserRepository) error {
				return r.SetActive(context.Background(), id, false)
			},
			wantErr: model.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockConnection(t)
			exp := mock.ExpectExec(tt.query)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := tt.call(NewUserRepository(db))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUserRepository_ReplacePasswordHash(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name         string
		result       driver.Result
		execErr      error
		wantReplaced bool
		wantErr      error
	}{
		{
			name:         "hash unchanged",
			result:       sqlmock.NewResult(0, 1),
			wantReplaced: true,
		},
		{
			name:   "hash changed concurrently",
			result: sqlmock.NewResult(0, 0),
		},
		{
			name:    "connection lost",
			execErr: errors.New("conn closed"),
			wantErr: model.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockConnection(t)
			exp := mock.ExpectExec(`UPDATE users SET password_hash = \$3, updated_at = NOW\(\) WHERE id = \$1 AND password_hash = \$2`).
				WithArgs(id, "old-hash", "new-hash")
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			replaced, err := NewUserRepository(db).ReplacePasswordHash(context.Background(), id, "old-hash", "new-hash")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantReplaced, replaced)
		})
	}
}
