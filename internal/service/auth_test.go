package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/auth-server/internal/mocks"
	"github.com/dtroode/auth-server/internal/model"
	"github.com/dtroode/auth-server/internal/password"
	"github.com/dtroode/auth-server/internal/testutil"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "Corr3ct-horse"
)

var testKDF = password.Params{Time: 1, MemKiB: 8192, Par: 1}

type authHarness struct {
	*harness
	auth   *Auth
	hasher *password.Argon2
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	h := newHarness(t)
	hasher, err := password.NewArgon2(testKDF)
	require.NoError(t, err)
	return &authHarness{
		harness: h,
		auth:    NewAuth(h.users, h.store, hasher, h.svc, testutil.MakeNoopLogger()),
		hasher:  hasher,
	}
}

func (h *authHarness) register(t *testing.T) (model.User, model.TokenPair) {
	t.Helper()
	pair, err := h.auth.Register(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	user, err := h.users.GetByEmail(context.Background(), testEmail)
	require.NoError(t, err)
	return user, pair
}

func TestAuth_Register(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	pair, err := h.auth.Register(ctx, "  Alice@Example.COM ", testPassword)
	require.NoError(t, err)

	user, err := h.users.GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.Equal(t, model.InitialTokenVersion, user.TokenVersion)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.True(t, h.hasher.Verify(testPassword, user.PasswordHash))

	p, err := h.svc.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
}

func TestAuth_Register_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "invalid email", email: "not-an-email", password: testPassword, wantErr: model.ErrInvalidEmail},
		{name: "display name", email: "Alice <alice@example.com>", password: testPassword, wantErr: model.ErrInvalidEmail},
		{name: "short password", email: testEmail, password: "Ab1!", wantErr: model.ErrWeakPassword},
		{name: "no symbol", email: testEmail, password: "Abcdefgh1", wantErr: model.ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHarness(t)
			_, err := h.auth.Register(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuth_Register_Duplicate(t *testing.T) {
	h := newAuthHarness(t)
	h.register(t)

	_, err := h.auth.Register(context.Background(), testEmail, testPassword)
	assert.ErrorIs(t, err, model.ErrEmailAlreadyRegistered)
}

func TestAuth_Register_IssueFailureRollsBack(t *testing.T) {
	h := newAuthHarness(t)
	sessions := mocks.NewSessionManager(t)
	sessions.On("Issue", mock.Anything, mock.Anything, model.InitialTokenVersion).
		Return(model.TokenPair{}, model.ErrStoreUnavailable).Once()
	a := NewAuth(h.users, h.store, h.hasher, sessions, testutil.MakeNoopLogger())

	_, err := a.Register(context.Background(), testEmail, testPassword)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	_, err = h.users.GetByEmail(context.Background(), testEmail)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAuth_Login(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, _ := h.register(t)

	pair, err := h.auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	p, err := h.svc.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
}

func TestAuth_Login_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(t *testing.T, h *authHarness)
		email    string
		password string
		wantErr  error
	}{
		{
			name:     "unknown email",
			email:    "bob@example.com",
			password: testPassword,
			wantErr:  model.ErrInvalidCredentials,
		},
		{
			name:     "malformed email",
			email:    "bob",
			password: testPassword,
			wantErr:  model.ErrInvalidCredentials,
		},
		{
			name:     "wrong password",
			email:    testEmail,
			password: "Wr0ng-password",
			wantErr:  model.ErrInvalidCredentials,
		},
		{
			name: "inactive account",
			prepare: func(t *testing.T, h *authHarness) {
				user, err := h.users.GetByEmail(context.Background(), testEmail)
				require.NoError(t, err)
				require.NoError(t, h.users.SetActive(context.Background(), user.ID, false))
			},
			email:    testEmail,
			password: testPassword,
			wantErr:  model.ErrAccountInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHarness(t)
			h.register(t)
			if tt.prepare != nil {
				tt.prepare(t, h)
			}

			_, err := h.auth.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, model.IsUnauthorized(err))
		})
	}
}

func TestAuth_Login_UsesVersionAtIssue(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, _ := h.register(t)

	// A bump committed between password check and issue must be observed.
	users := &bumpOnShare{UserStore: h.users, bump: func(ctx context.Context) {
		_, err := h.users.IncrementTokenVersion(ctx, user.ID)
		require.NoError(t, err)
	}}
	a := NewAuth(users, h.store, h.hasher, h.svc, testutil.MakeNoopLogger())

	pair, err := a.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	p, err := h.svc.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.TokenVersion+1, p.TokenVersion)
}

// bumpOnShare runs bump right before the locked read.
type bumpOnShare struct {
	model.UserStore
	bump func(ctx context.Context)
}

func (b *bumpOnShare) GetByIDForShare(ctx context.Context, id uuid.UUID) (model.User, error) {
	b.bump(ctx)
	return b.UserStore.GetByIDForShare(ctx, id)
}

func TestAuth_Login_UpgradesHash(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, _ := h.register(t)

	stronger, err := password.NewArgon2(password.Params{Time: 2, MemKiB: 8192, Par: 1})
	require.NoError(t, err)
	a := NewAuth(h.users, h.store, stronger, h.svc, testutil.MakeNoopLogger())

	_, err = a.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	updated, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, user.PasswordHash, updated.PasswordHash)
	assert.False(t, stronger.NeedsUpgrade(updated.PasswordHash))
	assert.True(t, stronger.Verify(testPassword, updated.PasswordHash))
}

func TestAuth_Login_UpgradeDoesNotOverwriteNewPassword(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, _ := h.register(t)
	const newPassword = "N3w-Passw0rd!"

	// The password changes after Login verified the old one but before the
	// upgraded hash is written.
	hasher := &changeDuringUpgrade{Argon2: h.hasher, change: func() {
		require.NoError(t, h.auth.ChangePassword(ctx, user.ID, testPassword, newPassword))
	}}
	a := NewAuth(h.users, h.store, hasher, h.svc, testutil.MakeNoopLogger())

	_, err := a.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, testEmail, newPassword)
	assert.NoError(t, err)
	_, err = h.auth.Login(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

// changeDuringUpgrade always asks for an upgrade and runs change once, from
// inside the upgrade's Hash call.
type changeDuringUpgrade struct {
	*password.Argon2
	change func()
	fired  bool
}

func (c *changeDuringUpgrade) NeedsUpgrade(string) bool { return true }

func (c *changeDuringUpgrade) Hash(plaintext string) (string, error) {
	if !c.fired {
		c.fired = true
		c.change()
	}
	return c.Argon2.Hash(plaintext)
}

func TestAuth_Login_UnknownEmailStillVerifies(t *testing.T) {
	h := newAuthHarness(t)
	hasher := &countingHasher{Argon2: h.hasher}
	a := NewAuth(h.users, h.store, hasher, h.svc, testutil.MakeNoopLogger())

	_, err := a.Login(context.Background(), "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	assert.Equal(t, 1, hasher.verified)

	_, err = a.Login(context.Background(), "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	assert.Equal(t, 2, hasher.verified)
}

type countingHasher struct {
	*password.Argon2
	verified int
}

func (c *countingHasher) Verify(plaintext, encoded string) bool {
	c.verified++
	return c.Argon2.Verify(plaintext, encoded)
}

func TestAuth_Login_StoreUnavailable(t *testing.T) {
	users := mocks.NewUserStore(t)
	users.On("GetByEmail", mock.Anything, testEmail).Return(model.User{}, model.ErrStoreUnavailable).Once()
	h := newAuthHarness(t)
	a := NewAuth(users, h.store, h.hasher, h.svc, testutil.MakeNoopLogger())

	_, err := a.Login(context.Background(), testEmail, testPassword)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.False(t, model.IsUnauthorized(err))
}

func TestAuth_LogoutAll(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, first := h.register(t)
	second, err := h.auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, h.auth.LogoutAll(ctx, user.ID))

	for _, pair := range []model.TokenPair{first, second} {
		_, err := h.svc.Validate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, model.ErrTokenVersionStale)
		_, err = h.svc.Rotate(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, model.ErrRefreshTokenReused)
	}

	fresh, err := h.auth.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	_, err = h.svc.Validate(ctx, fresh.AccessToken)
	assert.NoError(t, err)
}

func TestAuth_ChangePassword(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, pair := h.register(t)
	const next = "N3w-password!"

	err := h.auth.ChangePassword(ctx, user.ID, "Wr0ng-password", next)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	err = h.auth.ChangePassword(ctx, user.ID, testPassword, "weak")
	assert.ErrorIs(t, err, model.ErrWeakPassword)

	require.NoError(t, h.auth.ChangePassword(ctx, user.ID, testPassword, next))

	_, err = h.svc.Validate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, model.ErrTokenVersionStale)
	_, err = h.auth.Login(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	_, err = h.auth.Login(ctx, testEmail, next)
	assert.NoError(t, err)
}

func TestAuth_ChangePassword_RevokeFailureKeepsOldPassword(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, _ := h.register(t)

	sessions := mocks.NewSessionManager(t)
	sessions.On("RevokeAll", mock.Anything, user.ID).Return(errors.New("boom")).Once()
	a := NewAuth(h.users, h.store, h.hasher, sessions, testutil.MakeNoopLogger())

	require.Error(t, a.ChangePassword(ctx, user.ID, testPassword, "N3w-password!"))

	_, err := h.auth.Login(ctx, testEmail, testPassword)
	assert.NoError(t, err)
}

func TestAuth_Deactivate(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, pair := h.register(t)

	require.NoError(t, h.auth.Deactivate(ctx, user.ID))

	_, err := h.svc.Validate(ctx, pair.AccessToken)
	assert.Error(t, err)
	assert.True(t, model.IsUnauthorized(err))
	_, err = h.svc.Rotate(ctx, pair.RefreshToken)
	assert.Error(t, err)
	_, err = h.auth.Login(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, model.ErrAccountInactive)
}

func TestAuth_UpdateEmail(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()
	user, _ := h.register(t)
	_, err := h.auth.Register(ctx, "bob@example.com", testPassword)
	require.NoError(t, err)

	_, err = h.auth.UpdateEmail(ctx, user.ID, "bob@example.com")
	assert.ErrorIs(t, err, model.ErrEmailAlreadyRegistered)
	_, err = h.auth.UpdateEmail(ctx, user.ID, "nope")
	assert.ErrorIs(t, err, model.ErrInvalidEmail)

	updated, err := h.auth.UpdateEmail(ctx, user.ID, "Alice2@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice2@example.com", updated.Email)

	_, err = h.auth.Login(ctx, "alice2@example.com", testPassword)
	assert.NoError(t, err)
}

func TestAuth_GetProfile_NotFound(t *testing.T) {
	h := newAuthHarness(t)

	_, err := h.auth.GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
}
