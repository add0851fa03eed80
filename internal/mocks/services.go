package mocks

import (
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/auth-server/internal/model"
)

// AuthService mocks the account operations used by the gRPC handlers.
type AuthService struct {
	mock.Mock
}

func NewAuthService(t TestingT) *AuthService {
	m := &AuthService{}
	register(&m.Mock, t)
	return m
}

func (m *AuthService) Register(ctx context.Context, email, password string) (model.TokenPair, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *AuthService) Login(ctx context.Context, email, password string) (model.TokenPair, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (model.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *AuthService) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (model.User, error) {
	args := m.Called(ctx, userID, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}

func (m *AuthService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// TokenService mocks the refresh and logout operations used by the gRPC handlers.
type TokenService struct {
	mock.Mock
}

func NewTokenService(t TestingT) *TokenService {
	m := &TokenService{}
	register(&m.Mock, t)
	return m
}

func (m *TokenService) Rotate(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *TokenService) RevokeSession(ctx context.Context, accessToken, refreshToken string) error {
	return m.Called(ctx, accessToken, refreshToken).Error(0)
}

// TokenValidator mocks the access token validation used by the auth interceptor.
type TokenValidator struct {
	mock.Mock
}

func NewTokenValidator(t TestingT) *TokenValidator {
	m := &TokenValidator{}
	register(&m.Mock, t)
	return m
}

func (m *TokenValidator) Validate(ctx context.Context, accessToken string) (model.Principal, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(model.Principal), args.Error(1)
}

// SessionManager mocks service.SessionManager.
type SessionManager struct {
	mock.Mock
}

func NewSessionManager(t TestingT) *SessionManager {
	m := &SessionManager{}
	register(&m.Mock, t)
	return m
}

func (m *SessionManager) Issue(ctx context.Context, userID uuid.UUID, tokenVersion int) (model.TokenPair, error) {
	args := m.Called(ctx, userID, tokenVersion)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *SessionManager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// ContextManager mocks model.ContextManager.
type ContextManager struct {
	mock.Mock
}

func NewContextManager(t TestingT) *ContextManager {
	m := &ContextManager{}
	register(&m.Mock, t)
	return m
}

func (m *ContextManager) SetPrincipalToContext(ctx context.Context, principal model.Principal) context.Context {
	return m.Called(ctx, principal).Get(0).(context.Context)
}

func (m *ContextManager) GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	args := m.Called(ctx)
	return args.Get(0).(model.Principal), args.Bool(1)
}

// SecurityLayer mocks model.SecurityLayer.
type SecurityLayer struct {
	mock.Mock
}

func NewSecurityLayer(t TestingT) *SecurityLayer {
	m := &SecurityLayer{}
	register(&m.Mock, t)
	return m
}

func (m *SecurityLayer) Listen(protocol, addr string) (net.Listener, error) {
	args := m.Called(protocol, addr)
	ln, _ := args.Get(0).(net.Listener)
	return ln, args.Error(1)
}
