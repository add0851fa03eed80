package handler

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	authv1 "github.com/dtroode/auth-server/api/auth/v1"
	"github.com/dtroode/auth-server/internal/api/grpc/middleware"
	"github.com/dtroode/auth-server/internal/logger"
	"github.com/dtroode/auth-server/internal/model"
)

// AuthService defines account operations.
type AuthService interface {
	Register(ctx context.Context, email, password string) (model.TokenPair, error)
	Login(ctx context.Context, email, password string) (model.TokenPair, error)
	LogoutAll(ctx context.Context, userID uuid.UUID) error
}

// TokenService defines token refresh and logout operations.
type TokenService interface {
	Rotate(ctx context.Context, refreshToken string) (model.TokenPair, error)
	RevokeSession(ctx context.Context, accessToken, refreshToken string) error
}

// Auth handles gRPC endpoints for authentication.
type Auth struct {
	authv1.UnimplementedAuthServer
	authService    AuthService
	tokenService   TokenService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, tokenService TokenService, contextManager model.ContextManager, logger *logger.Logger) *Auth {
	return &Auth{
		authService:    authService,
		tokenService:   tokenService,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Register creates an account and returns its first token pair.
func (h *Auth) Register(ctx context.Context, req *authv1.RegisterRequest) (*authv1.TokenPair, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	pair, err := h.authService.Register(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WithTrace(ctx).Info("Auth handler: registration failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return toTokenPair(pair), nil
}

// Login exchanges credentials for a token pair.
func (h *Auth) Login(ctx context.Context, req *authv1.LoginRequest) (*authv1.TokenPair, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	pair, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WithTrace(ctx).Info("Auth handler: login failed",
			"reason", model.Reason(err))
		return nil, handleError(err)
	}

	return toTokenPair(pair), nil
}

// Refresh rotates a refresh token.
func (h *Auth) Refresh(ctx context.Context, req *authv1.RefreshRequest) (*authv1.TokenPair, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	pair, err := h.tokenService.Rotate(ctx, req.RefreshToken)
	if err != nil {
		h.logger.WithTrace(ctx).Info("Auth handler: token refresh failed",
			"reason", model.Reason(err))
		return nil, handleError(err)
	}

	return toTokenPair(pair), nil
}

// Logout ends one session. The bearer token is optional and only blacklisted.
func (h *Auth) Logout(ctx context.Context, req *authv1.LogoutRequest) (*emptypb.Empty, error) {
	accessToken := middleware.BearerToken(ctx)
	if req.RefreshToken == "" && accessToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	if err := h.tokenService.RevokeSession(ctx, accessToken, req.RefreshToken); err != nil {
		h.logger.WithTrace(ctx).Error("Auth handler: logout failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return &emptypb.Empty{}, nil
}

// LogoutAll ends every session of the authenticated user.
func (h *Auth) LogoutAll(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	principal, ok := h.contextManager.GetPrincipalFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}

	if err := h.authService.LogoutAll(ctx, principal.UserID); err != nil {
		h.logger.WithTrace(ctx).Error("Auth handler: logout-all failed",
			"user_id", principal.UserID,
			"error", err.Error())
		return nil, handleError(err)
	}

	return &emptypb.Empty{}, nil
}

func toTokenPair(pair model.TokenPair) *authv1.TokenPair {
	return &authv1.TokenPair{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        pair.TokenType,
		AccessExpiresAt:  timestamppb.New(pair.AccessExpiresAt),
		RefreshExpiresAt: timestamppb.New(pair.RefreshExpiresAt),
	}
}
