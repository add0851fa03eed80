package handler

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	authv1 "github.com/dtroode/auth-server/api/auth/v1"
	"github.com/dtroode/auth-server/internal/logger"
	"github.com/dtroode/auth-server/internal/model"
)

// UserService defines operations on the authenticated user's account.
type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (model.User, error)
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (model.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
	Deactivate(ctx context.Context, userID uuid.UUID) error
}

// Users handles account endpoints. Every method requires an authenticated principal.
type Users struct {
	authv1.UnimplementedUsersServer
	userService    UserService
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewUsers(userService UserService, contextManager model.ContextManager, logger *logger.Logger) *Users {
	return &Users{
		userService:    userService,
		contextManager: contextManager,
		logger:         logger,
	}
}

func (h *Users) GetMe(ctx context.Context, _ *emptypb.Empty) (*authv1.Profile, error) {
	principal, ok := h.contextManager.GetPrincipalFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}

	user, err := h.userService.GetProfile(ctx, principal.UserID)
	if err != nil {
		h.logger.WithTrace(ctx).Error("Users handler: get profile failed",
			"user_id", principal.UserID,
			"error", err.Error())
		return nil, handleError(err)
	}

	return toProfile(user), nil
}

func (h *Users) UpdateEmail(ctx context.Context, req *authv1.UpdateEmailRequest) (*authv1.Profile, error) {
	principal, ok := h.contextManager.GetPrincipalFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}
	if req.Email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}

	user, err := h.userService.UpdateEmail(ctx, principal.UserID, req.Email)
	if err != nil {
		h.logger.WithTrace(ctx).Info("Users handler: update email failed",
			"user_id", principal.UserID,
			"error", err.Error())
		return nil, handleError(err)
	}

	return toProfile(user), nil
}

func (h *Users) ChangePassword(ctx context.Context, req *authv1.ChangePasswordRequest) (*emptypb.Empty, error) {
	principal, ok := h.contextManager.GetPrincipalFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return nil, status.Error(codes.InvalidArgument, "current and new password are required")
	}

	if err := h.userService.ChangePassword(ctx, principal.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.logger.WithTrace(ctx).Info("Users handler: change password failed",
			"user_id", principal.UserID,
			"reason", model.Reason(err))
		return nil, handleError(err)
	}

	return &emptypb.Empty{}, nil
}

func (h *Users) Deactivate(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	principal, ok := h.contextManager.GetPrincipalFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}

	if err := h.userService.Deactivate(ctx, principal.UserID); err != nil {
		h.logger.WithTrace(ctx).Error("Users handler: deactivate failed",
			"user_id", principal.UserID,
			"error", err.Error())
		return nil, handleError(err)
	}

	return &emptypb.Empty{}, nil
}

func toProfile(user model.User) *authv1.Profile {
	return &authv1.Profile{
		Id:        user.ID.String(),
		Email:     user.Email,
		IsActive:  user.IsActive,
		CreatedAt: timestamppb.New(user.CreatedAt),
	}
}
