package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/auth-server/internal/model"
)

var errUnauthenticated = status.Error(codes.Unauthenticated, "unauthorized")

// handleError converts service errors to gRPC statuses. Credential and token
// failures collapse into one Unauthenticated status so callers cannot tell
// which check rejected them.
func handleError(err error) error {
	switch {
	case model.IsUnauthorized(err):
		return errUnauthenticated
	case errors.Is(err, model.ErrEmailAlreadyRegistered):
		return status.Error(codes.AlreadyExists, "email already registered")
	case errors.Is(err, model.ErrWeakPassword):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrInvalidEmail):
		return status.Error(codes.InvalidArgument, "invalid email")
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "user not found")
	case errors.Is(err, model.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
