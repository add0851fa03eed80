package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/auth-server/internal/logger"
	"github.com/dtroode/auth-server/internal/model"
)

const (
	authorizationHeader = "authorization"
	bearerPrefix        = "bearer "
)

// TokenValidator resolves a principal from an access token.
type TokenValidator interface {
	Validate(ctx context.Context, accessToken string) (model.Principal, error)
}

// Authenticate validates bearer tokens and injects the principal into context.
type Authenticate struct {
	validator      TokenValidator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(validator TokenValidator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{validator: validator, contextManager: contextManager, logger: logger}
}

// AuthFunc reads the authorization metadata, validates the token and returns
// a context carrying the principal. Every failure is reported as
// Unauthenticated with the same message.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	token := BearerToken(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	principal, err := m.validator.Validate(ctx, token)
	if err != nil {
		m.logger.WithTrace(ctx).Debug("Authenticate: token rejected",
			"reason", model.Reason(err))
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	return m.contextManager.SetPrincipalToContext(ctx, principal), nil
}

// BearerToken returns the token from an "authorization: Bearer <token>"
// metadata entry, or "" when there is none.
func BearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return ""
	}

	header := strings.TrimSpace(values[0])
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
