package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/auth-server/internal/logger"
)

// Logging is a unary interceptor that logs gRPC requests and results.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// HandleGRPC logs method name, duration and status for each unary request.
// Request and response bodies are never logged, they carry credentials.
func (l *Logging) HandleGRPC(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	log := l.logger.WithTrace(ctx).With("method", info.FullMethod)

	log.Debug("gRPC request started")

	resp, err := handler(ctx, req)

	code := status.Code(err)
	attrs := []any{
		"duration_ms", time.Since(start).Milliseconds(),
		"status", code.String(),
	}

	switch {
	case err == nil:
		log.Info("gRPC request completed", attrs...)
	case code == codes.Internal || code == codes.Unknown || code == codes.Unavailable:
		log.Error("gRPC request failed", append(attrs, "error", err.Error())...)
	default:
		log.Info("gRPC request rejected", attrs...)
	}

	return resp, err
}
