package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	authv1 "github.com/dtroode/auth-server/api/auth/v1"
	"github.com/dtroode/auth-server/internal/api/grpc/handler"
	"github.com/dtroode/auth-server/internal/api/grpc/middleware"
	"github.com/dtroode/auth-server/internal/logger"
	"github.com/dtroode/auth-server/internal/model"
)

// AccountService is the account side of the API.
type AccountService interface {
	handler.AuthService
	handler.UserService
}

// TokenService is the token side of the API, including validation for the
// authentication interceptor.
type TokenService interface {
	handler.TokenService
	middleware.TokenValidator
}

// Router builds the gRPC server: interceptors, services and health.
type Router struct {
	accountService AccountService
	tokenService   TokenService
	contextManager model.ContextManager
	registerer     prometheus.Registerer
	health         *health.Server
	logger         *logger.Logger
}

// New creates a Router. Server metrics are registered with registerer when it is not nil.
func New(
	accountService AccountService,
	tokenService TokenService,
	contextManager model.ContextManager,
	registerer prometheus.Registerer,
	logger *logger.Logger,
) *Router {
	return &Router{
		accountService: accountService,
		tokenService:   tokenService,
		contextManager: contextManager,
		registerer:     registerer,
		health:         health.NewServer(),
		logger:         logger,
	}
}

// requiresAuth selects the methods that need a valid access token.
func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	return c.FullMethod() == authv1.Auth_LogoutAll_FullMethodName ||
		strings.HasPrefix(c.FullMethod(), "/"+authv1.Users_ServiceDesc.ServiceName+"/")
}

// Register registers all gRPC services and interceptors.
//
// Returns the configured gRPC server instance.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.contextManager, r.logger)
	recoveryOpt := recovery.WithRecoveryHandlerContext(r.recoverPanic)

	serverMetrics := grpcprometheus.NewServerMetrics()
	if r.registerer != nil {
		r.registerer.MustRegister(serverMetrics)
	}

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpt),
			serverMetrics.UnaryServerInterceptor(),
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpt),
			serverMetrics.StreamServerInterceptor(),
		),
	)
	r.registerAuthRoutes(s)
	r.registerUserRoutes(s)
	r.registerHealth(s)
	serverMetrics.InitializeMetrics(s)

	return s
}

// Health returns the health server so shutdown can report NOT_SERVING.
func (r *Router) Health() *health.Server {
	return r.health
}

func (r *Router) registerAuthRoutes(server *grpc.Server) {
	authHandler := handler.NewAuth(r.accountService, r.tokenService, r.contextManager, r.logger)
	authv1.RegisterAuthServer(server, authHandler)
}

func (r *Router) registerUserRoutes(server *grpc.Server) {
	usersHandler := handler.NewUsers(r.accountService, r.contextManager, r.logger)
	authv1.RegisterUsersServer(server, usersHandler)
}

func (r *Router) registerHealth(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, r.health)
	for _, name := range []string{"", authv1.Auth_ServiceDesc.ServiceName, authv1.Users_ServiceDesc.ServiceName} {
		r.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
}

func (r *Router) recoverPanic(ctx context.Context, p any) error {
	r.logger.WithTrace(ctx).Error("gRPC handler panicked",
		"panic", p)
	return status.Error(codes.Internal, "internal server error")
}
