package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc/reflection"

	grpcctx "github.com/dtroode/auth-server/internal/api/grpc/context"
	"github.com/dtroode/auth-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/auth-server/internal/api/grpc/server"
	"github.com/dtroode/auth-server/internal/config"
	"github.com/dtroode/auth-server/internal/logger"
	"github.com/dtroode/auth-server/internal/metrics"
	"github.com/dtroode/auth-server/internal/model"
	"github.com/dtroode/auth-server/internal/observability"
	"github.com/dtroode/auth-server/internal/password"
	"github.com/dtroode/auth-server/internal/repository/memory"
	"github.com/dtroode/auth-server/internal/repository/postgres"
	"github.com/dtroode/auth-server/internal/repository/redis"
	"github.com/dtroode/auth-server/internal/server"
	"github.com/dtroode/auth-server/internal/service"
	"github.com/dtroode/auth-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	tracing, err := observability.SetupOTel(ctx, observability.OTelConfig{
		Enable:      cfg.OTel.Enable,
		Endpoint:    cfg.OTel.Endpoint,
		ServiceName: cfg.OTel.ServiceName,
		SampleRatio: cfg.OTel.SampleRatio,
	})
	if err != nil {
		logger.Fatal("failed to set up tracing", "error", err)
	}

	db, err := postgres.NewConnection(ctx, postgres.Config{
		DSN:          cfg.Database.DSN,
		QueryTimeout: cfg.Database.QueryTimeout,
		MaxConns:     cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	blacklist, closeBlacklist, err := newBlacklist(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize blacklist", "error", err)
	}
	defer closeBlacklist()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	codec, err := token.NewJWT(cfg.JWT.Secret)
	if err != nil {
		logger.Fatal("failed to initialize token codec", "error", err)
	}
	hasher, err := password.NewArgon2(password.Params{Time: cfg.KDF.Time, MemKiB: cfg.KDF.MemKiB, Par: cfg.KDF.Par})
	if err != nil {
		logger.Fatal("failed to initialize password hasher", "error", err)
	}

	userRepo := postgres.NewUserRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	transactor := postgres.NewTransactor(db)

	tokenService := service.NewTokenService(codec, userRepo, refreshTokenRepo, blacklist, transactor,
		service.TokenConfig{
			AccessTTL:           cfg.JWT.AccessTTL,
			RefreshTTL:          cfg.JWT.RefreshTTL,
			BlacklistTimeout:    cfg.Blacklist.Timeout,
			BlacklistFailClosed: cfg.Blacklist.FailClosed,
		},
		logger,
		service.WithRecorder(metrics.New(registry)),
	)
	authService := service.NewAuth(userRepo, transactor, hasher, tokenService, logger)
	ctxMgr := grpcctx.NewManager()

	r := router.New(authService, tokenService, ctxMgr, registry, logger)
	s := r.Register()
	reflection.Register(s)
	grpcSrv := grpcServer.NewGRPCServer(s, fmt.Sprintf(":%s", cfg.GRPC.Port))

	httpSrv := observability.NewHTTPServer(cfg.Metrics.Addr, registry, map[string]model.Pinger{
		"postgres":  db,
		"blacklist": blacklist,
	}, logger)
	httpSrv.Start()

	sl := server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(grpcSrv)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	r.Health().Shutdown()
	if err := grpcSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", grpcSrv.Address())
	}
	wg.Wait()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error during metrics server shutdown", "error", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error("error flushing traces", "error", err)
	}
	logger.Info("shutdown complete")
}

// blacklistBackend is a revocation registry that can report readiness.
type blacklistBackend interface {
	model.Blacklist
	model.Pinger
}

func newBlacklist(ctx context.Context, cfg *config.Config, logger *logger.Logger) (blacklistBackend, func(), error) {
	if cfg.Blacklist.Backend == config.BlacklistBackendMemory {
		logger.Warn("using in-process blacklist, revocations are not shared between instances")
		return memory.NewBlacklist(time.Now), func() {}, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}
	return redis.NewBlacklist(client, redis.WithKeyPrefix(cfg.Blacklist.KeyPrefix)), closeFn, nil
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
