package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/auth-server/internal/logger"
	"github.com/dtroode/auth-server/internal/model"
)

const readinessTimeout = time.Second

// HTTPServer serves /metrics, /healthz and /readyz.
type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

// NewHTTPServer builds the server. Readiness pings every dependency in deps.
func NewHTTPServer(addr string, gatherer prometheus.Gatherer, deps map[string]model.Pinger, logger *logger.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(gatherer, deps, logger),
			ReadHeaderTimeout: 3 * time.Second,
			WriteTimeout:      3 * time.Second,
			IdleTimeout:       30 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler returns the mux without binding a listener. Ping errors are
// logged, the readiness report only names the failing dependency.
func NewHandler(gatherer prometheus.Gatherer, deps map[string]model.Pinger, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		report := make(map[string]string, len(deps))
		code := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logger.Warn("Readiness check failed",
					"dependency", name,
					"error", err.Error())
				report[name] = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
	return mux
}

// Start serves in the background until Stop.
func (s *HTTPServer) Start() {
	go func() {
		s.logger.Info("Metrics server listening",
			"addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server error",
				"error", err.Error())
		}
	}()
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
