package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/config"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/health"
	middleware "github.com/mohammed-shakir/mosquito-risk/internal/core/middleware"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/router"
	"github.com/mohammed-shakir/mosquito-risk/internal/ratelimit"
)

type Deps struct {
	Handlers *router.Handlers
	Limiter  *ratelimit.Limiter
	// Metrics defaults to the default Prometheus registry.
	Metrics http.Handler
	Ready   map[string]health.Pinger
}

// NewHandler wires routes and middleware. Only /api routes are rate limited.
func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	metricsHandler := d.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Get("/health", health.Liveness())
	r.Get("/ready", health.Readiness(d.Ready, 2*time.Second))
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api", func(api chi.Router) {
		if d.Limiter != nil {
			api.Use(ratelimit.Middleware(d.Limiter, ratelimit.Options{
				KeyHeader:          cfg.RateLimitKeyHeader,
				TrustXForwardedFor: cfg.TrustProxy,
			}))
		}
		api.Get("/risk/default", d.Handlers.RiskDefault)
		api.Post("/risk/query", d.Handlers.RiskQuery)
		api.Post("/drivers", d.Handlers.Drivers)
	})
	return r
}

// Run serves handler until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
