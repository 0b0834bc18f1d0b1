// Package httpserver is the local daemon's HTTP API.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/pkg/healthprobe"
)

// Server provides the local API plus metrics and health endpoints.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration. API routes are mounted only for the
// components that are set.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Session       SessionService
	Provider      ProviderRelay
	Submitter     TradeSubmitter
	Markets       MarketReader
	Prices        PriceReader
}

// New creates a new HTTP server.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.HealthChecker == nil {
		return nil, errors.New("health checker cannot be nil")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}, nil
}

// NewRouter builds the chi router for cfg.
func NewRouter(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	h := &handler{
		session:   cfg.Session,
		provider:  cfg.Provider,
		submitter: cfg.Submitter,
		markets:   cfg.Markets,
		prices:    cfg.Prices,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    cfg.Logger,
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/quote", h.handleQuote)

		if h.session != nil {
			r.Get("/session", h.handleSession)
			r.Post("/session/provider", h.handleProvider)
			r.Post("/session/dev-login", h.handleDevLogin)
			r.Post("/session/disconnect", h.handleDisconnect)
			r.Post("/session/retry-sync", h.handleRetrySync)

			if h.provider != nil {
				r.Get("/session/logout", h.handleLogoutWait)
			}
		}

		if h.submitter != nil {
			r.Post("/trades", h.handleTrade)
		}

		if h.markets != nil {
			r.Get("/markets/meta/categories", h.handleCategories)
			r.Get("/markets/{marketId}", h.handleMarket)
			r.Get("/markets/{marketId}/chart", h.handleChart)
			r.Get("/markets/{marketId}/trades", h.handleMarketTrades)
			r.Get("/orderbook/{marketId}", h.handleOrderbook)
		}
	})

	return r
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
