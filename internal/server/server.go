// Package server assembles the HTTP + WebSocket API for the marketplace.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
	"github.com/alanyoungcy/tokenmarket/internal/server/handler"
	"github.com/alanyoungcy/tokenmarket/internal/server/middleware"
	"github.com/alanyoungcy/tokenmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Listings *handler.ListingHandler
	Assets   *handler.AssetHandler
	Batch    *handler.BatchHandler
}

// Server is the HTTP + WebSocket API server for the marketplace.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Single-item listing endpoints.
	mux.HandleFunc("POST /api/listings", handlers.Listings.CreateSale)
	mux.HandleFunc("POST /api/bids", handlers.Listings.CreateBid)
	mux.HandleFunc("GET /api/listings/{id}", handlers.Listings.GetListing)
	mux.HandleFunc("POST /api/listings/{id}/accept", handlers.Listings.AcceptBid)
	mux.HandleFunc("POST /api/listings/{id}/reject", handlers.Listings.RejectBid)

	// Asset-scoped endpoints.
	mux.HandleFunc("POST /api/assets/{id}/buy", handlers.Assets.BuyNow)
	mux.HandleFunc("GET /api/assets/{id}/listings", handlers.Assets.ListListings)
	mux.HandleFunc("GET /api/assets/{id}/stats", handlers.Assets.GetStats)

	// Batch endpoints.
	mux.HandleFunc("POST /api/listings/batch", handlers.Batch.CreateBatch)
	mux.HandleFunc("POST /api/listings/batch/cancel", handlers.Batch.CancelBatch)
	mux.HandleFunc("POST /api/listings/batch/update", handlers.Batch.UpdateBatch)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
