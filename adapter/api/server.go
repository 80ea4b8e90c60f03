// Package api provides the HTTP surface of the billing engine.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Server is the HTTP API server.
type Server struct {
	mux       *http.ServeMux
	server    *http.Server
	logger    *slog.Logger
	listings  *ListingHandler
	billing   *BillingHandler
	sweep     *SweepHandler
	reconcile *ReconcileHandler
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, listings *ListingHandler, billing *BillingHandler, sweep *SweepHandler, reconcile *ReconcileHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		listings:  listings,
		billing:   billing,
		sweep:     sweep,
		reconcile: reconcile,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/hosts/{hostID}/listings", s.listings.CreateListing)
	s.mux.HandleFunc("POST /api/v1/hosts/{hostID}/listings/{listingID}/activate", s.listings.ActivateListing)
	s.mux.HandleFunc("GET /api/v1/hosts/{hostID}/entitlement", s.billing.GetEntitlement)

	s.mux.HandleFunc("POST /api/v1/billing/quote", s.billing.Quote)
	s.mux.HandleFunc("POST /api/v1/billing/payment-requests", s.billing.RequestPayment)
	s.mux.HandleFunc("POST /api/v1/hosts/{hostID}/subscription/cancel", s.billing.CancelSubscription)
	s.mux.HandleFunc("POST /api/v1/hosts/{hostID}/subscription/reactivate", s.billing.ReactivateSubscription)

	s.mux.HandleFunc("POST /internal/sweep", s.sweep.Run)
	s.mux.HandleFunc("POST /internal/payments/confirm", s.reconcile.ConfirmPayment)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the route mux, used by tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
