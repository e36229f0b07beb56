// Package v1 wires the HTTP surface of the vault service.
// It keeps handlers thin, delegating the admission and mutation rules to the
// vault service layer.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/vault/internal/vault"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	svc  vault.Service
	idem IdempotencyStore
	log  *slog.Logger
	rt   *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request/response logging and panic recovery.
func New(svc vault.Service, idem IdempotencyStore, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		svc:  svc,
		idem: idem,
		log:  logger,
		rt:   r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches per-route middleware.
func (s *Server) routes() {
	// Operations (v1)
	s.rt.With(s.validateDeposit()).Post("/v1/deposits", s.postDeposit)
	s.rt.With(s.validateReceipt()).Post("/v1/receipts", s.postReceipt)
	s.rt.With(s.validateWithdrawal()).Post("/v1/withdrawals", s.postWithdrawal)
	// Reads (v1)
	s.rt.Get("/v1/accounts/{id}/balance", s.getBalance)
	s.rt.Get("/v1/accounts/{id}/counters", s.getCounters)
	s.rt.Get("/v1/vault", s.getVault)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}
