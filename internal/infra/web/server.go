package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"studycard-subscription/internal/usecase"
)

// Server exposes the HTTP surface: payment and subscription endpoints for
// authenticated users, the gateway webhook, health, and Prometheus metrics.
type Server struct {
	checkout      *usecase.CheckoutOrchestrator
	reconciler    *usecase.WebhookReconciler
	auth          *AuthManager
	webhookSecret string
	log           *zerolog.Logger

	server *http.Server
}

func NewServer(
	checkout *usecase.CheckoutOrchestrator,
	reconciler *usecase.WebhookReconciler,
	auth *AuthManager,
	webhookSecret string,
	logger *zerolog.Logger,
) *Server {
	lg := logger.With().Str("component", "web").Logger()
	return &Server{
		checkout:      checkout,
		reconciler:    reconciler,
		auth:          auth,
		webhookSecret: webhookSecret,
		log:           &lg,
	}
}

// Routes builds the router. Split out from Start so tests can drive the
// handler tree through httptest without binding a port.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/api/webhooks/toss", s.handleTossWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Post("/api/payments/checkout", s.handleCheckout)
		r.Post("/api/payments/confirm", s.handleConfirmPayment)
		r.Post("/api/payments/confirm-billing", s.handleConfirmBilling)
		r.Get("/api/payments/invoices", s.handleInvoices)
		r.Post("/api/payments/{orderId}/cancel", s.handleRefund)

		r.Get("/api/subscriptions/me", s.handleMySubscription)
		r.Post("/api/subscriptions/cancel", s.handleCancelSubscription)
	})

	return r
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("HTTP server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
