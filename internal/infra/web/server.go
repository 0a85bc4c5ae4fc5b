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

	"retail-pos-billing/internal/config"
	"retail-pos-billing/internal/usecase"
)

// SweepRunner triggers one reconciliation sweep cycle. Implemented by the
// sweep worker; exposed here so operators can force a run.
type SweepRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

type Server struct {
	checkoutUC  *usecase.CheckoutUseCase
	reconcileUC *usecase.ReconcileUseCase
	adminUC     *usecase.AdminBillingUseCase
	sweeper     SweepRunner
	auth        *AuthManager

	webhookSecret string
	currency      string

	httpServer *http.Server
	log        *zerolog.Logger
}

func NewServer(
	cfg *config.HTTPConfig,
	checkoutUC *usecase.CheckoutUseCase,
	reconcileUC *usecase.ReconcileUseCase,
	adminUC *usecase.AdminBillingUseCase,
	sweeper SweepRunner,
	currency string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		checkoutUC:    checkoutUC,
		reconcileUC:   reconcileUC,
		adminUC:       adminUC,
		sweeper:       sweeper,
		auth:          NewAuthManager(cfg.JWTSecret, 30*time.Minute),
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
		log:           &l,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Routes builds the router; split out so tests can mount it directly.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook authenticates with an HMAC signature, not a JWT.
		r.Post("/webhook/payments", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireRole("tenant"))
			r.Post("/checkout", s.handleCheckout)
		})

		r.Route("/billing", func(r chi.Router) {
			r.Use(s.auth.RequireRole("admin"))
			r.Get("/queue", s.handleBillingQueue)
			r.Get("/failures", s.handleFailures)
			r.Post("/sweep", s.handleSweep)
			r.Post("/{entryID}/approve", s.handleApprove)
			r.Post("/{entryID}/reject", s.handleReject)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
