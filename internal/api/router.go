package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-booking-gateway/internal/session"
	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

type RouterConfig struct {
	Service  BookingService
	Verifier *session.Verifier
	// Dashboard serves the queue invalidation stream; nil disables the route.
	Dashboard http.Handler
	// SubmitLimiter wraps confirm and payment submissions; nil disables it.
	SubmitLimiter func(http.Handler) http.Handler
	Metrics       http.Handler
	Postgres      Pinger
	Redis         Pinger
	Logger        *logging.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	limit := cfg.SubmitLimiter
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics)

	// Gateway callback and short pay link are plain browser navigations.
	r.With(AuthMiddleware(cfg.Verifier, false)).Get("/payment/result", paymentResultHandler(cfg.Service))
	r.Get("/pay/{id}", payRedirectHandler(cfg.Service))

	r.Route("/booking", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier, true))

		r.Post("/start", startBookingHandler(cfg.Service))
		r.Get("/draft", getDraftHandler(cfg.Service))
		r.Put("/draft/{field}", setDraftFieldHandler(cfg.Service))
		r.Delete("/draft", abandonDraftHandler(cfg.Service))
		r.Get("/steps/{step}", enterStepHandler(cfg.Service))

		r.With(limit).Post("/confirm", confirmBookingHandler(cfg.Service))
		r.With(limit).Post("/payment", selectPaymentHandler(cfg.Service))
	})

	if cfg.Dashboard != nil {
		r.With(AuthMiddleware(cfg.Verifier, true), RequireStaff).Get("/queue/ws", cfg.Dashboard.ServeHTTP)
	}

	return r
}
