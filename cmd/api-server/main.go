package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/clinic-booking-gateway/internal/api"
	"github.com/hackgods/clinic-booking-gateway/internal/booking"
	"github.com/hackgods/clinic-booking-gateway/internal/config"
	"github.com/hackgods/clinic-booking-gateway/internal/dashboard"
	"github.com/hackgods/clinic-booking-gateway/internal/db"
	"github.com/hackgods/clinic-booking-gateway/internal/draft"
	"github.com/hackgods/clinic-booking-gateway/internal/events"
	"github.com/hackgods/clinic-booking-gateway/internal/metrics"
	"github.com/hackgods/clinic-booking-gateway/internal/payment"
	redisclient "github.com/hackgods/clinic-booking-gateway/internal/redis"
	"github.com/hackgods/clinic-booking-gateway/internal/reservation"
	"github.com/hackgods/clinic-booking-gateway/internal/session"
	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}).
		With("service", "api-server", "env", cfg.Env)
	logger.Info("api-server starting up", "http_port", cfg.HTTPPort, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "clinic-booking-api")
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		amqpPub := events.NewAMQPPublisher(cfg.RabbitMQURL, logger)
		defer func() { _ = amqpPub.Close() }()
		publisher = amqpPub
	} else {
		logger.Warn("RABBITMQ_URL not set, booking events are not published")
	}

	gateways := payment.Registry{
		payment.MethodVNPay:  payment.NewServiceGateway(payment.MethodVNPay, cfg.PaymentServiceURL, cfg.UpstreamTimeout),
		payment.MethodStripe: payment.NewServiceGateway(payment.MethodStripe, cfg.PaymentServiceURL, cfg.UpstreamTimeout),
	}
	if cfg.StripeSecretKey != "" {
		gateways[payment.MethodStripe] = payment.NewStripeDirectGateway(cfg.StripeSecretKey, "")
		logger.Info("stripe checkout sessions created directly")
	}

	svc := booking.NewService(booking.Deps{
		Drafts:    draft.NewRedisStore(rdb, cfg.DraftTTL),
		Reserver:  reservation.NewClient(cfg.AppointmentServiceURL, cfg.UpstreamTimeout, cfg.ReservationTTL),
		Gateways:  gateways,
		Repo:      booking.NewPgRepository(pgPool),
		Locker:    redisclient.NewRedisOwnerLocker(rdb, cfg.LockTTL),
		Publisher: publisher,
		Metrics:   metrics.NewBookingMetrics(prometheus.DefaultRegisterer),
		Logger:    logger,
	}, cfg)

	hub := dashboard.NewHub(cfg.DashboardCoalesce, logger)
	go hub.Run(rootCtx)
	if cfg.RabbitMQURL != "" {
		go func() {
			err := events.ConsumeQueueChanged(rootCtx, cfg.RabbitMQURL, hub.Invalidate, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("queue consumer stopped", "error", err)
			}
		}()
	}

	limit, err := api.NewRateLimiter(rdb, cfg.SubmitRateLimit, "booking_submit")
	if err != nil {
		logger.Error("rate limiter disabled", "rate", cfg.SubmitRateLimit, "error", err)
		limit = nil
	}

	router := api.NewRouter(api.RouterConfig{
		Service:       svc,
		Verifier:      session.NewVerifier(cfg.JWTSecret),
		Dashboard:     http.HandlerFunc(hub.ServeWS),
		SubmitLimiter: limit,
		Postgres:      pgPool,
		Redis:         api.RedisPinger(rdb),
		Logger:        logger,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
