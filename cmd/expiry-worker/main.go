package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/clinic-booking-gateway/internal/booking"
	"github.com/hackgods/clinic-booking-gateway/internal/config"
	"github.com/hackgods/clinic-booking-gateway/internal/db"
	"github.com/hackgods/clinic-booking-gateway/internal/metrics"
	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}).
		With("service", "expiry-worker", "env", cfg.Env)
	logger.Info("expiry-worker starting up", "interval", cfg.WorkerInterval.String())

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "clinic-booking-expiry")
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// the worker only touches the ledger
	svc := booking.NewService(booking.Deps{
		Repo:    booking.NewPgRepository(pgPool),
		Metrics: metrics.NewBookingMetrics(prometheus.DefaultRegisterer),
		Logger:  logger,
	}, cfg)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.ExpireStaleCheckouts(runCtx)
	if err != nil {
		logger.Error("expiry run error", "error", err)
		return
	}
	logger.Info("expiry run complete", "expired", n, "duration_ms", time.Since(start).Milliseconds())
}
