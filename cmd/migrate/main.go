package main

import (
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/hackgods/clinic-booking-gateway/internal/config"
	"github.com/hackgods/clinic-booking-gateway/internal/db"
	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

// usage: migrate [up | down | force <version> | version]
func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel)
	if err != nil {
		logger.Error("config load error", "error", err)
		os.Exit(1)
	}

	m, err := db.NewMigrator(cfg.PostgresDSN)
	if err != nil {
		logger.Error("migrator init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if len(os.Args) < 3 {
			logger.Error("force needs a version")
			os.Exit(2)
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			logger.Error("invalid version", "error", convErr)
			os.Exit(2)
		}
		err = m.Force(version)
	case "version":
		version, dirty, vErr := m.Version()
		if vErr != nil && !errors.Is(vErr, migrate.ErrNilVersion) {
			logger.Error("read version failed", "error", vErr)
			os.Exit(1)
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
		return
	default:
		logger.Error("unknown command", "command", cmd)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migration failed", "command", cmd, "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "command", cmd)
}
