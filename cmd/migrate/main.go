// Package main applies or rolls back the encounter event log schema.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/simulator.yaml", "path to configuration file")
	dir := flag.String("migrations", "migrations", "directory holding the *.sql migrations")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	m, err := migrate.New("file://"+*dir, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("creating migrator", zap.Error(err))
	}
	defer m.Close()

	if err := apply(m, *direction, *steps); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("migration failed", zap.String("direction", *direction), zap.Error(err))
		}
		logger.Info("no changes")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal("reading schema version", zap.Error(err))
	}
	logger.Info("migration complete",
		zap.String("direction", *direction),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// migrator is the part of *migrate.Migrate apply drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
}

// apply moves the schema in direction, by steps when steps is positive.
func apply(m migrator, direction string, steps int) error {
	switch direction {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	default:
		return fmt.Errorf("invalid direction %q: must be up or down", direction)
	}
}
