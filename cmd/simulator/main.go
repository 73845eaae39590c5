// Package main runs one scenario headless from the first initiative roll to
// the end of the encounter, narrating it to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/game/combat"
	"github.com/cory-johannsen/tactics/internal/observability"
	"github.com/cory-johannsen/tactics/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/simulator.yaml", "path to configuration file")
	scenarioFile := flag.String("scenario", "scenarios/goblin_ambush.yaml", "path to scenario YAML file")
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

	snap, err := simulate(context.Background(), cfg, scenarioPath(*scenarioFile), os.Stdout, logger)
	if err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}
	printResult(os.Stdout, snap)
	logger.Info("simulator exited", zap.Duration("elapsed", time.Since(start)))
}

// simulate wires the scenario and runs it under a Lifecycle so SIGINT or
// SIGTERM ends the encounter cleanly.
func simulate(ctx context.Context, cfg config.Config, path scenarioPath, out io.Writer, logger *zap.Logger) (combat.Snapshot, error) {
	app, cleanup, err := initializeApp(ctx, cfg, path, out, logger)
	if err != nil {
		return combat.Snapshot{}, fmt.Errorf("wiring simulator: %w", err)
	}
	defer cleanup()

	var snap combat.Snapshot
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("encounter", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			var err error
			snap, err = app.Run(ctx)
			return err
		},
		StopFn: func() { app.Encounters.Shutdown("shutdown") },
	})
	if err := lifecycle.Run(ctx); err != nil {
		return snap, err
	}
	if snap.Phase == combat.Idle {
		// Interrupted before the runner returned.
		snap = app.Encounter.Snapshot()
	}
	return snap, nil
}

func printResult(w io.Writer, snap combat.Snapshot) {
	fmt.Fprintf(w, "\n%s after %d round(s): %s\n", snap.Phase, snap.Round, snap.Reason)
	if snap.Winner != "" {
		fmt.Fprintf(w, "winner: %s\n", snap.Winner)
	}
	for _, tok := range snap.State.Tokens {
		fmt.Fprintf(w, "  %-16s %-8s (%d,%d)\n", tok.Name, tok.Team, tok.Position.X, tok.Position.Y)
	}
}
