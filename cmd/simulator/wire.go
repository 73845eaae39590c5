//go:build wireinject

package main

import (
	"context"
	"io"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

var simulatorSet = wire.NewSet(
	provideScenario,
	provideCatalog,
	provideRoller,
	provideScripts,
	provideTrees,
	threat.NewAssessor,
	provideBattle,
	provideProfiles,
	provideLocal,
	provideGenerative,
	provideDispatcher,
	provideSink,
	provideEncounter,
	provideEncounters,
	provideRunner,
	provideApp,
)

// initializeApp wires a simulation of the scenario at path.
func initializeApp(ctx context.Context, cfg config.Config, path scenarioPath, out io.Writer, logger *zap.Logger) (*App, func(), error) {
	wire.Build(simulatorSet)
	return nil, nil, nil
}
