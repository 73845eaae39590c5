package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/content"
	"github.com/cory-johannsen/tactics/internal/game/ai"
	"github.com/cory-johannsen/tactics/internal/game/bt"
	"github.com/cory-johannsen/tactics/internal/game/combat"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/scenario"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/tactics"
	"github.com/cory-johannsen/tactics/internal/game/threat"
	"github.com/cory-johannsen/tactics/internal/observability"
	"github.com/cory-johannsen/tactics/internal/oracle"
	"github.com/cory-johannsen/tactics/internal/scripting"
	"github.com/cory-johannsen/tactics/internal/storage/postgres"
)

// scenarioPath is the scenario file handed to the injector.
type scenarioPath string

// generativeDecider is the optional fallback backend; nil when disabled.
type generativeDecider ai.Decider

// battle is a scenario laid out against the catalog.
type battle struct {
	initial sim.State
	roster  *scenario.Roster
}

// App is a fully wired simulation of one scenario.
type App struct {
	Scenario   *scenario.File
	Encounter  *combat.Encounter
	Encounters *combat.Manager
	Runner     *scenario.Runner

	initial sim.State
	logger  *zap.Logger
}

// Run starts the encounter and drives it to the end.
//
// Postcondition: Returns the final snapshot; the error is ctx.Err() when
// the run was cancelled.
func (a *App) Run(ctx context.Context) (combat.Snapshot, error) {
	a.logger.Info("starting encounter",
		zap.String("scenario", a.Scenario.Name),
		zap.String("encounter", a.Encounter.ID()),
	)
	if err := a.Encounter.Start(ctx, a.initial); err != nil {
		return combat.Snapshot{}, fmt.Errorf("starting encounter: %w", err)
	}
	return a.Runner.Run(ctx)
}

func provideScenario(path scenarioPath) (*scenario.File, error) {
	return scenario.Load(string(path))
}

func provideCatalog(ctx context.Context, cfg config.Config, logger *zap.Logger) (*content.Catalog, error) {
	start := time.Now()
	cat, err := content.Load(ctx, cfg.Content)
	if err != nil {
		return nil, err
	}
	for _, id := range cat.Unresolved() {
		logger.Warn("monster has no archetype", zap.String("monster", id))
	}
	logger.Info("content loaded",
		zap.Int("monsters", len(cat.MonsterIDs())),
		zap.Int("archetypes", len(cat.Archetypes)),
		zap.Int("conditions", len(cat.Conditions.All())),
		zap.Duration("elapsed", time.Since(start)),
	)
	return cat, nil
}

// provideRoller seeds the dice from the scenario so a seeded run replays
// exactly; seed zero rolls from crypto/rand.
func provideRoller(f *scenario.File, logger *zap.Logger) *dice.Roller {
	src := dice.NewCryptoSource()
	if f.Seed != 0 {
		src = dice.NewSeededSource(f.Seed)
	}
	return dice.NewLoggedRoller(src, observability.Named(logger, "dice"))
}

func provideScripts(cfg config.Config, roller *dice.Roller, logger *zap.Logger) (*scripting.Manager, func(), error) {
	mgr := scripting.NewManager(roller, observability.Named(logger, "scripting"))
	if cfg.Content.Scripts != "" {
		if err := mgr.LoadGlobal(cfg.Content.Scripts, cfg.Content.ScriptInstLimit); err != nil {
			mgr.Close()
			return nil, nil, err
		}
	}
	return mgr, mgr.Close, nil
}

func provideTrees(cfg config.Config, cat *content.Catalog, logger *zap.Logger) *ai.Registry {
	trees := ai.NewRegistry()
	nodes := tactics.NewRegistry(bt.Instrumentation{
		Logger:        observability.Named(logger, "bt"),
		SlowThreshold: cfg.Combat.SlowNode,
	})
	built := trees.Load(cat.Archetypes, nodes, logger)
	logger.Info("behavior trees built", zap.Int("archetypes", built))
	return trees
}

func provideBattle(f *scenario.File, cat *content.Catalog, assessor *threat.Assessor) (battle, error) {
	s, roster, err := f.Build(cat, assessor)
	if err != nil {
		return battle{}, err
	}
	return battle{initial: s, roster: roster}, nil
}

func provideProfiles(cat *content.Catalog, b battle) sim.Profiles {
	return sim.Profiles{Static: cat, Stats: b.roster}
}

func provideLocal(trees *ai.Registry, profiles sim.Profiles, assessor *threat.Assessor, cat *content.Catalog, scripts *scripting.Manager) *ai.LocalTree {
	return &ai.LocalTree{
		Trees:       trees,
		Profiles:    profiles,
		Assessor:    assessor,
		Conditions:  cat.Conditions,
		Scripts:     scripts,
		ScriptScope: scripting.GlobalScope,
	}
}

func provideGenerative(cfg config.Config, profiles sim.Profiles, logger *zap.Logger) generativeDecider {
	if !cfg.AI.Generative {
		return nil
	}
	client := oracle.New(oracle.Config{
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
		Logger:    observability.Named(logger, "oracle"),
	})
	return &ai.Generative{Oracle: client, Profiles: profiles}
}

func provideDispatcher(cfg config.Config, local *ai.LocalTree, gen generativeDecider, profiles sim.Profiles, logger *zap.Logger) *ai.Dispatcher {
	d := ai.NewDispatcher(ai.DispatcherConfig{
		Local:      local,
		Generative: ai.Decider(gen),
		Timeout:    cfg.AI.Timeout,
		Profiles:   profiles,
		Logger:     observability.Named(logger, "ai"),
	})
	logger.Info("ai dispatcher ready", zap.Bool("fallback", d.HasFallback()))
	return d
}

// provideSink narrates to out and, with persistence on, also appends every
// batch to the postgres event log.
func provideSink(ctx context.Context, cfg config.Config, out io.Writer, logger *zap.Logger) (combat.EventSink, func(), error) {
	transcript := scenario.NewTranscript(out)
	if !cfg.Persistence.Enabled {
		return transcript, func() {}, nil
	}
	start := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ready(ctx, 5*time.Second); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("checking event log schema: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(start)),
	)
	return combat.Tee(transcript, postgres.NewEventLogRepository(pool.DB())), pool.Close, nil
}

func provideEncounter(
	cfg config.Config,
	f *scenario.File,
	cat *content.Catalog,
	profiles sim.Profiles,
	roller *dice.Roller,
	assessor *threat.Assessor,
	dispatcher *ai.Dispatcher,
	sink combat.EventSink,
	b battle,
	logger *zap.Logger,
) *combat.Encounter {
	maxRounds := cfg.Combat.MaxRounds
	if f.MaxRounds > 0 {
		maxRounds = f.MaxRounds
	}
	return combat.NewEncounter(combat.Config{
		Static:      cat,
		Profiles:    profiles,
		Roller:      roller,
		Conditions:  cat.Conditions,
		Assessor:    assessor,
		Dispatcher:  dispatcher,
		Sink:        sink,
		Vitals:      b.roster,
		TurnTimeout: cfg.Combat.TurnTimeout,
		MaxRounds:   maxRounds,
		MaxEvents:   cfg.Combat.MaxEvents,
		CellSize:    cfg.Combat.CellSize,
		Logger:      observability.Named(logger, "combat"),
	})
}

func provideEncounters(enc *combat.Encounter) (*combat.Manager, error) {
	m := combat.NewManager()
	if err := m.Add(enc); err != nil {
		return nil, err
	}
	return m, nil
}

func provideRunner(f *scenario.File, enc *combat.Encounter, dispatcher *ai.Dispatcher, profiles sim.Profiles, b battle, roller *dice.Roller, logger *zap.Logger) *scenario.Runner {
	return scenario.NewRunner(scenario.RunnerConfig{
		Encounter:  enc,
		Dispatcher: dispatcher,
		Profiles:   profiles,
		Roster:     b.roster,
		Roller:     roller,
		Scripts:    f.Scripts(),
		Logger:     observability.Named(logger, "scenario"),
	})
}

func provideApp(f *scenario.File, enc *combat.Encounter, encounters *combat.Manager, runner *scenario.Runner, b battle, logger *zap.Logger) *App {
	return &App{
		Scenario:   f,
		Encounter:  enc,
		Encounters: encounters,
		Runner:     runner,
		initial:    b.initial,
		logger:     logger,
	}
}
