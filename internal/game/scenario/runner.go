package scenario

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/ai"
	"github.com/cory-johannsen/tactics/internal/game/combat"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Encounter  *combat.Encounter
	Dispatcher *ai.Dispatcher
	Profiles   sim.Profiles
	Roster     *Roster
	Roller     *dice.Roller
	// Scripts holds command lines per player; see File.Scripts.
	Scripts map[string][]string
	Logger  *zap.Logger
}

// Runner plays the player side of an encounter: scripted lines first, then
// the character's archetype tree. It also rolls the saving throws that
// spells prompt players for.
type Runner struct {
	cfg     RunnerConfig
	scripts map[string][]string
	logger  *zap.Logger
}

// NewRunner builds a Runner.
//
// Precondition: cfg.Encounter, cfg.Dispatcher, cfg.Roster and cfg.Roller must not be nil.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Encounter == nil || cfg.Dispatcher == nil || cfg.Roster == nil || cfg.Roller == nil {
		panic("scenario.NewRunner: Encounter, Dispatcher, Roster and Roller must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	scripts := make(map[string][]string, len(cfg.Scripts))
	for id, lines := range cfg.Scripts {
		scripts[id] = append([]string(nil), lines...)
	}
	return &Runner{cfg: cfg, scripts: scripts, logger: cfg.Logger}
}

// Run drives the encounter until it ends. Cancelling ctx ends the encounter.
//
// Precondition: the encounter has been started.
// Postcondition: Returns the final snapshot; the error is ctx.Err() on cancellation.
func (r *Runner) Run(ctx context.Context) (combat.Snapshot, error) {
	enc := r.cfg.Encounter
	for {
		changed := enc.Changed()
		snap := enc.Snapshot()
		if snap.Phase.Terminal() {
			enc.Wait()
			return snap, nil
		}
		if err := ctx.Err(); err != nil {
			enc.End("cancelled")
			enc.Wait()
			return enc.Snapshot(), err
		}
		r.answerPrompts(snap)
		if snap.Phase == combat.AwaitingPlayerAction {
			if err := r.playTurn(ctx, snap); err != nil {
				return enc.Snapshot(), err
			}
			continue
		}
		select {
		case <-changed:
		case <-ctx.Done():
		}
	}
}

// answerPrompts rolls every pending saving throw owed by a roster player.
func (r *Runner) answerPrompts(snap combat.Snapshot) {
	for _, p := range snap.Prompts {
		prof, ok := r.cfg.Roster.Player(p.TargetID)
		if !ok {
			continue
		}
		total := r.cfg.Roller.Roll(dice.MustParse("1d20")).Total() + prof.Saves[p.SaveStat]
		_, err := r.cfg.Encounter.AnswerPrompt(sim.ResolveSave{SourceID: p.TargetID, CasterID: p.CasterID, AbilityID: p.AbilityID, Total: total})
		if err != nil {
			r.logger.Warn("saving throw not accepted", zap.String("player", p.TargetID), zap.Error(err))
			continue
		}
		r.logger.Debug("saving throw", zap.String("player", p.TargetID), zap.String("stat", p.SaveStat), zap.Int("total", total), zap.Int("dc", p.DC))
	}
}

// playTurn submits the current player's actions and ends the turn.
func (r *Runner) playTurn(ctx context.Context, snap combat.Snapshot) error {
	actor := snap.Current
	prof, ok := r.cfg.Profiles.Of(snap.State, actor)
	if !ok {
		return fmt.Errorf("scenario.Runner: no statistics for %q", actor)
	}
	if lines := r.nextTurn(actor); lines != nil {
		for _, line := range lines {
			act, err := Interpret(actor, prof, line)
			if err != nil {
				r.logger.Warn("unusable scripted command", zap.String("player", actor), zap.String("line", line), zap.Error(err))
				continue
			}
			if len(act.Events) == 0 {
				continue
			}
			out, err := r.cfg.Encounter.Submit(actor, act.Events)
			if err != nil {
				return turnOver(err)
			}
			logRejections(r.logger, actor, out)
		}
	} else if in, ok := r.cfg.Dispatcher.Local(ctx, ai.Request{State: snap.State, ActorID: actor, Round: snap.Round}); ok {
		events, err := in.Events(actor, prof)
		if err != nil {
			r.logger.Warn("intent partly unusable", zap.String("player", actor), zap.Error(err))
		}
		if len(events) > 0 {
			out, err := r.cfg.Encounter.Submit(actor, events)
			if err != nil {
				return turnOver(err)
			}
			logRejections(r.logger, actor, out)
		}
	}
	return turnOver(r.cfg.Encounter.EndTurn(actor))
}

// nextTurn pops the actor's lines up to and including the next "end". It
// returns nil once the script is exhausted.
func (r *Runner) nextTurn(actor string) []string {
	script := r.scripts[actor]
	if len(script) == 0 {
		return nil
	}
	n := len(script)
	for i, line := range script {
		if v, ok := defaultVerbs[ParseLine(line).Verb]; ok && v.name == "end" {
			n = i + 1
			break
		}
	}
	r.scripts[actor] = script[n:]
	return script[:n]
}

// turnOver treats a closed turn as success: combat ending mid-turn or the
// turn timer firing first are both normal.
func turnOver(err error) error {
	if errors.Is(err, combat.ErrNotAccepting) || errors.Is(err, combat.ErrNotYourTurn) {
		return nil
	}
	return err
}

func logRejections(logger *zap.Logger, actor string, out command.Outcome) {
	for _, err := range out.Errors {
		logger.Debug("player action rejected", zap.String("player", actor), zap.Error(err))
	}
}
