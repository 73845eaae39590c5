package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/tactics"
)

// DefaultTimeout bounds one generative call.
const DefaultTimeout = 10 * time.Second

// Source records which path produced an Outcome.
type Source string

const (
	SourceLocal      Source = "local"
	SourceGenerative Source = "generative"
	SourceNone       Source = "none"
)

// Outcome is the dispatcher's answer for one turn.
type Outcome struct {
	Intent tactics.Intent
	Source Source
}

// DispatcherConfig wires a Dispatcher. Generative may be nil.
type DispatcherConfig struct {
	Local      Decider
	Generative Decider
	// Timeout of zero means DefaultTimeout.
	Timeout  time.Duration
	Profiles sim.Profiles
	Logger   *zap.Logger
}

// WithSquadMark keeps the squad target a partial local intent marked, unless
// the outcome already names one. A leader's mark stands even when its tree
// could not finish the turn.
func (o Outcome) WithSquadMark(partial tactics.Intent) Outcome {
	if o.Intent.SquadTargetID == "" {
		o.Intent.SquadTargetID = partial.SquadTargetID
	}
	return o
}

// Dispatcher composes the local tree and the generative backend.
//
// Local is synchronous and may be given the encounter's live spatial index.
// Fallback blocks on the backend and is meant to run off the encounter lock.
type Dispatcher struct {
	local      Decider
	generative Decider
	timeout    time.Duration
	profiles   sim.Profiles
	logger     *zap.Logger
}

// NewDispatcher builds a Dispatcher.
//
// Precondition: cfg.Local must not be nil.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Local == nil {
		panic("ai.NewDispatcher: Local must not be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		local:      cfg.Local,
		generative: cfg.Generative,
		timeout:    cfg.Timeout,
		profiles:   cfg.Profiles,
		logger:     cfg.Logger,
	}
}

// HasFallback reports whether a generative backend is configured.
func (d *Dispatcher) HasFallback() bool { return d.generative != nil }

// Decide runs Local and, when it yields nothing actionable, Fallback.
func (d *Dispatcher) Decide(ctx context.Context, req Request) Outcome {
	partial, ok := d.Local(ctx, req)
	if ok {
		return Outcome{Intent: partial, Source: SourceLocal}
	}
	req.Index = nil
	return d.Fallback(ctx, req).WithSquadMark(partial)
}

// Local ticks the actor's tree. It reports false when the tree is missing,
// failed to build, panicked or assembled nothing actionable.
func (d *Dispatcher) Local(ctx context.Context, req Request) (tactics.Intent, bool) {
	in, err := guard(func() (tactics.Intent, error) { return d.local.Decide(ctx, req) })
	switch {
	case errors.Is(err, ErrNoArchetype):
		d.logger.Debug("no local tree", zap.String("actor", req.ActorID))
		return tactics.Intent{}, false
	case err != nil:
		d.logger.Warn("local tree unavailable", zap.String("actor", req.ActorID), zap.Error(err))
		return tactics.Intent{}, false
	}
	return in, in.Actionable()
}

// Fallback asks the generative backend, bounded by the configured timeout.
// Every failure degrades to NoAction.
func (d *Dispatcher) Fallback(ctx context.Context, req Request) Outcome {
	if d.generative == nil {
		return d.NoAction(req)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	in, err := guard(func() (tactics.Intent, error) { return d.generative.Decide(ctx, req) })
	if err != nil {
		d.logger.Warn("generative decision failed", zap.String("actor", req.ActorID), zap.Error(err))
		return d.NoAction(req)
	}
	if !in.Actionable() {
		out := d.NoAction(req)
		if in.Flavor != "" {
			out.Intent.Flavor = in.Flavor
		}
		return out
	}
	return Outcome{Intent: in, Source: SourceGenerative}
}

// NoAction is an inert turn carrying a line of hesitation.
func (d *Dispatcher) NoAction(req Request) Outcome {
	name := req.ActorID
	if t, ok := req.State.Token(req.ActorID); ok {
		name = t.Name
	}
	line := name + " hesitates."
	if prof, ok := d.profiles.Of(req.State, req.ActorID); ok && len(prof.Barks) > 0 {
		line = prof.Barks[req.Round%len(prof.Barks)]
	}
	return Outcome{Intent: tactics.Intent{Flavor: line}, Source: SourceNone}
}

// guard runs fn, converting a panic into an error.
func guard(fn func() (tactics.Intent, error)) (in tactics.Intent, err error) {
	defer func() {
		if r := recover(); r != nil {
			in, err = tactics.Intent{}, fmt.Errorf("ai: recovered panic: %v", r)
		}
	}()
	return fn()
}
