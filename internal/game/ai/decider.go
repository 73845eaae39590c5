package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/spatial"
	"github.com/cory-johannsen/tactics/internal/game/tactics"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// Request identifies one NPC turn to decide.
type Request struct {
	State   sim.State
	ActorID string
	Round   int
	// Index is the encounter's spatial index. It must only be supplied to
	// synchronous decisions; nil builds one from State.
	Index *spatial.Index
}

// Decider produces an intent for one NPC turn.
type Decider interface {
	Decide(ctx context.Context, req Request) (tactics.Intent, error)
}

// LocalTree decides by ticking the actor's archetype tree once.
type LocalTree struct {
	Trees      *Registry
	Profiles   sim.Profiles
	Assessor   *threat.Assessor
	Conditions *condition.Registry
	Scripts    tactics.ScriptCaller
	// ScriptScope selects the Lua VM passed to script leaves.
	ScriptScope string
}

// Decide returns whatever intent the tree assembled, even when the root
// failed, so a partial decision such as a move still counts.
//
// Postcondition: returns ErrNoArchetype (wrapped) when the actor has no
// archetype, or the construction error recorded for it.
func (l *LocalTree) Decide(_ context.Context, req Request) (tactics.Intent, error) {
	prof, ok := l.Profiles.Of(req.State, req.ActorID)
	if !ok {
		return tactics.Intent{}, fmt.Errorf("ai.LocalTree: no statistics for %q", req.ActorID)
	}
	if prof.Archetype == "" {
		return tactics.Intent{}, fmt.Errorf("ai.LocalTree: %q: %w", req.ActorID, ErrNoArchetype)
	}
	tree, err := l.Trees.Tree(prof.Archetype)
	if err != nil {
		return tactics.Intent{}, err
	}
	b, err := tactics.NewBlackboard(tactics.Snapshot{
		State:       req.State,
		ActorID:     req.ActorID,
		Profiles:    l.Profiles,
		Assessor:    l.Assessor,
		Conditions:  l.Conditions,
		Index:       req.Index,
		Scripts:     l.Scripts,
		ScriptScope: l.ScriptScope,
	})
	if err != nil {
		return tactics.Intent{}, err
	}
	tree.Tick(b)
	return b.Result, nil
}

// Decision is the generative backend's structured answer.
type Decision struct {
	Rationale   string                `json:"rationale"`
	Dialogue    string                `json:"dialogue"`
	Destination *battlefield.Position `json:"destination"`
	AbilityID   string                `json:"ability_id"`
	TargetID    string                `json:"target_id"`
	Center      *battlefield.Position `json:"center"`
	// Roll and Damage are the backend's own guesses; the simulation rolls for real.
	Roll      int    `json:"roll"`
	Damage    int    `json:"damage"`
	Narrative string `json:"narrative"`
}

// Oracle is a generative decision backend.
type Oracle interface {
	Decide(ctx context.Context, s *Summary) (*Decision, error)
}

// ErrMalformedDecision marks a backend answer that names things the actor
// cannot use or see.
var ErrMalformedDecision = errors.New("malformed decision")

// BackendError wraps any failure of the generative path.
type BackendError struct {
	ActorID string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("generative backend for %q: %v", e.ActorID, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Generative decides by asking an Oracle about a battlefield Summary.
type Generative struct {
	Oracle   Oracle
	Profiles sim.Profiles
}

// Decide maps the backend's decision field for field onto an Intent.
//
// Postcondition: every error is a *BackendError.
func (g *Generative) Decide(ctx context.Context, req Request) (tactics.Intent, error) {
	fail := func(err error) (tactics.Intent, error) {
		return tactics.Intent{}, &BackendError{ActorID: req.ActorID, Err: err}
	}
	sum, err := BuildSummary(req.State, req.ActorID, g.Profiles, req.Round)
	if err != nil {
		return fail(err)
	}
	d, err := g.Oracle.Decide(ctx, sum)
	if err != nil {
		return fail(err)
	}
	if d == nil {
		return fail(fmt.Errorf("%w: empty response", ErrMalformedDecision))
	}
	if d.AbilityID != "" {
		prof, _ := g.Profiles.Of(req.State, req.ActorID)
		if _, ok := prof.Ability(d.AbilityID); !ok {
			return fail(fmt.Errorf("%w: unknown ability %q", ErrMalformedDecision, d.AbilityID))
		}
	}
	if d.TargetID != "" && !sum.Knows(d.TargetID) {
		return fail(fmt.Errorf("%w: unknown target %q", ErrMalformedDecision, d.TargetID))
	}
	if d.Destination != nil && !req.State.Map.InBounds(*d.Destination) {
		return fail(fmt.Errorf("%w: destination %v off the map", ErrMalformedDecision, *d.Destination))
	}
	return tactics.Intent{
		AbilityID:   d.AbilityID,
		TargetID:    d.TargetID,
		Center:      d.Center,
		Destination: d.Destination,
		Rationale:   d.Rationale,
		Flavor:      d.Dialogue,
	}, nil
}
