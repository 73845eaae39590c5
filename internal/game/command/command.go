// Package command turns game events into validated, state-producing commands
// and drives them through a FIFO event processor.
package command

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/damage"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// ValidationResult is the outcome of a read-only precondition check.
type ValidationResult struct {
	OK     bool
	Reason string
}

// Valid is the passing ValidationResult.
func Valid() ValidationResult { return ValidationResult{OK: true} }

// Invalid returns a failing ValidationResult with a formatted reason.
func Invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Reason: fmt.Sprintf(format, args...)}
}

// ValidationError reports a command whose preconditions failed. It is always
// recoverable: the state it was checked against is left unchanged.
type ValidationError struct {
	Kind     sim.Kind
	SourceID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s by %q rejected: %s", e.Kind, e.SourceID, e.Reason)
}

// Effect asks the presentation layer to play a sound or visual cue.
type Effect struct {
	Kind    string               `json:"kind"` // "sound" or "visual"
	Name    string               `json:"name"`
	TokenID string               `json:"token_id,omitempty"`
	At      battlefield.Position `json:"at"`
}

// Prompt suspends automatic resolution until a player answers it. Saving
// throw prompts are answered with a ResolveSave event.
type Prompt struct {
	TargetID  string `json:"target_id"`
	CasterID  string `json:"caster_id"`
	AbilityID string `json:"ability_id"`
	SaveStat  string `json:"save_stat"`
	DC        int    `json:"dc"`
	Message   string `json:"message"`
}

// Deferred is a hit-point change owed to a player character. Player vitals are
// owned by the stats layer, so commands report the change instead of applying it.
type Deferred struct {
	TokenID     string `json:"token_id"`
	CombatantID string `json:"combatant_id"`
	SourceID    string `json:"source_id"`
	Damage      int    `json:"damage,omitempty"`
	Healing     int    `json:"healing,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Result is what Execute produces.
//
// Invariant: when Success is false, State equals the input state.
type Result struct {
	Success  bool
	State    sim.State
	Events   []sim.Event
	Effects  []Effect
	Errors   []error
	Prompts  []Prompt
	Deferred []Deferred
}

// Command is the executable counterpart of one event.
type Command interface {
	// Event returns the event the command closes over.
	Event() sim.Event
	// CanExecute checks preconditions without changing anything.
	CanExecute(s sim.State, ctx *Context) ValidationResult
	// Execute re-validates and applies the command.
	Execute(s sim.State, ctx *Context) Result
}

// Context carries the read-only collaborators commands consult.
type Context struct {
	Roller     *dice.Roller
	Damage     *damage.Calculator
	Profiles   sim.Profiles
	Conditions *condition.Registry
	Assessor   *threat.Assessor
	Logger     *zap.Logger
}

// NewContext wires a Context. A nil registry falls back to the built-in conditions.
//
// Precondition: roller and logger must be non-nil.
func NewContext(roller *dice.Roller, profiles sim.Profiles, conditions *condition.Registry, logger *zap.Logger) *Context {
	if roller == nil || logger == nil {
		panic("command.NewContext: precondition violated: roller and logger must be non-nil")
	}
	if conditions == nil {
		conditions = condition.Builtins()
	}
	return &Context{
		Roller:     roller,
		Damage:     damage.NewCalculator(roller, logger),
		Profiles:   profiles,
		Conditions: conditions,
		Assessor:   threat.NewAssessor(),
		Logger:     logger,
	}
}

func rejected(s sim.State, e sim.Event, v ValidationResult) Result {
	return Result{
		State:  s,
		Errors: []error{&ValidationError{Kind: e.Kind(), SourceID: e.Source(), Reason: v.Reason}},
	}
}

func ok(s sim.State, events ...sim.Event) Result {
	return Result{Success: true, State: s, Events: events}
}

func logf(source, format string, args ...any) sim.Log {
	return sim.Log{SourceID: source, Message: fmt.Sprintf(format, args...)}
}

func name(s sim.State, id string) string {
	if t, ok := s.Token(id); ok && t.Name != "" {
		return t.Name
	}
	return id
}

// requireActor validates that id is a live token that may take actionType.
func requireActor(s sim.State, ctx *Context, id, actionType string) ValidationResult {
	if !s.Alive(id) {
		return Invalid("actor %q not found or defeated", id)
	}
	if condition.IsActionRestricted(ctx.Conditions, s.Conditions(id), actionType) {
		return Invalid("%s cannot %s right now", name(s, id), actionType)
	}
	return Valid()
}
