// Package combat sequences an encounter: the phase state machine, initiative
// and turn order, player submissions, asynchronous AI turns and victory.
package combat

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Phase is the encounter's position in the combat loop.
type Phase int

const (
	Idle Phase = iota
	EncounterLoading
	InitiativeRolling
	RoundStart
	TurnStart
	AwaitingPlayerAction
	ProcessingPlayerAction
	AiProcessing
	TurnEnd
	CombatEnded
)

var phaseNames = [...]string{
	Idle:                   "idle",
	EncounterLoading:       "encounter_loading",
	InitiativeRolling:      "initiative_rolling",
	RoundStart:             "round_start",
	TurnStart:              "turn_start",
	AwaitingPlayerAction:   "awaiting_player_action",
	ProcessingPlayerAction: "processing_player_action",
	AiProcessing:           "ai_processing",
	TurnEnd:                "turn_end",
	CombatEnded:            "combat_ended",
}

// String returns the phase's snake_case name.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool { return p == CombatEnded }

// edges lists the ordinary transitions. Any non-terminal phase may also move
// straight to CombatEnded.
var edges = map[Phase][]Phase{
	Idle:                   {EncounterLoading},
	EncounterLoading:       {InitiativeRolling},
	InitiativeRolling:      {RoundStart},
	RoundStart:             {TurnStart},
	TurnStart:              {AwaitingPlayerAction, AiProcessing, TurnEnd},
	AwaitingPlayerAction:   {ProcessingPlayerAction, TurnEnd},
	ProcessingPlayerAction: {AwaitingPlayerAction, TurnEnd},
	AiProcessing:           {TurnEnd},
	TurnEnd:                {TurnStart, RoundStart},
}

// ErrIllegalTransition is returned for a transition the machine does not allow.
var ErrIllegalTransition = errors.New("illegal phase transition")

// Transition is one entry of the machine's log.
type Transition struct {
	From   Phase
	To     Phase
	At     time.Time
	Reason string
}

// Machine tracks the current phase and every transition taken. It performs
// no game logic and is not safe for concurrent use; the encounter guards it.
//
// Invariant: exactly one phase is current; the log is append-only.
type Machine struct {
	phase Phase
	log   []Transition
	now   func() time.Time
}

// NewMachine returns a Machine in Idle. A nil now means time.Now.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{phase: Idle, now: now}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Can reports whether moving to to is allowed from the current phase.
func (m *Machine) Can(to Phase) bool {
	if m.phase.Terminal() {
		return false
	}
	if to == CombatEnded {
		return true
	}
	return slices.Contains(edges[m.phase], to)
}

// To moves to phase to and records the transition.
//
// Postcondition: on error the phase and log are unchanged.
func (m *Machine) To(to Phase, reason string) error {
	if !m.Can(to) {
		return fmt.Errorf("combat.Machine: %w: %s -> %s", ErrIllegalTransition, m.phase, to)
	}
	m.log = append(m.log, Transition{From: m.phase, To: to, At: m.now(), Reason: reason})
	m.phase = to
	return nil
}

// Log returns a copy of the transition log.
func (m *Machine) Log() []Transition { return slices.Clone(m.log) }
