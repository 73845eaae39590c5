package sim

import (
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/damage"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// Kind discriminates the event variants.
type Kind string

const (
	KindAttack          Kind = "attack"
	KindDealDamage      Kind = "deal_damage"
	KindHeal            Kind = "heal"
	KindCastSpell       Kind = "cast_spell"
	KindMove            Kind = "move"
	KindUseFeature      Kind = "use_feature"
	KindDodge           Kind = "dodge"
	KindHelp            Kind = "help"
	KindHide            Kind = "hide"
	KindSearch          Kind = "search"
	KindApplyCondition  Kind = "apply_condition"
	KindResolveSave     Kind = "resolve_save"
	KindSetSquadTarget  Kind = "set_squad_target"
	KindSetStrategy     Kind = "set_strategy"
	KindRemoveCombatant Kind = "remove_combatant"
	KindStartTurn       Kind = "start_turn"
	KindEndTurn         Kind = "end_turn"
	KindLog             Kind = "log"
)

// Event is an immutable declared intent. The set of implementations is closed:
// only types in this package satisfy it.
type Event interface {
	Kind() Kind
	Source() string
	sealed()
}

// Attack declares a weapon attack with one of the source's abilities.
type Attack struct {
	SourceID  string `json:"source_id"`
	TargetID  string `json:"target_id"`
	AbilityID string `json:"ability_id"`
}

// DealDamage applies rolled damage to a target.
type DealDamage struct {
	SourceID  string        `json:"source_id"`
	TargetID  string        `json:"target_id"`
	AbilityID string        `json:"ability_id,omitempty"`
	Parts     []damage.Part `json:"parts"`
	Crit      bool          `json:"crit,omitempty"`
	// Halved marks damage reduced by a successful save.
	Halved bool `json:"halved,omitempty"`
}

// Heal restores hit points rolled from Dice.
type Heal struct {
	SourceID  string `json:"source_id"`
	TargetID  string `json:"target_id"`
	AbilityID string `json:"ability_id,omitempty"`
	Dice      string `json:"dice"`
}

// CastSpell casts a spell at a target or, for area spells, at Center.
type CastSpell struct {
	SourceID  string                `json:"source_id"`
	AbilityID string                `json:"ability_id"`
	TargetID  string                `json:"target_id,omitempty"`
	Center    *battlefield.Position `json:"center,omitempty"`
}

// Move relocates the source token along a path to Destination.
type Move struct {
	SourceID    string               `json:"source_id"`
	Destination battlefield.Position `json:"destination"`
}

// UseFeature triggers a feature ability: a heal, a multiattack or a condition.
type UseFeature struct {
	SourceID  string `json:"source_id"`
	AbilityID string `json:"ability_id"`
	TargetID  string `json:"target_id,omitempty"`
}

// Dodge makes attacks against the source disadvantaged until its next turn.
type Dodge struct {
	SourceID string `json:"source_id"`
}

// Help grants an adjacent ally advantage on its next attack.
type Help struct {
	SourceID string `json:"source_id"`
	AllyID   string `json:"ally_id"`
}

// Hide attempts a stealth check against every enemy's passive perception.
type Hide struct {
	SourceID string `json:"source_id"`
}

// Search attempts to reveal hidden enemies nearby.
type Search struct {
	SourceID string `json:"source_id"`
}

// ApplyCondition applies a condition to a target.
type ApplyCondition struct {
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	ConditionID string `json:"condition_id"`
	Duration    int    `json:"duration"`
	Stacks      int    `json:"stacks,omitempty"`
}

// ResolveSave answers a saving-throw prompt with the player's rolled total.
type ResolveSave struct {
	SourceID  string `json:"source_id"`
	CasterID  string `json:"caster_id"`
	AbilityID string `json:"ability_id"`
	Total     int    `json:"total"`
}

// SetSquadTarget records the target a squad leader assigned.
type SetSquadTarget struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// SetStrategy assigns a tactical strategy to a squad leader.
type SetStrategy struct {
	SourceID string          `json:"source_id"`
	TargetID string          `json:"target_id"`
	Strategy threat.Strategy `json:"strategy"`
}

// RemoveCombatant takes a token off the battlefield.
type RemoveCombatant struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Reason   string `json:"reason,omitempty"`
}

// StartTurn opens the source's turn and counts down its conditions.
type StartTurn struct {
	SourceID string `json:"source_id"`
	Round    int    `json:"round"`
}

// EndTurn closes the source's turn.
type EndTurn struct {
	SourceID string `json:"source_id"`
}

// Log is a human-readable audit line. It changes no state.
type Log struct {
	SourceID string `json:"source_id"`
	Message  string `json:"message"`
}

func (Attack) Kind() Kind { return KindAttack }
func (DealDamage) Kind() Kind { return KindDealDamage }
func (Heal) Kind() Kind { return KindHeal }
func (CastSpell) Kind() Kind { return KindCastSpell }
func (Move) Kind() Kind { return KindMove }
func (UseFeature) Kind() Kind { return KindUseFeature }
func (Dodge) Kind() Kind { return KindDodge }
func (Help) Kind() Kind { return KindHelp }
func (Hide) Kind() Kind { return KindHide }
func (Search) Kind() Kind { return KindSearch }
func (ApplyCondition) Kind() Kind { return KindApplyCondition }
func (ResolveSave) Kind() Kind { return KindResolveSave }
func (SetSquadTarget) Kind() Kind { return KindSetSquadTarget }
func (SetStrategy) Kind() Kind { return KindSetStrategy }
func (RemoveCombatant) Kind() Kind { return KindRemoveCombatant }
func (StartTurn) Kind() Kind { return KindStartTurn }
func (EndTurn) Kind() Kind { return KindEndTurn }
func (Log) Kind() Kind { return KindLog }

func (e Attack) Source() string { return e.SourceID }
func (e DealDamage) Source() string { return e.SourceID }
func (e Heal) Source() string { return e.SourceID }
func (e CastSpell) Source() string { return e.SourceID }
func (e Move) Source() string { return e.SourceID }
func (e UseFeature) Source() string { return e.SourceID }
func (e Dodge) Source() string { return e.SourceID }
func (e Help) Source() string { return e.SourceID }
func (e Hide) Source() string { return e.SourceID }
func (e Search) Source() string { return e.SourceID }
func (e ApplyCondition) Source() string { return e.SourceID }
func (e ResolveSave) Source() string { return e.SourceID }
func (e SetSquadTarget) Source() string { return e.SourceID }
func (e SetStrategy) Source() string { return e.SourceID }
func (e RemoveCombatant) Source() string { return e.SourceID }
func (e StartTurn) Source() string { return e.SourceID }
func (e EndTurn) Source() string { return e.SourceID }
func (e Log) Source() string { return e.SourceID }

func (Attack) sealed() {}
func (DealDamage) sealed() {}
func (Heal) sealed() {}
func (CastSpell) sealed() {}
func (Move) sealed() {}
func (UseFeature) sealed() {}
func (Dodge) sealed() {}
func (Help) sealed() {}
func (Hide) sealed() {}
func (Search) sealed() {}
func (ApplyCondition) sealed() {}
func (ResolveSave) sealed() {}
func (SetSquadTarget) sealed() {}
func (SetStrategy) sealed() {}
func (RemoveCombatant) sealed() {}
func (StartTurn) sealed() {}
func (EndTurn) sealed() {}
func (Log) sealed() {}
