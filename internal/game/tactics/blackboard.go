// Package tactics is the library of behavior-tree leaves that decide an NPC's
// turn, and the Blackboard they share during one evaluation.
package tactics

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/npc"
	"github.com/cory-johannsen/tactics/internal/game/pathfind"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/spatial"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// DefaultCellSize is the spatial bucket size used when no index is supplied.
const DefaultCellSize = 4

// ScriptCaller evaluates Lua hooks for the script leaf.
type ScriptCaller interface {
	// CallHook calls a named Lua function in scope's VM.
	// Returns (LNil, nil) if the function is not defined.
	CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error)
}

// Snapshot is everything needed to assemble a Blackboard for one actor.
type Snapshot struct {
	State      sim.State
	ActorID    string
	Profiles   sim.Profiles
	Assessor   *threat.Assessor
	Conditions *condition.Registry
	// Index, when nil, is built from State.
	Index       *spatial.Index
	Scripts     ScriptCaller
	ScriptScope string
}

// Blackboard is the scratch space of one tree evaluation. It is created for a
// single decision and discarded afterwards.
type Blackboard struct {
	State     sim.State
	Self      battlefield.Token
	Instance  npc.Instance
	Profile   sim.Profile
	Allies    []battlefield.Token
	Enemies   []battlefield.Token
	Obstacles pathfind.Obstacles
	Index     *spatial.Index
	// Path finds a route over the battlefield around Obstacles.
	Path       func(from, to battlefield.Position) []battlefield.Position
	Profiles   sim.Profiles
	Assessor   *threat.Assessor
	Conditions *condition.Registry
	Scripts    ScriptCaller
	Scope      string

	// Working fields.
	Target   *battlefield.Token
	Visible  []battlefield.Token
	Ability  *ability.Ability
	Waypoint *battlefield.Position

	Result Intent
}

// NewBlackboard assembles a Blackboard for snap.ActorID.
//
// Precondition: snap.ActorID names a live NPC token with a resolvable profile.
func NewBlackboard(snap Snapshot) (*Blackboard, error) {
	self, ok := snap.State.Token(snap.ActorID)
	if !ok {
		return nil, fmt.Errorf("tactics.NewBlackboard: actor %q not found", snap.ActorID)
	}
	prof, ok := snap.Profiles.Of(snap.State, snap.ActorID)
	if !ok {
		return nil, fmt.Errorf("tactics.NewBlackboard: no statistics for %q", snap.ActorID)
	}
	var inst npc.Instance
	switch self.Kind {
	case battlefield.KindNPC:
		inst, ok = snap.State.NPC(snap.ActorID)
		if !ok || inst.IsDead() {
			return nil, fmt.Errorf("tactics.NewBlackboard: %q is not a live npc", snap.ActorID)
		}
	case battlefield.KindPlayer:
		// Player vitals live in the stats layer; the tree sees a stand-in record.
		inst = npc.Instance{
			ID:         self.CombatantID,
			Name:       self.Name,
			CurrentHP:  prof.HP,
			MaxHP:      prof.MaxHP,
			Conditions: snap.State.Conditions(snap.ActorID),
		}
	default:
		return nil, fmt.Errorf("tactics.NewBlackboard: %q cannot act", snap.ActorID)
	}
	if snap.Assessor == nil {
		snap.Assessor = threat.NewAssessor()
	}
	if snap.Conditions == nil {
		snap.Conditions = condition.Builtins()
	}
	if snap.Index == nil {
		snap.Index = IndexOf(snap.State, DefaultCellSize)
	}

	obstacles := pathfind.Obstacles(snap.State.Blocked(snap.ActorID))
	m := snap.State.Map
	b := &Blackboard{
		State:     snap.State,
		Self:      self,
		Instance:  inst,
		Profile:   prof,
		Allies:    snap.State.Allies(snap.ActorID),
		Enemies:   snap.State.Enemies(snap.ActorID),
		Obstacles: obstacles,
		Index:     snap.Index,
		Path: func(from, to battlefield.Position) []battlefield.Position {
			return pathfind.Find(m, from, to, obstacles)
		},
		Profiles:   snap.Profiles,
		Assessor:   snap.Assessor,
		Conditions: snap.Conditions,
		Scripts:    snap.Scripts,
		Scope:      snap.ScriptScope,
	}
	return b, nil
}

// IndexOf builds a spatial index over the live non-object tokens of s.
func IndexOf(s sim.State, cellSize int) *spatial.Index {
	ix := spatial.New(cellSize)
	for _, t := range s.Tokens {
		if t.Kind != battlefield.KindObject && s.Alive(t.ID) {
			ix.Add(t.ID, t.Position)
		}
	}
	return ix
}

// Position returns where the actor will stand when it acts: the staged
// waypoint if movement was chosen earlier in this tick, else its square.
func (b *Blackboard) Position() battlefield.Position {
	if b.Waypoint != nil {
		return *b.Waypoint
	}
	return b.Self.Position
}

// Speed is the actor's movement budget this turn.
func (b *Blackboard) Speed() int {
	return max(b.Profile.Speed-condition.SpeedPenalty(b.Conditions, b.Instance.Conditions), 0)
}

// Strategy returns the actor's strategy, or its squad leader's when the actor
// has none.
func (b *Blackboard) Strategy() *threat.Strategy {
	if b.Instance.Strategy != nil {
		return b.Instance.Strategy
	}
	if leader, ok := b.leader(); ok {
		return leader.Strategy
	}
	return nil
}

func (b *Blackboard) leader() (npc.Instance, bool) {
	if b.Instance.LeaderID == "" || b.Instance.LeaderID == b.Instance.ID {
		return npc.Instance{}, false
	}
	inst, ok := b.State.NPCs[b.Instance.LeaderID]
	return inst, ok && !inst.IsDead()
}

// isHidden reports whether t is concealed from the actor.
func (b *Blackboard) isHidden(t battlefield.Token) bool {
	return b.State.Conditions(t.ID).Has(condition.Hidden)
}

// enemy returns the live enemy token with id.
func (b *Blackboard) enemy(id string) (battlefield.Token, bool) {
	i := slices.IndexFunc(b.Enemies, func(t battlefield.Token) bool { return t.ID == id })
	if i < 0 {
		return battlefield.Token{}, false
	}
	return b.Enemies[i], true
}

// targets returns the tokens targeting leaves choose from: the visible set
// when perception ran, else every enemy that is not hidden.
func (b *Blackboard) targets() []battlefield.Token {
	if len(b.Visible) > 0 {
		return b.Visible
	}
	var out []battlefield.Token
	for _, e := range b.Enemies {
		if !b.isHidden(e) {
			out = append(out, e)
		}
	}
	return out
}

// Candidate converts t into a threat candidate.
func (b *Blackboard) Candidate(t battlefield.Token) threat.Candidate {
	c := threat.Candidate{
		ID:         t.ID,
		Kind:       t.Kind,
		Position:   t.Position,
		Conditions: b.State.Conditions(t.ID).IDs(),
	}
	prof, _ := b.Profiles.Of(b.State, t.ID)
	c.Archetype, c.Tags = prof.Archetype, prof.Tags
	if inst, ok := b.State.NPC(t.ID); ok {
		c.HP, c.MaxHP = inst.CurrentHP, inst.MaxHP
	} else {
		c.HP, c.MaxHP = prof.HP, prof.MaxHP
	}
	return c
}

func (b *Blackboard) candidates() []threat.Candidate {
	ts := b.targets()
	out := make([]threat.Candidate, 0, len(ts))
	for _, t := range ts {
		out = append(out, b.Candidate(t))
	}
	return out
}

func (b *Blackboard) setTarget(c threat.Candidate, found bool) bool {
	if !found {
		return false
	}
	t, ok := b.enemy(c.ID)
	if !ok {
		return false
	}
	b.Target = &t
	return true
}

// Intent is the decision for one NPC turn.
type Intent struct {
	AbilityID   string                `json:"ability_id,omitempty"`
	TargetID    string                `json:"target_id,omitempty"`
	Center      *battlefield.Position `json:"center,omitempty"`
	Destination *battlefield.Position `json:"destination,omitempty"`
	// SquadTargetID is set when a squad leader marks a target for its followers.
	SquadTargetID string `json:"squad_target_id,omitempty"`
	Rationale     string `json:"rationale,omitempty"`
	Flavor        string `json:"flavor,omitempty"`
}

// Actionable reports whether the intent does anything on the battlefield.
func (i Intent) Actionable() bool {
	return i.AbilityID != "" || i.Destination != nil
}

// ErrUnknownAbility is returned by Events for an ability the actor lacks.
var ErrUnknownAbility = errors.New("unknown ability")

// Events translates the intent into the events that carry it out, in order:
// flavor line, squad mark, movement, then the action itself.
func (i Intent) Events(actorID string, prof sim.Profile) ([]sim.Event, error) {
	var out []sim.Event
	if i.Flavor != "" {
		out = append(out, sim.Log{SourceID: actorID, Message: strings.TrimSpace(i.Flavor)})
	}
	if i.SquadTargetID != "" {
		out = append(out, sim.SetSquadTarget{SourceID: actorID, TargetID: i.SquadTargetID})
	}
	if i.Destination != nil {
		out = append(out, sim.Move{SourceID: actorID, Destination: *i.Destination})
	}
	if i.AbilityID == "" {
		return out, nil
	}
	a, ok := prof.Ability(i.AbilityID)
	if !ok {
		return out, fmt.Errorf("tactics.Intent.Events: %w %q", ErrUnknownAbility, i.AbilityID)
	}
	switch {
	case a.IsAttack():
		out = append(out, sim.Attack{SourceID: actorID, TargetID: i.TargetID, AbilityID: a.ID})
	case a.Kind == ability.Spell:
		out = append(out, sim.CastSpell{SourceID: actorID, AbilityID: a.ID, TargetID: i.TargetID, Center: i.Center})
	default:
		out = append(out, sim.UseFeature{SourceID: actorID, AbilityID: a.ID, TargetID: i.TargetID})
	}
	return out, nil
}
