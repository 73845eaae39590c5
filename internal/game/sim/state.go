// Package sim holds the authoritative simulation snapshot and the closed set of
// game events that request changes to it.
package sim

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/npc"
)

// DamageSummary records the most recent damage application for presentation.
type DamageSummary struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Amount   int    `json:"amount"`
	Type     string `json:"type"`
	Crit     bool   `json:"crit"`
	// Deferred is set when the amount is owed to a player and was not applied here.
	Deferred bool `json:"deferred"`
}

// State is a persistent snapshot of the battlefield. Every With* method
// returns a new State sharing unchanged parts with the receiver; no method
// mutates a State in place, so snapshots can be read concurrently and kept
// for replay.
type State struct {
	Map *battlefield.Map `json:"map"`
	// Tokens are kept in ID order by WithToken and SortTokens. Lookups do not
	// rely on the order, so a hand-built unsorted slice is still read correctly.
	Tokens  []battlefield.Token  `json:"tokens"`
	Objects []battlefield.Object `json:"objects,omitempty"`
	// NPCs is keyed by instance ID, which tokens reference as CombatantID.
	NPCs map[string]npc.Instance `json:"npcs"`
	// Effects holds encounter-scoped conditions on non-NPC tokens, keyed by token ID.
	Effects    map[string]condition.Set `json:"effects,omitempty"`
	LastDamage *DamageSummary           `json:"last_damage,omitempty"`
}

// New returns a State over m with no participants.
func New(m *battlefield.Map) State {
	return State{Map: m, NPCs: map[string]npc.Instance{}, Effects: map[string]condition.Set{}}
}

// Token returns the token with id.
func (s State) Token(id string) (battlefield.Token, bool) {
	for _, t := range s.Tokens {
		if t.ID == id {
			return t, true
		}
	}
	return battlefield.Token{}, false
}

// NPC returns the runtime state linked to token id.
func (s State) NPC(tokenID string) (npc.Instance, bool) {
	t, ok := s.Token(tokenID)
	if !ok || t.Kind != battlefield.KindNPC {
		return npc.Instance{}, false
	}
	inst, ok := s.NPCs[t.CombatantID]
	return inst, ok
}

// Conditions returns the conditions on token id, whether NPC or player.
func (s State) Conditions(tokenID string) condition.Set {
	if inst, ok := s.NPC(tokenID); ok {
		return inst.Conditions
	}
	return s.Effects[tokenID]
}

// Alive reports whether token id is present and, for NPCs, above zero hit points.
func (s State) Alive(tokenID string) bool {
	t, ok := s.Token(tokenID)
	if !ok {
		return false
	}
	if t.Kind == battlefield.KindNPC {
		inst, ok := s.NPCs[t.CombatantID]
		return ok && !inst.IsDead()
	}
	return true
}

// Occupied returns the positions of every token except the excluded IDs.
func (s State) Occupied(exclude ...string) map[battlefield.Position]bool {
	out := make(map[battlefield.Position]bool, len(s.Tokens))
	for _, t := range s.Tokens {
		if slices.Contains(exclude, t.ID) {
			continue
		}
		out[t.Position] = true
	}
	return out
}

// ObjectAt returns the battlefield object standing on p.
func (s State) ObjectAt(p battlefield.Position) (battlefield.Object, bool) {
	for _, o := range s.Objects {
		if o.Position == p {
			return o, true
		}
	}
	return battlefield.Object{}, false
}

// Blocked returns every square a mover cannot enter or pass: other tokens
// and all placed objects.
func (s State) Blocked(exclude ...string) map[battlefield.Position]bool {
	out := s.Occupied(exclude...)
	for _, o := range s.Objects {
		out[o.Position] = true
	}
	return out
}

// WithToken returns a copy of s with t replaced by ID, or inserted ahead of
// the first token whose ID sorts after it.
func (s State) WithToken(t battlefield.Token) State {
	toks := slices.Clone(s.Tokens)
	if i := slices.IndexFunc(toks, func(a battlefield.Token) bool { return a.ID == t.ID }); i >= 0 {
		toks[i] = t
		s.Tokens = toks
		return s
	}
	i := slices.IndexFunc(toks, func(a battlefield.Token) bool { return strings.Compare(a.ID, t.ID) > 0 })
	if i < 0 {
		i = len(toks)
	}
	s.Tokens = slices.Insert(toks, i, t)
	return s
}

// SortTokens returns a copy of s with its tokens in ID order.
//
// Postcondition: returns an error naming every token ID that appears more than once.
func (s State) SortTokens() (State, error) {
	toks := slices.Clone(s.Tokens)
	slices.SortStableFunc(toks, func(a, b battlefield.Token) int { return strings.Compare(a.ID, b.ID) })
	var dups []string
	for i := 1; i < len(toks); i++ {
		if toks[i].ID == toks[i-1].ID && !slices.Contains(dups, toks[i].ID) {
			dups = append(dups, toks[i].ID)
		}
	}
	if len(dups) > 0 {
		return s, fmt.Errorf("sim.State.SortTokens: duplicate token ids %v", dups)
	}
	s.Tokens = toks
	return s, nil
}

// WithoutToken returns a copy of s without token id and its NPC record or effects.
func (s State) WithoutToken(id string) State {
	t, ok := s.Token(id)
	if !ok {
		return s
	}
	s.Tokens = slices.DeleteFunc(slices.Clone(s.Tokens), func(x battlefield.Token) bool { return x.ID == id })
	if t.Kind == battlefield.KindNPC {
		npcs := maps.Clone(s.NPCs)
		delete(npcs, t.CombatantID)
		s.NPCs = npcs
	}
	if _, ok := s.Effects[id]; ok {
		eff := maps.Clone(s.Effects)
		delete(eff, id)
		s.Effects = eff
	}
	return s
}

// WithNPC returns a copy of s with inst stored under inst.ID.
func (s State) WithNPC(inst npc.Instance) State {
	npcs := maps.Clone(s.NPCs)
	if npcs == nil {
		npcs = map[string]npc.Instance{}
	}
	npcs[inst.ID] = inst
	s.NPCs = npcs
	return s
}

// WithConditions returns a copy of s with the conditions on token id replaced.
func (s State) WithConditions(tokenID string, set condition.Set) State {
	if inst, ok := s.NPC(tokenID); ok {
		inst.Conditions = set
		return s.WithNPC(inst)
	}
	eff := maps.Clone(s.Effects)
	if eff == nil {
		eff = map[string]condition.Set{}
	}
	if len(set) == 0 {
		delete(eff, tokenID)
	} else {
		eff[tokenID] = set
	}
	s.Effects = eff
	return s
}

// WithLastDamage returns a copy of s recording d.
func (s State) WithLastDamage(d DamageSummary) State {
	s.LastDamage = &d
	return s
}

// Move returns a copy of s with token id relocated to p.
func (s State) Move(id string, p battlefield.Position) State {
	t, ok := s.Token(id)
	if !ok {
		return s
	}
	t.Position = p
	return s.WithToken(t)
}

// Allies returns live tokens on the same team as id, excluding id.
func (s State) Allies(id string) []battlefield.Token {
	self, ok := s.Token(id)
	if !ok {
		return nil
	}
	var out []battlefield.Token
	for _, t := range s.Tokens {
		if t.ID != id && t.Kind != battlefield.KindObject && t.Team == self.Team && s.Alive(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

// Enemies returns live tokens hostile to id.
func (s State) Enemies(id string) []battlefield.Token {
	self, ok := s.Token(id)
	if !ok {
		return nil
	}
	var out []battlefield.Token
	for _, t := range s.Tokens {
		if battlefield.Hostile(self, t) && s.Alive(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

// Teams returns the distinct teams that still have a live combatant.
func (s State) Teams() []string {
	var out []string
	for _, t := range s.Tokens {
		if t.Kind == battlefield.KindObject || !s.Alive(t.ID) || slices.Contains(out, t.Team) {
			continue
		}
		out = append(out, t.Team)
	}
	slices.Sort(out)
	return out
}

// Encode returns the canonical JSON form of s. Equal states encode to equal bytes.
func (s State) Encode() ([]byte, error) {
	return json.Marshal(s)
}
