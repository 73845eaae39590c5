// Package simtest provides in-memory static data and player statistics for tests.
package simtest

import (
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/npc"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// Static is a map-backed sim.StaticData.
type Static struct {
	Monsters   map[string]*npc.Template
	Blueprints map[string]*battlefield.Blueprint
}

// NewStatic indexes the given templates by ID.
func NewStatic(templates ...*npc.Template) *Static {
	s := &Static{Monsters: map[string]*npc.Template{}, Blueprints: map[string]*battlefield.Blueprint{}}
	for _, t := range templates {
		s.Monsters[t.ID] = t
	}
	return s
}

func (s *Static) Monster(id string) (*npc.Template, bool) {
	t, ok := s.Monsters[id]
	return t, ok
}

func (s *Static) Blueprint(id string) (*battlefield.Blueprint, bool) {
	b, ok := s.Blueprints[id]
	return b, ok
}

// Players is a map-backed sim.StatsProvider keyed by combatant ID.
type Players map[string]sim.Profile

func (p Players) Player(id string) (sim.Profile, bool) {
	prof, ok := p[id]
	return prof, ok
}

// AddNPC places a monster token for tmpl at pos and returns the new state.
// The token ID doubles as the instance ID.
func AddNPC(s sim.State, id string, tmpl *npc.Template, team string, pos battlefield.Position) sim.State {
	s = s.WithToken(battlefield.Token{
		ID:          id,
		Name:        tmpl.Name,
		Kind:        battlefield.KindNPC,
		Team:        team,
		Position:    pos,
		CombatantID: id,
	})
	return s.WithNPC(npc.NewInstance(id, tmpl))
}

// AddPlayer places a player token at pos and returns the new state. The token
// ID doubles as the combatant ID.
func AddPlayer(s sim.State, id, name string, pos battlefield.Position) sim.State {
	return s.WithToken(battlefield.Token{
		ID:          id,
		Name:        name,
		Kind:        battlefield.KindPlayer,
		Team:        battlefield.TeamPlayers,
		Position:    pos,
		CombatantID: id,
	})
}
