package sim

import (
	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/damage"
	"github.com/cory-johannsen/tactics/internal/game/npc"
)

// Profile is a read-only statistics snapshot for one combatant.
type Profile struct {
	// HP and MaxHP are the stats layer's current vitals for a player. They are
	// zero for monsters, whose hit points live in npc.Instance.
	HP         int
	MaxHP      int
	AC         int
	Speed      int
	DexMod     int
	Perception int
	Stealth    int
	Saves      map[string]int
	Abilities  []ability.Ability
	Defenses   damage.Defenses
	Archetype  string
	Tags       []string
	Barks      []string
}

// Ability returns the profile's ability with id.
func (p Profile) Ability(id string) (*ability.Ability, bool) {
	return ability.Find(p.Abilities, id)
}

// PassivePerception is 10 plus the perception bonus.
func (p Profile) PassivePerception() int { return 10 + p.Perception }

// StaticData is the keyed lookup over static game content.
type StaticData interface {
	Monster(id string) (*npc.Template, bool)
	Blueprint(id string) (*battlefield.Blueprint, bool)
}

// StatsProvider is the external statistics layer for player characters.
type StatsProvider interface {
	Player(combatantID string) (Profile, bool)
}

// Profiles resolves a token to its statistics: monsters through static data,
// players through the stats layer.
type Profiles struct {
	Static StaticData
	Stats  StatsProvider
}

// Of returns the profile behind token id.
func (p Profiles) Of(s State, tokenID string) (Profile, bool) {
	t, ok := s.Token(tokenID)
	if !ok {
		return Profile{}, false
	}
	switch t.Kind {
	case battlefield.KindNPC:
		inst, ok := s.NPCs[t.CombatantID]
		if !ok || p.Static == nil {
			return Profile{}, false
		}
		tmpl, ok := p.Static.Monster(inst.TemplateID)
		if !ok {
			return Profile{}, false
		}
		return FromTemplate(tmpl), true
	case battlefield.KindPlayer:
		if p.Stats == nil {
			return Profile{}, false
		}
		return p.Stats.Player(t.CombatantID)
	default:
		return Profile{}, false
	}
}

// FromTemplate builds a profile from a monster template.
func FromTemplate(t *npc.Template) Profile {
	return Profile{
		AC:         t.AC,
		Speed:      t.Speed,
		DexMod:     t.DexMod,
		Perception: t.Perception,
		Stealth:    t.Stealth,
		Saves:      t.Saves,
		Abilities:  t.Abilities,
		Defenses:   t.Defenses,
		Archetype:  t.Archetype,
		Tags:       t.Tags,
		Barks:      t.Barks,
	}
}
