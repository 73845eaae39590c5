package ai

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// CombatantSummary captures a combatant's state as the generative backend sees it.
type CombatantSummary struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Kind       battlefield.Kind     `json:"kind"`
	Team       string               `json:"team"`
	Position   battlefield.Position `json:"position"`
	HP         int                  `json:"hp"`
	MaxHP      int                  `json:"max_hp"`
	AC         int                  `json:"ac"`
	Distance   float64              `json:"distance"`
	Conditions []string             `json:"conditions,omitempty"`
}

// HPPercent returns current HP as a percentage of MaxHP; 0 if MaxHP == 0.
func (c *CombatantSummary) HPPercent() float64 {
	if c.MaxHP <= 0 {
		return 0
	}
	return float64(c.HP) / float64(c.MaxHP) * 100
}

// AbilitySummary describes one option available to the actor.
type AbilitySummary struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Kind          ability.Kind `json:"kind"`
	Range         int          `json:"range"`
	Radius        int          `json:"radius,omitempty"`
	AverageDamage float64      `json:"average_damage,omitempty"`
	Heals         bool         `json:"heals,omitempty"`
}

// ActorSummary is the deciding NPC.
type ActorSummary struct {
	CombatantSummary
	Speed     int              `json:"speed"`
	Archetype string           `json:"archetype,omitempty"`
	Abilities []AbilitySummary `json:"abilities"`
	Strategy  *threat.Strategy `json:"strategy,omitempty"`
}

// ObjectSummary is a battlefield object worth mentioning.
type ObjectSummary struct {
	ID       string               `json:"id"`
	Position battlefield.Position `json:"position"`
	Cover    bool                 `json:"cover,omitempty"`
}

// Summary is the structured battlefield description sent to the generative
// backend for one NPC turn.
//
// Invariant: Actor is never nil; Allies and Enemies hold only live combatants.
type Summary struct {
	Round   int                `json:"round"`
	Actor   *ActorSummary      `json:"actor"`
	Allies  []CombatantSummary `json:"allies"`
	Enemies []CombatantSummary `json:"enemies"`
	Objects []ObjectSummary    `json:"objects,omitempty"`
	// Map is the terrain in rows of '.', ':', '~' and '#'.
	Map []string `json:"map"`
}

// BuildSummary constructs a Summary for actorID from s.
//
// Precondition: actorID names a live NPC token with a resolvable profile.
// Postcondition: combatants are listed nearest first, ties by ID.
func BuildSummary(s sim.State, actorID string, profiles sim.Profiles, round int) (*Summary, error) {
	self, ok := s.Token(actorID)
	if !ok {
		return nil, fmt.Errorf("ai.BuildSummary: actor %q not found", actorID)
	}
	inst, ok := s.NPC(actorID)
	if !ok {
		return nil, fmt.Errorf("ai.BuildSummary: %q is not an npc", actorID)
	}
	prof, ok := profiles.Of(s, actorID)
	if !ok {
		return nil, fmt.Errorf("ai.BuildSummary: no statistics for %q", actorID)
	}
	strategy := inst.Strategy
	if strategy == nil && inst.LeaderID != "" {
		if leader, ok := s.NPC(inst.LeaderID); ok {
			strategy = leader.Strategy
		}
	}

	sum := &Summary{
		Round: round,
		Actor: &ActorSummary{
			CombatantSummary: combatant(s, profiles, self, self.Position),
			Speed:            prof.Speed,
			Archetype:        prof.Archetype,
			Strategy:         strategy,
		},
		Map: strings.Split(s.Map.String(), "\n"),
	}
	for i := range prof.Abilities {
		a := &prof.Abilities[i]
		sum.Actor.Abilities = append(sum.Actor.Abilities, AbilitySummary{
			ID:            a.ID,
			Name:          a.Name,
			Kind:          a.Kind,
			Range:         a.MaxDistance(),
			Radius:        a.Radius,
			AverageDamage: a.AverageDamage(prof.Ability),
			Heals:         a.Heal != "",
		})
	}
	for _, t := range s.Allies(actorID) {
		sum.Allies = append(sum.Allies, combatant(s, profiles, t, self.Position))
	}
	for _, t := range s.Enemies(actorID) {
		sum.Enemies = append(sum.Enemies, combatant(s, profiles, t, self.Position))
	}
	byDistance(sum.Allies)
	byDistance(sum.Enemies)
	for _, o := range s.Objects {
		sum.Objects = append(sum.Objects, ObjectSummary{ID: o.ID, Position: o.Position, Cover: o.Cover})
	}
	return sum, nil
}

func combatant(s sim.State, profiles sim.Profiles, t battlefield.Token, from battlefield.Position) CombatantSummary {
	c := CombatantSummary{
		ID:         t.ID,
		Name:       t.Name,
		Kind:       t.Kind,
		Team:       t.Team,
		Position:   t.Position,
		Distance:   from.Distance(t.Position),
		Conditions: s.Conditions(t.ID).IDs(),
	}
	prof, _ := profiles.Of(s, t.ID)
	c.AC = prof.AC
	if inst, ok := s.NPC(t.ID); ok {
		c.HP, c.MaxHP = inst.CurrentHP, inst.MaxHP
	} else {
		c.HP, c.MaxHP = prof.HP, prof.MaxHP
	}
	return c
}

func byDistance(cs []CombatantSummary) {
	slices.SortFunc(cs, func(a, b CombatantSummary) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Enemy returns the enemy with id.
func (s *Summary) Enemy(id string) (*CombatantSummary, bool) {
	for i := range s.Enemies {
		if s.Enemies[i].ID == id {
			return &s.Enemies[i], true
		}
	}
	return nil, false
}

// Knows reports whether id names the actor or any combatant in the summary.
func (s *Summary) Knows(id string) bool {
	if id == s.Actor.ID {
		return true
	}
	for _, group := range [][]CombatantSummary{s.Allies, s.Enemies} {
		for _, c := range group {
			if c.ID == id {
				return true
			}
		}
	}
	return false
}

// WeakestEnemy returns the living enemy with the lowest HP percentage, or nil.
//
// Postcondition: ties are broken by distance order.
func (s *Summary) WeakestEnemy() *CombatantSummary {
	if len(s.Enemies) == 0 {
		return nil
	}
	weakest := &s.Enemies[0]
	for i := 1; i < len(s.Enemies); i++ {
		if s.Enemies[i].HPPercent() < weakest.HPPercent() {
			weakest = &s.Enemies[i]
		}
	}
	return weakest
}
