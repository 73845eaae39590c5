package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// ErrUnknownPlayer is returned for a combatant the roster does not hold.
var ErrUnknownPlayer = errors.New("unknown player")

type member struct {
	spec PlayerSpec
	hp   int
}

// Roster is the player statistics layer for a scenario. It serves profiles
// to the encounter and owns player hit points.
//
// A Roster is safe for concurrent use.
type Roster struct {
	mu      sync.RWMutex
	members map[string]*member
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{members: make(map[string]*member)}
}

// Add registers p, replacing any earlier entry with the same ID. A zero HP
// starts the character at full health.
func (r *Roster) Add(p PlayerSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hp := p.HP
	if hp == 0 {
		hp = p.MaxHP
	}
	r.members[p.ID] = &member{spec: p, hp: hp}
}

// Player returns the current profile for combatantID.
func (r *Roster) Player(combatantID string) (sim.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[combatantID]
	if !ok {
		return sim.Profile{}, false
	}
	p := m.spec
	return sim.Profile{
		HP:         m.hp,
		MaxHP:      p.MaxHP,
		AC:         p.AC,
		Speed:      p.Speed,
		DexMod:     p.DexMod,
		Perception: p.Perception,
		Stealth:    p.Stealth,
		Saves:      p.Saves,
		Abilities:  p.Abilities,
		Defenses:   p.Defenses,
		Archetype:  p.Archetype,
	}, true
}

// HP returns the current and maximum hit points of combatantID.
func (r *Roster) HP(combatantID string) (hp, maxHP int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[combatantID]
	if !ok {
		return 0, 0, false
	}
	return m.hp, m.spec.MaxHP, true
}

// IDs returns the registered player IDs, sorted.
func (r *Roster) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Apply applies a deferred hit point change. Hit points stay within
// [0, MaxHP]; the player is down at zero.
//
// Postcondition: returns ErrUnknownPlayer (wrapped) without side effects for
// a combatant the roster does not hold.
func (r *Roster) Apply(_ context.Context, d command.Deferred) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[d.CombatantID]
	if !ok {
		return false, fmt.Errorf("scenario.Roster.Apply: %w %q", ErrUnknownPlayer, d.CombatantID)
	}
	m.hp = min(max(m.hp-d.Damage+d.Healing, 0), m.spec.MaxHP)
	return m.hp == 0, nil
}
