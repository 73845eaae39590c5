// Package scenario loads self-contained battle descriptions and runs them
// headless: a YAML file names the map, the combatants and their statistics,
// and the runner plays the player side from scripted commands or an archetype.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/damage"
	"github.com/cory-johannsen/tactics/internal/game/npc"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// PlayerSpec is a player character together with the statistics the roster
// serves for it.
type PlayerSpec struct {
	ID         string               `yaml:"id"`
	Name       string               `yaml:"name"`
	Team       string               `yaml:"team"`
	Position   battlefield.Position `yaml:"position"`
	HP         int                  `yaml:"hp"`
	MaxHP      int                  `yaml:"max_hp"`
	AC         int                  `yaml:"ac"`
	Speed      int                  `yaml:"speed"`
	DexMod     int                  `yaml:"dex_mod"`
	Perception int                  `yaml:"perception"`
	Stealth    int                  `yaml:"stealth"`
	Saves      map[string]int       `yaml:"saves"`
	Defenses   damage.Defenses      `yaml:",inline"`
	Abilities  []ability.Ability    `yaml:"abilities"`
	// Archetype drives the character when its script runs out. Empty means
	// the character ends its turn without acting.
	Archetype string `yaml:"archetype"`
	// Script holds command lines played in order; "end" closes a turn.
	Script []string `yaml:"script"`
}

// MonsterSpec places one monster from the content catalog.
type MonsterSpec struct {
	ID       string               `yaml:"id"`
	Monster  string               `yaml:"monster"`
	Name     string               `yaml:"name"`
	Team     string               `yaml:"team"`
	Position battlefield.Position `yaml:"position"`
	Squad    string               `yaml:"squad"`
	Leader   bool                 `yaml:"leader"`
}

// ObjectSpec places one blueprint.
type ObjectSpec struct {
	ID        string               `yaml:"id"`
	Blueprint string               `yaml:"blueprint"`
	Position  battlefield.Position `yaml:"position"`
}

// File is a parsed scenario.
type File struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Seed        uint64   `yaml:"seed"`
	MaxRounds   int      `yaml:"max_rounds"`
	Map         []string `yaml:"map"`

	Players  []PlayerSpec  `yaml:"players"`
	Monsters []MonsterSpec `yaml:"monsters"`
	Objects  []ObjectSpec  `yaml:"objects"`
	// Strategies is keyed by squad ID or monster ID; a monster's own entry
	// wins over its squad's.
	Strategies map[string]threat.Strategy `yaml:"strategies"`
}

// Load reads and parses the scenario at path.
//
// Precondition: path must name a readable file.
// Postcondition: Returns a validated File or an error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario.Load: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario.Load %q: %w", path, err)
	}
	return f, nil
}

// Parse decodes a scenario with unknown fields rejected and validates it.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks everything that does not need the content catalog.
func (f *File) Validate() error {
	var errs []error
	if f.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if len(f.Map) == 0 {
		errs = append(errs, errors.New("map must not be empty"))
	}
	if f.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("max_rounds must be >= 0, got %d", f.MaxRounds))
	}
	if len(f.Players)+len(f.Monsters) == 0 {
		errs = append(errs, errors.New("scenario has no combatants"))
	}
	seen := make(map[string]bool)
	claim := func(kind, id string) {
		switch {
		case id == "":
			errs = append(errs, fmt.Errorf("%s id must not be empty", kind))
		case seen[id]:
			errs = append(errs, fmt.Errorf("duplicate id %q", id))
		}
		seen[id] = true
	}
	for i := range f.Players {
		p := &f.Players[i]
		claim("player", p.ID)
		if p.MaxHP < 1 {
			errs = append(errs, fmt.Errorf("player %q: max_hp must be >= 1", p.ID))
		}
		if p.HP < 0 || p.HP > p.MaxHP {
			errs = append(errs, fmt.Errorf("player %q: hp must be within [0, max_hp]", p.ID))
		}
		if p.AC < 1 {
			errs = append(errs, fmt.Errorf("player %q: ac must be >= 1", p.ID))
		}
		for j := range p.Abilities {
			if err := p.Abilities[j].Validate(); err != nil {
				errs = append(errs, fmt.Errorf("player %q: %w", p.ID, err))
			}
		}
	}
	for _, m := range f.Monsters {
		claim("monster", m.ID)
		if m.Monster == "" {
			errs = append(errs, fmt.Errorf("monster %q: monster must name a template", m.ID))
		}
	}
	for _, o := range f.Objects {
		claim("object", o.ID)
		if o.Blueprint == "" {
			errs = append(errs, fmt.Errorf("object %q: blueprint must not be empty", o.ID))
		}
	}
	for key, s := range f.Strategies {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("strategy %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Build lays the scenario out over static content. Players go to the
// returned Roster; monsters become NPC instances in the state.
//
// Precondition: static and assessor must not be nil.
// Postcondition: Returns the initial state and roster, or every placement
// problem joined into one error.
func (f *File) Build(static sim.StaticData, assessor *threat.Assessor) (sim.State, *Roster, error) {
	m, err := battlefield.ParseMap(f.Map)
	if err != nil {
		return sim.State{}, nil, fmt.Errorf("scenario.Build: %w", err)
	}
	var errs []error
	taken := make(map[battlefield.Position]string)
	place := func(id string, p battlefield.Position) bool {
		switch {
		case !m.InBounds(p):
			errs = append(errs, fmt.Errorf("%q: position %s is off the map", id, p))
			return false
		case m.At(p) == battlefield.Wall:
			errs = append(errs, fmt.Errorf("%q: position %s is a wall", id, p))
			return false
		case taken[p] != "":
			errs = append(errs, fmt.Errorf("%q: position %s is already taken by %q", id, p, taken[p]))
			return false
		}
		taken[p] = id
		return true
	}

	s := sim.New(m)
	for _, o := range f.Objects {
		bp, ok := static.Blueprint(o.Blueprint)
		if !ok {
			errs = append(errs, fmt.Errorf("object %q: unknown blueprint %q", o.ID, o.Blueprint))
			continue
		}
		if place(o.ID, o.Position) {
			s.Objects = append(s.Objects, battlefield.Place(o.ID, bp, o.Position))
		}
	}

	roster := NewRoster()
	for _, p := range f.Players {
		if !place(p.ID, p.Position) {
			continue
		}
		name, team := p.Name, p.Team
		if name == "" {
			name = p.ID
		}
		if team == "" {
			team = battlefield.TeamPlayers
		}
		s = s.WithToken(battlefield.Token{ID: p.ID, Name: name, Kind: battlefield.KindPlayer, Team: team, Position: p.Position, CombatantID: p.ID})
		roster.Add(p)
	}

	leaders := make(map[string]string)
	for _, ms := range f.Monsters {
		if ms.Leader && ms.Squad != "" {
			if prev, dup := leaders[ms.Squad]; dup {
				errs = append(errs, fmt.Errorf("squad %q has two leaders: %q and %q", ms.Squad, prev, ms.ID))
			}
			leaders[ms.Squad] = ms.ID
		}
	}
	for _, ms := range f.Monsters {
		tmpl, ok := static.Monster(ms.Monster)
		if !ok {
			errs = append(errs, fmt.Errorf("monster %q: unknown template %q", ms.ID, ms.Monster))
			continue
		}
		if !place(ms.ID, ms.Position) {
			continue
		}
		name, team := ms.Name, ms.Team
		if name == "" {
			name = tmpl.Name
		}
		if team == "" {
			team = battlefield.TeamMonsters
		}
		inst := npc.NewInstance(ms.ID, tmpl)
		inst.Name = name
		inst.SquadID = ms.Squad
		inst.LeaderID = leaders[ms.Squad]
		strategy, err := f.strategyFor(ms, assessor)
		if err != nil {
			errs = append(errs, fmt.Errorf("monster %q: %w", ms.ID, err))
		}
		inst.Strategy = strategy
		s = s.WithToken(battlefield.Token{ID: ms.ID, Name: name, Kind: battlefield.KindNPC, Team: team, Position: ms.Position, CombatantID: ms.ID})
		s = s.WithNPC(inst)
	}

	if err := errors.Join(errs...); err != nil {
		return sim.State{}, nil, fmt.Errorf("scenario.Build: %w", err)
	}
	return s, roster, nil
}

// strategyFor returns a private copy of the strategy that applies to ms.
func (f *File) strategyFor(ms MonsterSpec, assessor *threat.Assessor) (*threat.Strategy, error) {
	s, ok := f.Strategies[ms.ID]
	if !ok && ms.Squad != "" {
		s, ok = f.Strategies[ms.Squad]
	}
	if !ok {
		return nil, nil
	}
	s.Priorities = slices.Clone(s.Priorities)
	if err := assessor.Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Scripts returns each player's command lines keyed by player ID.
func (f *File) Scripts() map[string][]string {
	out := make(map[string][]string, len(f.Players))
	for _, p := range f.Players {
		if len(p.Script) > 0 {
			out[p.ID] = slices.Clone(p.Script)
		}
	}
	return out
}
