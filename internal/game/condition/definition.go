// Package condition defines status conditions and the persistent per-combatant
// condition sets that commands read and replace.
package condition

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Duration types.
const (
	DurationRounds    = "rounds"
	DurationUntilSave = "until_save"
	DurationPermanent = "permanent"
)

// Def is the static definition of a condition, loaded from YAML.
type Def struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	DurationType string `yaml:"duration_type"`
	MaxStacks    int    `yaml:"max_stacks"` // 0 = unstackable

	AttackPenalty int `yaml:"attack_penalty"`
	ACPenalty     int `yaml:"ac_penalty"`
	SpeedPenalty  int `yaml:"speed_penalty"`

	// AttackAdvantage grants the bearer advantage on its attack rolls;
	// AttackDisadvantage imposes disadvantage on them.
	AttackAdvantage    bool `yaml:"attack_advantage"`
	AttackDisadvantage bool `yaml:"attack_disadvantage"`
	// Evasive imposes disadvantage on attacks against the bearer.
	Evasive bool `yaml:"evasive"`
	// MeleeExposed grants adjacent attackers advantage; RangedSheltered imposes
	// disadvantage on attackers farther away.
	MeleeExposed    bool `yaml:"melee_exposed"`
	RangedSheltered bool `yaml:"ranged_sheltered"`
	// ConsumedOnAttack removes the condition once the bearer attacks.
	ConsumedOnAttack bool `yaml:"consumed_on_attack"`

	RestrictActions []string `yaml:"restrict_actions"`
}

// Validate checks the definition's invariants.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	switch d.DurationType {
	case DurationRounds, DurationUntilSave, DurationPermanent:
	default:
		errs = append(errs, fmt.Errorf("duration_type must be one of [rounds, until_save, permanent], got %q", d.DurationType))
	}
	if d.MaxStacks < 0 {
		errs = append(errs, fmt.Errorf("max_stacks must be >= 0, got %d", d.MaxStacks))
	}
	return errors.Join(errs...)
}

// Restricts reports whether the condition forbids actionType.
func (d *Def) Restricts(actionType string) bool {
	return slices.Contains(d.RestrictActions, actionType)
}

// Registry holds all known Defs keyed by ID. It is read-only after loading and
// safe for concurrent readers.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Def)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
//
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Def) {
	if def == nil || def.ID == "" {
		panic("condition.Registry.Register: precondition violated: def must be non-nil with an ID")
	}
	r.defs[def.ID] = def
}

// Get returns the Def for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns every registered Def ordered by ID.
func (r *Registry) All() []*Def {
	out := make([]*Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *Def) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Def with
// unknown fields rejected, and registers it on top of the built-in conditions.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := Builtins()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&def)
	}
	return reg, nil
}
