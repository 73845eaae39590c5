// Package npc provides monster template definitions and per-encounter runtime state.
package npc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/damage"
)

// Template defines a reusable monster loaded from YAML.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MaxHP       int    `yaml:"max_hp"`
	AC          int    `yaml:"ac"`
	// Speed is movement per turn in squares.
	Speed      int            `yaml:"speed"`
	DexMod     int            `yaml:"dex_mod"`
	Perception int            `yaml:"perception"`
	Stealth    int            `yaml:"stealth"`
	Saves      map[string]int `yaml:"saves"`
	// Archetype names the behavior tree driving this monster; empty means the
	// generative backend decides every turn.
	Archetype string            `yaml:"archetype"`
	Tags      []string          `yaml:"tags"`
	Defenses  damage.Defenses   `yaml:",inline"`
	Abilities []ability.Ability `yaml:"abilities"`
	// Barks are flavor lines spoken when the creature cannot decide what to do.
	Barks []string `yaml:"barks"`
}

// Validate checks that the template satisfies basic invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHP >= 1, AC >= 1,
// Speed >= 0 and every ability validates.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("npc template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("npc template %q: name must not be empty", t.ID)
	}
	if t.MaxHP < 1 {
		return fmt.Errorf("npc template %q: max_hp must be >= 1", t.ID)
	}
	if t.AC < 1 {
		return fmt.Errorf("npc template %q: ac must be >= 1", t.ID)
	}
	if t.Speed < 0 {
		return fmt.Errorf("npc template %q: speed must be >= 0", t.ID)
	}
	seen := make(map[string]bool, len(t.Abilities))
	for i := range t.Abilities {
		a := &t.Abilities[i]
		if err := a.Validate(); err != nil {
			return fmt.Errorf("npc template %q: %w", t.ID, err)
		}
		if seen[a.ID] {
			return fmt.Errorf("npc template %q: duplicate ability %q", t.ID, a.ID)
		}
		seen[a.ID] = true
	}
	for i := range t.Abilities {
		for _, ref := range t.Abilities[i].Multiattack {
			if !seen[ref] {
				return fmt.Errorf("npc template %q: ability %q references unknown ability %q", t.ID, t.Abilities[i].ID, ref)
			}
		}
	}
	return nil
}

// Ability returns the template ability with id.
func (t *Template) Ability(id string) (*ability.Ability, bool) {
	return ability.Find(t.Abilities, id)
}

// LoadTemplateFromBytes parses a single template from raw YAML bytes,
// rejecting unknown fields.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure; on error, the partial result is discarded.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading npc dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
