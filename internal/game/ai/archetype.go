// Package ai decides NPC turns: a behavior tree per archetype on the fast
// path, a generative backend as fallback, and an inert turn when neither
// produces an actionable intent.
package ai

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/tactics/internal/game/bt"
)

// ArchetypeDef is a named behavior-tree declaration loaded from YAML.
//
// Precondition: ID must be non-empty and Tree must name a root node type.
type ArchetypeDef struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Tree        bt.Def `yaml:"tree"`
}

// Validate checks required fields. Node types and arguments are checked when
// the tree is built.
func (a *ArchetypeDef) Validate() error {
	if a.ID == "" {
		return errors.New("ai.ArchetypeDef: ID must not be empty")
	}
	if a.Tree.Type == "" {
		return fmt.Errorf("ai.ArchetypeDef %q: tree must have a root type", a.ID)
	}
	return nil
}

// yamlArchetypeFile wraps the YAML top-level key.
type yamlArchetypeFile struct {
	Archetype *ArchetypeDef `yaml:"archetype"`
}

// LoadArchetypes reads all *.yaml files from dir and returns parsed definitions.
//
// Precondition: dir must be a readable directory.
// Postcondition: returns error if any YAML file fails to parse or validate, or
// if two files declare the same ID.
func LoadArchetypes(dir string) ([]*ArchetypeDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ai.LoadArchetypes: reading %q: %w", dir, err)
	}
	var defs []*ArchetypeDef
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("ai.LoadArchetypes: reading %s: %w", e.Name(), err)
		}
		var f yamlArchetypeFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("ai.LoadArchetypes: parsing %s: %w", e.Name(), err)
		}
		if f.Archetype == nil {
			return nil, fmt.Errorf("ai.LoadArchetypes: %s missing top-level 'archetype' key", e.Name())
		}
		if err := f.Archetype.Validate(); err != nil {
			return nil, fmt.Errorf("ai.LoadArchetypes: %s: %w", e.Name(), err)
		}
		if prev, dup := seen[f.Archetype.ID]; dup {
			return nil, fmt.Errorf("ai.LoadArchetypes: archetype %q declared in both %s and %s", f.Archetype.ID, prev, e.Name())
		}
		seen[f.Archetype.ID] = e.Name()
		defs = append(defs, f.Archetype)
	}
	return defs, nil
}
