package battlefield

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Blueprint tags understood by the simulator.
const (
	TagCover     = "cover"
	TagFlammable = "flammable"
)

// Blueprint is the static definition of a placeable battlefield object.
type Blueprint struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Interactable bool     `yaml:"interactable"`
	Integrity    int      `yaml:"integrity"`
	Tags         []string `yaml:"tags"`
}

// HasTag reports whether tag is among the blueprint's tags.
func (b *Blueprint) HasTag(tag string) bool { return slices.Contains(b.Tags, tag) }

// Validate checks required fields.
//
// Postcondition: Returns nil if the blueprint is usable, or an error naming every problem.
func (b *Blueprint) Validate() error {
	var errs []error
	if b.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if b.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if b.Integrity < 0 {
		errs = append(errs, fmt.Errorf("integrity must be >= 0, got %d", b.Integrity))
	}
	return errors.Join(errs...)
}

// LoadBlueprints reads every *.yaml file in dir, each holding one blueprint.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all blueprints or the first error encountered.
func LoadBlueprints(dir string) ([]*Blueprint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading blueprint dir %q: %w", dir, err)
	}
	var out []*Blueprint
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		var bp Blueprint
		if err := yaml.Unmarshal(data, &bp); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", e.Name(), err)
		}
		if err := bp.Validate(); err != nil {
			return nil, fmt.Errorf("validating %s: %w", e.Name(), err)
		}
		out = append(out, &bp)
	}
	return out, nil
}

// Object is a placed instance of a blueprint.
type Object struct {
	ID           string   `json:"id" yaml:"id"`
	BlueprintID  string   `json:"blueprint" yaml:"blueprint"`
	Position     Position `json:"position" yaml:"position"`
	Integrity    int      `json:"integrity" yaml:"integrity"`
	Interactable bool     `json:"interactable" yaml:"interactable"`
	Cover        bool     `json:"cover" yaml:"cover"`
}

// Place instantiates bp at pos with full integrity.
func Place(id string, bp *Blueprint, pos Position) Object {
	return Object{
		ID:           id,
		BlueprintID:  bp.ID,
		Position:     pos,
		Integrity:    bp.Integrity,
		Interactable: bp.Interactable,
		Cover:        bp.HasTag(TagCover),
	}
}

// CoverSquares returns the squares that an object providing cover shields from threat:
// in-bounds, enterable, unblocked squares adjacent to an interactable cover object
// that lie farther from threat than the object itself. Results are ordered by
// distance from origin, then by position.
func CoverSquares(m *Map, objects []Object, blocked map[Position]bool, origin, threat Position) []Position {
	seen := make(map[Position]bool)
	var out []Position
	for _, o := range objects {
		if !o.Cover || !o.Interactable {
			continue
		}
		objDist := o.Position.Distance(threat)
		for _, d := range Compass {
			sq := o.Position.Add(d)
			if seen[sq] || !m.InBounds(sq) || m.MoveCost(sq) == Impassable {
				continue
			}
			if blocked[sq] && sq != origin {
				continue
			}
			if sq.Distance(threat) <= objDist {
				continue
			}
			seen[sq] = true
			out = append(out, sq)
		}
	}
	slices.SortFunc(out, func(a, b Position) int {
		da, db := a.Distance(origin), b.Distance(origin)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		case a.Y != b.Y:
			return a.Y - b.Y
		default:
			return a.X - b.X
		}
	})
	return out
}
