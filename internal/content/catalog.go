// Package content loads the static data an encounter reads: monster
// templates, object blueprints, condition definitions and AI archetypes.
package content

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/game/ai"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/npc"
)

// Catalog is the loaded static data. It implements sim.StaticData and is
// read-only after Load returns.
type Catalog struct {
	monsters   map[string]*npc.Template
	blueprints map[string]*battlefield.Blueprint
	// Archetypes are the declared behavior trees, not yet built.
	Archetypes []*ai.ArchetypeDef
	Conditions *condition.Registry
}

// Load reads the four content directories concurrently.
//
// Precondition: every directory in cfg except Scripts must be readable.
// Postcondition: Returns a complete Catalog or the first error encountered.
func Load(ctx context.Context, cfg config.ContentConfig) (*Catalog, error) {
	var (
		templates  []*npc.Template
		blueprints []*battlefield.Blueprint
		c          Catalog
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		templates, err = npc.LoadTemplates(cfg.Monsters)
		return err
	})
	g.Go(func() error {
		var err error
		blueprints, err = battlefield.LoadBlueprints(cfg.Blueprints)
		return err
	})
	g.Go(func() error {
		var err error
		c.Conditions, err = condition.LoadDirectory(cfg.Conditions)
		return err
	})
	g.Go(func() error {
		var err error
		c.Archetypes, err = ai.LoadArchetypes(cfg.Archetypes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("content.Load: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("content.Load: %w", err)
	}

	c.monsters = make(map[string]*npc.Template, len(templates))
	for _, t := range templates {
		if _, dup := c.monsters[t.ID]; dup {
			return nil, fmt.Errorf("content.Load: duplicate monster %q", t.ID)
		}
		c.monsters[t.ID] = t
	}
	c.blueprints = make(map[string]*battlefield.Blueprint, len(blueprints))
	for _, b := range blueprints {
		if _, dup := c.blueprints[b.ID]; dup {
			return nil, fmt.Errorf("content.Load: duplicate blueprint %q", b.ID)
		}
		c.blueprints[b.ID] = b
	}
	return &c, nil
}

// New builds a Catalog from values already in memory.
func New(templates []*npc.Template, blueprints []*battlefield.Blueprint, archetypes []*ai.ArchetypeDef, conds *condition.Registry) *Catalog {
	c := &Catalog{
		monsters:   make(map[string]*npc.Template, len(templates)),
		blueprints: make(map[string]*battlefield.Blueprint, len(blueprints)),
		Archetypes: archetypes,
		Conditions: conds,
	}
	for _, t := range templates {
		c.monsters[t.ID] = t
	}
	for _, b := range blueprints {
		c.blueprints[b.ID] = b
	}
	if c.Conditions == nil {
		c.Conditions = condition.Builtins()
	}
	return c
}

// Monster returns the template with id.
func (c *Catalog) Monster(id string) (*npc.Template, bool) {
	t, ok := c.monsters[id]
	return t, ok
}

// Blueprint returns the blueprint with id.
func (c *Catalog) Blueprint(id string) (*battlefield.Blueprint, bool) {
	b, ok := c.blueprints[id]
	return b, ok
}

// MonsterIDs returns every template ID, sorted.
func (c *Catalog) MonsterIDs() []string {
	ids := make([]string, 0, len(c.monsters))
	for id := range c.monsters {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Unresolved returns the IDs of monsters naming an archetype that no
// declaration provides, sorted. Such monsters fall back to the generative
// backend every turn.
func (c *Catalog) Unresolved() []string {
	declared := make(map[string]bool, len(c.Archetypes))
	for _, a := range c.Archetypes {
		declared[a.ID] = true
	}
	var out []string
	for id, t := range c.monsters {
		if t.Archetype != "" && !declared[t.Archetype] {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
