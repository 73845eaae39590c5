package ai

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/tactics"
)

// ErrNoArchetype is returned for an archetype that was never registered.
var ErrNoArchetype = errors.New("no such archetype")

// Registry holds one built tree per archetype. A definition that fails to
// build is kept as its construction error so lookups report why the local AI
// is unavailable.
//
// Invariant: each archetype ID is registered at most once.
// Registry is read-only after loading and safe for concurrent lookups.
type Registry struct {
	trees    map[string]tactics.Node
	failures map[string]error
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{trees: make(map[string]tactics.Node), failures: make(map[string]error)}
}

// Register builds def with nodes and stores the result.
//
// Precondition: def and nodes must not be nil.
// Postcondition: returns error on ID collision or construction failure; a
// construction failure is recorded and affects only this archetype.
func (r *Registry) Register(def *ArchetypeDef, nodes *tactics.Registry) error {
	if _, exists := r.trees[def.ID]; exists {
		return fmt.Errorf("ai.Registry: archetype %q already registered", def.ID)
	}
	if _, exists := r.failures[def.ID]; exists {
		return fmt.Errorf("ai.Registry: archetype %q already registered", def.ID)
	}
	root, err := nodes.Build(def.ID, def.Tree)
	if err != nil {
		r.failures[def.ID] = err
		return fmt.Errorf("ai.Registry: archetype %q: %w", def.ID, err)
	}
	r.trees[def.ID] = root
	return nil
}

// Load registers every definition, logging the ones that fail instead of
// stopping. It returns the number of trees built.
func (r *Registry) Load(defs []*ArchetypeDef, nodes *tactics.Registry, logger *zap.Logger) int {
	n := 0
	for _, d := range defs {
		if err := r.Register(d, nodes); err != nil {
			logger.Error("archetype unavailable", zap.String("archetype", d.ID), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// Tree returns the built tree for id, the recorded construction error, or
// ErrNoArchetype.
func (r *Registry) Tree(id string) (tactics.Node, error) {
	if t, ok := r.trees[id]; ok {
		return t, nil
	}
	if err, ok := r.failures[id]; ok {
		return nil, err
	}
	return nil, fmt.Errorf("ai.Registry: %w %q", ErrNoArchetype, id)
}
