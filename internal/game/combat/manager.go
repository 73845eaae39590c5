package combat

import (
	"fmt"
	"slices"
	"sync"
)

// Manager tracks live encounters by ID.
// All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	encounters map[string]*Encounter
}

// NewManager creates an empty Manager.
//
// Postcondition: Returns a non-nil Manager ready for use.
func NewManager() *Manager {
	return &Manager{encounters: make(map[string]*Encounter)}
}

// Add registers enc.
//
// Precondition: enc must not be nil.
// Postcondition: Returns an error if an encounter with the same ID is already registered.
func (m *Manager) Add(enc *Encounter) error {
	if enc == nil {
		panic("combat.Manager.Add: encounter must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.encounters[enc.ID()]; exists {
		return fmt.Errorf("combat.Manager.Add: encounter %q already registered", enc.ID())
	}
	m.encounters[enc.ID()] = enc
	return nil
}

// Get returns the encounter registered under id.
//
// Postcondition: Returns (encounter, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(id string) (*Encounter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enc, ok := m.encounters[id]
	return enc, ok
}

// End ends the encounter and forgets it. Unknown IDs are ignored.
func (m *Manager) End(id, reason string) {
	m.mu.Lock()
	enc, ok := m.encounters[id]
	delete(m.encounters, id)
	m.mu.Unlock()
	if ok {
		enc.End(reason)
	}
}

// Active returns the IDs of encounters that have not ended, sorted.
func (m *Manager) Active() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, enc := range m.encounters {
		select {
		case <-enc.Done():
		default:
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Reap forgets every ended encounter and returns how many were removed.
func (m *Manager) Reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, enc := range m.encounters {
		select {
		case <-enc.Done():
			delete(m.encounters, id)
			n++
		default:
		}
	}
	return n
}

// Shutdown ends every encounter and waits for outstanding AI calls.
func (m *Manager) Shutdown(reason string) {
	m.mu.Lock()
	all := make([]*Encounter, 0, len(m.encounters))
	for _, enc := range m.encounters {
		all = append(all, enc)
	}
	clear(m.encounters)
	m.mu.Unlock()
	for _, enc := range all {
		enc.End(reason)
		enc.Wait()
	}
}
