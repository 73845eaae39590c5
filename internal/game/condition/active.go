package condition

import (
	"fmt"
	"slices"
	"strings"
)

// Permanent marks an Active condition that does not count down.
const Permanent = -1

// Active is one applied condition.
type Active struct {
	ID        string `json:"id"`
	Stacks    int    `json:"stacks"`
	Remaining int    `json:"remaining"` // rounds left, or Permanent
}

// Set is the persistent list of conditions on one combatant, ordered by ID.
// Every operation returns a new Set and leaves the receiver untouched, so a
// Set can be shared between simulation snapshots.
type Set []Active

// Apply returns a copy of s with def applied. Re-applying adds stacks (capped
// at MaxStacks; unstackable conditions stay at 1) and keeps the longer duration.
//
// Precondition: def must not be nil.
func (s Set) Apply(def *Def, stacks, duration int) (Set, error) {
	if def == nil {
		return s, fmt.Errorf("condition.Apply: def must not be nil")
	}
	if def.DurationType != DurationRounds {
		duration = Permanent
	}
	out := slices.Clone(s)
	i, found := slices.BinarySearchFunc(out, def.ID, func(a Active, id string) int { return strings.Compare(a.ID, id) })
	if found {
		cur := out[i]
		if def.MaxStacks > 0 {
			cur.Stacks = min(cur.Stacks+stacks, def.MaxStacks)
		}
		if duration == Permanent || (cur.Remaining != Permanent && duration > cur.Remaining) {
			cur.Remaining = duration
		}
		out[i] = cur
		return out, nil
	}
	eff := 1
	if def.MaxStacks > 0 {
		eff = min(max(stacks, 1), def.MaxStacks)
	}
	return slices.Insert(out, i, Active{ID: def.ID, Stacks: eff, Remaining: duration}), nil
}

// Remove returns a copy of s without id. Removing an absent id returns s.
func (s Set) Remove(id string) Set {
	i := slices.IndexFunc(s, func(a Active) bool { return a.ID == id })
	if i < 0 {
		return s
	}
	return slices.Delete(slices.Clone(s), i, i+1)
}

// Tick counts down every round-limited condition by one and returns the new
// set plus the IDs that expired.
func (s Set) Tick() (Set, []string) {
	var expired []string
	out := make(Set, 0, len(s))
	for _, a := range s {
		if a.Remaining != Permanent {
			a.Remaining--
			if a.Remaining <= 0 {
				expired = append(expired, a.ID)
				continue
			}
		}
		out = append(out, a)
	}
	return out, expired
}

// Has reports whether id is active.
func (s Set) Has(id string) bool {
	return slices.ContainsFunc(s, func(a Active) bool { return a.ID == id })
}

// Stacks returns the stack count for id, or 0.
func (s Set) Stacks(id string) int {
	for _, a := range s {
		if a.ID == id {
			return a.Stacks
		}
	}
	return 0
}

// IDs returns the active condition IDs in order.
func (s Set) IDs() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = a.ID
	}
	return out
}
