// Package dice provides the randomness abstraction, expression parser and
// roll-result types shared by attack, damage and saving-throw resolution.
package dice

import (
	"fmt"
	"strings"
)

// RollResult is the audit trail of one evaluated expression.
//
// Postcondition: Total() == sum(Dice) + Modifier; Dropped never counts.
type RollResult struct {
	Expression string
	// Dice are the kept faces in roll order, or highest/lowest first under a
	// keep rule.
	Dice []int
	// Dropped are the faces a keep rule discarded.
	Dropped  []int
	Modifier int
}

// Total returns the kept faces plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// Natural returns the first kept die, which decides natural 1s and 20s on a
// d20 check. Flat results return 0.
func (r RollResult) Natural() int {
	if len(r.Dice) == 0 {
		return 0
	}
	return r.Dice[0]
}

// String renders the roll for logs, e.g. "2d20kh1 → [17] (dropped [4]) +0 = 17".
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s → %v", r.Expression, r.Dice)
	if len(r.Dropped) > 0 {
		fmt.Fprintf(&b, " (dropped %v)", r.Dropped)
	}
	fmt.Fprintf(&b, " %+d = %d", r.Modifier, r.Total())
	return b.String()
}

// Source is the randomness behind every roll. Implementations must be safe
// for concurrent use.
type Source interface {
	// Intn returns a value in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}
