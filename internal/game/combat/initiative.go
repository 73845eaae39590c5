package combat

import (
	"cmp"
	"slices"

	"github.com/cory-johannsen/tactics/internal/game/dice"
)

// Initiative is one combatant's place in the turn order.
type Initiative struct {
	TokenID string
	DexMod  int
	Roll    int
	Total   int
}

// RollInitiative rolls d20 + DexMod for every entry and returns them in turn
// order: highest total first, then highest DexMod, then token ID.
//
// Precondition: roller must not be nil.
// Postcondition: each entry's Total == Roll + DexMod; the input is not modified.
func RollInitiative(roller *dice.Roller, entries []Initiative) []Initiative {
	out := slices.Clone(entries)
	for i := range out {
		out[i].Roll = roller.Roll(dice.D20).Total()
		out[i].Total = out[i].Roll + out[i].DexMod
	}
	slices.SortStableFunc(out, func(a, b Initiative) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(b.DexMod, a.DexMod); c != 0 {
			return c
		}
		return cmp.Compare(a.TokenID, b.TokenID)
	})
	return out
}
