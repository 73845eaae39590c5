package dice

import "slices"

// Roll evaluates an Expression using the given Source and returns a RollResult.
// Flat expressions consume no randomness.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: result.Total() == sum(result.Dice) + result.Modifier.
func Roll(expr Expression, src Source) (RollResult, error) {
	return rollCount(expr, expr.Count, src), nil
}

// RollDoubled rolls expr with twice as many dice and the modifier once, as a
// critical hit does. Flat expressions are not doubled.
func RollDoubled(expr Expression, src Source) (RollResult, error) {
	return rollCount(expr, expr.Count*2, src), nil
}

func rollCount(expr Expression, count int, src Source) RollResult {
	rolled := make([]int, count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	res := RollResult{Expression: expr.Raw, Dice: rolled, Modifier: expr.Modifier}

	keep := 0
	sorted := slices.Clone(rolled)
	switch {
	case expr.KeepHighest > 0:
		slices.SortFunc(sorted, func(a, b int) int { return b - a })
		keep = expr.KeepHighest
	case expr.KeepLowest > 0:
		slices.Sort(sorted)
		keep = expr.KeepLowest
	default:
		return res
	}
	res.Dice, res.Dropped = sorted[:keep], sorted[keep:]
	return res
}

// RollExpr parses expr and rolls it using src in a single call.
//
// Precondition: expr must be a valid dice expression string; src must be non-nil.
// Postcondition: Returns a RollResult or a parse error.
func RollExpr(expr string, src Source) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return Roll(e, src)
}

// MustParse parses expr and panics on error. Useful for package-level constants.
//
// Precondition: expr must be a valid dice expression.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}

// D20 is the plain check die.
var D20 = MustParse("d20")

// Advantage and Disadvantage roll two d20s and keep one.
var (
	Advantage    = MustParse("2d20kh1")
	Disadvantage = MustParse("2d20kl1")
)
