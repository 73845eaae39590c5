// Package damage resolves damage part lists into totals with critical-hit doubling.
//
// The calculator knows nothing about resistances or immunities; callers layer
// those using target data.
package damage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/dice"
)

// Part is one component of a damage roll, e.g. "1d6+3 piercing".
type Part struct {
	Dice  string `json:"dice" yaml:"dice"`
	Bonus int    `json:"bonus,omitempty" yaml:"bonus,omitempty"`
	Type  string `json:"type" yaml:"type"`
}

// Average returns the expected damage of the part, or 0 for an unparseable expression.
func (p Part) Average() float64 {
	e, err := dice.Parse(p.Dice)
	if err != nil {
		return 0
	}
	return e.Average() + float64(p.Bonus)
}

// Rolled is the resolved value of one part.
type Rolled struct {
	Part  Part            `json:"part"`
	Roll  dice.RollResult `json:"roll"`
	Total int             `json:"total"`
}

// Result is the outcome of Calculate.
type Result struct {
	Total       int      `json:"total"`
	PrimaryType string   `json:"primary_type"`
	Crit        bool     `json:"crit"`
	Breakdown   []Rolled `json:"breakdown"`
}

// ByType sums the breakdown per damage type.
func (r Result) ByType() map[string]int {
	out := make(map[string]int, len(r.Breakdown))
	for _, b := range r.Breakdown {
		out[b.Part.Type] += b.Total
	}
	return out
}

// Calculator rolls damage parts with a logged dice roller.
type Calculator struct {
	roller *dice.Roller
	logger *zap.Logger
}

// NewCalculator returns a Calculator drawing randomness from roller.
//
// Precondition: roller and logger must be non-nil.
func NewCalculator(roller *dice.Roller, logger *zap.Logger) *Calculator {
	if roller == nil || logger == nil {
		panic("damage.NewCalculator: precondition violated: roller and logger must be non-nil")
	}
	return &Calculator{roller: roller, logger: logger}
}

// Calculate rolls every part. On a crit each part's dice are rolled twice as
// many times while the expression modifier and the part bonus are added once.
// Flat expressions resolve to their literal value and are never doubled.
//
// Postcondition: Total == sum of breakdown totals, each floored at 0;
// PrimaryType is the first part's type, or "" for an empty list.
func (c *Calculator) Calculate(parts []Part, crit bool) (Result, error) {
	res := Result{Crit: crit}
	if len(parts) == 0 {
		return res, nil
	}
	res.PrimaryType = parts[0].Type
	for i, p := range parts {
		expr, err := dice.Parse(p.Dice)
		if err != nil {
			return Result{}, fmt.Errorf("damage.Calculate: part %d: %w", i, err)
		}
		var roll dice.RollResult
		if crit {
			roll = c.roller.RollCrit(expr)
		} else {
			roll = c.roller.Roll(expr)
		}
		total := max(roll.Total()+p.Bonus, 0)
		res.Breakdown = append(res.Breakdown, Rolled{Part: p, Roll: roll, Total: total})
		res.Total += total
	}
	c.logger.Debug("damage calculated",
		zap.Int("total", res.Total),
		zap.String("primary_type", res.PrimaryType),
		zap.Bool("crit", crit),
		zap.Int("parts", len(parts)),
	)
	return res, nil
}

// Validate checks that every part has a parseable expression and a type.
func Validate(parts []Part) error {
	for i, p := range parts {
		if _, err := dice.Parse(p.Dice); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		if p.Type == "" {
			return fmt.Errorf("part %d: type must not be empty", i)
		}
	}
	return nil
}

// Average returns the expected total of parts without a crit.
func Average(parts []Part) float64 {
	var sum float64
	for _, p := range parts {
		sum += p.Average()
	}
	return sum
}
