package dice

import "go.uber.org/zap"

// Roller rolls from a Source and records every result at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if src == nil || logger == nil {
		panic("dice.NewLoggedRoller: precondition violated: src and logger must be non-nil")
	}
	return &Roller{src: src, logger: logger}
}

// Source returns the underlying randomness source.
func (r *Roller) Source() Source { return r.src }

// Roll evaluates expr and logs the result at debug level.
func (r *Roller) Roll(expr Expression) RollResult {
	result, _ := Roll(expr, r.src)
	r.log(result, false)
	return result
}

// RollCrit evaluates expr with doubled dice and logs the result.
func (r *Roller) RollCrit(expr Expression) RollResult {
	result, _ := RollDoubled(expr, r.src)
	r.log(result, true)
	return result
}

// RollExpr parses expr and rolls it, logging the result.
//
// Postcondition: Returns a RollResult or a parse error.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}

func (r *Roller) log(result RollResult, crit bool) {
	ce := r.logger.Check(zap.DebugLevel, "dice roll")
	if ce == nil {
		return
	}
	ce.Write(
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Ints("dropped", result.Dropped),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
		zap.Bool("crit", crit),
	)
}
