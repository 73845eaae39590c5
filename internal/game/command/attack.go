package command

import (
	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// AttackCommand resolves one attack roll.
type AttackCommand struct{ E sim.Attack }

func (c AttackCommand) Event() sim.Event { return c.E }

func (c AttackCommand) resolve(s sim.State, ctx *Context) (*ability.Ability, sim.Profile, ValidationResult) {
	if v := requireActor(s, ctx, c.E.SourceID, "attack"); !v.OK {
		return nil, sim.Profile{}, v
	}
	if c.E.TargetID == c.E.SourceID {
		return nil, sim.Profile{}, Invalid("%s cannot attack itself", name(s, c.E.SourceID))
	}
	if !s.Alive(c.E.TargetID) {
		return nil, sim.Profile{}, Invalid("attacker or target not found")
	}
	attacker, ok := ctx.Profiles.Of(s, c.E.SourceID)
	if !ok {
		return nil, sim.Profile{}, Invalid("no statistics for %q", c.E.SourceID)
	}
	target, ok := ctx.Profiles.Of(s, c.E.TargetID)
	if !ok {
		return nil, sim.Profile{}, Invalid("no statistics for %q", c.E.TargetID)
	}
	a, ok := attacker.Ability(c.E.AbilityID)
	if !ok || !a.IsAttack() {
		return nil, sim.Profile{}, Invalid("%s has no attack %q", name(s, c.E.SourceID), c.E.AbilityID)
	}
	from, _ := s.Token(c.E.SourceID)
	to, _ := s.Token(c.E.TargetID)
	if !a.InRange(from.Position, to.Position) {
		return nil, sim.Profile{}, Invalid("%s is out of range of %s", name(s, c.E.TargetID), a.Name)
	}
	return a, target, Valid()
}

func (c AttackCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	_, _, v := c.resolve(s, ctx)
	return v
}

// Execute rolls a d20, with advantage or disadvantage from conditions. A
// natural 20 always hits and crits, a natural 1 always misses, otherwise the
// attack hits when roll plus bonus meets the target's armor. A Log event is
// always emitted; a hit adds DealDamage and any condition the attack inflicts.
func (c AttackCommand) Execute(s sim.State, ctx *Context) Result {
	a, target, v := c.resolve(s, ctx)
	if !v.OK {
		return rejected(s, c.E, v)
	}
	from, _ := s.Token(c.E.SourceID)
	to, _ := s.Token(c.E.TargetID)
	attackerConds := s.Conditions(c.E.SourceID)
	targetConds := s.Conditions(c.E.TargetID)

	d20 := dice.D20
	edge := condition.AttackEdge(ctx.Conditions, attackerConds, targetConds, from.Position.Adjacent(to.Position))
	switch edge {
	case condition.WithAdvantage:
		d20 = dice.Advantage
	case condition.WithDisadvantage:
		d20 = dice.Disadvantage
	}
	natural := ctx.Roller.Roll(d20).Natural()
	bonus := a.AttackBonus + condition.AttackBonus(ctx.Conditions, attackerConds)
	ac := target.AC + condition.ACBonus(ctx.Conditions, targetConds)
	total := natural + bonus

	var hit, crit bool
	var verdict string
	switch {
	case natural == 20:
		hit, crit, verdict = true, true, "critical hit"
	case natural == 1:
		verdict = "miss (natural 1)"
	case total >= ac:
		hit, verdict = true, "hit"
	default:
		verdict = "miss"
	}

	next := s
	if spent := condition.ConsumeOnAttack(ctx.Conditions, attackerConds); len(spent) != len(attackerConds) {
		next = s.WithConditions(c.E.SourceID, spent)
	}
	events := []sim.Event{logf(c.E.SourceID, "%s attacks %s with %s: rolled %d%+d = %d vs AC %d, %s",
		name(s, c.E.SourceID), name(s, c.E.TargetID), a.Name, natural, bonus, total, ac, verdict)}
	res := Result{Success: true, State: next}
	if hit {
		events = append(events, sim.DealDamage{
			SourceID:  c.E.SourceID,
			TargetID:  c.E.TargetID,
			AbilityID: a.ID,
			Parts:     a.Damage,
			Crit:      crit,
		})
		if a.Inflict != nil {
			events = append(events, inflict(c.E.SourceID, c.E.TargetID, a.Inflict))
		}
		res.Effects = append(res.Effects, Effect{Kind: "sound", Name: "hit", TokenID: c.E.TargetID, At: to.Position})
	} else {
		res.Effects = append(res.Effects, Effect{Kind: "sound", Name: "miss", TokenID: c.E.TargetID, At: to.Position})
	}
	res.Events = events
	return res
}

func inflict(source, target string, in *ability.Inflict) sim.ApplyCondition {
	stacks := in.Stacks
	if stacks <= 0 {
		stacks = 1
	}
	return sim.ApplyCondition{SourceID: source, TargetID: target, ConditionID: in.Condition, Duration: in.Duration, Stacks: stacks}
}
