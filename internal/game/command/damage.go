package command

import (
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// DealDamageCommand rolls and applies damage to one target.
type DealDamageCommand struct{ E sim.DealDamage }

func (c DealDamageCommand) Event() sim.Event { return c.E }

func (c DealDamageCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	t, ok := s.Token(c.E.TargetID)
	if !ok {
		return Invalid("target %q not found", c.E.TargetID)
	}
	if t.Kind == battlefield.KindNPC && !s.Alive(c.E.TargetID) {
		return Invalid("%s is already defeated", name(s, c.E.TargetID))
	}
	if t.Kind == battlefield.KindObject {
		return Invalid("%s cannot take damage", name(s, c.E.TargetID))
	}
	return Valid()
}

// Execute resolves the parts through the damage calculator, then applies the
// target's resistances, immunities and vulnerabilities. NPC hit points are
// clamped at zero and a zero-crossing emits a defeat Log. Damage to a player
// is returned as Deferred with the state and event list untouched.
func (c DealDamageCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	rolled, err := ctx.Damage.Calculate(c.E.Parts, c.E.Crit)
	if err != nil {
		return rejected(s, c.E, Invalid("%v", err))
	}
	amount := rolled.Total
	if prof, ok := ctx.Profiles.Of(s, c.E.TargetID); ok {
		amount = prof.Defenses.Apply(rolled)
	}
	if c.E.Halved {
		amount /= 2
	}

	target, _ := s.Token(c.E.TargetID)
	if target.IsPlayer() {
		return Result{
			Success: true,
			State:   s,
			Deferred: []Deferred{{
				TokenID:     target.ID,
				CombatantID: target.CombatantID,
				SourceID:    c.E.SourceID,
				Damage:      amount,
				Type:        rolled.PrimaryType,
			}},
		}
	}

	inst, _ := s.NPC(c.E.TargetID)
	before := inst.CurrentHP
	inst.CurrentHP = max(0, inst.CurrentHP-amount)
	if _, ok := s.Token(c.E.SourceID); ok && c.E.SourceID != c.E.TargetID {
		inst.LastAttackerID = c.E.SourceID
	}
	next := s.WithNPC(inst).WithLastDamage(sim.DamageSummary{
		SourceID: c.E.SourceID,
		TargetID: c.E.TargetID,
		Amount:   amount,
		Type:     rolled.PrimaryType,
		Crit:     c.E.Crit,
	})

	res := ok(next)
	res.Effects = []Effect{{Kind: "visual", Name: "damage:" + rolled.PrimaryType, TokenID: target.ID, At: target.Position}}
	if before > 0 && inst.CurrentHP == 0 {
		res.Events = append(res.Events, logf(c.E.SourceID, "%s is defeated", name(s, c.E.TargetID)))
		res.Effects = append(res.Effects, Effect{Kind: "sound", Name: "defeat", TokenID: target.ID, At: target.Position})
	}
	return res
}

// HealCommand restores hit points.
type HealCommand struct{ E sim.Heal }

func (c HealCommand) Event() sim.Event { return c.E }

func (c HealCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	t, ok := s.Token(c.E.TargetID)
	if !ok || t.Kind == battlefield.KindObject {
		return Invalid("target %q not found", c.E.TargetID)
	}
	if t.Kind == battlefield.KindNPC && !s.Alive(c.E.TargetID) {
		return Invalid("%s is beyond healing", name(s, c.E.TargetID))
	}
	if c.E.Dice == "" {
		return Invalid("no healing amount")
	}
	return Valid()
}

// Execute rolls the healing and caps NPC hit points at maximum. Player
// healing is returned as Deferred.
func (c HealCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	roll, err := ctx.Roller.RollExpr(c.E.Dice)
	if err != nil {
		return rejected(s, c.E, Invalid("%v", err))
	}
	amount := max(roll.Total(), 0)
	target, _ := s.Token(c.E.TargetID)
	fx := Effect{Kind: "visual", Name: "heal", TokenID: target.ID, At: target.Position}
	if target.IsPlayer() {
		return Result{
			Success:  true,
			State:    s,
			Events:   []sim.Event{logf(c.E.SourceID, "%s heals %s for %d", name(s, c.E.SourceID), name(s, c.E.TargetID), amount)},
			Effects:  []Effect{fx},
			Deferred: []Deferred{{TokenID: target.ID, CombatantID: target.CombatantID, SourceID: c.E.SourceID, Healing: amount}},
		}
	}
	inst, _ := s.NPC(c.E.TargetID)
	inst.CurrentHP = min(inst.MaxHP, inst.CurrentHP+amount)
	res := ok(s.WithNPC(inst), logf(c.E.SourceID, "%s heals %s for %d", name(s, c.E.SourceID), name(s, c.E.TargetID), amount))
	res.Effects = []Effect{fx}
	return res
}
