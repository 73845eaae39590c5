package command

import (
	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// CastSpellCommand casts a single-target or area spell.
type CastSpellCommand struct{ E sim.CastSpell }

func (c CastSpellCommand) Event() sim.Event { return c.E }

func (c CastSpellCommand) resolve(s sim.State, ctx *Context) (*ability.Ability, []string, ValidationResult) {
	if v := requireActor(s, ctx, c.E.SourceID, "cast"); !v.OK {
		return nil, nil, v
	}
	caster, ok := ctx.Profiles.Of(s, c.E.SourceID)
	if !ok {
		return nil, nil, Invalid("no statistics for %q", c.E.SourceID)
	}
	a, ok := caster.Ability(c.E.AbilityID)
	if !ok || a.Kind != ability.Spell {
		return nil, nil, Invalid("%s knows no spell %q", name(s, c.E.SourceID), c.E.AbilityID)
	}
	self, _ := s.Token(c.E.SourceID)

	if a.IsArea() {
		center, ok := c.center(s)
		if !ok {
			return nil, nil, Invalid("%s needs a target square", a.Name)
		}
		if !a.InRange(self.Position, center) {
			return nil, nil, Invalid("%s is out of range of %s", center, a.Name)
		}
		var targets []string
		for _, t := range s.Tokens {
			if t.Kind != battlefield.KindObject && s.Alive(t.ID) && a.Covers(center, t.Position) {
				targets = append(targets, t.ID)
			}
		}
		return a, targets, Valid()
	}

	targetID := c.E.TargetID
	if a.SelfOnly || targetID == "" {
		targetID = c.E.SourceID
	}
	if !s.Alive(targetID) {
		return nil, nil, Invalid("caster or target not found")
	}
	to, _ := s.Token(targetID)
	if !a.InRange(self.Position, to.Position) {
		return nil, nil, Invalid("%s is out of range of %s", name(s, targetID), a.Name)
	}
	return a, []string{targetID}, Valid()
}

func (c CastSpellCommand) center(s sim.State) (battlefield.Position, bool) {
	if c.E.Center != nil {
		return *c.E.Center, true
	}
	if t, ok := s.Token(c.E.TargetID); ok {
		return t.Position, true
	}
	return battlefield.Position{}, false
}

func (c CastSpellCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	_, _, v := c.resolve(s, ctx)
	return v
}

// Execute emits per-target follow-up events. NPC targets of a saving-throw
// spell roll automatically; player targets receive a Prompt and are resolved
// later by a ResolveSave event. An area spell that covers nobody still
// succeeds and only logs.
func (c CastSpellCommand) Execute(s sim.State, ctx *Context) Result {
	a, targets, v := c.resolve(s, ctx)
	if !v.OK {
		return rejected(s, c.E, v)
	}
	res := ok(s, logf(c.E.SourceID, "%s casts %s", name(s, c.E.SourceID), a.Name))
	if center, ok := c.center(s); ok {
		res.Effects = append(res.Effects, Effect{Kind: "visual", Name: "spell:" + a.ID, TokenID: c.E.SourceID, At: center})
	}
	for _, id := range targets {
		switch {
		case a.Heal != "":
			res.Events = append(res.Events, sim.Heal{SourceID: c.E.SourceID, TargetID: id, AbilityID: a.ID, Dice: a.Heal})
		case a.Save != nil:
			target, _ := s.Token(id)
			if target.IsPlayer() {
				res.Prompts = append(res.Prompts, Prompt{
					TargetID:  id,
					CasterID:  c.E.SourceID,
					AbilityID: a.ID,
					SaveStat:  a.Save.Ability,
					DC:        a.Save.DC,
					Message:   name(s, id) + " must make a " + a.Save.Ability + " saving throw against " + a.Name,
				})
				continue
			}
			prof, _ := ctx.Profiles.Of(s, id)
			natural := ctx.Roller.Roll(dice.D20).Total()
			total := natural + prof.Saves[a.Save.Ability]
			res.Events = append(res.Events, saveOutcome(s, c.E.SourceID, id, a, total)...)
		default:
			res.Events = append(res.Events, strike(c.E.SourceID, id, a, false)...)
		}
	}
	return res
}

// strike is the unconditional effect of a or, when halved, its successful-save effect.
func strike(source, target string, a *ability.Ability, halved bool) []sim.Event {
	var out []sim.Event
	if len(a.Damage) > 0 {
		out = append(out, sim.DealDamage{SourceID: source, TargetID: target, AbilityID: a.ID, Parts: a.Damage, Halved: halved})
	}
	if a.Inflict != nil && !halved {
		out = append(out, inflict(source, target, a.Inflict))
	}
	return out
}

func saveOutcome(s sim.State, caster, target string, a *ability.Ability, total int) []sim.Event {
	if total >= a.Save.DC {
		out := []sim.Event{logf(target, "%s saves against %s (%d vs DC %d)", name(s, target), a.Name, total, a.Save.DC)}
		if a.Save.HalfOnSuccess {
			out = append(out, strike(caster, target, a, true)...)
		}
		return out
	}
	out := []sim.Event{logf(target, "%s fails to save against %s (%d vs DC %d)", name(s, target), a.Name, total, a.Save.DC)}
	return append(out, strike(caster, target, a, false)...)
}

// ResolveSaveCommand applies a player's answer to a saving-throw prompt.
type ResolveSaveCommand struct{ E sim.ResolveSave }

func (c ResolveSaveCommand) Event() sim.Event { return c.E }

func (c ResolveSaveCommand) resolve(s sim.State, ctx *Context) (*ability.Ability, ValidationResult) {
	if !s.Alive(c.E.SourceID) {
		return nil, Invalid("saving combatant %q not found", c.E.SourceID)
	}
	if _, ok := s.Token(c.E.CasterID); !ok {
		return nil, Invalid("caster %q not found", c.E.CasterID)
	}
	prof, ok := ctx.Profiles.Of(s, c.E.CasterID)
	if !ok {
		return nil, Invalid("no statistics for %q", c.E.CasterID)
	}
	a, ok := prof.Ability(c.E.AbilityID)
	if !ok || a.Save == nil {
		return nil, Invalid("%q does not force a saving throw", c.E.AbilityID)
	}
	return a, Valid()
}

func (c ResolveSaveCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	_, v := c.resolve(s, ctx)
	return v
}

func (c ResolveSaveCommand) Execute(s sim.State, ctx *Context) Result {
	a, v := c.resolve(s, ctx)
	if !v.OK {
		return rejected(s, c.E, v)
	}
	return ok(s, saveOutcome(s, c.E.CasterID, c.E.SourceID, a, c.E.Total)...)
}

// UseFeatureCommand triggers a feature ability.
type UseFeatureCommand struct{ E sim.UseFeature }

func (c UseFeatureCommand) Event() sim.Event { return c.E }

func (c UseFeatureCommand) resolve(s sim.State, ctx *Context) (*ability.Ability, string, ValidationResult) {
	if v := requireActor(s, ctx, c.E.SourceID, "feature"); !v.OK {
		return nil, "", v
	}
	prof, ok := ctx.Profiles.Of(s, c.E.SourceID)
	if !ok {
		return nil, "", Invalid("no statistics for %q", c.E.SourceID)
	}
	a, ok := prof.Ability(c.E.AbilityID)
	if !ok || a.Kind != ability.Feature {
		return nil, "", Invalid("%s has no feature %q", name(s, c.E.SourceID), c.E.AbilityID)
	}
	targetID := c.E.TargetID
	if a.SelfOnly || targetID == "" {
		if len(a.Multiattack) > 0 {
			return nil, "", Invalid("%s needs a target", a.Name)
		}
		targetID = c.E.SourceID
	}
	if !s.Alive(targetID) {
		return nil, "", Invalid("user or target not found")
	}
	if len(a.Multiattack) == 0 && targetID != c.E.SourceID {
		from, _ := s.Token(c.E.SourceID)
		to, _ := s.Token(targetID)
		if !a.InRange(from.Position, to.Position) {
			return nil, "", Invalid("%s is out of range of %s", name(s, targetID), a.Name)
		}
	}
	return a, targetID, Valid()
}

func (c UseFeatureCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	_, _, v := c.resolve(s, ctx)
	return v
}

// Execute expands a multiattack into one Attack event per listed ability, in
// order. Other features heal, inflict or deal damage directly.
func (c UseFeatureCommand) Execute(s sim.State, ctx *Context) Result {
	a, target, v := c.resolve(s, ctx)
	if !v.OK {
		return rejected(s, c.E, v)
	}
	res := ok(s, logf(c.E.SourceID, "%s uses %s", name(s, c.E.SourceID), a.Name))
	if len(a.Multiattack) > 0 {
		for _, id := range a.Multiattack {
			res.Events = append(res.Events, sim.Attack{SourceID: c.E.SourceID, TargetID: target, AbilityID: id})
		}
		return res
	}
	if a.Heal != "" {
		res.Events = append(res.Events, sim.Heal{SourceID: c.E.SourceID, TargetID: target, AbilityID: a.ID, Dice: a.Heal})
	}
	res.Events = append(res.Events, strike(c.E.SourceID, target, a, false)...)
	return res
}
