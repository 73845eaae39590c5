package command

import (
	"strings"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/pathfind"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// SearchRadius is how far, in squares, a Search can reveal hidden enemies.
const SearchRadius = 6

// MoveCommand walks a token along the cheapest path to its destination.
type MoveCommand struct{ E sim.Move }

func (c MoveCommand) Event() sim.Event { return c.E }

func (c MoveCommand) path(s sim.State, ctx *Context) ([]battlefield.Position, ValidationResult) {
	if v := requireActor(s, ctx, c.E.SourceID, "move"); !v.OK {
		return nil, v
	}
	self, _ := s.Token(c.E.SourceID)
	if self.Position == c.E.Destination {
		return nil, Invalid("%s is already at %s", name(s, c.E.SourceID), c.E.Destination)
	}
	if !s.Map.InBounds(c.E.Destination) || s.Map.MoveCost(c.E.Destination) == battlefield.Impassable {
		return nil, Invalid("%s cannot be entered", c.E.Destination)
	}
	if o, ok := s.ObjectAt(c.E.Destination); ok {
		return nil, Invalid("%s is blocked by %s", c.E.Destination, o.ID)
	}
	blocked := s.Blocked(c.E.SourceID)
	if blocked[c.E.Destination] {
		return nil, Invalid("%s is occupied", c.E.Destination)
	}
	prof, ok := ctx.Profiles.Of(s, c.E.SourceID)
	if !ok {
		return nil, Invalid("no statistics for %q", c.E.SourceID)
	}
	p := pathfind.Find(s.Map, self.Position, c.E.Destination, pathfind.Obstacles(blocked))
	if p == nil {
		return nil, Invalid("no path to %s", c.E.Destination)
	}
	speed := prof.Speed - condition.SpeedPenalty(ctx.Conditions, s.Conditions(c.E.SourceID))
	if cost := pathfind.Cost(s.Map, p); cost > speed {
		return nil, Invalid("%s needs %d movement to reach %s but has %d", name(s, c.E.SourceID), cost, c.E.Destination, max(speed, 0))
	}
	return p, Valid()
}

func (c MoveCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	_, v := c.path(s, ctx)
	return v
}

func (c MoveCommand) Execute(s sim.State, ctx *Context) Result {
	p, v := c.path(s, ctx)
	if !v.OK {
		return rejected(s, c.E, v)
	}
	res := ok(s.Move(c.E.SourceID, c.E.Destination), logf(c.E.SourceID, "%s moves to %s", name(s, c.E.SourceID), c.E.Destination))
	res.Effects = []Effect{{Kind: "visual", Name: "move", TokenID: c.E.SourceID, At: p[len(p)-1]}}
	return res
}

// DodgeCommand takes the Dodge action.
type DodgeCommand struct{ E sim.Dodge }

func (c DodgeCommand) Event() sim.Event { return c.E }

func (c DodgeCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	return requireActor(s, ctx, c.E.SourceID, "dodge")
}

func (c DodgeCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	return ok(s,
		sim.ApplyCondition{SourceID: c.E.SourceID, TargetID: c.E.SourceID, ConditionID: condition.Dodging, Duration: 1, Stacks: 1},
		logf(c.E.SourceID, "%s takes a defensive stance", name(s, c.E.SourceID)),
	)
}

// HelpCommand grants an adjacent ally advantage on its next attack.
type HelpCommand struct{ E sim.Help }

func (c HelpCommand) Event() sim.Event { return c.E }

func (c HelpCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	if v := requireActor(s, ctx, c.E.SourceID, "help"); !v.OK {
		return v
	}
	if c.E.AllyID == c.E.SourceID || !s.Alive(c.E.AllyID) {
		return Invalid("ally %q not found", c.E.AllyID)
	}
	self, _ := s.Token(c.E.SourceID)
	ally, _ := s.Token(c.E.AllyID)
	if ally.Team != self.Team {
		return Invalid("%s is not an ally of %s", name(s, c.E.AllyID), name(s, c.E.SourceID))
	}
	if !self.Position.Adjacent(ally.Position) {
		return Invalid("%s is not adjacent to %s", name(s, c.E.AllyID), name(s, c.E.SourceID))
	}
	return Valid()
}

func (c HelpCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	return ok(s,
		sim.ApplyCondition{SourceID: c.E.SourceID, TargetID: c.E.AllyID, ConditionID: condition.Helped, Stacks: 1},
		logf(c.E.SourceID, "%s helps %s", name(s, c.E.SourceID), name(s, c.E.AllyID)),
	)
}

// HideCommand rolls stealth against every enemy's passive perception.
type HideCommand struct{ E sim.Hide }

func (c HideCommand) Event() sim.Event { return c.E }

func (c HideCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	if v := requireActor(s, ctx, c.E.SourceID, "hide"); !v.OK {
		return v
	}
	if _, ok := ctx.Profiles.Of(s, c.E.SourceID); !ok {
		return Invalid("no statistics for %q", c.E.SourceID)
	}
	if s.Conditions(c.E.SourceID).Has(condition.Hidden) {
		return Invalid("%s is already hidden", name(s, c.E.SourceID))
	}
	return Valid()
}

// Execute hides the source only if the check meets or beats the best passive
// perception among live enemies.
func (c HideCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	prof, _ := ctx.Profiles.Of(s, c.E.SourceID)
	total := ctx.Roller.Roll(dice.D20).Total() + prof.Stealth
	best := 0
	for _, e := range s.Enemies(c.E.SourceID) {
		if ep, found := ctx.Profiles.Of(s, e.ID); found {
			best = max(best, ep.PassivePerception())
		}
	}
	if total < best {
		return ok(s, logf(c.E.SourceID, "%s fails to hide (%d vs %d)", name(s, c.E.SourceID), total, best))
	}
	return ok(s,
		sim.ApplyCondition{SourceID: c.E.SourceID, TargetID: c.E.SourceID, ConditionID: condition.Hidden, Stacks: 1},
		logf(c.E.SourceID, "%s hides (%d vs %d)", name(s, c.E.SourceID), total, best),
	)
}

// SearchCommand tries to reveal hidden enemies within SearchRadius.
type SearchCommand struct{ E sim.Search }

func (c SearchCommand) Event() sim.Event { return c.E }

func (c SearchCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	if v := requireActor(s, ctx, c.E.SourceID, "search"); !v.OK {
		return v
	}
	if _, ok := ctx.Profiles.Of(s, c.E.SourceID); !ok {
		return Invalid("no statistics for %q", c.E.SourceID)
	}
	return Valid()
}

// Execute compares one perception roll with 10 plus each hidden enemy's stealth.
func (c SearchCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	prof, _ := ctx.Profiles.Of(s, c.E.SourceID)
	total := ctx.Roller.Roll(dice.D20).Total() + prof.Perception
	self, _ := s.Token(c.E.SourceID)

	next := s
	var found []string
	for _, e := range s.Enemies(c.E.SourceID) {
		conds := next.Conditions(e.ID)
		if !conds.Has(condition.Hidden) || self.Position.Chebyshev(e.Position) > SearchRadius {
			continue
		}
		ep, _ := ctx.Profiles.Of(s, e.ID)
		if total >= 10+ep.Stealth {
			next = next.WithConditions(e.ID, conds.Remove(condition.Hidden))
			found = append(found, name(s, e.ID))
		}
	}
	if len(found) == 0 {
		return ok(next, logf(c.E.SourceID, "%s searches and finds nothing (%d)", name(s, c.E.SourceID), total))
	}
	return ok(next, logf(c.E.SourceID, "%s spots %s (%d)", name(s, c.E.SourceID), strings.Join(found, ", "), total))
}

// ApplyConditionCommand adds a condition to a combatant.
type ApplyConditionCommand struct{ E sim.ApplyCondition }

func (c ApplyConditionCommand) Event() sim.Event { return c.E }

func (c ApplyConditionCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	if !s.Alive(c.E.TargetID) {
		return Invalid("target %q not found or defeated", c.E.TargetID)
	}
	if _, ok := ctx.Conditions.Get(c.E.ConditionID); !ok {
		return Invalid("unknown condition %q", c.E.ConditionID)
	}
	return Valid()
}

func (c ApplyConditionCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	def, _ := ctx.Conditions.Get(c.E.ConditionID)
	stacks := max(c.E.Stacks, 1)
	set, err := s.Conditions(c.E.TargetID).Apply(def, stacks, c.E.Duration)
	if err != nil {
		return rejected(s, c.E, Invalid("%v", err))
	}
	return ok(s.WithConditions(c.E.TargetID, set), logf(c.E.SourceID, "%s is %s", name(s, c.E.TargetID), def.Name))
}

// SetSquadTargetCommand records the target a squad leader chose for its squad.
type SetSquadTargetCommand struct{ E sim.SetSquadTarget }

func (c SetSquadTargetCommand) Event() sim.Event { return c.E }

func (c SetSquadTargetCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	leader, ok := s.NPC(c.E.SourceID)
	if !ok || leader.IsDead() {
		return Invalid("squad leader %q not found", c.E.SourceID)
	}
	if !leader.IsLeader() {
		return Invalid("%s does not lead a squad", name(s, c.E.SourceID))
	}
	if !s.Alive(c.E.TargetID) {
		return Invalid("target %q not found or defeated", c.E.TargetID)
	}
	return Valid()
}

func (c SetSquadTargetCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	leader, _ := s.NPC(c.E.SourceID)
	leader.SquadTargetID = c.E.TargetID
	return ok(s.WithNPC(leader), logf(c.E.SourceID, "%s marks %s for the squad", name(s, c.E.SourceID), name(s, c.E.TargetID)))
}

// SetStrategyCommand assigns a tactical strategy to an NPC.
type SetStrategyCommand struct{ E sim.SetStrategy }

func (c SetStrategyCommand) Event() sim.Event { return c.E }

func (c SetStrategyCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	if inst, ok := s.NPC(c.E.TargetID); !ok || inst.IsDead() {
		return Invalid("npc %q not found", c.E.TargetID)
	}
	if err := ctx.Assessor.Validate(&c.E.Strategy); err != nil {
		return Invalid("invalid strategy: %v", err)
	}
	return Valid()
}

func (c SetStrategyCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	inst, _ := s.NPC(c.E.TargetID)
	strategy := c.E.Strategy
	inst.Strategy = &strategy
	return ok(s.WithNPC(inst), logf(c.E.SourceID, "%s adopts strategy %q", name(s, c.E.TargetID), strategy.Objective))
}

// RemoveCombatantCommand takes a token off the battlefield.
type RemoveCombatantCommand struct{ E sim.RemoveCombatant }

func (c RemoveCombatantCommand) Event() sim.Event { return c.E }

func (c RemoveCombatantCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	if _, ok := s.Token(c.E.TargetID); !ok {
		return Invalid("token %q not found", c.E.TargetID)
	}
	return Valid()
}

func (c RemoveCombatantCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	msg := name(s, c.E.TargetID) + " leaves the battlefield"
	if c.E.Reason != "" {
		msg += " (" + c.E.Reason + ")"
	}
	return ok(s.WithoutToken(c.E.TargetID), logf(c.E.SourceID, "%s", msg))
}

// StartTurnCommand counts down the actor's timed conditions.
type StartTurnCommand struct{ E sim.StartTurn }

func (c StartTurnCommand) Event() sim.Event { return c.E }

func (c StartTurnCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	if !s.Alive(c.E.SourceID) {
		return Invalid("actor %q not found or defeated", c.E.SourceID)
	}
	return Valid()
}

func (c StartTurnCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	conds := s.Conditions(c.E.SourceID)
	if len(conds) == 0 {
		return ok(s)
	}
	set, expired := conds.Tick()
	res := ok(s.WithConditions(c.E.SourceID, set))
	for _, id := range expired {
		label := id
		if def, found := ctx.Conditions.Get(id); found {
			label = def.Name
		}
		res.Events = append(res.Events, logf(c.E.SourceID, "%s is no longer %s", name(s, c.E.SourceID), label))
	}
	return res
}

// EndTurnCommand closes a turn. It changes no state.
type EndTurnCommand struct{ E sim.EndTurn }

func (c EndTurnCommand) Event() sim.Event { return c.E }

func (c EndTurnCommand) CanExecute(s sim.State, ctx *Context) ValidationResult {
	if _, ok := s.Token(c.E.SourceID); !ok {
		return Invalid("actor %q not found", c.E.SourceID)
	}
	return Valid()
}

func (c EndTurnCommand) Execute(s sim.State, ctx *Context) Result {
	if v := c.CanExecute(s, ctx); !v.OK {
		return rejected(s, c.E, v)
	}
	return ok(s)
}
