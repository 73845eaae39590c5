package command_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/damage"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/dice/dicetest"
	"github.com/cory-johannsen/tactics/internal/game/npc"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/sim/simtest"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

func dummy(hp, ac int) *npc.Template {
	return &npc.Template{ID: "dummy", Name: "Dummy", MaxHP: hp, AC: ac, Speed: 6}
}

func goblin() *npc.Template {
	return &npc.Template{
		ID: "goblin", Name: "Goblin", MaxHP: 7, AC: 13, Speed: 6,
		Saves: map[string]int{"dex": 2},
		Abilities: []ability.Ability{
			{ID: "scimitar", Name: "Scimitar", Kind: ability.Melee, AttackBonus: 4, Damage: []damage.Part{{Dice: "1d6", Bonus: 2, Type: "slashing"}}},
			{ID: "shortbow", Name: "Shortbow", Kind: ability.Ranged, AttackBonus: 4, Range: 16, Damage: []damage.Part{{Dice: "1d6", Bonus: 2, Type: "piercing"}}},
			{ID: "flurry", Name: "Flurry", Kind: ability.Feature, Multiattack: []string{"scimitar", "scimitar"}},
		},
	}
}

func hero() sim.Profile {
	return sim.Profile{
		AC: 12, Speed: 6, Stealth: 3, Perception: 2,
		Saves: map[string]int{"dex": 1},
		Abilities: []ability.Ability{
			{ID: "shortsword", Name: "Shortsword", Kind: ability.Melee, AttackBonus: 5, Damage: []damage.Part{{Dice: "1d6", Bonus: 3, Type: "piercing"}}},
			{ID: "greataxe", Name: "Greataxe", Kind: ability.Melee, AttackBonus: 5, Damage: []damage.Part{{Dice: "2d6", Bonus: 4, Type: "slashing"}}},
			{ID: "wild-swing", Name: "Wild Swing", Kind: ability.Melee, AttackBonus: 10, Damage: []damage.Part{{Dice: "1d6", Type: "slashing"}}},
			{ID: "burst", Name: "Fire Burst", Kind: ability.Spell, Range: 10, Radius: 1,
				Damage: []damage.Part{{Dice: "2d6", Type: "fire"}},
				Save:   &ability.Save{Ability: ability.SaveDex, DC: 13, HalfOnSuccess: true}},
			{ID: "cure", Name: "Cure Wounds", Kind: ability.Spell, Range: 1, Heal: "1d8+3"},
		},
	}
}

type fixture struct {
	state  sim.State
	static *simtest.Static
	proc   *command.Processor
	ctx    *command.Context
}

func newFixture(t *testing.T, src dice.Source, targetHP, targetAC int) *fixture {
	return newFixtureWith(zaptest.NewLogger(t), src, targetHP, targetAC)
}

func newFixtureWith(logger *zap.Logger, src dice.Source, targetHP, targetAC int) *fixture {
	static := simtest.NewStatic(dummy(targetHP, targetAC), goblin())
	s := sim.New(battlefield.NewMap(10, 10))
	s = simtest.AddPlayer(s, "hero", "Hero", battlefield.Pos(1, 1))
	s = simtest.AddNPC(s, "target", static.Monsters["dummy"], battlefield.TeamMonsters, battlefield.Pos(2, 1))
	s = simtest.AddNPC(s, "gob", static.Monsters["goblin"], battlefield.TeamMonsters, battlefield.Pos(1, 2))
	profiles := sim.Profiles{Static: static, Stats: simtest.Players{"hero": hero()}}
	ctx := command.NewContext(dice.NewLoggedRoller(src, logger), profiles, nil, logger)
	return &fixture{state: s, static: static, ctx: ctx, proc: command.NewProcessor(ctx, static, command.ProcessorConfig{})}
}

func (f *fixture) hp(t *testing.T, id string) int {
	inst, ok := f.state.NPC(id)
	require.True(t, ok)
	return inst.CurrentHP
}

func kinds(events []sim.Event) []sim.Kind {
	out := make([]sim.Kind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind())
	}
	return out
}

func count[T sim.Event](events []sim.Event) int {
	n := 0
	for _, e := range events {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func TestProcess_BasicHit(t *testing.T) {
	f := newFixture(t, dicetest.NewFaces(15, 4), 10, 15)
	out := f.proc.Process([]sim.Event{sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "shortsword"}}, f.state)
	require.Empty(t, out.Errors)
	assert.Equal(t, []sim.Kind{sim.KindAttack, sim.KindLog, sim.KindDealDamage}, kinds(out.Events))
	f.state = out.FinalState
	assert.Equal(t, 3, f.hp(t, "target"))
	require.NotNil(t, out.FinalState.LastDamage)
	assert.Equal(t, 7, out.FinalState.LastDamage.Amount)
	assert.Equal(t, "piercing", out.FinalState.LastDamage.Type)
	inst, _ := out.FinalState.NPC("target")
	assert.Equal(t, "hero", inst.LastAttackerID)
}

func TestProcess_NaturalOneAlwaysMisses(t *testing.T) {
	f := newFixture(t, dicetest.NewFaces(1), 10, 5)
	out := f.proc.Process([]sim.Event{sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "wild-swing"}}, f.state)
	require.Empty(t, out.Errors)
	assert.Zero(t, count[sim.DealDamage](out.Events))
	assert.Equal(t, 1, count[sim.Log](out.Events))
	f.state = out.FinalState
	assert.Equal(t, 10, f.hp(t, "target"))
}

func TestProcess_NaturalTwentyCrits(t *testing.T) {
	f := newFixture(t, dicetest.NewFaces(20, 3), 30, 25)
	out := f.proc.Process([]sim.Event{sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "greataxe"}}, f.state)
	require.Empty(t, out.Errors)
	require.Equal(t, 1, count[sim.DealDamage](out.Events))
	for _, e := range out.Events {
		if dd, ok := e.(sim.DealDamage); ok {
			assert.True(t, dd.Crit)
		}
	}
	f.state = out.FinalState
	assert.Equal(t, 30-16, f.hp(t, "target"))
	assert.True(t, out.FinalState.LastDamage.Crit)
}

func TestProcess_DefeatLoggedOnce(t *testing.T) {
	f := newFixture(t, dicetest.NewFaces(15, 6), 5, 10)
	out := f.proc.Process([]sim.Event{
		sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "shortsword"},
		sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "shortsword"},
	}, f.state)
	f.state = out.FinalState
	assert.Zero(t, f.hp(t, "target"))
	assert.False(t, out.FinalState.Alive("target"))
	defeats := 0
	for _, e := range out.Events {
		if l, ok := e.(sim.Log); ok && l.Message == "Dummy is defeated" {
			defeats++
		}
	}
	assert.Equal(t, 1, defeats)
	require.Len(t, out.Errors, 1, "second attack targets a defeated combatant")
}

func TestProcess_ValidationFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	before, err := f.state.Encode()
	require.NoError(t, err)

	out := f.proc.Process([]sim.Event{sim.Attack{SourceID: "hero", TargetID: "nobody", AbilityID: "shortsword"}}, f.state)
	require.Len(t, out.Errors, 1)
	var verr *command.ValidationError
	require.ErrorAs(t, out.Errors[0], &verr)
	assert.Equal(t, sim.KindAttack, verr.Kind)
	assert.Contains(t, verr.Reason, "attacker or target not found")
	assert.Equal(t, []sim.Kind{sim.KindAttack, sim.KindLog}, kinds(out.Events))

	after, err := out.FinalState.Encode()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestProcess_FIFOAcrossSources(t *testing.T) {
	f := newFixture(t, dicetest.NewFaces(15, 2), 20, 10)
	out := f.proc.Process([]sim.Event{
		sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "shortsword"},
		sim.Dodge{SourceID: "gob"},
	}, f.state)
	require.Empty(t, out.Errors)
	assert.Equal(t, []sim.Kind{
		sim.KindAttack,
		sim.KindDodge,
		sim.KindLog,
		sim.KindDealDamage,
		sim.KindApplyCondition,
		sim.KindLog,
		sim.KindLog,
	}, kinds(out.Events))
	assert.True(t, out.FinalState.Conditions("gob").Has(condition.Dodging))
}

func TestProcess_PlayerDamageIsDeferred(t *testing.T) {
	f := newFixture(t, dicetest.NewFaces(15, 5), 10, 10)
	before, err := f.state.Encode()
	require.NoError(t, err)

	out := f.proc.Process([]sim.Event{sim.Attack{SourceID: "gob", TargetID: "hero", AbilityID: "scimitar"}}, f.state)
	require.Empty(t, out.Errors)
	require.Len(t, out.Deferred, 1)
	assert.Equal(t, command.Deferred{TokenID: "hero", CombatantID: "hero", SourceID: "gob", Damage: 7, Type: "slashing"}, out.Deferred[0])

	after, err := out.FinalState.Encode()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDealDamage_PlayerTargetReturnsNoEvents(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(4), 10, 10)
	cmd := command.DealDamageCommand{E: sim.DealDamage{SourceID: "gob", TargetID: "hero", Parts: []damage.Part{{Dice: "1d6", Type: "fire"}}}}
	r := cmd.Execute(f.state, f.ctx)
	assert.True(t, r.Success)
	assert.Empty(t, r.Events)
	assert.Equal(t, f.state.Tokens, r.State.Tokens)
	require.Len(t, r.Deferred, 1)
	assert.Equal(t, 4, r.Deferred[0].Damage)
}

func TestDealDamage_AppliesDefenses(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(6), 20, 10)
	f.static.Monsters["dummy"].Defenses = damage.Defenses{Resistances: []string{"fire"}}
	cmd := command.DealDamageCommand{E: sim.DealDamage{SourceID: "hero", TargetID: "target", Parts: []damage.Part{{Dice: "1d6", Type: "fire"}}}}
	r := cmd.Execute(f.state, f.ctx)
	require.True(t, r.Success)
	f.state = r.State
	assert.Equal(t, 17, f.hp(t, "target"))
}

func TestCanExecute_DoesNotMutate(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	before, err := f.state.Encode()
	require.NoError(t, err)
	v := command.AttackCommand{E: sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "shortsword"}}.CanExecute(f.state, f.ctx)
	assert.True(t, v.OK)
	after, err := f.state.Encode()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAttack_OutOfRange(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	s := f.state.Move("target", battlefield.Pos(8, 8))
	v := command.AttackCommand{E: sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "shortsword"}}.CanExecute(s, f.ctx)
	assert.False(t, v.OK)
	assert.Contains(t, v.Reason, "out of range")
}

func TestAttack_HelpedGrantsAdvantageAndIsConsumed(t *testing.T) {
	// Advantage rolls two d20s; faces 2 and 18 keep 18.
	f := newFixture(t, dicetest.NewFaces(2, 18, 1), 10, 15)
	s, err := f.state.Conditions("hero").Apply(mustDef(t, f.ctx, condition.Helped), 1, 0)
	require.NoError(t, err)
	f.state = f.state.WithConditions("hero", s)

	out := f.proc.Process([]sim.Event{sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "shortsword"}}, f.state)
	require.Empty(t, out.Errors)
	assert.Equal(t, 1, count[sim.DealDamage](out.Events))
	assert.False(t, out.FinalState.Conditions("hero").Has(condition.Helped))
}

func mustDef(t *testing.T, ctx *command.Context, id string) *condition.Def {
	def, ok := ctx.Conditions.Get(id)
	require.True(t, ok)
	return def
}

func TestCommandsFor_ExpandsNPCMultiattack(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	cmds := command.CommandsFor(sim.UseFeature{SourceID: "gob", AbilityID: "flurry", TargetID: "hero"}, f.state, f.static)
	require.Len(t, cmds, 2)
	for _, c := range cmds {
		assert.Equal(t, sim.Attack{SourceID: "gob", TargetID: "hero", AbilityID: "scimitar"}, c.Event())
	}
}

func TestCommandsFor_LogHasNoCommand(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	assert.Empty(t, command.CommandsFor(sim.Log{SourceID: "x", Message: "hi"}, f.state, f.static))
}

func TestCastSpell_SaveSplitsNPCsAndPlayers(t *testing.T) {
	// gob saves with 1+2 = 3 (fail), then takes 2d6 at 1s; target is outside the burst.
	f := newFixture(t, dicetest.Fixed(1), 30, 10)
	f.state = f.state.Move("target", battlefield.Pos(6, 6))
	center := battlefield.Pos(1, 1)
	out := f.proc.Process([]sim.Event{sim.CastSpell{SourceID: "hero", AbilityID: "burst", Center: &center}}, f.state)
	require.Empty(t, out.Errors)
	require.Len(t, out.Prompts, 1)
	assert.Equal(t, "hero", out.Prompts[0].TargetID)
	assert.Equal(t, 13, out.Prompts[0].DC)
	assert.Equal(t, ability.SaveDex, out.Prompts[0].SaveStat)
	f.state = out.FinalState
	assert.Equal(t, 5, f.hp(t, "gob"))
	assert.Equal(t, 30, f.hp(t, "target"))

	// The player answers the prompt with a passing total and takes half.
	out = f.proc.Process([]sim.Event{sim.ResolveSave{SourceID: "hero", CasterID: "hero", AbilityID: "burst", Total: 15}}, f.state)
	require.Empty(t, out.Errors)
	require.Len(t, out.Deferred, 1)
	assert.Equal(t, 1, out.Deferred[0].Damage)
}

func TestHeal_CapsNPCAtMax(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(8), 20, 10)
	inst, _ := f.state.NPC("target")
	inst.CurrentHP = 15
	f.state = f.state.WithNPC(inst)
	r := command.HealCommand{E: sim.Heal{SourceID: "hero", TargetID: "target", Dice: "1d8+3"}}.Execute(f.state, f.ctx)
	require.True(t, r.Success)
	f.state = r.State
	assert.Equal(t, 20, f.hp(t, "target"))
}

func TestMove_RespectsSpeedAndOccupancy(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	far := command.MoveCommand{E: sim.Move{SourceID: "hero", Destination: battlefield.Pos(9, 9)}}
	assert.False(t, far.CanExecute(f.state, f.ctx).OK)

	blocked := command.MoveCommand{E: sim.Move{SourceID: "hero", Destination: battlefield.Pos(2, 1)}}
	v := blocked.CanExecute(f.state, f.ctx)
	assert.False(t, v.OK)
	assert.Contains(t, v.Reason, "occupied")

	r := command.MoveCommand{E: sim.Move{SourceID: "hero", Destination: battlefield.Pos(4, 0)}}.Execute(f.state, f.ctx)
	require.True(t, r.Success)
	tok, _ := r.State.Token("hero")
	assert.Equal(t, battlefield.Pos(4, 0), tok.Position)
}

func TestMove_ObjectsBlockDestinationAndPath(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	pillar := &battlefield.Blueprint{ID: "pillar", Name: "Pillar", Tags: []string{battlefield.TagCover}}
	f.state.Objects = []battlefield.Object{battlefield.Place("pillar-1", pillar, battlefield.Pos(3, 1))}

	out := f.proc.Process([]sim.Event{sim.Move{SourceID: "hero", Destination: battlefield.Pos(3, 1)}}, f.state)
	require.Len(t, out.Errors, 1)
	assert.ErrorContains(t, out.Errors[0], "blocked by pillar-1")
	tok, _ := out.FinalState.Token("hero")
	assert.Equal(t, battlefield.Pos(1, 1), tok.Position)

	around := command.MoveCommand{E: sim.Move{SourceID: "hero", Destination: battlefield.Pos(1, 4)}}
	require.True(t, around.CanExecute(f.state, f.ctx).OK)

	f.state.Objects = nil
	for x := range 5 {
		f.state.Objects = append(f.state.Objects, battlefield.Place("wall-"+strconv.Itoa(x), pillar, battlefield.Pos(x, 3)))
	}
	v := around.CanExecute(f.state, f.ctx)
	assert.False(t, v.OK, "the shortest route crosses the row of objects")
	assert.Contains(t, v.Reason, "movement")
}

func TestStartTurn_ExpiresDodge(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	out := f.proc.Process([]sim.Event{sim.Dodge{SourceID: "gob"}}, f.state)
	require.True(t, out.FinalState.Conditions("gob").Has(condition.Dodging))
	out = f.proc.Process([]sim.Event{sim.StartTurn{SourceID: "gob", Round: 2}}, out.FinalState)
	assert.False(t, out.FinalState.Conditions("gob").Has(condition.Dodging))
	assert.Equal(t, 1, count[sim.Log](out.Events))
}

func TestSetSquadTarget_RequiresLeader(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	cmd := command.SetSquadTargetCommand{E: sim.SetSquadTarget{SourceID: "gob", TargetID: "hero"}}
	assert.False(t, cmd.CanExecute(f.state, f.ctx).OK)

	inst, _ := f.state.NPC("gob")
	inst.SquadID = "raiders"
	f.state = f.state.WithNPC(inst)
	r := cmd.Execute(f.state, f.ctx)
	require.True(t, r.Success)
	leader, _ := r.State.NPC("gob")
	assert.Equal(t, "hero", leader.SquadTargetID)
}

func TestSetStrategy_RejectsBadExpression(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	bad := threat.Strategy{Objective: "x", Priorities: []threat.Priority{{Tier: threat.Primary, TargetType: "expr:hp >", Weight: 2}}}
	r := command.SetStrategyCommand{E: sim.SetStrategy{SourceID: "dm", TargetID: "gob", Strategy: bad}}.Execute(f.state, f.ctx)
	assert.False(t, r.Success)
	require.Len(t, r.Errors, 1)
}

func TestProcess_CascadeLimit(t *testing.T) {
	f := newFixture(t, dicetest.Fixed(10), 10, 10)
	proc := command.NewProcessor(f.ctx, f.static, command.ProcessorConfig{MaxEvents: 2})
	out := proc.Process([]sim.Event{sim.Dodge{SourceID: "gob"}, sim.Dodge{SourceID: "target"}, sim.EndTurn{SourceID: "gob"}}, f.state)
	require.NotEmpty(t, out.Errors)
	assert.ErrorIs(t, out.Errors[len(out.Errors)-1], command.ErrCascadeLimit)
	assert.Len(t, out.Events, 2)
}

func TestProcess_OnAppliedObservesEveryCommand(t *testing.T) {
	f := newFixture(t, dicetest.NewFaces(15, 4), 10, 15)
	var seen []sim.Kind
	proc := command.NewProcessor(f.ctx, f.static, command.ProcessorConfig{
		OnApplied: func(e sim.Event, _ command.Result) { seen = append(seen, e.Kind()) },
	})
	proc.Process([]sim.Event{sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "shortsword"}}, f.state)
	assert.Equal(t, []sim.Kind{sim.KindAttack, sim.KindDealDamage}, seen)
}

func TestProperty_ProcessIsDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		events := []sim.Event{
			sim.Attack{SourceID: "hero", TargetID: "target", AbilityID: "greataxe"},
			sim.Attack{SourceID: "gob", TargetID: "hero", AbilityID: "scimitar"},
			sim.Hide{SourceID: "hero"},
			sim.UseFeature{SourceID: "gob", AbilityID: "flurry", TargetID: "hero"},
		}
		run := func() []byte {
			f := newFixtureWith(zap.NewNop(), dice.NewSeededSource(seed), 12, 12)
			out := f.proc.Process(events, f.state)
			b, err := out.FinalState.Encode()
			if err != nil {
				rt.Fatalf("encode: %v", err)
			}
			return b
		}
		assert.Equal(rt, run(), run())
	})
}

func TestProperty_HitPointsNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		hp := rapid.IntRange(1, 100).Draw(rt, "hp")
		dmg := rapid.IntRange(0, 200).Draw(rt, "damage")
		f := newFixtureWith(zap.NewNop(), dicetest.Fixed(1), hp, 10)
		r := command.DealDamageCommand{E: sim.DealDamage{
			SourceID: "hero",
			TargetID: "target",
			Parts:    []damage.Part{{Dice: strconv.Itoa(dmg), Type: "force"}},
		}}.Execute(f.state, f.ctx)
		if !r.Success {
			rt.Fatalf("damage rejected: %v", r.Errors)
		}
		inst, _ := r.State.NPC("target")
		if inst.CurrentHP != max(0, hp-dmg) {
			rt.Fatalf("hp = %d, want max(0, %d-%d)", inst.CurrentHP, hp, dmg)
		}
	})
}
