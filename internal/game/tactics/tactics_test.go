package tactics_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/bt"
	"github.com/cory-johannsen/tactics/internal/game/condition"
	"github.com/cory-johannsen/tactics/internal/game/damage"
	"github.com/cory-johannsen/tactics/internal/game/npc"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/sim/simtest"
	"github.com/cory-johannsen/tactics/internal/game/tactics"
)

func brute() *npc.Template {
	return &npc.Template{
		ID: "brute", Name: "Brute", MaxHP: 20, AC: 12, Speed: 6,
		Abilities: []ability.Ability{
			{ID: "club", Name: "Club", Kind: ability.Melee, AttackBonus: 3, Damage: []damage.Part{{Dice: "1d4", Bonus: 1, Type: "bludgeoning"}}},
			{ID: "maul", Name: "Maul", Kind: ability.Melee, AttackBonus: 4, Damage: []damage.Part{{Dice: "2d6", Bonus: 3, Type: "bludgeoning"}}},
		},
	}
}

func mage() *npc.Template {
	return &npc.Template{
		ID: "mage", Name: "Mage", MaxHP: 12, AC: 11, Speed: 6,
		Abilities: []ability.Ability{
			{ID: "fireball", Name: "Fireball", Kind: ability.Spell, Range: 10, Radius: 1,
				Damage: []damage.Part{{Dice: "6d6", Type: "fire"}},
				Save:   &ability.Save{Ability: ability.SaveDex, DC: 13, HalfOnSuccess: true}},
			{ID: "dagger", Name: "Dagger", Kind: ability.Melee, AttackBonus: 2, Damage: []damage.Part{{Dice: "1d4", Type: "piercing"}}},
		},
	}
}

type world struct {
	state  sim.State
	static *simtest.Static
}

func newWorld() *world {
	return &world{
		state:  sim.New(battlefield.NewMap(12, 12)),
		static: simtest.NewStatic(brute(), mage()),
	}
}

func (w *world) npc(id, tmpl, team string, x, y int) *world {
	w.state = simtest.AddNPC(w.state, id, w.static.Monsters[tmpl], team, battlefield.Pos(x, y))
	return w
}

func (w *world) player(id string, x, y int) *world {
	w.state = simtest.AddPlayer(w.state, id, id, battlefield.Pos(x, y))
	return w
}

func (w *world) board(t *testing.T, actor string) *tactics.Blackboard {
	t.Helper()
	b, err := tactics.NewBlackboard(tactics.Snapshot{
		State:    w.state,
		ActorID:  actor,
		Profiles: sim.Profiles{Static: w.static, Stats: simtest.Players{}},
	})
	require.NoError(t, err)
	return b
}

func TestNewBlackboard_RejectsUnknownActor(t *testing.T) {
	w := newWorld().player("p1", 0, 0)
	_, err := tactics.NewBlackboard(tactics.Snapshot{State: w.state, ActorID: "ghost"})
	assert.Error(t, err)
	_, err = tactics.NewBlackboard(tactics.Snapshot{State: w.state, ActorID: "p1"})
	assert.Error(t, err, "players without statistics")
}

func TestNewBlackboard_PlayerUsesStatsLayerVitals(t *testing.T) {
	w := newWorld().player("p1", 0, 0).npc("b1", "brute", battlefield.TeamMonsters, 3, 0)
	b, err := tactics.NewBlackboard(tactics.Snapshot{
		State:    w.state,
		ActorID:  "p1",
		Profiles: sim.Profiles{Static: w.static, Stats: simtest.Players{"p1": {HP: 5, MaxHP: 20, Speed: 6}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, b.Instance.HPPercent())
	require.Len(t, b.Enemies, 1)
	assert.Equal(t, "b1", b.Enemies[0].ID)
}

func TestFindVisibleEnemies_SkipsHiddenAndSortsByDistance(t *testing.T) {
	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 0, 0).
		player("near", 2, 0).player("far", 5, 0).player("sneak", 1, 1)
	hidden, _ := condition.Builtins().Get(condition.Hidden)
	set, err := w.state.Conditions("sneak").Apply(hidden, 1, -1)
	require.NoError(t, err)
	w.state = w.state.WithConditions("sneak", set)

	b := w.board(t, "b1")
	require.Equal(t, bt.Success, tactics.FindVisibleEnemies(tactics.SightArgs{}).Tick(b))
	ids := make([]string, 0, len(b.Visible))
	for _, v := range b.Visible {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"near", "far"}, ids)
}

func TestFindVisibleEnemies_WallsBlockSight(t *testing.T) {
	m, err := battlefield.ParseMap([]string{
		".#..",
		".#..",
		".#..",
	})
	require.NoError(t, err)
	w := newWorld()
	w.state = sim.New(m)
	w.npc("b1", "brute", battlefield.TeamMonsters, 0, 1).player("p1", 3, 1)
	b := w.board(t, "b1")
	assert.Equal(t, bt.Failure, tactics.FindVisibleEnemies(tactics.SightArgs{}).Tick(b))
	assert.Equal(t, bt.Failure, tactics.HasVisibleEnemies().Tick(b))
}

func TestIsEnemyInMelee(t *testing.T) {
	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 3, 3).player("p1", 4, 4)
	assert.Equal(t, bt.Success, tactics.IsEnemyInMelee().Tick(w.board(t, "b1")))

	w = newWorld().npc("b1", "brute", battlefield.TeamMonsters, 3, 3).player("p1", 5, 3)
	assert.Equal(t, bt.Failure, tactics.IsEnemyInMelee().Tick(w.board(t, "b1")))
}

func TestMoveThenAttack_UsesStagedPosition(t *testing.T) {
	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 0, 0).player("p1", 4, 0)
	b := w.board(t, "b1")

	require.Equal(t, bt.Failure, tactics.AttackTarget().Tick(b), "no target yet")
	require.Equal(t, bt.Success, tactics.FindClosestEnemy().Tick(b))
	require.Equal(t, bt.Success, tactics.UseMostDamagingAbility(tactics.DamageArgs{}).Tick(b))
	assert.Equal(t, "maul", b.Ability.ID)
	require.Equal(t, bt.Failure, tactics.AttackTarget().Tick(b), "target out of reach before moving")

	require.Equal(t, bt.Success, tactics.MoveToTarget().Tick(b))
	require.NotNil(t, b.Result.Destination)
	assert.Equal(t, battlefield.Pos(3, 0), *b.Result.Destination)
	require.Equal(t, bt.Success, tactics.AttackTarget().Tick(b))
	assert.Equal(t, "maul", b.Result.AbilityID)
	assert.Equal(t, "p1", b.Result.TargetID)

	prof, ok := sim.Profiles{Static: w.static}.Of(w.state, "b1")
	require.True(t, ok)
	events, err := b.Result.Events("b1", prof)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, sim.Move{SourceID: "b1", Destination: battlefield.Pos(3, 0)}, events[0])
	assert.Equal(t, sim.Attack{SourceID: "b1", TargetID: "p1", AbilityID: "maul"}, events[1])
}

func TestMoveToTarget_AlreadyInReachDoesNotMove(t *testing.T) {
	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 2, 2).player("p1", 3, 2)
	b := w.board(t, "b1")
	require.Equal(t, bt.Success, tactics.FindClosestEnemy().Tick(b))
	require.Equal(t, bt.Success, tactics.MoveToTarget().Tick(b))
	assert.Nil(t, b.Result.Destination)
}

func TestUseMostDamagingAbility_InRangeOnly(t *testing.T) {
	w := newWorld().npc("m1", "mage", battlefield.TeamMonsters, 0, 0).player("p1", 5, 0)
	b := w.board(t, "m1")
	require.Equal(t, bt.Success, tactics.FindClosestEnemy().Tick(b))
	assert.Equal(t, bt.Failure, tactics.UseMostDamagingAbility(tactics.DamageArgs{InRange: true}).Tick(b))
	require.Equal(t, bt.Success, tactics.UseMostDamagingAbility(tactics.DamageArgs{}).Tick(b))
	assert.Equal(t, "dagger", b.Ability.ID, "area spells are never single-target picks")
}

func TestUseBestAreaOfEffect_AllyPenaltyVetoesPlacement(t *testing.T) {
	w := newWorld().npc("m1", "mage", battlefield.TeamMonsters, 0, 0).
		player("p1", 5, 5).player("p2", 6, 5).player("p3", 5, 6).
		npc("b1", "brute", battlefield.TeamMonsters, 6, 6)
	b := w.board(t, "m1")
	assert.Equal(t, bt.Failure, tactics.UseBestAreaOfEffect(tactics.AreaArgs{}).Tick(b),
		"three enemies and one ally score 1, which does not exceed the threshold")
	assert.Empty(t, b.Result.AbilityID)
}

func TestUseBestAreaOfEffect_PicksCluster(t *testing.T) {
	w := newWorld().npc("m1", "mage", battlefield.TeamMonsters, 0, 0).
		player("p1", 5, 5).player("p2", 6, 5).player("p3", 5, 6).player("lone", 0, 9)
	b := w.board(t, "m1")
	require.Equal(t, bt.Success, tactics.UseBestAreaOfEffect(tactics.AreaArgs{}).Tick(b))
	assert.Equal(t, "fireball", b.Result.AbilityID)
	require.NotNil(t, b.Result.Center)
	a, _ := ability.Find(w.static.Monsters["mage"].Abilities, "fireball")
	assert.Equal(t, 3.0, b.AreaScore(a, *b.Result.Center, 2))

	prof, _ := sim.Profiles{Static: w.static}.Of(w.state, "m1")
	events, err := b.Result.Events("m1", prof)
	require.NoError(t, err)
	require.Len(t, events, 1)
	cast, ok := events[0].(sim.CastSpell)
	require.True(t, ok)
	assert.Equal(t, *b.Result.Center, *cast.Center)
}

func TestIsHealthLow(t *testing.T) {
	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 0, 0).player("p1", 5, 5)
	node := tactics.IsHealthLow(tactics.HealthArgs{})
	assert.Equal(t, bt.Failure, node.Tick(w.board(t, "b1")))

	inst, _ := w.state.NPC("b1")
	inst.CurrentHP = 5
	w.state = w.state.WithNPC(inst)
	assert.Equal(t, bt.Success, node.Tick(w.board(t, "b1")))
}

func TestIsHealthLow_ExplicitZeroNeverFires(t *testing.T) {
	var def bt.Def
	require.NoError(t, yaml.Unmarshal([]byte("{type: is_health_low, params: {threshold: 0}}"), &def))
	node, err := tactics.NewRegistry(bt.Instrumentation{}).Build("stubborn", def)
	require.NoError(t, err)

	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 0, 0).player("p1", 5, 5)
	inst, _ := w.state.NPC("b1")
	inst.CurrentHP = 1
	w.state = w.state.WithNPC(inst)
	assert.Equal(t, bt.Failure, node.Tick(w.board(t, "b1")))
	assert.Equal(t, bt.Success, tactics.IsHealthLow(tactics.HealthArgs{}).Tick(w.board(t, "b1")))
}

func TestUseBestAreaOfEffect_ExplicitZeroParams(t *testing.T) {
	r := tactics.NewRegistry(bt.Instrumentation{})
	cluster := func() *world {
		return newWorld().npc("m1", "mage", battlefield.TeamMonsters, 0, 0).
			player("p1", 5, 5).player("p2", 6, 5).player("p3", 5, 6).
			npc("b1", "brute", battlefield.TeamMonsters, 6, 6)
	}
	for _, src := range []string{
		"{type: use_best_area_of_effect, params: {threshold: 0}}",
		"{type: use_best_area_of_effect, params: {penalty: 0}}",
	} {
		var def bt.Def
		require.NoError(t, yaml.Unmarshal([]byte(src), &def))
		node, err := r.Build("reckless", def)
		require.NoError(t, err, src)
		b := cluster().board(t, "m1")
		assert.Equal(t, bt.Success, node.Tick(b), src)
		assert.Equal(t, "fireball", b.Result.AbilityID, src)
	}
}

func TestFlee_IncreasesDistance(t *testing.T) {
	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 5, 5).player("p1", 4, 5).player("p2", 4, 4)
	b := w.board(t, "b1")
	require.Equal(t, bt.Success, tactics.Flee().Tick(b))
	require.NotNil(t, b.Result.Destination)
	centroid := battlefield.Centroid([]battlefield.Position{battlefield.Pos(4, 5), battlefield.Pos(4, 4)})
	assert.Greater(t, b.Result.Destination.Distance(centroid), battlefield.Pos(5, 5).Distance(centroid))
	assert.LessOrEqual(t, battlefield.Pos(5, 5).Chebyshev(*b.Result.Destination), 6)
}

func TestSquadTargeting(t *testing.T) {
	w := newWorld().npc("lead", "brute", battlefield.TeamMonsters, 0, 0).
		npc("grunt", "brute", battlefield.TeamMonsters, 0, 2).
		player("p1", 3, 0).player("p2", 0, 5)
	lead, _ := w.state.NPC("lead")
	lead.SquadID = "s1"
	w.state = w.state.WithNPC(lead)
	grunt, _ := w.state.NPC("grunt")
	grunt.SquadID, grunt.LeaderID = "s1", "lead"
	w.state = w.state.WithNPC(grunt)

	b := w.board(t, "lead")
	require.Equal(t, bt.Success, tactics.FindClosestEnemy().Tick(b))
	require.Equal(t, bt.Success, tactics.AssignSquadTarget().Tick(b))
	assert.Equal(t, "p1", b.Result.SquadTargetID)

	g := w.board(t, "grunt")
	assert.Equal(t, bt.Failure, tactics.AssignSquadTarget().Tick(g), "followers cannot mark")
	assert.Equal(t, bt.Failure, tactics.SetTargetToSquadTarget().Tick(g), "nothing marked yet")

	lead.SquadTargetID = "p1"
	w.state = w.state.WithNPC(lead)
	g = w.board(t, "grunt")
	require.Equal(t, bt.Success, tactics.SetTargetToSquadTarget().Tick(g))
	assert.Equal(t, "p1", g.Target.ID)
}

func TestPrioritizeLastAttacker(t *testing.T) {
	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 0, 0).player("p1", 1, 0).player("p2", 6, 6)
	b := w.board(t, "b1")
	assert.Equal(t, bt.Failure, tactics.PrioritizeLastAttacker().Tick(b))

	inst, _ := w.state.NPC("b1")
	inst.LastAttackerID = "p2"
	w.state = w.state.WithNPC(inst)
	b = w.board(t, "b1")
	require.Equal(t, bt.Success, tactics.PrioritizeLastAttacker().Tick(b))
	assert.Equal(t, "p2", b.Target.ID)
}

type fakeScripts struct {
	ret   lua.LValue
	err   error
	calls []string
}

func (f *fakeScripts) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	f.calls = append(f.calls, scope+":"+hook+":"+args[0].String()+":"+args[2].String())
	return f.ret, f.err
}

func TestScript(t *testing.T) {
	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 0, 0).player("p1", 1, 0)
	snap := tactics.Snapshot{State: w.state, ActorID: "b1", Profiles: sim.Profiles{Static: w.static}, ScriptScope: "crypt"}
	node := tactics.Script(tactics.ScriptArgs{Hook: "should_rage"})

	b, err := tactics.NewBlackboard(snap)
	require.NoError(t, err)
	assert.Equal(t, bt.Failure, node.Tick(b), "no script engine")

	scripts := &fakeScripts{ret: lua.LTrue}
	snap.Scripts = scripts
	b, err = tactics.NewBlackboard(snap)
	require.NoError(t, err)
	assert.Equal(t, bt.Success, node.Tick(b))
	assert.Equal(t, []string{"crypt:should_rage:b1:1"}, scripts.calls)

	scripts.ret, scripts.err = lua.LNil, errors.New("boom")
	assert.Equal(t, bt.Failure, node.Tick(b))
}

func TestRegistry_BuildsArchetypeTree(t *testing.T) {
	var def bt.Def
	require.NoError(t, yaml.Unmarshal([]byte(`
type: selector
children:
  - type: sequence
    children:
      - type: is_health_low
        params: {threshold: 25}
      - type: flee
  - type: sequence
    children:
      - type: find_visible_enemies
      - type: find_closest_enemy
      - type: use_most_damaging_ability
      - type: move_to_target
      - type: attack_target
`), &def))
	root, err := tactics.NewRegistry(bt.Instrumentation{}).Build("brute", def)
	require.NoError(t, err)

	w := newWorld().npc("b1", "brute", battlefield.TeamMonsters, 0, 0).player("p1", 4, 0)
	b := w.board(t, "b1")
	require.Equal(t, bt.Success, root.Tick(b))
	assert.True(t, b.Result.Actionable())
	assert.Equal(t, "maul", b.Result.AbilityID)
	assert.Equal(t, "p1", b.Result.TargetID)
}

func TestRegistry_RejectsBadParams(t *testing.T) {
	r := tactics.NewRegistry(bt.Instrumentation{})
	for _, src := range []string{
		"{type: is_health_low, params: {threshold: 150}}",
		"{type: use_best_area_of_effect, params: {penalty: -1}}",
		"{type: script}",
		"{type: flee, params: {speed: 3}}",
	} {
		var def bt.Def
		require.NoError(t, yaml.Unmarshal([]byte(src), &def))
		_, err := r.Build("bad", def)
		assert.Error(t, err, src)
	}
}

func TestProperty_AreaPlacementAlwaysBeatsThreshold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := newWorld().npc("m1", "mage", battlefield.TeamMonsters, 0, 0)
		taken := map[battlefield.Position]bool{battlefield.Pos(0, 0): true}
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		for i := 0; i < n; i++ {
			p := battlefield.Pos(rapid.IntRange(0, 11).Draw(rt, "x"), rapid.IntRange(0, 11).Draw(rt, "y"))
			if taken[p] {
				continue
			}
			taken[p] = true
			id := "t" + string(rune('a'+i))
			if rapid.Bool().Draw(rt, "ally") {
				w.npc(id, "brute", battlefield.TeamMonsters, p.X, p.Y)
			} else {
				w.player(id, p.X, p.Y)
			}
		}
		b, err := tactics.NewBlackboard(tactics.Snapshot{State: w.state, ActorID: "m1", Profiles: sim.Profiles{Static: w.static}})
		if err != nil {
			rt.Fatalf("blackboard: %v", err)
		}
		if tactics.UseBestAreaOfEffect(tactics.AreaArgs{}).Tick(b) != bt.Success {
			return
		}
		if b.Result.Center == nil {
			rt.Fatalf("success without a centre")
		}
		if s := b.AreaScore(b.Ability, *b.Result.Center, 2); s <= 1 {
			rt.Fatalf("committed placement scores %v", s)
		}
	})
}
