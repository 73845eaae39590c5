package scenario_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactics/internal/game/command"
	"github.com/cory-johannsen/tactics/internal/game/scenario"
)

func TestRoster_PlayerProfile(t *testing.T) {
	r := scenario.NewRoster()
	r.Add(scenario.PlayerSpec{ID: "p1", HP: 12, MaxHP: 20, AC: 15, DexMod: 2, Archetype: "brute", Saves: map[string]int{"dex": 3}})

	prof, ok := r.Player("p1")
	require.True(t, ok)
	assert.Equal(t, 12, prof.HP)
	assert.Equal(t, 20, prof.MaxHP)
	assert.Equal(t, 15, prof.AC)
	assert.Equal(t, "brute", prof.Archetype)
	assert.Equal(t, 3, prof.Saves["dex"])

	_, ok = r.Player("nobody")
	assert.False(t, ok)
	assert.Equal(t, []string{"p1"}, r.IDs())
}

func TestRoster_ApplyDamageAndHealing(t *testing.T) {
	r := scenario.NewRoster()
	r.Add(scenario.PlayerSpec{ID: "p1", MaxHP: 10, AC: 10})
	ctx := context.Background()

	down, err := r.Apply(ctx, command.Deferred{CombatantID: "p1", Damage: 4})
	require.NoError(t, err)
	assert.False(t, down)
	hp, _, _ := r.HP("p1")
	assert.Equal(t, 6, hp)

	_, err = r.Apply(ctx, command.Deferred{CombatantID: "p1", Healing: 50})
	require.NoError(t, err)
	hp, _, _ = r.HP("p1")
	assert.Equal(t, 10, hp, "healing stops at max")

	down, err = r.Apply(ctx, command.Deferred{CombatantID: "p1", Damage: 25})
	require.NoError(t, err)
	assert.True(t, down)
	hp, _, _ = r.HP("p1")
	assert.Zero(t, hp)
}

func TestRoster_ApplyUnknownPlayer(t *testing.T) {
	r := scenario.NewRoster()
	_, err := r.Apply(context.Background(), command.Deferred{CombatantID: "ghost", Damage: 1})
	require.ErrorIs(t, err, scenario.ErrUnknownPlayer)
}

func TestRoster_ConcurrentApply(t *testing.T) {
	r := scenario.NewRoster()
	r.Add(scenario.PlayerSpec{ID: "p1", MaxHP: 1000, AC: 10})
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_, _ = r.Apply(context.Background(), command.Deferred{CombatantID: "p1", Damage: 2})
			_, _ = r.Player("p1")
		})
	}
	wg.Wait()
	hp, _, _ := r.HP("p1")
	assert.Equal(t, 900, hp)
}

func TestProperty_RosterHPStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxHP := rapid.IntRange(1, 100).Draw(t, "max")
		r := scenario.NewRoster()
		r.Add(scenario.PlayerSpec{ID: "p", MaxHP: maxHP, AC: 10})
		for i, n := 0, rapid.IntRange(1, 30).Draw(t, "n"); i < n; i++ {
			d := command.Deferred{
				CombatantID: "p",
				Damage:      rapid.IntRange(0, 40).Draw(t, "damage"),
				Healing:     rapid.IntRange(0, 40).Draw(t, "healing"),
			}
			down, err := r.Apply(context.Background(), d)
			if err != nil {
				t.Fatal(err)
			}
			hp, _, _ := r.HP("p")
			if hp < 0 || hp > maxHP {
				t.Fatalf("hp %d outside [0, %d]", hp, maxHP)
			}
			if down != (hp == 0) {
				t.Fatalf("down=%v with hp %d", down, hp)
			}
		}
	})
}
