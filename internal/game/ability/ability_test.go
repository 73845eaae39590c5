package ability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/damage"
)

func TestMaxDistance(t *testing.T) {
	assert.Equal(t, 1, (&ability.Ability{Kind: ability.Melee}).MaxDistance())
	assert.Equal(t, 2, (&ability.Ability{Kind: ability.Melee, Reach: 2}).MaxDistance())
	assert.Equal(t, 16, (&ability.Ability{Kind: ability.Ranged, Range: 16}).MaxDistance())
	assert.Equal(t, 0, (&ability.Ability{Kind: ability.Feature, SelfOnly: true}).MaxDistance())
}

func TestInRange_DiagonalCountsAsOne(t *testing.T) {
	a := &ability.Ability{Kind: ability.Melee}
	assert.True(t, a.InRange(battlefield.Pos(0, 0), battlefield.Pos(1, 1)))
	assert.False(t, a.InRange(battlefield.Pos(0, 0), battlefield.Pos(2, 1)))
}

func TestAverageDamage_Multiattack(t *testing.T) {
	list := []ability.Ability{
		{ID: "bite", Kind: ability.Melee, Damage: []damage.Part{{Dice: "1d8", Bonus: 2, Type: "piercing"}}},
		{ID: "claw", Kind: ability.Melee, Damage: []damage.Part{{Dice: "1d6", Bonus: 2, Type: "slashing"}}},
		{ID: "multi", Kind: ability.Feature, Multiattack: []string{"bite", "claw", "claw"}},
	}
	lookup := func(id string) (*ability.Ability, bool) { return ability.Find(list, id) }
	multi, ok := ability.Find(list, "multi")
	require.True(t, ok)
	assert.InDelta(t, 6.5+5.5+5.5, multi.AverageDamage(lookup), 1e-9)
}

func TestValidate(t *testing.T) {
	good := ability.Ability{ID: "bow", Kind: ability.Ranged, Range: 12, Damage: []damage.Part{{Dice: "1d8", Type: "piercing"}}}
	assert.NoError(t, good.Validate())

	cases := map[string]ability.Ability{
		"no id":         {Kind: ability.Melee, Damage: good.Damage},
		"bad kind":      {ID: "x", Kind: "psychic"},
		"no damage":     {ID: "x", Kind: ability.Melee},
		"bad heal":      {ID: "x", Kind: ability.Spell, Heal: "2dQ"},
		"zero dc":       {ID: "x", Kind: ability.Spell, Save: &ability.Save{Ability: ability.SaveDex}},
		"multi on atk":  {ID: "x", Kind: ability.Melee, Damage: good.Damage, Multiattack: []string{"a"}},
		"empty inflict": {ID: "x", Kind: ability.Spell, Inflict: &ability.Inflict{}},
	}
	for name, a := range cases {
		assert.Error(t, a.Validate(), name)
	}
}
