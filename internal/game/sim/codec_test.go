package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/damage"
	"github.com/cory-johannsen/tactics/internal/game/sim"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

func TestEventCodec_PreservesVariant(t *testing.T) {
	center := battlefield.Pos(4, 2)
	events := []sim.Event{
		sim.DealDamage{SourceID: "a", TargetID: "b", Parts: []damage.Part{{Dice: "2d6", Bonus: 4, Type: "slashing"}}, Crit: true},
		sim.CastSpell{SourceID: "a", AbilityID: "fireball", Center: &center},
		sim.SetStrategy{SourceID: "dm", TargetID: "boss", Strategy: threat.Strategy{Objective: "hold", Priorities: []threat.Priority{{Tier: threat.Avoid, TargetType: "guardian", Weight: 0.5}}}},
		sim.Log{SourceID: "system", Message: "hello"},
	}
	for _, e := range events {
		data, err := sim.EncodeEvent(e)
		require.NoError(t, err)
		back, err := sim.DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, e, back)
	}
}

func TestDecodeEvent_UnknownKind(t *testing.T) {
	_, err := sim.DecodeEvent([]byte(`{"kind":"teleport","payload":{}}`))
	assert.Error(t, err)
}
