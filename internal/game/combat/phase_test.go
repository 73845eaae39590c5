package combat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactics/internal/game/combat"
	"github.com/cory-johannsen/tactics/internal/game/dice"
	"github.com/cory-johannsen/tactics/internal/game/dice/dicetest"
)

func TestMachine_LogsEveryTransition(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := combat.NewMachine(func() time.Time { return at })
	require.Equal(t, combat.Idle, m.Phase())

	for _, p := range []combat.Phase{combat.EncounterLoading, combat.InitiativeRolling, combat.RoundStart, combat.TurnStart, combat.AiProcessing} {
		require.NoError(t, m.To(p, "step"))
	}
	log := m.Log()
	require.Len(t, log, 5)
	assert.Equal(t, combat.Idle, log[0].From)
	assert.Equal(t, combat.AiProcessing, log[4].To)
	assert.Equal(t, at, log[4].At)

	log[0].Reason = "mutated"
	assert.Equal(t, "step", m.Log()[0].Reason)
}

func TestMachine_RejectsIllegalTransitions(t *testing.T) {
	m := combat.NewMachine(nil)
	err := m.To(combat.TurnStart, "skip ahead")
	require.ErrorIs(t, err, combat.ErrIllegalTransition)
	assert.Equal(t, combat.Idle, m.Phase())
	assert.Empty(t, m.Log())

	require.NoError(t, m.To(combat.CombatEnded, "abort"))
	assert.True(t, m.Phase().Terminal())
	assert.False(t, m.Can(combat.Idle))
	assert.ErrorIs(t, m.To(combat.CombatEnded, "again"), combat.ErrIllegalTransition)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "awaiting_player_action", combat.AwaitingPlayerAction.String())
	assert.Equal(t, "phase(42)", combat.Phase(42).String())
}

func TestProperty_CombatEndedReachableFromEveryLivePhase(t *testing.T) {
	all := []combat.Phase{
		combat.Idle, combat.EncounterLoading, combat.InitiativeRolling, combat.RoundStart, combat.TurnStart,
		combat.AwaitingPlayerAction, combat.ProcessingPlayerAction, combat.AiProcessing, combat.TurnEnd, combat.CombatEnded,
	}
	rapid.Check(t, func(rt *rapid.T) {
		m := combat.NewMachine(nil)
		steps := rapid.IntRange(0, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			to := rapid.SampledFrom(all[:len(all)-1]).Draw(rt, "to")
			before := len(m.Log())
			if err := m.To(to, ""); err != nil {
				if len(m.Log()) != before {
					rt.Fatalf("failed transition changed the log")
				}
			}
		}
		if !m.Can(combat.CombatEnded) {
			rt.Fatalf("cannot end from %s", m.Phase())
		}
		for i, tr := range m.Log() {
			if i > 0 && m.Log()[i-1].To != tr.From {
				rt.Fatalf("log is not a chain at %d", i)
			}
		}
	})
}

func TestRollInitiative_OrdersByTotalThenDexThenID(t *testing.T) {
	roller := dice.NewLoggedRoller(dicetest.NewFaces(10, 12, 12, 14), zap.NewNop())
	order := combat.RollInitiative(roller, []combat.Initiative{
		{TokenID: "a", DexMod: 4},
		{TokenID: "b", DexMod: 2},
		{TokenID: "c", DexMod: 2},
		{TokenID: "d", DexMod: 0},
	})
	ids := make([]string, len(order))
	for i, in := range order {
		ids[i] = in.TokenID
		assert.Equal(t, in.Roll+in.DexMod, in.Total)
	}
	// a 14, b 14, c 14, d 14: all tied, dex then ID decides.
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestRollInitiative_HighestTotalFirst(t *testing.T) {
	roller := dice.NewLoggedRoller(dicetest.NewFaces(3, 18, 9), zap.NewNop())
	order := combat.RollInitiative(roller, []combat.Initiative{{TokenID: "x"}, {TokenID: "y"}, {TokenID: "z", DexMod: 1}})
	require.Len(t, order, 3)
	assert.Equal(t, "y", order[0].TokenID)
	assert.Equal(t, 10, order[1].Total)
	assert.Equal(t, "x", order[2].TokenID)
}
