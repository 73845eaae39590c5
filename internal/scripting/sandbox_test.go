package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactics/internal/scripting"
)

func sandbox(t *testing.T, limit int) *lua.LState {
	t.Helper()
	L := scripting.NewSandboxedState(limit)
	require.NotNil(t, L)
	t.Cleanup(L.Close)
	return L
}

func TestNewSandboxedState_StripsUnsafeGlobals(t *testing.T) {
	L := sandbox(t, 0)
	for _, name := range []string{
		"os", "io", "debug", "package", "channel", "coroutine",
		"dofile", "loadfile", "load", "loadstring", "require", "collectgarbage", "print",
	} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "%s should be unavailable", name)
	}
}

func TestNewSandboxedState_KeepsPureLibraries(t *testing.T) {
	L := sandbox(t, 0)
	require.NoError(t, L.DoString(`
		assert(math.floor(7 / 2) == 3)
		assert(string.sub("tactics", 1, 3) == "tac")
		local t = {3, 1, 2}
		table.sort(t)
		assert(t[1] == 1 and t[3] == 3)
		assert(pcall(error, "boom") == false)
	`))
}

func TestNewSandboxedState_RunawayLoopStops(t *testing.T) {
	L := sandbox(t, 10)
	assert.Error(t, L.DoString(`while true do end`))
}

func TestNewSandboxedState_DefaultBudgetFitsOrdinaryWork(t *testing.T) {
	L := sandbox(t, 0)
	assert.NoError(t, L.DoString(`
		local sum = 0
		for i = 1, 1000 do sum = sum + i end
		assert(sum == 500500)
	`))
}

func TestProperty_AnyBudgetStopsAnInfiniteLoop(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 500).Draw(t, "limit")
		L := scripting.NewSandboxedState(limit)
		defer L.Close()
		if err := L.DoString(`local n = 0 while true do n = n + 1 end`); err == nil {
			t.Fatalf("loop survived a budget of %d", limit)
		}
	})
}
