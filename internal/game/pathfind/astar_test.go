package pathfind_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/pathfind"
)

func mustMap(t *testing.T, rows ...string) *battlefield.Map {
	t.Helper()
	m, err := battlefield.ParseMap(rows)
	require.NoError(t, err)
	return m
}

func TestFind_StraightLine(t *testing.T) {
	m := mustMap(t, ".....")
	path := pathfind.Find(m, battlefield.Pos(0, 0), battlefield.Pos(4, 0), nil)
	require.Len(t, path, 5)
	assert.Equal(t, battlefield.Pos(0, 0), path[0])
	assert.Equal(t, battlefield.Pos(4, 0), path[4])
}

func TestFind_RoutesAroundWall(t *testing.T) {
	m := mustMap(t,
		"..#..",
		"..#..",
		".....",
	)
	path := pathfind.Find(m, battlefield.Pos(0, 0), battlefield.Pos(4, 0), nil)
	require.NotNil(t, path)
	for _, p := range path {
		assert.NotEqual(t, battlefield.Wall, m.At(p))
	}
	assert.Equal(t, 8, pathfind.Cost(m, path))
}

func TestFind_PrefersCheaperDetour(t *testing.T) {
	m := mustMap(t,
		".~~~.",
		".....",
	)
	path := pathfind.Find(m, battlefield.Pos(0, 0), battlefield.Pos(4, 0), nil)
	require.NotNil(t, path)
	assert.Equal(t, 6, pathfind.Cost(m, path), "dry route costs 6, wading costs 7")
}

func TestFind_UnreachableReturnsNil(t *testing.T) {
	m := mustMap(t,
		"..#..",
		"..#..",
	)
	assert.Nil(t, pathfind.Find(m, battlefield.Pos(0, 0), battlefield.Pos(4, 0), nil))
}

func TestFind_ObstacleSnapshot(t *testing.T) {
	m := mustMap(t, "...", "...")
	obstacles := pathfind.Obstacles{battlefield.Pos(1, 0): true, battlefield.Pos(0, 0): true}
	path := pathfind.Find(m, battlefield.Pos(0, 0), battlefield.Pos(2, 0), obstacles)
	require.NotNil(t, path, "start cell may be occupied by the mover")
	assert.NotContains(t, path[1:], battlefield.Pos(1, 0))
	assert.Nil(t, pathfind.Find(m, battlefield.Pos(0, 1), battlefield.Pos(1, 0), obstacles), "occupied goal")
}

func TestFind_StartEqualsGoal(t *testing.T) {
	m := mustMap(t, "..")
	assert.Equal(t, []battlefield.Position{battlefield.Pos(1, 0)}, pathfind.Find(m, battlefield.Pos(1, 0), battlefield.Pos(1, 0), nil))
}

func TestAdvance_RespectsBudget(t *testing.T) {
	m := mustMap(t, ".:...")
	path := pathfind.Find(m, battlefield.Pos(0, 0), battlefield.Pos(4, 0), nil)
	require.Len(t, path, 5)
	got := pathfind.Advance(m, path, 3)
	assert.Equal(t, []battlefield.Position{battlefield.Pos(0, 0), battlefield.Pos(1, 0), battlefield.Pos(2, 0)}, got)
	assert.Len(t, pathfind.Advance(m, path, 0), 1)
	assert.Nil(t, pathfind.Advance(m, nil, 5))
}

// TestProperty_PathSoundness verifies returned paths stay in bounds, avoid
// walls and obstacles (start excepted) and are orthogonally connected.
func TestProperty_PathSoundness(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := rapid.IntRange(2, 10).Draw(rt, "w")
		h := rapid.IntRange(2, 10).Draw(rt, "h")
		m := battlefield.NewMap(w, h)
		obstacles := pathfind.Obstacles{}
		cells := rapid.IntRange(0, w*h).Draw(rt, "cells")
		for i := 0; i < cells; i++ {
			p := battlefield.Pos(rapid.IntRange(0, w-1).Draw(rt, "x"), rapid.IntRange(0, h-1).Draw(rt, "y"))
			switch rapid.IntRange(0, 3).Draw(rt, "kind") {
			case 0:
				m = m.Set(p, battlefield.Wall)
			case 1:
				m = m.Set(p, battlefield.Water)
			case 2:
				obstacles[p] = true
			}
		}
		start := battlefield.Pos(rapid.IntRange(0, w-1).Draw(rt, "sx"), rapid.IntRange(0, h-1).Draw(rt, "sy"))
		goal := battlefield.Pos(rapid.IntRange(0, w-1).Draw(rt, "gx"), rapid.IntRange(0, h-1).Draw(rt, "gy"))

		path := pathfind.Find(m, start, goal, obstacles)
		if path == nil {
			return
		}
		assert.Equal(rt, start, path[0])
		assert.Equal(rt, goal, path[len(path)-1])
		for i, p := range path {
			assert.True(rt, m.InBounds(p))
			if i == 0 {
				continue
			}
			assert.NotEqual(rt, battlefield.Wall, m.At(p))
			assert.False(rt, obstacles[p])
			assert.Equal(rt, 1, p.Manhattan(path[i-1]))
		}
	})
}
