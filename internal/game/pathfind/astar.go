// Package pathfind implements A* search over the battlefield terrain grid.
package pathfind

import (
	"container/heap"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
)

// Obstacles is a snapshot of cells occupied for the duration of one search.
type Obstacles map[battlefield.Position]bool

// Find returns the cheapest 4-connected path from start to goal inclusive, or
// nil when goal is unreachable. Walls, off-map cells and obstacle cells are
// impassable; start itself may be listed in obstacles.
//
// Postcondition: every step of a non-nil result is orthogonally adjacent to the
// previous one and enterable.
func Find(m *battlefield.Map, start, goal battlefield.Position, obstacles Obstacles) []battlefield.Position {
	if !m.InBounds(start) || (goal != start && !enterable(m, goal, obstacles)) {
		return nil
	}
	if start == goal {
		return []battlefield.Position{start}
	}

	open := &frontier{}
	heap.Push(open, &node{pos: start, g: 0, f: start.Manhattan(goal)})
	cameFrom := map[battlefield.Position]battlefield.Position{}
	gScore := map[battlefield.Position]int{start: 0}
	closed := map[battlefield.Position]bool{}
	seq := 0

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if closed[cur.pos] {
			continue
		}
		if cur.pos == goal {
			return reconstruct(cameFrom, start, goal)
		}
		closed[cur.pos] = true
		for _, d := range battlefield.Cardinal {
			next := cur.pos.Add(d)
			if closed[next] || !enterable(m, next, obstacles) {
				continue
			}
			g := cur.g + m.MoveCost(next)
			if old, ok := gScore[next]; ok && g >= old {
				continue
			}
			gScore[next] = g
			cameFrom[next] = cur.pos
			seq++
			heap.Push(open, &node{pos: next, g: g, f: g + next.Manhattan(goal), seq: seq})
		}
	}
	return nil
}

func enterable(m *battlefield.Map, p battlefield.Position, obstacles Obstacles) bool {
	return m.InBounds(p) && m.MoveCost(p) != battlefield.Impassable && !obstacles[p]
}

func reconstruct(cameFrom map[battlefield.Position]battlefield.Position, start, goal battlefield.Position) []battlefield.Position {
	path := []battlefield.Position{goal}
	for cur := goal; cur != start; {
		cur = cameFrom[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Cost returns the total move cost of walking path, excluding the start cell.
func Cost(m *battlefield.Map, path []battlefield.Position) int {
	total := 0
	for i := 1; i < len(path); i++ {
		total += m.MoveCost(path[i])
	}
	return total
}

// Advance truncates path to the prefix a mover with budget movement points can
// walk in one turn. The start cell is always kept.
func Advance(m *battlefield.Map, path []battlefield.Position, budget int) []battlefield.Position {
	if len(path) == 0 {
		return nil
	}
	spent := 0
	end := 1
	for ; end < len(path); end++ {
		c := m.MoveCost(path[end])
		if c == battlefield.Impassable || spent+c > budget {
			break
		}
		spent += c
	}
	return path[:end]
}

type node struct {
	pos battlefield.Position
	g   int
	f   int
	seq int
}

// frontier orders nodes by f, then by lower heuristic share (higher g), then by insertion.
type frontier []*node

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].f != f[j].f {
		return f[i].f < f[j].f
	}
	if f[i].g != f[j].g {
		return f[i].g > f[j].g
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any) { *f = append(*f, x.(*node)) }
func (f *frontier) Pop() any {
	old := *f
	n := old[len(old)-1]
	*f = old[:len(old)-1]
	return n
}
