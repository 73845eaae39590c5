// Package battlefield models the tactical grid: positions, terrain, tokens and interactable objects.
package battlefield

import (
	"fmt"
	"math"
)

// Position is an integer grid coordinate. One unit is one square.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Pos is shorthand for Position{X: x, Y: y}.
func Pos(x, y int) Position { return Position{X: x, Y: y} }

// Add returns p offset by d.
func (p Position) Add(d Position) Position { return Position{X: p.X + d.X, Y: p.Y + d.Y} }

// Distance returns the straight-line (Euclidean) distance between p and q in squares.
func (p Position) Distance(q Position) float64 {
	dx := float64(p.X - q.X)
	dy := float64(p.Y - q.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Manhattan returns |dx| + |dy|.
func (p Position) Manhattan(q Position) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

// Chebyshev returns max(|dx|, |dy|), the number of king moves between p and q.
// Reach and range checks use this metric so diagonal neighbours count as adjacent.
func (p Position) Chebyshev(q Position) int {
	dx, dy := abs(p.X-q.X), abs(p.Y-q.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Adjacent reports whether q is one of the eight squares surrounding p.
func (p Position) Adjacent(q Position) bool {
	return p != q && p.Chebyshev(q) == 1
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Cardinal lists the four orthogonal unit offsets in expansion order.
var Cardinal = [4]Position{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Compass lists the eight unit offsets, clockwise from north.
var Compass = [8]Position{{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}}

// Centroid returns the rounded mean of ps.
//
// Precondition: len(ps) > 0.
func Centroid(ps []Position) Position {
	if len(ps) == 0 {
		panic("battlefield.Centroid: precondition violated: no positions")
	}
	var sx, sy int
	for _, p := range ps {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(ps))
	return Position{X: int(math.Round(float64(sx) / n)), Y: int(math.Round(float64(sy) / n))}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
