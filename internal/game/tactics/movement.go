package tactics

import (
	"slices"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/bt"
	"github.com/cory-johannsen/tactics/internal/game/pathfind"
)

// approachTries bounds how many candidate squares MoveToTarget paths to.
const approachTries = 16

// stage records dest as the actor's movement for this turn.
func (b *Blackboard) stage(dest battlefield.Position) {
	b.Waypoint = &dest
	d := dest
	b.Result.Destination = &d
}

// walk paths to goal and returns the furthest square reachable this turn.
func (b *Blackboard) walk(goal battlefield.Position) (battlefield.Position, bool) {
	p := b.Path(b.Self.Position, goal)
	if p == nil {
		return battlefield.Position{}, false
	}
	p = pathfind.Advance(b.State.Map, p, b.Speed())
	return p[len(p)-1], true
}

func (b *Blackboard) enterable(p battlefield.Position) bool {
	return b.State.Map.InBounds(p) && b.State.Map.MoveCost(p) != battlefield.Impassable && !b.Obstacles[p]
}

// reach is the distance the chosen ability needs; melee reach without one.
func (b *Blackboard) reach() int {
	if b.Ability != nil && !b.Ability.IsArea() {
		return b.Ability.MaxDistance()
	}
	return 1
}

// MoveToTarget heads for the nearest square within reach of the target,
// walking as far as speed allows. It succeeds without moving when the target
// is already in reach.
func MoveToTarget() bt.Node[*Blackboard] {
	return bt.Condition("move_to_target", func(b *Blackboard) bool {
		if b.Target == nil {
			return false
		}
		reach := b.reach()
		self, target := b.Self.Position, b.Target.Position
		if self.Chebyshev(target) <= reach {
			return true
		}
		var squares []battlefield.Position
		for y := target.Y - reach; y <= target.Y+reach; y++ {
			for x := target.X - reach; x <= target.X+reach; x++ {
				if p := battlefield.Pos(x, y); p != target && b.enterable(p) {
					squares = append(squares, p)
				}
			}
		}
		slices.SortFunc(squares, func(p, q battlefield.Position) int {
			if d := self.Manhattan(p) - self.Manhattan(q); d != 0 {
				return d
			}
			if p.Y != q.Y {
				return p.Y - q.Y
			}
			return p.X - q.X
		})
		for i, sq := range squares {
			if i == approachTries {
				break
			}
			end, ok := b.walk(sq)
			if !ok {
				continue
			}
			if end == self {
				return false
			}
			b.stage(end)
			return true
		}
		return false
	})
}

// retreat stages the reachable square, sampled in eight directions at full
// speed, that lies farthest from threat. It fails when no square improves on
// the current distance.
func (b *Blackboard) retreat(threat battlefield.Position) bool {
	self := b.Self.Position
	speed := b.Speed()
	best, bestDist := self, self.Distance(threat)
	for _, dir := range battlefield.Compass {
		for k := speed; k > 0; k-- {
			goal := battlefield.Pos(self.X+dir.X*k, self.Y+dir.Y*k)
			if !b.enterable(goal) {
				continue
			}
			end, ok := b.walk(goal)
			if !ok {
				continue
			}
			if d := end.Distance(threat); d > bestDist {
				best, bestDist = end, d
			}
			break
		}
	}
	if best == self {
		return false
	}
	b.stage(best)
	return true
}

// MoveAwayFromTarget retreats from the current target.
func MoveAwayFromTarget() bt.Node[*Blackboard] {
	return bt.Condition("move_away_from_target", func(b *Blackboard) bool {
		return b.Target != nil && b.retreat(b.Target.Position)
	})
}

// Flee retreats from the centroid of every enemy.
func Flee() bt.Node[*Blackboard] {
	return bt.Condition("flee", func(b *Blackboard) bool {
		if len(b.Enemies) == 0 {
			return false
		}
		ps := make([]battlefield.Position, 0, len(b.Enemies))
		for _, e := range b.Enemies {
			ps = append(ps, e.Position)
		}
		return b.retreat(battlefield.Centroid(ps))
	})
}

// FindCover moves to the nearest square shielded by a cover object from the
// target, or from the enemy centroid without a target. It succeeds without
// moving when the actor already stands in cover.
func FindCover() bt.Node[*Blackboard] {
	return bt.Condition("find_cover", func(b *Blackboard) bool {
		var threat battlefield.Position
		switch {
		case b.Target != nil:
			threat = b.Target.Position
		case len(b.Enemies) > 0:
			ps := make([]battlefield.Position, 0, len(b.Enemies))
			for _, e := range b.Enemies {
				ps = append(ps, e.Position)
			}
			threat = battlefield.Centroid(ps)
		default:
			return false
		}
		self := b.Self.Position
		for _, sq := range battlefield.CoverSquares(b.State.Map, b.State.Objects, b.Obstacles, self, threat) {
			if sq == self {
				return true
			}
			if end, ok := b.walk(sq); ok && end == sq {
				b.stage(sq)
				return true
			}
		}
		return false
	})
}
