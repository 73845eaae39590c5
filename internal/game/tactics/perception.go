package tactics

import (
	"slices"
	"strings"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/bt"
)

// DefaultSightRadius is how far, in squares, an NPC looks for enemies.
const DefaultSightRadius = 12.0

// SightArgs configures FindVisibleEnemies.
type SightArgs struct {
	Radius float64 `yaml:"radius"`
}

func (a *SightArgs) Validate() error {
	if a.Radius < 0 {
		return errNegative("radius")
	}
	if a.Radius == 0 {
		a.Radius = DefaultSightRadius
	}
	return nil
}

// FindVisibleEnemies queries the spatial index around the actor and keeps the
// enemies that are not hidden and are in line of sight, nearest first.
func FindVisibleEnemies(args SightArgs) bt.Node[*Blackboard] {
	if args.Radius <= 0 {
		args.Radius = DefaultSightRadius
	}
	return bt.Func[*Blackboard]{Label: "find_visible_enemies", Fn: func(b *Blackboard) bt.Status {
		self := b.Self.Position
		var seen []battlefield.Token
		for _, e := range b.Index.QueryRadius(self, args.Radius) {
			t, ok := b.enemy(e.ID)
			if !ok || b.isHidden(t) || !b.State.Map.LineOfSight(self, t.Position) {
				continue
			}
			seen = append(seen, t)
		}
		slices.SortFunc(seen, func(x, y battlefield.Token) int {
			dx, dy := self.Distance(x.Position), self.Distance(y.Position)
			switch {
			case dx < dy:
				return -1
			case dx > dy:
				return 1
			default:
				return strings.Compare(x.ID, y.ID)
			}
		})
		b.Visible = seen
		if len(seen) == 0 {
			return bt.Failure
		}
		return bt.Success
	}}
}

// HasVisibleEnemies succeeds when FindVisibleEnemies found someone.
func HasVisibleEnemies() bt.Node[*Blackboard] {
	return bt.Condition("has_visible_enemies", func(b *Blackboard) bool { return len(b.Visible) > 0 })
}

// IsEnemyInMelee succeeds when an enemy occupies an adjacent square.
func IsEnemyInMelee() bt.Node[*Blackboard] {
	return bt.Condition("is_enemy_in_melee", func(b *Blackboard) bool {
		for _, e := range b.Index.QueryRadius(b.Self.Position, 1.5) {
			if t, ok := b.enemy(e.ID); ok && t.Position.Adjacent(b.Self.Position) {
				return true
			}
		}
		return false
	})
}
