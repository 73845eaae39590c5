package tactics

import "github.com/cory-johannsen/tactics/internal/game/bt"

// Registry is a behavior-tree registry over the tactical Blackboard.
type Registry = bt.Registry[*Blackboard]

// Node is a tactical behavior-tree node.
type Node = bt.Node[*Blackboard]

type noArgs struct{}

// NewRegistry returns a registry holding the composites and every tactical leaf.
func NewRegistry(in bt.Instrumentation) *Registry {
	r := bt.NewRegistry[*Blackboard](in)
	plain := map[string]func() Node{
		"has_visible_enemies":        HasVisibleEnemies,
		"is_enemy_in_melee":          IsEnemyInMelee,
		"find_closest_enemy":         FindClosestEnemy,
		"find_most_wounded_enemy":    FindMostWoundedEnemy,
		"find_best_target":           FindBestTarget,
		"prioritize_last_attacker":   PrioritizeLastAttacker,
		"assign_squad_target":        AssignSquadTarget,
		"set_target_to_squad_target": SetTargetToSquadTarget,
		"move_to_target":             MoveToTarget,
		"move_away_from_target":      MoveAwayFromTarget,
		"find_cover":                 FindCover,
		"flee":                       Flee,
		"attack_target":              AttackTarget,
	}
	for typ, ctor := range plain {
		bt.RegisterLeaf(r, typ, func(string, noArgs) (Node, error) { return ctor(), nil })
	}
	bt.RegisterLeaf(r, "find_visible_enemies", func(_ string, a SightArgs) (Node, error) { return FindVisibleEnemies(a), nil })
	bt.RegisterLeaf(r, "use_most_damaging_ability", func(_ string, a DamageArgs) (Node, error) { return UseMostDamagingAbility(a), nil })
	bt.RegisterLeaf(r, "use_best_area_of_effect", func(_ string, a AreaArgs) (Node, error) { return UseBestAreaOfEffect(a), nil })
	bt.RegisterLeaf(r, "is_health_low", func(_ string, a HealthArgs) (Node, error) { return IsHealthLow(a), nil })
	bt.RegisterLeaf(r, "script", func(_ string, a ScriptArgs) (Node, error) { return Script(a), nil })
	return r
}
