package tactics

import (
	"github.com/cory-johannsen/tactics/internal/game/bt"
	"github.com/cory-johannsen/tactics/internal/game/threat"
)

// FindClosestEnemy targets the nearest candidate.
func FindClosestEnemy() bt.Node[*Blackboard] {
	return bt.Condition("find_closest_enemy", func(b *Blackboard) bool {
		return b.setTarget(threat.FindClosest(b.Self.Position, b.candidates()))
	})
}

// FindMostWoundedEnemy targets the candidate with the lowest hp percentage.
func FindMostWoundedEnemy() bt.Node[*Blackboard] {
	return bt.Condition("find_most_wounded_enemy", func(b *Blackboard) bool {
		return b.setTarget(threat.FindMostWounded(b.Self.Position, b.candidates()))
	})
}

// FindBestTarget targets the highest-scoring candidate under the actor's (or
// its leader's) strategy.
func FindBestTarget() bt.Node[*Blackboard] {
	return bt.Condition("find_best_target", func(b *Blackboard) bool {
		return b.setTarget(b.Assessor.FindBestTarget(b.Self.Position, b.candidates(), b.Strategy()))
	})
}

// PrioritizeLastAttacker targets whoever last damaged the actor, if still a candidate.
func PrioritizeLastAttacker() bt.Node[*Blackboard] {
	return bt.Condition("prioritize_last_attacker", func(b *Blackboard) bool {
		return b.setTarget(threat.FindLastAttacker(b.Instance.LastAttackerID, b.candidates()))
	})
}

// AssignSquadTarget lets a squad leader mark its current target for the squad.
func AssignSquadTarget() bt.Node[*Blackboard] {
	return bt.Condition("assign_squad_target", func(b *Blackboard) bool {
		if !b.Instance.IsLeader() || b.Target == nil {
			return false
		}
		if b.Instance.SquadTargetID != b.Target.ID {
			b.Result.SquadTargetID = b.Target.ID
		}
		return true
	})
}

// SetTargetToSquadTarget targets the enemy the squad leader marked.
func SetTargetToSquadTarget() bt.Node[*Blackboard] {
	return bt.Condition("set_target_to_squad_target", func(b *Blackboard) bool {
		id := b.Instance.SquadTargetID
		if leader, ok := b.leader(); ok {
			id = leader.SquadTargetID
		}
		if id == "" {
			return false
		}
		t, ok := b.enemy(id)
		if !ok || b.isHidden(t) {
			return false
		}
		b.Target = &t
		return true
	})
}
