package tactics

import (
	"fmt"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/bt"
)

func errNegative(field string) error { return fmt.Errorf("%s must be >= 0", field) }

// DamageArgs configures UseMostDamagingAbility.
type DamageArgs struct {
	// InRange limits the choice to abilities that reach the target from the
	// staged position.
	InRange bool `yaml:"in_range"`
}

// UseMostDamagingAbility chooses the single-target ability with the highest
// expected damage. Ties keep the earlier ability.
func UseMostDamagingAbility(args DamageArgs) bt.Node[*Blackboard] {
	return bt.Condition("use_most_damaging_ability", func(b *Blackboard) bool {
		var best *ability.Ability
		bestAvg := 0.0
		for i := range b.Profile.Abilities {
			a := &b.Profile.Abilities[i]
			if a.IsArea() || a.Heal != "" || a.SelfOnly {
				continue
			}
			if !a.IsAttack() && a.Kind != ability.Spell && len(a.Multiattack) == 0 {
				continue
			}
			if args.InRange && (b.Target == nil || !b.inRange(a, b.Target.Position)) {
				continue
			}
			if avg := a.AverageDamage(b.Profile.Ability); avg > bestAvg {
				best, bestAvg = a, avg
			}
		}
		if best == nil {
			return false
		}
		b.Ability = best
		return true
	})
}

// inRange checks a against to from the staged position. A multiattack reaches
// as far as its shortest component.
func (b *Blackboard) inRange(a *ability.Ability, to battlefield.Position) bool {
	from := b.Position()
	if len(a.Multiattack) == 0 {
		return a.InRange(from, to)
	}
	for _, id := range a.Multiattack {
		sub, ok := b.Profile.Ability(id)
		if !ok || !sub.InRange(from, to) {
			return false
		}
	}
	return true
}

// AreaArgs configures UseBestAreaOfEffect. Unset fields take the defaults;
// an explicit 0 is honoured.
type AreaArgs struct {
	// Penalty weighs each ally caught in the area. Defaults to 2.
	Penalty *float64 `yaml:"penalty"`
	// Threshold is the score a placement must exceed. Defaults to 1.
	Threshold *float64 `yaml:"threshold"`
}

func (a *AreaArgs) Validate() error {
	if a.Penalty != nil && *a.Penalty < 0 {
		return errNegative("penalty")
	}
	if a.Threshold != nil && *a.Threshold < 0 {
		return errNegative("threshold")
	}
	return nil
}

// orDefault dereferences v, or returns def when v is unset.
func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// AreaScore is the value of centring area ability a on center: enemies caught
// minus penalty times allies caught, the actor included.
func (b *Blackboard) AreaScore(a *ability.Ability, center battlefield.Position, penalty float64) float64 {
	enemies, allies := 0, 0
	for _, e := range b.Enemies {
		if a.Covers(center, e.Position) {
			enemies++
		}
	}
	for _, f := range b.Allies {
		if a.Covers(center, f.Position) {
			allies++
		}
	}
	if a.Covers(center, b.Position()) {
		allies++
	}
	return float64(enemies) - penalty*float64(allies)
}

// UseBestAreaOfEffect tries every candidate enemy square as the centre of each
// area ability in range and commits the best placement whose score exceeds
// the threshold.
func UseBestAreaOfEffect(args AreaArgs) bt.Node[*Blackboard] {
	penalty, threshold := orDefault(args.Penalty, 2), orDefault(args.Threshold, 1)
	return bt.Condition("use_best_area_of_effect", func(b *Blackboard) bool {
		var best *ability.Ability
		var bestCenter battlefield.Position
		bestScore := threshold
		from := b.Position()
		for i := range b.Profile.Abilities {
			a := &b.Profile.Abilities[i]
			if !a.IsArea() || (len(a.Damage) == 0 && a.Inflict == nil) {
				continue
			}
			for _, t := range b.targets() {
				if !a.InRange(from, t.Position) {
					continue
				}
				if s := b.AreaScore(a, t.Position, penalty); s > bestScore {
					best, bestCenter, bestScore = a, t.Position, s
				}
			}
		}
		if best == nil {
			return false
		}
		b.Ability = best
		b.Result.AbilityID = best.ID
		b.Result.TargetID = ""
		b.Result.Center = &bestCenter
		return true
	})
}

// AttackTarget commits the chosen ability against the target, checking reach
// from the position staged earlier in the tick.
func AttackTarget() bt.Node[*Blackboard] {
	return bt.Condition("attack_target", func(b *Blackboard) bool {
		if b.Target == nil || b.Ability == nil || b.Ability.IsArea() {
			return false
		}
		if !b.inRange(b.Ability, b.Target.Position) {
			return false
		}
		b.Result.AbilityID = b.Ability.ID
		b.Result.TargetID = b.Target.ID
		b.Result.Center = nil
		return true
	})
}
