package condition

// AttackBonus returns the net attack roll modifier from s. Stackable penalties
// scale with stacks (frightened 2 = -2 to attack).
//
// Postcondition: Returns <= 0.
func AttackBonus(reg *Registry, s Set) int {
	total := 0
	for _, a := range s {
		if d, ok := reg.Get(a.ID); ok && d.AttackPenalty > 0 {
			total -= d.AttackPenalty * a.Stacks
		}
	}
	return total
}

// ACBonus returns the net armor modifier from s.
//
// Postcondition: Returns <= 0.
func ACBonus(reg *Registry, s Set) int {
	total := 0
	for _, a := range s {
		if d, ok := reg.Get(a.ID); ok && d.ACPenalty > 0 {
			total -= d.ACPenalty * a.Stacks
		}
	}
	return total
}

// SpeedPenalty returns the total speed reduction in squares from s.
func SpeedPenalty(reg *Registry, s Set) int {
	total := 0
	for _, a := range s {
		if d, ok := reg.Get(a.ID); ok {
			total += d.SpeedPenalty
		}
	}
	return total
}

// IsActionRestricted reports whether any condition in s blocks actionType.
func IsActionRestricted(reg *Registry, s Set, actionType string) bool {
	for _, a := range s {
		if d, ok := reg.Get(a.ID); ok && d.Restricts(actionType) {
			return true
		}
	}
	return false
}

// Edge is the net roll mode of an attack.
type Edge int

const (
	Straight Edge = iota
	WithAdvantage
	WithDisadvantage
)

// AttackEdge combines attacker and target conditions into a roll mode. Any
// source of advantage together with any source of disadvantage cancels out.
func AttackEdge(reg *Registry, attacker, target Set, adjacent bool) Edge {
	adv, dis := false, false
	for _, a := range attacker {
		if d, ok := reg.Get(a.ID); ok {
			adv = adv || d.AttackAdvantage
			dis = dis || d.AttackDisadvantage
		}
	}
	for _, a := range target {
		if d, ok := reg.Get(a.ID); ok {
			dis = dis || d.Evasive || (d.RangedSheltered && !adjacent)
			adv = adv || (d.MeleeExposed && adjacent)
		}
	}
	switch {
	case adv && !dis:
		return WithAdvantage
	case dis && !adv:
		return WithDisadvantage
	default:
		return Straight
	}
}

// ConsumeOnAttack returns s without the conditions spent by attacking.
func ConsumeOnAttack(reg *Registry, s Set) Set {
	out := s
	for _, a := range s {
		if d, ok := reg.Get(a.ID); ok && d.ConsumedOnAttack {
			out = out.Remove(a.ID)
		}
	}
	return out
}
