// Package ability describes the actions a combatant can take: weapon attacks,
// spells and special features.
package ability

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/damage"
	"github.com/cory-johannsen/tactics/internal/game/dice"
)

// Kind classifies an ability.
type Kind string

const (
	Melee   Kind = "melee"
	Ranged  Kind = "ranged"
	Spell   Kind = "spell"
	Feature Kind = "feature"
)

// Save abilities.
const (
	SaveStr = "str"
	SaveDex = "dex"
	SaveCon = "con"
	SaveInt = "int"
	SaveWis = "wis"
	SaveCha = "cha"
)

// Save describes a saving throw forced by a spell or feature.
type Save struct {
	Ability       string `json:"ability" yaml:"ability"`
	DC            int    `json:"dc" yaml:"dc"`
	HalfOnSuccess bool   `json:"half_on_success" yaml:"half_on_success"`
}

// Inflict describes a condition applied on a failed save or a hit.
type Inflict struct {
	Condition string `json:"condition" yaml:"condition"`
	Duration  int    `json:"duration" yaml:"duration"`
	Stacks    int    `json:"stacks,omitempty" yaml:"stacks"`
}

// Ability is one usable action.
//
// Reach and Range are in squares. Melee abilities default to reach 1. An
// ability with Radius > 0 affects every combatant within Radius of its
// centre; the centre must itself lie within Range.
type Ability struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Kind        Kind          `json:"kind" yaml:"kind"`
	AttackBonus int           `json:"attack_bonus" yaml:"attack_bonus"`
	Reach       int           `json:"reach,omitempty" yaml:"reach"`
	Range       int           `json:"range,omitempty" yaml:"range"`
	Radius      int           `json:"radius,omitempty" yaml:"radius"`
	Damage      []damage.Part `json:"damage,omitempty" yaml:"damage"`
	Save        *Save         `json:"save,omitempty" yaml:"save"`
	Heal        string        `json:"heal,omitempty" yaml:"heal"`
	Inflict     *Inflict      `json:"inflict,omitempty" yaml:"inflict"`
	// Multiattack lists the ability IDs a multiattack feature performs in order.
	Multiattack []string `json:"multiattack,omitempty" yaml:"multiattack"`
	// SelfOnly features target the user.
	SelfOnly bool `json:"self_only,omitempty" yaml:"self_only"`
}

// IsAttack reports whether the ability makes an attack roll.
func (a *Ability) IsAttack() bool { return a.Kind == Melee || a.Kind == Ranged }

// IsArea reports whether the ability affects an area.
func (a *Ability) IsArea() bool { return a.Radius > 0 }

// MaxDistance returns how far, in squares, a target or area centre may be.
func (a *Ability) MaxDistance() int {
	switch {
	case a.SelfOnly:
		return 0
	case a.Kind == Melee:
		if a.Reach <= 0 {
			return 1
		}
		return a.Reach
	case a.Range > 0:
		return a.Range
	case a.Reach > 0:
		return a.Reach
	default:
		return 1
	}
}

// InRange reports whether to is reachable from from. Diagonal squares count
// as one step.
func (a *Ability) InRange(from, to battlefield.Position) bool {
	return from.Chebyshev(to) <= a.MaxDistance()
}

// AverageDamage returns the expected damage of one use: average dice plus flat
// bonus. Multiattack features sum their parts through lookup.
func (a *Ability) AverageDamage(lookup func(id string) (*Ability, bool)) float64 {
	if len(a.Multiattack) > 0 && lookup != nil {
		var sum float64
		for _, id := range a.Multiattack {
			if sub, ok := lookup(id); ok && len(sub.Multiattack) == 0 {
				sum += sub.AverageDamage(nil)
			}
		}
		return sum
	}
	return damage.Average(a.Damage)
}

// Validate checks the ability's invariants.
func (a *Ability) Validate() error {
	var errs []error
	if a.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if !slices.Contains([]Kind{Melee, Ranged, Spell, Feature}, a.Kind) {
		errs = append(errs, fmt.Errorf("kind must be one of [melee, ranged, spell, feature], got %q", a.Kind))
	}
	if a.Reach < 0 || a.Range < 0 || a.Radius < 0 {
		errs = append(errs, errors.New("reach, range and radius must be >= 0"))
	}
	if err := damage.Validate(a.Damage); err != nil {
		errs = append(errs, fmt.Errorf("damage: %w", err))
	}
	if a.Heal != "" {
		if _, err := dice.Parse(a.Heal); err != nil {
			errs = append(errs, fmt.Errorf("heal: %w", err))
		}
	}
	if a.Save != nil && a.Save.DC <= 0 {
		errs = append(errs, fmt.Errorf("save dc must be > 0, got %d", a.Save.DC))
	}
	if a.Inflict != nil && a.Inflict.Condition == "" {
		errs = append(errs, errors.New("inflict.condition must not be empty"))
	}
	if a.IsAttack() && len(a.Damage) == 0 {
		errs = append(errs, errors.New("attack abilities need at least one damage part"))
	}
	if len(a.Multiattack) > 0 && a.Kind != Feature {
		errs = append(errs, errors.New("multiattack is only valid on features"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("ability %q: %w", a.ID, err)
	}
	return nil
}

// Find returns the ability with id from list.
func Find(list []Ability, id string) (*Ability, bool) {
	for i := range list {
		if list[i].ID == id {
			return &list[i], true
		}
	}
	return nil, false
}

// Covers reports whether p falls inside the area centred on center.
func (a *Ability) Covers(center, p battlefield.Position) bool {
	return center.Chebyshev(p) <= a.Radius
}
