// Package threat scores candidate targets for NPC decision making.
package threat

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is a strategy priority class.
type Tier string

const (
	Primary   Tier = "PRIMARY"
	Secondary Tier = "SECONDARY"
	Avoid     Tier = "AVOID"
)

// Builtin target types. Any other value is matched against a candidate's
// archetype or tags, or compiled as an expression when prefixed with ExprPrefix.
const (
	TargetLowestHP = "lowest_hp"
	TargetAny      = "any"
	TargetPlayer   = "player"
	TargetNPC      = "npc"
	ExprPrefix     = "expr:"
)

// LowHPPercent is the hp percentage below which lowest_hp tiers match.
const LowHPPercent = 40.0

// Priority is one weighted (tier, target-category) entry.
type Priority struct {
	Tier       Tier    `json:"tier" yaml:"tier"`
	TargetType string  `json:"target_type" yaml:"target_type"`
	Weight     float64 `json:"weight" yaml:"weight"`
}

// Strategy is an externally supplied targeting bias for a squad.
type Strategy struct {
	Objective  string     `json:"objective" yaml:"objective"`
	Rationale  string     `json:"rationale" yaml:"rationale"`
	Priorities []Priority `json:"priorities" yaml:"priorities"`
}

// Validate checks tier names and weights. Expression predicates are compiled
// by Assessor.Validate.
func (s *Strategy) Validate() error {
	var errs []error
	for i, p := range s.Priorities {
		switch p.Tier {
		case Primary, Secondary:
			if p.Weight < 0 {
				errs = append(errs, fmt.Errorf("priority %d: weight must be >= 0, got %v", i, p.Weight))
			}
		case Avoid:
			if p.Weight < 0 || p.Weight > 1 {
				errs = append(errs, fmt.Errorf("priority %d: AVOID weight must be in [0,1], got %v", i, p.Weight))
			}
		default:
			errs = append(errs, fmt.Errorf("priority %d: unknown tier %q", i, p.Tier))
		}
		if strings.TrimSpace(p.TargetType) == "" {
			errs = append(errs, fmt.Errorf("priority %d: target_type must not be empty", i))
		}
	}
	return errors.Join(errs...)
}
