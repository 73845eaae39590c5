package threat

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
)

// Scoring constants.
const (
	BaseScore      = 100.0
	WoundFactor    = 0.5
	ConditionBonus = 10.0
)

// Candidate is a potential target as seen by the scorer.
type Candidate struct {
	ID         string
	Kind       battlefield.Kind
	Position   battlefield.Position
	HP         int
	MaxHP      int
	Archetype  string
	Tags       []string
	Conditions []string
}

// HPPercent returns current hit points as a percentage of maximum. A
// non-positive maximum reads as full health.
func (c Candidate) HPPercent() float64 {
	if c.MaxHP <= 0 {
		return 100
	}
	return 100 * float64(c.HP) / float64(c.MaxHP)
}

// Env is the variable set visible to expr: target predicates.
type Env struct {
	HP         int      `expr:"hp"`
	MaxHP      int      `expr:"max_hp"`
	HPPercent  float64  `expr:"hp_percent"`
	Distance   float64  `expr:"distance"`
	Kind       string   `expr:"kind"`
	Archetype  string   `expr:"archetype"`
	Tags       []string `expr:"tags"`
	Conditions []string `expr:"conditions"`
}

// Assessor scores candidates. Expression predicates are compiled once and cached.
//
// An Assessor is safe for concurrent use.
type Assessor struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

// NewAssessor returns an Assessor with an empty predicate cache.
func NewAssessor() *Assessor {
	return &Assessor{programs: make(map[string]*vm.Program)}
}

// Validate checks s and compiles every expression predicate it names.
func (a *Assessor) Validate(s *Strategy) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("threat.Validate: %w", err)
	}
	for i, p := range s.Priorities {
		if src, ok := strings.CutPrefix(p.TargetType, ExprPrefix); ok {
			if _, err := a.program(src); err != nil {
				return fmt.Errorf("threat.Validate: priority %d: %w", i, err)
			}
		}
	}
	return nil
}

func (a *Assessor) program(src string) (*vm.Program, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.programs[src]; ok {
		return p, nil
	}
	p, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling predicate %q: %w", src, err)
	}
	a.programs[src] = p
	return p, nil
}

// Matches reports whether targetType selects c when viewed from self. An
// expression that fails to compile or evaluate never matches.
func (a *Assessor) Matches(targetType string, self battlefield.Position, c Candidate) bool {
	if src, ok := strings.CutPrefix(targetType, ExprPrefix); ok {
		prog, err := a.program(src)
		if err != nil {
			return false
		}
		out, err := vm.Run(prog, Env{
			HP:         c.HP,
			MaxHP:      c.MaxHP,
			HPPercent:  c.HPPercent(),
			Distance:   self.Distance(c.Position),
			Kind:       string(c.Kind),
			Archetype:  c.Archetype,
			Tags:       c.Tags,
			Conditions: c.Conditions,
		})
		if err != nil {
			return false
		}
		b, _ := out.(bool)
		return b
	}
	switch strings.ToLower(targetType) {
	case TargetAny, "*":
		return true
	case TargetLowestHP:
		return c.HPPercent() < LowHPPercent
	case TargetPlayer:
		return c.Kind == battlefield.KindPlayer
	case TargetNPC:
		return c.Kind == battlefield.KindNPC
	}
	if strings.EqualFold(c.Archetype, targetType) {
		return true
	}
	return slices.ContainsFunc(c.Tags, func(tag string) bool { return strings.EqualFold(tag, targetType) })
}

// Base returns the strategy-independent score of c: 100, minus distance
// in squares, plus half the missing hp percentage, plus a bonus if c carries
// any condition. The result is never negative.
func Base(self battlefield.Position, c Candidate) float64 {
	score := BaseScore - self.Distance(c.Position)
	score += WoundFactor * (100 - c.HPPercent())
	if len(c.Conditions) > 0 {
		score += ConditionBonus
	}
	return math.Max(score, 0)
}

// Score returns the strategy-weighted score of c. Each matching PRIMARY or
// SECONDARY tier multiplies by its weight; each matching AVOID tier multiplies
// by (1 - weight) with weight clamped to [0,1].
func (a *Assessor) Score(self battlefield.Position, c Candidate, s *Strategy) float64 {
	score := Base(self, c)
	if s == nil {
		return score
	}
	for _, p := range s.Priorities {
		if !a.Matches(p.TargetType, self, c) {
			continue
		}
		switch p.Tier {
		case Primary, Secondary:
			score *= math.Max(p.Weight, 0)
		case Avoid:
			score *= 1 - math.Min(math.Max(p.Weight, 0), 1)
		}
	}
	return score
}

// FindBestTarget returns the highest-scoring candidate. Without a strategy it
// returns the nearest candidate. Ties keep the earlier candidate.
func (a *Assessor) FindBestTarget(self battlefield.Position, candidates []Candidate, s *Strategy) (Candidate, bool) {
	if s == nil {
		return FindClosest(self, candidates)
	}
	best, bestScore, found := Candidate{}, math.Inf(-1), false
	for _, c := range candidates {
		if sc := a.Score(self, c, s); sc > bestScore {
			best, bestScore, found = c, sc, true
		}
	}
	return best, found
}

// FindClosest returns the candidate nearest self. Ties keep the earlier candidate.
func FindClosest(self battlefield.Position, candidates []Candidate) (Candidate, bool) {
	best, bestDist, found := Candidate{}, math.Inf(1), false
	for _, c := range candidates {
		if d := self.Distance(c.Position); d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

// FindMostWounded returns the candidate with the lowest hp percentage,
// breaking ties by distance.
func FindMostWounded(self battlefield.Position, candidates []Candidate) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range candidates {
		if !found {
			best, found = c, true
			continue
		}
		hp, bhp := c.HPPercent(), best.HPPercent()
		if hp < bhp || (hp == bhp && self.Distance(c.Position) < self.Distance(best.Position)) {
			best = c
		}
	}
	return best, found
}

// FindLastAttacker returns the candidate whose ID is lastAttackerID.
func FindLastAttacker(lastAttackerID string, candidates []Candidate) (Candidate, bool) {
	if lastAttackerID == "" {
		return Candidate{}, false
	}
	for _, c := range candidates {
		if c.ID == lastAttackerID {
			return c, true
		}
	}
	return Candidate{}, false
}
