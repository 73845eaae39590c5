package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Expression represents a parsed dice expression ready to be rolled.
//
// A flat expression ("5", "-2") has Count == 0 and resolves to Modifier.
// Otherwise Count >= 1 and Sides >= 2.
type Expression struct {
	Raw         string // original input string
	Count       int    // number of dice
	Sides       int    // faces per die
	Modifier    int    // flat modifier (may be negative)
	KeepHighest int    // if > 0, keep only the N highest dice (e.g. 2d20kh1)
	KeepLowest  int    // if > 0, keep only the N lowest dice (e.g. 2d20kl1)
}

// IsFlat reports whether the expression has no die-size token.
func (e Expression) IsFlat() bool { return e.Count == 0 }

// Min returns the smallest possible total.
func (e Expression) Min() int { return e.kept() + e.Modifier }

// Max returns the largest possible total.
func (e Expression) Max() int { return e.kept()*e.Sides + e.Modifier }

// Average returns the expected total, ignoring keep rules.
func (e Expression) Average() float64 {
	if e.IsFlat() {
		return float64(e.Modifier)
	}
	return float64(e.Count)*float64(e.Sides+1)/2 + float64(e.Modifier)
}

func (e Expression) kept() int {
	switch {
	case e.KeepHighest > 0:
		return e.KeepHighest
	case e.KeepLowest > 0:
		return e.KeepLowest
	default:
		return e.Count
	}
}

// Parse parses a dice expression string into an Expression.
// Supported forms: "d20", "2d6", "2d6+3", "4d8-2", "4d6kh3", "2d20kl1", and
// flat integers such as "5" or "-1".
//
// Precondition: expr must be a non-empty string.
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	raw := expr
	s := strings.ToLower(strings.ReplaceAll(expr, " ", ""))
	if s == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}

	dIdx := strings.Index(s, "d")
	if dIdx < 0 {
		flat, err := strconv.Atoi(s)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid flat expression %q: %w", raw, err)
		}
		return Expression{Raw: raw, Modifier: flat}, nil
	}

	count := 1
	if countStr := s[:dIdx]; countStr != "" {
		var err error
		count, err = strconv.Atoi(countStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: %w", raw, err)
		}
		if count <= 0 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: must be >= 1", raw)
		}
	}

	rest := s[dIdx+1:]

	// Keep suffix ("kh<N>" or "kl<N>") precedes any modifier.
	keepHighest, keepLowest := 0, 0
	for _, marker := range []string{"kh", "kl"} {
		idx := strings.Index(rest, marker)
		if idx < 0 {
			continue
		}
		keepPart := rest[idx+2:]
		rest = rest[:idx]
		numStr, modStr := splitModifier(keepPart)
		rest += modStr
		n, err := strconv.Atoi(numStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid %s value in %q: %w", marker, raw, err)
		}
		if n <= 0 || n >= count {
			return Expression{}, fmt.Errorf("dice: %s value %d must be > 0 and < count %d in %q", marker, n, count, raw)
		}
		if marker == "kh" {
			keepHighest = n
		} else {
			keepLowest = n
		}
		break
	}

	sidesStr, modStr := splitModifier(rest)
	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: %w", raw, err)
	}
	if sides < 2 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 2", raw)
	}

	modifier := 0
	if modStr != "" {
		modifier, err = strconv.Atoi(modStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", raw, err)
		}
	}

	return Expression{
		Raw:         raw,
		Count:       count,
		Sides:       sides,
		Modifier:    modifier,
		KeepHighest: keepHighest,
		KeepLowest:  keepLowest,
	}, nil
}

// splitModifier splits s at the first '+' or '-' after position 0.
func splitModifier(s string) (head, mod string) {
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			return s[:i], s[i:]
		}
	}
	return s, ""
}
