package damage

import "slices"

// Defenses lists damage types a target adjusts.
type Defenses struct {
	Resistances     []string `json:"resistances,omitempty" yaml:"resistances"`
	Immunities      []string `json:"immunities,omitempty" yaml:"immunities"`
	Vulnerabilities []string `json:"vulnerabilities,omitempty" yaml:"vulnerabilities"`
}

// Apply adjusts each breakdown entry by damage type: immunity zeroes it,
// resistance halves it rounding down, vulnerability doubles it. Immunity wins
// over the other two; resistance and vulnerability on the same type cancel.
func (d Defenses) Apply(r Result) int {
	total := 0
	for _, b := range r.Breakdown {
		t := b.Part.Type
		amount := b.Total
		switch {
		case slices.Contains(d.Immunities, t):
			amount = 0
		case slices.Contains(d.Resistances, t) && slices.Contains(d.Vulnerabilities, t):
		case slices.Contains(d.Resistances, t):
			amount /= 2
		case slices.Contains(d.Vulnerabilities, t):
			amount *= 2
		}
		total += amount
	}
	return total
}
