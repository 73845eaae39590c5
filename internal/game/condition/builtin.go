package condition

// Condition IDs the command pipeline applies itself.
const (
	Dodging    = "dodging"
	Helped     = "helped"
	Hidden     = "hidden"
	Prone      = "prone"
	Frightened = "frightened"
	Poisoned   = "poisoned"
)

// Builtins returns a registry preloaded with the conditions the command
// pipeline relies on. Content directories may override any of them.
func Builtins() *Registry {
	r := NewRegistry()
	for _, d := range []*Def{
		{ID: Dodging, Name: "Dodging", DurationType: DurationRounds, Evasive: true},
		{ID: Helped, Name: "Helped", DurationType: DurationUntilSave, AttackAdvantage: true, ConsumedOnAttack: true},
		{ID: Hidden, Name: "Hidden", DurationType: DurationUntilSave, AttackAdvantage: true, ConsumedOnAttack: true},
		{ID: Prone, Name: "Prone", DurationType: DurationPermanent, AttackDisadvantage: true, MeleeExposed: true, RangedSheltered: true},
		{ID: Frightened, Name: "Frightened", DurationType: DurationRounds, MaxStacks: 4, AttackPenalty: 1, AttackDisadvantage: true},
		{ID: Poisoned, Name: "Poisoned", DurationType: DurationRounds, AttackDisadvantage: true},
	} {
		r.Register(d)
	}
	return r
}
