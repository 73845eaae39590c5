package bt

import "fmt"

// Sequence ticks children in order and returns the first non-Success status.
// It succeeds only when every child succeeds.
type Sequence[B any] struct {
	Label string
	Nodes []Node[B]
}

func (s *Sequence[B]) Name() string { return s.Label }
func (s *Sequence[B]) Children() []Node[B] { return s.Nodes }

func (s *Sequence[B]) Tick(b B) Status {
	for _, n := range s.Nodes {
		if st := n.Tick(b); st != Success {
			return st
		}
	}
	return Success
}

// Selector ticks children in order and returns the first non-Failure status.
// It fails only when every child fails.
type Selector[B any] struct {
	Label string
	Nodes []Node[B]
}

func (s *Selector[B]) Name() string { return s.Label }
func (s *Selector[B]) Children() []Node[B] { return s.Nodes }

func (s *Selector[B]) Tick(b B) Status {
	for _, n := range s.Nodes {
		if st := n.Tick(b); st != Failure {
			return st
		}
	}
	return Failure
}

// Policy decides when a Parallel node succeeds.
type Policy string

const (
	// RequireOne succeeds when at least one child succeeded.
	RequireOne Policy = "require_one"
	// RequireAll succeeds only when every child succeeded.
	RequireAll Policy = "require_all"
)

// Validate reports an unknown policy.
func (p Policy) Validate() error {
	if p != RequireOne && p != RequireAll {
		return fmt.Errorf("policy must be %q or %q, got %q", RequireOne, RequireAll, p)
	}
	return nil
}

// Parallel ticks every child on every tick. Any Running child makes the node
// Running; otherwise Policy decides between Success and Failure.
type Parallel[B any] struct {
	Label  string
	Policy Policy
	Nodes  []Node[B]
}

func (p *Parallel[B]) Name() string { return p.Label }
func (p *Parallel[B]) Children() []Node[B] { return p.Nodes }

func (p *Parallel[B]) Tick(b B) Status {
	succeeded, running := 0, false
	for _, n := range p.Nodes {
		switch n.Tick(b) {
		case Success:
			succeeded++
		case Running:
			running = true
		}
	}
	switch {
	case running:
		return Running
	case p.Policy == RequireAll && succeeded == len(p.Nodes):
		return Success
	case p.Policy == RequireOne && succeeded > 0:
		return Success
	default:
		return Failure
	}
}

// Inverter swaps Success and Failure. Running passes through.
type Inverter[B any] struct {
	Label string
	Child Node[B]
}

func (i *Inverter[B]) Name() string { return i.Label }
func (i *Inverter[B]) Children() []Node[B] { return []Node[B]{i.Child} }

func (i *Inverter[B]) Tick(b B) Status {
	switch st := i.Child.Tick(b); st {
	case Success:
		return Failure
	case Failure:
		return Success
	default:
		return st
	}
}

// Succeeder ticks its child and reports Success unless the child is Running.
type Succeeder[B any] struct {
	Label string
	Child Node[B]
}

func (s *Succeeder[B]) Name() string { return s.Label }
func (s *Succeeder[B]) Children() []Node[B] { return []Node[B]{s.Child} }

func (s *Succeeder[B]) Tick(b B) Status {
	if s.Child.Tick(b) == Running {
		return Running
	}
	return Success
}
