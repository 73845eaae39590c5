// Package bt is a small behavior-tree framework. Trees are built once from a
// declarative definition and are stateless between ticks: everything a tick
// needs lives in the blackboard value B passed to Tick.
package bt

// Status is the outcome of one node evaluation.
type Status int

const (
	Failure Status = iota
	Success
	Running
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Node is one behavior-tree node evaluated against a blackboard of type B.
type Node[B any] interface {
	Name() string
	Tick(b B) Status
}

// Func adapts a function into a leaf node.
type Func[B any] struct {
	Label string
	Fn    func(b B) Status
}

func (f Func[B]) Name() string { return f.Label }

func (f Func[B]) Tick(b B) Status { return f.Fn(b) }

// Condition adapts a predicate into a leaf that succeeds when it holds.
func Condition[B any](name string, pred func(b B) bool) Node[B] {
	return Func[B]{Label: name, Fn: func(b B) Status {
		if pred(b) {
			return Success
		}
		return Failure
	}}
}

// parent is implemented by nodes that own children.
type parent[B any] interface {
	Children() []Node[B]
}
