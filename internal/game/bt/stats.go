package bt

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSlowThreshold is the single-tick duration above which a node is
// reported as slow.
const DefaultSlowThreshold = 5 * time.Millisecond

// Stats are the execution counters of one node.
type Stats struct {
	Ticks     int64
	Total     time.Duration
	Max       time.Duration
	Successes int64
	Failures  int64
	Running   int64
	Slow      int64
}

// Mean returns the average tick duration.
func (s Stats) Mean() time.Duration {
	if s.Ticks == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Ticks)
}

// Instrumentation configures the stats decorator applied by Registry.Build.
type Instrumentation struct {
	Logger *zap.Logger
	// SlowThreshold of zero means DefaultSlowThreshold.
	SlowThreshold time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (in Instrumentation) withDefaults() Instrumentation {
	if in.Logger == nil {
		in.Logger = zap.NewNop()
	}
	if in.SlowThreshold <= 0 {
		in.SlowThreshold = DefaultSlowThreshold
	}
	if in.Now == nil {
		in.Now = time.Now
	}
	return in
}

// Instrumented records Stats for the node it wraps and logs a warning when a
// single tick exceeds the slow threshold. A slow tick is not a failure.
//
// Instrumented is safe for concurrent use; a built tree may be ticked by
// several encounters at once.
type Instrumented[B any] struct {
	inner Node[B]
	tree  string
	path  string
	in    Instrumentation

	mu    sync.Mutex
	stats Stats
}

// Instrument wraps n. tree and path identify the node in log output.
func Instrument[B any](n Node[B], tree, path string, in Instrumentation) *Instrumented[B] {
	return &Instrumented[B]{inner: n, tree: tree, path: path, in: in.withDefaults()}
}

func (i *Instrumented[B]) Name() string { return i.inner.Name() }

// Path returns the node's location in its tree, e.g. "brute/selector[0]/attack_target[2]".
func (i *Instrumented[B]) Path() string { return i.path }

// Unwrap returns the decorated node.
func (i *Instrumented[B]) Unwrap() Node[B] { return i.inner }

// Children returns the wrapped node's children, if any.
func (i *Instrumented[B]) Children() []Node[B] {
	if p, ok := i.inner.(parent[B]); ok {
		return p.Children()
	}
	return nil
}

func (i *Instrumented[B]) Tick(b B) Status {
	start := i.in.Now()
	st := i.inner.Tick(b)
	d := i.in.Now().Sub(start)
	slow := d > i.in.SlowThreshold

	i.mu.Lock()
	i.stats.Ticks++
	i.stats.Total += d
	i.stats.Max = max(i.stats.Max, d)
	switch st {
	case Success:
		i.stats.Successes++
	case Failure:
		i.stats.Failures++
	case Running:
		i.stats.Running++
	}
	if slow {
		i.stats.Slow++
	}
	i.mu.Unlock()

	if slow {
		i.in.Logger.Warn("slow behavior tree node",
			zap.String("tree", i.tree),
			zap.String("node", i.inner.Name()),
			zap.String("path", i.path),
			zap.Duration("duration", d),
			zap.Duration("threshold", i.in.SlowThreshold),
		)
	}
	return st
}

// Stats returns a snapshot of the counters.
func (i *Instrumented[B]) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// NodeStats pairs a node's location with its counters.
type NodeStats struct {
	Path  string
	Name  string
	Stats Stats
}

// Collect walks the tree rooted at root depth-first and returns the counters
// of every instrumented node.
func Collect[B any](root Node[B]) []NodeStats {
	var out []NodeStats
	var walk func(n Node[B])
	walk = func(n Node[B]) {
		if in, ok := n.(*Instrumented[B]); ok {
			out = append(out, NodeStats{Path: in.Path(), Name: in.Name(), Stats: in.Stats()})
		}
		if p, ok := n.(parent[B]); ok {
			for _, c := range p.Children() {
				walk(c)
			}
		}
	}
	walk(root)
	return out
}
