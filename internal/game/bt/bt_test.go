package bt_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactics/internal/game/bt"
)

// trace is the test blackboard: leaves append their names when ticked.
type trace struct{ ticked []string }

func leaf(name string, st bt.Status) bt.Node[*trace] {
	return bt.Func[*trace]{Label: name, Fn: func(b *trace) bt.Status {
		b.ticked = append(b.ticked, name)
		return st
	}}
}

func TestSequence_StopsAtFirstNonSuccess(t *testing.T) {
	b := &trace{}
	seq := &bt.Sequence[*trace]{Nodes: []bt.Node[*trace]{
		leaf("a", bt.Success), leaf("b", bt.Running), leaf("c", bt.Success),
	}}
	assert.Equal(t, bt.Running, seq.Tick(b))
	assert.Equal(t, []string{"a", "b"}, b.ticked)
}

func TestSelector_StopsAtFirstNonFailure(t *testing.T) {
	b := &trace{}
	sel := &bt.Selector[*trace]{Nodes: []bt.Node[*trace]{
		leaf("a", bt.Failure), leaf("b", bt.Success), leaf("c", bt.Success),
	}}
	assert.Equal(t, bt.Success, sel.Tick(b))
	assert.Equal(t, []string{"a", "b"}, b.ticked)
}

func TestSelector_AllFail(t *testing.T) {
	sel := &bt.Selector[*trace]{Nodes: []bt.Node[*trace]{leaf("a", bt.Failure), leaf("b", bt.Failure)}}
	assert.Equal(t, bt.Failure, sel.Tick(&trace{}))
}

func TestParallel_Policies(t *testing.T) {
	cases := []struct {
		name   string
		policy bt.Policy
		kids   []bt.Status
		want   bt.Status
	}{
		{"one succeeds", bt.RequireOne, []bt.Status{bt.Failure, bt.Success}, bt.Success},
		{"none succeed", bt.RequireOne, []bt.Status{bt.Failure, bt.Failure}, bt.Failure},
		{"all succeed", bt.RequireAll, []bt.Status{bt.Success, bt.Success}, bt.Success},
		{"not all succeed", bt.RequireAll, []bt.Status{bt.Success, bt.Failure}, bt.Failure},
		{"running wins under require_one", bt.RequireOne, []bt.Status{bt.Success, bt.Running}, bt.Running},
		{"running wins under require_all", bt.RequireAll, []bt.Status{bt.Success, bt.Running}, bt.Running},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &trace{}
			p := &bt.Parallel[*trace]{Policy: tc.policy}
			for i, st := range tc.kids {
				p.Nodes = append(p.Nodes, leaf(string(rune('a'+i)), st))
			}
			assert.Equal(t, tc.want, p.Tick(b))
			assert.Len(t, b.ticked, len(tc.kids), "parallel ticks every child")
		})
	}
}

func TestInverter(t *testing.T) {
	assert.Equal(t, bt.Failure, (&bt.Inverter[*trace]{Child: leaf("a", bt.Success)}).Tick(&trace{}))
	assert.Equal(t, bt.Success, (&bt.Inverter[*trace]{Child: leaf("a", bt.Failure)}).Tick(&trace{}))
	assert.Equal(t, bt.Running, (&bt.Inverter[*trace]{Child: leaf("a", bt.Running)}).Tick(&trace{}))
}

type waitArgs struct {
	Label  string `yaml:"label"`
	Status string `yaml:"status"`
}

func (a *waitArgs) Validate() error {
	switch a.Status {
	case "success", "failure", "running":
		return nil
	}
	return errors.New("status must be success, failure or running")
}

func registry(in bt.Instrumentation) *bt.Registry[*trace] {
	r := bt.NewRegistry[*trace](in)
	bt.RegisterLeaf(r, "emit", func(name string, a waitArgs) (bt.Node[*trace], error) {
		st := map[string]bt.Status{"success": bt.Success, "failure": bt.Failure, "running": bt.Running}[a.Status]
		return leaf(a.Label, st), nil
	})
	return r
}

func parse(t *testing.T, src string) bt.Def {
	t.Helper()
	var d bt.Def
	require.NoError(t, yaml.Unmarshal([]byte(src), &d))
	return d
}

func TestRegistry_BuildsDeclaredTree(t *testing.T) {
	def := parse(t, `
type: selector
children:
  - type: sequence
    children:
      - type: emit
        params: {label: a, status: success}
      - type: emit
        params: {label: b, status: failure}
  - type: emit
    params: {label: c, status: success}
`)
	root, err := registry(bt.Instrumentation{}).Build("test", def)
	require.NoError(t, err)
	b := &trace{}
	assert.Equal(t, bt.Success, root.Tick(b))
	assert.Equal(t, []string{"a", "b", "c"}, b.ticked)

	stats := bt.Collect(root)
	require.Len(t, stats, 5)
	assert.Equal(t, "test", stats[0].Path)
	assert.Equal(t, "test/sequence[0]/emit[1]", stats[3].Path)
	assert.EqualValues(t, 1, stats[3].Stats.Failures)
	assert.EqualValues(t, 1, stats[0].Stats.Successes)
}

func TestRegistry_UnknownTypeFailsFast(t *testing.T) {
	def := parse(t, `
type: sequence
children:
  - type: teleport
`)
	_, err := registry(bt.Instrumentation{}).Build("test", def)
	require.Error(t, err)
	var ce *bt.ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "test/teleport[0]", ce.Path)
	assert.ErrorIs(t, err, bt.ErrUnknownType)
}

func TestRegistry_RejectsUnknownParams(t *testing.T) {
	def := parse(t, `
type: emit
params: {label: a, status: success, colour: red}
`)
	_, err := registry(bt.Instrumentation{}).Build("test", def)
	var ce *bt.ConstructionError
	require.ErrorAs(t, err, &ce)
}

func TestRegistry_RunsParamValidation(t *testing.T) {
	def := parse(t, `
type: emit
params: {label: a, status: maybe}
`)
	_, err := registry(bt.Instrumentation{}).Build("test", def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status must be")
}

func TestRegistry_ShapeChecks(t *testing.T) {
	r := registry(bt.Instrumentation{})
	_, err := r.Build("t", bt.Def{Type: "sequence"})
	assert.Error(t, err, "composite without children")
	_, err = r.Build("t", bt.Def{Type: "inverter", Children: []bt.Def{{Type: "emit"}, {Type: "emit"}}})
	assert.Error(t, err, "inverter with two children")
	_, err = r.Build("t", parse(t, "type: emit\nparams: {status: success}\nchildren: [{type: emit}]"))
	assert.Error(t, err, "leaf with children")
	_, err = r.Build("t", parse(t, "type: parallel\nparams: {policy: most}\nchildren: [{type: emit, params: {status: success}}]"))
	assert.Error(t, err, "bad parallel policy")
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := registry(bt.Instrumentation{})
	assert.Panics(t, func() {
		bt.RegisterLeaf(r, "emit", func(string, waitArgs) (bt.Node[*trace], error) { return nil, nil })
	})
}

func TestInstrumented_WarnsOnSlowTick(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	now := time.Unix(0, 0)
	clock := func() time.Time {
		now = now.Add(4 * time.Millisecond)
		return now
	}
	in := bt.Instrumentation{Logger: zap.New(core), SlowThreshold: 3 * time.Millisecond, Now: clock}
	n := bt.Instrument(leaf("a", bt.Success), "brute", "brute", in)

	assert.Equal(t, bt.Success, n.Tick(&trace{}))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "slow behavior tree node", entry.Message)
	assert.Equal(t, "brute", entry.ContextMap()["tree"])
	assert.EqualValues(t, 1, n.Stats().Slow)
	assert.Equal(t, 4*time.Millisecond, n.Stats().Mean())
}

func TestProperty_SequenceSucceedsIffAllChildrenSucceed(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		statuses := rapid.SliceOfN(rapid.SampledFrom([]bt.Status{bt.Success, bt.Failure, bt.Running}), 1, 8).Draw(rt, "statuses")
		seq := &bt.Sequence[*trace]{}
		sel := &bt.Selector[*trace]{}
		allSuccess, allFailure := true, true
		for i, st := range statuses {
			seq.Nodes = append(seq.Nodes, leaf(string(rune('a'+i)), st))
			sel.Nodes = append(sel.Nodes, leaf(string(rune('a'+i)), st))
			allSuccess = allSuccess && st == bt.Success
			allFailure = allFailure && st == bt.Failure
		}
		if got := seq.Tick(&trace{}) == bt.Success; got != allSuccess {
			rt.Fatalf("sequence success = %v, want %v for %v", got, allSuccess, statuses)
		}
		if got := sel.Tick(&trace{}) == bt.Failure; got != allFailure {
			rt.Fatalf("selector failure = %v, want %v for %v", got, allFailure, statuses)
		}
	})
}
