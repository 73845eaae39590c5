package bt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownType is wrapped by a ConstructionError for an unregistered node type.
var ErrUnknownType = errors.New("unknown node type")

// Def is the declarative form of one node.
type Def struct {
	Type     string    `yaml:"type"`
	Name     string    `yaml:"name,omitempty"`
	Params   yaml.Node `yaml:"params,omitempty"`
	Children []Def     `yaml:"children,omitempty"`
}

// ConstructionError reports a node that could not be built. It aborts the
// whole tree.
type ConstructionError struct {
	Path string
	Type string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("bt: building %s (%s): %v", e.Path, e.Type, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// Params holds a node's raw arguments until a constructor decodes them.
type Params struct{ node *yaml.Node }

// Decode strictly decodes the arguments into out: unknown keys are an error.
// Absent arguments leave out untouched.
func (p Params) Decode(out any) error {
	if p.node == nil || p.node.Kind == 0 {
		return nil
	}
	raw, err := yaml.Marshal(p.node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Constructor builds a node from its arguments and already-built children.
type Constructor[B any] func(name string, p Params, children []Node[B]) (Node[B], error)

type kind int

const (
	leafKind kind = iota
	unaryKind
	compositeKind
)

type entry[B any] struct {
	build Constructor[B]
	kind  kind
}

// Registry maps node type names to constructors.
//
// Invariant: each type name is registered at most once.
type Registry[B any] struct {
	ctors map[string]entry[B]
	inst  Instrumentation
}

// NewRegistry returns a Registry preloaded with the composite types sequence,
// selector, parallel, inverter and succeeder.
func NewRegistry[B any](inst Instrumentation) *Registry[B] {
	r := &Registry[B]{ctors: make(map[string]entry[B]), inst: inst.withDefaults()}
	r.register("sequence", compositeKind, func(name string, _ Params, ch []Node[B]) (Node[B], error) {
		return &Sequence[B]{Label: name, Nodes: ch}, nil
	})
	r.register("selector", compositeKind, func(name string, _ Params, ch []Node[B]) (Node[B], error) {
		return &Selector[B]{Label: name, Nodes: ch}, nil
	})
	r.register("parallel", compositeKind, func(name string, p Params, ch []Node[B]) (Node[B], error) {
		args := struct {
			Policy Policy `yaml:"policy"`
		}{Policy: RequireAll}
		if err := p.Decode(&args); err != nil {
			return nil, err
		}
		if err := args.Policy.Validate(); err != nil {
			return nil, err
		}
		return &Parallel[B]{Label: name, Policy: args.Policy, Nodes: ch}, nil
	})
	r.register("inverter", unaryKind, func(name string, _ Params, ch []Node[B]) (Node[B], error) {
		return &Inverter[B]{Label: name, Child: ch[0]}, nil
	})
	r.register("succeeder", unaryKind, func(name string, _ Params, ch []Node[B]) (Node[B], error) {
		return &Succeeder[B]{Label: name, Child: ch[0]}, nil
	})
	return r
}

func (r *Registry[B]) register(typ string, k kind, c Constructor[B]) {
	if typ == "" || c == nil {
		panic("bt.Registry.Register: precondition violated: type and constructor required")
	}
	if _, dup := r.ctors[typ]; dup {
		panic(fmt.Sprintf("bt.Registry.Register: node type %q already registered", typ))
	}
	r.ctors[typ] = entry[B]{build: c, kind: k}
}

// RegisterComposite adds a node type that takes one or more children.
//
// Precondition: typ is non-empty and not yet registered.
func (r *Registry[B]) RegisterComposite(typ string, c Constructor[B]) {
	r.register(typ, compositeKind, c)
}

// Validator is implemented by leaf argument structs that check themselves.
type Validator interface {
	Validate() error
}

// RegisterLeaf adds a leaf type whose arguments decode strictly into P. P is
// validated once here, at construction, never during a tick.
//
// Precondition: typ is non-empty and not yet registered.
func RegisterLeaf[B, P any](r *Registry[B], typ string, build func(name string, args P) (Node[B], error)) {
	r.register(typ, leafKind, func(name string, p Params, _ []Node[B]) (Node[B], error) {
		var args P
		if err := p.Decode(&args); err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		if v, ok := any(&args).(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("params: %w", err)
			}
		}
		return build(name, args)
	})
}

// Types returns the registered type names in sorted order.
func (r *Registry[B]) Types() []string {
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build constructs the tree described by def. Every node is wrapped in an
// Instrumented decorator labelled with tree.
//
// Postcondition: on error the returned error is a *ConstructionError and no
// node is returned.
func (r *Registry[B]) Build(tree string, def Def) (Node[B], error) {
	return r.build(tree, def, tree)
}

func (r *Registry[B]) build(tree string, def Def, path string) (Node[B], error) {
	fail := func(err error) (Node[B], error) {
		return nil, &ConstructionError{Path: path, Type: def.Type, Err: err}
	}
	e, ok := r.ctors[def.Type]
	if !ok {
		return fail(fmt.Errorf("%w %q", ErrUnknownType, def.Type))
	}
	switch {
	case e.kind == leafKind && len(def.Children) > 0:
		return fail(errors.New("leaf nodes take no children"))
	case e.kind == unaryKind && len(def.Children) != 1:
		return fail(fmt.Errorf("expects exactly one child, got %d", len(def.Children)))
	case e.kind == compositeKind && len(def.Children) == 0:
		return fail(errors.New("composite nodes need at least one child"))
	}

	children := make([]Node[B], 0, len(def.Children))
	for i, cd := range def.Children {
		c, err := r.build(tree, cd, fmt.Sprintf("%s/%s[%d]", path, cd.Type, i))
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	name := def.Name
	if name == "" {
		name = def.Type
	}
	n, err := e.build(name, Params{node: &def.Params}, slices.Clip(children))
	if err != nil {
		return fail(err)
	}
	return Instrument(n, tree, path, r.inst), nil
}
