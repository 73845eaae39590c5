package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/battlefield"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// Line holds the verb and arguments of one command line.
type Line struct {
	// Verb is the first word of the input, lowercased.
	Verb string
	// Args are the remaining words after the verb.
	Args []string
	// RawArgs is the raw text after the verb, preserving spacing for say.
	RawArgs string
}

// ParseLine splits a command line into a verb and arguments.
//
// Postcondition: Returns a Line. If line is blank, Verb is empty.
func ParseLine(line string) Line {
	line = strings.TrimSpace(line)
	if line == "" {
		return Line{}
	}
	verb, rest, found := strings.Cut(line, " ")
	if !found {
		return Line{Verb: strings.ToLower(line)}
	}
	rest = strings.TrimSpace(rest)
	var args []string
	if rest != "" {
		args = strings.Fields(rest)
	}
	return Line{Verb: strings.ToLower(verb), Args: args, RawArgs: rest}
}

// Action is what one command line asks for.
type Action struct {
	Events []sim.Event
	// End closes the actor's turn after Events.
	End bool
}

// ErrUnknownVerb is returned for a verb no command answers to.
var ErrUnknownVerb = errors.New("unknown verb")

type verb struct {
	name    string
	aliases []string
	usage   string
	build   func(actor string, prof sim.Profile, l Line) (Action, error)
}

// verbs maps names and aliases to their definitions.
type verbs map[string]*verb

func newVerbs(defs []verb) (verbs, error) {
	out := make(verbs)
	for i := range defs {
		v := &defs[i]
		for _, key := range append([]string{v.name}, v.aliases...) {
			if prev, dup := out[key]; dup {
				return nil, fmt.Errorf("verb %q claimed by %q and %q", key, prev.name, v.name)
			}
			out[key] = v
		}
	}
	return out, nil
}

var defaultVerbs = mustVerbs(builtinVerbs())

func mustVerbs(defs []verb) verbs {
	v, err := newVerbs(defs)
	if err != nil {
		panic(fmt.Sprintf("building verb table: %v", err))
	}
	return v
}

// Interpret turns one command line from actor into an Action. prof supplies
// the actor's abilities so an omitted ability can be chosen.
func Interpret(actor string, prof sim.Profile, line string) (Action, error) {
	l := ParseLine(line)
	if l.Verb == "" {
		return Action{}, nil
	}
	v, ok := defaultVerbs[l.Verb]
	if !ok {
		return Action{}, fmt.Errorf("%w %q", ErrUnknownVerb, l.Verb)
	}
	a, err := v.build(actor, prof, l)
	if err != nil {
		return Action{}, fmt.Errorf("%s: %w (usage: %s)", v.name, err, v.usage)
	}
	return a, nil
}

func builtinVerbs() []verb {
	return []verb{
		{name: "attack", aliases: []string{"a", "hit"}, usage: "attack <target> [ability]", build: buildAttack},
		{name: "cast", aliases: []string{"c"}, usage: "cast <ability> <target> | cast <ability> at <x> <y>", build: buildCast},
		{name: "move", aliases: []string{"m", "go"}, usage: "move <x> <y>", build: buildMove},
		{name: "use", aliases: []string{"u"}, usage: "use <ability> [target]", build: buildUse},
		{name: "dodge", usage: "dodge", build: func(actor string, _ sim.Profile, _ Line) (Action, error) {
			return one(sim.Dodge{SourceID: actor}), nil
		}},
		{name: "help", usage: "help <ally>", build: func(actor string, _ sim.Profile, l Line) (Action, error) {
			if len(l.Args) != 1 {
				return Action{}, errors.New("expected an ally")
			}
			return one(sim.Help{SourceID: actor, AllyID: l.Args[0]}), nil
		}},
		{name: "hide", usage: "hide", build: func(actor string, _ sim.Profile, _ Line) (Action, error) {
			return one(sim.Hide{SourceID: actor}), nil
		}},
		{name: "search", usage: "search", build: func(actor string, _ sim.Profile, _ Line) (Action, error) {
			return one(sim.Search{SourceID: actor}), nil
		}},
		{name: "say", aliases: []string{"'"}, usage: "say <text>", build: func(actor string, _ sim.Profile, l Line) (Action, error) {
			if l.RawArgs == "" {
				return Action{}, errors.New("nothing to say")
			}
			return one(sim.Log{SourceID: actor, Message: l.RawArgs}), nil
		}},
		{name: "end", aliases: []string{"pass", "done"}, usage: "end", build: func(string, sim.Profile, Line) (Action, error) {
			return Action{End: true}, nil
		}},
	}
}

func one(ev sim.Event) Action { return Action{Events: []sim.Event{ev}} }

func buildAttack(actor string, prof sim.Profile, l Line) (Action, error) {
	if len(l.Args) < 1 || len(l.Args) > 2 {
		return Action{}, errors.New("expected a target and an optional ability")
	}
	id := ""
	if len(l.Args) == 2 {
		id = l.Args[1]
	} else {
		for _, a := range prof.Abilities {
			if a.IsAttack() {
				id = a.ID
				break
			}
		}
		if id == "" {
			return Action{}, errors.New("no attack ability")
		}
	}
	return one(sim.Attack{SourceID: actor, TargetID: l.Args[0], AbilityID: id}), nil
}

func buildCast(actor string, prof sim.Profile, l Line) (Action, error) {
	switch {
	case len(l.Args) == 4 && strings.EqualFold(l.Args[1], "at"):
		p, err := position(l.Args[2], l.Args[3])
		if err != nil {
			return Action{}, err
		}
		return one(sim.CastSpell{SourceID: actor, AbilityID: l.Args[0], Center: &p}), nil
	case len(l.Args) == 2:
		return one(sim.CastSpell{SourceID: actor, AbilityID: l.Args[0], TargetID: l.Args[1]}), nil
	case len(l.Args) == 1:
		if a, ok := prof.Ability(l.Args[0]); ok && a.Kind == ability.Spell && a.SelfOnly {
			return one(sim.CastSpell{SourceID: actor, AbilityID: a.ID, TargetID: actor}), nil
		}
		return Action{}, errors.New("expected a target or a point")
	default:
		return Action{}, errors.New("expected an ability and a target or a point")
	}
}

func buildMove(actor string, _ sim.Profile, l Line) (Action, error) {
	if len(l.Args) != 2 {
		return Action{}, errors.New("expected two coordinates")
	}
	p, err := position(l.Args[0], l.Args[1])
	if err != nil {
		return Action{}, err
	}
	return one(sim.Move{SourceID: actor, Destination: p}), nil
}

func buildUse(actor string, _ sim.Profile, l Line) (Action, error) {
	switch len(l.Args) {
	case 1:
		return one(sim.UseFeature{SourceID: actor, AbilityID: l.Args[0]}), nil
	case 2:
		return one(sim.UseFeature{SourceID: actor, AbilityID: l.Args[0], TargetID: l.Args[1]}), nil
	default:
		return Action{}, errors.New("expected an ability and an optional target")
	}
}

func position(xs, ys string) (battlefield.Position, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return battlefield.Position{}, fmt.Errorf("x coordinate %q: %w", xs, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return battlefield.Position{}, fmt.Errorf("y coordinate %q: %w", ys, err)
	}
	return battlefield.Pos(x, y), nil
}
