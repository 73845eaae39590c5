package command

import (
	"github.com/cory-johannsen/tactics/internal/game/ability"
	"github.com/cory-johannsen/tactics/internal/game/sim"
)

// CommandsFor maps an event to the commands that apply it. Log events and
// unrecognised events map to no commands.
//
// An NPC multiattack whose template is available in static is expanded here
// into one AttackCommand per listed attack; any other feature use is left to
// UseFeatureCommand.
func CommandsFor(e sim.Event, s sim.State, static sim.StaticData) []Command {
	switch ev := e.(type) {
	case sim.Attack:
		return []Command{AttackCommand{E: ev}}
	case sim.DealDamage:
		return []Command{DealDamageCommand{E: ev}}
	case sim.Heal:
		return []Command{HealCommand{E: ev}}
	case sim.CastSpell:
		return []Command{CastSpellCommand{E: ev}}
	case sim.Move:
		return []Command{MoveCommand{E: ev}}
	case sim.UseFeature:
		if cmds := expandMultiattack(ev, s, static); cmds != nil {
			return cmds
		}
		return []Command{UseFeatureCommand{E: ev}}
	case sim.Dodge:
		return []Command{DodgeCommand{E: ev}}
	case sim.Help:
		return []Command{HelpCommand{E: ev}}
	case sim.Hide:
		return []Command{HideCommand{E: ev}}
	case sim.Search:
		return []Command{SearchCommand{E: ev}}
	case sim.ApplyCondition:
		return []Command{ApplyConditionCommand{E: ev}}
	case sim.ResolveSave:
		return []Command{ResolveSaveCommand{E: ev}}
	case sim.SetSquadTarget:
		return []Command{SetSquadTargetCommand{E: ev}}
	case sim.SetStrategy:
		return []Command{SetStrategyCommand{E: ev}}
	case sim.RemoveCombatant:
		return []Command{RemoveCombatantCommand{E: ev}}
	case sim.StartTurn:
		return []Command{StartTurnCommand{E: ev}}
	case sim.EndTurn:
		return []Command{EndTurnCommand{E: ev}}
	case sim.Log:
		return nil
	default:
		return nil
	}
}

func expandMultiattack(ev sim.UseFeature, s sim.State, static sim.StaticData) []Command {
	if static == nil || ev.TargetID == "" {
		return nil
	}
	inst, ok := s.NPC(ev.SourceID)
	if !ok {
		return nil
	}
	tmpl, ok := static.Monster(inst.TemplateID)
	if !ok {
		return nil
	}
	a, ok := tmpl.Ability(ev.AbilityID)
	if !ok || a.Kind != ability.Feature || len(a.Multiattack) == 0 {
		return nil
	}
	cmds := make([]Command, 0, len(a.Multiattack))
	for _, id := range a.Multiattack {
		cmds = append(cmds, AttackCommand{E: sim.Attack{SourceID: ev.SourceID, TargetID: ev.TargetID, AbilityID: id}})
	}
	return cmds
}
