package sim

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent serialises e with its discriminant.
func EncodeEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("sim.EncodeEvent: %w", err)
	}
	return json.Marshal(envelope{Kind: e.Kind(), Payload: payload})
}

// DecodeEvent parses data written by EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("sim.DecodeEvent: %w", err)
	}
	var (
		e   Event
		err error
	)
	switch env.Kind {
	case KindAttack:
		e, err = decode[Attack](env.Payload)
	case KindDealDamage:
		e, err = decode[DealDamage](env.Payload)
	case KindHeal:
		e, err = decode[Heal](env.Payload)
	case KindCastSpell:
		e, err = decode[CastSpell](env.Payload)
	case KindMove:
		e, err = decode[Move](env.Payload)
	case KindUseFeature:
		e, err = decode[UseFeature](env.Payload)
	case KindDodge:
		e, err = decode[Dodge](env.Payload)
	case KindHelp:
		e, err = decode[Help](env.Payload)
	case KindHide:
		e, err = decode[Hide](env.Payload)
	case KindSearch:
		e, err = decode[Search](env.Payload)
	case KindApplyCondition:
		e, err = decode[ApplyCondition](env.Payload)
	case KindResolveSave:
		e, err = decode[ResolveSave](env.Payload)
	case KindSetSquadTarget:
		e, err = decode[SetSquadTarget](env.Payload)
	case KindSetStrategy:
		e, err = decode[SetStrategy](env.Payload)
	case KindRemoveCombatant:
		e, err = decode[RemoveCombatant](env.Payload)
	case KindStartTurn:
		e, err = decode[StartTurn](env.Payload)
	case KindEndTurn:
		e, err = decode[EndTurn](env.Payload)
	case KindLog:
		e, err = decode[Log](env.Payload)
	default:
		return nil, fmt.Errorf("sim.DecodeEvent: unknown kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("sim.DecodeEvent: %s: %w", env.Kind, err)
	}
	return e, nil
}

func decode[T Event](raw json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
