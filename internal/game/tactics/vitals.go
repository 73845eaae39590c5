package tactics

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/tactics/internal/game/bt"
)

// HealthArgs configures IsHealthLow.
type HealthArgs struct {
	// Threshold is a hit point percentage. Defaults to 30 when unset; 0 never fires.
	Threshold *float64 `yaml:"threshold"`
}

func (a *HealthArgs) Validate() error {
	if a.Threshold != nil && (*a.Threshold < 0 || *a.Threshold > 100) {
		return errors.New("threshold must be within [0, 100]")
	}
	return nil
}

// IsHealthLow succeeds when the actor is below the threshold percentage.
func IsHealthLow(args HealthArgs) bt.Node[*Blackboard] {
	threshold := orDefault(args.Threshold, 30)
	return bt.Condition("is_health_low", func(b *Blackboard) bool {
		return b.Instance.HPPercent() < threshold
	})
}

// ScriptArgs configures Script.
type ScriptArgs struct {
	Hook string `yaml:"hook"`
}

func (a *ScriptArgs) Validate() error {
	if a.Hook == "" {
		return errors.New("hook must not be empty")
	}
	return nil
}

// Script calls a Lua hook and succeeds when it returns true. The hook receives
// the actor's token ID, its health percentage, the number of enemies and the
// current target's ID ("" when none). A missing hook, a script error or no
// script engine is Failure.
func Script(args ScriptArgs) bt.Node[*Blackboard] {
	return bt.Condition("script:"+args.Hook, func(b *Blackboard) bool {
		if b.Scripts == nil {
			return false
		}
		target := ""
		if b.Target != nil {
			target = b.Target.ID
		}
		v, err := b.Scripts.CallHook(b.Scope, args.Hook,
			lua.LString(b.Self.ID),
			lua.LNumber(b.Instance.HPPercent()),
			lua.LNumber(len(b.Enemies)),
			lua.LString(target))
		return err == nil && v == lua.LTrue
	})
}
