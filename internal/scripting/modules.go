package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/tactics/internal/game/dice"
)

// RegisterModules installs the engine global into L:
//
//	engine.log.debug|info|warn|error(msg)
//	engine.dice.roll(expr) -> {total, modifier, dice = {...}}
//	engine.dice.d20() -> number
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"debug": m.logAt(zap.DebugLevel),
		"info":  m.logAt(zap.InfoLevel),
		"warn":  m.logAt(zap.WarnLevel),
		"error": m.logAt(zap.ErrorLevel),
	}))
	L.SetField(engine, "dice", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"roll": m.luaRoll,
		"d20": func(L *lua.LState) int {
			L.Push(lua.LNumber(m.roller.Roll(dice.D20).Total()))
			return 1
		},
	}))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logAt(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		if ce := m.logger.Check(level, L.CheckString(1)); ce != nil {
			ce.Write(zap.String("source", "lua"))
		}
		return 0
	}
}

func (m *Manager) luaRoll(L *lua.LState) int {
	res, err := m.roller.RollExpr(L.CheckString(1))
	if err != nil {
		L.RaiseError("engine.dice.roll: %v", err)
		return 0
	}
	faces := L.NewTable()
	for _, d := range res.Dice {
		faces.Append(lua.LNumber(d))
	}
	t := L.NewTable()
	t.RawSetString("total", lua.LNumber(res.Total()))
	t.RawSetString("modifier", lua.LNumber(res.Modifier))
	t.RawSetString("dice", faces)
	L.Push(t)
	return 1
}
