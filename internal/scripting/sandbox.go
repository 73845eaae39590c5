// Package scripting runs sandboxed GopherLua hooks for behavior-tree script
// leaves. It knows nothing about the battlefield; hooks receive plain values
// and may call the engine.* modules for logging and dice.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit caps the opcodes one load or hook call may run
// when no limit is configured.
const DefaultInstructionLimit = 100_000

// removedGlobals are stripped from the base library. print is among them
// because stdout carries the encounter transcript.
var removedGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "collectgarbage",
	"require", "module", "newproxy", "print",
}

// budget cancels itself after a fixed number of Done calls. GopherLua polls
// Done once per opcode while a context is installed, which turns the count
// into an instruction limit.
type budget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func (b *budget) Done() <-chan struct{} {
	if b.left.Add(-1) < 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// arm installs a fresh budget of ops opcodes on L. The returned func releases
// it and removes the context.
func arm(L *lua.LState, ops int) func() {
	ctx, cancel := context.WithCancel(context.Background())
	b := &budget{Context: ctx, cancel: cancel}
	b.left.Store(int64(ops))
	L.SetContext(b)
	return func() {
		cancel()
		L.RemoveContext()
	}
}

func limitOrDefault(instLimit int) int {
	if instLimit <= 0 {
		return DefaultInstructionLimit
	}
	return instLimit
}

// NewSandboxedState returns an LState with only the base, table, string and
// math libraries, without removedGlobals, and armed with an instruction
// budget for whatever it runs first. Manager re-arms the budget for every
// hook call.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: The caller owns the LState and must Close it.
func NewSandboxedState(instLimit int) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath} {
		open(L)
	}
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	arm(L, limitOrDefault(instLimit))
	return L
}
