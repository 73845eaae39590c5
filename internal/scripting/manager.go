package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tactics/internal/game/dice"
)

// GlobalScope is the reserved scope for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when the requested scope has none.
const GlobalScope = "__global__"

// vm is one sandboxed LState. LStates are single-threaded, so every use
// holds mu.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed LState per scope and exposes hook dispatch.
//
// Manager is safe for concurrent use. Calls into the same scope are
// serialized; different scopes run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no scopes loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil || logger == nil {
		panic("scripting.NewManager: precondition violated: roller and logger must be non-nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		roller: roller,
		logger: logger,
	}
}

// LoadScope creates a sandboxed VM for scope, registers the engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order. A VM
// already loaded under scope is replaced.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: the VM is registered; returns error on Lua load failure.
func (m *Manager) LoadScope(scope, scriptDir string, instLimit int) error {
	if scope == "" {
		return fmt.Errorf("scripting: scope must not be empty")
	}
	return m.loadInto(scope, scriptDir, instLimit)
}

// LoadGlobal loads scriptDir into the GlobalScope VM.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: the global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(GlobalScope, scriptDir, instLimit)
}

func (m *Manager) loadInto(scope, scriptDir string, instLimit int) error {
	limit := limitOrDefault(instLimit)
	L := NewSandboxedState(limit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, scope, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, scope, err)
		}
	}

	m.mu.Lock()
	old := m.vms[scope]
	m.vms[scope] = &vm{L: L, limit: limit}
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("scripting: scope loaded", zap.String("scope", scope), zap.Int("files", len(luaFiles)))
	return nil
}

// Unload closes the VM for scope. Unknown scopes are ignored.
func (m *Manager) Unload(scope string) {
	m.mu.Lock()
	v, ok := m.vms[scope]
	delete(m.vms, scope)
	m.mu.Unlock()
	if ok {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}

// Close closes every VM.
//
// Postcondition: no scopes remain; CallHook returns (LNil, nil) afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}

// CallHook calls the named Lua global function in scope's VM. If the scope
// has no VM, the GlobalScope VM is tried as a fallback. Returns (LNil, nil)
// if the hook is not defined or no VM exists. Lua runtime errors, including
// exceeding the instruction limit, are logged at Warn level and never
// propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.vms[scope]
	if !ok {
		v = m.vms[GlobalScope]
	}
	m.mu.RUnlock()

	if v == nil {
		m.logger.Info("scripting: no VM for scope",
			zap.String("scope", scope),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.L.IsClosed() {
		return lua.LNil, nil
	}

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	defer arm(v.L, v.limit)()

	if err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}
