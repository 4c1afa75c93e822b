package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// globalZoneID is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no zone VM is found.
const globalZoneID = "__global__"

// EntityInfo is a snapshot of a world entity passed to Lua.
type EntityInfo struct {
	ID      string
	Name    string
	Kind    string // "player" or "npc"
	Level   int
	X, Y, Z float64
	Alive   bool
}

// zoneVM is one LState and the lock that serializes every call into it.
type zoneVM struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
}

// Manager owns one sandboxed LState per zone and exposes hook dispatch.
//
// Manager is safe for concurrent CallHook. Calls into the same zone are
// serialized; different zones run concurrently.
type Manager struct {
	mu     sync.RWMutex
	zones  map[string]*zoneVM
	logger *zap.Logger

	// Injected before the first LoadZone. nil = engine.* functions return nil.
	Lookup      func(id string) *EntityInfo
	PlayersNear func(id string, radius float64) []string
	AggroOf     func(npcID, targetID string) (int64, bool)
	AddAggro    func(npcID, targetID string, amount int64) error
	StateOf     func(npcID string) string
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no zones.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		zones:  make(map[string]*zoneVM),
		logger: logger,
	}
}

// LoadZone creates a sandboxed VM for zoneID, registers the engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order. A zone
// loaded twice replaces its previous VM.
//
// Precondition: zoneID must be non-empty; scriptDir must be a readable directory.
// Postcondition: Zone VM is registered; returns error on Lua load failure.
func (m *Manager) LoadZone(zoneID, scriptDir string, instLimit int) error {
	if zoneID == "" {
		return fmt.Errorf("scripting.LoadZone: zoneID must not be empty")
	}
	return m.loadInto(zoneID, scriptDir, instLimit)
}

// LoadGlobal creates the shared VM used as a CallHook fallback from any zone.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalZoneID, scriptDir, instLimit)
}

// LoadZones loads every subdirectory of root as a zone named after it.
//
// Precondition: root must be a readable directory.
// Postcondition: Returns the loaded zone IDs in lexicographic order.
func (m *Manager) LoadZones(root string, instLimit int) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scripting.LoadZones: reading %q: %w", root, err)
	}
	var zones []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadZone(e.Name(), filepath.Join(root, e.Name()), instLimit); err != nil {
			return zones, err
		}
		zones = append(zones, e.Name())
	}
	return zones, nil
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState(instLimit)
	m.RegisterModules(L)
	for _, path := range luaFiles {
		cancel := rearm(L, instLimit)
		err := L.DoFile(path)
		cancel()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}
	L.RemoveContext()

	vm := &zoneVM{L: L, instLimit: instLimit}
	m.mu.Lock()
	old := m.zones[key]
	m.zones[key] = vm
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("scripting: zone loaded",
		zap.String("zone", key),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// CallHook calls the named Lua global function in zoneID's VM, falling back
// to the global VM. Returns (LNil, nil) if the hook is not defined or no VM
// exists. Lua runtime errors, including an exhausted instruction budget, are
// logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(zoneID, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	vm, ok := m.zones[zoneID]
	if !ok {
		vm = m.zones[globalZoneID]
	}
	m.mu.RUnlock()

	if vm == nil {
		m.logger.Info("scripting: no VM for zone",
			zap.String("zone", zoneID),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.L.IsClosed() {
		return lua.LNil, nil
	}

	fn := vm.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	cancel := rearm(vm.L, vm.instLimit)
	defer func() {
		cancel()
		vm.L.RemoveContext()
	}()
	if err := vm.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("zone", zoneID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := vm.L.Get(-1)
	vm.L.Pop(1)
	return ret, nil
}

// Zones returns the loaded zone IDs, the global VM excluded.
func (m *Manager) Zones() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.zones))
	for id := range m.zones {
		if id != globalZoneID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Close releases every VM. Later CallHook calls return LNil.
func (m *Manager) Close() {
	m.mu.Lock()
	zones := m.zones
	m.zones = make(map[string]*zoneVM)
	m.mu.Unlock()
	for _, vm := range zones {
		vm.mu.Lock()
		vm.L.Close()
		vm.mu.Unlock()
	}
}
