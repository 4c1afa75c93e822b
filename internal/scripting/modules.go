package scripting

import (
	"math"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the engine.log, engine.npc and engine.world
// tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "npc", m.npcModule(L))
	L.SetField(engine, "world", m.worldModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, fn := range levels {
		fn := fn
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (m *Manager) npcModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "aggro", L.NewFunction(func(L *lua.LState) int {
		if m.AggroOf == nil {
			L.Push(lua.LNil)
			return 1
		}
		score, ok := m.AggroOf(L.CheckString(1), L.CheckString(2))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(score))
		return 1
	}))
	L.SetField(mod, "add_aggro", L.NewFunction(func(L *lua.LState) int {
		if m.AddAggro == nil {
			L.Push(lua.LFalse)
			return 1
		}
		npcID, targetID := L.CheckString(1), L.CheckString(2)
		amount, ok := aggroAmount(float64(L.CheckNumber(3)))
		if !ok {
			m.logger.Debug("scripting: add_aggro amount is not a number", zap.String("npc", npcID))
			L.Push(lua.LFalse)
			return 1
		}
		err := m.AddAggro(npcID, targetID, amount)
		if err != nil {
			m.logger.Debug("scripting: add_aggro rejected", zap.Error(err))
		}
		L.Push(lua.LBool(err == nil))
		return 1
	}))
	L.SetField(mod, "state", L.NewFunction(func(L *lua.LState) int {
		if m.StateOf == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(m.StateOf(L.CheckString(1))))
		return 1
	}))
	return mod
}

// aggroAmount converts a Lua number to an aggro amount, saturating at the
// int64 bounds. NaN is rejected.
func aggroAmount(f float64) (int64, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f <= math.MinInt64:
		return math.MinInt64, true
	default:
		return int64(f), true
	}
}

func (m *Manager) worldModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "entity", L.NewFunction(func(L *lua.LState) int {
		info := m.lookup(L.CheckString(1))
		if info == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(entityToTable(L, info))
		return 1
	}))
	L.SetField(mod, "distance", L.NewFunction(func(L *lua.LState) int {
		a, b := m.lookup(L.CheckString(1)), m.lookup(L.CheckString(2))
		if a == nil || b == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(distance(a, b)))
		return 1
	}))
	L.SetField(mod, "players_near", L.NewFunction(func(L *lua.LState) int {
		if m.PlayersNear == nil {
			L.Push(lua.LNil)
			return 1
		}
		ids := m.PlayersNear(L.CheckString(1), float64(L.CheckNumber(2)))
		t := L.CreateTable(len(ids), 0)
		for _, id := range ids {
			t.Append(lua.LString(id))
		}
		L.Push(t)
		return 1
	}))
	return mod
}

func (m *Manager) lookup(id string) *EntityInfo {
	if m.Lookup == nil {
		return nil
	}
	return m.Lookup(id)
}

// entityToTable converts info into a Lua table with fields id, name, kind,
// level, x, y, z and alive.
func entityToTable(L *lua.LState, info *EntityInfo) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(info.ID))
	L.SetField(t, "name", lua.LString(info.Name))
	L.SetField(t, "kind", lua.LString(info.Kind))
	L.SetField(t, "level", lua.LNumber(info.Level))
	L.SetField(t, "x", lua.LNumber(info.X))
	L.SetField(t, "y", lua.LNumber(info.Y))
	L.SetField(t, "z", lua.LNumber(info.Z))
	L.SetField(t, "alive", lua.LBool(info.Alive))
	return t
}

func distance(a, b *EntityInfo) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
