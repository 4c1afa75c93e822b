package ai

import (
	"fmt"
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ScriptCaller evaluates named Lua hooks.
type ScriptCaller interface {
	// CallHook calls a named Lua function in the given zone's VM.
	// Returns (LNil, nil) if the function is not defined.
	CallHook(zoneID, hook string, args ...lua.LValue) (lua.LValue, error)
}

// ScriptedAction delegates scoring and execution to Lua hooks named
// "<hook>_analyze" and "<hook>_execute". Both receive the npc handle, the
// current state name and the current target handle.
//
// A missing or non-numeric analyze result scores ScoreMin.
type ScriptedAction struct {
	BaseAction
	brain  *Brain
	caller ScriptCaller
	zoneID string
	hook   string
}

// NewScriptedAction creates a Lua-backed action.
//
// Precondition: brain and caller must not be nil; name and hook must be non-empty.
func NewScriptedAction(brain *Brain, caller ScriptCaller, zoneID, name, hook string, duration time.Duration) *ScriptedAction {
	if brain == nil || caller == nil {
		panic("ai.NewScriptedAction: brain and caller must not be nil")
	}
	if name == "" || hook == "" {
		panic("ai.NewScriptedAction: name and hook must not be empty")
	}
	return &ScriptedAction{
		BaseAction: NewBaseAction(name, duration),
		brain:      brain,
		caller:     caller,
		zoneID:     zoneID,
		hook:       hook,
	}
}

func (s *ScriptedAction) args() []lua.LValue {
	return []lua.LValue{
		lua.LString(s.brain.Body().ID()),
		lua.LString(s.brain.State().String()),
		lua.LString(s.brain.Target()),
	}
}

// Analyze calls "<hook>_analyze".
func (s *ScriptedAction) Analyze() (Score, error) {
	v, err := s.caller.CallHook(s.zoneID, s.hook+"_analyze", s.args()...)
	if err != nil {
		return ScoreMin, fmt.Errorf("ai.ScriptedAction %q: %w", s.Name(), err)
	}
	n, ok := v.(lua.LNumber)
	if !ok {
		return ScoreMin, nil
	}
	return scoreFromFloat(float64(n)), nil
}

// Execute calls "<hook>_execute". A false return is reported as an error.
func (s *ScriptedAction) Execute() error {
	v, err := s.caller.CallHook(s.zoneID, s.hook+"_execute", s.args()...)
	if err != nil {
		return fmt.Errorf("ai.ScriptedAction %q: %w", s.Name(), err)
	}
	if v == lua.LFalse {
		return fmt.Errorf("ai.ScriptedAction %q: execute hook returned false", s.Name())
	}
	return nil
}

// scoreFromFloat maps a Lua number onto Score, saturating at the sentinels.
func scoreFromFloat(f float64) Score {
	switch {
	case math.IsNaN(f):
		return ScoreMin
	case f >= math.MaxInt64:
		return ScoreMax
	case f <= math.MinInt64:
		return ScoreMin
	default:
		return Score(f)
	}
}
