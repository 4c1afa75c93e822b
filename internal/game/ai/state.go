package ai

import (
	"errors"
	"fmt"
)

// BehaviorState is the phase a brain is in. Each state owns an ActionCatalog.
type BehaviorState int

const (
	StateIdle BehaviorState = iota
	StateIncoming
	StateFighting
	StateNearDeath
	StateDying
	StateStopping
)

// activeStates lists every state that owns a catalog, in declaration order.
var activeStates = []BehaviorState{StateIdle, StateIncoming, StateFighting, StateNearDeath, StateDying}

// String returns the lowercase state name.
func (s BehaviorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIncoming:
		return "incoming"
	case StateFighting:
		return "fighting"
	case StateNearDeath:
		return "near_death"
	case StateDying:
		return "dying"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ParseBehaviorState maps a name produced by String back to its state.
//
// Postcondition: Returns an error for unknown names.
func ParseBehaviorState(name string) (BehaviorState, error) {
	for s := StateIdle; s <= StateStopping; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("ai.ParseBehaviorState: unknown state %q", name)
}

// ErrInvalidTransition is returned when a state change is not in the graph.
var ErrInvalidTransition = errors.New("invalid behavior state transition")

var transitions = map[BehaviorState][]BehaviorState{
	StateIdle:      {StateIncoming, StateStopping},
	StateIncoming:  {StateFighting, StateStopping},
	StateFighting:  {StateNearDeath, StateStopping},
	StateNearDeath: {StateDying, StateStopping},
	StateDying:     {StateStopping},
}

// CanTransition reports whether from → to is a legal edge.
// A transition to the current state is always legal except out of stopping.
func CanTransition(from, to BehaviorState) bool {
	if from == StateStopping {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateTracker holds the behavior state and current hostile target of one
// entity. It is not safe for concurrent use; Brain guards it with its mutex.
type StateTracker struct {
	state  BehaviorState
	target Handle
}

// State returns the current behavior state.
func (t *StateTracker) State() BehaviorState { return t.state }

// Target returns the current target handle, empty when none.
func (t *StateTracker) Target() Handle { return t.target }

// SetTarget replaces the current target.
func (t *StateTracker) SetTarget(h Handle) { t.target = h }

// Transition moves to the requested state.
//
// Postcondition: Returns ErrInvalidTransition and leaves the state unchanged
// when the edge is not legal.
func (t *StateTracker) Transition(to BehaviorState) error {
	if !CanTransition(t.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.state, to)
	}
	t.state = to
	if to == StateStopping {
		t.target = ""
	}
	return nil
}
