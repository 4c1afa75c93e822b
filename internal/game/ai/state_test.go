package ai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

func TestBehaviorState_StringRoundTrip(t *testing.T) {
	for s := ai.StateIdle; s <= ai.StateStopping; s++ {
		got, err := ai.ParseBehaviorState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ai.ParseBehaviorState("sleeping")
	assert.Error(t, err)
}

func TestStateTracker_ForwardChain(t *testing.T) {
	var tr ai.StateTracker
	assert.Equal(t, ai.StateIdle, tr.State())

	for _, s := range []ai.BehaviorState{ai.StateIncoming, ai.StateFighting, ai.StateNearDeath, ai.StateDying, ai.StateStopping} {
		require.NoError(t, tr.Transition(s))
		assert.Equal(t, s, tr.State())
	}
}

func TestStateTracker_RejectsSkippedStep(t *testing.T) {
	var tr ai.StateTracker
	err := tr.Transition(ai.StateFighting)
	require.ErrorIs(t, err, ai.ErrInvalidTransition)
	assert.Equal(t, ai.StateIdle, tr.State())
}

func TestStateTracker_StoppingIsTerminal(t *testing.T) {
	var tr ai.StateTracker
	tr.SetTarget("wolf")
	require.NoError(t, tr.Transition(ai.StateStopping))
	assert.Equal(t, ai.Handle(""), tr.Target())

	assert.ErrorIs(t, tr.Transition(ai.StateIdle), ai.ErrInvalidTransition)
	assert.ErrorIs(t, tr.Transition(ai.StateStopping), ai.ErrInvalidTransition)
}

func TestProperty_CanTransition_StoppingReachableFromEveryActiveState(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		from := ai.BehaviorState(rapid.IntRange(int(ai.StateIdle), int(ai.StateDying)).Draw(rt, "from"))
		if !ai.CanTransition(from, ai.StateStopping) {
			rt.Fatalf("%s cannot reach stopping", from)
		}
		if ai.CanTransition(ai.StateStopping, from) {
			rt.Fatalf("stopping must not lead to %s", from)
		}
	})
}
