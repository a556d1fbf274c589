package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_Advance_LegalSequence(t *testing.T) {
	s := newSlot("web", "host-a")

	for _, next := range []State{
		StatePreparing, StateStarting, StateHealthChecking, StateSwitchingProxy, StateCleanup, StateIdle,
	} {
		require.NoError(t, s.advance(next))
		assert.Equal(t, next, s.state)
	}
}

func TestSlot_Advance_IllegalTransition(t *testing.T) {
	s := newSlot("web", "host-a")

	err := s.advance(StateHealthChecking)
	assert.Error(t, err)
	assert.Equal(t, StateIdle, s.state)
}

func TestSlot_Fail_IsTerminal(t *testing.T) {
	s := newSlot("web", "host-a")
	require.NoError(t, s.advance(StatePreparing))

	err := s.fail(assert.AnError)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, s.state)

	assert.Error(t, s.advance(StateStarting))
}

func TestResult_Success(t *testing.T) {
	assert.True(t, Result{State: StateCleanup}.Success())
	assert.False(t, Result{State: StateFailed, Err: assert.AnError}.Success())
}
