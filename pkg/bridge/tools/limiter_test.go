package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTurnLimiter_ConsumesBudgetThenDenies(t *testing.T) {
	l := NewTurnLimiter(2)
	require.True(t, l.Allow())
	require.True(t, l.Allow())
	require.False(t, l.Allow())
	require.Equal(t, 2, l.Used())
}

func TestTurnLimiter_ResetStartsANewTurn(t *testing.T) {
	l := NewTurnLimiter(1)
	require.True(t, l.Allow())
	require.False(t, l.Allow())

	l.Reset()
	require.Equal(t, 0, l.Used())
	require.True(t, l.Allow())
}

func TestTurnLimiter_DefaultsWhenUnset(t *testing.T) {
	l := NewTurnLimiter(0)
	require.Equal(t, DefaultMaxRoundTrips, l.Max())
}
