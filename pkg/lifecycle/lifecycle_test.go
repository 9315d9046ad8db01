package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/paywatch/pkg/models"
)

var allStatuses = []models.IntentStatus{
	models.StatusPending,
	models.StatusDetected,
	models.StatusConfirmed,
	models.StatusExpired,
	models.StatusFailed,
}

// TestCanTransition exercises the full transition table
func TestCanTransition(t *testing.T) {
	// every legal (from, to) pair; everything else must be rejected
	legal := map[models.IntentStatus][]models.IntentStatus{
		models.StatusPending:  {models.StatusDetected, models.StatusConfirmed, models.StatusExpired, models.StatusFailed},
		models.StatusDetected: {models.StatusConfirmed, models.StatusExpired, models.StatusFailed},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			expected := false
			for _, allowed := range legal[from] {
				if to == allowed {
					expected = true
				}
			}

			got := CanTransition(from, to)
			assert.Equal(t, expected, got, "transition %s -> %s", from, to)
		}
	}
}

// TestCanTransitionSelfLoops tests that no status may transition to itself
func TestCanTransitionSelfLoops(t *testing.T) {
	for _, s := range allStatuses {
		assert.False(t, CanTransition(s, s), "self transition for %s should be illegal", s)
	}
}

// TestCanTransitionUnknownStatus tests that unrecognized statuses are frozen
func TestCanTransitionUnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("BOGUS", models.StatusConfirmed))
	assert.False(t, CanTransition(models.StatusPending, "BOGUS"))
}

// TestTransition tests the validating variant
func TestTransition(t *testing.T) {
	t.Run("legal move returns target", func(t *testing.T) {
		next, err := Transition(models.StatusPending, models.StatusDetected)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDetected, next)
	})

	t.Run("illegal move returns coded error and keeps current status", func(t *testing.T) {
		next, err := Transition(models.StatusConfirmed, models.StatusFailed)
		require.Error(t, err)
		assert.Equal(t, models.StatusConfirmed, next)
		assert.Equal(t, models.CodeValidationError, models.CodeOf(err))
		assert.Contains(t, err.Error(), "illegal status transition")
	})

	t.Run("regression from DETECTED to PENDING is illegal", func(t *testing.T) {
		_, err := Transition(models.StatusDetected, models.StatusPending)
		require.Error(t, err)
		assert.Equal(t, models.CodeValidationError, models.CodeOf(err))
	})
}

// TestIsTerminal tests terminal detection for all statuses
func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   models.IntentStatus
		terminal bool
	}{
		{models.StatusPending, false},
		{models.StatusDetected, false},
		{models.StatusConfirmed, true},
		{models.StatusExpired, true},
		{models.StatusFailed, true},
		{"BOGUS", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, IsTerminal(tt.status))
		})
	}
}

// TestNonTerminalStatuses tests that sweeps pick up exactly the live statuses
func TestNonTerminalStatuses(t *testing.T) {
	statuses := NonTerminalStatuses()
	require.Len(t, statuses, 2)
	assert.Contains(t, statuses, models.StatusPending)
	assert.Contains(t, statuses, models.StatusDetected)

	for _, s := range statuses {
		assert.False(t, IsTerminal(s))
	}
}
