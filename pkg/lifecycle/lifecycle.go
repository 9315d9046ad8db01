// Package lifecycle owns the payment intent state machine. Every status
// write in the system goes through this package so that illegal moves,
// in particular regressions out of terminal states, cannot happen by
// accident in a handler or worker.
package lifecycle

import (
	"github.com/speedrun-hq/paywatch/pkg/models"
)

// transitions maps each status to the set of statuses it may legally
// move to. Statuses with an empty set are terminal. Once evidence of a
// payment exists the intent never moves back toward PENDING, and no
// status is reachable from CONFIRMED, EXPIRED or FAILED.
var transitions = map[models.IntentStatus]map[models.IntentStatus]bool{
	models.StatusPending: {
		models.StatusDetected:  true,
		models.StatusConfirmed: true,
		models.StatusExpired:   true,
		models.StatusFailed:    true,
	},
	models.StatusDetected: {
		models.StatusConfirmed: true,
		models.StatusExpired:   true,
		models.StatusFailed:    true,
	},
	models.StatusConfirmed: {},
	models.StatusExpired:   {},
	models.StatusFailed:    {},
}

// CanTransition reports whether moving from one status to another is
// legal. Unknown statuses never transition anywhere.
func CanTransition(from, to models.IntentStatus) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// Transition validates a status move and returns the new status, or a
// VALIDATION_ERROR describing the illegal move.
func Transition(from, to models.IntentStatus) (models.IntentStatus, error) {
	if !CanTransition(from, to) {
		return from, models.Errorf(models.CodeValidationError, "illegal status transition from %s to %s", from, to)
	}
	return to, nil
}

// IsTerminal reports whether a status accepts no further transitions.
// Unknown statuses are treated as terminal so that corrupt rows are
// frozen rather than advanced.
func IsTerminal(s models.IntentStatus) bool {
	allowed, ok := transitions[s]
	if !ok {
		return true
	}
	return len(allowed) == 0
}

// NonTerminalStatuses returns the statuses that verification sweeps
// should pick up.
func NonTerminalStatuses() []models.IntentStatus {
	return []models.IntentStatus{models.StatusPending, models.StatusDetected}
}
