// Package store persists payment intents and their append-only audit
// trail. Two implementations ship: Postgres for deployments and an
// in-memory store for development and tests. Both enforce the same
// write semantics, so the verification pipeline behaves identically
// against either backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/speedrun-hq/paywatch/pkg/models"
)

var (
	// ErrNotFound is returned when no intent matches the lookup
	ErrNotFound = errors.New("intent not found")

	// ErrDuplicateID is returned when an intent id is inserted twice
	ErrDuplicateID = errors.New("intent id already exists")

	// ErrDuplicateReference is returned when a reference is already
	// held by another intent
	ErrDuplicateReference = errors.New("reference already in use")
)

// VerificationMeta carries the chain evidence attached to a status
// update. A zero LastCheckedAt leaves the bookkeeping untouched; an
// empty TxHash means the verification produced no match to record.
type VerificationMeta struct {
	TxHash        string
	Confirmations uint64
	LastCheckedAt time.Time
}

// Store is the persistence boundary for intents and events.
//
// UpdateIntentStatus is the only status mutation and is idempotent:
// it reports false for unknown ids, terminal rows, illegal transitions
// and repeats of the current state, and true only when the stored
// status or match metadata actually changed. LastCheckedAt is refreshed
// on every call that finds a non-terminal row, no-ops included.
type Store interface {
	CreateIntent(ctx context.Context, intent *models.PaymentIntent) error
	GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
	FindByReference(ctx context.Context, reference string) (*models.PaymentIntent, error)

	// ListPendingIntents returns intents still worth verifying,
	// oldest first
	ListPendingIntents(ctx context.Context) ([]*models.PaymentIntent, error)

	// ListIntentsByStatus returns intents with the given status,
	// oldest first. An empty status returns every intent.
	ListIntentsByStatus(ctx context.Context, status models.IntentStatus) ([]*models.PaymentIntent, error)

	UpdateIntentStatus(ctx context.Context, id string, target models.IntentStatus, meta VerificationMeta) (bool, error)

	// StatusCounts reports how many intents sit in each status
	StatusCounts(ctx context.Context) (map[models.IntentStatus]int, error)

	// AppendEvent adds an audit record and fills in its id and
	// creation time
	AppendEvent(ctx context.Context, event *models.Event) error

	// ListEvents returns the audit trail for one intent, oldest first
	ListEvents(ctx context.Context, intentID string) ([]*models.Event, error)

	Ping(ctx context.Context) error
	Close()
}
