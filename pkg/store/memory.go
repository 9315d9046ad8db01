package store

import (
	"context"
	"sync"
	"time"

	"github.com/speedrun-hq/paywatch/pkg/lifecycle"
	"github.com/speedrun-hq/paywatch/pkg/models"
)

// MemoryStore keeps intents and events in process memory. Intended for
// development runs and tests; everything is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	intents map[string]*models.PaymentIntent
	order   []string // intent ids in creation order, for stable listings
	events  []*models.Event
	nextID  int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents: make(map[string]*models.PaymentIntent),
	}
}

// copyIntent deep-copies an intent so callers can never alias the
// store's internal state
func copyIntent(intent *models.PaymentIntent) *models.PaymentIntent {
	clone := *intent
	if intent.LastCheckedAt != nil {
		t := *intent.LastCheckedAt
		clone.LastCheckedAt = &t
	}
	return &clone
}

// copyEvent deep-copies an event, payload included
func copyEvent(event *models.Event) *models.Event {
	clone := *event
	if event.Payload != nil {
		clone.Payload = append([]byte(nil), event.Payload...)
	}
	return &clone
}

func (s *MemoryStore) CreateIntent(_ context.Context, intent *models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.intents[intent.ID]; exists {
		return ErrDuplicateID
	}
	for _, existing := range s.intents {
		if existing.Reference == intent.Reference {
			return ErrDuplicateReference
		}
	}

	s.intents[intent.ID] = copyIntent(intent)
	s.order = append(s.order, intent.ID)
	return nil
}

func (s *MemoryStore) GetIntent(_ context.Context, id string) (*models.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyIntent(intent), nil
}

func (s *MemoryStore) FindByReference(_ context.Context, reference string) (*models.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if intent := s.intents[id]; intent.Reference == reference {
			return copyIntent(intent), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListPendingIntents(_ context.Context) ([]*models.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var intents []*models.PaymentIntent
	for _, id := range s.order {
		intent := s.intents[id]
		if !lifecycle.IsTerminal(intent.Status) {
			intents = append(intents, copyIntent(intent))
		}
	}
	return intents, nil
}

func (s *MemoryStore) ListIntentsByStatus(_ context.Context, status models.IntentStatus) ([]*models.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var intents []*models.PaymentIntent
	for _, id := range s.order {
		intent := s.intents[id]
		if status == "" || intent.Status == status {
			intents = append(intents, copyIntent(intent))
		}
	}
	return intents, nil
}

func (s *MemoryStore) UpdateIntentStatus(_ context.Context, id string, target models.IntentStatus, meta VerificationMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return false, nil
	}
	if lifecycle.IsTerminal(intent.Status) {
		return false, nil
	}

	// bookkeeping, recorded even for no-op attempts
	if !meta.LastCheckedAt.IsZero() {
		t := meta.LastCheckedAt.UTC()
		intent.LastCheckedAt = &t
	}

	changed := false
	if target != intent.Status {
		if !lifecycle.CanTransition(intent.Status, target) {
			return false, nil
		}
		intent.Status = target
		changed = true
	}

	if meta.TxHash != "" && (intent.TxHash != meta.TxHash || intent.Confirmations != meta.Confirmations) {
		intent.TxHash = meta.TxHash
		intent.Confirmations = meta.Confirmations
		changed = true
	}

	if changed {
		intent.UpdatedAt = time.Now().UTC()
	}
	return changed, nil
}

func (s *MemoryStore) StatusCounts(_ context.Context) (map[models.IntentStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.IntentStatus]int)
	for _, intent := range s.intents {
		counts[intent.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event.ID = s.nextID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, copyEvent(event))
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, intentID string) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*models.Event
	for _, event := range s.events {
		if event.IntentID == intentID {
			events = append(events, copyEvent(event))
		}
	}
	return events, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Close() {}
