package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/paywatch/pkg/models"
)

// storedIntent builds a minimal intent for store tests
func storedIntent(id, reference string, status models.IntentStatus) *models.PaymentIntent {
	now := time.Now().UTC()
	return &models.PaymentIntent{
		ID:      id,
		ChainID: "eip155:8453",
		Asset: models.Asset{
			Symbol:   "ETH",
			Decimals: 18,
			Type:     models.AssetNative,
		},
		Recipient:          "0x2222222222222222222222222222222222222222",
		Amount:             "1000000000000000000",
		Reference:          reference,
		ConfirmationPolicy: models.ConfirmationPolicy{MinConfirmations: 1},
		Status:             status,
		CreatedAt:          now,
		ExpiresAt:          now.Add(time.Hour),
		UpdatedAt:          now,
	}
}

// TestMemoryStoreRoundtrip tests create, fetch and reference lookup
func TestMemoryStoreRoundtrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	intent := storedIntent("intent-1", "order-1", models.StatusPending)
	require.NoError(t, s.CreateIntent(ctx, intent))

	fetched, err := s.GetIntent(ctx, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, intent.ID, fetched.ID)
	assert.Equal(t, intent.Reference, fetched.Reference)
	assert.Equal(t, models.StatusPending, fetched.Status)

	byReference, err := s.FindByReference(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, intent.ID, byReference.ID)

	_, err = s.GetIntent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindByReference(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStoreDuplicates tests the two uniqueness constraints
func TestMemoryStoreDuplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusPending)))

	err := s.CreateIntent(ctx, storedIntent("intent-1", "order-2", models.StatusPending))
	assert.ErrorIs(t, err, ErrDuplicateID)

	err = s.CreateIntent(ctx, storedIntent("intent-2", "order-1", models.StatusPending))
	assert.ErrorIs(t, err, ErrDuplicateReference)
}

// TestMemoryStoreIsolation tests that returned intents do not alias
// store state
func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusPending)))

	fetched, err := s.GetIntent(ctx, "intent-1")
	require.NoError(t, err)
	fetched.Status = models.StatusConfirmed
	fetched.TxHash = "0xmutated"

	again, err := s.GetIntent(ctx, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
	assert.Empty(t, again.TxHash)
}

// TestMemoryStoreListings tests ordering and status filtering
func TestMemoryStoreListings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusPending)))
	require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-2", "order-2", models.StatusDetected)))
	require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-3", "order-3", models.StatusConfirmed)))
	require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-4", "order-4", models.StatusPending)))

	pending, err := s.ListPendingIntents(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3, "PENDING and DETECTED intents are both verifiable")
	assert.Equal(t, "intent-1", pending[0].ID)
	assert.Equal(t, "intent-2", pending[1].ID)
	assert.Equal(t, "intent-4", pending[2].ID)

	confirmed, err := s.ListIntentsByStatus(ctx, models.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "intent-3", confirmed[0].ID)

	all, err := s.ListIntentsByStatus(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	counts, err := s.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.StatusPending])
	assert.Equal(t, 1, counts[models.StatusDetected])
	assert.Equal(t, 1, counts[models.StatusConfirmed])
}

// TestMemoryStoreUpdateIntentStatus tests the idempotent update
// semantics the verification pipeline relies on
func TestMemoryStoreUpdateIntentStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("legal transition changes status and merges evidence", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusPending)))

		changed, err := s.UpdateIntentStatus(ctx, "intent-1", models.StatusConfirmed, VerificationMeta{
			TxHash:        "0xabc",
			Confirmations: 5,
			LastCheckedAt: now,
		})
		require.NoError(t, err)
		assert.True(t, changed)

		intent, err := s.GetIntent(ctx, "intent-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, intent.Status)
		assert.Equal(t, "0xabc", intent.TxHash)
		assert.Equal(t, uint64(5), intent.Confirmations)
		require.NotNil(t, intent.LastCheckedAt)
		assert.True(t, intent.LastCheckedAt.Equal(now))
	})

	t.Run("repeating an identical update is a no-op", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusPending)))

		meta := VerificationMeta{TxHash: "0xabc", Confirmations: 5, LastCheckedAt: now}
		changed, err := s.UpdateIntentStatus(ctx, "intent-1", models.StatusDetected, meta)
		require.NoError(t, err)
		require.True(t, changed)

		changed, err = s.UpdateIntentStatus(ctx, "intent-1", models.StatusDetected, meta)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("deeper confirmations on the same status count as a change", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusPending)))

		_, err := s.UpdateIntentStatus(ctx, "intent-1", models.StatusDetected, VerificationMeta{
			TxHash: "0xabc", Confirmations: 1, LastCheckedAt: now,
		})
		require.NoError(t, err)

		changed, err := s.UpdateIntentStatus(ctx, "intent-1", models.StatusDetected, VerificationMeta{
			TxHash: "0xabc", Confirmations: 2, LastCheckedAt: now,
		})
		require.NoError(t, err)
		assert.True(t, changed)

		intent, err := s.GetIntent(ctx, "intent-1")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), intent.Confirmations)
	})

	t.Run("terminal statuses are immutable", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusConfirmed)))

		changed, err := s.UpdateIntentStatus(ctx, "intent-1", models.StatusFailed, VerificationMeta{LastCheckedAt: now})
		require.NoError(t, err)
		assert.False(t, changed)

		intent, err := s.GetIntent(ctx, "intent-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, intent.Status)
		assert.Nil(t, intent.LastCheckedAt, "terminal rows are left alone entirely")
	})

	t.Run("illegal transition is rejected without merging evidence", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusDetected)))

		changed, err := s.UpdateIntentStatus(ctx, "intent-1", models.StatusPending, VerificationMeta{
			TxHash: "0xbad", Confirmations: 9, LastCheckedAt: now,
		})
		require.NoError(t, err)
		assert.False(t, changed)

		intent, err := s.GetIntent(ctx, "intent-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusDetected, intent.Status)
		assert.Empty(t, intent.TxHash)
		require.NotNil(t, intent.LastCheckedAt, "the attempt itself is still recorded")
	})

	t.Run("unknown intent is a silent no-op", func(t *testing.T) {
		s := NewMemoryStore()

		changed, err := s.UpdateIntentStatus(ctx, "missing", models.StatusConfirmed, VerificationMeta{})
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("no-op refreshes the check timestamp", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.CreateIntent(ctx, storedIntent("intent-1", "order-1", models.StatusPending)))

		before, err := s.GetIntent(ctx, "intent-1")
		require.NoError(t, err)

		changed, err := s.UpdateIntentStatus(ctx, "intent-1", models.StatusPending, VerificationMeta{LastCheckedAt: now})
		require.NoError(t, err)
		assert.False(t, changed)

		after, err := s.GetIntent(ctx, "intent-1")
		require.NoError(t, err)
		require.NotNil(t, after.LastCheckedAt)
		assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "no-ops must not touch updated_at")
	})
}

// TestMemoryStoreEvents tests the append-only audit trail
func TestMemoryStoreEvents(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &models.Event{
		IntentID: "intent-1",
		Type:     models.EventIntentCreated,
		Payload:  []byte(`{"reference":"order-1"}`),
	}
	require.NoError(t, s.AppendEvent(ctx, first))
	assert.Equal(t, int64(1), first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second := &models.Event{IntentID: "intent-1", Type: models.EventIntentVerification}
	third := &models.Event{IntentID: "intent-2", Type: models.EventIntentCreated}
	require.NoError(t, s.AppendEvent(ctx, second))
	require.NoError(t, s.AppendEvent(ctx, third))
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, int64(3), third.ID)

	events, err := s.ListEvents(ctx, "intent-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventIntentCreated, events[0].Type)
	assert.Equal(t, models.EventIntentVerification, events[1].Type)
	assert.JSONEq(t, `{"reference":"order-1"}`, string(events[0].Payload))

	// returned events must not alias the log
	events[0].Payload[0] = 'X'
	again, err := s.ListEvents(ctx, "intent-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"reference":"order-1"}`, string(again[0].Payload))

	none, err := s.ListEvents(ctx, "intent-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}
