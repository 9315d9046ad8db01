package verifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/speedrun-hq/paywatch/pkg/chains"
	"github.com/speedrun-hq/paywatch/pkg/engine"
	"github.com/speedrun-hq/paywatch/pkg/metrics"
	"github.com/speedrun-hq/paywatch/pkg/models"
)

// CreateIntent validates, mints and persists a new intent, returning it
// together with the rendered payment request. Validation failures are
// never persisted.
func (s *Service) CreateIntent(ctx context.Context, input engine.CreateIntentInput) (*models.PaymentIntent, engine.PaymentRequest, error) {
	intent, err := s.engine.CreateIntent(ctx, input)
	if err != nil {
		return nil, engine.PaymentRequest{}, err
	}

	if err := s.store.CreateIntent(ctx, intent); err != nil {
		return nil, engine.PaymentRequest{}, err
	}
	metrics.IntentsCreated.Inc()

	s.appendCreatedEvent(ctx, intent)

	request, err := s.engine.BuildRequest(intent)
	if err != nil {
		return nil, engine.PaymentRequest{}, err
	}

	s.logger.InfoWithIntent(intent.ID, "created intent: %s %s to %s on %s, expires %s",
		request.DisplayAmount, intent.Asset.Symbol, intent.Recipient, intent.ChainID,
		intent.ExpiresAt.Format(time.RFC3339))

	return intent, request, nil
}

// GetIntent fetches one intent. Unknown ids surface store.ErrNotFound.
func (s *Service) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	return s.store.GetIntent(ctx, id)
}

// ListIntents lists intents by status; the empty status keeps the
// operational default of everything still awaiting settlement.
func (s *Service) ListIntents(ctx context.Context, status models.IntentStatus) ([]*models.PaymentIntent, error) {
	switch status {
	case "":
		return s.store.ListPendingIntents(ctx)
	case models.StatusPending, models.StatusDetected, models.StatusConfirmed,
		models.StatusExpired, models.StatusFailed:
		return s.store.ListIntentsByStatus(ctx, status)
	default:
		return nil, models.Errorf(models.CodeValidationError, "unknown status %q", status)
	}
}

// ListEvents returns the audit trail for one intent, oldest first. The
// intent must exist; unknown ids surface store.ErrNotFound.
func (s *Service) ListEvents(ctx context.Context, intentID string) ([]*models.Event, error) {
	if _, err := s.store.GetIntent(ctx, intentID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, intentID)
}

// Health reports the service's view of its dependencies. OK requires a
// reachable store and a node that answers with the configured network.
func (s *Service) Health(ctx context.Context) models.HealthStatus {
	health := models.HealthStatus{
		NetworkID:   s.engine.NetworkID().String(),
		StoreStatus: "ok",
	}

	if chainID, err := s.client.ChainID(ctx); err == nil && chainID != nil {
		health.RPCConnected = true
		health.RPCNetworkID = chains.FromEVMChainID(chainID).String()
	}

	if err := s.store.Ping(ctx); err != nil {
		health.StoreStatus = "unreachable"
	}

	health.OK = health.RPCConnected &&
		health.StoreStatus == "ok" &&
		health.RPCNetworkID == health.NetworkID
	return health
}

// appendCreatedEvent records intent creation in the audit log. The log
// is diagnostic; an append failure is logged, not propagated.
func (s *Service) appendCreatedEvent(ctx context.Context, intent *models.PaymentIntent) {
	payload, err := json.Marshal(models.CreatedPayload{
		ChainID:   intent.ChainID,
		Asset:     intent.Asset,
		Recipient: intent.Recipient,
		Amount:    intent.Amount,
		Reference: intent.Reference,
		ExpiresAt: intent.ExpiresAt,
	})
	if err != nil {
		s.logger.ErrorWithIntent(intent.ID, "failed to encode creation event: %v", err)
		return
	}

	event := &models.Event{
		IntentID: intent.ID,
		Type:     models.EventIntentCreated,
		Payload:  payload,
	}
	if err := s.store.AppendEvent(ctx, event); err != nil {
		s.logger.ErrorWithIntent(intent.ID, "failed to append creation event: %v", err)
		return
	}
	metrics.EventsAppended.Inc()
}
