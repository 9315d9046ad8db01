package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/speedrun-hq/paywatch/pkg/lifecycle"
	"github.com/speedrun-hq/paywatch/pkg/metrics"
	"github.com/speedrun-hq/paywatch/pkg/models"
	"github.com/speedrun-hq/paywatch/pkg/store"
)

// TriggerVerify runs a synchronous verification of one intent. Unknown
// ids surface store.ErrNotFound.
func (s *Service) TriggerVerify(ctx context.Context, id string) (models.VerificationResult, error) {
	intent, err := s.store.GetIntent(ctx, id)
	if err != nil {
		return models.VerificationResult{}, err
	}
	return s.verify(ctx, intent)
}

// verify coalesces concurrent attempts for the same intent id into one
// underlying scan; every caller observes the same result. A verification
// error marks the intent FAILED best-effort so a wedged intent cannot be
// re-swept forever.
func (s *Service) verify(ctx context.Context, intent *models.PaymentIntent) (models.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return models.VerificationResult{}, err
	}

	v, err, shared := s.group.Do(intent.ID, func() (interface{}, error) {
		// The winning call runs on the service context so that one
		// caller disconnecting cannot cancel a shared scan.
		return s.doVerify(s.baseCtx, intent)
	})
	if shared {
		metrics.CoalescedVerifications.Inc()
		s.logger.DebugWithIntent(intent.ID, "verification coalesced with a concurrent attempt")
	}
	if err != nil {
		s.failIntent(intent, err)
		return models.VerificationResult{}, err
	}
	return v.(models.VerificationResult), nil
}

// doVerify performs one verification attempt: short-circuit checks,
// the chain scan, status resolution, persistence and the audit event.
func (s *Service) doVerify(ctx context.Context, intent *models.PaymentIntent) (result models.VerificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verification panicked: %v", r)
		}
	}()

	// Terminal intents are settled: nothing to scan, nothing to change.
	// The attempt is still recorded so on-demand triggers leave a trace.
	if lifecycle.IsTerminal(intent.Status) {
		result = models.VerificationResult{
			Status:        intent.Status,
			TxHash:        intent.TxHash,
			Confirmations: intent.Confirmations,
			Reason:        fmt.Sprintf("intent already settled as %s", intent.Status),
		}
		s.appendVerificationEvent(ctx, intent, intent.Status, false, result)
		return result, nil
	}

	// An open breaker means the node is unhealthy. Skip the attempt
	// entirely so an outage cannot terminally fail every pending intent.
	if s.breaker != nil && s.breaker.IsEnabled() && s.breaker.IsOpen() {
		s.logger.NoticeWithIntent(intent.ID, "circuit breaker open, skipping verification")
		return models.VerificationResult{
			Status: intent.Status,
			Reason: "verification skipped: circuit breaker open after repeated node failures",
		}, nil
	}

	start := time.Now()
	result = s.engine.Verify(ctx, intent)
	metrics.VerificationDuration.WithLabelValues(string(intent.Asset.Type)).Observe(time.Since(start).Seconds())

	s.recordBreaker(result)

	next := s.resolveNext(intent, result)

	changed, err := s.store.UpdateIntentStatus(ctx, intent.ID, next, store.VerificationMeta{
		TxHash:        result.TxHash,
		Confirmations: result.Confirmations,
		LastCheckedAt: time.Now().UTC(),
	})
	if err != nil {
		return result, fmt.Errorf("failed to persist verification outcome: %v", err)
	}

	metrics.Verifications.WithLabelValues(string(result.Status)).Inc()
	if result.ErrorCode != "" && result.ErrorCode != models.CodeConfirmationPending {
		metrics.VerificationErrors.WithLabelValues(string(result.ErrorCode)).Inc()
	}

	s.appendVerificationEvent(ctx, intent, next, changed, result)

	if changed {
		s.logger.InfoWithIntent(intent.ID, "status %s -> %s: %s", intent.Status, next, result.Reason)
	} else {
		s.logger.DebugWithIntent(intent.ID, "status unchanged (%s): %s", intent.Status, result.Reason)
	}
	return result, nil
}

// resolveNext decides which status to persist for a scan result.
// Proposals the lifecycle forbids (a PENDING result over a DETECTED
// intent when a match dropped out of the scan window, a stale result
// racing a concurrent settlement) keep the current status.
func (s *Service) resolveNext(intent *models.PaymentIntent, result models.VerificationResult) models.IntentStatus {
	if result.Status == intent.Status {
		return intent.Status
	}
	if !lifecycle.CanTransition(intent.Status, result.Status) {
		s.logger.DebugWithIntent(intent.ID, "ignoring %s result over %s status", result.Status, intent.Status)
		return intent.Status
	}
	return result.Status
}

// recordBreaker feeds the scan outcome into the circuit breaker. Only
// outcomes that prove the node answered count as successes; expiry and
// pinning mismatches resolve before any RPC and leave the breaker alone.
func (s *Service) recordBreaker(result models.VerificationResult) {
	if s.breaker == nil || !s.breaker.IsEnabled() {
		return
	}
	switch {
	case result.ErrorCode == models.CodeRPCError:
		s.breaker.RecordFailure()
	case result.Status == models.StatusPending,
		result.Status == models.StatusDetected,
		result.Status == models.StatusConfirmed:
		s.breaker.Reset()
	}
	if s.breaker.IsOpen() {
		metrics.CircuitBreakerOpen.Set(1)
	} else {
		metrics.CircuitBreakerOpen.Set(0)
	}
}

// appendVerificationEvent records one attempt in the audit log. The log
// is diagnostic; an append failure is logged, not propagated.
func (s *Service) appendVerificationEvent(ctx context.Context, intent *models.PaymentIntent, next models.IntentStatus, changed bool, result models.VerificationResult) {
	payload, err := json.Marshal(models.VerificationPayload{
		PreviousStatus: intent.Status,
		NextStatus:     next,
		Changed:        changed,
		TxHash:         result.TxHash,
		Confirmations:  result.Confirmations,
		Reason:         result.Reason,
		ErrorCode:      result.ErrorCode,
	})
	if err != nil {
		s.logger.ErrorWithIntent(intent.ID, "failed to encode verification event: %v", err)
		return
	}

	event := &models.Event{
		IntentID: intent.ID,
		Type:     models.EventIntentVerification,
		Payload:  payload,
	}
	if err := s.store.AppendEvent(ctx, event); err != nil {
		s.logger.ErrorWithIntent(intent.ID, "failed to append verification event: %v", err)
		return
	}
	metrics.EventsAppended.Inc()
}

// failIntent marks an intent FAILED after an unrecoverable verification
// error and records why. Best-effort: when the store itself is failing
// this fails too, and the caller has already given up on the intent for
// this pass.
func (s *Service) failIntent(intent *models.PaymentIntent, cause error) {
	s.logger.ErrorWithIntent(intent.ID, "verification failed, marking intent FAILED: %v", cause)

	changed, err := s.store.UpdateIntentStatus(s.baseCtx, intent.ID, models.StatusFailed, store.VerificationMeta{
		LastCheckedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.ErrorWithIntent(intent.ID, "failed to mark intent FAILED: %v", err)
		return
	}

	s.appendVerificationEvent(s.baseCtx, intent, models.StatusFailed, changed, models.VerificationResult{
		Status: models.StatusFailed,
		Reason: fmt.Sprintf("verification aborted: %v", cause),
	})
}
