// Package verifier orchestrates verification of stored payment intents:
// a fixed-interval sweep over every non-terminal intent plus an on-demand
// trigger, with concurrent attempts for the same intent coalesced into a
// single chain scan. Every attempt is recorded in the audit log.
package verifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/speedrun-hq/paywatch/pkg/chainclient"
	"github.com/speedrun-hq/paywatch/pkg/circuitbreaker"
	"github.com/speedrun-hq/paywatch/pkg/engine"
	"github.com/speedrun-hq/paywatch/pkg/logger"
	"github.com/speedrun-hq/paywatch/pkg/metrics"
	"github.com/speedrun-hq/paywatch/pkg/models"
	"github.com/speedrun-hq/paywatch/pkg/store"
)

// Service composes the store, the verification engine, the chain client
// and the circuit breaker, and owns the boundary operations the API is
// built on.
type Service struct {
	store   store.Store
	engine  *engine.Engine
	client  chainclient.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger

	pollingInterval time.Duration
	workers         int

	// group coalesces concurrent verifications of the same intent so a
	// sweep racing an on-demand trigger scans the chain once.
	group singleflight.Group

	// baseCtx bounds coalesced verifications instead of the first
	// caller's context: an HTTP caller disconnecting must not cancel a
	// scan other callers are waiting on.
	baseCtx context.Context
}

// NewService creates a verification orchestrator. The context bounds
// coalesced verifications and should outlive individual requests.
func NewService(
	ctx context.Context,
	st store.Store,
	eng *engine.Engine,
	client chainclient.Client,
	breaker *circuitbreaker.CircuitBreaker,
	pollingInterval time.Duration,
	workers int,
	log logger.Logger,
) *Service {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if workers < 1 {
		workers = 1
	}

	return &Service{
		store:           st,
		engine:          eng,
		client:          client,
		breaker:         breaker,
		logger:          log,
		pollingInterval: pollingInterval,
		workers:         workers,
		baseCtx:         ctx,
	}
}

// Start runs verification sweeps until the context is cancelled. It
// blocks; callers that need it in the background own the goroutine.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("starting verification sweeps every %v with %d workers", s.pollingInterval, s.workers)

	// The ticker only fires after a full interval, so run the first
	// sweep immediately.
	if err := s.SweepOnce(ctx); err != nil {
		s.logger.Error("initial sweep: %v", err)
	}

	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("context cancelled, shutting down verification sweeps")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep: %v", err)
			}
		}
	}
}

// SweepOnce verifies every PENDING and DETECTED intent once. Failures
// are contained per intent and aggregated into the returned error; one
// bad intent never aborts the batch.
func (s *Service) SweepOnce(ctx context.Context) error {
	start := time.Now()

	intents, err := s.store.ListPendingIntents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list intents for sweep: %v", err)
	}

	var (
		mu   sync.Mutex
		errs error
	)

	// Deliberately not errgroup.WithContext: a failure on one intent
	// must not cancel scans of its siblings.
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, intent := range intents {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if _, err := s.verify(ctx, intent); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("intent %s: %v", intent.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}

	// The closures always return nil; errors are collected above.
	_ = g.Wait()

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	s.refreshStatusGauges(ctx)

	if errs != nil {
		s.logger.Error("sweep of %d intents finished with errors: %v", len(intents), errs)
		return errs
	}
	s.logger.Debug("sweep of %d intents finished in %v", len(intents), time.Since(start))
	return nil
}

// refreshStatusGauges re-exports the stored per-status intent counts.
// Statuses with no rows are reset to zero so the gauges never go stale.
func (s *Service) refreshStatusGauges(ctx context.Context) {
	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		s.logger.Error("failed to refresh status gauges: %v", err)
		return
	}
	for _, status := range []models.IntentStatus{
		models.StatusPending,
		models.StatusDetected,
		models.StatusConfirmed,
		models.StatusExpired,
		models.StatusFailed,
	} {
		metrics.IntentsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
