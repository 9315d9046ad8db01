package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/speedrun-hq/paywatch/pkg/api"
	"github.com/speedrun-hq/paywatch/pkg/chainclient"
	"github.com/speedrun-hq/paywatch/pkg/circuitbreaker"
	"github.com/speedrun-hq/paywatch/pkg/config"
	"github.com/speedrun-hq/paywatch/pkg/engine"
	"github.com/speedrun-hq/paywatch/pkg/logger"
	"github.com/speedrun-hq/paywatch/pkg/store"
	"github.com/speedrun-hq/paywatch/pkg/verifier"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.NewZeroLogger("paywatch", cfg.LoggerConfig.Level, cfg.LoggerConfig.Format)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the intent store
	st, err := openStore(ctx, cfg, logg)
	if err != nil {
		log.Fatalf("Failed to open intent store: %v", err)
	}
	defer st.Close()

	// Connect to the chain node
	client, err := chainclient.Dial(cfg.RPCURL, cfg.RPCTimeout, logg)
	if err != nil {
		log.Fatalf("Failed to connect to RPC node: %v", err)
	}
	defer client.Close()

	// Build the verification engine; reference uniqueness is backed by
	// the store
	refInUse := func(ctx context.Context, reference string) (bool, error) {
		_, err := st.FindByReference(ctx, reference)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	eng, err := engine.New(engine.Config{
		NetworkID:        cfg.NetworkID,
		ScanBlocks:       cfg.ScanBlocks,
		MinConfirmations: cfg.MinConfirmations,
		IntentTTL:        cfg.IntentTTL,
		DebugRangeProbe:  cfg.DebugRangeProbe,
	}, client, refInUse, logg)
	if err != nil {
		log.Fatalf("Failed to create verification engine: %v", err)
	}

	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
		logg,
	)

	service := verifier.NewService(ctx, st, eng, client, breaker, cfg.PollingInterval, cfg.WorkerCount, logg)

	// Serve the HTTP API alongside the verification sweeps
	server := api.NewServer(cfg.Port, service, cfg.MetricsAPIKey, logg)
	go func() {
		if err := server.Start(ctx); err != nil {
			logg.Error("http server: %v", err)
			cancel()
		}
	}()

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logg.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Run verification sweeps; blocks until shutdown
	service.Start(ctx)
}

// openStore picks the persistence backend. Postgres applies its schema
// on startup; the in-memory store suits local runs.
func openStore(ctx context.Context, cfg *config.Config, logg logger.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, logg)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case config.StoreBackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
