package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the verification service
type Config struct {
	NetworkID        string
	RPCURL           string
	RPCTimeout       time.Duration
	PollingInterval  time.Duration
	WorkerCount      int
	ScanBlocks       uint64
	MinConfirmations uint64
	IntentTTL        time.Duration
	Port             string
	MetricsAPIKey    string
	StoreBackend     string
	DatabaseURL      string
	DebugRangeProbe  bool
	CircuitBreaker   CircuitBreakerConfig
	LoggerConfig     LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	networkID, err := GetEnvNetworkID()
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	rpcTimeout, err := GetEnvRPCTimeout()
	if err != nil {
		return nil, err
	}

	pollingInterval, err := GetEnvPollingInterval()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	scanBlocks, err := GetEnvScanBlocks()
	if err != nil {
		return nil, err
	}

	minConfirmations, err := GetEnvMinConfirmations()
	if err != nil {
		return nil, err
	}

	intentTTL, err := GetEnvIntentTTL()
	if err != nil {
		return nil, err
	}

	port, err := GetEnvPort()
	if err != nil {
		return nil, err
	}

	storeBackend, err := GetEnvStoreBackend()
	if err != nil {
		return nil, err
	}

	debugRangeProbe, err := GetEnvDebugRangeProbe()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logFormat, err := GetEnvLogFormat()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NetworkID:        networkID,
		RPCURL:           rpcURL,
		RPCTimeout:       rpcTimeout,
		PollingInterval:  pollingInterval,
		WorkerCount:      workerCount,
		ScanBlocks:       scanBlocks,
		MinConfirmations: minConfirmations,
		IntentTTL:        intentTTL,
		Port:             port,
		MetricsAPIKey:    os.Getenv("METRICS_API_KEY"),
		StoreBackend:     storeBackend,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DebugRangeProbe:  debugRangeProbe,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:  logLevel,
			Format: logFormat,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.StoreBackend == StoreBackendPostgres && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required when STORE_BACKEND is %q", StoreBackendPostgres)
	}
	return nil
}
