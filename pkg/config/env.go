package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/speedrun-hq/paywatch/pkg/chains"
)

const (
	// StoreBackendMemory keeps intents in process memory, for local runs and tests
	StoreBackendMemory = "memory"
	// StoreBackendPostgres persists intents in PostgreSQL
	StoreBackendPostgres = "postgres"

	// DefaultNetworkID is the default network intents are verified against
	DefaultNetworkID = "eip155:8453"

	// DefaultRPCURL is the default JSON-RPC endpoint for the network
	DefaultRPCURL = "https://mainnet.base.org"

	// DefaultRPCTimeout defines the default per-call RPC timeout in seconds
	DefaultRPCTimeout = 10

	// DefaultPollingInterval defines the default sweep interval in seconds
	DefaultPollingInterval = 30

	// DefaultWorkerCount defines the default number of concurrent verifications per sweep
	DefaultWorkerCount = 5

	// DefaultScanBlocks defines how many blocks back the matching window reaches
	DefaultScanBlocks = 2000

	// DefaultMinConfirmations defines the default confirmation policy for new intents
	DefaultMinConfirmations = 1

	// DefaultIntentTTL defines the default intent lifetime in minutes
	DefaultIntentTTL = 30

	// DefaultPort defines the default port for the HTTP server
	DefaultPort = "8080"

	// DefaultStoreBackend defines the default persistence backend
	DefaultStoreBackend = StoreBackendMemory

	// DefaultDebugRangeProbe defines whether failed log queries are bisected for diagnostics
	DefaultDebugRangeProbe = false

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15

	// DefaultLogLevel defines the default logging level
	DefaultLogLevel = "info"

	// DefaultLogFormat defines the default logging format
	DefaultLogFormat = "json"
)

// GetEnvNetworkID returns the CAIP-2 network identifier from environment variables
func GetEnvNetworkID() (string, error) {
	networkID := os.Getenv("NETWORK_ID")
	if networkID == "" {
		return DefaultNetworkID, nil
	}

	network, err := chains.Parse(networkID)
	if err != nil {
		return "", fmt.Errorf("invalid NETWORK_ID value: %s, must be a CAIP-2 identifier like eip155:8453", networkID)
	}
	if _, err := network.EVMChainID(); err != nil {
		return "", fmt.Errorf("unsupported NETWORK_ID value: %s, only eip155 networks can be verified", networkID)
	}
	return networkID, nil
}

// GetEnvRPCURL returns the JSON-RPC endpoint from environment variables
func GetEnvRPCURL() (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return DefaultRPCURL, nil
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvRPCTimeout returns the per-call RPC timeout from environment variables
func GetEnvRPCTimeout() (time.Duration, error) {
	timeout := os.Getenv("RPC_TIMEOUT")
	if timeout == "" {
		return DefaultRPCTimeout * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid RPC_TIMEOUT value: %s, must be a valid duration string", timeout)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("RPC_TIMEOUT must be greater than 0")
	}
	return parsed, nil
}

// GetEnvPollingInterval returns the sweep interval in seconds from environment variables
func GetEnvPollingInterval() (time.Duration, error) {
	pollingInterval := os.Getenv("POLLING_INTERVAL")
	if pollingInterval == "" {
		return time.Duration(DefaultPollingInterval) * time.Second, nil
	}

	// use atoi
	interval, err := strconv.Atoi(pollingInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid POLLING_INTERVAL value: %s, must be an integer", pollingInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("POLLING_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	workerCount := os.Getenv("WORKER_COUNT")
	if workerCount == "" {
		return DefaultWorkerCount, nil
	}

	// use atoi
	count, err := strconv.Atoi(workerCount)
	if err != nil {
		return 0, fmt.Errorf("invalid WORKER_COUNT value: %s, must be an integer", workerCount)
	}
	if count <= 0 {
		return 0, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	return count, nil
}

// GetEnvScanBlocks returns the matching window depth from environment variables
func GetEnvScanBlocks() (uint64, error) {
	scanBlocks := os.Getenv("SCAN_BLOCKS")
	if scanBlocks == "" {
		return DefaultScanBlocks, nil
	}

	blocks, err := strconv.ParseUint(scanBlocks, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid SCAN_BLOCKS value: %s, must be a positive integer", scanBlocks)
	}
	if blocks == 0 {
		return 0, fmt.Errorf("SCAN_BLOCKS must be greater than 0")
	}
	return blocks, nil
}

// GetEnvMinConfirmations returns the default confirmation policy from environment variables
func GetEnvMinConfirmations() (uint64, error) {
	minConfirmations := os.Getenv("MIN_CONFIRMATIONS")
	if minConfirmations == "" {
		return DefaultMinConfirmations, nil
	}

	confirmations, err := strconv.ParseUint(minConfirmations, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid MIN_CONFIRMATIONS value: %s, must be a non-negative integer", minConfirmations)
	}
	return confirmations, nil
}

// GetEnvIntentTTL returns the default intent lifetime from environment variables
func GetEnvIntentTTL() (time.Duration, error) {
	intentTTL := os.Getenv("INTENT_TTL")
	if intentTTL == "" {
		return DefaultIntentTTL * time.Minute, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(intentTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid INTENT_TTL value: %s, must be a valid duration string", intentTTL)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("INTENT_TTL must be greater than 0")
	}
	return parsed, nil
}

// GetEnvPort returns the HTTP server port from environment variables
func GetEnvPort() (string, error) {
	port := os.Getenv("PORT")
	if port == "" {
		return DefaultPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid PORT value: %s, must be a valid integer", port)
	}
	return port, nil
}

// GetEnvStoreBackend returns the persistence backend from environment variables
func GetEnvStoreBackend() (string, error) {
	backend := os.Getenv("STORE_BACKEND")
	if backend == "" {
		return DefaultStoreBackend, nil
	}

	if backend != StoreBackendMemory && backend != StoreBackendPostgres {
		return "", fmt.Errorf("invalid STORE_BACKEND value: %s, must be 'memory' or 'postgres'", backend)
	}

	return backend, nil
}

// GetEnvDebugRangeProbe returns whether failed log queries are bisected from environment variables
func GetEnvDebugRangeProbe() (bool, error) {
	probe := os.Getenv("DEBUG_RANGE_PROBE")
	if probe == "" {
		return DefaultDebugRangeProbe, nil
	}

	if probe == "true" {
		return true, nil
	} else if probe == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid DEBUG_RANGE_PROBE value: %s, must be 'true' or 'false'", probe)
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the logging level from environment variables
func GetEnvLogLevel() (string, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return DefaultLogLevel, nil
	}

	if _, err := zerolog.ParseLevel(level); err != nil {
		return "", fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of 'debug', 'info', 'warn' or 'error'", level)
	}
	return level, nil
}

// GetEnvLogFormat returns the logging format from environment variables
func GetEnvLogFormat() (string, error) {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		return DefaultLogFormat, nil
	}

	if format != "json" && format != "console" {
		return "", fmt.Errorf("invalid LOG_FORMAT value: %s, must be 'json' or 'console'", format)
	}
	return format, nil
}
