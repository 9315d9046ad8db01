package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/paywatch/pkg/chainclient/mocks"
	"github.com/speedrun-hq/paywatch/pkg/logger"
	"github.com/speedrun-hq/paywatch/pkg/models"
)

const (
	testNetworkID = "eip155:8453"
	testRecipient = "0x2222222222222222222222222222222222222222"
	testContract  = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

// newTestEngine builds an engine over the given mock client, filling in
// sane defaults for anything the test does not care about
func newTestEngine(t *testing.T, client *mocks.ChainClient, cfg Config) *Engine {
	t.Helper()

	if cfg.NetworkID == "" {
		cfg.NetworkID = testNetworkID
	}
	if cfg.ScanBlocks == 0 {
		cfg.ScanBlocks = 100
	}
	if cfg.IntentTTL == 0 {
		cfg.IntentTTL = time.Hour
	}

	e, err := New(cfg, client, nil, &logger.EmptyLogger{})
	require.NoError(t, err)
	return e
}

// validInput returns a creation input that passes every check
func validInput() CreateIntentInput {
	return CreateIntentInput{
		ChainID: testNetworkID,
		Asset: models.Asset{
			Symbol:   "ETH",
			Decimals: 18,
			Type:     models.AssetNative,
		},
		Recipient: testRecipient,
		Amount:    "1000000000000000000",
		Reference: "order-123",
	}
}

// TestNew tests engine construction constraints
func TestNew(t *testing.T) {
	client := mocks.NewChainClient(big.NewInt(8453), 100)

	tests := []struct {
		name        string
		cfg         Config
		expectError string
	}{
		{
			name: "valid configuration",
			cfg:  Config{NetworkID: "eip155:8453", ScanBlocks: 100, IntentTTL: time.Hour},
		},
		{
			name:        "malformed network",
			cfg:         Config{NetworkID: "base", ScanBlocks: 100},
			expectError: "invalid network identifier",
		},
		{
			name:        "non evm network",
			cfg:         Config{NetworkID: "solana:mainnet", ScanBlocks: 100},
			expectError: "cannot verify",
		},
		{
			name:        "zero scan blocks",
			cfg:         Config{NetworkID: "eip155:8453"},
			expectError: "scan blocks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, client, nil, nil)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "eip155:8453", e.NetworkID().String())
			assert.Equal(t, int64(8453), e.EVMChainID().Int64())
		})
	}
}

// TestCreateIntent tests the happy path defaults
func TestCreateIntent(t *testing.T) {
	client := mocks.NewChainClient(big.NewInt(8453), 100)
	e := newTestEngine(t, client, Config{MinConfirmations: 3})

	intent, err := e.CreateIntent(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, intent.ID)
	assert.Equal(t, models.StatusPending, intent.Status)
	assert.Equal(t, testNetworkID, intent.ChainID)
	assert.Equal(t, "1000000000000000000", intent.Amount)
	assert.Equal(t, "order-123", intent.Reference)
	assert.Equal(t, uint64(3), intent.ConfirmationPolicy.MinConfirmations)
	assert.Empty(t, intent.TxHash)
	assert.Zero(t, intent.Confirmations)
	assert.Nil(t, intent.LastCheckedAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), intent.ExpiresAt, 5*time.Second)
	assert.False(t, intent.CreatedAt.IsZero())
	assert.Equal(t, intent.CreatedAt, intent.UpdatedAt)
}

// TestCreateIntentUniqueIDs tests that consecutive intents do not collide
func TestCreateIntentUniqueIDs(t *testing.T) {
	client := mocks.NewChainClient(big.NewInt(8453), 100)
	e := newTestEngine(t, client, Config{})

	first, err := e.CreateIntent(context.Background(), validInput())
	require.NoError(t, err)

	input := validInput()
	input.Reference = "order-124"
	second, err := e.CreateIntent(context.Background(), input)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

// TestCreateIntentOverrides tests explicit expiry and confirmation policy
func TestCreateIntentOverrides(t *testing.T) {
	client := mocks.NewChainClient(big.NewInt(8453), 100)
	e := newTestEngine(t, client, Config{MinConfirmations: 1})

	expiresAt := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	minConfirmations := uint64(12)

	input := validInput()
	input.ExpiresAt = expiresAt
	input.MinConfirmations = &minConfirmations

	intent, err := e.CreateIntent(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, intent.ExpiresAt.Equal(expiresAt))
	assert.Equal(t, uint64(12), intent.ConfirmationPolicy.MinConfirmations)
}

// TestCreateIntentNormalization tests that addresses and amounts are canonicalized
func TestCreateIntentNormalization(t *testing.T) {
	client := mocks.NewChainClient(big.NewInt(8453), 100)
	e := newTestEngine(t, client, Config{})

	input := validInput()
	input.Asset = models.Asset{
		Symbol:          "USDC",
		Decimals:        6,
		Type:            models.AssetERC20,
		ContractAddress: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", // lowercase
	}
	input.Amount = "0002500000"

	intent, err := e.CreateIntent(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, testContract, intent.Asset.ContractAddress, "contract address should be checksummed")
	assert.Equal(t, "2500000", intent.Amount, "amount should be canonical")
}

// TestCreateIntentValidation tests rejection of malformed inputs
func TestCreateIntentValidation(t *testing.T) {
	client := mocks.NewChainClient(big.NewInt(8453), 100)
	e := newTestEngine(t, client, Config{})

	tests := []struct {
		name         string
		mutate       func(*CreateIntentInput)
		expectedCode models.ErrorCode
	}{
		{
			name:         "malformed chain id",
			mutate:       func(in *CreateIntentInput) { in.ChainID = "base-mainnet" },
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "different network",
			mutate:       func(in *CreateIntentInput) { in.ChainID = "eip155:1" },
			expectedCode: models.CodeChainMismatch,
		},
		{
			name:         "invalid recipient",
			mutate:       func(in *CreateIntentInput) { in.Recipient = "0x123" },
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "zero amount",
			mutate:       func(in *CreateIntentInput) { in.Amount = "0" },
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "negative amount",
			mutate:       func(in *CreateIntentInput) { in.Amount = "-5" },
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "non numeric amount",
			mutate:       func(in *CreateIntentInput) { in.Amount = "1.5" },
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "empty symbol",
			mutate:       func(in *CreateIntentInput) { in.Asset.Symbol = "" },
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "decimals out of range",
			mutate:       func(in *CreateIntentInput) { in.Asset.Decimals = 256 },
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "unknown asset type",
			mutate:       func(in *CreateIntentInput) { in.Asset.Type = "spl" },
			expectedCode: models.CodeValidationError,
		},
		{
			name: "native asset with contract address",
			mutate: func(in *CreateIntentInput) {
				in.Asset.ContractAddress = testContract
			},
			expectedCode: models.CodeValidationError,
		},
		{
			name: "erc20 asset without contract address",
			mutate: func(in *CreateIntentInput) {
				in.Asset.Type = models.AssetERC20
				in.Asset.ContractAddress = ""
			},
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "empty reference",
			mutate:       func(in *CreateIntentInput) { in.Reference = "" },
			expectedCode: models.CodeValidationError,
		},
		{
			name:         "expiry in the past",
			mutate:       func(in *CreateIntentInput) { in.ExpiresAt = time.Now().Add(-time.Minute) },
			expectedCode: models.CodeValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)

			_, err := e.CreateIntent(context.Background(), input)
			require.Error(t, err)
			assert.Equal(t, tt.expectedCode, models.CodeOf(err))
		})
	}
}

// TestCreateIntentReferenceUniqueness tests the injected uniqueness check
func TestCreateIntentReferenceUniqueness(t *testing.T) {
	client := mocks.NewChainClient(big.NewInt(8453), 100)

	t.Run("reference already in use", func(t *testing.T) {
		inUse := func(_ context.Context, _ string) (bool, error) { return true, nil }
		e, err := New(Config{NetworkID: testNetworkID, ScanBlocks: 100, IntentTTL: time.Hour}, client, inUse, nil)
		require.NoError(t, err)

		_, err = e.CreateIntent(context.Background(), validInput())
		require.Error(t, err)
		assert.Equal(t, models.CodeValidationError, models.CodeOf(err))
		assert.Contains(t, err.Error(), "already in use")
	})

	t.Run("uniqueness check failure propagates", func(t *testing.T) {
		inUse := func(_ context.Context, _ string) (bool, error) { return false, errors.New("store down") }
		e, err := New(Config{NetworkID: testNetworkID, ScanBlocks: 100, IntentTTL: time.Hour}, client, inUse, nil)
		require.NoError(t, err)

		_, err = e.CreateIntent(context.Background(), validInput())
		require.Error(t, err)
		assert.Empty(t, models.CodeOf(err), "infrastructure errors carry no domain code")
	})
}
