// Package engine creates payment intents and verifies them against
// on-chain activity. The engine is pinned to a single network at
// construction; intents for other networks are rejected rather than
// silently scanned on the wrong chain.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/speedrun-hq/paywatch/pkg/chainclient"
	"github.com/speedrun-hq/paywatch/pkg/chains"
	"github.com/speedrun-hq/paywatch/pkg/logger"
	"github.com/speedrun-hq/paywatch/pkg/models"
)

// maxTokenDecimals mirrors the uint8 decimals field of ERC-20.
const maxTokenDecimals = 255

// Config holds the verification engine settings
type Config struct {
	// NetworkID is the CAIP-2 identifier of the network intents are verified on
	NetworkID string

	// ScanBlocks is how many blocks back from the chain head the
	// matching window reaches
	ScanBlocks uint64

	// MinConfirmations is the confirmation policy applied to intents
	// that do not carry their own
	MinConfirmations uint64

	// IntentTTL is the lifetime applied to intents created without an
	// explicit deadline
	IntentTTL time.Duration

	// DebugRangeProbe bisects failed log queries to find the largest
	// block span the node accepts
	DebugRangeProbe bool
}

// ReferenceInUse reports whether a reference has already been assigned
// to an intent. The engine consults it before minting a new intent.
type ReferenceInUse func(ctx context.Context, reference string) (bool, error)

// Engine builds and verifies payment intents against one EVM network
type Engine struct {
	cfg        Config
	network    chains.NetworkID
	evmChainID *big.Int
	client     chainclient.Client
	refInUse   ReferenceInUse
	logger     logger.Logger
}

// New creates a verification engine. A nil refInUse disables reference
// uniqueness checks, a nil logger discards output.
func New(cfg Config, client chainclient.Client, refInUse ReferenceInUse, log logger.Logger) (*Engine, error) {
	network, err := chains.Parse(cfg.NetworkID)
	if err != nil {
		return nil, fmt.Errorf("invalid network identifier: %v", err)
	}
	evmChainID, err := network.EVMChainID()
	if err != nil {
		return nil, fmt.Errorf("cannot verify on %s: %v", cfg.NetworkID, err)
	}
	if cfg.ScanBlocks == 0 {
		return nil, fmt.Errorf("scan blocks must be greater than 0")
	}
	if client == nil {
		return nil, fmt.Errorf("chain client is required")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	return &Engine{
		cfg:        cfg,
		network:    network,
		evmChainID: evmChainID,
		client:     client,
		refInUse:   refInUse,
		logger:     log,
	}, nil
}

// NetworkID returns the network the engine verifies on
func (e *Engine) NetworkID() chains.NetworkID {
	return e.network
}

// EVMChainID returns the numeric chain ID the engine expects the node to report
func (e *Engine) EVMChainID() *big.Int {
	return new(big.Int).Set(e.evmChainID)
}

// CreateIntentInput carries the caller-supplied fields for a new intent
type CreateIntentInput struct {
	ChainID          string
	Asset            models.Asset
	Recipient        string
	Amount           string
	Reference        string
	ExpiresAt        time.Time // zero value means now plus the configured TTL
	MinConfirmations *uint64   // nil means the configured default
}

// CreateIntent validates the input and mints a PENDING intent. The
// returned intent is not yet persisted; the caller owns storage.
func (e *Engine) CreateIntent(ctx context.Context, input CreateIntentInput) (*models.PaymentIntent, error) {
	network, err := chains.Parse(input.ChainID)
	if err != nil {
		return nil, models.Errorf(models.CodeValidationError, "invalid chain_id: %v", err)
	}
	if network != e.network {
		return nil, models.Errorf(models.CodeChainMismatch,
			"intent pinned to %s but this service verifies on %s", network, e.network)
	}

	if !common.IsHexAddress(input.Recipient) {
		return nil, models.Errorf(models.CodeValidationError, "recipient %q is not a valid address", input.Recipient)
	}

	amount, ok := new(big.Int).SetString(strings.TrimSpace(input.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return nil, models.Errorf(models.CodeValidationError,
			"amount %q must be a positive base-10 integer in base units", input.Amount)
	}

	if err := validateAsset(input.Asset); err != nil {
		return nil, err
	}

	if input.Reference == "" {
		return nil, models.Errorf(models.CodeValidationError, "reference is required")
	}
	if e.refInUse != nil {
		inUse, err := e.refInUse(ctx, input.Reference)
		if err != nil {
			return nil, fmt.Errorf("failed to check reference uniqueness: %v", err)
		}
		if inUse {
			return nil, models.Errorf(models.CodeValidationError, "reference %q is already in use", input.Reference)
		}
	}

	now := time.Now().UTC()
	expiresAt := input.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(e.cfg.IntentTTL)
	} else if !expiresAt.After(now) {
		return nil, models.Errorf(models.CodeValidationError, "expires_at %s is in the past", expiresAt.Format(time.RFC3339))
	}

	minConfirmations := e.cfg.MinConfirmations
	if input.MinConfirmations != nil {
		minConfirmations = *input.MinConfirmations
	}

	return &models.PaymentIntent{
		ID:                 uuid.NewString(),
		ChainID:            network.String(),
		Asset:              normalizeAsset(input.Asset),
		Recipient:          common.HexToAddress(input.Recipient).Hex(),
		Amount:             amount.String(),
		Reference:          input.Reference,
		ConfirmationPolicy: models.ConfirmationPolicy{MinConfirmations: minConfirmations},
		Status:             models.StatusPending,
		CreatedAt:          now,
		ExpiresAt:          expiresAt.UTC(),
		UpdatedAt:          now,
	}, nil
}

// validateAsset checks the asset description for both settlement paths
func validateAsset(asset models.Asset) error {
	if asset.Symbol == "" {
		return models.Errorf(models.CodeValidationError, "asset symbol is required")
	}
	if asset.Decimals < 0 || asset.Decimals > maxTokenDecimals {
		return models.Errorf(models.CodeValidationError,
			"asset decimals %d out of range [0, %d]", asset.Decimals, maxTokenDecimals)
	}

	switch asset.Type {
	case models.AssetNative:
		if asset.ContractAddress != "" {
			return models.Errorf(models.CodeValidationError, "native asset must not carry a contract address")
		}
	case models.AssetERC20:
		if !common.IsHexAddress(asset.ContractAddress) {
			return models.Errorf(models.CodeValidationError,
				"contract address %q is not a valid address", asset.ContractAddress)
		}
	default:
		return models.Errorf(models.CodeValidationError,
			"asset type %q must be %q or %q", asset.Type, models.AssetNative, models.AssetERC20)
	}
	return nil
}

// normalizeAsset checksums the contract address so stored intents
// compare consistently
func normalizeAsset(asset models.Asset) models.Asset {
	if asset.Type == models.AssetERC20 {
		asset.ContractAddress = common.HexToAddress(asset.ContractAddress).Hex()
	}
	return asset
}
