package models

import (
	"encoding/json"
	"time"
)

// IntentStatus represents the lifecycle state of a payment intent.
type IntentStatus string

const (
	StatusPending   IntentStatus = "PENDING"
	StatusDetected  IntentStatus = "DETECTED"
	StatusConfirmed IntentStatus = "CONFIRMED"
	StatusExpired   IntentStatus = "EXPIRED"
	StatusFailed    IntentStatus = "FAILED"
)

// AssetType distinguishes the two settlement paths an intent can take.
type AssetType string

const (
	// AssetNative is the chain's native currency, matched against transaction values.
	AssetNative AssetType = "native"
	// AssetERC20 is a token contract, matched against Transfer logs.
	AssetERC20 AssetType = "erc20"
)

// Asset describes what a payment intent expects to receive.
type Asset struct {
	Symbol          string    `json:"symbol"`
	Decimals        int       `json:"decimals"`
	Type            AssetType `json:"type"`
	ContractAddress string    `json:"contract_address,omitempty"`
}

// ConfirmationPolicy controls how deep a matched transaction must be
// buried before the intent is considered settled.
type ConfirmationPolicy struct {
	MinConfirmations uint64 `json:"min_confirmations"`
}

// PaymentIntent is an expectation of an on-chain payment: who should be
// paid, how much, on which network, and by when. Amount is expressed in
// the asset's base units as a base-10 string so that 256-bit values
// survive serialization unharmed.
type PaymentIntent struct {
	ID                 string             `json:"id"`
	ChainID            string             `json:"chain_id"`
	Asset              Asset              `json:"asset"`
	Recipient          string             `json:"recipient"`
	Amount             string             `json:"amount"`
	Reference          string             `json:"reference"`
	ConfirmationPolicy ConfirmationPolicy `json:"confirmation_policy"`
	Status             IntentStatus       `json:"status"`
	TxHash             string             `json:"tx_hash,omitempty"`
	Confirmations      uint64             `json:"confirmations,omitempty"`
	LastCheckedAt      *time.Time         `json:"last_checked_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	ExpiresAt          time.Time          `json:"expires_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// VerificationResult is the outcome of a single verification attempt.
// Status is the state the chain evidence supports; the orchestrator
// decides whether the stored intent may actually move there.
type VerificationResult struct {
	Status        IntentStatus `json:"status"`
	TxHash        string       `json:"tx_hash,omitempty"`
	Confirmations uint64       `json:"confirmations,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	ErrorCode     ErrorCode    `json:"error_code,omitempty"`
}

// EventType labels entries in the intent audit log.
type EventType string

const (
	EventIntentCreated      EventType = "intent.created"
	EventIntentVerification EventType = "intent.verification"
)

// Event is one append-only audit record for an intent. Events are never
// updated or deleted.
type Event struct {
	ID        int64           `json:"id"`
	IntentID  string          `json:"intent_id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreatedPayload is the payload of an intent.created event.
type CreatedPayload struct {
	ChainID   string    `json:"chain_id"`
	Asset     Asset     `json:"asset"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	Reference string    `json:"reference"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerificationPayload records one verification attempt in the audit log,
// including attempts that did not change the stored status.
type VerificationPayload struct {
	PreviousStatus IntentStatus `json:"previous_status"`
	NextStatus     IntentStatus `json:"next_status"`
	Changed        bool         `json:"changed"`
	TxHash         string       `json:"tx_hash,omitempty"`
	Confirmations  uint64       `json:"confirmations,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	ErrorCode      ErrorCode    `json:"error_code,omitempty"`
}

// HealthStatus reports the service's view of its own dependencies.
type HealthStatus struct {
	OK           bool   `json:"ok"`
	NetworkID    string `json:"network_id"`
	RPCConnected bool   `json:"rpc_connected"`
	RPCNetworkID string `json:"rpc_network_id,omitempty"`
	StoreStatus  string `json:"store_status"`
}
