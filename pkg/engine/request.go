package engine

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/speedrun-hq/paywatch/pkg/models"
)

// PaymentRequest is the rendered payment instructions for an intent:
// an EIP-681 link a wallet can open plus the pieces for manual entry.
type PaymentRequest struct {
	URI           string `json:"uri"`
	Recipient     string `json:"recipient"`
	Amount        string `json:"amount"`
	DisplayAmount string `json:"display_amount"`
	Instructions  string `json:"instructions"`
}

// BuildRequest derives the payment link and human instructions for an
// intent. Native payments encode the value on the recipient directly;
// token payments target the contract's transfer function.
func (e *Engine) BuildRequest(intent *models.PaymentIntent) (PaymentRequest, error) {
	amount, ok := new(big.Int).SetString(intent.Amount, 10)
	if !ok {
		return PaymentRequest{}, models.Errorf(models.CodeValidationError,
			"stored amount %q is not a base-10 integer", intent.Amount)
	}

	display := decimal.NewFromBigInt(amount, -int32(intent.Asset.Decimals)).String()

	var uri string
	switch intent.Asset.Type {
	case models.AssetNative:
		uri = fmt.Sprintf("ethereum:%s@%s?value=%s", intent.Recipient, e.network.Reference, intent.Amount)
	case models.AssetERC20:
		uri = fmt.Sprintf("ethereum:%s@%s/transfer?address=%s&uint256=%s",
			intent.Asset.ContractAddress, e.network.Reference, intent.Recipient, intent.Amount)
	default:
		return PaymentRequest{}, models.Errorf(models.CodeValidationError,
			"unknown asset type %q", intent.Asset.Type)
	}

	return PaymentRequest{
		URI:           uri,
		Recipient:     intent.Recipient,
		Amount:        intent.Amount,
		DisplayAmount: display,
		Instructions: fmt.Sprintf("Send %s %s to %s on %s",
			display, intent.Asset.Symbol, intent.Recipient, e.network.Name()),
	}, nil
}
