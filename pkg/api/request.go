package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/speedrun-hq/paywatch/pkg/engine"
	"github.com/speedrun-hq/paywatch/pkg/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report field names as they appear on the wire.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// createIntentRequest is the POST /v1/intents body. Structural checks
// live here; everything that needs chain context (address validity,
// amount range, asset/contract coupling) is the engine's job.
type createIntentRequest struct {
	ChainID          string       `json:"chain_id" validate:"required"`
	Asset            assetRequest `json:"asset" validate:"required"`
	Recipient        string       `json:"recipient" validate:"required"`
	Amount           string       `json:"amount" validate:"required"`
	Reference        string       `json:"reference" validate:"required"`
	ExpiresAt        *time.Time   `json:"expires_at,omitempty"`
	MinConfirmations *uint64      `json:"min_confirmations,omitempty" validate:"omitempty,gt=0"`
}

type assetRequest struct {
	Symbol          string `json:"symbol" validate:"required"`
	Decimals        int    `json:"decimals" validate:"gte=0,lte=255"`
	Type            string `json:"type" validate:"required,oneof=native erc20"`
	ContractAddress string `json:"contract_address,omitempty"`
}

func (r createIntentRequest) toInput() engine.CreateIntentInput {
	input := engine.CreateIntentInput{
		ChainID: r.ChainID,
		Asset: models.Asset{
			Symbol:          r.Asset.Symbol,
			Decimals:        r.Asset.Decimals,
			Type:            models.AssetType(r.Asset.Type),
			ContractAddress: r.Asset.ContractAddress,
		},
		Recipient:        r.Recipient,
		Amount:           r.Amount,
		Reference:        r.Reference,
		MinConfirmations: r.MinConfirmations,
	}
	if r.ExpiresAt != nil {
		input.ExpiresAt = *r.ExpiresAt
	}
	return input
}

// decodeJSONBody decodes and validates a request body. Unknown fields
// are rejected so typos fail fast instead of silently dropping input.
func decodeJSONBody(r *http.Request, dest interface{}) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return models.Errorf(models.CodeValidationError, "invalid request body: %v", err)
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return models.Errorf(models.CodeValidationError, "validation failed: %v", err)
	}

	parts := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		parts = append(parts, fmt.Sprintf("%s %s", fieldErr.Field(), validationMessage(fieldErr)))
	}
	return models.Errorf(models.CodeValidationError, "validation failed: %s", strings.Join(parts, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}
