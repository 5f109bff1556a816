package utils

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/x402pay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("usdcamount", validateAmountTag)
}

func validateAmountTag(fl validator.FieldLevel) bool {
	_, err := ValidateAmount(fl.Field().String(), types.USDCDecimals)
	return err == nil
}

// Struct validates any value carrying validator tags.
func Struct(v any) error {
	return validate.Struct(v)
}

// ParsePaymentRequest parses and validates a PaymentRequest from JSON
func ParsePaymentRequest(data []byte) (types.PaymentRequest, error) {
	var req types.PaymentRequest

	if err := json.Unmarshal(data, &req); err != nil {
		return req, types.NewPaymentError(types.ErrInvalidRequest, "failed to parse payment request: %v", err)
	}

	if err := ValidatePaymentRequest(req); err != nil {
		return req, err
	}

	return req, nil
}

// ParsePaymentRequirements picks the first requirement in a 402 body that
// matches network and scheme.
func ParsePaymentRequirements(data []byte, network types.Network) (*types.PaymentRequirements, error) {
	var resp types.X402Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse payment requirements: %w", err)
	}

	for i := range resp.Accepts {
		req := resp.Accepts[i]
		if req.Scheme == types.SchemeExact && req.Network == network.String() {
			return &req, nil
		}
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("no acceptable payment requirements: %s", resp.Error)
	}
	return nil, fmt.Errorf("no %s payment requirements for network %s", types.SchemeExact, network)
}

// NormalizeJSON formats JSON with consistent indentation
func NormalizeJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}
