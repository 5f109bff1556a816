package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vitwit/x402pay/types"
)

// ValidateAmount checks that amount is a non-negative decimal with at most
// decimals fractional digits.
func ValidateAmount(amount string, decimals int32) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	if !dec.Equal(dec.Truncate(decimals)) {
		return nil, fmt.Errorf("amount %s has more than %d fractional digits", amount, decimals)
	}

	return &dec, nil
}

// ToSmallestUnit converts a human decimal amount into the token's integer
// representation, round(amount * 10^decimals).
func ToSmallestUnit(amount string, decimals int32) (*big.Int, error) {
	dec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return dec.Shift(decimals).Round(0).BigInt(), nil
}

// FromSmallestUnit formats an integer token amount as a decimal string.
func FromSmallestUnit(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseSmallestUnit parses a base-10 integer amount as returned by the remote service.
func ParseSmallestUnit(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}

	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", value)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", value)
	}
	return n, nil
}

var txHashPattern = regexp.MustCompile("^0x[0-9a-fA-F]{64}$")

// ValidateTransactionHash checks an EVM transaction hash (0x + 64 hex).
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	if !txHashPattern.MatchString(hash) {
		return fmt.Errorf("transaction hash must be 0x followed by 64 hex characters")
	}
	return nil
}

// ValidatePaymentRequest checks a request before it reaches the network.
func ValidatePaymentRequest(req types.PaymentRequest) error {
	if err := validate.Struct(req); err != nil {
		return types.NewPaymentError(types.ErrInvalidRequest, "invalid payment request: %v", err)
	}
	return nil
}
