// Package clients talks to the payment service and to the chain.
package clients

import (
	"context"
	"math/big"

	"github.com/vitwit/x402pay/types"
)

// PaymentSubmitter submits a payment through an interceptor-wrapped transport.
type PaymentSubmitter interface {
	SubmitPayment(ctx context.Context, submission types.PaymentSubmission) (*types.PaymentReceipt, error)
}

// StatusSource reports confirmation progress of a transaction.
type StatusSource interface {
	TransactionStatus(ctx context.Context, txID string) (*types.TransactionStatus, error)
}

// BalanceSource reports a token balance in smallest units.
type BalanceSource interface {
	BalanceOf(ctx context.Context, owner string) (*big.Int, error)
}

var (
	_ PaymentSubmitter = (*APIClient)(nil)
	_ StatusSource     = (*APIClient)(nil)
	_ BalanceSource    = (*APIClient)(nil)
	_ StatusSource     = (*EVMClient)(nil)
	_ BalanceSource    = (*EVMClient)(nil)
)
