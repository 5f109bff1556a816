// Package balance reads the wallet's token balance for display and for the
// pre-flight funds check.
package balance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

// Unknown is the amount reported when the balance cannot be fetched.
const Unknown = "0"

// Reader converts smallest-unit balances from a source into token amounts.
type Reader struct {
	source  clients.BalanceSource
	network types.Network
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewReader creates a Reader. Nil logger and recorder are replaced by no-ops.
func NewReader(source clients.BalanceSource, network types.Network, l logger.Logger, m metrics.Recorder) *Reader {
	return &Reader{
		source:  source,
		network: network,
		logger:  logger.OrNoop(l),
		metrics: metrics.OrNoop(m),
	}
}

// Lookup returns the balance of address. On failure the amount is Unknown,
// Known is false and the error is returned.
func (r *Reader) Lookup(ctx context.Context, address string) (types.Balance, error) {
	start := time.Now()
	labels := map[string]string{"network": r.network.String()}

	raw, err := r.source.BalanceOf(ctx, address)
	r.metrics.ObserveLatency("balance", time.Since(start), labels)
	if err != nil {
		r.metrics.IncCounter("balance_failed", labels)
		return types.Balance{Amount: Unknown}, err
	}

	return types.Balance{
		Amount: utils.FromSmallestUnit(raw, types.USDCDecimals),
		Known:  true,
	}, nil
}

// GetBalance returns the balance of address as a decimal string, or "0" if
// it cannot be fetched. Failures are logged, never returned.
func (r *Reader) GetBalance(ctx context.Context, address string) string {
	bal, err := r.Lookup(ctx, address)
	if err != nil {
		r.logger.Warn("balance lookup failed", map[string]any{
			"address": address,
			"error":   err,
		})
	}
	return bal.Amount
}

// Sufficient reports whether address holds at least amount. An unknown
// balance is never sufficient.
func (r *Reader) Sufficient(ctx context.Context, address, amount string) (bool, types.Balance) {
	bal, err := r.Lookup(ctx, address)
	if err != nil {
		r.logger.Warn("balance lookup failed", map[string]any{
			"address": address,
			"error":   err,
		})
		return false, bal
	}

	want, err := decimal.NewFromString(amount)
	if err != nil {
		return false, bal
	}
	have, err := decimal.NewFromString(bal.Amount)
	if err != nil {
		return false, bal
	}
	return have.GreaterThanOrEqual(want), bal
}
