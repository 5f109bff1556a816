// Package settlement initiates payments against the payment service.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
	"github.com/vitwit/x402pay/wallet"
)

// Initiator submits a PaymentRequest through the wallet's payment transport.
type Initiator struct {
	wallet  wallet.Context
	baseURL string
	network types.Network
	token   string
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
}

// Config holds the remote service settings of an Initiator.
type Config struct {
	BaseURL string
	Network types.Network
	// Token contract; empty uses the network's USDC.
	Token   string
	Timeout time.Duration
}

// NewInitiator creates an Initiator paying from w.
func NewInitiator(w wallet.Context, cfg Config, l logger.Logger, m metrics.Recorder) *Initiator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = clients.DefaultTimeout
	}
	if cfg.Token == "" {
		cfg.Token = cfg.Network.USDCAddress()
	}
	return &Initiator{
		wallet:  w,
		baseURL: cfg.BaseURL,
		network: cfg.Network,
		token:   cfg.Token,
		timeout: cfg.Timeout,
		logger:  logger.OrNoop(l),
		metrics: metrics.OrNoop(m),
	}
}

// Initiate submits req. It never returns an error: every failure is folded
// into a PaymentResult with Success false.
func (i *Initiator) Initiate(ctx context.Context, req types.PaymentRequest) (result types.PaymentResult) {
	start := time.Now()
	labels := map[string]string{"network": i.network.String()}

	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("payment initiation panicked", map[string]any{"panic": fmt.Sprint(r)})
			result = failed(fmt.Sprintf("payment failed: %v", r))
		}
		i.metrics.ObserveLatency("initiate", time.Since(start), labels)
		if result.Success {
			i.metrics.IncCounter("payment_initiated", labels)
		} else {
			i.metrics.IncCounter("payment_failed", labels)
		}
	}()

	rt := i.transport()
	if rt == nil {
		i.logger.Warn("payment initiation without wallet", nil)
		return failed(types.WalletUnavailable.Message)
	}

	if err := utils.ValidatePaymentRequest(req); err != nil {
		return failed(err.Error())
	}

	amount, err := utils.ToSmallestUnit(req.Amount, types.USDCDecimals)
	if err != nil {
		return failed(err.Error())
	}

	// Create timeout context
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	api := clients.NewAPIClient(i.baseURL, i.token, &http.Client{Transport: rt, Timeout: i.timeout})
	receipt, err := api.SubmitPayment(ctx, types.PaymentSubmission{
		To:          req.Recipient,
		Amount:      amount.String(),
		Token:       i.token,
		Description: req.DescriptionOrDefault(),
	})
	if err != nil {
		i.logger.Error("payment submission failed", map[string]any{
			"recipient": req.Recipient,
			"amount":    req.Amount,
			"error":     err,
		})
		return failed(errorMessage(err))
	}

	i.logger.Info("payment submitted", map[string]any{
		"recipient": req.Recipient,
		"amount":    req.Amount,
		"tx":        receipt.TransactionHash,
	})

	return types.PaymentResult{
		Success:       true,
		TransactionID: receipt.TransactionHash,
	}
}

func (i *Initiator) transport() http.RoundTripper {
	if i.wallet == nil || !i.wallet.IsConnected() {
		return nil
	}
	return i.wallet.Transport()
}

func failed(msg string) types.PaymentResult {
	return types.PaymentResult{Success: false, ErrorMessage: msg}
}

func errorMessage(err error) string {
	var perr *types.PaymentError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}
