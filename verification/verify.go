// Package verification tracks confirmation progress of submitted payments.
package verification

import (
	"context"
	"time"

	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/types"
)

// Defaults for PollerConfig zero values.
const (
	DefaultPollInterval          = 5 * time.Second
	DefaultRequiredConfirmations = 1
	DefaultMaxPollAttempts       = 120
)

// StatusChecker fetches the confirmation status of a transaction.
type StatusChecker struct {
	source  clients.StatusSource
	network types.Network
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewStatusChecker creates a StatusChecker over source.
func NewStatusChecker(source clients.StatusSource, network types.Network, l logger.Logger, m metrics.Recorder) *StatusChecker {
	return &StatusChecker{
		source:  source,
		network: network,
		logger:  logger.OrNoop(l),
		metrics: metrics.OrNoop(m),
	}
}

// PollStatus returns the current status of txID. Failures are reported in
// ErrorMessage with Confirmed false; they are never returned as errors.
func (c *StatusChecker) PollStatus(ctx context.Context, txID string) types.TransactionStatus {
	start := time.Now()
	labels := map[string]string{"network": c.network.String()}

	status, err := c.source.TransactionStatus(ctx, txID)
	c.metrics.ObserveLatency("status", time.Since(start), labels)
	if err != nil {
		c.metrics.IncCounter("status_failed", labels)
		return types.TransactionStatus{ErrorMessage: err.Error()}
	}
	return *status
}

// PollerConfig bounds a polling loop.
type PollerConfig struct {
	Interval              time.Duration
	RequiredConfirmations int
	// MaxAttempts caps the number of status checks; 0 means unlimited.
	MaxAttempts int
	// Timeout caps the total polling time; 0 means unlimited.
	Timeout time.Duration
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.RequiredConfirmations < 1 {
		c.RequiredConfirmations = DefaultRequiredConfirmations
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	return c
}

// Poller checks a transaction on a fixed interval until it is final.
type Poller struct {
	checker *StatusChecker
	cfg     PollerConfig
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewPoller creates a Poller. Zero config values take the package defaults.
func NewPoller(checker *StatusChecker, cfg PollerConfig, l logger.Logger, m metrics.Recorder) *Poller {
	return &Poller{
		checker: checker,
		cfg:     cfg.withDefaults(),
		logger:  logger.OrNoop(l),
		metrics: metrics.OrNoop(m),
	}
}

// Config returns the effective configuration.
func (p *Poller) Config() PollerConfig {
	return p.cfg
}

// Run polls txID every interval, reporting each successful check to onTick.
// The first check happens one interval after Run starts.
//
// Run returns nil once the transaction has the required confirmations,
// types.ConfirmationTimeout when attempts or time run out, an error matching
// types.TransactionFailed when the transaction reverted, and ctx.Err()
// when ctx is cancelled. A check completing after cancellation is dropped.
func (p *Poller) Run(ctx context.Context, txID string, onTick func(types.TransactionStatus)) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.cfg.Timeout > 0 {
		timer := time.NewTimer(p.cfg.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	labels := map[string]string{"network": p.checker.network.String()}
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			p.timedOut(txID, attempts, labels)
			return types.ConfirmationTimeout
		case <-ticker.C:
		}

		attempts++
		status := p.checker.PollStatus(ctx, txID)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if status.Failed {
			p.metrics.IncCounter("payment_reverted", labels)
			p.logger.Warn("transaction failed on chain", map[string]any{
				"tx":    txID,
				"error": status.ErrorMessage,
			})
			msg := status.ErrorMessage
			if msg == "" {
				msg = "reverted"
			}
			return types.NewPaymentError(types.ErrSubmissionFailed, "transaction %s failed: %s", txID, msg)
		}

		if status.ErrorMessage != "" && !status.Confirmed {
			p.logger.Warn("status check failed", map[string]any{
				"tx":      txID,
				"attempt": attempts,
				"error":   status.ErrorMessage,
			})
		} else {
			if onTick != nil {
				onTick(status)
			}
			if status.IsFinal(p.cfg.RequiredConfirmations) {
				p.metrics.IncCounter("payment_confirmed", labels)
				p.logger.Info("payment confirmed", map[string]any{
					"tx":            txID,
					"confirmations": status.Confirmations,
					"attempts":      attempts,
				})
				return nil
			}
		}

		if p.cfg.MaxAttempts > 0 && attempts >= p.cfg.MaxAttempts {
			p.timedOut(txID, attempts, labels)
			return types.ConfirmationTimeout
		}
	}
}

func (p *Poller) timedOut(txID string, attempts int, labels map[string]string) {
	p.metrics.IncCounter("confirmation_timeout", labels)
	p.logger.Warn("gave up waiting for confirmation", map[string]any{
		"tx":       txID,
		"attempts": attempts,
	})
}

// WaitForConfirmation polls txID until it is final and returns the last
// observed status.
func (p *Poller) WaitForConfirmation(ctx context.Context, txID string) (types.TransactionStatus, error) {
	var last types.TransactionStatus
	err := p.Run(ctx, txID, func(s types.TransactionStatus) {
		last = s
	})
	return last, err
}
