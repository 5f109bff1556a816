package x402pay

import (
	"net/http"
	"time"

	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
)

type Option func(*Checkout)

func WithLogger(l logger.Logger) Option {
	return func(c *Checkout) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Checkout) {
		c.metrics = r
	}
}

// WithTimeout overrides the configured HTTP timeout for remote reads.
func WithTimeout(t time.Duration) Option {
	return func(c *Checkout) {
		c.httpClient = &http.Client{Timeout: t}
	}
}

// WithHTTPClient sets the client used for status and balance reads.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Checkout) {
		c.httpClient = h
	}
}

func WithStatusSource(s clients.StatusSource) Option {
	return func(c *Checkout) {
		c.statusSource = s
	}
}

func WithBalanceSource(s clients.BalanceSource) Option {
	return func(c *Checkout) {
		c.balanceSource = s
	}
}
