// Package x402pay is the checkout core of an x402 USDC payment dialog on Base:
// it initiates payments through the payment service, polls them to
// confirmation and exposes the dialog state machine to a UI.
package x402pay

import (
	"context"
	"net/http"

	"github.com/vitwit/x402pay/balance"
	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/session"
	"github.com/vitwit/x402pay/settlement"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/verification"
	"github.com/vitwit/x402pay/wallet"
)

// Checkout wires configuration, remote clients and the wallet into sessions.
type Checkout struct {
	cfg     config.Config
	network types.Network
	wallet  wallet.Context

	initiator *settlement.Initiator
	checker   *verification.StatusChecker
	balances  *balance.Reader
	chain     *clients.EVMClient

	logger        logger.Logger
	metrics       metrics.Recorder
	httpClient    *http.Client
	statusSource  clients.StatusSource
	balanceSource clients.BalanceSource
}

// New creates a Checkout for cfg paying from w. When cfg names an RPC URL,
// balances and confirmations are read on-chain unless overridden by options.
func New(cfg config.Config, w wallet.Context, opts ...Option) (*Checkout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Checkout{
		cfg:     cfg,
		network: cfg.Network(),
		wallet:  w,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNoop(c.logger)
	c.metrics = metrics.OrNoop(c.metrics)
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.HTTPTimeout()}
	}

	api := clients.NewAPIClient(cfg.Checkout.APIURL, cfg.Asset(), c.httpClient)

	if cfg.Checkout.RPCURL != "" && (c.statusSource == nil || c.balanceSource == nil) {
		chain, err := clients.NewEVMClient(c.network, cfg.Checkout.RPCURL, cfg.Asset())
		if err != nil {
			return nil, types.NewPaymentError(types.ErrConfigError, "%v", err)
		}
		c.chain = chain
		if c.statusSource == nil {
			c.statusSource = chain
		}
		if c.balanceSource == nil {
			c.balanceSource = chain
		}
	}
	if c.statusSource == nil {
		c.statusSource = api
	}
	if c.balanceSource == nil {
		c.balanceSource = api
	}

	c.initiator = settlement.NewInitiator(w, settlement.Config{
		BaseURL: cfg.Checkout.APIURL,
		Network: c.network,
		Token:   cfg.Asset(),
		Timeout: cfg.HTTPTimeout(),
	}, c.logger, c.metrics)
	c.checker = verification.NewStatusChecker(c.statusSource, c.network, c.logger, c.metrics)
	c.balances = balance.NewReader(c.balanceSource, c.network, c.logger, c.metrics)

	c.logger.Info("checkout ready", map[string]any{
		"network": c.network.String(),
		"api":     cfg.Checkout.APIURL,
		"onchain": c.chain != nil,
	})
	return c, nil
}

// NewSession opens a payment dialog.
func (c *Checkout) NewSession(opts ...session.Option) *session.Session {
	base := []session.Option{
		session.WithNetwork(c.network),
		session.WithLogger(c.logger),
		session.WithMetrics(c.metrics),
	}
	if c.cfg.Checkout.RequireSufficientBalance {
		base = append(base, session.WithFundsCheck(c.balances))
	}
	return session.New(c.wallet, c.initiator, c.newPoller(), append(base, opts...)...)
}

func (c *Checkout) newPoller() *verification.Poller {
	return verification.NewPoller(c.checker, verification.PollerConfig{
		Interval:              c.cfg.PollInterval(),
		RequiredConfirmations: c.cfg.Checkout.RequiredConfirmations,
		MaxAttempts:           c.cfg.Checkout.MaxPollAttempts,
		Timeout:               c.cfg.ConfirmationTimeout(),
	}, c.logger, c.metrics)
}

// Wallet returns the wallet payments are made from.
func (c *Checkout) Wallet() wallet.Context {
	return c.wallet
}

func (c *Checkout) Network() types.Network {
	return c.network
}

// Plan returns the configured plan as a payment request.
func (c *Checkout) Plan() types.PaymentRequest {
	return c.cfg.PlanRequest()
}

// Balance returns the token balance of address, or "0" when unavailable.
func (c *Checkout) Balance(ctx context.Context, address string) string {
	return c.balances.GetBalance(ctx, address)
}

// Lookup returns the token balance of address and whether it is known.
func (c *Checkout) Lookup(ctx context.Context, address string) (types.Balance, error) {
	return c.balances.Lookup(ctx, address)
}

// Status checks a transaction once.
func (c *Checkout) Status(ctx context.Context, txID string) types.TransactionStatus {
	return c.checker.PollStatus(ctx, txID)
}

// PayAndWait pays req in a fresh session and blocks until it succeeds,
// fails or ctx ends. A failed payment returns its code as a PaymentError.
func (c *Checkout) PayAndWait(ctx context.Context, req types.PaymentRequest) (types.Snapshot, error) {
	s := c.NewSession()
	defer s.Dispose()

	s.Pay(req)
	snap, err := s.Wait(ctx)
	if err != nil {
		return snap, err
	}
	if snap.State == types.StateError {
		return snap, &types.PaymentError{Code: snap.ErrorCode, Message: snap.Error}
	}
	return snap, nil
}

// Close releases the on-chain connection, if any.
func (c *Checkout) Close() {
	if c.chain != nil {
		c.chain.Close()
	}
}

// Version information
const (
	Version         = "1.0.0"
	ProtocolVersion = types.X402Version
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":  Version,
		"protocol_version": ProtocolVersion,
		"supported_networks": []string{
			types.NetworkBase.String(),
			types.NetworkBaseSepolia.String(),
		},
		"supported_schemes": []string{
			types.SchemeExact,
		},
		"supported_standards": []string{
			"erc20", "eip3009",
		},
	}
}

// WalletFromConfig builds a connected key wallet from cfg.Wallet. Without a
// private key it returns a disconnected wallet, so payments fail with
// WALLET_UNAVAILABLE while balances and statuses still work.
func WalletFromConfig(cfg config.Config, l logger.Logger) (wallet.Context, error) {
	if cfg.Wallet.PrivateKey == "" {
		return wallet.Static{}, nil
	}

	signer, err := wallet.NewKeySigner(cfg.Wallet.PrivateKey, cfg.Network(), wallet.WithMaxAmount(cfg.Wallet.MaxPaymentAmount))
	if err != nil {
		return nil, err
	}

	w := wallet.NewKeyWallet(signer, nil, wallet.WithTransportLogger(logger.OrNoop(l)))
	w.Connect()
	return w, nil
}
