package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
	"github.com/vitwit/x402pay/utils/eip712"
)

// Default EIP-712 domain of USDC when the requirements carry no extra info.
const (
	DefaultTokenName    = "USD Coin"
	DefaultTokenVersion = "2"
)

// validAfterSkew backdates authorizations to tolerate clock drift.
const validAfterSkew = 5 * time.Second

// defaultValidity applies when requirements carry no maxTimeoutSeconds.
const defaultValidity = 10 * time.Minute

// KeySigner signs EIP-3009 authorizations for one network with a private key.
type KeySigner struct {
	key       *ecdsa.PrivateKey
	address   common.Address
	network   types.Network
	maxAmount *big.Int

	now func() time.Time
}

// SignerOption configures a KeySigner.
type SignerOption func(*KeySigner) error

// WithMaxAmount caps a single authorization, in whole tokens ("100.00").
// An empty amount leaves the signer uncapped.
func WithMaxAmount(amount string) SignerOption {
	return func(s *KeySigner) error {
		if amount == "" {
			return nil
		}
		if _, err := utils.ValidateAmount(amount, types.USDCDecimals); err != nil {
			return types.NewPaymentError(types.ErrConfigError, "invalid max payment amount %q: %v", amount, err)
		}
		v, err := utils.ToSmallestUnit(amount, types.USDCDecimals)
		if err != nil {
			return types.NewPaymentError(types.ErrConfigError, "invalid max payment amount %q: %v", amount, err)
		}
		s.maxAmount = v
		return nil
	}
}

// NewKeySigner parses hexKey and returns a signer for network.
func NewKeySigner(hexKey string, network types.Network, opts ...SignerOption) (*KeySigner, error) {
	if !network.IsSupported() {
		return nil, types.NewPaymentError(types.ErrUnsupportedNetwork, "unsupported network: %s", network)
	}

	key, err := utils.PrivateKeyFromHex(hexKey)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrConfigError, "%v", err)
	}

	s := &KeySigner{
		key:     key,
		address: utils.AddressFromPrivateKey(key),
		network: network,
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *KeySigner) Address() string {
	return s.address.Hex()
}

func (s *KeySigner) Network() types.Network {
	return s.network
}

// GetMaxAmount returns the per-call spending limit in smallest units, or nil.
func (s *KeySigner) GetMaxAmount() *big.Int {
	return s.maxAmount
}

// CanSign reports whether the requirements target this signer's network and scheme.
func (s *KeySigner) CanSign(req *types.PaymentRequirements) bool {
	return req != nil &&
		req.Scheme == types.SchemeExact &&
		req.Network == s.network.String() &&
		utils.ValidateAddress(req.PayTo) &&
		utils.ValidateAddress(req.Asset)
}

// Sign builds and signs a transferWithAuthorization for req.
func (s *KeySigner) Sign(req *types.PaymentRequirements) (*types.PaymentPayload, error) {
	if req == nil {
		return nil, fmt.Errorf("no payment requirements to sign")
	}
	if !s.CanSign(req) {
		return nil, fmt.Errorf("cannot sign %s payment on %s", req.Scheme, req.Network)
	}

	value, err := utils.ParseSmallestUnit(req.MaxAmountRequired)
	if err != nil {
		return nil, fmt.Errorf("invalid maxAmountRequired: %w", err)
	}
	if s.maxAmount != nil && value.Cmp(s.maxAmount) > 0 {
		return nil, types.NewPaymentError(types.ErrInvalidRequest,
			"payment of %s exceeds limit of %s",
			utils.FromSmallestUnit(value, types.USDCDecimals),
			utils.FromSmallestUnit(s.maxAmount, types.USDCDecimals))
	}

	nonce, err := utils.RandomNonce()
	if err != nil {
		return nil, err
	}

	validity := defaultValidity
	if req.MaxTimeoutSeconds > 0 {
		validity = time.Duration(req.MaxTimeoutSeconds) * time.Second
	}
	now := s.now()

	auth := types.EIP3009Authorization{
		From:        s.address.Hex(),
		To:          utils.NormalizeAddress(req.PayTo),
		Value:       value.String(),
		ValidAfter:  strconv.FormatInt(now.Add(-validAfterSkew).Unix(), 10),
		ValidBefore: strconv.FormatInt(now.Add(validity).Unix(), 10),
		Nonce:       nonce,
	}

	sig, err := eip712.Sign(s.domain(req), auth, s.key)
	if err != nil {
		return nil, err
	}

	return &types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      types.SchemeExact,
		Network:     s.network.String(),
		Payload: types.EIP3009Payload{
			Signature:     sig,
			Authorization: auth,
		},
	}, nil
}

func (s *KeySigner) domain(req *types.PaymentRequirements) eip712.Domain {
	return eip712.Domain{
		Name:              extraString(req.Extra, "name", DefaultTokenName),
		Version:           extraString(req.Extra, "version", DefaultTokenVersion),
		ChainID:           big.NewInt(s.network.ChainID()),
		VerifyingContract: common.HexToAddress(req.Asset),
	}
}

func extraString(extra map[string]any, key, def string) string {
	if v, ok := extra[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Domain returns the EIP-712 domain used to sign for req.
func (s *KeySigner) Domain(req *types.PaymentRequirements) eip712.Domain {
	return s.domain(req)
}

// amountString renders smallest units for log fields.
func amountString(v string) string {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return v
	}
	return d.Shift(-types.USDCDecimals).String()
}
