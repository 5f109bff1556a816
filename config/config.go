// Package config loads checkout settings from a file and X402PAY_* env vars.
package config

import (
	"fmt"
	"time"

	"github.com/jinzhu/configor"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

// EnvPrefix prefixes every environment override, e.g. X402PAY_CHECKOUT_NETWORK.
const EnvPrefix = "X402PAY"

type Config struct {
	Checkout struct {
		Network string `default:"base" validate:"oneof=base base-sepolia" yaml:"network" json:"network"`
		APIURL  string `default:"https://api.x402.dev" validate:"required,url" yaml:"apiURL" json:"apiURL" env:"X402PAY_API_URL"`
		// optional: read balances and confirmations on-chain instead of through the API
		RPCURL  string `yaml:"rpcURL" json:"rpcURL" env:"X402PAY_RPC_URL"`
		// token contract; empty uses the network's USDC
		Asset   string `yaml:"asset" json:"asset"`

		HTTPTimeoutSeconds         int  `default:"30" validate:"gt=0" yaml:"httpTimeoutSeconds" json:"httpTimeoutSeconds"`
		PollIntervalSeconds        int  `default:"5" validate:"gt=0" yaml:"pollIntervalSeconds" json:"pollIntervalSeconds"`
		ConfirmationTimeoutSeconds int  `default:"600" validate:"gte=0" yaml:"confirmationTimeoutSeconds" json:"confirmationTimeoutSeconds"`
		RequiredConfirmations      int  `default:"1" validate:"gte=1" yaml:"requiredConfirmations" json:"requiredConfirmations"`
		MaxPollAttempts            int  `default:"120" validate:"gte=0" yaml:"maxPollAttempts" json:"maxPollAttempts"`
		RequireSufficientBalance   bool `yaml:"requireSufficientBalance" json:"requireSufficientBalance"`
	}

	Wallet struct {
		PrivateKey       string `yaml:"privateKey" json:"-" env:"X402PAY_PRIVATE_KEY"`
		MaxPaymentAmount string `default:"100" validate:"omitempty,usdcamount" yaml:"maxPaymentAmount" json:"maxPaymentAmount"`
	}

	// the plan offered by the checkout dialog
	Plan struct {
		Name        string `default:"Pro" yaml:"name" json:"name"`
		Amount      string `default:"19.00" validate:"usdcamount" yaml:"amount" json:"amount"`
		Description string `default:"AlphaFlow AI Pro Plan" yaml:"description" json:"description"`
		Recipient   string `default:"0x742d35Cc6634C0532925a3b8D0f0b25b47d5d2b2" validate:"required" yaml:"recipient" json:"recipient"`
	}

	Log struct {
		Level      string `default:"info" validate:"oneof=debug info warn error" yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSizeMB  int    `default:"100" yaml:"maxSizeMB" json:"maxSizeMB"`
		MaxBackups int    `default:"3" yaml:"maxBackups" json:"maxBackups"`
	}

	WebAPI struct {
		Bind    string `default:"localhost" yaml:"bind" json:"bind"`
		Port    string `default:"8402" yaml:"port" json:"port"`
		// serve /metrics
		Metrics bool   `yaml:"metrics" json:"metrics"`
	}
}

// Load reads the files in order, applies defaults and env overrides, and
// validates the result.
func Load(files ...string) (Config, error) {
	var c Config
	loader := configor.New(&configor.Config{ENVPrefix: EnvPrefix})
	if err := loader.Load(&c, files...); err != nil {
		return c, types.NewPaymentError(types.ErrConfigError, "failed to load config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Default returns the defaults with env overrides and no config file.
// Unlike Load it does not validate.
func Default() (Config, error) {
	var c Config
	if err := configor.New(&configor.Config{ENVPrefix: EnvPrefix}).Load(&c); err != nil {
		return c, types.NewPaymentError(types.ErrConfigError, "failed to load config: %v", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if err := utils.Struct(c); err != nil {
		return types.NewPaymentError(types.ErrConfigError, "invalid config: %v", err)
	}
	return nil
}

func (c Config) Network() types.Network {
	return types.Network(c.Checkout.Network)
}

// Asset returns the configured token contract or the network's USDC.
func (c Config) Asset() string {
	if c.Checkout.Asset != "" {
		return c.Checkout.Asset
	}
	return c.Network().USDCAddress()
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Checkout.HTTPTimeoutSeconds) * time.Second
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Checkout.PollIntervalSeconds) * time.Second
}

func (c Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.Checkout.ConfirmationTimeoutSeconds) * time.Second
}

// PlanRequest builds the payment request for the configured plan.
func (c Config) PlanRequest() types.PaymentRequest {
	return types.NewPaymentRequest(c.Plan.Amount, c.Plan.Recipient, c.Plan.Description)
}

// ListenAddr is the web API listen address.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.WebAPI.Bind, c.WebAPI.Port)
}
