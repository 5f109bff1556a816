package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402pay/types"
)

func TestDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, types.NetworkBase, c.Network())
	assert.Equal(t, "https://api.x402.dev", c.Checkout.APIURL)
	assert.Equal(t, 30*time.Second, c.HTTPTimeout())
	assert.Equal(t, 5*time.Second, c.PollInterval())
	assert.Equal(t, 1, c.Checkout.RequiredConfirmations)
	assert.Equal(t, 120, c.Checkout.MaxPollAttempts)
	assert.Equal(t, types.USDCBase, c.Asset())
	assert.Equal(t, "localhost:8402", c.ListenAddr())

	req := c.PlanRequest()
	assert.Equal(t, "19.00", req.Amount)
	assert.Equal(t, "0x742d35Cc6634C0532925a3b8D0f0b25b47d5d2b2", req.Recipient)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x402pay.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
checkout:
  network: base-sepolia
  pollIntervalSeconds: 2
plan:
  amount: "5.50"
`), 0o600))

	t.Setenv("X402PAY_API_URL", "https://payments.example.com")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, types.NetworkBaseSepolia, c.Network())
	assert.Equal(t, types.USDCBaseSepolia, c.Asset())
	assert.Equal(t, 2*time.Second, c.PollInterval())
	assert.Equal(t, "5.50", c.Plan.Amount)
	assert.Equal(t, "https://payments.example.com", c.Checkout.APIURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x402pay.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
checkout:
  network: polygon
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var perr *types.PaymentError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, types.ErrConfigError, perr.Code)
}

func TestValidateAmount(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	c.Plan.Amount = "1.0000001"
	require.Error(t, c.Validate())
}

func TestValidateMaxPaymentAmount(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	for _, amount := range []string{"100 USDC", "abc", "-1"} {
		c.Wallet.MaxPaymentAmount = amount
		err := c.Validate()
		var perr *types.PaymentError
		require.True(t, errors.As(err, &perr), amount)
		assert.Equal(t, types.ErrConfigError, perr.Code)
	}

	c.Wallet.MaxPaymentAmount = ""
	assert.NoError(t, c.Validate())
}

func TestDefaultReportsBadEnv(t *testing.T) {
	t.Setenv("X402PAY_CHECKOUT_POLLINTERVALSECONDS", "soon")
	_, err := Default()
	var perr *types.PaymentError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, types.ErrConfigError, perr.Code)
}
