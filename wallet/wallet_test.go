package wallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils/eip712"
)

// anvil account #0
const (
	testKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	payTo       = "0x742d35Cc6634C0532925a3b8D0f0b25b47d5d2b2"
)

func requirements(amount string) types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:            types.SchemeExact,
		Network:           types.NetworkBaseSepolia.String(),
		MaxAmountRequired: amount,
		Resource:          "/payments",
		PayTo:             payTo,
		MaxTimeoutSeconds: 60,
		Asset:             types.USDCBaseSepolia,
		Extra:             map[string]any{"name": "USDC", "version": "2"},
	}
}

func TestKeySignerSign(t *testing.T) {
	signer, err := NewKeySigner(testKey, types.NetworkBaseSepolia)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress).Hex(), signer.Address())

	fixed := time.Unix(1_700_000_000, 0)
	signer.now = func() time.Time { return fixed }

	req := requirements("19000000")
	payload, err := signer.Sign(&req)
	require.NoError(t, err)

	auth := payload.Payload.Authorization
	assert.Equal(t, types.X402Version, payload.X402Version)
	assert.Equal(t, "base-sepolia", payload.Network)
	assert.Equal(t, "19000000", auth.Value)
	assert.Equal(t, strconv.FormatInt(fixed.Unix()-5, 10), auth.ValidAfter)
	assert.Equal(t, strconv.FormatInt(fixed.Unix()+60, 10), auth.ValidBefore)

	domain := signer.Domain(&req)
	assert.Equal(t, "USDC", domain.Name)
	assert.Equal(t, int64(84532), domain.ChainID.Int64())

	recovered, err := eip712.RecoverSigner(domain, auth, payload.Payload.Signature)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), recovered)
}

func TestKeySignerRejects(t *testing.T) {
	signer, err := NewKeySigner(testKey, types.NetworkBaseSepolia, WithMaxAmount("10"))
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), signer.GetMaxAmount().Int64())

	req := requirements("19000000")
	_, err = signer.Sign(&req)
	var perr *types.PaymentError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Message, "exceeds limit")

	other := requirements("1")
	other.Network = types.NetworkBase.String()
	assert.False(t, signer.CanSign(&other))

	_, err = signer.Sign(nil)
	require.Error(t, err)

	_, err = NewKeySigner("nothex", types.NetworkBase)
	require.Error(t, err)
	_, err = NewKeySigner(testKey, types.Network("polygon"))
	require.Error(t, err)
}

func TestKeySignerRejectsBadMaxAmount(t *testing.T) {
	for _, amount := range []string{"100 USDC", "abc", "-5", "1.0000001"} {
		_, err := NewKeySigner(testKey, types.NetworkBase, WithMaxAmount(amount))
		var perr *types.PaymentError
		require.True(t, errors.As(err, &perr), amount)
		assert.Equal(t, types.ErrConfigError, perr.Code, amount)
	}

	signer, err := NewKeySigner(testKey, types.NetworkBase, WithMaxAmount(""))
	require.NoError(t, err)
	assert.Nil(t, signer.GetMaxAmount())
}

func TestPaymentTransportAnswersChallenge(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"to":"0xR"}`, string(body))

		header := r.Header.Get(types.PaymentHeader)
		if header == "" {
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(types.X402Response{
				X402Version: types.X402Version,
				Accepts:     []types.PaymentRequirements{requirements("19000000")},
			})
			return
		}

		payload, err := DecodePayload(header)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "19000000", payload.Payload.Authorization.Value)
		_, _ = w.Write([]byte(`{"transactionHash":"0xT"}`))
	}))
	defer srv.Close()

	signer, err := NewKeySigner(testKey, types.NetworkBaseSepolia)
	require.NoError(t, err)
	w := NewKeyWallet(signer, srv.Client().Transport)
	assert.Nil(t, w.Transport())

	w.Connect()
	require.True(t, w.IsConnected())
	client := &http.Client{Transport: w.Transport()}

	resp, err := client.Post(srv.URL+"/payments", "application/json", bytes.NewBufferString(`{"to":"0xR"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())

	w.Disconnect()
	assert.Nil(t, w.Transport())
}

func TestPaymentTransportNoMatchingRequirement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"x402Version":1,"accepts":[],"error":"no route"}`))
	}))
	defer srv.Close()

	signer, err := NewKeySigner(testKey, types.NetworkBaseSepolia)
	require.NoError(t, err)
	client := &http.Client{Transport: NewPaymentTransport(signer, srv.Client().Transport)}

	_, err = client.Get(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route")
}

func TestStatic(t *testing.T) {
	assert.False(t, Static{Addr: testAddress}.IsConnected())
	assert.True(t, Static{Addr: testAddress, RoundTripper: http.DefaultTransport}.IsConnected())
}
