package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402pay/types"
)

func TestAPIClientSubmitPayment(t *testing.T) {
	var got types.PaymentSubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"transactionHash":"0xT"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", types.USDCBase, srv.Client())
	receipt, err := c.SubmitPayment(context.Background(), types.PaymentSubmission{
		To:          "0xR",
		Amount:      "19000000",
		Token:       types.USDCBase,
		Description: "Pro",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xT", receipt.TransactionHash)
	assert.Equal(t, "19000000", got.Amount)
	assert.Equal(t, "0xR", got.To)
	assert.Equal(t, types.USDCBase, got.Token)
}

func TestAPIClientSubmitPaymentWithoutHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, types.USDCBase, srv.Client())
	_, err := c.SubmitPayment(context.Background(), types.PaymentSubmission{To: "0xR", Amount: "1"})
	require.Error(t, err)

	var perr *types.PaymentError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, types.ErrSubmissionFailed, perr.Code)
}

func TestAPIClientErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"insufficient allowance"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, types.USDCBase, srv.Client())
	_, err := c.SubmitPayment(context.Background(), types.PaymentSubmission{To: "0xR", Amount: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient allowance")
	assert.Contains(t, err.Error(), "400")
}

func TestAPIClientTransactionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/0xT", r.URL.Path)
		_, _ = w.Write([]byte(`{"confirmed":true,"confirmations":3}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, types.USDCBase, srv.Client())
	status, err := c.TransactionStatus(context.Background(), "0xT")
	require.NoError(t, err)
	assert.True(t, status.Confirmed)
	assert.Equal(t, 3, status.Confirmations)
	assert.True(t, status.IsFinal(1))
}

func TestAPIClientBalanceOf(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balances/0xabc", r.URL.Path)
		assert.Equal(t, types.USDCBase, r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`{"balance":"1500000"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, types.USDCBase, srv.Client())
	bal, err := c.BalanceOf(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), bal.Int64())
}

func TestAPIClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewAPIClient(url, types.USDCBase, nil)
	_, err := c.TransactionStatus(context.Background(), "0xT")
	require.Error(t, err)

	var perr *types.PaymentError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, types.ErrNetworkError, perr.Code)
}
