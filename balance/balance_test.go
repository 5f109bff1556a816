package balance

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/types"
)

type fakeSource struct {
	balance *big.Int
	err     error
}

func (f fakeSource) BalanceOf(context.Context, string) (*big.Int, error) {
	return f.balance, f.err
}

func TestGetBalance(t *testing.T) {
	r := NewReader(fakeSource{balance: big.NewInt(25_500_000)}, types.NetworkBase, nil, nil)
	assert.Equal(t, "25.5", r.GetBalance(context.Background(), "0xabc"))
}

func TestGetBalanceFailureReturnsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewReader(clients.NewAPIClient(srv.URL, types.USDCBase, srv.Client()), types.NetworkBase, nil, nil)
	assert.Equal(t, "0", r.GetBalance(context.Background(), "0xabc"))

	bal, err := r.Lookup(context.Background(), "0xabc")
	require.Error(t, err)
	assert.False(t, bal.Known)
	assert.Equal(t, Unknown, bal.Amount)
}

func TestGetBalanceMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balance":"lots"}`))
	}))
	defer srv.Close()

	r := NewReader(clients.NewAPIClient(srv.URL, types.USDCBase, srv.Client()), types.NetworkBase, nil, nil)
	assert.Equal(t, "0", r.GetBalance(context.Background(), "0xabc"))
}

func TestSufficient(t *testing.T) {
	r := NewReader(fakeSource{balance: big.NewInt(19_000_000)}, types.NetworkBase, nil, nil)

	ok, bal := r.Sufficient(context.Background(), "0xabc", "19.00")
	assert.True(t, ok)
	assert.True(t, bal.Known)

	ok, _ = r.Sufficient(context.Background(), "0xabc", "19.000001")
	assert.False(t, ok)

	failing := NewReader(fakeSource{err: errors.New("down")}, types.NetworkBase, nil, nil)
	ok, bal = failing.Sufficient(context.Background(), "0xabc", "0")
	assert.False(t, ok)
	assert.False(t, bal.Known)
}
