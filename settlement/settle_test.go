package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/wallet"
)

type fakeService struct {
	calls atomic.Int32
	last  types.PaymentSubmission
	reply func(w http.ResponseWriter)
}

func (f *fakeService) start(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.last))
		f.reply(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newInitiator(srv *httptest.Server, w wallet.Context) *Initiator {
	return NewInitiator(w, Config{BaseURL: srv.URL, Network: types.NetworkBase}, nil, nil)
}

func TestInitiateSuccess(t *testing.T) {
	svc := &fakeService{reply: func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"transactionHash":"0xT"}`))
	}}
	srv := svc.start(t)

	i := newInitiator(srv, wallet.Static{Addr: "0xW", RoundTripper: srv.Client().Transport})
	res := i.Initiate(context.Background(), types.PaymentRequest{Amount: "19.00", Recipient: "0xR"})

	assert.True(t, res.Success)
	assert.Equal(t, "0xT", res.TransactionID)
	assert.Empty(t, res.ErrorMessage)

	assert.Equal(t, "19000000", svc.last.Amount)
	assert.Equal(t, "0xR", svc.last.To)
	assert.Equal(t, types.USDCBase, svc.last.Token)
	assert.Equal(t, types.DefaultDescription, svc.last.Description)
}

func TestInitiateWithoutWallet(t *testing.T) {
	svc := &fakeService{reply: func(w http.ResponseWriter) {}}
	srv := svc.start(t)

	for name, w := range map[string]wallet.Context{
		"nil":          nil,
		"disconnected": wallet.Static{Addr: "0xW"},
	} {
		t.Run(name, func(t *testing.T) {
			res := newInitiator(srv, w).Initiate(context.Background(), types.PaymentRequest{Amount: "19.00", Recipient: "0xR"})
			assert.False(t, res.Success)
			assert.Equal(t, "wallet unavailable", res.ErrorMessage)
		})
	}
	assert.Equal(t, int32(0), svc.calls.Load())
}

func TestInitiateFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply func(w http.ResponseWriter)
		msg   string
	}{
		{
			name: "missing hash",
			reply: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{}`))
			},
			msg: "no transaction hash",
		},
		{
			name: "rejected",
			reply: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"message":"recipient blocked"}`))
			},
			msg: "recipient blocked",
		},
		{
			name: "garbage",
			reply: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte(`not json`))
			},
			msg: "invalid response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{reply: tt.reply}
			srv := svc.start(t)

			res := newInitiator(srv, wallet.Static{RoundTripper: srv.Client().Transport}).
				Initiate(context.Background(), types.PaymentRequest{Amount: "1", Recipient: "0xR"})
			assert.False(t, res.Success)
			assert.Empty(t, res.TransactionID)
			assert.Contains(t, res.ErrorMessage, tt.msg)
		})
	}
}

func TestInitiateInvalidRequest(t *testing.T) {
	svc := &fakeService{reply: func(w http.ResponseWriter) {}}
	srv := svc.start(t)

	res := newInitiator(srv, wallet.Static{RoundTripper: srv.Client().Transport}).
		Initiate(context.Background(), types.PaymentRequest{Amount: "1.0000001", Recipient: "0xR"})
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "invalid payment request")
	assert.Equal(t, int32(0), svc.calls.Load())
}

type panicTransport struct{}

func (panicTransport) RoundTrip(*http.Request) (*http.Response, error) {
	panic("transport exploded")
}

func TestInitiateRecoversPanic(t *testing.T) {
	i := NewInitiator(wallet.Static{RoundTripper: panicTransport{}}, Config{BaseURL: "http://127.0.0.1:1", Network: types.NetworkBase}, nil, nil)
	res := i.Initiate(context.Background(), types.PaymentRequest{Amount: "1", Recipient: "0xR"})
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "transport exploded")
}
