// Package wallet holds the connected wallet a checkout pays from and the
// HTTP transport that answers x402 payment challenges with it.
package wallet

import (
	"net/http"
	"sync"
)

// Context is the wallet a payment session pays from.
// Transport returns nil while the wallet is not connected.
type Context interface {
	IsConnected() bool
	Address() string
	Transport() http.RoundTripper
}

// Static is a fixed wallet context. A nil RoundTripper means disconnected.
type Static struct {
	Addr         string
	RoundTripper http.RoundTripper
}

func (s Static) IsConnected() bool {
	return s.RoundTripper != nil
}

func (s Static) Address() string {
	return s.Addr
}

func (s Static) Transport() http.RoundTripper {
	return s.RoundTripper
}

// KeyWallet is a wallet backed by a local private key.
type KeyWallet struct {
	signer *KeySigner
	base   http.RoundTripper
	opts   []TransportOption

	mu        sync.RWMutex
	connected bool
}

// NewKeyWallet creates a disconnected wallet for the signer. base is the
// transport the payment interceptor wraps; nil uses http.DefaultTransport.
func NewKeyWallet(signer *KeySigner, base http.RoundTripper, opts ...TransportOption) *KeyWallet {
	return &KeyWallet{signer: signer, base: base, opts: opts}
}

func (w *KeyWallet) Connect() {
	w.mu.Lock()
	w.connected = true
	w.mu.Unlock()
}

func (w *KeyWallet) Disconnect() {
	w.mu.Lock()
	w.connected = false
	w.mu.Unlock()
}

func (w *KeyWallet) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *KeyWallet) Address() string {
	return w.signer.Address()
}

// Transport returns a payment interceptor signing with the wallet key.
func (w *KeyWallet) Transport() http.RoundTripper {
	if !w.IsConnected() {
		return nil
	}
	return NewPaymentTransport(w.signer, w.base, w.opts...)
}

var (
	_ Context = Static{}
	_ Context = (*KeyWallet)(nil)
)
