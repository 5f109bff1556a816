// Package webapi serves a checkout session to a browser UI as JSON.
package webapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	x402pay "github.com/vitwit/x402pay"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/session"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

const (
	defaultQRSize   = 256
	maxQRSize       = 1024
	shutdownTimeout = 5 * time.Second
)

// WebAPI exposes one checkout session over HTTP.
type WebAPI struct {
	checkout *x402pay.Checkout
	session  *session.Session
	addr     string
	metrics  http.Handler
	logger   logger.Logger
}

type Option func(*WebAPI)

func WithLogger(l logger.Logger) Option {
	return func(t *WebAPI) {
		t.logger = l
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(t *WebAPI) {
		t.metrics = h
	}
}

// NewWebAPI opens a session on checkout and serves it on addr.
func NewWebAPI(checkout *x402pay.Checkout, addr string, opts ...Option) *WebAPI {
	t := &WebAPI{checkout: checkout, addr: addr}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logger.OrNoop(t.logger)
	t.session = checkout.NewSession(session.WithListener(t.logTransition))
	return t
}

// Session returns the session served by this API.
func (t *WebAPI) Session() *session.Session {
	return t.session
}

func (t *WebAPI) Handler() http.Handler {
	mux := httprouter.New()

	// GET /checkout -> { session, plan, wallet }
	mux.GET("/checkout", t.getCheckout)

	// POST /checkout/open -> { session } reset the dialog
	mux.POST("/checkout/open", t.open)

	// POST [{ amount, recipient, description }] /checkout/pay -> { session } start a payment (defaults to the plan)
	mux.POST("/checkout/pay", t.pay)

	// POST /checkout/retry -> { session } leave the error state
	mux.POST("/checkout/retry", t.retry)

	// POST /checkout/close -> { session } close the dialog and stop polling
	mux.POST("/checkout/close", t.close)

	// GET /checkout/receipt.png ? size -> QR code of the explorer link
	mux.GET("/checkout/receipt.png", t.receiptQR)

	// GET /balance/:address -> { amount, known }
	mux.GET("/balance/:address", t.getBalance)

	// GET /transactions/:id -> { confirmed, confirmations }
	mux.GET("/transactions/:id", t.getTransaction)

	// GET /version -> { library_version, ... }
	mux.GET("/version", t.getVersion)

	if t.metrics != nil {
		mux.Handler(http.MethodGet, "/metrics", t.metrics)
	}
	return mux
}

// Run serves until ctx is done, then shuts down and disposes the session.
func (t *WebAPI) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		t.logger.Info("web API listening", map[string]any{"addr": t.addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		t.session.Dispose()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	t.session.Dispose()
	return err
}

type walletView struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
	Network   string `json:"network"`
}

type checkoutView struct {
	Session types.Snapshot       `json:"session"`
	Plan    types.PaymentRequest `json:"plan"`
	Wallet  walletView           `json:"wallet"`
}

func (t *WebAPI) getCheckout(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	view := checkoutView{
		Session: t.session.Snapshot(),
		Plan:    t.checkout.Plan(),
		Wallet: walletView{
			Network: t.checkout.Network().String(),
		},
	}
	if wc := t.checkout.Wallet(); wc != nil {
		view.Wallet.Address = wc.Address()
		view.Wallet.Connected = wc.IsConnected()
	}
	sendResponse(w, t.logger, view)
}

func (t *WebAPI) open(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	t.session.Open()
	sendResponse(w, t.logger, t.session.Snapshot())
}

func (t *WebAPI) pay(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	req := t.checkout.Plan()

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		sendBadRequest(w, t.logger, "error reading request body")
		return
	}
	if len(body) > 0 {
		req, err = utils.ParsePaymentRequest(body)
		if err != nil {
			sendError(w, t.logger, "pay", err)
			return
		}
	}

	if !t.session.Pay(req) {
		sendErrorResponse(w, t.logger, http.StatusConflict, errConflict, "pay: a payment is already in progress")
		return
	}
	sendResponse(w, t.logger, t.session.Snapshot())
}

func (t *WebAPI) retry(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !t.session.Retry() {
		sendErrorResponse(w, t.logger, http.StatusConflict, errConflict, "retry: checkout is not in the error state")
		return
	}
	sendResponse(w, t.logger, t.session.Snapshot())
}

func (t *WebAPI) close(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	t.session.Close()
	sendResponse(w, t.logger, t.session.Snapshot())
}

func (t *WebAPI) receiptQR(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	snap := t.session.Snapshot()
	if snap.ExplorerURL == "" {
		sendErrorResponse(w, t.logger, http.StatusNotFound, errNotFound, "receipt: no transaction yet")
		return
	}

	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxQRSize {
			sendBadRequest(w, t.logger, "receipt: invalid size")
			return
		}
		size = n
	}

	png, err := GenerateQRCodePNG(snap.ExplorerURL, size)
	if err != nil {
		sendError(w, t.logger, "receipt", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (t *WebAPI) getBalance(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	address := p.ByName("address")
	if address == "" {
		sendBadRequest(w, t.logger, "missing address in URL")
		return
	}
	// unknown balances are reported with known=false rather than as an error
	bal, _ := t.checkout.Lookup(r.Context(), address)
	sendResponse(w, t.logger, bal)
}

func (t *WebAPI) getTransaction(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("id")
	if id == "" {
		sendBadRequest(w, t.logger, "missing transaction id in URL")
		return
	}
	sendResponse(w, t.logger, t.checkout.Status(r.Context(), id))
}

func (t *WebAPI) getVersion(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	sendResponse(w, t.logger, x402pay.GetVersion())
}

func (t *WebAPI) logTransition(snap types.Snapshot) {
	t.logger.Debug("checkout state", map[string]any{
		"session":       snap.SessionID,
		"state":         snap.State.String(),
		"tx":            snap.TransactionID,
		"confirmations": snap.Confirmations,
	})
}
