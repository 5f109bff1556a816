// Package session implements the payment dialog state machine:
//
//	idle -> processing -> confirming -> success
//	             \             \
//	              +-> error <---+
//
// At most one initiation and one polling loop run per session. Every
// asynchronous continuation carries the generation it started in and is
// dropped once the session has been closed or reopened.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
	"github.com/vitwit/x402pay/verification"
	"github.com/vitwit/x402pay/wallet"
)

// Initiator submits a payment. It reports failure through the result.
type Initiator interface {
	Initiate(ctx context.Context, req types.PaymentRequest) types.PaymentResult
}

// Poller polls a transaction until it is final.
type Poller interface {
	Run(ctx context.Context, txID string, onTick func(types.TransactionStatus)) error
	Config() verification.PollerConfig
}

// FundsChecker reports whether an address can cover an amount.
type FundsChecker interface {
	Sufficient(ctx context.Context, address, amount string) (bool, types.Balance)
}

// Listener receives a snapshot after every state or confirmation change.
// Listeners run synchronously and must not call Close, Open or Dispose.
type Listener func(types.Snapshot)

// Session is one payment dialog.
type Session struct {
	id        string
	wallet    wallet.Context
	initiator Initiator
	poller    Poller
	funds     FundsChecker
	network   types.Network
	logger    logger.Logger
	metrics   metrics.Recorder

	lifetime context.Context
	dispose  context.CancelFunc

	mu            sync.Mutex
	state         types.SessionState
	generation    uint64
	version       uint64
	request       types.PaymentRequest
	txID          string
	confirmations int
	errCode       string
	errMsg        string
	updatedAt     time.Time
	disposed      bool
	pollCancel    context.CancelFunc
	pollDone      chan struct{}

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int

	emitMu      sync.Mutex
	lastEmitted uint64
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Session) {
		s.metrics = r
	}
}

// WithNetwork sets the network used for explorer links.
func WithNetwork(n types.Network) Option {
	return func(s *Session) {
		s.network = n
	}
}

// WithFundsCheck makes Pay verify the wallet balance before initiating.
func WithFundsCheck(f FundsChecker) Option {
	return func(s *Session) {
		s.funds = f
	}
}

func WithListener(l Listener) Option {
	return func(s *Session) {
		s.Subscribe(l)
	}
}

// New creates an idle session paying from w.
func New(w wallet.Context, initiator Initiator, poller Poller, opts ...Option) *Session {
	lifetime, dispose := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		wallet:    w,
		initiator: initiator,
		poller:    poller,
		network:   types.NetworkBase,
		lifetime:  lifetime,
		dispose:   dispose,
		state:     types.StateIdle,
		updatedAt: time.Now(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNoop(s.logger)
	s.metrics = metrics.OrNoop(s.metrics)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Subscribe registers l and returns a function removing it.
func (s *Session) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Pay starts a payment. It is a no-op unless the session is idle, and
// reports whether the session left idle. Without a usable wallet or with an
// invalid request the session moves straight to error without any network
// call. Otherwise the session enters processing and initiation continues in
// the background.
func (s *Session) Pay(req types.PaymentRequest) bool {
	s.mu.Lock()
	if s.disposed || s.state != types.StateIdle {
		s.mu.Unlock()
		return false
	}

	s.request = req

	if err := utils.ValidatePaymentRequest(req); err != nil {
		s.failLocked(types.ErrInvalidRequest, err.Error())
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(snap)
		return true
	}

	if !s.walletReady() {
		s.failLocked(types.ErrWalletUnavailable, types.WalletUnavailable.Message)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(snap)
		return true
	}

	s.transitionLocked(types.StateProcessing)
	gen := s.generation
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	go s.initiate(gen, req)
	return true
}

func (s *Session) walletReady() bool {
	return s.wallet != nil && s.wallet.IsConnected() && s.wallet.Transport() != nil
}

func (s *Session) initiate(gen uint64, req types.PaymentRequest) {
	if s.funds != nil {
		ok, bal := s.funds.Sufficient(s.lifetime, s.wallet.Address(), req.Amount)
		if !ok {
			msg := "insufficient funds: balance " + bal.Amount + ", need " + req.Amount
			if !bal.Known {
				msg = "insufficient funds: balance unavailable"
			}
			s.finishProcessing(gen, types.PaymentResult{ErrorMessage: msg}, types.ErrInsufficientFunds)
			return
		}
	}

	result := s.initiator.Initiate(s.lifetime, req)

	code := types.ErrSubmissionFailed
	if result.ErrorMessage == types.WalletUnavailable.Message {
		code = types.ErrWalletUnavailable
	}
	s.finishProcessing(gen, result, code)
}

// finishProcessing applies an initiation result if the session is still in
// the generation and state that started it.
func (s *Session) finishProcessing(gen uint64, result types.PaymentResult, failCode string) {
	s.mu.Lock()
	if gen != s.generation || s.state != types.StateProcessing {
		s.mu.Unlock()
		s.logger.Debug("discarding stale initiation result", map[string]any{
			"session": s.id,
			"tx":      result.TransactionID,
		})
		return
	}

	if !result.Success || result.TransactionID == "" {
		msg := result.ErrorMessage
		if msg == "" {
			msg = "payment failed"
		}
		s.failLocked(failCode, msg)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(snap)
		return
	}

	s.txID = result.TransactionID
	s.confirmations = 0
	s.transitionLocked(types.StateConfirming)

	ctx, cancel := context.WithCancel(s.lifetime)
	done := make(chan struct{})
	s.pollCancel, s.pollDone = cancel, done
	go s.poll(ctx, gen, result.TransactionID, done)

	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("payment awaiting confirmation", map[string]any{
		"session": s.id,
		"tx":      result.TransactionID,
	})
	s.emit(snap)
}

func (s *Session) poll(ctx context.Context, gen uint64, txID string, done chan struct{}) {
	defer close(done)

	err := s.poller.Run(ctx, txID, func(st types.TransactionStatus) {
		s.onStatus(gen, st)
	})
	s.onPollEnd(gen, txID, err)
}

func (s *Session) onStatus(gen uint64, st types.TransactionStatus) {
	s.mu.Lock()
	if gen != s.generation || s.state != types.StateConfirming || st.Confirmations == s.confirmations {
		s.mu.Unlock()
		return
	}
	s.confirmations = st.Confirmations
	s.touchLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

func (s *Session) onPollEnd(gen uint64, txID string, err error) {
	s.mu.Lock()
	if gen != s.generation || s.state != types.StateConfirming {
		s.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		s.transitionLocked(types.StateSuccess)
	case errors.Is(err, types.ConfirmationTimeout):
		s.failLocked(types.ErrConfirmationTimeout, "payment was not confirmed in time")
	case errors.Is(err, types.TransactionFailed):
		s.failLocked(types.ErrSubmissionFailed, err.Error())
	default:
		// cancelled by Close, Open or Dispose
		s.mu.Unlock()
		return
	}
	if s.pollCancel != nil {
		s.pollCancel()
	}
	s.pollCancel, s.pollDone = nil, nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("payment finished", map[string]any{
		"session": s.id,
		"tx":      txID,
		"state":   snap.State.String(),
	})
	s.emit(snap)
}

// Retry moves an errored session back to idle. It reports whether it did.
func (s *Session) Retry() bool {
	s.mu.Lock()
	if s.state != types.StateError {
		s.mu.Unlock()
		return false
	}
	s.resetLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	return true
}

// Close resets the session to idle and stops any polling. When Close
// returns no status check is in flight and none will start.
func (s *Session) Close() {
	s.reset()
}

// Open resets the session to idle for a new dialog.
func (s *Session) Open() {
	s.reset()
}

func (s *Session) reset() {
	s.mu.Lock()
	cancel, done := s.pollCancel, s.pollDone
	s.pollCancel, s.pollDone = nil, nil
	s.resetLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.emit(snap)
}

// Dispose closes the session and cancels any in-flight initiation. The
// session accepts no payments afterwards.
func (s *Session) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()

	s.Close()
	s.dispose()
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Request returns the last request passed to Pay.
func (s *Session) Request() types.PaymentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request
}

// Wait blocks until the current attempt ends in success or error, the
// session is reset, or ctx is done.
func (s *Session) Wait(ctx context.Context) (types.Snapshot, error) {
	ch := make(chan types.Snapshot, 1)

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	unsubscribe := s.Subscribe(func(snap types.Snapshot) {
		if snap.Generation != gen || isTerminal(snap.State) {
			select {
			case ch <- snap:
			default:
			}
		}
	})
	defer unsubscribe()

	if snap := s.Snapshot(); snap.Generation != gen || isTerminal(snap.State) {
		return snap, nil
	}

	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

func isTerminal(st types.SessionState) bool {
	return st == types.StateSuccess || st == types.StateError
}

func (s *Session) resetLocked() {
	s.generation++
	s.txID = ""
	s.confirmations = 0
	s.errCode = ""
	s.errMsg = ""
	s.transitionLocked(types.StateIdle)
}

func (s *Session) failLocked(code, msg string) {
	s.errCode = code
	s.errMsg = msg
	s.transitionLocked(types.StateError)
	s.logger.Warn("payment failed", map[string]any{
		"session": s.id,
		"code":    code,
		"error":   msg,
	})
}

func (s *Session) transitionLocked(to types.SessionState) {
	s.state = to
	s.touchLocked()
	s.metrics.IncCounter("session_transition", map[string]string{
		"state":   to.String(),
		"network": s.network.String(),
	})
}

func (s *Session) touchLocked() {
	s.version++
	s.updatedAt = time.Now()
}

func (s *Session) snapshotLocked() types.Snapshot {
	return types.Snapshot{
		SessionID:             s.id,
		Version:               s.version,
		Generation:            s.generation,
		State:                 s.state,
		TransactionID:         s.txID,
		Confirmations:         s.confirmations,
		RequiredConfirmations: s.poller.Config().RequiredConfirmations,
		ErrorCode:             s.errCode,
		Error:                 s.errMsg,
		ExplorerURL:           s.network.ExplorerTxURL(s.txID),
		UpdatedAt:             s.updatedAt,
	}
}

// emit delivers snap unless a newer snapshot was already delivered.
func (s *Session) emit(snap types.Snapshot) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if snap.Version <= s.lastEmitted {
		return
	}
	s.lastEmitted = snap.Version

	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(snap)
	}
}
