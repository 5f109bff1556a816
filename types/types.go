package types

import (
	"fmt"
	"strings"
	"time"
)

// USDCDecimals is the decimal precision of the USDC token on every supported network.
const USDCDecimals = 6

// DefaultDescription is attached to payments submitted without a description.
const DefaultDescription = "AlphaFlow AI Payment"

// PaymentRequest describes a single payment the user asked for.
// It is passed by value and never mutated after construction.
type PaymentRequest struct {
	// Amount in whole tokens as a decimal string (e.g. "19.00").
	Amount string `json:"amount" validate:"required,usdcamount"`

	// Address receiving the payment.
	Recipient string `json:"recipient" validate:"required"`

	// Free-form description forwarded to the payment service.
	Description string `json:"description,omitempty" validate:"max=256"`
}

// NewPaymentRequest builds a request from user input with surrounding whitespace removed.
// It does not validate; see utils.ValidatePaymentRequest.
func NewPaymentRequest(amount, recipient, description string) PaymentRequest {
	return PaymentRequest{
		Amount:      strings.TrimSpace(amount),
		Recipient:   strings.TrimSpace(recipient),
		Description: strings.TrimSpace(description),
	}
}

// DescriptionOrDefault returns the request description, falling back to DefaultDescription.
func (r PaymentRequest) DescriptionOrDefault() string {
	if r.Description == "" {
		return DefaultDescription
	}
	return r.Description
}

// PaymentResult is produced once per initiation attempt.
// TransactionID is set iff Success is true.
type PaymentResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

// TransactionStatus is re-fetched on every poll tick. Failed marks a
// transaction that was mined but reverted; it never recovers.
type TransactionStatus struct {
	Confirmed     bool   `json:"confirmed"`
	Confirmations int    `json:"confirmations"`
	Failed        bool   `json:"failed,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

// IsFinal reports whether the status satisfies the confirmation threshold.
// A threshold below one is treated as one.
func (s TransactionStatus) IsFinal(required int) bool {
	if required < 1 {
		required = 1
	}
	return s.Confirmed && s.Confirmations >= required
}

// PaymentSubmission is the body of POST /payments.
type PaymentSubmission struct {
	To          string `json:"to"`
	Amount      string `json:"amount"` // smallest units
	Token       string `json:"token"`
	Description string `json:"description"`
}

// PaymentReceipt is the body returned by POST /payments on acceptance.
type PaymentReceipt struct {
	TransactionHash string `json:"transactionHash"`
}

// BalanceResponse is the body returned by GET /balances/{address}.
type BalanceResponse struct {
	Balance string `json:"balance"` // smallest units
}

// Balance is a human-readable token balance.
// Known is false when the balance could not be fetched and Amount is the "0" fallback.
type Balance struct {
	Amount string `json:"amount"`
	Known  bool   `json:"known"`
}

// SessionState is the state of a payment dialog.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateProcessing SessionState = "processing"
	StateConfirming SessionState = "confirming"
	StateSuccess    SessionState = "success"
	StateError      SessionState = "error"
)

// IsBusy reports whether a payment attempt is in flight.
func (s SessionState) IsBusy() bool {
	return s == StateProcessing || s == StateConfirming
}

func (s SessionState) String() string {
	return string(s)
}

// Snapshot is the view of a session handed to the presentation layer.
type Snapshot struct {
	SessionID             string       `json:"sessionId"`
	Version               uint64       `json:"version"`
	Generation            uint64       `json:"generation"`
	State                 SessionState `json:"state"`
	TransactionID         string       `json:"transactionId,omitempty"`
	Confirmations         int          `json:"confirmations"`
	RequiredConfirmations int          `json:"requiredConfirmations"`
	ErrorCode             string       `json:"errorCode,omitempty"`
	Error                 string       `json:"error,omitempty"`
	ExplorerURL           string       `json:"explorerUrl,omitempty"`
	UpdatedAt             time.Time    `json:"updatedAt"`
}

// PaymentError is a coded error raised inside the checkout.
type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *PaymentError) Error() string {
	return e.Message
}

// Is matches any PaymentError carrying the same code.
func (e *PaymentError) Is(target error) bool {
	t, ok := target.(*PaymentError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewPaymentError builds a PaymentError with a formatted message.
func NewPaymentError(code, format string, args ...any) *PaymentError {
	return &PaymentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error codes
const (
	ErrWalletUnavailable   = "WALLET_UNAVAILABLE"
	ErrInvalidRequest      = "INVALID_REQUEST"
	ErrSubmissionFailed    = "SUBMISSION_FAILED"
	ErrConfirmationTimeout = "CONFIRMATION_TIMEOUT"
	ErrInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrNetworkError        = "NETWORK_ERROR"
	ErrConfigError         = "CONFIG_ERROR"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
)

var (
	// WalletUnavailable is reported when no connected wallet or signing transport exists.
	WalletUnavailable = &PaymentError{Code: ErrWalletUnavailable, Message: "wallet unavailable"}

	// ConfirmationTimeout is reported when polling gives up before the transaction confirms.
	ConfirmationTimeout = &PaymentError{Code: ErrConfirmationTimeout, Message: "confirmation timeout"}

	// TransactionFailed is reported when a submitted transaction reverts on chain.
	TransactionFailed = &PaymentError{Code: ErrSubmissionFailed, Message: "transaction failed"}
)
