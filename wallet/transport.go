package wallet

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

// Signer creates signed payment payloads for a network.
type Signer interface {
	Network() types.Network
	CanSign(req *types.PaymentRequirements) bool
	Sign(req *types.PaymentRequirements) (*types.PaymentPayload, error)
}

// PaymentTransport answers "402 Payment Required" responses by signing the
// advertised requirements and retrying the request once with X-PAYMENT set.
type PaymentTransport struct {
	signer Signer
	base   http.RoundTripper
	logger logger.Logger
}

type TransportOption func(*PaymentTransport)

func WithTransportLogger(l logger.Logger) TransportOption {
	return func(t *PaymentTransport) {
		t.logger = l
	}
}

// NewPaymentTransport wraps base, or http.DefaultTransport when nil.
func NewPaymentTransport(signer Signer, base http.RoundTripper, opts ...TransportOption) *PaymentTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &PaymentTransport{signer: signer, base: base}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logger.OrNoop(t.logger)
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *PaymentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	resp, err := t.base.RoundTrip(cloneWithBody(req, body))
	if err != nil || resp.StatusCode != http.StatusPaymentRequired {
		return resp, err
	}
	if req.Header.Get(types.PaymentHeader) != "" {
		// already paid once
		return resp, nil
	}

	challenge, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading payment challenge: %w", err)
	}

	requirements, err := utils.ParsePaymentRequirements(challenge, t.signer.Network())
	if err != nil {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, "%v", err)
	}

	payload, err := t.signer.Sign(requirements)
	if err != nil {
		return nil, fmt.Errorf("signing payment: %w", err)
	}

	header, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	t.logger.Info("answering payment challenge", map[string]any{
		"resource": requirements.Resource,
		"payTo":    requirements.PayTo,
		"amount":   amountString(requirements.MaxAmountRequired),
		"network":  requirements.Network,
	})

	retry := cloneWithBody(req, body)
	retry.Header.Set(types.PaymentHeader, header)
	return t.base.RoundTrip(retry)
}

func cloneWithBody(req *http.Request, body []byte) *http.Request {
	r := req.Clone(req.Context())
	if body == nil {
		r.Body = http.NoBody
		r.ContentLength = 0
		return r
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return r
}

func encodePayload(p *types.PaymentPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePayload parses an X-PAYMENT header value.
func DecodePayload(header string) (*types.PaymentPayload, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("invalid payment header: %w", err)
	}
	var p types.PaymentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid payment payload: %w", err)
	}
	return &p, nil
}
