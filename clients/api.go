package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

// DefaultAPIURL is the payment service used when none is configured.
const DefaultAPIURL = "https://api.x402.dev"

// DefaultTimeout bounds every request to the payment service.
const DefaultTimeout = 30 * time.Second

// APIClient is a JSON client for the payment service endpoints.
type APIClient struct {
	baseURL string
	asset   string
	http    *http.Client
}

// NewAPIClient creates a client for baseURL. asset is the token contract
// sent with payments and balance queries. A nil httpClient gets a plain
// client with DefaultTimeout.
func NewAPIClient(baseURL, asset string, httpClient *http.Client) *APIClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		asset:   asset,
		http:    httpClient,
	}
}

// SubmitPayment implements PaymentSubmitter.
func (c *APIClient) SubmitPayment(ctx context.Context, submission types.PaymentSubmission) (*types.PaymentReceipt, error) {
	body, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var receipt types.PaymentReceipt
	if err := c.do(req, &receipt); err != nil {
		return nil, err
	}

	if receipt.TransactionHash == "" {
		return nil, types.NewPaymentError(types.ErrSubmissionFailed, "payment failed: no transaction hash returned")
	}
	return &receipt, nil
}

// TransactionStatus implements StatusSource.
func (c *APIClient) TransactionStatus(ctx context.Context, txID string) (*types.TransactionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transactions/"+url.PathEscape(txID), nil)
	if err != nil {
		return nil, err
	}

	var status types.TransactionStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// BalanceOf implements BalanceSource.
func (c *APIClient) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	u := fmt.Sprintf("%s/balances/%s?token=%s", c.baseURL, url.PathEscape(owner), url.QueryEscape(c.asset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var resp types.BalanceResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return utils.ParseSmallestUnit(resp.Balance)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do executes req and decodes a 200 response into out.
func (c *APIClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.NewPaymentError(types.ErrNetworkError, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.NewPaymentError(types.ErrNetworkError, "%s %s: reading body: %v", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: invalid response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
