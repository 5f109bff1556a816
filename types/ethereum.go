package types

// X402Version is the version of the x402 payment protocol.
const X402Version = 1

// SchemeExact pays exactly the required amount.
const SchemeExact = "exact"

// PaymentHeader carries the signed payment on the retried request.
const PaymentHeader = "X-PAYMENT"

// PaymentRequirements defines what a resource server accepts for payment.
type PaymentRequirements struct {
	Scheme  string `json:"scheme"`
	Network string `json:"network"`

	// Maximum amount required in atomic units of the asset.
	MaxAmountRequired string `json:"maxAmountRequired"`

	Resource          string         `json:"resource"`
	Description       string         `json:"description"`
	MimeType          string         `json:"mimeType"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds"`
	Asset             string         `json:"asset"` // EIP-3009 token contract
	Extra             map[string]any `json:"extra,omitempty"`
}

// X402Response is the body of a 402 Payment Required answer.
type X402Response struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error"`
}

// PaymentPayload is the decoded X-PAYMENT header.
type PaymentPayload struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Payload     EIP3009Payload `json:"payload"`
}

type EIP3009Payload struct {
	Signature     string               `json:"signature"` // 65-byte (r,s,v) hex
	Authorization EIP3009Authorization `json:"authorization"`
}

type EIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // uint256
	ValidAfter  string `json:"validAfter"`  // unix seconds
	ValidBefore string `json:"validBefore"` // unix seconds
	Nonce       string `json:"nonce"`       // bytes32 hex
}
