package x402x

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Network represents a blockchain network identifier in CAIP-2 format
// Format: namespace:reference (e.g., "eip155:84532" for Base Sepolia)
type Network string

// Parse splits the network into namespace and reference components
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.Split(string(n), ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid network format: %s", n)
	}
	return parts[0], parts[1], nil
}

// PaymentRequirements defines what payment is acceptable for a resource.
// Amounts are atomic units of the asset, encoded as decimal strings.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           Network                `json:"network"`
	Asset             string                 `json:"asset"`
	Amount            string                 `json:"amount"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// SettlementExtra is the router/hook envelope carried in the requirements
// extra bag. A non-empty SettlementRouter marks the request as settlement
// mode; its absence means legacy direct-transfer mode.
type SettlementExtra struct {
	SettlementRouter string `json:"settlementRouter"`
	Hook             string `json:"hook,omitempty"`
	HookData         string `json:"hookData,omitempty"`
	PayTo            string `json:"payTo,omitempty"`
	FacilitatorFee   string `json:"facilitatorFee,omitempty"`
	Salt             string `json:"salt,omitempty"`
}

// SettlementExtra decodes the extra bag into its typed settlement envelope.
// The second return value reports settlement mode.
func (r PaymentRequirements) SettlementExtra() (*SettlementExtra, bool) {
	if r.Extra == nil {
		return nil, false
	}
	raw, err := json.Marshal(r.Extra)
	if err != nil {
		return nil, false
	}
	var extra SettlementExtra
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, false
	}
	if extra.SettlementRouter == "" {
		return nil, false
	}
	return &extra, true
}

// ExactAuthorization is a signed EIP-3009-style transfer authorization.
// Numeric fields are decimal strings, Nonce is 32 bytes of hex.
type ExactAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactPayload pairs an authorization with its signature.
type ExactPayload struct {
	Signature     string             `json:"signature"`
	Authorization ExactAuthorization `json:"authorization"`
}

// PaymentPayload contains the signed payment authorization from a client
type PaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Payload     map[string]interface{} `json:"payload"`
}

// ExactPayload decodes the untyped payload map into the exact scheme shape.
func (p PaymentPayload) ExactPayload() (*ExactPayload, error) {
	raw, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, NewDecodingError(fmt.Sprintf("invalid payload: %v", err))
	}
	var exact ExactPayload
	if err := json.Unmarshal(raw, &exact); err != nil {
		return nil, NewDecodingError(fmt.Sprintf("invalid payload: %v", err))
	}
	return &exact, nil
}

// Payer extracts the authorizing address from the payload, or "" when the
// payload is malformed. Used when building failure results.
func (p PaymentPayload) Payer() string {
	exact, err := p.ExactPayload()
	if err != nil {
		return ""
	}
	return exact.Authorization.From
}

// VerifyRequest contains the payment to verify
type VerifyRequest struct {
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerifyResponse contains the verification result
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleRequest contains the payment to settle
type SettleRequest struct {
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettleResponse contains the settlement result. It is always returned as a
// structured value; settlement never surfaces submission errors to callers.
type SettleResponse struct {
	Success     bool    `json:"success"`
	ErrorReason string  `json:"errorReason,omitempty"`
	Payer       string  `json:"payer,omitempty"`
	Transaction string  `json:"transaction"`
	Network     Network `json:"network"`
}

// Settlement failure reasons. These strings are part of the wire contract.
const (
	ReasonFeeExceedsValue       = "FACILITATOR_FEE_EXCEEDS_VALUE"
	ReasonValidationFailed      = "VALIDATION_FAILED"
	ReasonUnexpectedSettleError = "unexpected_settle_error"
)

// SupportedKind represents a single supported payment configuration
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     Network                `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse describes what payment kinds a facilitator supports
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// ParseAtomicAmount parses an atomic-unit token amount. Both decimal strings
// and 0x-prefixed hex are accepted; negative amounts are rejected.
func ParseAtomicAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", s)
	}
	return v, nil
}
