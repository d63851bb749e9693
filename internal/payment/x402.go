// Package payment implements the x402 payment gate: the per-request state
// machine that decides whether a paid request is challenged, granted, or
// denied, and the facilitator client it coordinates with.
package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Protocol constants.
const (
	X402Version = 1

	SchemeExact       = "exact"
	MimeTypeJSON      = "application/json"
	MaxTimeoutSeconds = 60

	// HeaderPayment carries the base64-encoded structured payment payload.
	HeaderPayment = "X-Payment"
	// HeaderPaymentProof carries a plain proof token (mock mode / legacy).
	HeaderPaymentProof = "X-Payment-Proof"
	// HeaderPaymentResponse carries the base64 settlement summary on success.
	HeaderPaymentResponse = "X-Payment-Response"
)

// Supported networks and their USDC mint addresses. USDC has 6 decimals on
// both.
const (
	NetworkSolana       = "solana"
	NetworkSolanaDevnet = "solana-devnet"

	usdcMintMainnet = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdcMintDevnet  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

// AssetForNetwork returns the USDC mint for a network, defaulting to mainnet
// for unknown networks so a requirement record is always constructible.
func AssetForNetwork(network string) string {
	if network == NetworkSolanaDevnet {
		return usdcMintDevnet
	}
	return usdcMintMainnet
}

// AtomicAmount converts a USD price to USDC atomic units (6 decimals) as an
// integer string. This is the only permitted conversion; amounts are never
// derived by floating-point division elsewhere.
func AtomicAmount(priceUSD float64) string {
	return strconv.FormatInt(int64(math.Round(priceUSD*1_000_000)), 10)
}

// Payload is the structured payment payload a caller presents in the
// X-Payment header, base64-encoded JSON. The scheme-specific inner payload is
// passed through to the facilitator untouched.
type Payload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     json.RawMessage `json:"payload"`
}

// DecodePayload parses the X-Payment header value.
func DecodePayload(header string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("decode payment header: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse payment payload: %w", err)
	}
	return &payload, nil
}

// Requirements is the deterministic payment requirement record: what must be
// paid, to whom, in what asset, for which resource.
type Requirements struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource"`
	Description       string            `json:"description"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// BuildRequirements constructs the requirement record for one priced request.
// The facilitator pays network fees; the caller only signs the transfer
// authorization, which the extra hint advertises.
func BuildRequirements(priceUSD float64, network, payTo, resource, description string) Requirements {
	return Requirements{
		Scheme:            SchemeExact,
		Network:           network,
		MaxAmountRequired: AtomicAmount(priceUSD),
		Resource:          resource,
		Description:       description,
		MimeType:          MimeTypeJSON,
		PayTo:             payTo,
		MaxTimeoutSeconds: MaxTimeoutSeconds,
		Asset:             AssetForNetwork(network),
		Extra:             map[string]string{"feePayer": "facilitator"},
	}
}

// Challenge is the 402 response body.
type Challenge struct {
	X402Version int            `json:"x402Version"`
	Error       string         `json:"error"`
	Accepts     []Requirements `json:"accepts"`
}

// Settlement is the confirmation exposed to the caller after a successful
// live settlement, carried base64-encoded in the X-Payment-Response header.
type Settlement struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer"`
}

// Encode returns the base64 JSON form used in the response header.
func (s Settlement) Encode() string {
	raw, _ := json.Marshal(s)
	return base64.StdEncoding.EncodeToString(raw)
}
