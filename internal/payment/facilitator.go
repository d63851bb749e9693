package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// VerifyResult is the facilitator's judgment of a payment payload before
// settlement.
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResult is the outcome of executing the transfer.
type SettleResult struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// FacilitatorClient is the untrusted remote dependency that verifies a
// payment authorization and settles the transfer. Both operations must
// complete within a bounded time; a transport failure is equivalent to an
// invalid or unsuccessful result.
type FacilitatorClient interface {
	Verify(ctx context.Context, payload *Payload, requirements Requirements) (*VerifyResult, error)
	Settle(ctx context.Context, payload *Payload, requirements Requirements) (*SettleResult, error)
}

// HTTPFacilitator posts verify/settle requests to a facilitator service.
type HTTPFacilitator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFacilitator constructs a facilitator client with a hard timeout.
// Zero timeout falls back to the protocol's maxTimeoutSeconds; the gate must
// never block unbounded on the facilitator.
func NewHTTPFacilitator(baseURL string, timeout time.Duration) *HTTPFacilitator {
	if timeout <= 0 {
		timeout = MaxTimeoutSeconds * time.Second
	}
	return &HTTPFacilitator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ FacilitatorClient = (*HTTPFacilitator)(nil)

type facilitatorRequest struct {
	X402Version         int          `json:"x402Version"`
	PaymentPayload      *Payload     `json:"paymentPayload"`
	PaymentRequirements Requirements `json:"paymentRequirements"`
}

func (f *HTTPFacilitator) Verify(ctx context.Context, payload *Payload, requirements Requirements) (*VerifyResult, error) {
	var result VerifyResult
	if err := f.post(ctx, "/verify", payload, requirements, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (f *HTTPFacilitator) Settle(ctx context.Context, payload *Payload, requirements Requirements) (*SettleResult, error) {
	var result SettleResult
	if err := f.post(ctx, "/settle", payload, requirements, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (f *HTTPFacilitator) post(ctx context.Context, path string, payload *Payload, requirements Requirements, out any) error {
	body, err := json.Marshal(facilitatorRequest{
		X402Version:         X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return fmt.Errorf("encode facilitator request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build facilitator request: %w", err)
	}
	req.Header.Set("Content-Type", MimeTypeJSON)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("call facilitator %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode facilitator %s response: %w", path, err)
	}
	return nil
}
