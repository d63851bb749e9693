package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trustgate/internal/domain"
	"trustgate/internal/platform/metrics"
	"trustgate/internal/storage"
	"trustgate/pkg/requestcontext"
)

// Request is one inbound evaluation of a priced endpoint.
type Request struct {
	// Resource is the full canonical request URL.
	Resource string
	// Endpoint is the request path, used for ledger rows and descriptions.
	Endpoint string
	PriceUSD float64
	// Proof is the plain proof token header value (mock mode / legacy).
	Proof string
	// Payment is the base64 structured payment payload header value.
	Payment string
}

// Outcome is the terminal gate decision for one request. Exactly one ledger
// row with Status has been written by the time an Outcome is returned.
type Outcome struct {
	Granted          bool
	Status           domain.PaymentStatus
	PaymentRef       string
	PayerAddress     string
	SettlementHeader string
	Challenge        *Challenge
}

// Gate decides, per request, whether to grant access to a priced endpoint.
// The mode (mock vs live) is chosen once at construction; both variants
// implement the same contract.
type Gate interface {
	Evaluate(ctx context.Context, req Request) (Outcome, error)
}

// gateCore carries what both variants share: ledger recording and challenge
// construction.
type gateCore struct {
	ledger  storage.PaymentLedger
	logger  *slog.Logger
	metrics *metrics.Metrics
	network string
	payTo   string
}

// record writes the single terminal ledger row for this request. A failed
// write aborts the request; the decision is not usable without its row.
func (g *gateCore) record(ctx context.Context, req Request, status domain.PaymentStatus, paymentRef, payer string) error {
	attempt := domain.PaymentAttempt{
		RequestID:    uuid.New(),
		Endpoint:     req.Endpoint,
		PriceUSD:     req.PriceUSD,
		Status:       status,
		PaymentRef:   paymentRef,
		PayerAddress: payer,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := g.ledger.Append(ctx, attempt); err != nil {
		return fmt.Errorf("append payment attempt: %w", err)
	}
	if g.metrics != nil {
		g.metrics.ObservePaymentDecision(string(status))
	}
	g.logger.InfoContext(ctx, "payment attempt recorded",
		"request_id", requestcontext.RequestID(ctx),
		"endpoint", req.Endpoint,
		"status", status,
		"price_usd", req.PriceUSD,
	)
	return nil
}

// challenge builds the 402 payload with one accepted payment method. The
// message is deliberately generic; facilitator reasons stay in the logs.
func (g *gateCore) challenge(req Request, message string) *Challenge {
	description := fmt.Sprintf("Trust query access: %s", req.Endpoint)
	return &Challenge{
		X402Version: X402Version,
		Error:       message,
		Accepts: []Requirements{
			BuildRequirements(req.PriceUSD, g.network, g.payTo, req.Resource, description),
		},
	}
}

// MockGate grants on any non-empty proof evidence without outbound calls.
// Used for development and tests.
type MockGate struct {
	gateCore
}

// NewMockGate constructs the mock variant.
func NewMockGate(ledger storage.PaymentLedger, logger *slog.Logger, m *metrics.Metrics, network, payTo string) *MockGate {
	return &MockGate{gateCore: gateCore{ledger: ledger, logger: logger, metrics: m, network: network, payTo: payTo}}
}

var _ Gate = (*MockGate)(nil)

func (g *MockGate) Evaluate(ctx context.Context, req Request) (Outcome, error) {
	evidence := req.Proof
	if evidence == "" {
		evidence = req.Payment
	}
	if evidence != "" {
		if err := g.record(ctx, req, domain.PaymentStatusCompleted, evidence, ""); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Granted:    true,
			Status:     domain.PaymentStatusCompleted,
			PaymentRef: evidence,
		}, nil
	}

	if err := g.record(ctx, req, domain.PaymentStatusPending, "", ""); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Status:    domain.PaymentStatusPending,
		Challenge: g.challenge(req, "payment required"),
	}, nil
}

// LiveGate verifies and settles a structured payment payload against the
// facilitator. Any failure along the way, including transport errors and
// timeouts, resolves to a deny; the state machine never gets stuck.
type LiveGate struct {
	gateCore
	facilitator FacilitatorClient
	timeout     time.Duration
}

// NewLiveGate constructs the live variant. Zero timeout falls back to the
// protocol's maxTimeoutSeconds.
func NewLiveGate(facilitator FacilitatorClient, ledger storage.PaymentLedger, logger *slog.Logger, m *metrics.Metrics, network, payTo string, timeout time.Duration) *LiveGate {
	if timeout <= 0 {
		timeout = MaxTimeoutSeconds * time.Second
	}
	return &LiveGate{
		gateCore:    gateCore{ledger: ledger, logger: logger, metrics: m, network: network, payTo: payTo},
		facilitator: facilitator,
		timeout:     timeout,
	}
}

var _ Gate = (*LiveGate)(nil)

func (g *LiveGate) Evaluate(ctx context.Context, req Request) (Outcome, error) {
	// No structured payload: issue the challenge, record a pending row.
	if req.Payment == "" {
		if err := g.record(ctx, req, domain.PaymentStatusPending, "", ""); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Status:    domain.PaymentStatusPending,
			Challenge: g.challenge(req, "payment required"),
		}, nil
	}

	payload, err := DecodePayload(req.Payment)
	if err != nil {
		g.logger.WarnContext(ctx, "unparsable payment payload",
			"request_id", requestcontext.RequestID(ctx),
			"endpoint", req.Endpoint,
			"error", err,
		)
		return g.deny(ctx, req)
	}

	network := g.network
	if payload.Network != "" {
		network = payload.Network
	}
	description := fmt.Sprintf("Trust query access: %s", req.Endpoint)
	requirements := BuildRequirements(req.PriceUSD, network, g.payTo, req.Resource, description)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	verifyStart := time.Now()
	verified, err := g.facilitator.Verify(callCtx, payload, requirements)
	if g.metrics != nil {
		g.metrics.ObserveFacilitatorLatency("verify", time.Since(verifyStart))
	}
	if err != nil || !verified.IsValid {
		reason := "verification failed"
		if err != nil {
			reason = err.Error()
		} else if verified.InvalidReason != "" {
			reason = verified.InvalidReason
		}
		// Logged internally, never exposed to the caller.
		g.logger.WarnContext(ctx, "payment verification rejected",
			"request_id", requestcontext.RequestID(ctx),
			"endpoint", req.Endpoint,
			"reason", reason,
		)
		return g.deny(ctx, req)
	}

	settleStart := time.Now()
	settled, err := g.facilitator.Settle(callCtx, payload, requirements)
	if g.metrics != nil {
		g.metrics.ObserveFacilitatorLatency("settle", time.Since(settleStart))
	}
	if err != nil || !settled.Success {
		reason := "settlement failed"
		if err != nil {
			reason = err.Error()
		} else if settled.ErrorReason != "" {
			reason = settled.ErrorReason
		}
		g.logger.WarnContext(ctx, "payment settlement rejected",
			"request_id", requestcontext.RequestID(ctx),
			"endpoint", req.Endpoint,
			"reason", reason,
		)
		return g.deny(ctx, req)
	}

	payer := settled.Payer
	if payer == "" {
		payer = verified.Payer
	}
	if err := g.record(ctx, req, domain.PaymentStatusCompleted, settled.Transaction, payer); err != nil {
		return Outcome{}, err
	}
	settlement := Settlement{
		Success:     true,
		Transaction: settled.Transaction,
		Network:     settled.Network,
		Payer:       payer,
	}
	return Outcome{
		Granted:          true,
		Status:           domain.PaymentStatusCompleted,
		PaymentRef:       settled.Transaction,
		PayerAddress:     payer,
		SettlementHeader: settlement.Encode(),
	}, nil
}

// deny records a failed attempt (payment evidence was presented but rejected)
// and re-issues the challenge.
func (g *LiveGate) deny(ctx context.Context, req Request) (Outcome, error) {
	if err := g.record(ctx, req, domain.PaymentStatusFailed, "", ""); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Status:    domain.PaymentStatusFailed,
		Challenge: g.challenge(req, "invalid payment"),
	}, nil
}
