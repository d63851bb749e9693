// Package query composes the payment gate and the trust aggregator: the gate
// decides first, and only a granted request reaches the aggregator.
package query

import (
	"context"
	"log/slog"
	"time"

	"trustgate/internal/domain"
	"trustgate/internal/payment"
	"trustgate/internal/trust"
	pkgerrors "trustgate/pkg/errors"
	"trustgate/pkg/requestcontext"
)

// Service answers the three paid query shapes.
type Service struct {
	gate       payment.Gate
	aggregator *trust.Aggregator
	logger     *slog.Logger
}

// New constructs the query service.
func New(gate payment.Gate, aggregator *trust.Aggregator, logger *slog.Logger) *Service {
	return &Service{gate: gate, aggregator: aggregator, logger: logger}
}

// EntityResult is a single-entity judgment plus its generation timestamp.
type EntityResult struct {
	trust.Result
	GeneratedAt time.Time
}

// AddressResult groups per-context judgments for one address.
type AddressResult struct {
	Results     []trust.Result
	GeneratedAt time.Time
}

// TopResult is one leaderboard page.
type TopResult struct {
	Context     string
	Limit       int
	Entities    []trust.RankedEntity
	GeneratedAt time.Time
}

// QueryEntity evaluates payment, then aggregates one (type, identifier,
// context) query. A denied payment returns the outcome alone; the aggregator
// is never invoked.
func (s *Service) QueryEntity(ctx context.Context, pay payment.Request, entityType, identifier, trustContext string) (payment.Outcome, *EntityResult, error) {
	outcome, err := s.gate.Evaluate(ctx, pay)
	if err != nil || !outcome.Granted {
		return outcome, nil, err
	}

	parsedType, err := domain.ParseEntityType(entityType)
	if err != nil {
		return outcome, nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err.Error(), err)
	}
	if identifier == "" {
		return outcome, nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "entity identifier is required")
	}
	if trustContext == "" {
		return outcome, nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "context is required")
	}

	result, err := s.aggregator.QueryEntity(ctx, parsedType, identifier, trustContext)
	if err != nil {
		return outcome, nil, err
	}
	s.logQuery(ctx, pay.Endpoint, trustContext)
	return outcome, &EntityResult{Result: result, GeneratedAt: time.Now().UTC()}, nil
}

// QueryByAddress evaluates payment, then aggregates every context that has
// signals for an address.
func (s *Service) QueryByAddress(ctx context.Context, pay payment.Request, address, trustContext string) (payment.Outcome, *AddressResult, error) {
	outcome, err := s.gate.Evaluate(ctx, pay)
	if err != nil || !outcome.Granted {
		return outcome, nil, err
	}

	if address == "" {
		return outcome, nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "address is required")
	}

	results, err := s.aggregator.QueryByAddress(ctx, address, trustContext)
	if err != nil {
		return outcome, nil, err
	}
	s.logQuery(ctx, pay.Endpoint, trustContext)
	return outcome, &AddressResult{Results: results, GeneratedAt: time.Now().UTC()}, nil
}

// TopEntities evaluates payment, then returns the context leaderboard.
func (s *Service) TopEntities(ctx context.Context, pay payment.Request, trustContext string, limit int, registrySlugs []string) (payment.Outcome, *TopResult, error) {
	outcome, err := s.gate.Evaluate(ctx, pay)
	if err != nil || !outcome.Granted {
		return outcome, nil, err
	}

	if trustContext == "" {
		return outcome, nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "context is required")
	}

	entities, err := s.aggregator.TopEntities(ctx, trustContext, limit, registrySlugs)
	if err != nil {
		return outcome, nil, err
	}
	s.logQuery(ctx, pay.Endpoint, trustContext)
	return outcome, &TopResult{
		Context:     trustContext,
		Limit:       limit,
		Entities:    entities,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *Service) logQuery(ctx context.Context, endpoint, trustContext string) {
	s.logger.InfoContext(ctx, "trust query served",
		"request_id", requestcontext.RequestID(ctx),
		"endpoint", endpoint,
		"context", trustContext,
	)
}
