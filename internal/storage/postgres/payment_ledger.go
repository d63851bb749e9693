package postgres

import (
	"context"
	"fmt"

	"trustgate/internal/domain"
	"trustgate/internal/storage"
)

// PaymentLedger implements storage.PaymentLedger using PostgreSQL. The table
// has no UPDATE path; a primary-key conflict means the write-once invariant
// was violated upstream.
type PaymentLedger struct {
	pool *Pool
}

// NewPaymentLedger creates a new PaymentLedger.
func NewPaymentLedger(pool *Pool) *PaymentLedger {
	return &PaymentLedger{pool: pool}
}

var _ storage.PaymentLedger = (*PaymentLedger)(nil)

func (l *PaymentLedger) Append(ctx context.Context, attempt domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (request_id, endpoint, price_usd, status, payment_ref, payer_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := l.pool.Exec(ctx, query,
		attempt.RequestID,
		attempt.Endpoint,
		attempt.PriceUSD,
		string(attempt.Status),
		attempt.PaymentRef,
		attempt.PayerAddress,
		attempt.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateAttempt
		}
		return fmt.Errorf("append payment attempt: %w", err)
	}
	return nil
}
