package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the terminal outcome of one payment attempt. A status is
// written exactly once; pending rows are challenges that were never completed,
// not rows awaiting an update.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentAttempt records one inbound request to a paid endpoint. RequestID is
// fresh per HTTP call, including logical retries.
type PaymentAttempt struct {
	RequestID    uuid.UUID
	Endpoint     string
	PriceUSD     float64
	Status       PaymentStatus
	PaymentRef   string
	PayerAddress string
	CreatedAt    time.Time
}
