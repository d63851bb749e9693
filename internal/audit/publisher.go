// Package audit streams payment ledger events to Kafka for downstream
// consumers. Publication is fire-and-forget: an unreachable broker is logged
// and never fails or delays the request path.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"trustgate/internal/domain"
	"trustgate/internal/storage"
)

// DefaultTopic is where payment events land.
const DefaultTopic = "trustgate.payments"

// Publisher produces payment events. Nil Publisher means auditing is off.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the given brokers. Returns nil when no brokers are
// configured.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Close flushes and releases the producer.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

type paymentEvent struct {
	RequestID string    `json:"request_id"`
	Endpoint  string    `json:"endpoint"`
	PriceUSD  float64   `json:"price_usd"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Publisher) publish(ctx context.Context, attempt domain.PaymentAttempt) {
	value, err := json.Marshal(paymentEvent{
		RequestID: attempt.RequestID.String(),
		Endpoint:  attempt.Endpoint,
		PriceUSD:  attempt.PriceUSD,
		Status:    string(attempt.Status),
		CreatedAt: attempt.CreatedAt,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "encode payment event", "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(attempt.RequestID.String()),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.ErrorContext(ctx, "publish payment event",
				"request_id", attempt.RequestID,
				"error", err,
			)
		}
	})
}

// auditedLedger decorates a PaymentLedger with event publication after each
// successful append.
type auditedLedger struct {
	inner     storage.PaymentLedger
	publisher *Publisher
}

// WrapLedger returns a ledger that publishes an event per appended attempt.
// With a nil publisher the inner ledger is returned unchanged.
func WrapLedger(inner storage.PaymentLedger, publisher *Publisher) storage.PaymentLedger {
	if publisher == nil {
		return inner
	}
	return &auditedLedger{inner: inner, publisher: publisher}
}

func (l *auditedLedger) Append(ctx context.Context, attempt domain.PaymentAttempt) error {
	if err := l.inner.Append(ctx, attempt); err != nil {
		return err
	}
	l.publisher.publish(ctx, attempt)
	return nil
}
