package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/segmentio/kafka-go"

	"github.com/tinoosan/vault/internal/vault"
)

// Publisher writes vault notifications to a Kafka topic, keyed by account so
// per-account ordering is preserved.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher constructs a Publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error { return p.writer.Close() }

type notification struct {
	Type            string    `json:"type"`
	AccountID       uuid.UUID `json:"account_id"`
	AmountMinor     int64     `json:"amount_minor"`
	NewBalanceMinor int64     `json:"new_balance_minor"`
	Currency        string    `json:"currency"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// DepositMade implements vault.Publisher.
func (p *Publisher) DepositMade(ctx context.Context, n vault.DepositNotice) error {
	return p.publish(ctx, "deposit", n.Account, n.Amount, n.NewBalance, n.OccurredAt)
}

// WithdrawalMade implements vault.Publisher.
func (p *Publisher) WithdrawalMade(ctx context.Context, n vault.WithdrawalNotice) error {
	return p.publish(ctx, "withdrawal", n.Account, n.Amount, n.NewBalance, n.OccurredAt)
}

func (p *Publisher) publish(ctx context.Context, kind string, account uuid.UUID, amount, newBalance money.Amount, occurredAt time.Time) error {
	amountMinor, _ := amount.MinorUnits()
	balanceMinor, _ := newBalance.MinorUnits()
	data, err := json.Marshal(notification{
		Type:            kind,
		AccountID:       account,
		AmountMinor:     amountMinor,
		NewBalanceMinor: balanceMinor,
		Currency:        amount.Curr().Code(),
		OccurredAt:      occurredAt,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(account.String()),
		Value: data,
	})
}
