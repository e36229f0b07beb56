// Package events delivers deposit/withdrawal notifications to external
// observers. The Log publisher writes them to the structured log; the kafka
// subpackage publishes them to a broker.
package events

import (
	"context"
	"log/slog"

	"github.com/tinoosan/vault/internal/vault"
)

// Log publishes notifications to the structured log. Default publisher when
// no broker is configured.
type Log struct {
	log *slog.Logger
}

// NewLog constructs a Log publisher.
func NewLog(l *slog.Logger) *Log { return &Log{log: l} }

// DepositMade implements vault.Publisher.
func (p *Log) DepositMade(_ context.Context, n vault.DepositNotice) error {
	amountMinor, _ := n.Amount.MinorUnits()
	balanceMinor, _ := n.NewBalance.MinorUnits()
	p.log.Info("deposit",
		"account", n.Account.String(),
		"amount_minor", amountMinor,
		"new_balance_minor", balanceMinor,
		"currency", n.Amount.Curr().Code(),
		"occurred_at", n.OccurredAt,
	)
	return nil
}

// WithdrawalMade implements vault.Publisher.
func (p *Log) WithdrawalMade(_ context.Context, n vault.WithdrawalNotice) error {
	amountMinor, _ := n.Amount.MinorUnits()
	balanceMinor, _ := n.NewBalance.MinorUnits()
	p.log.Info("withdrawal",
		"account", n.Account.String(),
		"amount_minor", amountMinor,
		"new_balance_minor", balanceMinor,
		"currency", n.Amount.Curr().Code(),
		"occurred_at", n.OccurredAt,
	)
	return nil
}
