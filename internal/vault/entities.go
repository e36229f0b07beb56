package vault

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// Params holds the immutable construction-time configuration of a vault:
// the currency of its unit of value, the maximum total it may ever hold,
// and the maximum value movable in a single withdrawal.
type Params struct {
	Currency        string
	Capacity        money.Amount
	WithdrawalLimit money.Amount
}

// NewParams builds validated Params from minor units. Both limits must be
// strictly positive; a vault with non-positive limits never comes into existence.
func NewParams(currency string, capacityMinor, withdrawalLimitMinor int64) (Params, error) {
	if capacityMinor <= 0 {
		return Params{}, fmt.Errorf("capacity must be positive, got %d", capacityMinor)
	}
	if withdrawalLimitMinor <= 0 {
		return Params{}, fmt.Errorf("withdrawal limit must be positive, got %d", withdrawalLimitMinor)
	}
	capacity, err := money.NewAmountFromMinorUnits(currency, capacityMinor)
	if err != nil {
		return Params{}, fmt.Errorf("invalid currency %q: %w", currency, err)
	}
	limit, err := money.NewAmountFromMinorUnits(currency, withdrawalLimitMinor)
	if err != nil {
		return Params{}, fmt.Errorf("invalid currency %q: %w", currency, err)
	}
	return Params{Currency: capacity.Curr().Code(), Capacity: capacity, WithdrawalLimit: limit}, nil
}

// Counters are monotonically increasing audit counts, kept both vault-wide
// and per account.
type Counters struct {
	Deposits    uint64
	Withdrawals uint64
}

// Receipt is the outcome of a successful deposit, receipt, or withdrawal.
// NoOp marks the zero-value unknown-instruction receipt, which is accepted
// without any state change.
type Receipt struct {
	Account    uuid.UUID
	Amount     money.Amount
	NewBalance money.Amount
	NoOp       bool
}

// DepositNotice is the notification emitted after a committed credit.
type DepositNotice struct {
	Account    uuid.UUID
	Amount     money.Amount
	NewBalance money.Amount
	OccurredAt time.Time
}

// WithdrawalNotice is the notification emitted after a committed withdrawal.
type WithdrawalNotice struct {
	Account    uuid.UUID
	Amount     money.Amount
	NewBalance money.Amount
	OccurredAt time.Time
}

// IdempotencyRecord stores the outcome of a completed operation keyed by the
// caller-supplied idempotency key, so replays return the original response.
type IdempotencyRecord struct {
	BodyHash string
	Status   int
	Payload  []byte
}
