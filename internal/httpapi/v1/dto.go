package v1

import (
	"github.com/google/uuid"
	"github.com/govalues/money"
)

type depositRequest struct {
	AccountID   uuid.UUID `json:"account_id"`
	AmountMinor int64     `json:"amount_minor"`
}

type receiptRequest struct {
	AccountID   uuid.UUID `json:"account_id"`
	AmountMinor int64     `json:"amount_minor"`
	// Instruction is the raw instruction accompanying the value, if any.
	// Empty means a plain receipt; anything unrecognized routes to the
	// fallback path.
	Instruction string `json:"instruction,omitempty"`
}

type withdrawalRequest struct {
	AccountID   uuid.UUID `json:"account_id"`
	AmountMinor int64     `json:"amount_minor"`
}

// opRequest is a validated operation carried through the request context.
type opRequest struct {
	account     uuid.UUID
	amount      money.Amount
	instruction string
	bodyHash    string
	idemKey     string
}

type operationResponse struct {
	Kind            string    `json:"kind"`
	AccountID       uuid.UUID `json:"account_id"`
	Currency        string    `json:"currency"`
	AmountMinor     int64     `json:"amount_minor"`
	Amount          string    `json:"amount"`
	NewBalanceMinor int64     `json:"new_balance_minor"`
	NewBalance      string    `json:"new_balance"`
	NoOp            bool      `json:"no_op,omitempty"`
}

type balanceResponse struct {
	AccountID    uuid.UUID `json:"account_id"`
	Currency     string    `json:"currency"`
	BalanceMinor int64     `json:"balance_minor"`
	Balance      string    `json:"balance"`
}

type countersResponse struct {
	AccountID   uuid.UUID `json:"account_id"`
	Deposits    uint64    `json:"deposits"`
	Withdrawals uint64    `json:"withdrawals"`
}

type vaultResponse struct {
	Currency             string `json:"currency"`
	CapacityMinor        int64  `json:"capacity_minor"`
	WithdrawalLimitMinor int64  `json:"withdrawal_limit_minor"`
	TotalHeldMinor       int64  `json:"total_held_minor"`
	TotalHeld            string `json:"total_held"`
	Deposits             uint64 `json:"deposits"`
	Withdrawals          uint64 `json:"withdrawals"`
}
