// Package errs defines the vault error taxonomy and the cross-layer
// sentinels used for HTTP status mapping. Variants that carry values
// implement Is against their sentinel so callers can match with errors.Is
// and extract arguments with errors.As.
package errs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrInvalid = errors.New("invalid")
	// ErrZeroAmount rejects a deposit or withdrawal of zero value.
	ErrZeroAmount = errors.New("zero_amount")
	// ErrCapacityExceeded matches CapacityExceededError.
	ErrCapacityExceeded = errors.New("capacity_exceeded")
	// ErrInsufficientBalance matches InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("insufficient_balance")
	// ErrWithdrawalLimitExceeded matches WithdrawalLimitExceededError.
	ErrWithdrawalLimitExceeded = errors.New("withdrawal_limit_exceeded")
	// ErrTransferFailed matches TransferFailedError.
	ErrTransferFailed = errors.New("transfer_failed")
	// ErrInvariant marks internal accounting corruption (overflow, negative
	// balance). Should be unreachable through the public operations.
	ErrInvariant = errors.New("invariant_violation")
)

// CapacityExceededError reports a deposit that would push the total held
// above the vault capacity. AttemptedMinor is the post-deposit total, not
// the current one.
type CapacityExceededError struct {
	AttemptedMinor int64
	CapacityMinor  int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: attempted total %d exceeds capacity %d", e.AttemptedMinor, e.CapacityMinor)
}

func (e *CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }

// InsufficientBalanceError reports a withdrawal larger than the caller's balance.
type InsufficientBalanceError struct {
	AvailableMinor int64
	RequestedMinor int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d", e.AvailableMinor, e.RequestedMinor)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// WithdrawalLimitExceededError reports a withdrawal above the per-operation ceiling.
type WithdrawalLimitExceededError struct {
	RequestedMinor int64
	LimitMinor     int64
}

func (e *WithdrawalLimitExceededError) Error() string {
	return fmt.Sprintf("withdrawal limit exceeded: requested %d, limit %d", e.RequestedMinor, e.LimitMinor)
}

func (e *WithdrawalLimitExceededError) Is(target error) bool {
	return target == ErrWithdrawalLimitExceeded
}

// TransferFailedError reports a failed external fund release. The withdrawal
// that triggered it is rolled back in full.
type TransferFailedError struct {
	Recipient   uuid.UUID
	AmountMinor int64
	Err         error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer of %d to %s failed: %v", e.AmountMinor, e.Recipient, e.Err)
}

func (e *TransferFailedError) Is(target error) bool { return target == ErrTransferFailed }

func (e *TransferFailedError) Unwrap() error { return e.Err }
