// Package vault implements the single-asset custodial ledger: deposit and
// withdrawal admission, balance and counter mutation, and the hand-off of
// withdrawn funds to an external recipient. Mutation and release are wrapped
// in one store transaction so a failed release rolls the whole withdrawal back.
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/vault/internal/errs"
)

// Repo defines the read operations needed by the service.
type Repo interface {
	BalanceMinor(ctx context.Context, account uuid.UUID) (int64, error)
	TotalHeldMinor(ctx context.Context) (int64, error)
	VaultCounters(ctx context.Context) (Counters, error)
	AccountCounters(ctx context.Context, account uuid.UUID) (Counters, error)
}

// Writer opens a transaction over the vault state. Balance, total-held, and
// counter updates for one operation happen inside a single Tx.
type Writer interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit of vault mutation. Credit and Debit update the
// account balance, the vault total, and the respective counters together.
// Nothing is observable until Commit.
type Tx interface {
	Credit(ctx context.Context, account uuid.UUID, amountMinor int64) (newBalanceMinor int64, err error)
	Debit(ctx context.Context, account uuid.UUID, amountMinor int64) (newBalanceMinor int64, err error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Releaser hands value to a recipient outside the vault's control. A failure
// must be reported, never swallowed; the caller aborts the withdrawal on error.
type Releaser interface {
	Release(ctx context.Context, recipient uuid.UUID, amount money.Amount) error
}

// Publisher receives notifications for committed operations. Publish errors
// are logged, not propagated; the operation has already committed.
type Publisher interface {
	DepositMade(ctx context.Context, n DepositNotice) error
	WithdrawalMade(ctx context.Context, n WithdrawalNotice) error
}

// Service exposes the vault operations and read accessors.
type Service interface {
	// Deposit credits the caller's account with the value attached to the call.
	Deposit(ctx context.Context, account uuid.UUID, amount money.Amount) (Receipt, error)
	// Receive credits value that arrived without an instruction. Identical
	// admission and effects to Deposit.
	Receive(ctx context.Context, account uuid.UUID, amount money.Amount) (Receipt, error)
	// ReceiveUnknown credits value that arrived with an unrecognized
	// instruction. A zero amount on this path is accepted as a silent no-op,
	// unlike the other two deposit paths which reject it.
	ReceiveUnknown(ctx context.Context, account uuid.UUID, instruction string, amount money.Amount) (Receipt, error)
	// Withdraw debits the caller's account and releases the amount to them.
	// State is finalized before the release is attempted; if the release
	// fails the entire withdrawal is rolled back.
	Withdraw(ctx context.Context, account uuid.UUID, amount money.Amount) (Receipt, error)

	Balance(ctx context.Context, account uuid.UUID) (money.Amount, error)
	TotalHeld(ctx context.Context) (money.Amount, error)
	VaultCounters(ctx context.Context) (Counters, error)
	AccountCounters(ctx context.Context, account uuid.UUID) (Counters, error)
	Params() Params
}

// Entry path labels for the deposit metric.
const (
	pathDeposit  = "deposit"
	pathReceive  = "receive"
	pathFallback = "fallback"
)

type service struct {
	params        Params
	capacityMinor int64
	limitMinor    int64
	repo          Repo
	writer        Writer
	releaser      Releaser
	pub           Publisher
	log           *slog.Logger
	// mu serializes mutations: each operation runs to completion or fails
	// atomically without interleaving with another operation on this vault.
	mu sync.Mutex
}

// New constructs the vault service. Params must carry strictly positive
// capacity and withdrawal limit in the same currency; releaser is required.
// A nil publisher disables notifications.
func New(p Params, repo Repo, writer Writer, releaser Releaser, pub Publisher, logger *slog.Logger) (Service, error) {
	capacityMinor, ok := p.Capacity.MinorUnits()
	if !ok || capacityMinor <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", errs.ErrInvalid)
	}
	limitMinor, ok := p.WithdrawalLimit.MinorUnits()
	if !ok || limitMinor <= 0 {
		return nil, fmt.Errorf("%w: withdrawal limit must be positive", errs.ErrInvalid)
	}
	if p.Capacity.Curr().Code() != p.WithdrawalLimit.Curr().Code() || p.Currency != p.Capacity.Curr().Code() {
		return nil, fmt.Errorf("%w: capacity and withdrawal limit must share the vault currency", errs.ErrInvalid)
	}
	if repo == nil || writer == nil {
		return nil, fmt.Errorf("%w: store is required", errs.ErrInvalid)
	}
	if releaser == nil {
		return nil, fmt.Errorf("%w: releaser is required", errs.ErrInvalid)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		params:        p,
		capacityMinor: capacityMinor,
		limitMinor:    limitMinor,
		repo:          repo,
		writer:        writer,
		releaser:      releaser,
		pub:           pub,
		log:           logger,
	}, nil
}

func (s *service) Params() Params { return s.params }

func (s *service) Deposit(ctx context.Context, account uuid.UUID, amount money.Amount) (Receipt, error) {
	return s.credit(ctx, account, amount, pathDeposit)
}

func (s *service) Receive(ctx context.Context, account uuid.UUID, amount money.Amount) (Receipt, error) {
	return s.credit(ctx, account, amount, pathReceive)
}

func (s *service) ReceiveUnknown(ctx context.Context, account uuid.UUID, instruction string, amount money.Amount) (Receipt, error) {
	amountMinor, err := s.minorUnits(amount)
	if err != nil {
		return Receipt{}, err
	}
	if amountMinor == 0 {
		// Zero-value receipt with an unknown instruction is accepted without
		// any state change. The other two deposit paths reject zero.
		if account == uuid.Nil {
			return Receipt{}, fmt.Errorf("%w: account is required", errs.ErrInvalid)
		}
		balance, err := s.repo.BalanceMinor(ctx, account)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Account: account, Amount: amount, NewBalance: s.amount(balance), NoOp: true}, nil
	}
	return s.credit(ctx, account, amount, pathFallback)
}

// credit is the single admit-and-credit routine shared by all three deposit
// entry paths. Admission runs against current state before any mutation.
func (s *service) credit(ctx context.Context, account uuid.UUID, amount money.Amount, path string) (Receipt, error) {
	if account == uuid.Nil {
		return Receipt{}, fmt.Errorf("%w: account is required", errs.ErrInvalid)
	}
	amountMinor, err := s.minorUnits(amount)
	if err != nil {
		return Receipt{}, err
	}
	if amountMinor == 0 {
		return Receipt{}, errs.ErrZeroAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	totalMinor, err := s.repo.TotalHeldMinor(ctx)
	if err != nil {
		return Receipt{}, err
	}
	attempted, err := s.amount(totalMinor).Add(amount)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: total held overflow: %v", errs.ErrInvariant, err)
	}
	attemptedMinor, ok := attempted.MinorUnits()
	if !ok {
		return Receipt{}, fmt.Errorf("%w: total held out of range", errs.ErrInvariant)
	}
	if attemptedMinor > s.capacityMinor {
		return Receipt{}, &errs.CapacityExceededError{AttemptedMinor: attemptedMinor, CapacityMinor: s.capacityMinor}
	}

	tx, err := s.writer.BeginTx(ctx)
	if err != nil {
		return Receipt{}, err
	}
	newBalance, err := tx.Credit(ctx, account, amountMinor)
	if err != nil {
		_ = tx.Rollback(ctx)
		return Receipt{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, err
	}

	rcpt := Receipt{Account: account, Amount: amount, NewBalance: s.amount(newBalance)}
	depositsProcessed.WithLabelValues(path).Inc()
	totalHeldMinor.Set(float64(attemptedMinor))
	s.publishDeposit(ctx, rcpt)
	return rcpt, nil
}

func (s *service) Withdraw(ctx context.Context, account uuid.UUID, amount money.Amount) (Receipt, error) {
	if account == uuid.Nil {
		return Receipt{}, fmt.Errorf("%w: account is required", errs.ErrInvalid)
	}
	requestedMinor, err := s.minorUnits(amount)
	if err != nil {
		return Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Admission checks in fixed order: zero, then insufficiency, then limit.
	if requestedMinor == 0 {
		return Receipt{}, errs.ErrZeroAmount
	}
	availableMinor, err := s.repo.BalanceMinor(ctx, account)
	if err != nil {
		return Receipt{}, err
	}
	if requestedMinor > availableMinor {
		return Receipt{}, &errs.InsufficientBalanceError{AvailableMinor: availableMinor, RequestedMinor: requestedMinor}
	}
	if requestedMinor > s.limitMinor {
		return Receipt{}, &errs.WithdrawalLimitExceededError{RequestedMinor: requestedMinor, LimitMinor: s.limitMinor}
	}

	totalMinor, err := s.repo.TotalHeldMinor(ctx)
	if err != nil {
		return Receipt{}, err
	}

	tx, err := s.writer.BeginTx(ctx)
	if err != nil {
		return Receipt{}, err
	}
	newBalance, err := tx.Debit(ctx, account, requestedMinor)
	if err != nil {
		_ = tx.Rollback(ctx)
		return Receipt{}, err
	}
	// State is staged before the external release; a failed release rolls
	// the whole withdrawal back so the vault never pays out twice for the
	// same funds and never records a payout that did not happen.
	if err := s.releaser.Release(ctx, account, amount); err != nil {
		_ = tx.Rollback(ctx)
		releaseFailures.Inc()
		return Receipt{}, &errs.TransferFailedError{Recipient: account, AmountMinor: requestedMinor, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, err
	}

	rcpt := Receipt{Account: account, Amount: amount, NewBalance: s.amount(newBalance)}
	withdrawalsProcessed.Inc()
	totalHeldMinor.Set(float64(totalMinor - requestedMinor))
	s.publishWithdrawal(ctx, rcpt)
	return rcpt, nil
}

func (s *service) Balance(ctx context.Context, account uuid.UUID) (money.Amount, error) {
	balance, err := s.repo.BalanceMinor(ctx, account)
	if err != nil {
		return money.Amount{}, err
	}
	return s.amount(balance), nil
}

func (s *service) TotalHeld(ctx context.Context) (money.Amount, error) {
	total, err := s.repo.TotalHeldMinor(ctx)
	if err != nil {
		return money.Amount{}, err
	}
	return s.amount(total), nil
}

func (s *service) VaultCounters(ctx context.Context) (Counters, error) {
	return s.repo.VaultCounters(ctx)
}

func (s *service) AccountCounters(ctx context.Context, account uuid.UUID) (Counters, error) {
	return s.repo.AccountCounters(ctx, account)
}

func (s *service) publishDeposit(ctx context.Context, rcpt Receipt) {
	if s.pub == nil {
		return
	}
	n := DepositNotice{Account: rcpt.Account, Amount: rcpt.Amount, NewBalance: rcpt.NewBalance, OccurredAt: time.Now().UTC()}
	if err := s.pub.DepositMade(ctx, n); err != nil {
		s.log.Error("deposit notification publish failed", "account", rcpt.Account, "err", err)
	}
}

func (s *service) publishWithdrawal(ctx context.Context, rcpt Receipt) {
	if s.pub == nil {
		return
	}
	n := WithdrawalNotice{Account: rcpt.Account, Amount: rcpt.Amount, NewBalance: rcpt.NewBalance, OccurredAt: time.Now().UTC()}
	if err := s.pub.WithdrawalMade(ctx, n); err != nil {
		s.log.Error("withdrawal notification publish failed", "account", rcpt.Account, "err", err)
	}
}

// minorUnits validates the amount against the vault currency and converts it.
func (s *service) minorUnits(amount money.Amount) (int64, error) {
	if amount.Curr().Code() != s.params.Currency {
		return 0, fmt.Errorf("%w: amount currency %s does not match vault currency %s", errs.ErrInvalid, amount.Curr().Code(), s.params.Currency)
	}
	units, ok := amount.MinorUnits()
	if !ok {
		return 0, fmt.Errorf("%w: amount out of range", errs.ErrInvalid)
	}
	if units < 0 {
		return 0, fmt.Errorf("%w: amount must not be negative", errs.ErrInvalid)
	}
	return units, nil
}

// amount builds a money.Amount in the vault currency from minor units read
// back from the store. Values in storage were validated on the way in.
func (s *service) amount(units int64) money.Amount {
	a, _ := money.NewAmountFromMinorUnits(s.params.Currency, units)
	return a
}
