// Package memory provides a simple in-memory implementation used for
// development and tests. Mutations are staged on a Tx and only become
// visible on Commit, matching the transactional contract of the postgres
// store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/tinoosan/vault/internal/errs"
	"github.com/tinoosan/vault/internal/vault"
)

// Store is an in-memory implementation of the vault repository, writer, and
// idempotency store. It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu          sync.RWMutex
	balances    map[uuid.UUID]int64
	accCounters map[uuid.UUID]vault.Counters
	totalHeld   int64
	counters    vault.Counters
	idem        map[string]vault.IdempotencyRecord
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		balances:    make(map[uuid.UUID]int64),
		accCounters: make(map[uuid.UUID]vault.Counters),
		idem:        make(map[string]vault.IdempotencyRecord),
	}
}

// SeedBalance sets an account balance directly, adjusting the vault total.
// For local dev and tests only; it bypasses admission and counters.
func (s *Store) SeedBalance(account uuid.UUID, balanceMinor int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalHeld += balanceMinor - s.balances[account]
	s.balances[account] = balanceMinor
}

// Reset clears all state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = map[uuid.UUID]int64{}
	s.accCounters = map[uuid.UUID]vault.Counters{}
	s.totalHeld = 0
	s.counters = vault.Counters{}
	s.idem = map[string]vault.IdempotencyRecord{}
}

// BalanceMinor implements vault.Repo. Absent accounts read as zero.
func (s *Store) BalanceMinor(_ context.Context, account uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

// TotalHeldMinor implements vault.Repo.
func (s *Store) TotalHeldMinor(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalHeld, nil
}

// VaultCounters implements vault.Repo.
func (s *Store) VaultCounters(_ context.Context) (vault.Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters, nil
}

// AccountCounters implements vault.Repo. Absent accounts read as zero.
func (s *Store) AccountCounters(_ context.Context, account uuid.UUID) (vault.Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accCounters[account], nil
}

// BeginTx implements vault.Writer.
func (s *Store) BeginTx(_ context.Context) (vault.Tx, error) {
	return &Tx{s: s}, nil
}

// GetOperation implements the idempotency store used by the HTTP API.
func (s *Store) GetOperation(_ context.Context, key string) (vault.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idem[key]
	return rec, ok, nil
}

// SaveOperation stores an idempotency record. First write wins.
func (s *Store) SaveOperation(_ context.Context, key string, rec vault.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.idem[key]; !exists {
		s.idem[key] = rec
	}
	return nil
}

// stagedOp is one balance movement pending commit. Positive delta credits,
// negative debits.
type stagedOp struct {
	account uuid.UUID
	delta   int64
}

// Tx stages mutations against the store and applies them atomically on
// Commit. The vault service serializes operations, so at most one write
// transaction is in flight at a time.
type Tx struct {
	s    *Store
	ops  []stagedOp
	done bool
}

// Credit stages a balance and total increase plus deposit counter bumps.
func (t *Tx) Credit(_ context.Context, account uuid.UUID, amountMinor int64) (int64, error) {
	if t.done {
		return 0, errors.New("transaction closed")
	}
	if amountMinor <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", errs.ErrInvariant)
	}
	balance, total := t.view(account)
	if balance > math.MaxInt64-amountMinor || total > math.MaxInt64-amountMinor {
		return 0, fmt.Errorf("%w: balance overflow", errs.ErrInvariant)
	}
	t.ops = append(t.ops, stagedOp{account: account, delta: amountMinor})
	return balance + amountMinor, nil
}

// Debit stages a balance and total decrease plus withdrawal counter bumps.
func (t *Tx) Debit(_ context.Context, account uuid.UUID, amountMinor int64) (int64, error) {
	if t.done {
		return 0, errors.New("transaction closed")
	}
	if amountMinor <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", errs.ErrInvariant)
	}
	balance, _ := t.view(account)
	if balance < amountMinor {
		return 0, fmt.Errorf("%w: debit would make balance negative", errs.ErrInvariant)
	}
	t.ops = append(t.ops, stagedOp{account: account, delta: -amountMinor})
	return balance - amountMinor, nil
}

// Commit applies all staged ops under the write lock.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return errors.New("transaction closed")
	}
	t.done = true
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, op := range t.ops {
		t.s.balances[op.account] += op.delta
		t.s.totalHeld += op.delta
		c := t.s.accCounters[op.account]
		if op.delta > 0 {
			c.Deposits++
			t.s.counters.Deposits++
		} else {
			c.Withdrawals++
			t.s.counters.Withdrawals++
		}
		t.s.accCounters[op.account] = c
	}
	return nil
}

// Rollback discards the staged ops.
func (t *Tx) Rollback(_ context.Context) error {
	t.done = true
	t.ops = nil
	return nil
}

// view returns the account balance and vault total as seen by this
// transaction: committed state plus staged ops.
func (t *Tx) view(account uuid.UUID) (balance, total int64) {
	t.s.mu.RLock()
	balance = t.s.balances[account]
	total = t.s.totalHeld
	t.s.mu.RUnlock()
	for _, op := range t.ops {
		total += op.delta
		if op.account == account {
			balance += op.delta
		}
	}
	return balance, total
}
