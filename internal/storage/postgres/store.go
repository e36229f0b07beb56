// Package postgres provides a pgx-backed storage implementation that
// satisfies the vault repository, writer, and idempotency interfaces.
//
// Migrations that create the expected schema live under db/migrations.
// Vault-wide state (total held, global counters) lives in a singleton row;
// per-account balances and counters live in vault_accounts.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/vault/internal/errs"
	"github.com/tinoosan/vault/internal/vault"
)

// Store holds a pgx connection pool and implements the read/write interfaces
// used by the vault service. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string and
// ensures the singleton vault state row exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, `
		insert into vault_state (id, total_held_minor, deposit_count, withdrawal_count)
		values (1, 0, 0, 0)
		on conflict (id) do nothing
	`); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Reads ---

// BalanceMinor returns the account balance in minor units. Absent accounts
// read as zero.
func (s *Store) BalanceMinor(ctx context.Context, account uuid.UUID) (int64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `
		select balance_minor from vault_accounts where account_id = $1
	`, account).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// TotalHeldMinor returns the vault-wide total in minor units.
func (s *Store) TotalHeldMinor(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		select total_held_minor from vault_state where id = 1
	`).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// VaultCounters returns the global deposit/withdrawal counts.
func (s *Store) VaultCounters(ctx context.Context) (vault.Counters, error) {
	var c vault.Counters
	err := s.pool.QueryRow(ctx, `
		select deposit_count, withdrawal_count from vault_state where id = 1
	`).Scan(&c.Deposits, &c.Withdrawals)
	if err != nil {
		return vault.Counters{}, err
	}
	return c, nil
}

// AccountCounters returns per-account counts. Absent accounts read as zero.
func (s *Store) AccountCounters(ctx context.Context, account uuid.UUID) (vault.Counters, error) {
	var c vault.Counters
	err := s.pool.QueryRow(ctx, `
		select deposit_count, withdrawal_count from vault_accounts where account_id = $1
	`, account).Scan(&c.Deposits, &c.Withdrawals)
	if errors.Is(err, pgx.ErrNoRows) {
		return vault.Counters{}, nil
	}
	if err != nil {
		return vault.Counters{}, err
	}
	return c, nil
}

// --- Writes ---

// BeginTx implements vault.Writer.
func (s *Store) BeginTx(ctx context.Context) (vault.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx.Tx. Credit and Debit move the account balance, the vault
// total, and the counters in one database transaction.
type Tx struct{ tx pgx.Tx }

// Credit upserts the account row and bumps totals and deposit counters.
func (t *Tx) Credit(ctx context.Context, account uuid.UUID, amountMinor int64) (int64, error) {
	if amountMinor <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", errs.ErrInvariant)
	}
	var newBalance int64
	err := t.tx.QueryRow(ctx, `
		insert into vault_accounts (account_id, balance_minor, deposit_count, withdrawal_count)
		values ($1, $2, 1, 0)
		on conflict (account_id) do update
		set balance_minor = vault_accounts.balance_minor + excluded.balance_minor,
		    deposit_count = vault_accounts.deposit_count + 1
		returning balance_minor
	`, account, amountMinor).Scan(&newBalance)
	if err != nil {
		return 0, err
	}
	if _, err := t.tx.Exec(ctx, `
		update vault_state
		set total_held_minor = total_held_minor + $1, deposit_count = deposit_count + 1
		where id = 1
	`, amountMinor); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Debit decreases the balance, guarded against going negative, and bumps
// withdrawal counters.
func (t *Tx) Debit(ctx context.Context, account uuid.UUID, amountMinor int64) (int64, error) {
	if amountMinor <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", errs.ErrInvariant)
	}
	var newBalance int64
	err := t.tx.QueryRow(ctx, `
		update vault_accounts
		set balance_minor = balance_minor - $2, withdrawal_count = withdrawal_count + 1
		where account_id = $1 and balance_minor >= $2
		returning balance_minor
	`, account, amountMinor).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: debit would make balance negative", errs.ErrInvariant)
	}
	if err != nil {
		return 0, err
	}
	if _, err := t.tx.Exec(ctx, `
		update vault_state
		set total_held_minor = total_held_minor - $1, withdrawal_count = withdrawal_count + 1
		where id = 1
	`, amountMinor); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// --- Idempotency ---

// GetOperation resolves a stored operation by idempotency key.
func (s *Store) GetOperation(ctx context.Context, key string) (vault.IdempotencyRecord, bool, error) {
	var rec vault.IdempotencyRecord
	err := s.pool.QueryRow(ctx, `
		select body_hash, status, payload from vault_idempotency where key = $1
	`, key).Scan(&rec.BodyHash, &rec.Status, &rec.Payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return vault.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return vault.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

// SaveOperation stores an idempotency record. First write wins.
func (s *Store) SaveOperation(ctx context.Context, key string, rec vault.IdempotencyRecord) error {
	_, err := s.pool.Exec(ctx, `
		insert into vault_idempotency (key, body_hash, status, payload)
		values ($1, $2, $3, $4)
		on conflict (key) do nothing
	`, key, rec.BodyHash, rec.Status, rec.Payload)
	return err
}
