package v1

import (
	"context"

	"github.com/tinoosan/vault/internal/vault"
)

// IdempotencyStore abstracts idempotency record operations for deposits and
// withdrawals.
type IdempotencyStore interface {
	// GetOperation resolves a stored operation outcome by idempotency key.
	GetOperation(ctx context.Context, key string) (vault.IdempotencyRecord, bool, error)
	// SaveOperation stores the outcome of a completed operation.
	SaveOperation(ctx context.Context, key string, rec vault.IdempotencyRecord) error
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
