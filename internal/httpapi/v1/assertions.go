package v1

import (
	"github.com/tinoosan/vault/internal/storage/memory"
	"github.com/tinoosan/vault/internal/storage/postgres"
	"github.com/tinoosan/vault/internal/vault"
)

// Compile-time interface assertions for the stores against the service and
// HTTP API interfaces.
var (
	_ vault.Repo       = (*memory.Store)(nil)
	_ vault.Writer     = (*memory.Store)(nil)
	_ IdempotencyStore = (*memory.Store)(nil)
	_ vault.Repo       = (*postgres.Store)(nil)
	_ vault.Writer     = (*postgres.Store)(nil)
	_ IdempotencyStore = (*postgres.Store)(nil)
	_ ReadyChecker     = (*postgres.Store)(nil)
)
