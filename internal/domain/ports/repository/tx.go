package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `tx`.
//
// RATIONALE
// - Keeps use-case interfaces clean (no transaction types leaking out).
// - Allows repository methods that accept `tx Tx` to detect a tx
//   (implementation-side) and run SELECT ... FOR UPDATE / use tx-bound
//   Exec/Query as needed.
// - Works across different storage backends as long as they can provide a
//   tx handle.
//
// The concrete type of `tx` is infra-defined (pgx.Tx for Postgres).
// Repositories MUST gracefully accept `nil` tx (non-transactional path).
//
// Keep this interface small and stable.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
	// LockTenant serializes concurrent work on one tenant for the duration of
	// the transaction. Must be called with the tx handle produced by WithTx.
	LockTenant(ctx context.Context, tx Tx, tenantID string) error
}
