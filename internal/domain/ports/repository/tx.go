package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. The concrete type is infra-defined
// (pgx.Tx for Postgres); repositories must gracefully accept nil for the
// non-transactional path.
type Tx interface{}

// TransactionManager executes a function within a storage transaction,
// passing the underlying handle via `tx`. Keeping the handle opaque means
// use-case interfaces stay free of storage types while repositories can
// still detect a tx and use SELECT ... FOR UPDATE / tx-bound Exec as needed.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error

	// WithLockedTx additionally takes an exclusive transaction-scoped lock on
	// lockKey before invoking fn. It is the serialization primitive for
	// per-shipment and per-subscription orderings: two calls with the same
	// key never run fn concurrently.
	WithLockedTx(ctx context.Context, txOpt pgx.TxOptions, lockKey string, fn func(ctx context.Context, tx Tx) error) error
}
