package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// TxFromContext retrieves the in-flight transaction from context, or nil when
// the caller is running outside a transaction.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// TxRunner runs a function inside a single database transaction. The
// transaction is carried in the context so that repositories called by fn
// transparently address it instead of the pool.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolRunner is the pgx-backed TxRunner.
type PoolRunner struct {
	pool *pgxpool.Pool
}

func NewRunner(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

// InTx begins a transaction, stores it in the context and invokes fn.
// A nil return commits; any error (or panic) rolls back.
func (r *PoolRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
