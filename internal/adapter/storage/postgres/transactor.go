package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor. Every transaction it opens is
// SERIALIZABLE so concurrent ledger mutations of one wallet cannot interleave.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a new serializable database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, classify("begin serializable tx", err)
	}
	return &serializableTx{Tx: tx}, nil
}

// serializableTx classifies commit failures: under SERIALIZABLE most conflicts
// surface at COMMIT rather than at the statement that caused them.
type serializableTx struct {
	pgx.Tx
}

func (t *serializableTx) Commit(ctx context.Context) error {
	return classify("commit tx", t.Tx.Commit(ctx))
}
