package postgres

import (
	"errors"
	"fmt"

	"digital-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the ledger reacts to.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// Unique constraints that guard settlement references. A violation of any
// other unique constraint is not a replay.
const (
	constraintReferencePK       = "settlement_references_pkey"
	constraintEntryReferenceIdx = "uq_ledger_entries_reference_wallet"
)

// classify wraps err with the ports sentinel matching its cause so callers can
// branch with errors.Is while keeping the driver error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%s: %w: %w", op, ports.ErrSerialization, err)
		case sqlStateUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintReferencePK, constraintEntryReferenceIdx:
				return fmt.Errorf("%s: %w: %w", op, ports.ErrDuplicateReference, err)
			}
			return fmt.Errorf("%s: %w: %w", op, ports.ErrDuplicateKey, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
