package postgres

import (
	"context"
	"errors"

	"digital-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ReferenceRepo implements ports.ReferenceRepository over settlement_references.
type ReferenceRepo struct {
	pool Pool
}

// NewReferenceRepo creates a new ReferenceRepo.
func NewReferenceRepo(pool Pool) *ReferenceRepo {
	return &ReferenceRepo{pool: pool}
}

// Create records a settled reference within the ledger transaction. The primary
// key on reference_id makes a second settlement fail with ErrDuplicateReference.
func (r *ReferenceRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.ReferenceRecord) error {
	query := `INSERT INTO settlement_references (reference_id, checksum, created_at)
		VALUES ($1, $2, $3)`

	_, err := tx.Exec(ctx, query, rec.ReferenceID, rec.Checksum, rec.CreatedAt)
	if err != nil {
		return classify("insert settlement reference", err)
	}
	return nil
}

// Get fetches a settled reference. Returns nil, nil if it was never settled.
func (r *ReferenceRepo) Get(ctx context.Context, referenceID string) (*domain.ReferenceRecord, error) {
	query := `SELECT reference_id, checksum, created_at FROM settlement_references WHERE reference_id = $1`

	rec := &domain.ReferenceRecord{}
	err := r.pool.QueryRow(ctx, query, referenceID).Scan(&rec.ReferenceID, &rec.Checksum, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get settlement reference", err)
	}
	return rec, nil
}
