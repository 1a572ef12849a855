package postgres

import (
	"context"
	"errors"
	"fmt"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumnList = `id, owner_id, currency, balance, overdraft_limit, version, status, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet into the database.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerID, w.Currency, w.Balance, w.OverdraftLimit,
		w.Version, w.Status, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return classify("insert wallet", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID outside any transaction.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumnList + ` FROM wallets WHERE id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, id), "get wallet by id")
}

// GetByIDTx fetches a wallet inside a ledger transaction. The returned version
// is the one UpdateBalance must be called with.
func (r *WalletRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumnList + ` FROM wallets WHERE id = $1`
	return scanWallet(tx.QueryRow(ctx, query, id), "get wallet in tx")
}

// ListByOwner returns every wallet belonging to ownerID, oldest first.
func (r *WalletRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumnList + ` FROM wallets WHERE owner_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, classify("list wallets", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(
			&w.ID, &w.OwnerID, &w.Currency, &w.Balance, &w.OverdraftLimit,
			&w.Version, &w.Status, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// UpdateBalance performs the optimistic write: the row is only updated while its
// version still equals expectedVersion.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance int64, expectedVersion int64) error {
	query := `UPDATE wallets SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`

	tag, err := tx.Exec(ctx, query, balance, id, expectedVersion)
	if err != nil {
		return classify("update wallet balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update wallet %s at version %d: %w", id, expectedVersion, ports.ErrVersionConflict)
	}
	return nil
}

// UpdateStatus changes the wallet lifecycle state.
func (r *WalletRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) error {
	query := `UPDATE wallets SET status = $1, version = version + 1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return classify("update wallet status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}

// UpdateOverdraftLimit sets how far below zero the wallet may go.
func (r *WalletRepo) UpdateOverdraftLimit(ctx context.Context, id uuid.UUID, limit int64) error {
	query := `UPDATE wallets SET overdraft_limit = $1, version = version + 1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, limit, id)
	if err != nil {
		return classify("update wallet overdraft", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Currency, &w.Balance, &w.OverdraftLimit,
		&w.Version, &w.Status, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(op, err)
	}
	return w, nil
}
