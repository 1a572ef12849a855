package postgres

import (
	"context"
	"fmt"
	"strings"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumnList = `id, wallet_id, delta, balance_after, reference_id, kind, status, created_at`

// EntryRepo implements ports.LedgerEntryRepository. Entries are never updated or deleted.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create appends an entry within a ledger transaction. The (reference_id, wallet_id)
// unique index turns a second write for the same reference into ErrDuplicateReference.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + entryColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.Delta, e.BalanceAfter,
		e.ReferenceID, e.Kind, e.Status, e.CreatedAt,
	)
	if err != nil {
		return classify("insert ledger entry", err)
	}
	return nil
}

// ListByReference returns the entries written for a reference, oldest first.
func (r *EntryRepo) ListByReference(ctx context.Context, referenceID string) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumnList + ` FROM ledger_entries
		WHERE reference_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, referenceID)
	if err != nil {
		return nil, classify("list entries by reference", err)
	}
	return collectEntries(rows)
}

// List fetches a wallet's entries with filtering and pagination, newest first.
func (r *EntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, classify("count ledger entries", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, entryColumnList, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, classify("list ledger entries", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SumCommitted returns SUM(delta) and COUNT(*) over a wallet's committed entries.
func (r *EntryRepo) SumCommitted(ctx context.Context, walletID uuid.UUID) (int64, int64, error) {
	query := `SELECT COALESCE(SUM(delta), 0), COUNT(*) FROM ledger_entries
		WHERE wallet_id = $1 AND status = $2`

	var sum, count int64
	if err := r.pool.QueryRow(ctx, query, walletID, domain.EntryStatusCommitted).Scan(&sum, &count); err != nil {
		return 0, 0, classify("sum committed entries", err)
	}
	return sum, count, nil
}

func collectEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.WalletID, &e.Delta, &e.BalanceAfter,
			&e.ReferenceID, &e.Kind, &e.Status, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entry rows: %w", err)
	}
	return entries, nil
}
