package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(walletID uuid.UUID, ref string, delta int64) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     walletID,
		Delta:        delta,
		BalanceAfter: 1000 + delta,
		ReferenceID:  &ref,
		Kind:         domain.EntryKindDeposit,
		Status:       domain.EntryStatusCommitted,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func entryColumns() []string {
	return []string{"id", "wallet_id", "delta", "balance_after", "reference_id", "kind", "status", "created_at"}
}

func entryRows(entries ...*domain.LedgerEntry) *pgxmock.Rows {
	rows := pgxmock.NewRows(entryColumns())
	for _, e := range entries {
		rows.AddRow(e.ID, e.WalletID, e.Delta, e.BalanceAfter, e.ReferenceID, e.Kind, e.Status, e.CreatedAt)
	}
	return rows
}

func TestEntryRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntryRepo(mock)
	e := newTestEntry(uuid.New(), "tx-1", 500)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.WalletID, e.Delta, e.BalanceAfter, e.ReferenceID, e.Kind, e.Status, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_Create_DuplicateReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntryRepo(mock)
	e := newTestEntry(uuid.New(), "tx-1", 500)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.WalletID, e.Delta, e.BalanceAfter, e.ReferenceID, e.Kind, e.Status, e.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraintEntryReferenceIdx})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDuplicateReference))
}

func TestEntryRepo_ListByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntryRepo(mock)
	out := newTestEntry(uuid.New(), "tx-3", -300)
	out.Kind = domain.EntryKindTransferOut
	in := newTestEntry(uuid.New(), "tx-3", 300)
	in.Kind = domain.EntryKindTransferIn

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE reference_id").
		WithArgs("tx-3").
		WillReturnRows(entryRows(out, in))

	entries, err := repo.ListByReference(context.Background(), "tx-3")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(-300), entries[0].Delta)
	assert.Equal(t, domain.EntryKindTransferIn, entries[1].Kind)
	assert.Equal(t, "tx-3", *entries[1].ReferenceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntryRepo(mock)
	walletID := uuid.New()
	kind := domain.EntryKindDeposit
	e := newTestEntry(walletID, "tx-1", 500)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(walletID, kind).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE wallet_id .+ LIMIT").
		WithArgs(walletID, kind, 20, 20).
		WillReturnRows(entryRows(e))

	entries, total, err := repo.List(context.Background(), ports.EntryListParams{
		WalletID: walletID,
		Kind:     &kind,
		Page:     2,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, e.ID, entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_SumCommitted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEntryRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(delta\\), 0\\), COUNT\\(\\*\\) FROM ledger_entries").
		WithArgs(walletID, domain.EntryStatusCommitted).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(int64(1200), int64(3)))

	sum, count, err := repo.SumCommitted(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), sum)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
