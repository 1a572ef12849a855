package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memDB is an in-memory ledger database. Transactions run one at a time and
// roll back to a snapshot, which is as strict as SERIALIZABLE.
type memDB struct {
	txMu sync.Mutex // held for the lifetime of a transaction

	mu      sync.Mutex
	wallets map[uuid.UUID]domain.Wallet
	entries []domain.LedgerEntry
	refs    map[string]domain.ReferenceRecord
}

func newMemDB() *memDB {
	return &memDB{
		wallets: map[uuid.UUID]domain.Wallet{},
		refs:    map[string]domain.ReferenceRecord{},
	}
}

type memSnapshot struct {
	wallets map[uuid.UUID]domain.Wallet
	entries []domain.LedgerEntry
	refs    map[string]domain.ReferenceRecord
}

type memTx struct {
	pgx.Tx
	db   *memDB
	snap memSnapshot
	done bool
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.txMu.Lock()
	db.mu.Lock()
	defer db.mu.Unlock()
	return &memTx{db: db, snap: memSnapshot{
		wallets: maps.Clone(db.wallets),
		entries: slices.Clone(db.entries),
		refs:    maps.Clone(db.refs),
	}}, nil
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.db.mu.Lock()
	t.db.wallets, t.db.entries, t.db.refs = t.snap.wallets, t.snap.entries, t.snap.refs
	t.db.mu.Unlock()
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

// seed stores a wallet directly, bypassing the ledger.
func (db *memDB) seed(w domain.Wallet) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.wallets[w.ID] = w
}

func (db *memDB) entriesFor(walletID uuid.UUID) []domain.LedgerEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range db.entries {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out
}

type memWallets struct{ db *memDB }

func (r memWallets) Create(_ context.Context, w *domain.Wallet) error {
	r.db.seed(*w)
	return nil
}

func (r memWallets) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.db.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r memWallets) GetByIDTx(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r memWallets) ListByOwner(_ context.Context, ownerID string) ([]domain.Wallet, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Wallet
	for _, w := range r.db.wallets {
		if w.OwnerID == ownerID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r memWallets) UpdateBalance(_ context.Context, _ pgx.Tx, id uuid.UUID, balance int64, expectedVersion int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.db.wallets[id]
	if !ok || w.Version != expectedVersion {
		return fmt.Errorf("update wallet %s: %w", id, ports.ErrVersionConflict)
	}
	w.Balance = balance
	w.Version++
	r.db.wallets[id] = w
	return nil
}

func (r memWallets) UpdateStatus(_ context.Context, id uuid.UUID, status domain.WalletStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.db.wallets[id]
	if !ok {
		return errors.New("wallet not found")
	}
	w.Status = status
	w.Version++
	r.db.wallets[id] = w
	return nil
}

func (r memWallets) UpdateOverdraftLimit(_ context.Context, id uuid.UUID, limit int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w, ok := r.db.wallets[id]
	if !ok {
		return errors.New("wallet not found")
	}
	w.OverdraftLimit = limit
	w.Version++
	r.db.wallets[id] = w
	return nil
}

type memEntries struct{ db *memDB }

func (r memEntries) Create(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if e.ReferenceID != nil {
		for _, existing := range r.db.entries {
			if existing.ReferenceID != nil && *existing.ReferenceID == *e.ReferenceID && existing.WalletID == e.WalletID {
				return fmt.Errorf("insert entry: %w", ports.ErrDuplicateReference)
			}
		}
	}
	r.db.entries = append(r.db.entries, *e)
	return nil
}

func (r memEntries) ListByReference(_ context.Context, referenceID string) ([]domain.LedgerEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range r.db.entries {
		if e.ReferenceID != nil && *e.ReferenceID == referenceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memEntries) List(_ context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	all := r.db.entriesFor(params.WalletID)
	if params.Kind != nil {
		all = slices.DeleteFunc(all, func(e domain.LedgerEntry) bool { return e.Kind != *params.Kind })
	}
	total := int64(len(all))
	start := min((params.Page-1)*params.PageSize, len(all))
	end := min(start+params.PageSize, len(all))
	return all[start:end], total, nil
}

func (r memEntries) SumCommitted(_ context.Context, walletID uuid.UUID) (int64, int64, error) {
	var sum, count int64
	for _, e := range r.db.entriesFor(walletID) {
		if e.Status == domain.EntryStatusCommitted {
			sum += e.Delta
			count++
		}
	}
	return sum, count, nil
}

type memRefs struct{ db *memDB }

func (r memRefs) Create(_ context.Context, _ pgx.Tx, rec *domain.ReferenceRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.refs[rec.ReferenceID]; ok {
		return fmt.Errorf("insert reference: %w", ports.ErrDuplicateReference)
	}
	r.db.refs[rec.ReferenceID] = *rec
	return nil
}

func (r memRefs) Get(_ context.Context, referenceID string) (*domain.ReferenceRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.refs[referenceID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
