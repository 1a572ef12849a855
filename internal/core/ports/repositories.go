package ports

import (
	"context"
	"errors"

	"digital-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Sentinel errors reported by the persistence adapters.
var (
	// ErrVersionConflict means an optimistic UPDATE matched no row at the expected version.
	ErrVersionConflict = errors.New("wallet version conflict")
	// ErrSerialization means the database aborted the transaction (SQLSTATE 40001 / 40P01).
	ErrSerialization = errors.New("transaction serialization failure")
	// ErrDuplicateReference means the reference was already recorded in the ledger.
	ErrDuplicateReference = errors.New("reference already recorded")
	// ErrDuplicateKey is any other unique violation, e.g. a wallet id collision.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrUnavailable means the store could not be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside ledger transactions.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Wallet, error)
	// UpdateBalance writes the new balance if the stored version still equals
	// expectedVersion and bumps the version. Returns ErrVersionConflict otherwise.
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance int64, expectedVersion int64) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) error
	UpdateOverdraftLimit(ctx context.Context, id uuid.UUID, limit int64) error
}

// LedgerEntryRepository defines append-only persistence for ledger entries.
type LedgerEntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByReference(ctx context.Context, referenceID string) ([]domain.LedgerEntry, error)
	List(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	// SumCommitted returns the sum of committed deltas and the number of committed entries.
	SumCommitted(ctx context.Context, walletID uuid.UUID) (int64, int64, error)
}

// EntryListParams holds filter + pagination for listing ledger entries.
type EntryListParams struct {
	WalletID uuid.UUID
	Kind     *domain.EntryKind
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// ReferenceRepository persists the durable record of settled references.
type ReferenceRepository interface {
	// Create returns ErrDuplicateReference if the reference already exists.
	Create(ctx context.Context, tx pgx.Tx, record *domain.ReferenceRecord) error
	Get(ctx context.Context, referenceID string) (*domain.ReferenceRecord, error)
}

// AuditRepository persists audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management. Transactions are serializable.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
