package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryKindDeposit     EntryKind = "DEPOSIT"
	EntryKindWithdrawal  EntryKind = "WITHDRAWAL"
	EntryKindTransferIn  EntryKind = "TRANSFER_IN"
	EntryKindTransferOut EntryKind = "TRANSFER_OUT"
	EntryKindReversal    EntryKind = "REVERSAL"
)

// IsDebit returns true for kinds that reduce the balance.
func (k EntryKind) IsDebit() bool {
	switch k {
	case EntryKindWithdrawal, EntryKindTransferOut, EntryKindReversal:
		return true
	}
	return false
}

// Valid reports whether k is a known kind.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindDeposit, EntryKindWithdrawal, EntryKindTransferIn, EntryKindTransferOut, EntryKindReversal:
		return true
	}
	return false
}

// EntryStatus represents the state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCommitted EntryStatus = "COMMITTED"
	EntryStatusFailed    EntryStatus = "FAILED"
	EntryStatusReversed  EntryStatus = "REVERSED"
)

// LedgerEntry is an immutable record of one balance change.
// ReferenceID is nil for internal moves.
type LedgerEntry struct {
	ID           uuid.UUID   `json:"id"`
	WalletID     uuid.UUID   `json:"wallet_id"`
	Delta        int64       `json:"delta"`
	BalanceAfter int64       `json:"balance_after"`
	ReferenceID  *string     `json:"reference_id,omitempty"`
	Kind         EntryKind   `json:"kind"`
	Status       EntryStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ReferenceRecord is the durable row proving a reference reached the ledger.
// It is written in the same transaction as the entries it covers.
type ReferenceRecord struct {
	ReferenceID string    `json:"reference_id"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reconciliation compares the stored balance with the sum of committed deltas.
type Reconciliation struct {
	WalletID      uuid.UUID `json:"wallet_id"`
	StoredBalance int64     `json:"stored_balance"`
	LedgerBalance int64     `json:"ledger_balance"`
	EntryCount    int64     `json:"entry_count"`
	Consistent    bool      `json:"consistent"`
	CheckedAt     time.Time `json:"checked_at"`
}
