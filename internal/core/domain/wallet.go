package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// WalletStatus represents the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive   WalletStatus = "ACTIVE"
	WalletStatusInactive WalletStatus = "INACTIVE"
)

// Wallet is a single-currency balance held for an owner. Amounts are minor units.
// Wallets are never deleted, only deactivated.
type Wallet struct {
	ID             uuid.UUID    `json:"id"`
	OwnerID        string       `json:"owner_id"`
	Currency       string       `json:"currency"`
	Balance        int64        `json:"balance"`
	OverdraftLimit int64        `json:"overdraft_limit"`
	Version        int64        `json:"version"`
	Status         WalletStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// IsActive returns true if the wallet accepts mutations.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// Floor is the lowest balance the wallet may reach. Zero unless an overdraft is configured.
func (w *Wallet) Floor() int64 {
	return -w.OverdraftLimit
}

// CanApply reports whether adding delta keeps the balance at or above the floor.
// Deltas that would overflow int64 are rejected.
func (w *Wallet) CanApply(delta int64) bool {
	if delta > 0 && w.Balance > math.MaxInt64-delta {
		return false
	}
	if delta < 0 && w.Balance < math.MinInt64-delta {
		return false
	}
	return w.Balance+delta >= w.Floor()
}

// IsOwnedBy reports whether ownerID owns the wallet.
func (w *Wallet) IsOwnedBy(ownerID string) bool {
	return ownerID != "" && w.OwnerID == ownerID
}
