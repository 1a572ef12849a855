package domain

import (
	"time"
)

// ClaimState is the lifecycle state of an idempotency record.
type ClaimState string

const (
	ClaimStateUnclaimed  ClaimState = "UNCLAIMED"
	ClaimStateInProgress ClaimState = "IN_PROGRESS"
	ClaimStateCommitted  ClaimState = "COMMITTED"
	ClaimStateFailed     ClaimState = "FAILED"
)

// IdempotencyRecord tracks one external reference in the shared store.
type IdempotencyRecord struct {
	ReferenceID string             `json:"reference_id"`
	State       ClaimState         `json:"state"`
	LeaseToken  string             `json:"-"`
	Checksum    string             `json:"checksum"`
	Outcome     *SettlementOutcome `json:"outcome,omitempty"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// Lease proves the holder claimed a reference. It is only valid until ExpiresAt.
type Lease struct {
	ReferenceID string    `json:"reference_id"`
	Token       string    `json:"token"`
	Checksum    string    `json:"checksum"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Remaining returns the time left on the lease relative to now.
func (l *Lease) Remaining(now time.Time) time.Duration {
	if l == nil {
		return 0
	}
	return l.ExpiresAt.Sub(now)
}

// ClaimStatus is the result kind of a claim attempt.
type ClaimStatus string

const (
	ClaimStatusClaimed           ClaimStatus = "CLAIMED"
	ClaimStatusAlreadyCommitted  ClaimStatus = "ALREADY_COMMITTED"
	ClaimStatusAlreadyInProgress ClaimStatus = "ALREADY_IN_PROGRESS"
)

// ClaimResult is returned by a claim. Lease is set when Status is CLAIMED;
// Record describes the existing reference otherwise.
type ClaimResult struct {
	Status ClaimStatus
	Lease  *Lease
	Record *IdempotencyRecord
}

// ReferenceIDOrEmpty returns the leased reference, or "" for a nil lease.
func (l *Lease) ReferenceIDOrEmpty() string {
	if l == nil {
		return ""
	}
	return l.ReferenceID
}
