package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction is the balance effect of a settlement event.
type Direction string

const (
	DirectionCredit   Direction = "CREDIT"
	DirectionDebit    Direction = "DEBIT"
	DirectionTransfer Direction = "TRANSFER"
)

// EventSource identifies who delivered a settlement event.
type EventSource string

const (
	EventSourceAPI     EventSource = "API"
	EventSourceGateway EventSource = "GATEWAY"
)

// SettlementState tracks an event through the settlement engine.
type SettlementState string

const (
	SettlementStateReceived  SettlementState = "RECEIVED"
	SettlementStateClaimed   SettlementState = "CLAIMED"
	SettlementStateApplying  SettlementState = "APPLYING"
	SettlementStateCommitted SettlementState = "COMMITTED"
	SettlementStateRejected  SettlementState = "REJECTED"
	SettlementStateFailed    SettlementState = "FAILED"
	SettlementStateReleased  SettlementState = "RELEASED"
)

// SettlementEvent is a monetary operation tagged with an external reference.
// It is built per request and never persisted directly.
type SettlementEvent struct {
	ReferenceID          string      `json:"reference_id"`
	WalletID             uuid.UUID   `json:"wallet_id"`
	CounterpartyWalletID uuid.UUID   `json:"counterparty_wallet_id,omitempty"`
	Amount               int64       `json:"amount"`
	Currency             string      `json:"currency"`
	Direction            Direction   `json:"direction"`
	Kind                 EntryKind   `json:"kind"`
	Source               EventSource `json:"source"`
	PayloadChecksum      string      `json:"payload_checksum,omitempty"`
	Checksum             string      `json:"checksum"`
}

// ComputeChecksum hashes the fields that define the event's effect. Two
// deliveries of the same reference must produce the same checksum to be
// treated as a replay.
func ComputeChecksum(e *SettlementEvent) string {
	counterparty := ""
	if e.CounterpartyWalletID != uuid.Nil {
		counterparty = e.CounterpartyWalletID.String()
	}
	canonical := strings.Join([]string{
		e.ReferenceID,
		e.WalletID.String(),
		counterparty,
		strconv.FormatInt(e.Amount, 10),
		strings.ToUpper(e.Currency),
		string(e.Direction),
		string(e.Kind),
		e.PayloadChecksum,
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Seal fills in the event checksum.
func (e *SettlementEvent) Seal() {
	e.Checksum = ComputeChecksum(e)
}

// SettlementOutcome is what the caller sees. A replay returns the outcome
// recorded by the original commit with Replayed set.
type SettlementOutcome struct {
	ReferenceID          string          `json:"reference_id"`
	State                SettlementState `json:"state"`
	Replayed             bool            `json:"replayed"`
	WalletID             uuid.UUID       `json:"wallet_id"`
	Balance              int64           `json:"balance"`
	CounterpartyWalletID *uuid.UUID      `json:"counterparty_wallet_id,omitempty"`
	CounterpartyBalance  *int64          `json:"counterparty_balance,omitempty"`
	EntryIDs             []uuid.UUID     `json:"entry_ids"`
	CompletedAt          time.Time       `json:"completed_at"`
}

// AsReplay returns a copy marked as an idempotent replay.
func (o *SettlementOutcome) AsReplay() *SettlementOutcome {
	cp := *o
	cp.State = SettlementStateRejected
	cp.Replayed = true
	return &cp
}
