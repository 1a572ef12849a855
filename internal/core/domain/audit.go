package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateWallet   AuditAction = "CREATE_WALLET"
	AuditActionCredit         AuditAction = "CREDIT"
	AuditActionDebit          AuditAction = "DEBIT"
	AuditActionTransfer       AuditAction = "TRANSFER"
	AuditActionDeactivate     AuditAction = "DEACTIVATE_WALLET"
	AuditActionSetOverdraft   AuditAction = "SET_OVERDRAFT"
	AuditActionInitDeposit    AuditAction = "INIT_DEPOSIT"
	AuditActionGatewayWebhook AuditAction = "GATEWAY_WEBHOOK"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      string      `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
