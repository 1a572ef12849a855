package domain

import "github.com/google/uuid"

// GatewayEventType is the event type reported by the payment gateway.
type GatewayEventType string

const (
	GatewayEventDeposit    GatewayEventType = "deposit"
	GatewayEventWithdrawal GatewayEventType = "withdrawal"
	GatewayEventReversal   GatewayEventType = "reversal"
)

// DepositInitialization is returned when a deposit is started at the gateway.
type DepositInitialization struct {
	WalletID         uuid.UUID `json:"wallet_id"`
	Reference        string    `json:"reference"`
	AuthorizationURL string    `json:"authorization_url"`
	AccessCode       string    `json:"access_code"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
}

// GatewayTransaction is the gateway's view of a transaction, used to confirm callbacks.
type GatewayTransaction struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// Succeeded reports whether the gateway considers the transaction settled.
func (t *GatewayTransaction) Succeeded() bool {
	return t.Status == "success"
}
