package dto

// CreateWalletRequest is the request body for wallet provisioning.
type CreateWalletRequest struct {
	OwnerID        string `json:"owner_id" binding:"omitempty,max=100,safe_id"`
	Currency       string `json:"currency" binding:"required,len=3,currency_code"`
	OverdraftLimit int64  `json:"overdraft_limit" binding:"gte=0"`
}

// MutationRequest is the request body for credit and debit. ReferenceID may
// instead be supplied through the Idempotency-Key header.
type MutationRequest struct {
	ReferenceID string `json:"reference_id" binding:"omitempty,max=100,safe_id"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3,currency_code"`
	Kind        string `json:"kind" binding:"omitempty,oneof=DEPOSIT WITHDRAWAL REVERSAL"`
}

// TransferRequest is the request body for wallet-to-wallet transfers.
type TransferRequest struct {
	ReferenceID  string `json:"reference_id" binding:"omitempty,max=100,safe_id"`
	FromWalletID string `json:"from_wallet_id" binding:"required,uuid"`
	ToWalletID   string `json:"to_wallet_id" binding:"required,uuid,nefield=FromWalletID"`
	Amount       int64  `json:"amount" binding:"required,gt=0"`
	Currency     string `json:"currency" binding:"required,len=3,currency_code"`
}

// OverdraftRequest is the request body for overdraft configuration.
type OverdraftRequest struct {
	Limit *int64 `json:"limit" binding:"required,gte=0"`
}

// DepositRequest is the request body for gateway deposit initialization.
type DepositRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"required,len=3,currency_code"`
}

// WebhookPayload is the gateway callback body.
type WebhookPayload struct {
	ExternalReference string `json:"externalReference" binding:"required,max=512"`
	AmountMinorUnits  int64  `json:"amountMinorUnits" binding:"required,gt=0"`
	Currency          string `json:"currency" binding:"required,len=3,currency_code"`
	WalletID          string `json:"walletId" binding:"omitempty,uuid"`
	EventType         string `json:"eventType" binding:"required,oneof=deposit withdrawal reversal"`
	PayloadChecksum   string `json:"payloadChecksum" binding:"omitempty,max=128"`
}

// WalletResponse is the response body for a wallet.
type WalletResponse struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	Currency       string `json:"currency"`
	Balance        int64  `json:"balance"`
	OverdraftLimit int64  `json:"overdraft_limit"`
	Status         string `json:"status"`
	Version        int64  `json:"version"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// SettlementResponse carries the outcome status, new balance and settlement state.
type SettlementResponse struct {
	ReferenceID          string   `json:"reference_id"`
	Status               string   `json:"status"` // applied or replayed
	State                string   `json:"state"`
	WalletID             string   `json:"wallet_id"`
	Balance              int64    `json:"balance"`
	CounterpartyWalletID *string  `json:"counterparty_wallet_id,omitempty"`
	CounterpartyBalance  *int64   `json:"counterparty_balance,omitempty"`
	EntryIDs             []string `json:"entry_ids"`
	CompletedAt          string   `json:"completed_at"`
}

// EntryResponse is the response body for a ledger entry.
type EntryResponse struct {
	ID           string  `json:"id"`
	WalletID     string  `json:"wallet_id"`
	ReferenceID  *string `json:"reference_id,omitempty"`
	Kind         string  `json:"kind"`
	Delta        int64   `json:"delta"`
	BalanceAfter int64   `json:"balance_after"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
}

// EntryListResponse wraps a paginated entry list.
type EntryListResponse struct {
	Items      []EntryResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// DepositResponse is the response body for an initialized deposit.
type DepositResponse struct {
	WalletID         string `json:"wallet_id"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code,omitempty"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}
