package ports

import (
	"context"
	"errors"
	"time"

	"digital-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// ErrLeaseLost is returned when a lease no longer owns its reference.
var ErrLeaseLost = errors.New("lease no longer held")

// IdempotencyGuard coordinates exactly-once processing of external references
// across every process sharing the store.
type IdempotencyGuard interface {
	// Claim atomically moves an unclaimed reference to IN_PROGRESS for leaseDuration.
	Claim(ctx context.Context, referenceID, checksum string, leaseDuration time.Duration) (*domain.ClaimResult, error)
	// Commit moves the leased reference to COMMITTED. Returns ErrLeaseLost if the lease expired or was taken over.
	Commit(ctx context.Context, lease *domain.Lease, outcome *domain.SettlementOutcome) error
	// Release returns the reference to UNCLAIMED if the lease still owns it.
	Release(ctx context.Context, lease *domain.Lease) error
	// Holds reports whether the lease still owns its reference.
	Holds(ctx context.Context, lease *domain.Lease) (bool, error)
	// Get returns the current record, or nil if the reference is unclaimed.
	Get(ctx context.Context, referenceID string) (*domain.IdempotencyRecord, error)
}

// LedgerStore is the transactional record of balances and entries.
type LedgerStore interface {
	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	ListWallets(ctx context.Context, ownerID string) ([]domain.Wallet, error)
	ApplyEntry(ctx context.Context, req EntryRequest) (*domain.LedgerEntry, error)
	ApplyTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error)
	SetOverdraftLimit(ctx context.Context, id uuid.UUID, limit int64) (*domain.Wallet, error)
	EntriesByReference(ctx context.Context, referenceID string) ([]domain.LedgerEntry, error)
	ReferenceRecord(ctx context.Context, referenceID string) (*domain.ReferenceRecord, error)
	ListEntries(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	Reconcile(ctx context.Context, walletID uuid.UUID) (*domain.Reconciliation, error)
}

// EntryRequest describes a single-wallet balance change. Delta is signed.
type EntryRequest struct {
	WalletID    uuid.UUID
	Delta       int64
	Currency    string
	ReferenceID string
	Kind        domain.EntryKind
	Checksum    string
}

// TransferRequest moves Amount from one wallet to another atomically.
type TransferRequest struct {
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	Amount       int64
	Currency     string
	ReferenceID  string
	Checksum     string
}

// TransferResult holds both legs of a committed transfer.
type TransferResult struct {
	Debit  domain.LedgerEntry
	Credit domain.LedgerEntry
}

// --- Service Ports (Business Logic) ---

// WalletService orchestrates ledger reads and writes. Every mutation requires
// a lease held on the reference it carries.
type WalletService interface {
	CreateWallet(ctx context.Context, req CreateWalletRequest) (*domain.Wallet, error)
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	ListWallets(ctx context.Context, ownerID string) ([]domain.Wallet, error)
	Credit(ctx context.Context, lease *domain.Lease, req MutationRequest) (*domain.LedgerEntry, error)
	Debit(ctx context.Context, lease *domain.Lease, req MutationRequest) (*domain.LedgerEntry, error)
	Transfer(ctx context.Context, lease *domain.Lease, req TransferRequest) (*TransferResult, error)
	GetBalance(ctx context.Context, id uuid.UUID) (*Balance, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	SetOverdraftLimit(ctx context.Context, id uuid.UUID, limit int64) (*domain.Wallet, error)
	ListEntries(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	Reconcile(ctx context.Context, id uuid.UUID) (*domain.Reconciliation, error)
}

// CreateWalletRequest holds input for wallet provisioning.
type CreateWalletRequest struct {
	OwnerID        string
	Currency       string
	OverdraftLimit int64
}

// MutationRequest holds input for a credit or debit. Amount is positive.
type MutationRequest struct {
	WalletID uuid.UUID
	Amount   int64
	Currency string
	Kind     domain.EntryKind
}

// Balance is a point-in-time view of a wallet balance.
type Balance struct {
	WalletID  uuid.UUID `json:"wallet_id"`
	Balance   int64     `json:"balance"`
	Available int64     `json:"available"` // balance plus overdraft headroom
	Currency  string    `json:"currency"`
	Version   int64     `json:"version"`
}

// SettlementEngine applies settlement events exactly once.
type SettlementEngine interface {
	Settle(ctx context.Context, event *domain.SettlementEvent) (*domain.SettlementOutcome, error)
}

// GatewayClient is the outbound payment gateway API.
type GatewayClient interface {
	InitializeTransaction(ctx context.Context, req InitializeTransactionRequest) (*domain.DepositInitialization, error)
	VerifyTransaction(ctx context.Context, reference string) (*domain.GatewayTransaction, error)
}

// InitializeTransactionRequest starts a hosted checkout at the gateway.
type InitializeTransactionRequest struct {
	Email       string
	Amount      int64
	Currency    string
	Reference   string
	CallbackURL string
}

// GatewayService is the inbound/outbound boundary to the payment gateway.
type GatewayService interface {
	InitializeDeposit(ctx context.Context, req DepositRequest) (*domain.DepositInitialization, error)
	HandleCallback(ctx context.Context, cb GatewayCallback) (*domain.SettlementOutcome, error)
}

// DepositRequest holds input for a gateway deposit.
type DepositRequest struct {
	WalletID uuid.UUID
	Email    string
	Amount   int64
	Currency string
}

// GatewayCallback is a decoded webhook delivery from the gateway.
type GatewayCallback struct {
	ExternalReference string
	AmountMinorUnits  int64
	Currency          string
	WalletID          string
	EventType         domain.GatewayEventType
	PayloadChecksum   string
}

// ReferenceProtector seals gateway references so callbacks can be bound to a wallet.
type ReferenceProtector interface {
	Protect(walletID uuid.UUID) (string, error)
	Unprotect(reference string) (uuid.UUID, error)
	IsProtected(reference string) bool
}

// SignatureService handles HMAC-SHA512 signing and verification of webhook bodies.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject string, role string, ttl time.Duration) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// RoleAdmin grants access to every wallet and to overdraft configuration.
const RoleAdmin = "admin"

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}

// IsAdmin reports whether the caller has the admin role.
func (c *TokenClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// AuditService records audited actions asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// SettlementMetrics receives settlement telemetry. Implementations must be safe
// for concurrent use.
type SettlementMetrics interface {
	ObserveClaim(result string)
	ObserveSettlement(source, direction, outcome string, elapsed time.Duration)
	ObserveLedgerRetry(operation string)
	ObserveCallerAbandoned()
	ObserveWebhook(result string)
}
