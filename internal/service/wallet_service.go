package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultEntryPageSize = 20
	maxEntryPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService. It holds no per-request
// state and is shared by every handler and by the settlement engine.
type WalletServiceImpl struct {
	store ports.LedgerStore
	guard ports.IdempotencyGuard
	log   zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(store ports.LedgerStore, guard ports.IdempotencyGuard, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		store: store,
		guard: guard,
		log:   log,
	}
}

// CreateWallet provisions an empty wallet for the owner.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, req ports.CreateWalletRequest) (*domain.Wallet, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		return nil, apperror.Validation("currency must be a 3-letter ISO 4217 code")
	}
	if req.OwnerID == "" {
		return nil, apperror.Validation("owner is required")
	}
	if req.OverdraftLimit < 0 {
		return nil, apperror.Validation("overdraft limit must not be negative")
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:             uuid.New(),
		OwnerID:        req.OwnerID,
		Currency:       currency,
		OverdraftLimit: req.OverdraftLimit,
		Status:         domain.WalletStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("owner_id", wallet.OwnerID).
		Str("currency", wallet.Currency).
		Msg("wallet created")

	return wallet, nil
}

func (s *WalletServiceImpl) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return s.store.GetWallet(ctx, id)
}

func (s *WalletServiceImpl) ListWallets(ctx context.Context, ownerID string) ([]domain.Wallet, error) {
	return s.store.ListWallets(ctx, ownerID)
}

// Credit adds req.Amount to the wallet under the lease's reference.
func (s *WalletServiceImpl) Credit(ctx context.Context, lease *domain.Lease, req ports.MutationRequest) (*domain.LedgerEntry, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.EntryKindDeposit
	}
	if !kind.Valid() || kind.IsDebit() {
		return nil, apperror.Validation(fmt.Sprintf("entry kind %s cannot credit a wallet", kind))
	}
	return s.mutate(ctx, lease, req, req.Amount, kind)
}

// Debit removes req.Amount from the wallet under the lease's reference. The
// resulting balance may not cross the wallet's floor.
func (s *WalletServiceImpl) Debit(ctx context.Context, lease *domain.Lease, req ports.MutationRequest) (*domain.LedgerEntry, error) {
	kind := req.Kind
	if kind == "" {
		kind = domain.EntryKindWithdrawal
	}
	if !kind.IsDebit() {
		return nil, apperror.Validation(fmt.Sprintf("entry kind %s cannot debit a wallet", kind))
	}
	return s.mutate(ctx, lease, req, -req.Amount, kind)
}

func (s *WalletServiceImpl) mutate(ctx context.Context, lease *domain.Lease, req ports.MutationRequest, delta int64, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount().WithContext(lease.ReferenceIDOrEmpty(), req.WalletID.String())
	}
	if err := s.requireLease(ctx, lease, req.WalletID); err != nil {
		return nil, err
	}
	return s.store.ApplyEntry(ctx, ports.EntryRequest{
		WalletID:    req.WalletID,
		Delta:       delta,
		Currency:    req.Currency,
		ReferenceID: lease.ReferenceID,
		Kind:        kind,
		Checksum:    lease.Checksum,
	})
}

// Transfer moves req.Amount between two wallets under the lease's reference.
func (s *WalletServiceImpl) Transfer(ctx context.Context, lease *domain.Lease, req ports.TransferRequest) (*ports.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount().WithContext(lease.ReferenceIDOrEmpty(), req.FromWalletID.String())
	}
	if err := s.requireLease(ctx, lease, req.FromWalletID); err != nil {
		return nil, err
	}
	req.ReferenceID = lease.ReferenceID
	req.Checksum = lease.Checksum
	return s.store.ApplyTransfer(ctx, req)
}

// GetBalance returns the wallet balance and how much can still be debited.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, id uuid.UUID) (*ports.Balance, error) {
	w, err := s.store.GetWallet(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ports.Balance{
		WalletID:  w.ID,
		Balance:   w.Balance,
		Available: w.Balance - w.Floor(),
		Currency:  w.Currency,
		Version:   w.Version,
	}, nil
}

// Deactivate stops the wallet from accepting mutations. Balance and history are kept.
func (s *WalletServiceImpl) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := s.store.SetStatus(ctx, id, domain.WalletStatusInactive)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wallet_id", id.String()).Msg("wallet deactivated")
	return w, nil
}

func (s *WalletServiceImpl) SetOverdraftLimit(ctx context.Context, id uuid.UUID, limit int64) (*domain.Wallet, error) {
	w, err := s.store.SetOverdraftLimit(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wallet_id", id.String()).Int64("overdraft_limit", limit).Msg("overdraft limit updated")
	return w, nil
}

// ListEntries returns a page of the wallet's ledger entries.
func (s *WalletServiceImpl) ListEntries(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	if _, err := s.store.GetWallet(ctx, params.WalletID); err != nil {
		return nil, 0, err
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultEntryPageSize
	}
	if params.PageSize > maxEntryPageSize {
		params.PageSize = maxEntryPageSize
	}
	return s.store.ListEntries(ctx, params)
}

func (s *WalletServiceImpl) Reconcile(ctx context.Context, id uuid.UUID) (*domain.Reconciliation, error) {
	return s.store.Reconcile(ctx, id)
}

// requireLease rejects mutations whose reference is not currently claimed by lease.
func (s *WalletServiceImpl) requireLease(ctx context.Context, lease *domain.Lease, walletID uuid.UUID) error {
	if lease == nil || lease.ReferenceID == "" {
		return apperror.ErrUnclaimedReference().WithContext("", walletID.String())
	}
	held, err := s.guard.Holds(ctx, lease)
	if err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("check lease: %w", err)).WithContext(lease.ReferenceID, walletID.String())
	}
	if !held {
		return apperror.ErrUnclaimedReference().WithContext(lease.ReferenceID, walletID.String())
	}
	return nil
}
