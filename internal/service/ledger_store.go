package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerStoreImpl implements ports.LedgerStore on top of the wallet, entry and
// reference repositories. Every mutation is a single serializable transaction
// guarded by the wallet version; conflicts are retried with exponential backoff.
type LedgerStoreImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.LedgerEntryRepository
	refRepo    ports.ReferenceRepository
	transactor ports.DBTransactor
	metrics    ports.SettlementMetrics
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewLedgerStore creates a new LedgerStoreImpl. maxRetries is the total number
// of attempts per mutation.
func NewLedgerStore(
	walletRepo ports.WalletRepository,
	entryRepo ports.LedgerEntryRepository,
	refRepo ports.ReferenceRepository,
	transactor ports.DBTransactor,
	metrics ports.SettlementMetrics,
	maxRetries int,
	backoff time.Duration,
	log zerolog.Logger,
) *LedgerStoreImpl {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &LedgerStoreImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		refRepo:    refRepo,
		transactor: transactor,
		metrics:    metricsOrNop(metrics),
		maxRetries: maxRetries,
		backoff:    backoff,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateWallet persists a new wallet with a zero balance.
func (s *LedgerStoreImpl) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return storeError(fmt.Errorf("create wallet: %w", err))
	}
	return nil
}

// GetWallet returns the wallet or WalletNotFound.
func (s *LedgerStoreImpl) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(fmt.Errorf("get wallet: %w", err)).WithContext("", id.String())
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound().WithContext("", id.String())
	}
	return w, nil
}

// ListWallets returns the wallets held by ownerID.
func (s *LedgerStoreImpl) ListWallets(ctx context.Context, ownerID string) ([]domain.Wallet, error) {
	wallets, err := s.walletRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, nil
}

// ApplyEntry checks the floor and writes one entry and the new balance in a
// single transaction. A rejected mutation writes nothing.
func (s *LedgerStoreImpl) ApplyEntry(ctx context.Context, req ports.EntryRequest) (*domain.LedgerEntry, error) {
	if req.Delta == 0 {
		return nil, apperror.ErrInvalidAmount().WithContext(req.ReferenceID, req.WalletID.String())
	}

	var entry *domain.LedgerEntry
	err := s.withRetry(ctx, "apply_entry", func(tx pgx.Tx) error {
		if err := s.recordReference(ctx, tx, req.ReferenceID, req.Checksum); err != nil {
			return err
		}

		w, err := s.lockedWallet(ctx, tx, req.WalletID, req.Currency)
		if err != nil {
			return err
		}
		if !w.CanApply(req.Delta) {
			return apperror.ErrInsufficientFunds()
		}

		balance := w.Balance + req.Delta
		if err := s.walletRepo.UpdateBalance(ctx, tx, w.ID, balance, w.Version); err != nil {
			return err
		}

		e := s.newEntry(w.ID, req.Delta, balance, req.ReferenceID, req.Kind)
		if err := s.entryRepo.Create(ctx, tx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, s.fail(err, req.ReferenceID, req.WalletID)
	}

	s.log.Debug().
		Str("reference_id", req.ReferenceID).
		Str("wallet_id", req.WalletID.String()).
		Int64("delta", req.Delta).
		Int64("balance_after", entry.BalanceAfter).
		Msg("ledger entry applied")

	return entry, nil
}

// ApplyTransfer debits one wallet and credits another atomically. Wallets are
// read and updated in ascending id order so concurrent opposite transfers
// conflict deterministically instead of deadlocking.
func (s *LedgerStoreImpl) ApplyTransfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount().WithContext(req.ReferenceID, req.FromWalletID.String())
	}
	if req.FromWalletID == req.ToWalletID {
		return nil, apperror.Validation("cannot transfer to the same wallet").WithContext(req.ReferenceID, req.FromWalletID.String())
	}

	var result *ports.TransferResult
	err := s.withRetry(ctx, "apply_transfer", func(tx pgx.Tx) error {
		if err := s.recordReference(ctx, tx, req.ReferenceID, req.Checksum); err != nil {
			return err
		}

		ids := orderedIDs(req.FromWalletID, req.ToWalletID)
		wallets := make(map[uuid.UUID]*domain.Wallet, 2)
		for _, id := range ids {
			w, err := s.lockedWallet(ctx, tx, id, req.Currency)
			if err != nil {
				return err
			}
			wallets[id] = w
		}

		from, to := wallets[req.FromWalletID], wallets[req.ToWalletID]
		if !strings.EqualFold(from.Currency, to.Currency) {
			return apperror.ErrCurrencyMismatch()
		}
		if !from.CanApply(-req.Amount) {
			return apperror.ErrInsufficientFunds()
		}
		if !to.CanApply(req.Amount) {
			return apperror.ErrInvalidAmount()
		}

		deltas := map[uuid.UUID]int64{from.ID: -req.Amount, to.ID: req.Amount}
		for _, id := range ids {
			w := wallets[id]
			if err := s.walletRepo.UpdateBalance(ctx, tx, id, w.Balance+deltas[id], w.Version); err != nil {
				return err
			}
		}

		debit := s.newEntry(from.ID, -req.Amount, from.Balance-req.Amount, req.ReferenceID, domain.EntryKindTransferOut)
		credit := s.newEntry(to.ID, req.Amount, to.Balance+req.Amount, req.ReferenceID, domain.EntryKindTransferIn)
		for _, e := range []*domain.LedgerEntry{debit, credit} {
			if err := s.entryRepo.Create(ctx, tx, e); err != nil {
				return err
			}
		}
		result = &ports.TransferResult{Debit: *debit, Credit: *credit}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, req.ReferenceID, req.FromWalletID)
	}

	s.log.Debug().
		Str("reference_id", req.ReferenceID).
		Str("from_wallet_id", req.FromWalletID.String()).
		Str("to_wallet_id", req.ToWalletID.String()).
		Int64("amount", req.Amount).
		Msg("ledger transfer applied")

	return result, nil
}

// SetStatus changes the wallet lifecycle state.
func (s *LedgerStoreImpl) SetStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error) {
	if _, err := s.GetWallet(ctx, id); err != nil {
		return nil, err
	}
	if err := s.walletRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, storeError(fmt.Errorf("update status: %w", err)).WithContext("", id.String())
	}
	return s.GetWallet(ctx, id)
}

// SetOverdraftLimit changes how far below zero the wallet may go. The new floor
// may not be above the current balance.
func (s *LedgerStoreImpl) SetOverdraftLimit(ctx context.Context, id uuid.UUID, limit int64) (*domain.Wallet, error) {
	if limit < 0 {
		return nil, apperror.Validation("overdraft limit must not be negative").WithContext("", id.String())
	}
	w, err := s.GetWallet(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Balance < -limit {
		return nil, apperror.Validation("overdraft limit is below the current negative balance").WithContext("", id.String())
	}
	if err := s.walletRepo.UpdateOverdraftLimit(ctx, id, limit); err != nil {
		return nil, storeError(fmt.Errorf("update overdraft: %w", err)).WithContext("", id.String())
	}
	return s.GetWallet(ctx, id)
}

// EntriesByReference returns every entry written under referenceID.
func (s *LedgerStoreImpl) EntriesByReference(ctx context.Context, referenceID string) ([]domain.LedgerEntry, error) {
	entries, err := s.entryRepo.ListByReference(ctx, referenceID)
	if err != nil {
		return nil, storeError(fmt.Errorf("list entries by reference: %w", err)).WithContext(referenceID, "")
	}
	return entries, nil
}

// ReferenceRecord returns the durable record of referenceID, or nil.
func (s *LedgerStoreImpl) ReferenceRecord(ctx context.Context, referenceID string) (*domain.ReferenceRecord, error) {
	rec, err := s.refRepo.Get(ctx, referenceID)
	if err != nil {
		return nil, storeError(fmt.Errorf("get reference: %w", err)).WithContext(referenceID, "")
	}
	return rec, nil
}

// ListEntries returns a page of a wallet's entries and the total count.
func (s *LedgerStoreImpl) ListEntries(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	entries, total, err := s.entryRepo.List(ctx, params)
	if err != nil {
		return nil, 0, storeError(fmt.Errorf("list entries: %w", err)).WithContext("", params.WalletID.String())
	}
	return entries, total, nil
}

// Reconcile compares the stored balance against the sum of committed deltas.
func (s *LedgerStoreImpl) Reconcile(ctx context.Context, walletID uuid.UUID) (*domain.Reconciliation, error) {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	sum, count, err := s.entryRepo.SumCommitted(ctx, walletID)
	if err != nil {
		return nil, storeError(fmt.Errorf("sum entries: %w", err)).WithContext("", walletID.String())
	}

	rec := &domain.Reconciliation{
		WalletID:      walletID,
		StoredBalance: w.Balance,
		LedgerBalance: sum,
		EntryCount:    count,
		Consistent:    w.Balance == sum,
		CheckedAt:     s.now(),
	}
	if !rec.Consistent {
		s.log.Error().
			Str("wallet_id", walletID.String()).
			Int64("stored_balance", w.Balance).
			Int64("ledger_balance", sum).
			Msg("wallet balance does not match ledger")
	}
	return rec, nil
}

// withRetry runs fn inside a serializable transaction, retrying version
// conflicts and serialization failures up to maxRetries attempts.
func (s *LedgerStoreImpl) withRetry(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	backoff := s.backoff
	for attempt := 1; ; attempt++ {
		err := s.inTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isConflict(err) || attempt >= s.maxRetries {
			return err
		}

		s.metrics.ObserveLedgerRetry(op)
		s.log.Debug().Err(err).Str("operation", op).Int("attempt", attempt).Msg("ledger conflict, retrying")

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}
	}
}

func (s *LedgerStoreImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *LedgerStoreImpl) recordReference(ctx context.Context, tx pgx.Tx, referenceID, checksum string) error {
	if referenceID == "" {
		return nil
	}
	return s.refRepo.Create(ctx, tx, &domain.ReferenceRecord{
		ReferenceID: referenceID,
		Checksum:    checksum,
		CreatedAt:   s.now(),
	})
}

// lockedWallet loads a wallet inside tx and checks it can be mutated in currency.
func (s *LedgerStoreImpl) lockedWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID, currency string) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound().WithContext("", id.String())
	}
	if !w.IsActive() {
		return nil, apperror.ErrWalletInactive().WithContext("", id.String())
	}
	if currency != "" && !strings.EqualFold(w.Currency, currency) {
		return nil, apperror.ErrCurrencyMismatch().WithContext("", id.String())
	}
	return w, nil
}

func (s *LedgerStoreImpl) newEntry(walletID uuid.UUID, delta, balanceAfter int64, referenceID string, kind domain.EntryKind) *domain.LedgerEntry {
	e := &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     walletID,
		Delta:        delta,
		BalanceAfter: balanceAfter,
		Kind:         kind,
		Status:       domain.EntryStatusCommitted,
		CreatedAt:    s.now(),
	}
	if referenceID != "" {
		ref := referenceID
		e.ReferenceID = &ref
	}
	return e
}

// fail converts a transaction error into the error returned to callers.
// ErrDuplicateReference passes through untouched so the settlement engine can
// recover the earlier outcome.
func (s *LedgerStoreImpl) fail(err error, referenceID string, walletID uuid.UUID) error {
	if errors.Is(err, ports.ErrDuplicateReference) {
		return err
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.WithContext(referenceID, walletID.String())
	}
	if isConflict(err) {
		s.log.Warn().Err(err).Str("reference_id", referenceID).Msg("ledger retries exhausted")
	}
	return storeError(err).WithContext(referenceID, walletID.String())
}

func isConflict(err error) bool {
	return errors.Is(err, ports.ErrVersionConflict) || errors.Is(err, ports.ErrSerialization)
}

// storeError maps a persistence failure to the AppError reported to clients.
func storeError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.ErrTimeout(err)
	case errors.Is(err, ports.ErrUnavailable), isConflict(err):
		return apperror.ErrStoreUnavailable(err)
	default:
		return apperror.ErrDatabaseError(err)
	}
}

func orderedIDs(a, b uuid.UUID) []uuid.UUID {
	if strings.Compare(a.String(), b.String()) <= 0 {
		return []uuid.UUID{a, b}
	}
	return []uuid.UUID{b, a}
}
