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
	"github.com/rs/zerolog"
)

// Outcome labels reported to metrics.
const (
	outcomeCommitted  = "committed"
	outcomeReplayed   = "replayed"
	outcomeConflict   = "conflict"
	outcomeInProgress = "in_progress"
	outcomeRejected   = "rejected"
	outcomeFailed     = "failed"
	outcomeCancelled  = "cancelled"
)

// DefaultClaimTimeout bounds a claim when SettlementOptions leaves it unset.
const DefaultClaimTimeout = 2 * time.Second

// SettlementOptions tunes the settlement engine.
type SettlementOptions struct {
	LeaseDuration time.Duration
	ClaimTimeout  time.Duration
	// VerifyGateway confirms gateway-sourced credits with the gateway API
	// before they reach the ledger.
	VerifyGateway bool
}

// SettlementEngineImpl implements ports.SettlementEngine. Each event moves
// RECEIVED -> CLAIMED -> APPLYING -> COMMITTED, or ends REJECTED (replay or
// conflict) or FAILED -> RELEASED.
type SettlementEngineImpl struct {
	wallets ports.WalletService
	store   ports.LedgerStore
	guard   ports.IdempotencyGuard
	gateway ports.GatewayClient
	metrics ports.SettlementMetrics
	opts    SettlementOptions
	log     zerolog.Logger
	now     func() time.Time
}

// NewSettlementEngine creates a new SettlementEngineImpl. gateway may be nil
// when callbacks are not verified.
func NewSettlementEngine(
	wallets ports.WalletService,
	store ports.LedgerStore,
	guard ports.IdempotencyGuard,
	gateway ports.GatewayClient,
	metrics ports.SettlementMetrics,
	opts SettlementOptions,
	log zerolog.Logger,
) *SettlementEngineImpl {
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = DefaultClaimTimeout
	}
	return &SettlementEngineImpl{
		wallets: wallets,
		store:   store,
		guard:   guard,
		gateway: gateway,
		metrics: metricsOrNop(metrics),
		opts:    opts,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Settle applies event exactly once. A redelivery of a committed reference with
// the same payload returns the recorded outcome with Replayed set.
//
// Once the reference is claimed the work continues on a context detached from
// ctx and bounded by the lease, so a disconnecting caller cannot leave a
// half-settled reference behind.
func (e *SettlementEngineImpl) Settle(ctx context.Context, event *domain.SettlementEvent) (*domain.SettlementOutcome, error) {
	if err := normalizeEvent(event); err != nil {
		return nil, err
	}
	event.Seal()

	start := time.Now()
	log := e.log.With().
		Str("reference_id", event.ReferenceID).
		Str("wallet_id", event.WalletID.String()).
		Str("direction", string(event.Direction)).
		Str("source", string(event.Source)).
		Logger()
	log.Debug().Str("state", string(domain.SettlementStateReceived)).Msg("settlement event received")

	outcome, label, err := e.settle(ctx, event, log)
	e.metrics.ObserveSettlement(string(event.Source), string(event.Direction), label, time.Since(start))

	if ctx.Err() != nil && label != outcomeInProgress && label != outcomeCancelled {
		e.metrics.ObserveCallerAbandoned()
		log.Warn().Str("outcome", label).Msg("caller abandoned settlement before completion")
	}
	return outcome, err
}

func (e *SettlementEngineImpl) settle(ctx context.Context, event *domain.SettlementEvent, log zerolog.Logger) (*domain.SettlementOutcome, string, error) {
	// Nothing has been claimed yet, so a caller that is already gone gets
	// nothing started on its behalf.
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("caller gone before claim")
		return nil, outcomeCancelled, e.fail(apperror.ErrTimeout(fmt.Errorf("claim: %w", err)), event)
	}

	claimCtx, cancelClaim := context.WithTimeout(ctx, e.opts.ClaimTimeout)
	claim, err := e.guard.Claim(claimCtx, event.ReferenceID, event.Checksum, e.opts.LeaseDuration)
	cancelClaim()
	if err != nil {
		e.metrics.ObserveClaim("error")
		switch {
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			log.Warn().Err(err).Msg("caller gone during claim")
			return nil, outcomeCancelled, e.fail(apperror.ErrTimeout(fmt.Errorf("claim: %w", err)), event)
		case errors.Is(err, context.DeadlineExceeded):
			log.Warn().Err(err).Msg("idempotency claim timed out")
			return nil, outcomeFailed, e.fail(apperror.ErrTimeout(fmt.Errorf("claim: %w", err)), event)
		}
		log.Error().Err(err).Msg("idempotency claim failed")
		return nil, outcomeFailed, e.fail(apperror.ErrStoreUnavailable(fmt.Errorf("claim: %w", err)), event)
	}

	switch claim.Status {
	case domain.ClaimStatusAlreadyCommitted:
		e.metrics.ObserveClaim("committed")
		return e.replay(claim.Record, event, log)
	case domain.ClaimStatusAlreadyInProgress:
		e.metrics.ObserveClaim("in_progress")
		log.Info().Msg("reference already in progress")
		return nil, outcomeInProgress, e.fail(apperror.ErrAlreadyInProgress(), event)
	}
	e.metrics.ObserveClaim("claimed")

	lease := claim.Lease
	workCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), lease.ExpiresAt)
	defer cancel()
	log.Debug().Str("state", string(domain.SettlementStateClaimed)).Time("lease_expires_at", lease.ExpiresAt).Msg("reference claimed")

	if err := e.confirm(workCtx, event); err != nil {
		e.release(ctx, lease, log)
		label := outcomeRejected
		if apperror.HasCode(err, apperror.CodeTimeout) || apperror.HasCode(err, apperror.CodeGatewayUnavailable) {
			label = outcomeFailed
		}
		return nil, label, e.fail(err, event)
	}

	log.Debug().Str("state", string(domain.SettlementStateApplying)).Msg("applying to ledger")
	outcome, err := e.apply(workCtx, lease, event)
	if err != nil {
		if errors.Is(err, ports.ErrDuplicateReference) {
			return e.recoverApplied(ctx, workCtx, lease, event, log)
		}
		e.release(ctx, lease, log)
		log.Warn().Err(err).Str("state", string(domain.SettlementStateReleased)).Msg("settlement failed, reference released")
		return nil, failureLabel(err), e.fail(err, event)
	}

	e.commit(workCtx, lease, outcome, log)
	log.Info().
		Str("state", string(domain.SettlementStateCommitted)).
		Int64("amount", event.Amount).
		Int64("balance", outcome.Balance).
		Msg("settlement committed")
	return outcome, outcomeCommitted, nil
}

// replay answers a redelivery of a committed reference.
func (e *SettlementEngineImpl) replay(rec *domain.IdempotencyRecord, event *domain.SettlementEvent, log zerolog.Logger) (*domain.SettlementOutcome, string, error) {
	if rec == nil || rec.Checksum != event.Checksum {
		log.Warn().Msg("reference reused with a different payload")
		return nil, outcomeConflict, e.fail(apperror.ErrReferenceConflict(), event)
	}
	if rec.Outcome == nil {
		return nil, outcomeFailed, e.fail(apperror.InternalError(errors.New("committed reference has no outcome")), event)
	}
	log.Info().Str("state", string(domain.SettlementStateRejected)).Msg("duplicate delivery, returning recorded outcome")
	return rec.Outcome.AsReplay(), outcomeReplayed, nil
}

// confirm checks gateway-sourced credits against the gateway while the claim is held.
func (e *SettlementEngineImpl) confirm(ctx context.Context, event *domain.SettlementEvent) error {
	if !e.opts.VerifyGateway || e.gateway == nil ||
		event.Source != domain.EventSourceGateway || event.Direction != domain.DirectionCredit {
		return nil
	}

	txn, err := e.gateway.VerifyTransaction(ctx, event.ReferenceID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperror.ErrTimeout(fmt.Errorf("verify with gateway: %w", err))
		}
		return apperror.ErrGatewayUnavailable(fmt.Errorf("verify with gateway: %w", err))
	}
	if !txn.Succeeded() || txn.Amount != event.Amount || !strings.EqualFold(txn.Currency, event.Currency) {
		return apperror.ErrPaymentUnconfirmed()
	}
	return nil
}

func (e *SettlementEngineImpl) apply(ctx context.Context, lease *domain.Lease, event *domain.SettlementEvent) (*domain.SettlementOutcome, error) {
	req := ports.MutationRequest{
		WalletID: event.WalletID,
		Amount:   event.Amount,
		Currency: event.Currency,
		Kind:     event.Kind,
	}

	switch event.Direction {
	case domain.DirectionCredit:
		entry, err := e.wallets.Credit(ctx, lease, req)
		if err != nil {
			return nil, err
		}
		return e.outcome(event, []domain.LedgerEntry{*entry}), nil
	case domain.DirectionDebit:
		entry, err := e.wallets.Debit(ctx, lease, req)
		if err != nil {
			return nil, err
		}
		return e.outcome(event, []domain.LedgerEntry{*entry}), nil
	default:
		res, err := e.wallets.Transfer(ctx, lease, ports.TransferRequest{
			FromWalletID: event.WalletID,
			ToWalletID:   event.CounterpartyWalletID,
			Amount:       event.Amount,
			Currency:     event.Currency,
		})
		if err != nil {
			return nil, err
		}
		return e.outcome(event, []domain.LedgerEntry{res.Debit, res.Credit}), nil
	}
}

// recoverApplied handles a reference the ledger already holds: an earlier worker
// applied it but lost its lease before committing to the guard.
func (e *SettlementEngineImpl) recoverApplied(callerCtx, ctx context.Context, lease *domain.Lease, event *domain.SettlementEvent, log zerolog.Logger) (*domain.SettlementOutcome, string, error) {
	rec, err := e.store.ReferenceRecord(ctx, event.ReferenceID)
	if err == nil && rec == nil {
		err = apperror.InternalError(errors.New("duplicate reference without a durable record"))
	}
	if err != nil {
		e.release(callerCtx, lease, log)
		return nil, outcomeFailed, e.fail(err, event)
	}
	if rec.Checksum != event.Checksum {
		e.release(callerCtx, lease, log)
		log.Warn().Msg("reference already in ledger with a different payload")
		return nil, outcomeConflict, e.fail(apperror.ErrReferenceConflict(), event)
	}

	entries, err := e.store.EntriesByReference(ctx, event.ReferenceID)
	if err != nil {
		e.release(callerCtx, lease, log)
		return nil, outcomeFailed, e.fail(err, event)
	}

	outcome := e.outcome(event, entries)
	outcome.CompletedAt = rec.CreatedAt
	e.commit(ctx, lease, outcome, log)
	log.Info().Msg("recovered outcome of a previously applied reference")
	return outcome.AsReplay(), outcomeReplayed, nil
}

// commit records the outcome in the guard. The ledger already holds the
// mutation and the durable reference record, so a failure here only costs a
// later redelivery the recovery path.
func (e *SettlementEngineImpl) commit(ctx context.Context, lease *domain.Lease, outcome *domain.SettlementOutcome, log zerolog.Logger) {
	if err := e.guard.Commit(ctx, lease, outcome); err != nil {
		if errors.Is(err, ports.ErrLeaseLost) {
			log.Warn().Err(err).Msg("lease lost before commit; ledger record stands")
			return
		}
		log.Error().Err(err).Msg("failed to commit idempotency record")
	}
}

// release returns the reference to UNCLAIMED. It runs even if the caller is gone.
func (e *SettlementEngineImpl) release(ctx context.Context, lease *domain.Lease, log zerolog.Logger) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.ClaimTimeout)
	defer cancel()
	if err := e.guard.Release(releaseCtx, lease); err != nil && !errors.Is(err, ports.ErrLeaseLost) {
		log.Error().Err(err).Msg("failed to release reference; lease expiry will free it")
	}
}

func (e *SettlementEngineImpl) outcome(event *domain.SettlementEvent, entries []domain.LedgerEntry) *domain.SettlementOutcome {
	out := &domain.SettlementOutcome{
		ReferenceID: event.ReferenceID,
		State:       domain.SettlementStateCommitted,
		WalletID:    event.WalletID,
		EntryIDs:    make([]uuid.UUID, 0, len(entries)),
		CompletedAt: e.now(),
	}
	for _, entry := range entries {
		out.EntryIDs = append(out.EntryIDs, entry.ID)
		switch entry.WalletID {
		case event.WalletID:
			out.Balance = entry.BalanceAfter
		case event.CounterpartyWalletID:
			counterparty := entry.WalletID
			balance := entry.BalanceAfter
			out.CounterpartyWalletID = &counterparty
			out.CounterpartyBalance = &balance
		}
	}
	return out
}

// fail annotates err with the event's reference and wallet.
func (e *SettlementEngineImpl) fail(err error, event *domain.SettlementEvent) error {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			appErr = apperror.ErrTimeout(err)
		case errors.Is(err, ports.ErrUnavailable):
			appErr = apperror.ErrStoreUnavailable(err)
		default:
			appErr = apperror.InternalError(err)
		}
	}
	return appErr.WithContext(event.ReferenceID, event.WalletID.String())
}

func failureLabel(err error) string {
	switch apperror.CodeOf(err) {
	case apperror.CodeInsufficientFunds, apperror.CodeInvalidAmount, apperror.CodeWalletNotFound,
		apperror.CodeWalletInactive, apperror.CodeCurrencyMismatch, apperror.CodeUnclaimedReference:
		return outcomeRejected
	}
	return outcomeFailed
}

// normalizeEvent validates the event and fills in the default entry kind.
func normalizeEvent(event *domain.SettlementEvent) error {
	if event == nil {
		return apperror.Validation("settlement event is required")
	}
	ref, wallet := event.ReferenceID, event.WalletID.String()
	event.ReferenceID = strings.TrimSpace(event.ReferenceID)
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))

	switch {
	case event.ReferenceID == "":
		return apperror.Validation("reference id is required").WithContext(ref, wallet)
	case event.WalletID == uuid.Nil:
		return apperror.Validation("wallet id is required").WithContext(ref, "")
	case event.Amount <= 0:
		return apperror.ErrInvalidAmount().WithContext(ref, wallet)
	}

	switch event.Direction {
	case domain.DirectionCredit:
		if event.Kind == "" {
			event.Kind = domain.EntryKindDeposit
		}
	case domain.DirectionDebit:
		if event.Kind == "" {
			event.Kind = domain.EntryKindWithdrawal
		}
	case domain.DirectionTransfer:
		if event.CounterpartyWalletID == uuid.Nil || event.CounterpartyWalletID == event.WalletID {
			return apperror.Validation("transfer needs a distinct counterparty wallet").WithContext(ref, wallet)
		}
		event.Kind = domain.EntryKindTransferOut
	default:
		return apperror.Validation(fmt.Sprintf("unknown direction %q", event.Direction)).WithContext(ref, wallet)
	}
	if event.Source == "" {
		event.Source = domain.EventSourceAPI
	}
	return nil
}
