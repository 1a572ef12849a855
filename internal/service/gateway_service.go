package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Webhook result labels reported to metrics.
const (
	webhookApplied  = "applied"
	webhookReplayed = "replayed"
	webhookRejected = "rejected"
	webhookError    = "error"
)

// gatewayService implements ports.GatewayService: it starts deposits at the
// payment gateway and turns the gateway's callbacks into settlement events.
type gatewayService struct {
	engine      ports.SettlementEngine
	wallets     ports.WalletService
	client      ports.GatewayClient
	protector   ports.ReferenceProtector
	metrics     ports.SettlementMetrics
	callbackURL string
	log         zerolog.Logger
}

// NewGatewayService creates a new gateway service.
func NewGatewayService(
	engine ports.SettlementEngine,
	wallets ports.WalletService,
	client ports.GatewayClient,
	protector ports.ReferenceProtector,
	metrics ports.SettlementMetrics,
	callbackURL string,
	log zerolog.Logger,
) ports.GatewayService {
	return &gatewayService{
		engine:      engine,
		wallets:     wallets,
		client:      client,
		protector:   protector,
		metrics:     metricsOrNop(metrics),
		callbackURL: callbackURL,
		log:         log,
	}
}

// InitializeDeposit issues a protected reference bound to the wallet and opens
// a hosted checkout for it. The wallet is credited when the callback arrives.
func (s *gatewayService) InitializeDeposit(ctx context.Context, req ports.DepositRequest) (*domain.DepositInitialization, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount().WithContext("", req.WalletID.String())
	}

	wallet, err := s.wallets.GetWallet(ctx, req.WalletID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletInactive().WithContext("", wallet.ID.String())
	}
	currency := wallet.Currency
	if req.Currency != "" && !strings.EqualFold(req.Currency, wallet.Currency) {
		return nil, apperror.ErrCurrencyMismatch().WithContext("", wallet.ID.String())
	}

	reference, err := s.protector.Protect(wallet.ID)
	if err != nil {
		return nil, apperror.ErrProtectionFailure(fmt.Errorf("protect reference: %w", err)).WithContext("", wallet.ID.String())
	}

	init, err := s.client.InitializeTransaction(ctx, ports.InitializeTransactionRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    currency,
		Reference:   reference,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		s.log.Error().Err(err).Str("wallet_id", wallet.ID.String()).Msg("gateway deposit initialization failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperror.ErrTimeout(err).WithContext(reference, wallet.ID.String())
		}
		return nil, apperror.ErrGatewayUnavailable(err).WithContext(reference, wallet.ID.String())
	}

	init.WalletID = wallet.ID
	init.Reference = reference
	init.Amount = req.Amount
	init.Currency = currency

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("reference_id", reference).
		Int64("amount", req.Amount).
		Msg("deposit initialized")

	return init, nil
}

// HandleCallback settles a verified gateway callback. References issued by
// InitializeDeposit must unseal to the wallet the callback names.
func (s *gatewayService) HandleCallback(ctx context.Context, cb ports.GatewayCallback) (*domain.SettlementOutcome, error) {
	event, err := s.eventFor(cb)
	if err != nil {
		s.metrics.ObserveWebhook(webhookRejected)
		s.log.Warn().Err(err).Str("reference_id", cb.ExternalReference).Msg("gateway callback rejected")
		return nil, err
	}

	outcome, err := s.engine.Settle(ctx, event)
	switch {
	case err == nil && outcome.Replayed:
		s.metrics.ObserveWebhook(webhookReplayed)
	case err == nil:
		s.metrics.ObserveWebhook(webhookApplied)
	case isClientError(err):
		s.metrics.ObserveWebhook(webhookRejected)
	default:
		s.metrics.ObserveWebhook(webhookError)
	}
	return outcome, err
}

func (s *gatewayService) eventFor(cb ports.GatewayCallback) (*domain.SettlementEvent, error) {
	ref := strings.TrimSpace(cb.ExternalReference)
	if ref == "" {
		return nil, apperror.Validation("externalReference is required")
	}
	if cb.AmountMinorUnits <= 0 {
		return nil, apperror.ErrInvalidAmount().WithContext(ref, cb.WalletID)
	}

	walletID, err := s.walletFor(ref, cb.WalletID)
	if err != nil {
		return nil, err
	}

	event := &domain.SettlementEvent{
		ReferenceID:     ref,
		WalletID:        walletID,
		Amount:          cb.AmountMinorUnits,
		Currency:        strings.ToUpper(cb.Currency),
		Source:          domain.EventSourceGateway,
		PayloadChecksum: cb.PayloadChecksum,
	}
	switch cb.EventType {
	case domain.GatewayEventDeposit:
		event.Direction, event.Kind = domain.DirectionCredit, domain.EntryKindDeposit
	case domain.GatewayEventWithdrawal:
		event.Direction, event.Kind = domain.DirectionDebit, domain.EntryKindWithdrawal
	case domain.GatewayEventReversal:
		event.Direction, event.Kind = domain.DirectionDebit, domain.EntryKindReversal
	default:
		return nil, apperror.Validation(fmt.Sprintf("unsupported eventType %q", cb.EventType)).WithContext(ref, walletID.String())
	}
	return event, nil
}

// walletFor resolves the target wallet, preferring the one sealed in a protected reference.
func (s *gatewayService) walletFor(ref, claimed string) (uuid.UUID, error) {
	var claimedID uuid.UUID
	if claimed != "" {
		id, err := uuid.Parse(claimed)
		if err != nil {
			return uuid.Nil, apperror.Validation("walletId is not a valid id").WithContext(ref, claimed)
		}
		claimedID = id
	}

	if !s.protector.IsProtected(ref) {
		if claimedID == uuid.Nil {
			return uuid.Nil, apperror.Validation("walletId is required").WithContext(ref, "")
		}
		return claimedID, nil
	}

	boundID, err := s.protector.Unprotect(ref)
	if err != nil {
		return uuid.Nil, apperror.ErrInvalidSignature().WithContext(ref, claimed)
	}
	if claimedID != uuid.Nil && claimedID != boundID {
		return uuid.Nil, apperror.ErrForbidden().WithContext(ref, claimed)
	}
	return boundID, nil
}

func isClientError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus < 500 && !appErr.Retryable()
}
