package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/internal/core/ports/mocks"
	"digital-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc   *WalletServiceImpl
	store *mocks.MockLedgerStore
	guard *mocks.MockIdempotencyGuard
	ctrl  *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		store: mocks.NewMockLedgerStore(ctrl),
		guard: mocks.NewMockIdempotencyGuard(ctrl),
		ctrl:  ctrl,
	}
	d.svc = NewWalletService(d.store, d.guard, zerolog.Nop())
	return d
}

func testLease(ref string) *domain.Lease {
	return &domain.Lease{
		ReferenceID: ref,
		Token:       uuid.NewString(),
		Checksum:    "checksum-" + ref,
		ExpiresAt:   time.Now().Add(time.Minute),
	}
}

func TestWalletService_CreateWallet(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.store.EXPECT().CreateWallet(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, w *domain.Wallet) error {
		assert.Equal(t, "NGN", w.Currency)
		assert.Equal(t, int64(0), w.Balance)
		assert.Equal(t, domain.WalletStatusActive, w.Status)
		return nil
	})

	w, err := d.svc.CreateWallet(ctx, ports.CreateWalletRequest{OwnerID: "user-1", Currency: " ngn "})
	require.NoError(t, err)
	assert.Equal(t, "user-1", w.OwnerID)
	assert.NotEqual(t, uuid.Nil, w.ID)
}

func TestWalletService_CreateWallet_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  ports.CreateWalletRequest
	}{
		{"bad currency", ports.CreateWalletRequest{OwnerID: "u", Currency: "NAIRA"}},
		{"missing owner", ports.CreateWalletRequest{Currency: "NGN"}},
		{"negative overdraft", ports.CreateWalletRequest{OwnerID: "u", Currency: "NGN", OverdraftLimit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupWalletService(t)
			defer d.ctrl.Finish()

			_, err := d.svc.CreateWallet(context.Background(), tt.req)
			assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(err))
		})
	}
}

func TestWalletService_Credit_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	lease := testLease("tx-1")
	walletID := uuid.New()

	d.guard.EXPECT().Holds(ctx, lease).Return(true, nil)
	d.store.EXPECT().ApplyEntry(ctx, ports.EntryRequest{
		WalletID:    walletID,
		Delta:       500,
		Currency:    "NGN",
		ReferenceID: "tx-1",
		Kind:        domain.EntryKindDeposit,
		Checksum:    "checksum-tx-1",
	}).Return(&domain.LedgerEntry{WalletID: walletID, Delta: 500, BalanceAfter: 1500}, nil)

	entry, err := d.svc.Credit(ctx, lease, ports.MutationRequest{WalletID: walletID, Amount: 500, Currency: "NGN"})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), entry.BalanceAfter)
}

func TestWalletService_Debit_NegatesAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	lease := testLease("tx-2")
	walletID := uuid.New()

	d.guard.EXPECT().Holds(ctx, lease).Return(true, nil)
	d.store.EXPECT().ApplyEntry(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, req ports.EntryRequest) (*domain.LedgerEntry, error) {
		assert.Equal(t, int64(-2000), req.Delta)
		assert.Equal(t, domain.EntryKindReversal, req.Kind)
		return nil, apperror.ErrInsufficientFunds()
	})

	_, err := d.svc.Debit(ctx, lease, ports.MutationRequest{WalletID: walletID, Amount: 2000, Kind: domain.EntryKindReversal})
	assert.Equal(t, apperror.CodeInsufficientFunds, apperror.CodeOf(err))
}

func TestWalletService_Mutation_RequiresLease(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	req := ports.MutationRequest{WalletID: walletID, Amount: 100}

	// nil lease
	_, err := d.svc.Credit(ctx, nil, req)
	assert.Equal(t, apperror.CodeUnclaimedReference, apperror.CodeOf(err))

	// expired or stolen lease
	lease := testLease("tx-9")
	d.guard.EXPECT().Holds(ctx, lease).Return(false, nil)
	_, err = d.svc.Debit(ctx, lease, req)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeUnclaimedReference, appErr.Code)
	assert.Equal(t, "tx-9", appErr.ReferenceID)
	assert.Equal(t, walletID.String(), appErr.WalletID)
}

func TestWalletService_Mutation_GuardUnavailable(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	lease := testLease("tx-1")
	d.guard.EXPECT().Holds(ctx, lease).Return(false, errors.New("redis down"))

	_, err := d.svc.Credit(ctx, lease, ports.MutationRequest{WalletID: uuid.New(), Amount: 100})
	assert.Equal(t, apperror.CodeStoreUnavailable, apperror.CodeOf(err))
}

func TestWalletService_Mutation_KindChecks(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	lease := testLease("tx-1")
	req := ports.MutationRequest{WalletID: uuid.New(), Amount: 100, Kind: domain.EntryKindWithdrawal}

	_, err := d.svc.Credit(ctx, lease, req)
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(err))

	req.Kind = domain.EntryKindDeposit
	_, err = d.svc.Debit(ctx, lease, req)
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(err))

	req.Amount = 0
	req.Kind = ""
	_, err = d.svc.Credit(ctx, lease, req)
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.CodeOf(err))
}

func TestWalletService_Transfer_BindsLease(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	lease := testLease("tx-3")
	from, to := uuid.New(), uuid.New()

	d.guard.EXPECT().Holds(ctx, lease).Return(true, nil)
	d.store.EXPECT().ApplyTransfer(ctx, ports.TransferRequest{
		FromWalletID: from,
		ToWalletID:   to,
		Amount:       300,
		ReferenceID:  "tx-3",
		Checksum:     "checksum-tx-3",
	}).Return(&ports.TransferResult{}, nil)

	_, err := d.svc.Transfer(ctx, lease, ports.TransferRequest{FromWalletID: from, ToWalletID: to, Amount: 300, ReferenceID: "ignored"})
	require.NoError(t, err)
}

func TestWalletService_GetBalance(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.store.EXPECT().GetWallet(ctx, id).Return(&domain.Wallet{
		ID: id, Currency: "NGN", Balance: -200, OverdraftLimit: 500, Version: 7,
	}, nil)

	bal, err := d.svc.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(-200), bal.Balance)
	assert.Equal(t, int64(300), bal.Available)
	assert.Equal(t, int64(7), bal.Version)
}

func TestWalletService_ListEntries_ClampsPaging(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.store.EXPECT().GetWallet(ctx, id).Return(&domain.Wallet{ID: id}, nil)
	d.store.EXPECT().ListEntries(ctx, ports.EntryListParams{WalletID: id, Page: 1, PageSize: maxEntryPageSize}).
		Return([]domain.LedgerEntry{}, int64(0), nil)

	_, total, err := d.svc.ListEntries(ctx, ports.EntryListParams{WalletID: id, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestWalletService_Deactivate(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.store.EXPECT().SetStatus(ctx, id, domain.WalletStatusInactive).
		Return(&domain.Wallet{ID: id, Status: domain.WalletStatusInactive}, nil)

	w, err := d.svc.Deactivate(ctx, id)
	require.NoError(t, err)
	assert.False(t, w.IsActive())
}
