package handler

import (
	"math"
	"strconv"
	"strings"
	"time"

	"digital-wallet/internal/adapter/http/dto"
	"digital-wallet/internal/adapter/http/middleware"
	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey carries the external reference when the body omits it.
const HeaderIdempotencyKey = "Idempotency-Key"

// WalletHandler handles wallet endpoints. Balance changes go through the
// settlement engine so every mutation is claimed before it is applied.
type WalletHandler struct {
	wallets ports.WalletService
	engine  ports.SettlementEngine
	gateway ports.GatewayService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallets ports.WalletService, engine ports.SettlementEngine, gateway ports.GatewayService) *WalletHandler {
	return &WalletHandler{wallets: wallets, engine: engine, gateway: gateway}
}

// Create handles POST /api/v1/wallets. Non-admin callers always own the new
// wallet and cannot grant themselves an overdraft.
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	ownerID := claims.Subject
	if claims.IsAdmin() {
		if req.OwnerID != "" {
			ownerID = req.OwnerID
		}
	} else if (req.OwnerID != "" && req.OwnerID != claims.Subject) || req.OverdraftLimit != 0 {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	wallet, err := h.wallets.CreateWallet(c.Request.Context(), ports.CreateWalletRequest{
		OwnerID:        ownerID,
		Currency:       req.Currency,
		OverdraftLimit: req.OverdraftLimit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// List handles GET /api/v1/wallets, returning the caller's wallets.
func (h *WalletHandler) List(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	ownerID := claims.Subject
	if claims.IsAdmin() && c.Query("owner_id") != "" {
		ownerID = c.Query("owner_id")
	}

	wallets, err := h.wallets.ListWallets(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, toWalletResponse(&wallets[i]))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	wallet, ok := h.authorize(c)
	if !ok {
		return
	}
	response.OK(c, toWalletResponse(wallet))
}

// Credit handles POST /api/v1/wallets/:id/credit.
func (h *WalletHandler) Credit(c *gin.Context) {
	h.mutate(c, domain.DirectionCredit, domain.EntryKindDeposit)
}

// Debit handles POST /api/v1/wallets/:id/debit.
func (h *WalletHandler) Debit(c *gin.Context) {
	h.mutate(c, domain.DirectionDebit, domain.EntryKindWithdrawal)
}

func (h *WalletHandler) mutate(c *gin.Context, direction domain.Direction, defaultKind domain.EntryKind) {
	var req dto.MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}
	referenceID, ok := resolveReference(c, req.ReferenceID)
	if !ok {
		return
	}

	wallet, ok := h.authorize(c)
	if !ok {
		return
	}

	kind := defaultKind
	if req.Kind != "" {
		kind = domain.EntryKind(req.Kind)
	}

	outcome, err := h.engine.Settle(c.Request.Context(), &domain.SettlementEvent{
		ReferenceID: referenceID,
		WalletID:    wallet.ID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Direction:   direction,
		Kind:        kind,
		Source:      domain.EventSourceAPI,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	respondSettlement(c, outcome)
}

// Transfer handles POST /api/v1/wallets/transfer. The caller must own the
// source wallet.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}
	referenceID, ok := resolveReference(c, req.ReferenceID)
	if !ok {
		return
	}

	fromID, err := uuid.Parse(req.FromWalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid from_wallet_id"))
		return
	}
	toID, err := uuid.Parse(req.ToWalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid to_wallet_id"))
		return
	}

	if _, ok := h.authorizeWallet(c, fromID); !ok {
		return
	}

	outcome, err := h.engine.Settle(c.Request.Context(), &domain.SettlementEvent{
		ReferenceID:          referenceID,
		WalletID:             fromID,
		CounterpartyWalletID: toID,
		Amount:               req.Amount,
		Currency:             req.Currency,
		Direction:            domain.DirectionTransfer,
		Kind:                 domain.EntryKindTransferOut,
		Source:               domain.EventSourceAPI,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	respondSettlement(c, outcome)
}

// Balance handles GET /api/v1/wallets/:id/balance.
func (h *WalletHandler) Balance(c *gin.Context) {
	wallet, ok := h.authorize(c)
	if !ok {
		return
	}

	balance, err := h.wallets.GetBalance(c.Request.Context(), wallet.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, balance)
}

// Entries handles GET /api/v1/wallets/:id/entries.
func (h *WalletHandler) Entries(c *gin.Context) {
	wallet, ok := h.authorize(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.EntryListParams{
		WalletID: wallet.ID,
		Page:     page,
		PageSize: pageSize,
	}

	if k := c.Query("kind"); k != "" {
		kind := domain.EntryKind(strings.ToUpper(k))
		if !kind.Valid() {
			response.Error(c, apperror.Validation("unknown entry kind"))
			return
		}
		params.Kind = &kind
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			params.To = &v
		}
	}

	entries, total, err := h.wallets.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toEntryResponse(&entries[i]))
	}

	response.OK(c, dto.EntryListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// Reconcile handles GET /api/v1/wallets/:id/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	wallet, ok := h.authorize(c)
	if !ok {
		return
	}

	result, err := h.wallets.Reconcile(c.Request.Context(), wallet.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Deactivate handles POST /api/v1/wallets/:id/deactivate.
func (h *WalletHandler) Deactivate(c *gin.Context) {
	wallet, ok := h.authorize(c)
	if !ok {
		return
	}

	updated, err := h.wallets.Deactivate(c.Request.Context(), wallet.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toWalletResponse(updated))
}

// SetOverdraft handles PUT /api/v1/wallets/:id/overdraft. Admin only.
func (h *WalletHandler) SetOverdraft(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}

	var req dto.OverdraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}

	updated, err := h.wallets.SetOverdraftLimit(c.Request.Context(), id, *req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toWalletResponse(updated))
}

// InitializeDeposit handles POST /api/v1/wallets/:id/deposits.
func (h *WalletHandler) InitializeDeposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	wallet, ok := h.authorize(c)
	if !ok {
		return
	}

	deposit, err := h.gateway.InitializeDeposit(c.Request.Context(), ports.DepositRequest{
		WalletID: wallet.ID,
		Email:    req.Email,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.DepositResponse{
		WalletID:         deposit.WalletID.String(),
		Reference:        deposit.Reference,
		AuthorizationURL: deposit.AuthorizationURL,
		AccessCode:       deposit.AccessCode,
		Amount:           deposit.Amount,
		Currency:         deposit.Currency,
	})
}

// authorize loads the wallet named by the :id path parameter and checks the
// caller may act on it.
func (h *WalletHandler) authorize(c *gin.Context) (*domain.Wallet, bool) {
	id, ok := walletIDParam(c)
	if !ok {
		return nil, false
	}
	return h.authorizeWallet(c, id)
}

func (h *WalletHandler) authorizeWallet(c *gin.Context, id uuid.UUID) (*domain.Wallet, bool) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return nil, false
	}

	wallet, err := h.wallets.GetWallet(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !claims.IsAdmin() && !wallet.IsOwnedBy(claims.Subject) {
		response.Error(c, apperror.ErrForbidden().WithContext("", id.String()))
		return nil, false
	}
	return wallet, true
}

func walletIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return uuid.Nil, false
	}
	return id, true
}

// resolveReference picks the external reference from the body or the
// Idempotency-Key header. When both are present they must agree.
func resolveReference(c *gin.Context, fromBody string) (string, bool) {
	header := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	switch {
	case fromBody == "" && header == "":
		response.Error(c, apperror.Validation("reference_id or Idempotency-Key header is required"))
		return "", false
	case fromBody != "" && header != "" && fromBody != header:
		response.Error(c, apperror.Validation("reference_id does not match Idempotency-Key header"))
		return "", false
	case fromBody != "":
		return fromBody, true
	}
	if len(header) > 100 || !dto.IsSafeID(header) {
		response.Error(c, apperror.Validation("invalid Idempotency-Key header"))
		return "", false
	}
	return header, true
}

// respondSettlement writes 201 for a fresh settlement and 200 for a replay.
func respondSettlement(c *gin.Context, outcome *domain.SettlementOutcome) {
	resp := toSettlementResponse(outcome)
	if outcome.Replayed {
		c.Header("Idempotent-Replayed", "true")
		response.OK(c, resp)
		return
	}
	response.Created(c, resp)
}

func toSettlementResponse(o *domain.SettlementOutcome) dto.SettlementResponse {
	status := "applied"
	if o.Replayed {
		status = "replayed"
	}
	resp := dto.SettlementResponse{
		ReferenceID:         o.ReferenceID,
		Status:              status,
		State:               string(o.State),
		WalletID:            o.WalletID.String(),
		Balance:             o.Balance,
		CounterpartyBalance: o.CounterpartyBalance,
		EntryIDs:            make([]string, 0, len(o.EntryIDs)),
		CompletedAt:         o.CompletedAt.UTC().Format(time.RFC3339),
	}
	if o.CounterpartyWalletID != nil {
		s := o.CounterpartyWalletID.String()
		resp.CounterpartyWalletID = &s
	}
	for _, id := range o.EntryIDs {
		resp.EntryIDs = append(resp.EntryIDs, id.String())
	}
	return resp
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:             w.ID.String(),
		OwnerID:        w.OwnerID,
		Currency:       w.Currency,
		Balance:        w.Balance,
		OverdraftLimit: w.OverdraftLimit,
		Status:         string(w.Status),
		Version:        w.Version,
		CreatedAt:      w.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toEntryResponse(e *domain.LedgerEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:           e.ID.String(),
		WalletID:     e.WalletID.String(),
		ReferenceID:  e.ReferenceID,
		Kind:         string(e.Kind),
		Delta:        e.Delta,
		BalanceAfter: e.BalanceAfter,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
