package handler

import (
	"digital-wallet/internal/adapter/http/dto"
	"digital-wallet/internal/adapter/http/middleware"
	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives gateway callbacks. Signatures are checked by
// middleware.GatewaySignature before the handler runs.
type WebhookHandler struct {
	gateway ports.GatewayService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(gateway ports.GatewayService) *WebhookHandler {
	return &WebhookHandler{gateway: gateway}
}

// Payment handles POST /api/v1/webhooks/payment.
func (h *WebhookHandler) Payment(c *gin.Context) {
	var payload dto.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}

	outcome, err := h.gateway.HandleCallback(c.Request.Context(), ports.GatewayCallback{
		ExternalReference: payload.ExternalReference,
		AmountMinorUnits:  payload.AmountMinorUnits,
		Currency:          payload.Currency,
		WalletID:          payload.WalletID,
		EventType:         domain.GatewayEventType(payload.EventType),
		PayloadChecksum:   payload.PayloadChecksum,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	respondSettlement(c, outcome)
}
