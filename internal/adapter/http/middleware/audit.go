package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Actions are resolved from the matched route template, not the raw path.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      c.GetString(CtxSubject),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	route = strings.TrimSuffix(route, "/")
	switch {
	case route == "/api/v1/wallets" && method == http.MethodPost:
		return domain.AuditActionCreateWallet, "wallet"
	case route == "/api/v1/wallets/:id/credit" && method == http.MethodPost:
		return domain.AuditActionCredit, "ledger_entry"
	case route == "/api/v1/wallets/:id/debit" && method == http.MethodPost:
		return domain.AuditActionDebit, "ledger_entry"
	case route == "/api/v1/wallets/transfer" && method == http.MethodPost:
		return domain.AuditActionTransfer, "ledger_entry"
	case route == "/api/v1/wallets/:id/deactivate" && method == http.MethodPost:
		return domain.AuditActionDeactivate, "wallet"
	case route == "/api/v1/wallets/:id/overdraft" && method == http.MethodPut:
		return domain.AuditActionSetOverdraft, "wallet"
	case route == "/api/v1/wallets/:id/deposits" && method == http.MethodPost:
		return domain.AuditActionInitDeposit, "deposit"
	case route == "/api/v1/webhooks/payment" && method == http.MethodPost:
		return domain.AuditActionGatewayWebhook, "ledger_entry"
	}
	return "", ""
}
