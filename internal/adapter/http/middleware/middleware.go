package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"
	"digital-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for gateway webhook signatures. The Paystack header is
	// accepted as an alias.
	HeaderGatewaySignature  = "X-Gateway-Signature"
	HeaderPaystackSignature = "X-Paystack-Signature"
	HeaderRequestID         = "X-Request-ID"

	// Context keys
	CtxClaims    = "claims"
	CtxSubject   = "subject"
	CtxRawBody   = "raw_body"
	CtxRequestID = "request_id"
)

// GatewaySignature verifies the HMAC-SHA512 signature the gateway computes
// over the raw request body. The body is restored for the handler and also
// stored under CtxRawBody.
func GatewaySignature(sigSvc ports.SignatureService, secret string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(HeaderGatewaySignature)
		if signature == "" {
			signature = c.GetHeader(HeaderPaystackSignature)
		}
		if signature == "" {
			response.Error(c, apperror.ErrInvalidSignature())
			c.Abort()
			return
		}

		if c.Request.Body == nil {
			response.Error(c, apperror.Validation("request body is required"))
			c.Abort()
			return
		}
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, BindError(err))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		if !sigSvc.Verify(secret, bodyBytes, signature) {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("webhook signature rejected")
			response.Error(c, apperror.ErrInvalidSignature())
			c.Abort()
			return
		}

		c.Set(CtxRawBody, bodyBytes)
		c.Next()
	}
}

// JWTAuth validates bearer tokens and stores the claims on the context.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(strings.TrimSpace(authHeader[7:]))
		if err != nil {
			log.Debug().Err(err).Msg("bearer token rejected")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxClaims, claims)
		c.Set(CtxSubject, claims.Subject)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. Must run after JWTAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ClaimsFrom(c).IsAdmin() {
			response.Error(c, apperror.ErrForbidden())
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the token claims set by JWTAuth, or nil.
func ClaimsFrom(c *gin.Context) *ports.TokenClaims {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*ports.TokenClaims)
	return claims
}

// RequestID propagates X-Request-ID, generating one when the caller sent none.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": apperror.CodeInternal,
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
