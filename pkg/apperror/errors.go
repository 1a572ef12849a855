package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code        string `json:"error_code"`
	Message     string `json:"message"`
	HTTPStatus  int    `json:"-"`
	ReferenceID string `json:"reference_id,omitempty"`
	WalletID    string `json:"wallet_id,omitempty"`
	Err         error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext returns a copy of e annotated with the external reference and wallet
// involved, so callers can decide whether to retry. Empty values keep what is set.
func (e *AppError) WithContext(referenceID, walletID string) *AppError {
	cp := *e
	if referenceID != "" {
		cp.ReferenceID = referenceID
	}
	if walletID != "" {
		cp.WalletID = walletID
	}
	return &cp
}

// Retryable reports whether redelivering the same request may succeed later.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case CodeAlreadyInProgress, CodeTimeout, CodeStoreUnavailable:
		return true
	}
	return false
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the AppError code carried by err, or "" if there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Error codes.
const (
	CodeInvalidSignature   = "SEC_002"
	CodeInsufficientFunds  = "PAY_001"
	CodeInvalidAmount      = "PAY_002"
	CodeUnconfirmed        = "PAY_003"
	CodeWalletNotFound     = "WAL_001"
	CodeWalletInactive     = "WAL_002"
	CodeCurrencyMismatch   = "WAL_003"
	CodeForbidden          = "WAL_004"
	CodeUnclaimedReference = "IDM_001"
	CodeReferenceConflict  = "IDM_002"
	CodeAlreadyInProgress  = "IDM_003"
	CodeInvalidToken       = "AUTH_003"
	CodeRateLimitExceeded  = "RATE_001"
	CodePayloadTooLarge    = "REQ_001"
	CodeInternal           = "SYS_001"
	CodeTimeout            = "SYS_002"
	CodeProtection         = "SYS_003"
	CodeStoreUnavailable   = "SYS_004"
	CodeGatewayUnavailable = "SYS_005"
)

// ---- Security & Authentication (SEC / AUTH) ----

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Ledger Business Logic (PAY / WAL) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrPaymentUnconfirmed() *AppError {
	return New(CodeUnconfirmed, "Payment was not confirmed by the gateway", http.StatusUnprocessableEntity)
}

func ErrWalletNotFound() *AppError {
	return New(CodeWalletNotFound, "Wallet not found", http.StatusNotFound)
}

func ErrWalletInactive() *AppError {
	return New(CodeWalletInactive, "Wallet is inactive", http.StatusConflict)
}

func ErrCurrencyMismatch() *AppError {
	return New(CodeCurrencyMismatch, "Currency does not match wallet currency", http.StatusUnprocessableEntity)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Wallet does not belong to caller", http.StatusForbidden)
}

// ---- Idempotency (IDM) ----

func ErrUnclaimedReference() *AppError {
	return New(CodeUnclaimedReference, "Reference is not claimed by caller", http.StatusConflict)
}

func ErrReferenceConflict() *AppError {
	return New(CodeReferenceConflict, "Reference already settled with a different payload", http.StatusConflict)
}

func ErrAlreadyInProgress() *AppError {
	return New(CodeAlreadyInProgress, "Reference is being settled, retry shortly", http.StatusConflict)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Request (REQ) ----

func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrTimeout(err error) *AppError {
	return Wrap(CodeTimeout, "Operation timed out", http.StatusGatewayTimeout, err)
}

func ErrProtectionFailure(err error) *AppError {
	return Wrap(CodeProtection, "Reference protection failure", http.StatusInternalServerError, err)
}

func ErrStoreUnavailable(err error) *AppError {
	return Wrap(CodeStoreUnavailable, "Backing store unavailable", http.StatusServiceUnavailable, err)
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap(CodeGatewayUnavailable, "Payment gateway unavailable", http.StatusBadGateway, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}
