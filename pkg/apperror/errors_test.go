package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("PAY_001", "test", http.StatusBadRequest).Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	base := ErrInsufficientFunds()
	annotated := base.WithContext("ref-1", "wallet-1")

	assert.Equal(t, "ref-1", annotated.ReferenceID)
	assert.Equal(t, "wallet-1", annotated.WalletID)
	assert.Empty(t, base.ReferenceID, "original error must not be mutated")

	kept := annotated.WithContext("", "wallet-2")
	assert.Equal(t, "ref-1", kept.ReferenceID)
	assert.Equal(t, "wallet-2", kept.WalletID)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("settle: %w", ErrReferenceConflict())

	assert.Equal(t, CodeReferenceConflict, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, CodeReferenceConflict))
	assert.False(t, HasCode(wrapped, CodeAlreadyInProgress))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestAppError_Retryable(t *testing.T) {
	inner := errors.New("boom")
	tests := []struct {
		name      string
		err       *AppError
		retryable bool
	}{
		{"AlreadyInProgress", ErrAlreadyInProgress(), true},
		{"Timeout", ErrTimeout(inner), true},
		{"StoreUnavailable", ErrStoreUnavailable(inner), true},
		{"ReferenceConflict", ErrReferenceConflict(), false},
		{"InsufficientFunds", ErrInsufficientFunds(), false},
		{"Internal", InternalError(inner), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable())
		})
	}
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientFunds", ErrInsufficientFunds(), "PAY_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"PaymentUnconfirmed", ErrPaymentUnconfirmed(), "PAY_003", 422},
		{"PayloadTooLarge", ErrPayloadTooLarge(), "REQ_001", 413},
		{"WalletNotFound", ErrWalletNotFound(), "WAL_001", 404},
		{"WalletInactive", ErrWalletInactive(), "WAL_002", 409},
		{"CurrencyMismatch", ErrCurrencyMismatch(), "WAL_003", 422},
		{"Forbidden", ErrForbidden(), "WAL_004", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestIdempotencyErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"UnclaimedReference", ErrUnclaimedReference(), "IDM_001", 409},
		{"ReferenceConflict", ErrReferenceConflict(), "IDM_002", 409},
		{"AlreadyInProgress", ErrAlreadyInProgress(), "IDM_003", 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSecurityErrors(t *testing.T) {
	assert.Equal(t, "SEC_002", ErrInvalidSignature().Code)
	assert.Equal(t, 401, ErrInvalidSignature().HTTPStatus)
	assert.Equal(t, "AUTH_003", ErrInvalidToken().Code)
	assert.Equal(t, 401, ErrInvalidToken().HTTPStatus)
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	timeoutErr := ErrTimeout(inner)
	assert.Equal(t, "SYS_002", timeoutErr.Code)
	assert.Equal(t, 504, timeoutErr.HTTPStatus)

	protErr := ErrProtectionFailure(inner)
	assert.Equal(t, "SYS_003", protErr.Code)
	assert.Equal(t, 500, protErr.HTTPStatus)

	storeErr := ErrStoreUnavailable(inner)
	assert.Equal(t, "SYS_004", storeErr.Code)
	assert.Equal(t, 503, storeErr.HTTPStatus)

	gwErr := ErrGatewayUnavailable(inner)
	assert.Equal(t, "SYS_005", gwErr.Code)
	assert.Equal(t, 502, gwErr.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestValidation(t *testing.T) {
	err := Validation("amount must be positive")
	assert.Equal(t, "PAY_002", err.Code)
	assert.Equal(t, "amount must be positive", err.Message)
}
