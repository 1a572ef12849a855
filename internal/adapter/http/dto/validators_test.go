package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreateWalletRequest{
		OwnerID:  "  alice  ",
		Currency: " ngn ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "alice", req.OwnerID)
	assert.Equal(t, "ngn", req.Currency)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := DepositRequest{
		Email: "a<script>@example.com",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Email, "&lt;script&gt;")
	assert.NotContains(t, req.Email, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	note := "  <b>hold</b>  "
	req := struct {
		Note *string
	}{Note: &note}
	SanitizeStruct(&req)

	assert.Equal(t, "&lt;b&gt;hold&lt;/b&gt;", *req.Note)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := struct {
		Note *string
	}{}
	SanitizeStruct(&req)
	assert.Nil(t, req.Note)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"tx-001",
		"REF_002",
		"a.b.c",
		"simple123",
		"order:42",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"ref 001",
		"ref<001>",
		"ref;DROP",
		"",
		"ref\n001",
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestBinding_MutationRequest(t *testing.T) {
	tests := []struct {
		name  string
		req   MutationRequest
		valid bool
	}{
		{"valid", MutationRequest{ReferenceID: "tx-1", Amount: 500, Currency: "NGN"}, true},
		{"reference from header", MutationRequest{Amount: 500, Currency: "ngn"}, true},
		{"zero amount", MutationRequest{Amount: 0, Currency: "NGN"}, false},
		{"negative amount", MutationRequest{Amount: -1, Currency: "NGN"}, false},
		{"bad currency", MutationRequest{Amount: 1, Currency: "N1N"}, false},
		{"unsafe reference", MutationRequest{ReferenceID: "tx 1", Amount: 1, Currency: "NGN"}, false},
		{"unknown kind", MutationRequest{Amount: 1, Currency: "NGN", Kind: "BONUS"}, false},
		{"transfer kind", MutationRequest{Amount: 1, Currency: "NGN", Kind: "TRANSFER_IN"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestBinding_TransferRejectsSameWallet(t *testing.T) {
	id := "6f1c7f7e-3f3b-4c55-9d0a-2f4f6c1e8b11"
	req := TransferRequest{FromWalletID: id, ToWalletID: id, Amount: 1, Currency: "NGN"}
	assert.Error(t, binding.Validator.ValidateStruct(&req))

	req.ToWalletID = "0b7d2f0e-9a52-4d8e-8c2f-6d3c0f0b1a22"
	assert.NoError(t, binding.Validator.ValidateStruct(&req))
}

func TestBinding_OverdraftRequiresLimit(t *testing.T) {
	assert.Error(t, binding.Validator.ValidateStruct(&OverdraftRequest{}))

	zero := int64(0)
	assert.NoError(t, binding.Validator.ValidateStruct(&OverdraftRequest{Limit: &zero}))

	negative := int64(-5)
	assert.Error(t, binding.Validator.ValidateStruct(&OverdraftRequest{Limit: &negative}))
}

func TestBinding_WebhookPayload(t *testing.T) {
	valid := WebhookPayload{
		ExternalReference: "dep_abc",
		AmountMinorUnits:  5000,
		Currency:          "NGN",
		EventType:         "deposit",
	}
	assert.NoError(t, binding.Validator.ValidateStruct(&valid))

	bad := valid
	bad.EventType = "refund"
	assert.Error(t, binding.Validator.ValidateStruct(&bad))

	bad = valid
	bad.WalletID = "not-a-uuid"
	assert.Error(t, binding.Validator.ValidateStruct(&bad))
}
