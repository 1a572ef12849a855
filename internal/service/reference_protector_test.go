package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProtectorSecret = "protector-master-key"

func TestAESReferenceProtector_EmptySecret(t *testing.T) {
	_, err := NewAESReferenceProtector("")
	assert.Error(t, err)
}

func TestAESReferenceProtector_RoundTrip(t *testing.T) {
	p, err := NewAESReferenceProtector(testProtectorSecret)
	require.NoError(t, err)

	walletID := uuid.New()
	ref, err := p.Protect(walletID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "dep_"))
	assert.True(t, p.IsProtected(ref))

	got, err := p.Unprotect(ref)
	require.NoError(t, err)
	assert.Equal(t, walletID, got)
}

func TestAESReferenceProtector_UniquePerCall(t *testing.T) {
	p, err := NewAESReferenceProtector(testProtectorSecret)
	require.NoError(t, err)

	walletID := uuid.New()
	r1, err := p.Protect(walletID)
	require.NoError(t, err)
	r2, err := p.Protect(walletID)
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2, "each deposit needs its own reference")
}

func TestAESReferenceProtector_Rejects(t *testing.T) {
	p, err := NewAESReferenceProtector(testProtectorSecret)
	require.NoError(t, err)
	other, err := NewAESReferenceProtector("another-key")
	require.NoError(t, err)

	ref, err := p.Protect(uuid.New())
	require.NoError(t, err)

	foreign, err := other.Protect(uuid.New())
	require.NoError(t, err)

	mid := len(ref) / 2
	flipped := byte('A')
	if ref[mid] == 'A' {
		flipped = 'Q'
	}

	tests := []struct {
		name string
		ref  string
	}{
		{"plain reference", "tx-123"},
		{"prefix only", "dep_"},
		{"not base64", "dep_***"},
		{"too short", "dep_AAAA"},
		{"tampered", ref[:mid] + string(flipped) + ref[mid+1:]},
		{"other key", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Unprotect(tt.ref)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnprotectable))
		})
	}
}
