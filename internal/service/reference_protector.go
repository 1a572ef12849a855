package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// protectedPrefix marks gateway references issued by this service.
const protectedPrefix = "dep_"

var hkdfInfo = []byte("digital-wallet/reference-protector/v1")

// ErrUnprotectable is returned for references that were not sealed by this key.
var ErrUnprotectable = errors.New("reference cannot be unprotected")

// AESReferenceProtector implements ports.ReferenceProtector using AES-256-GCM.
// A protected reference seals the wallet id under a fresh nonce, so every
// deposit gets a unique reference that cannot be forged or re-bound to
// another wallet.
type AESReferenceProtector struct {
	aead cipher.AEAD
}

// NewAESReferenceProtector derives a 32-byte key from secret with HKDF-SHA256.
func NewAESReferenceProtector(secret string) (*AESReferenceProtector, error) {
	if secret == "" {
		return nil, errors.New("protector secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &AESReferenceProtector{aead: aead}, nil
}

// Protect returns "dep_" + base64url(nonce || ciphertext) sealing walletID.
func (p *AESReferenceProtector) Protect(walletID uuid.UUID) (string, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := p.aead.Seal(nonce, nonce, walletID[:], []byte(protectedPrefix))
	return protectedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unprotect returns the wallet id sealed in reference.
func (p *AESReferenceProtector) Unprotect(reference string) (uuid.UUID, error) {
	if !p.IsProtected(reference) {
		return uuid.Nil, ErrUnprotectable
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(reference, protectedPrefix))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: decoding: %w", ErrUnprotectable, err)
	}

	nonceSize := p.aead.NonceSize()
	if len(raw) < nonceSize {
		return uuid.Nil, fmt.Errorf("%w: too short", ErrUnprotectable)
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := p.aead.Open(nil, nonce, ciphertext, []byte(protectedPrefix))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrUnprotectable, err)
	}

	walletID, err := uuid.FromBytes(plaintext)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrUnprotectable, err)
	}
	return walletID, nil
}

// IsProtected reports whether reference carries the protected prefix.
func (p *AESReferenceProtector) IsProtected(reference string) bool {
	return strings.HasPrefix(reference, protectedPrefix) && len(reference) > len(protectedPrefix)
}
