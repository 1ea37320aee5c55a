package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// AESGCMCipher implements AEAD using AES-256-GCM.
//
// Nonces are 12 random bytes per Encrypt call and the 16-byte tag is appended to the
// ciphertext. The instance is stateless and safe for concurrent use.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. AAD is authenticated, not encrypted.
func (a *AESGCMCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	return seal(a.aead, plaintext, aad)
}

// Decrypt opens ciphertext. Any failure, including a malformed nonce, is reported as
// ErrDecryptionFailed and no plaintext is returned.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	return open(a.aead, ciphertext, nonce, aad)
}

func seal(aead cipher.AEAD, plaintext, aad []byte) ([]byte, []byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, aad), nonce, nil
}

func open(aead cipher.AEAD, ciphertext, nonce, aad []byte) ([]byte, error) {
	// cipher.AEAD panics on a nonce of the wrong length.
	if len(nonce) != aead.NonceSize() || len(ciphertext) < aead.Overhead() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
