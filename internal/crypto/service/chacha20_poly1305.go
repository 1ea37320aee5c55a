package service

import (
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// ChaCha20Poly1305Cipher implements AEAD using ChaCha20-Poly1305 (RFC 8439).
//
// It is the alternative KEK construction for hosts without AES hardware acceleration.
// Nonce and tag sizes match AES-GCM, so wrapped-key records keep the same layout.
type ChaCha20Poly1305Cipher struct {
	aead cipher.AEAD
}

// NewChaCha20Poly1305 creates a new ChaCha20-Poly1305 cipher. The key must be exactly 32 bytes.
func NewChaCha20Poly1305(key []byte) (*ChaCha20Poly1305Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	return &ChaCha20Poly1305Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *ChaCha20Poly1305Cipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	return seal(c.aead, plaintext, aad)
}

// Decrypt opens ciphertext, reporting every failure as ErrDecryptionFailed.
func (c *ChaCha20Poly1305Cipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	return open(c.aead, ciphertext, nonce, aad)
}
