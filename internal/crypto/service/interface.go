// Package service holds the protected key boundaries of keyguard: the AEAD constructions used
// to wrap data keys and the KeyProvider implementations that keep the key-encryption key
// (KEK) inside a local keystore or an external KMS.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and a fresh nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KeyProvider is a protected boundary holding non-exportable KEKs addressed by alias.
//
// Key bytes never cross this interface: callers only ever see opaque handles.
type KeyProvider interface {
	// Name identifies the provider in handles and status output.
	Name() string

	// EnsureKey returns the handle for alias, creating the key with the default policy
	// when it does not exist. Fails with ErrProvisioning when the boundary is unusable.
	EnsureKey(ctx context.Context, alias string) (*cryptoDomain.KeyHandle, error)

	// Encrypt wraps plaintext under the key referenced by handle using a fresh nonce.
	Encrypt(ctx context.Context, handle *cryptoDomain.KeyHandle, plaintext []byte) (ciphertext, nonce []byte, err error)

	// Decrypt unwraps ciphertext. Fails with ErrAuthentication when verification fails.
	Decrypt(ctx context.Context, handle *cryptoDomain.KeyHandle, ciphertext, nonce []byte) ([]byte, error)

	// Close releases every loaded key.
	Close() error
}
