// Package usecase implements the envelope key manager: the state machine that turns a KEK
// handle and a wrapped-key store into a data key for the storage engine.
package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// WrappedKeyRepository persists the wrapped data key, one record per KEK alias.
//
// Every error returned matches cryptoDomain.ErrStorage.
type WrappedKeyRepository interface {
	// Has reports whether a record exists for alias, readable or not.
	Has(ctx context.Context, alias string) (bool, error)

	// Load returns the record for alias, ErrWrappedKeyNotFound or ErrWrappedKeyCorrupt.
	Load(ctx context.Context, alias string) (*cryptoDomain.WrappedKeyRecord, error)

	// Create persists record only if none exists for record.KeyAlias, returning
	// ErrWrappedKeyExists otherwise. It is safe across processes sharing the backend.
	Create(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error

	// Save atomically replaces the record for record.KeyAlias.
	Save(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error

	// Delete removes the record for alias. Missing records are not an error.
	Delete(ctx context.Context, alias string) error
}

// EnvelopeUseCase supplies the data-encryption key (DEK) that opens the encrypted store.
//
// The first successful ObtainDataKey on an install generates the DEK, wraps it under the
// KEK and persists the wrapped record. Every later call unwraps the same record. A failure
// is always reported as ErrProvisioning, ErrAuthentication or ErrStorage and never
// replaced by a new key.
type EnvelopeUseCase interface {
	// ObtainDataKey returns the plaintext DEK. The caller owns the key and must Destroy it
	// as soon as the storage engine has consumed it.
	ObtainDataKey(ctx context.Context) (*cryptoDomain.DataKey, error)

	// WithDataKey passes the DEK bytes to fn and destroys the key when fn returns.
	WithDataKey(ctx context.Context, fn func(key []byte) error) error

	// Status describes the envelope state without touching key material.
	Status(ctx context.Context) (*cryptoDomain.KeyStatus, error)

	// Reset deletes the wrapped record so the next ObtainDataKey provisions a new DEK.
	// Data encrypted under the old DEK becomes unreadable. Requires confirm.
	Reset(ctx context.Context, confirm bool) error
}
