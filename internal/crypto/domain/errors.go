package domain

import (
	"errors"

	apperrors "github.com/allisson/keyguard/internal/errors"
)

// Failure taxonomy. Every error returned by the key management core matches exactly one
// of these three kinds with errors.Is. None of them is ever recovered by silently
// generating a new data key.
var (
	// ErrProvisioning means the protected boundary is unusable: no keystore, a locked
	// credential store, or a backend failure. Fatal to the current attempt, not retried.
	ErrProvisioning = errors.New("key provisioning failed")

	// ErrAuthentication means a wrapped key failed integrity verification: tampering,
	// corruption, or a KEK that was replaced or invalidated.
	ErrAuthentication = errors.New("key authentication failed")

	// ErrStorage means the wrapped-key record is missing or corrupt at the persistence layer.
	ErrStorage = errors.New("wrapped key storage failed")
)

// Provisioning details.
var (
	ErrKeystoreUnavailable   = apperrors.Tag("keystore unavailable", ErrProvisioning, apperrors.ErrUnavailable)
	ErrKeystoreLocked        = apperrors.Tag("keystore locked", ErrProvisioning, apperrors.ErrForbidden)
	ErrInvalidKeyAlias       = apperrors.Tag("invalid key alias", ErrProvisioning, apperrors.ErrInvalidInput)
	ErrUnknownKeyHandle      = apperrors.Tag("unknown key handle", ErrProvisioning, apperrors.ErrNotFound)
	ErrOperationNotPermitted = apperrors.Tag("operation not permitted by key policy", ErrProvisioning, apperrors.ErrForbidden)
	ErrUnsupportedAlgorithm  = apperrors.Tag("unsupported algorithm", ErrProvisioning, apperrors.ErrInvalidInput)
	ErrInvalidCredential     = apperrors.Tag("invalid keystore credential", ErrProvisioning, apperrors.ErrForbidden)
)

// Authentication details.
var (
	// ErrDecryptionFailed hides the precise cause (wrong key, nonce, or modified
	// ciphertext) so unwrap failures leak nothing useful.
	ErrDecryptionFailed = apperrors.Tag("decryption failed", ErrAuthentication, apperrors.ErrIntegrity)
	ErrNonceMismatch    = apperrors.Tag("nonce mismatch", ErrAuthentication, apperrors.ErrIntegrity)
)

// Storage details.
var (
	ErrWrappedKeyNotFound = apperrors.Tag("wrapped key not found", ErrStorage, apperrors.ErrNotFound)
	ErrWrappedKeyCorrupt  = apperrors.Tag("wrapped key corrupt", ErrStorage, apperrors.ErrIntegrity)
	ErrInvalidWrappedKey  = apperrors.Tag("invalid wrapped key", ErrStorage, apperrors.ErrInvalidInput)
	ErrWrappedKeyExists   = apperrors.Tag("wrapped key already exists", ErrStorage, apperrors.ErrConflict)

	ErrWrappedKeyStoreUnavailable = apperrors.Tag("wrapped key store unavailable", ErrStorage, apperrors.ErrUnavailable)
)

// Key material and lifecycle errors.
var (
	// ErrInvalidKeySize reports key bytes of the wrong length.
	ErrInvalidKeySize = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid key size")

	// ErrResetNotConfirmed is returned when a destructive reset lacks explicit consent.
	ErrResetNotConfirmed = apperrors.Wrap(apperrors.ErrForbidden, "reset requires explicit confirmation")
)

// Kind returns the failure kind of err: ErrProvisioning, ErrAuthentication, ErrStorage, or
// nil when err does not belong to the taxonomy.
func Kind(err error) error {
	switch {
	case errors.Is(err, ErrProvisioning):
		return ErrProvisioning
	case errors.Is(err, ErrAuthentication):
		return ErrAuthentication
	case errors.Is(err, ErrStorage):
		return ErrStorage
	default:
		return nil
	}
}
