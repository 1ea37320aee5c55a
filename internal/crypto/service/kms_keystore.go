package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocloud.dev/gcerrors"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// KMSProviderName identifies handles issued by KMSKeystore.
const KMSProviderName = "kms"

var kmsCanary = []byte("keyguard-canary")

// KMSKeystore keeps the KEK inside an external KMS reached through a gocloud keeper.
//
// The KMS picks its own construction, so a random 96-bit nonce is generated locally and
// sealed together with the plaintext. Decrypt checks the sealed nonce against the stored
// one, which keeps the record nonce authenticated even though the KMS never sees it.
type KMSKeystore struct {
	kmsService KMSService
	keyURI     string
	logger     *slog.Logger

	mu      sync.RWMutex
	keepers map[string]cryptoDomain.KMSKeeper
}

// NewKMSKeystore creates a keystore that opens keyURI for every alias it is asked for.
func NewKMSKeystore(kmsService KMSService, keyURI string, logger *slog.Logger) *KMSKeystore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KMSKeystore{
		kmsService: kmsService,
		keyURI:     keyURI,
		logger:     logger,
		keepers:    make(map[string]cryptoDomain.KMSKeeper),
	}
}

// Name implements KeyProvider.
func (k *KMSKeystore) Name() string {
	return KMSProviderName
}

// EnsureKey opens the keeper for alias and checks it with a wrap round trip. KMS keys are
// created out of band, so the handle never reports Created.
func (k *KMSKeystore) EnsureKey(ctx context.Context, alias string) (*cryptoDomain.KeyHandle, error) {
	if err := cryptoDomain.ValidateKeyAlias(alias); err != nil {
		return nil, err
	}

	policy := cryptoDomain.KeyPolicy{
		Algorithm: cryptoDomain.KMSEnvelope,
		Purposes:  cryptoDomain.PurposeEncrypt | cryptoDomain.PurposeDecrypt,
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.keepers[alias]; ok {
		return cryptoDomain.NewKeyHandle(alias, KMSProviderName, policy, false), nil
	}

	if k.keyURI == "" {
		return nil, fmt.Errorf("%w: no KMS key URI configured", cryptoDomain.ErrKeystoreUnavailable)
	}

	keeper, err := k.kmsService.OpenKeeper(ctx, k.keyURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}

	sealed, err := keeper.Encrypt(ctx, kmsCanary)
	if err == nil {
		_, err = keeper.Decrypt(ctx, sealed)
	}
	if err != nil {
		_ = keeper.Close()
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}

	k.keepers[alias] = keeper
	k.logger.Debug("opened KMS keeper", slog.String("alias", alias))
	return cryptoDomain.NewKeyHandle(alias, KMSProviderName, policy, false), nil
}

// Encrypt implements KeyProvider.
func (k *KMSKeystore) Encrypt(
	ctx context.Context,
	handle *cryptoDomain.KeyHandle,
	plaintext []byte,
) (ciphertext, nonce []byte, err error) {
	keeper, err := k.keeper(handle, cryptoDomain.PurposeEncrypt)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, cryptoDomain.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	envelope := make([]byte, 0, len(nonce)+len(plaintext))
	envelope = append(envelope, nonce...)
	envelope = append(envelope, plaintext...)
	defer cryptoDomain.Zero(envelope)

	ciphertext, err = keeper.Encrypt(ctx, envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}
	return ciphertext, nonce, nil
}

// Decrypt implements KeyProvider. Keeper failures caused by an unreachable or misconfigured
// KMS are provisioning errors; everything else is treated as an authentication failure.
func (k *KMSKeystore) Decrypt(
	ctx context.Context,
	handle *cryptoDomain.KeyHandle,
	ciphertext, nonce []byte,
) ([]byte, error) {
	keeper, err := k.keeper(handle, cryptoDomain.PurposeDecrypt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != cryptoDomain.NonceSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	envelope, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, classifyKeeperError(err)
	}
	defer cryptoDomain.Zero(envelope)

	if len(envelope) < cryptoDomain.NonceSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	if subtle.ConstantTimeCompare(envelope[:cryptoDomain.NonceSize], nonce) != 1 {
		return nil, cryptoDomain.ErrNonceMismatch
	}

	plaintext := make([]byte, len(envelope)-cryptoDomain.NonceSize)
	copy(plaintext, envelope[cryptoDomain.NonceSize:])
	return plaintext, nil
}

// Close implements KeyProvider.
func (k *KMSKeystore) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var errs []error
	for alias, keeper := range k.keepers {
		if err := keeper.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close keeper %s: %w", alias, err))
		}
		delete(k.keepers, alias)
	}
	return errors.Join(errs...)
}

func (k *KMSKeystore) keeper(
	handle *cryptoDomain.KeyHandle,
	purpose cryptoDomain.KeyPurpose,
) (cryptoDomain.KMSKeeper, error) {
	if handle == nil || handle.Provider() != KMSProviderName {
		return nil, cryptoDomain.ErrUnknownKeyHandle
	}
	if !handle.Permits(purpose) {
		return nil, cryptoDomain.ErrOperationNotPermitted
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	keeper, ok := k.keepers[handle.Alias()]
	if !ok {
		return nil, cryptoDomain.ErrUnknownKeyHandle
	}
	return keeper, nil
}

func classifyKeeperError(err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.Canceled,
		gcerrors.DeadlineExceeded,
		gcerrors.ResourceExhausted,
		gcerrors.PermissionDenied,
		gcerrors.NotFound,
		gcerrors.FailedPrecondition,
		gcerrors.Unimplemented,
		gcerrors.Internal:
		return fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	default:
		return cryptoDomain.ErrDecryptionFailed
	}
}
