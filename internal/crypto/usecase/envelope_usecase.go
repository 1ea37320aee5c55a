package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	cryptoService "github.com/allisson/keyguard/internal/crypto/service"
)

// envelopeUseCase holds no key material between calls. The mutex serializes the
// Uninitialized -> Provisioned transition and Reset within a process; the repository's
// create-if-absent write settles races between processes. Unwrapping an existing record
// runs without the lock.
type envelopeUseCase struct {
	provider cryptoService.KeyProvider
	repo     WrappedKeyRepository
	alias    string
	logger   *slog.Logger

	mu sync.Mutex
}

// NewEnvelopeUseCase creates the envelope key manager for the KEK stored under alias.
func NewEnvelopeUseCase(
	provider cryptoService.KeyProvider,
	repo WrappedKeyRepository,
	alias string,
	logger *slog.Logger,
) EnvelopeUseCase {
	if alias == "" {
		alias = cryptoDomain.DefaultKeyAlias
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &envelopeUseCase{
		provider: provider,
		repo:     repo,
		alias:    alias,
		logger:   logger,
	}
}

// ObtainDataKey implements EnvelopeUseCase.
func (e *envelopeUseCase) ObtainDataKey(ctx context.Context) (*cryptoDomain.DataKey, error) {
	handle, err := e.provider.EnsureKey(ctx, e.alias)
	if err != nil {
		return nil, err
	}

	has, err := e.repo.Has(ctx, e.alias)
	if err != nil {
		return nil, err
	}
	if has {
		return e.unwrap(ctx, handle)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another caller may have provisioned while we waited for the lock.
	has, err = e.repo.Has(ctx, e.alias)
	if err != nil {
		return nil, err
	}
	if has {
		return e.unwrap(ctx, handle)
	}

	return e.provision(ctx, handle)
}

// WithDataKey implements EnvelopeUseCase.
func (e *envelopeUseCase) WithDataKey(ctx context.Context, fn func(key []byte) error) error {
	dataKey, err := e.ObtainDataKey(ctx)
	if err != nil {
		return err
	}
	defer dataKey.Destroy()

	return fn(dataKey.Bytes())
}

// Status implements EnvelopeUseCase. It never creates a KEK.
func (e *envelopeUseCase) Status(ctx context.Context) (*cryptoDomain.KeyStatus, error) {
	status := &cryptoDomain.KeyStatus{
		KeyAlias: e.alias,
		Provider: e.provider.Name(),
	}

	has, err := e.repo.Has(ctx, e.alias)
	if err != nil {
		return nil, err
	}
	if !has {
		return status, nil
	}

	record, err := e.repo.Load(ctx, e.alias)
	if err != nil {
		return nil, err
	}

	status.Provisioned = true
	status.Algorithm = record.Algorithm
	status.KeyVersion = record.KeyVersion
	status.RecordID = record.ID.String()
	status.CreatedAt = record.CreatedAt
	return status, nil
}

// Reset implements EnvelopeUseCase.
func (e *envelopeUseCase) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return cryptoDomain.ErrResetNotConfirmed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.repo.Delete(ctx, e.alias); err != nil {
		return err
	}

	e.logger.Warn("wrapped data key deleted", slog.String("alias", e.alias))
	return nil
}

func (e *envelopeUseCase) provision(ctx context.Context, handle *cryptoDomain.KeyHandle) (*cryptoDomain.DataKey, error) {
	if !handle.Created() {
		e.logger.Warn("key exists without a wrapped data key, provisioning a new one",
			slog.String("alias", e.alias),
			slog.String("provider", handle.Provider()),
		)
	}

	dataKey := cryptoDomain.GenerateDataKey()

	ciphertext, nonce, err := e.provider.Encrypt(ctx, handle, dataKey.Bytes())
	if err != nil {
		dataKey.Destroy()
		return nil, err
	}

	record := cryptoDomain.NewWrappedKeyRecord(e.alias, handle.Algorithm(), ciphertext, nonce)
	if err := e.repo.Create(ctx, record); err != nil {
		dataKey.Destroy()
		// Another process sharing the store provisioned first; its key wins.
		if errors.Is(err, cryptoDomain.ErrWrappedKeyExists) {
			e.logger.Debug("wrapped data key created concurrently, unwrapping it",
				slog.String("alias", e.alias),
			)
			return e.unwrap(ctx, handle)
		}
		return nil, err
	}

	e.logger.Info("data key provisioned",
		slog.String("alias", e.alias),
		slog.String("algorithm", string(record.Algorithm)),
		slog.Uint64("key_version", uint64(record.KeyVersion)),
	)
	return dataKey, nil
}

func (e *envelopeUseCase) unwrap(ctx context.Context, handle *cryptoDomain.KeyHandle) (*cryptoDomain.DataKey, error) {
	record, err := e.repo.Load(ctx, e.alias)
	if err != nil {
		return nil, err
	}

	// A record wrapped under a different construction cannot come from this KEK.
	if record.Algorithm != handle.Algorithm() {
		return nil, fmt.Errorf("%w: record algorithm %s does not match key algorithm %s",
			cryptoDomain.ErrDecryptionFailed, record.Algorithm, handle.Algorithm())
	}

	plaintext, err := e.provider.Decrypt(ctx, handle, record.EncryptedKey, record.Nonce)
	if err != nil {
		return nil, err
	}

	dataKey, err := cryptoDomain.NewDataKey(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrapped key has %d bytes", cryptoDomain.ErrWrappedKeyCorrupt, len(plaintext))
	}

	e.logger.Debug("data key unwrapped",
		slog.String("alias", e.alias),
		slog.String("algorithm", string(record.Algorithm)),
		slog.Uint64("key_version", uint64(record.KeyVersion)),
	)
	return dataKey, nil
}
