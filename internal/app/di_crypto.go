package app

import (
	"context"
	"fmt"

	"github.com/allisson/keyguard/internal/config"
	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	cryptoRepository "github.com/allisson/keyguard/internal/crypto/repository"
	cryptoService "github.com/allisson/keyguard/internal/crypto/service"
	cryptoUseCase "github.com/allisson/keyguard/internal/crypto/usecase"
	"github.com/allisson/keyguard/internal/storage"
)

// AEADManager returns the AEAD cipher factory.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KMSService returns the gocloud keeper opener.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// KeyProvider returns the provider holding the KEK, selected by KEY_PROVIDER.
func (c *Container) KeyProvider() (cryptoService.KeyProvider, error) {
	return lazy(c, &c.keyProviderInit, "keyProvider", &c.keyProvider, c.initKeyProvider)
}

// WrappedKeyRepository returns the record store selected by WRAPPED_KEY_STORE.
func (c *Container) WrappedKeyRepository() (cryptoUseCase.WrappedKeyRepository, error) {
	return lazy(c, &c.wrappedKeyRepoInit, "wrappedKeyRepo", &c.wrappedKeyRepo, c.initWrappedKeyRepository)
}

// EnvelopeUseCase returns the envelope key manager, decorated with metrics.
func (c *Container) EnvelopeUseCase() (cryptoUseCase.EnvelopeUseCase, error) {
	return lazy(c, &c.envelopeUseCaseInit, "envelopeUseCase", &c.envelopeUseCase, c.initEnvelopeUseCase)
}

// OpenStorage obtains the data key, opens the storage engine with it and destroys the
// data key before returning. The caller closes the engine.
func (c *Container) OpenStorage(ctx context.Context) (*storage.Engine, error) {
	envelopeUseCase, err := c.EnvelopeUseCase()
	if err != nil {
		return nil, err
	}

	var engine *storage.Engine
	err = envelopeUseCase.WithDataKey(ctx, func(key []byte) error {
		var openErr error
		engine, openErr = storage.Open(storage.Config{
			Dir:          c.config.StorageDir,
			IndexCacheMB: c.config.StorageIndexCacheMB,
		}, key, c.Logger())
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func (c *Container) initKeyProvider() (cryptoService.KeyProvider, error) {
	logger := c.Logger()

	switch c.config.KeyProvider {
	case config.ProviderKMS:
		return cryptoService.NewKMSKeystore(c.KMSService(), c.config.KMSKeyURI, logger), nil

	case config.ProviderLocal:
		keystore, err := cryptoService.NewLocalKeystore(
			c.config.KeystoreDir,
			c.AEADManager(),
			cryptoService.WithKeyAlgorithm(cryptoDomain.Algorithm(c.config.KeystoreAlgorithm)),
			cryptoService.WithCredentialHash(c.config.KeystoreCredentialHash),
			cryptoService.WithKeystoreLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create local keystore: %w", err)
		}
		if c.config.KeystoreCredential != "" {
			if err := keystore.Unlock([]byte(c.config.KeystoreCredential)); err != nil {
				_ = keystore.Close()
				return nil, err
			}
		}
		return keystore, nil

	default:
		return nil, fmt.Errorf("unsupported key provider: %s", c.config.KeyProvider)
	}
}

func (c *Container) initWrappedKeyRepository() (cryptoUseCase.WrappedKeyRepository, error) {
	if c.config.WrappedKeyStore == config.StoreFile {
		return cryptoRepository.NewFileWrappedKeyRepository(c.config.WrappedKeyDir, c.config.WrappedKeyNamespace), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for wrapped key repository: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, err
	}

	switch c.config.WrappedKeyStore {
	case config.StorePostgres:
		return cryptoRepository.NewPostgreSQLWrappedKeyRepository(db, txManager), nil
	case config.StoreMySQL:
		return cryptoRepository.NewMySQLWrappedKeyRepository(db, txManager), nil
	default:
		return nil, fmt.Errorf("unsupported wrapped key store: %s", c.config.WrappedKeyStore)
	}
}

func (c *Container) initEnvelopeUseCase() (cryptoUseCase.EnvelopeUseCase, error) {
	provider, err := c.KeyProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get key provider for envelope use case: %w", err)
	}
	repo, err := c.WrappedKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get wrapped key repository for envelope use case: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	useCase := cryptoUseCase.NewEnvelopeUseCase(provider, repo, c.config.KeyAlias, c.Logger())
	return cryptoUseCase.NewEnvelopeUseCaseWithMetrics(useCase, businessMetrics), nil
}
