package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/allisson/go-pwdhash"
	"github.com/awnumar/memguard"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// LocalProviderName identifies handles issued by LocalKeystore.
const LocalProviderName = "local"

const (
	keyFileExt  = ".key"
	keyFilePerm = 0o600
	keyDirPerm  = 0o700
)

// Key file layout: magic | purposes (1 byte) | algorithm length (1 byte) | algorithm | key.
var keyFileMagic = []byte("KGK1")

// LocalKeystoreOption configures a LocalKeystore.
type LocalKeystoreOption func(*LocalKeystore) error

// WithKeyAlgorithm sets the AEAD construction for keys created by the keystore.
func WithKeyAlgorithm(alg cryptoDomain.Algorithm) LocalKeystoreOption {
	return func(l *LocalKeystore) error {
		if !IsLocalAlgorithm(alg) {
			return cryptoDomain.ErrUnsupportedAlgorithm
		}
		l.policy.Algorithm = alg
		return nil
	}
}

// WithCredentialHash locks the keystore behind a credential. The hash is produced by
// go-pwdhash, for example with the hash-credential command.
func WithCredentialHash(hash string) LocalKeystoreOption {
	return func(l *LocalKeystore) error {
		if hash == "" {
			return nil
		}
		hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
		if err != nil {
			return fmt.Errorf("failed to create credential hasher: %w", err)
		}
		l.hasher = hasher
		l.credentialHash = hash
		l.locked = true
		return nil
	}
}

// WithKeystoreLogger sets the logger used for key lifecycle events.
func WithKeystoreLogger(logger *slog.Logger) LocalKeystoreOption {
	return func(l *LocalKeystore) error {
		l.logger = logger
		return nil
	}
}

// LocalKeystore is a device-local software keystore.
//
// Each KEK lives in its own 0600 file inside a 0700 directory and is created inside the
// process, never imported. Loaded keys are kept encrypted in memguard enclaves and only
// decrypted into guarded memory for the duration of a single wrap or unwrap. The raw key
// is never returned to callers.
type LocalKeystore struct {
	dir            string
	policy         cryptoDomain.KeyPolicy
	aeadManager    AEADManager
	hasher         *pwdhash.PasswordHasher
	credentialHash string
	logger         *slog.Logger

	mu     sync.RWMutex
	locked bool
	keys   map[string]*localKey
}

type localKey struct {
	enclave *memguard.Enclave
	policy  cryptoDomain.KeyPolicy
}

// NewLocalKeystore creates a keystore rooted at dir. The directory is created lazily by the
// first EnsureKey call so that an unusable location surfaces as a provisioning failure.
func NewLocalKeystore(
	dir string,
	aeadManager AEADManager,
	opts ...LocalKeystoreOption,
) (*LocalKeystore, error) {
	l := &LocalKeystore{
		dir:         dir,
		policy:      cryptoDomain.DefaultKeyPolicy(),
		aeadManager: aeadManager,
		logger:      slog.Default(),
		keys:        make(map[string]*localKey),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Name implements KeyProvider.
func (l *LocalKeystore) Name() string {
	return LocalProviderName
}

// Unlock verifies credential against the configured hash. It is a no-op for keystores
// without a credential.
func (l *LocalKeystore) Unlock(credential []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.credentialHash == "" {
		l.locked = false
		return nil
	}

	ok, err := l.hasher.Verify(credential, l.credentialHash)
	if err != nil || !ok {
		return cryptoDomain.ErrInvalidCredential
	}
	l.locked = false
	return nil
}

// Lock drops every loaded key and, when a credential is configured, requires Unlock again.
func (l *LocalKeystore) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.locked = l.credentialHash != ""
	clear(l.keys)
}

// IsLocked reports whether the keystore requires Unlock before use.
func (l *LocalKeystore) IsLocked() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locked
}

// Close implements KeyProvider. It drops every loaded enclave; their ciphertext stays sealed
// under the memguard session key until collected.
func (l *LocalKeystore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.keys)
	return nil
}

// EnsureKey implements KeyProvider.
func (l *LocalKeystore) EnsureKey(ctx context.Context, alias string) (*cryptoDomain.KeyHandle, error) {
	if err := cryptoDomain.ValidateKeyAlias(alias); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return nil, cryptoDomain.ErrKeystoreLocked
	}

	if key, ok := l.keys[alias]; ok {
		return cryptoDomain.NewKeyHandle(alias, LocalProviderName, key.policy, false), nil
	}

	if err := os.MkdirAll(l.dir, keyDirPerm); err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}

	path := l.keyPath(alias)
	key, err := readKeyFile(path)
	if err == nil {
		l.keys[alias] = key
		return cryptoDomain.NewKeyHandle(alias, LocalProviderName, key.policy, false), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key, created, err := l.createKey(path)
	if err != nil {
		return nil, err
	}
	l.keys[alias] = key

	if created {
		l.logger.Info("created key in local keystore",
			slog.String("alias", alias),
			slog.String("algorithm", string(key.policy.Algorithm)),
		)
	}
	return cryptoDomain.NewKeyHandle(alias, LocalProviderName, key.policy, created), nil
}

// Encrypt implements KeyProvider. The alias is bound to the ciphertext as AAD so a record
// cannot be replayed under another key alias.
func (l *LocalKeystore) Encrypt(
	ctx context.Context,
	handle *cryptoDomain.KeyHandle,
	plaintext []byte,
) (ciphertext, nonce []byte, err error) {
	err = l.withCipher(handle, cryptoDomain.PurposeEncrypt, func(aead AEAD) error {
		ciphertext, nonce, err = aead.Encrypt(plaintext, []byte(handle.Alias()))
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, nonce, nil
}

// Decrypt implements KeyProvider.
func (l *LocalKeystore) Decrypt(
	ctx context.Context,
	handle *cryptoDomain.KeyHandle,
	ciphertext, nonce []byte,
) ([]byte, error) {
	var plaintext []byte
	err := l.withCipher(handle, cryptoDomain.PurposeDecrypt, func(aead AEAD) error {
		var err error
		plaintext, err = aead.Decrypt(ciphertext, nonce, []byte(handle.Alias()))
		return err
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (l *LocalKeystore) withCipher(
	handle *cryptoDomain.KeyHandle,
	purpose cryptoDomain.KeyPurpose,
	fn func(AEAD) error,
) error {
	if handle == nil || handle.Provider() != LocalProviderName {
		return cryptoDomain.ErrUnknownKeyHandle
	}

	l.mu.RLock()
	locked := l.locked
	key, ok := l.keys[handle.Alias()]
	l.mu.RUnlock()

	if locked {
		return cryptoDomain.ErrKeystoreLocked
	}
	if !ok {
		return cryptoDomain.ErrUnknownKeyHandle
	}
	if !handle.Permits(purpose) || !key.policy.Purposes.Has(purpose) {
		return cryptoDomain.ErrOperationNotPermitted
	}

	buf, err := key.enclave.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}
	defer buf.Destroy()

	aead, err := l.aeadManager.CreateCipher(buf.Bytes(), key.policy.Algorithm)
	if err != nil {
		return err
	}
	return fn(aead)
}

func (l *LocalKeystore) keyPath(alias string) string {
	return filepath.Join(l.dir, alias+keyFileExt)
}

// createKey generates a key and publishes it with a hard link, which fails when another
// process created the same alias first. In that case the winner's key is loaded instead.
func (l *LocalKeystore) createKey(path string) (*localKey, bool, error) {
	buf := memguard.NewBufferRandom(cryptoDomain.KeySize)
	defer buf.Destroy()

	data := encodeKeyFile(l.policy, buf.Bytes())
	defer cryptoDomain.Zero(data)

	tmp, err := os.CreateTemp(l.dir, ".tmp-key-*")
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := writeAndSync(tmp, data); err != nil {
		return nil, false, fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			key, err := readKeyFile(path)
			return key, false, err
		}
		return nil, false, fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}

	return &localKey{enclave: buf.Seal(), policy: l.policy}, true, nil
}

func writeAndSync(f *os.File, data []byte) error {
	if err := f.Chmod(keyFilePerm); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeKeyFile(policy cryptoDomain.KeyPolicy, key []byte) []byte {
	alg := []byte(policy.Algorithm)
	data := make([]byte, 0, len(keyFileMagic)+2+len(alg)+len(key))
	data = append(data, keyFileMagic...)
	data = append(data, byte(policy.Purposes), byte(len(alg)))
	data = append(data, alg...)
	return append(data, key...)
}

func readKeyFile(path string) (*localKey, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from a validated alias
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrKeystoreUnavailable, err)
	}
	defer cryptoDomain.Zero(data)

	policy, key, err := decodeKeyFile(data)
	if err != nil {
		return nil, err
	}

	// NewEnclave wipes its input, which aliases data.
	return &localKey{enclave: memguard.NewEnclave(key), policy: policy}, nil
}

func decodeKeyFile(data []byte) (cryptoDomain.KeyPolicy, []byte, error) {
	var policy cryptoDomain.KeyPolicy
	headerLen := len(keyFileMagic) + 2
	if len(data) < headerLen || !bytes.Equal(data[:len(keyFileMagic)], keyFileMagic) {
		return policy, nil, fmt.Errorf("%w: malformed key file", cryptoDomain.ErrKeystoreUnavailable)
	}

	policy.Purposes = cryptoDomain.KeyPurpose(data[len(keyFileMagic)])
	algLen := int(data[len(keyFileMagic)+1])
	if len(data) != headerLen+algLen+cryptoDomain.KeySize {
		return policy, nil, fmt.Errorf("%w: malformed key file", cryptoDomain.ErrKeystoreUnavailable)
	}
	policy.Algorithm = cryptoDomain.Algorithm(data[headerLen : headerLen+algLen])

	if !IsLocalAlgorithm(policy.Algorithm) {
		return policy, nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	return policy, data[headerLen+algLen:], nil
}

