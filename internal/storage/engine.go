// Package storage is the encrypted key-value engine opened with the data key.
//
// The engine is badger with at-rest encryption. It receives the raw data key once, at
// Open, keeps its own copy in guarded memory for as long as it is open and destroys that
// copy on Close.
package storage

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/awnumar/memguard"
	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/allisson/keyguard/internal/errors"
)

// EngineKeySize is the only key length accepted by Open (AES-256).
const EngineKeySize = 32

const defaultIndexCacheMB = 64

var canaryKey = []byte("\x00keyguard/canary")

var (
	// ErrEngineKeyMismatch means the directory was encrypted under a different data key.
	ErrEngineKeyMismatch = apperrors.Tag("storage engine key mismatch", apperrors.ErrIntegrity)
	ErrInvalidEngineKey  = apperrors.Tag("invalid storage engine key", apperrors.ErrInvalidInput)
	ErrEngineClosed      = apperrors.Tag("storage engine closed", apperrors.ErrUnavailable)
	ErrEngineUnavailable = apperrors.Tag("storage engine unavailable", apperrors.ErrUnavailable)
	ErrEngineVerify      = apperrors.Tag("storage engine verification failed", apperrors.ErrIntegrity)
	ErrKeyNotFound       = apperrors.Tag("key not found", apperrors.ErrNotFound)
)

// Config locates the engine on disk.
type Config struct {
	Dir          string
	IndexCacheMB int
}

// Engine is an open encrypted store.
type Engine struct {
	db     *badger.DB
	key    *memguard.LockedBuffer
	logger *slog.Logger
}

// Open opens or creates the engine in cfg.Dir encrypted with key. The caller keeps
// ownership of key and may destroy it as soon as Open returns.
func Open(cfg Config, key []byte, logger *slog.Logger) (*Engine, error) {
	if len(key) != EngineKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidEngineKey, len(key))
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrEngineUnavailable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IndexCacheMB <= 0 {
		cfg.IndexCacheMB = defaultIndexCacheMB
	}

	// badger reads the key for as long as the database is open.
	owned := memguard.NewBuffer(EngineKeySize)
	owned.Copy(key)
	owned.Freeze()

	opts := badger.DefaultOptions(cfg.Dir).
		WithEncryptionKey(owned.Bytes()).
		WithIndexCacheSize(int64(cfg.IndexCacheMB) << 20).
		WithLogger(newBadgerLogger(logger))

	db, err := badger.Open(opts)
	if err != nil {
		owned.Destroy()
		if errors.Is(err, badger.ErrEncryptionKeyMismatch) {
			return nil, ErrEngineKeyMismatch
		}
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	logger.Debug("storage engine opened", slog.String("dir", cfg.Dir))
	return &Engine{db: db, key: owned, logger: logger}, nil
}

// Set stores value under key.
func (e *Engine) Set(key, value []byte) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	return e.mapError(err)
}

// Get returns a copy of the value stored under key.
func (e *Engine) Get(key []byte) ([]byte, error) {
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, e.mapError(err)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (e *Engine) Delete(key []byte) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	return e.mapError(err)
}

// Verify writes a random canary and reads it back.
func (e *Engine) Verify() error {
	canary := make([]byte, 16)
	if _, err := rand.Read(canary); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineVerify, err)
	}
	if err := e.Set(canaryKey, canary); err != nil {
		return err
	}
	got, err := e.Get(canaryKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, canary) {
		return ErrEngineVerify
	}
	return nil
}

// Close closes the engine and destroys its copy of the key.
func (e *Engine) Close() error {
	err := e.db.Close()
	e.key.Destroy()
	if err != nil {
		return fmt.Errorf("failed to close storage engine: %w", err)
	}
	return nil
}

func (e *Engine) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrKeyNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return ErrEngineClosed
	default:
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
}

// Wipe removes the engine directory and everything in it.
func Wipe(dir string) error {
	clean := filepath.Clean(dir)
	if dir == "" || clean == string(filepath.Separator) || clean == "." {
		return fmt.Errorf("%w: refusing to wipe %q", ErrEngineUnavailable, dir)
	}
	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return nil
}
