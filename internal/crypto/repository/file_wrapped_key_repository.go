// Package repository persists wrapped data-key records.
//
// Three backends share the same contract: a namespaced preference file per alias (the
// default for a single device), and PostgreSQL or MySQL tables for deployments that keep
// their state in a database. Every backend reports failures through the ErrStorage kind.
package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

const (
	recordFileExt  = ".json"
	recordFilePerm = 0o600
	recordDirPerm  = 0o700
)

// wrappedKeyFile is the on-disk preference record. encrypted_key and iv keep the
// standard base64 alphabet without line wrapping.
type wrappedKeyFile struct {
	ID           string `json:"id"`
	KeyAlias     string `json:"key_alias"`
	Algorithm    string `json:"algorithm"`
	EncryptedKey string `json:"encrypted_key"`
	IV           string `json:"iv"`
	KeyVersion   uint   `json:"key_version"`
	CreatedAt    string `json:"created_at"`
}

// FileWrappedKeyRepository stores one record per alias under <dir>/<namespace>.
type FileWrappedKeyRepository struct {
	dir string
	mu  sync.Mutex
}

// NewFileWrappedKeyRepository creates a file repository. The namespace keeps records away
// from unrelated application settings stored in the same directory.
func NewFileWrappedKeyRepository(dir, namespace string) *FileWrappedKeyRepository {
	if namespace == "" {
		namespace = cryptoDomain.DefaultNamespace
	}
	return &FileWrappedKeyRepository{dir: filepath.Join(dir, namespace)}
}

// Has reports whether a record file exists for alias. A present but unreadable or
// truncated file still counts, so a damaged record is never silently replaced.
func (f *FileWrappedKeyRepository) Has(ctx context.Context, alias string) (bool, error) {
	path, err := f.path(alias)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", cryptoDomain.ErrWrappedKeyStoreUnavailable, err)
	}
	return true, nil
}

// Load reads and validates the record for alias.
func (f *FileWrappedKeyRepository) Load(ctx context.Context, alias string) (*cryptoDomain.WrappedKeyRecord, error) {
	path, err := f.path(alias)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is built from a validated alias
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cryptoDomain.ErrWrappedKeyNotFound
		}
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrWrappedKeyStoreUnavailable, err)
	}

	record, err := decodeRecordFile(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrWrappedKeyCorrupt, err)
	}
	return checkLoadedRecord(record, alias)
}

// Save replaces the record atomically: readers see either the previous file or the new
// one, never a partial write.
func (f *FileWrappedKeyRepository) Save(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	return f.write(record, os.Rename)
}

// Create writes the record only if none exists for its alias. The file is published with a
// hard link, which fails when another process got there first, so concurrent installs
// sharing the directory agree on a single record.
func (f *FileWrappedKeyRepository) Create(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	err := f.write(record, os.Link)
	if errors.Is(err, os.ErrExist) {
		return cryptoDomain.ErrWrappedKeyExists
	}
	return err
}

func (f *FileWrappedKeyRepository) write(record *cryptoDomain.WrappedKeyRecord, publish func(oldpath, newpath string) error) error {
	if err := record.Validate(); err != nil {
		return err
	}
	path, err := f.path(record.KeyAlias)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(encodeRecordFile(record), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidWrappedKey, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, recordDirPerm); err != nil {
		return fmt.Errorf("%w: %v", cryptoDomain.ErrWrappedKeyStoreUnavailable, err)
	}
	if err := writeFileAtomic(f.dir, path, data, publish); err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return fmt.Errorf("%w: %v", cryptoDomain.ErrWrappedKeyStoreUnavailable, err)
	}
	return nil
}

// Delete removes the record for alias. Deleting a missing record is not an error.
func (f *FileWrappedKeyRepository) Delete(ctx context.Context, alias string) error {
	path, err := f.path(alias)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", cryptoDomain.ErrWrappedKeyStoreUnavailable, err)
	}
	return nil
}

func (f *FileWrappedKeyRepository) path(alias string) (string, error) {
	if err := cryptoDomain.ValidateKeyAlias(alias); err != nil {
		return "", fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidWrappedKey, err)
	}
	return filepath.Join(f.dir, alias+recordFileExt), nil
}

// writeFileAtomic syncs data to a temporary file in dir and publishes it at path.
func writeFileAtomic(dir, path string, data []byte, publish func(oldpath, newpath string) error) error {
	tmp, err := os.CreateTemp(dir, ".tmp-record-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, recordFilePerm); err != nil {
		return err
	}
	if err := publish(tmpPath, path); err != nil {
		return err
	}

	// Persist the new directory entry; not every platform supports syncing a directory.
	if d, err := os.Open(dir); err == nil { // #nosec G304
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func encodeRecordFile(record *cryptoDomain.WrappedKeyRecord) *wrappedKeyFile {
	return &wrappedKeyFile{
		ID:           record.ID.String(),
		KeyAlias:     record.KeyAlias,
		Algorithm:    string(record.Algorithm),
		EncryptedKey: base64.StdEncoding.EncodeToString(record.EncryptedKey),
		IV:           base64.StdEncoding.EncodeToString(record.Nonce),
		KeyVersion:   record.KeyVersion,
		CreatedAt:    record.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeRecordFile(data []byte) (*cryptoDomain.WrappedKeyRecord, error) {
	var file wrappedKeyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(file.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	encryptedKey, err := base64.StdEncoding.DecodeString(file.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("encrypted_key: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(file.IV)
	if err != nil {
		return nil, fmt.Errorf("iv: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	return &cryptoDomain.WrappedKeyRecord{
		ID:           id,
		KeyAlias:     file.KeyAlias,
		Algorithm:    cryptoDomain.Algorithm(file.Algorithm),
		EncryptedKey: encryptedKey,
		Nonce:        nonce,
		KeyVersion:   file.KeyVersion,
		CreatedAt:    createdAt,
	}, nil
}

// checkLoadedRecord turns structural problems in a persisted record into ErrWrappedKeyCorrupt.
func checkLoadedRecord(record *cryptoDomain.WrappedKeyRecord, alias string) (*cryptoDomain.WrappedKeyRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrWrappedKeyCorrupt, err)
	}
	if record.KeyAlias != alias {
		return nil, fmt.Errorf("%w: record belongs to alias %q", cryptoDomain.ErrWrappedKeyCorrupt, record.KeyAlias)
	}
	return record, nil
}

func storeUnavailable(err error, msg string) error {
	return fmt.Errorf("%w: %s: %v", cryptoDomain.ErrWrappedKeyStoreUnavailable, msg, err)
}
