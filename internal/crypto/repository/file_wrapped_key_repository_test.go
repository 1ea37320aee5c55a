package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

const testAlias = "keyguard_keystore_key"

func newTestRecord(t *testing.T, alias string) *cryptoDomain.WrappedKeyRecord {
	t.Helper()
	encryptedKey := make([]byte, cryptoDomain.DataKeySize+cryptoDomain.TagSize)
	for i := range encryptedKey {
		encryptedKey[i] = byte(i)
	}
	nonce := []byte("0123456789ab")
	return cryptoDomain.NewWrappedKeyRecord(alias, cryptoDomain.AESGCM, encryptedKey, nonce)
}

func TestFileWrappedKeyRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RoundTrip", func(t *testing.T) {
		repo := NewFileWrappedKeyRepository(t.TempDir(), "")
		record := newTestRecord(t, testAlias)

		has, err := repo.Has(ctx, testAlias)
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, repo.Save(ctx, record))

		has, err = repo.Has(ctx, testAlias)
		require.NoError(t, err)
		assert.True(t, has)

		loaded, err := repo.Load(ctx, testAlias)
		require.NoError(t, err)
		assert.Equal(t, record.ID, loaded.ID)
		assert.Equal(t, record.KeyAlias, loaded.KeyAlias)
		assert.Equal(t, record.Algorithm, loaded.Algorithm)
		assert.Equal(t, record.EncryptedKey, loaded.EncryptedKey)
		assert.Equal(t, record.Nonce, loaded.Nonce)
		assert.Equal(t, record.KeyVersion, loaded.KeyVersion)
		assert.True(t, record.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("Success_PreferenceLayout", func(t *testing.T) {
		dir := t.TempDir()
		repo := NewFileWrappedKeyRepository(dir, "")
		record := newTestRecord(t, testAlias)
		require.NoError(t, repo.Save(ctx, record))

		nsDir := filepath.Join(dir, cryptoDomain.DefaultNamespace)
		path := filepath.Join(nsDir, testAlias+".json")

		dirInfo, err := os.Stat(nsDir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

		fileInfo, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), fileInfo.Mode().Perm())

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(data, &fields))
		assert.Equal(t, base64.StdEncoding.EncodeToString(record.EncryptedKey), fields["encrypted_key"])
		assert.Equal(t, base64.StdEncoding.EncodeToString(record.Nonce), fields["iv"])
		assert.Equal(t, "aes-gcm", fields["algorithm"])

		entries, err := os.ReadDir(nsDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temporary files left behind")
	})

	t.Run("Success_SaveReplaces", func(t *testing.T) {
		repo := NewFileWrappedKeyRepository(t.TempDir(), "custom_prefs")
		first := newTestRecord(t, testAlias)
		second := newTestRecord(t, testAlias)
		second.KeyVersion = 2

		require.NoError(t, repo.Save(ctx, first))
		require.NoError(t, repo.Save(ctx, second))

		loaded, err := repo.Load(ctx, testAlias)
		require.NoError(t, err)
		assert.Equal(t, second.ID, loaded.ID)
		assert.Equal(t, uint(2), loaded.KeyVersion)
	})

	t.Run("Error_InvalidRecord", func(t *testing.T) {
		repo := NewFileWrappedKeyRepository(t.TempDir(), "")
		record := newTestRecord(t, testAlias)
		record.Nonce = []byte("short")

		err := repo.Save(ctx, record)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidWrappedKey)
		assert.ErrorIs(t, err, cryptoDomain.ErrStorage)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		repo := NewFileWrappedKeyRepository(t.TempDir(), "")

		record, err := repo.Load(ctx, testAlias)
		assert.ErrorIs(t, err, cryptoDomain.ErrWrappedKeyNotFound)
		assert.ErrorIs(t, err, cryptoDomain.ErrStorage)
		assert.Nil(t, record)
	})

	t.Run("Error_InvalidAlias", func(t *testing.T) {
		repo := NewFileWrappedKeyRepository(t.TempDir(), "")

		_, err := repo.Has(ctx, "../outside")
		assert.ErrorIs(t, err, cryptoDomain.ErrStorage)
		assert.NotErrorIs(t, err, cryptoDomain.ErrProvisioning)
	})
}

func TestFileWrappedKeyRepository_Corruption(t *testing.T) {
	ctx := context.Background()

	writeRaw := func(t *testing.T, dir string, data []byte) {
		t.Helper()
		nsDir := filepath.Join(dir, cryptoDomain.DefaultNamespace)
		require.NoError(t, os.MkdirAll(nsDir, 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(nsDir, testAlias+".json"), data, 0o600))
	}

	valid := func(t *testing.T) []byte {
		t.Helper()
		data, err := json.Marshal(encodeRecordFile(newTestRecord(t, testAlias)))
		require.NoError(t, err)
		return data
	}

	mutate := func(t *testing.T, field string, value any) []byte {
		t.Helper()
		var fields map[string]any
		require.NoError(t, json.Unmarshal(valid(t), &fields))
		fields[field] = value
		data, err := json.Marshal(fields)
		require.NoError(t, err)
		return data
	}

	testCases := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{name: "Error_EmptyFile", data: func(t *testing.T) []byte { return []byte{} }},
		{name: "Error_Truncated", data: func(t *testing.T) []byte { d := valid(t); return d[:len(d)/2] }},
		{name: "Error_BadBase64", data: func(t *testing.T) []byte { return mutate(t, "encrypted_key", "!!!") }},
		{name: "Error_ShortIV", data: func(t *testing.T) []byte { return mutate(t, "iv", "AAAA") }},
		{name: "Error_BadID", data: func(t *testing.T) []byte { return mutate(t, "id", "not-a-uuid") }},
		{name: "Error_UnknownAlgorithm", data: func(t *testing.T) []byte { return mutate(t, "algorithm", "rot13") }},
		{name: "Error_ZeroVersion", data: func(t *testing.T) []byte { return mutate(t, "key_version", 0) }},
		{name: "Error_ForeignAlias", data: func(t *testing.T) []byte { return mutate(t, "key_alias", "other_key") }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeRaw(t, dir, tc.data(t))
			repo := NewFileWrappedKeyRepository(dir, "")

			has, err := repo.Has(ctx, testAlias)
			require.NoError(t, err)
			assert.True(t, has, "a damaged record still counts as present")

			record, err := repo.Load(ctx, testAlias)
			assert.ErrorIs(t, err, cryptoDomain.ErrWrappedKeyCorrupt)
			assert.ErrorIs(t, err, cryptoDomain.ErrStorage)
			assert.Nil(t, record)
		})
	}
}

func TestFileWrappedKeyRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewFileWrappedKeyRepository(t.TempDir(), "")

	t.Run("Success_MissingRecord", func(t *testing.T) {
		assert.NoError(t, repo.Delete(ctx, testAlias))
	})

	t.Run("Success_RemovesRecord", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, newTestRecord(t, testAlias)))
		require.NoError(t, repo.Delete(ctx, testAlias))

		has, err := repo.Has(ctx, testAlias)
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestFileWrappedKeyRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_CreatesMissingRecord", func(t *testing.T) {
		dir := t.TempDir()
		repo := NewFileWrappedKeyRepository(dir, "")
		record := newTestRecord(t, testAlias)

		require.NoError(t, repo.Create(ctx, record))

		loaded, err := repo.Load(ctx, testAlias)
		require.NoError(t, err)
		assert.Equal(t, record.ID, loaded.ID)

		entries, err := os.ReadDir(filepath.Join(dir, cryptoDomain.DefaultNamespace))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temporary files left behind")
	})

	t.Run("Error_ExistingRecordKept", func(t *testing.T) {
		repo := NewFileWrappedKeyRepository(t.TempDir(), "")
		first := newTestRecord(t, testAlias)
		second := newTestRecord(t, testAlias)

		require.NoError(t, repo.Create(ctx, first))
		err := repo.Create(ctx, second)
		assert.ErrorIs(t, err, cryptoDomain.ErrWrappedKeyExists)
		assert.ErrorIs(t, err, cryptoDomain.ErrStorage)

		loaded, err := repo.Load(ctx, testAlias)
		require.NoError(t, err)
		assert.Equal(t, first.ID, loaded.ID)
	})

	t.Run("Success_OneWinnerAcrossInstances", func(t *testing.T) {
		dir := t.TempDir()
		repos := []*FileWrappedKeyRepository{
			NewFileWrappedKeyRepository(dir, ""),
			NewFileWrappedKeyRepository(dir, ""),
		}

		var created, existed atomic.Int32
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			repo := repos[i%len(repos)]
			g.Go(func() error {
				err := repo.Create(ctx, newTestRecord(t, testAlias))
				switch {
				case err == nil:
					created.Add(1)
				case errors.Is(err, cryptoDomain.ErrWrappedKeyExists):
					existed.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int32(1), created.Load())
		assert.Equal(t, int32(7), existed.Load())
	})

	t.Run("Error_InvalidRecord", func(t *testing.T) {
		repo := NewFileWrappedKeyRepository(t.TempDir(), "")
		record := newTestRecord(t, testAlias)
		record.KeyVersion = 0

		err := repo.Create(ctx, record)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidWrappedKey)
	})
}
