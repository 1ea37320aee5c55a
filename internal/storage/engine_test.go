package storage

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/keyguard/internal/errors"
)

func testKey(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, EngineKeySize)
}

func openTestEngine(t *testing.T, dir string, key []byte) *Engine {
	t.Helper()
	engine, err := Open(Config{Dir: dir, IndexCacheMB: 8}, key, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return engine
}

func TestOpen(t *testing.T) {
	t.Run("Success_PersistsAcrossReopen", func(t *testing.T) {
		dir := t.TempDir()
		engine := openTestEngine(t, dir, testKey(1))
		require.NoError(t, engine.Set([]byte("greeting"), []byte("hello")))
		require.NoError(t, engine.Close())

		engine = openTestEngine(t, dir, testKey(1))
		defer func() { assert.NoError(t, engine.Close()) }()

		value, err := engine.Get([]byte("greeting"))
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), value)
	})

	t.Run("Success_CallerMayDestroyKey", func(t *testing.T) {
		dir := t.TempDir()
		key := testKey(2)
		engine := openTestEngine(t, dir, key)
		for i := range key {
			key[i] = 0
		}
		assert.True(t, engine.key.IsAlive())
		assert.Equal(t, testKey(2), engine.key.Bytes())
		require.NoError(t, engine.Set([]byte("k"), []byte("v")))
		require.NoError(t, engine.Close())

		engine = openTestEngine(t, dir, testKey(2))
		assert.NoError(t, engine.Verify())
		require.NoError(t, engine.Close())
	})

	t.Run("Error_KeyMismatch", func(t *testing.T) {
		dir := t.TempDir()
		engine := openTestEngine(t, dir, testKey(3))
		require.NoError(t, engine.Set([]byte("k"), []byte("v")))
		require.NoError(t, engine.Close())

		engine, err := Open(Config{Dir: dir}, testKey(4), nil)
		assert.Nil(t, engine)
		assert.ErrorIs(t, err, ErrEngineKeyMismatch)
		assert.ErrorIs(t, err, apperrors.ErrIntegrity)
	})

	t.Run("Error_InvalidKeySize", func(t *testing.T) {
		engine, err := Open(Config{Dir: t.TempDir()}, []byte("short"), nil)
		assert.Nil(t, engine)
		assert.ErrorIs(t, err, ErrInvalidEngineKey)
	})

	t.Run("Error_EmptyDir", func(t *testing.T) {
		_, err := Open(Config{}, testKey(5), nil)
		assert.ErrorIs(t, err, ErrEngineUnavailable)
	})
}

func TestEngine(t *testing.T) {
	engine := openTestEngine(t, t.TempDir(), testKey(6))

	t.Run("Success_Verify", func(t *testing.T) {
		assert.NoError(t, engine.Verify())
	})

	t.Run("Error_GetMissing", func(t *testing.T) {
		_, err := engine.Get([]byte("missing"))
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Success_Delete", func(t *testing.T) {
		require.NoError(t, engine.Set([]byte("doomed"), []byte("x")))
		require.NoError(t, engine.Delete([]byte("doomed")))
		_, err := engine.Get([]byte("doomed"))
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.NoError(t, engine.Delete([]byte("never-there")))
	})

	t.Run("Success_CloseWipesKey", func(t *testing.T) {
		require.NoError(t, engine.Close())
		assert.False(t, engine.key.IsAlive())

		err := engine.Set([]byte("k"), []byte("v"))
		assert.ErrorIs(t, err, ErrEngineClosed)
	})
}

func TestWipe(t *testing.T) {
	t.Run("Success_RemovesDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "store")
		engine := openTestEngine(t, dir, testKey(7))
		require.NoError(t, engine.Close())

		require.NoError(t, Wipe(dir))
		_, err := os.Stat(dir)
		assert.ErrorIs(t, err, os.ErrNotExist)

		engine = openTestEngine(t, dir, testKey(8))
		assert.NoError(t, engine.Close(), "a wiped directory accepts a new key")
	})

	t.Run("Success_MissingDirectory", func(t *testing.T) {
		assert.NoError(t, Wipe(filepath.Join(t.TempDir(), "absent")))
	})

	t.Run("Error_RefusesRoot", func(t *testing.T) {
		assert.ErrorIs(t, Wipe("/"), ErrEngineUnavailable)
		assert.ErrorIs(t, Wipe(""), ErrEngineUnavailable)
	})
}

func TestBadgerLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBadgerLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Warningf("value log %d rotated\n", 3)
	logger.Infof("replaying %s", "memtable")

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="value log 3 rotated"`)
	assert.Contains(t, out, "component=badger")
	assert.Contains(t, out, "level=DEBUG")
}
