package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

func TestAEADManagerService_CreateCipher(t *testing.T) {
	manager := NewAEADManager()
	validKey := newTestKey(t)

	t.Run("Success_AESGCM", func(t *testing.T) {
		cipher, err := manager.CreateCipher(validKey, cryptoDomain.AESGCM)
		require.NoError(t, err)
		assert.IsType(t, &AESGCMCipher{}, cipher)
	})

	t.Run("Success_ChaCha20", func(t *testing.T) {
		cipher, err := manager.CreateCipher(validKey, cryptoDomain.ChaCha20)
		require.NoError(t, err)
		assert.IsType(t, &ChaCha20Poly1305Cipher{}, cipher)
	})

	t.Run("Error_UnsupportedAlgorithm", func(t *testing.T) {
		for _, alg := range []cryptoDomain.Algorithm{"", "AES-GCM", "unsupported", cryptoDomain.KMSEnvelope} {
			_, err := manager.CreateCipher(validKey, alg)
			assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm, "algorithm %q", alg)
			assert.ErrorIs(t, err, cryptoDomain.ErrProvisioning)
		}
	})

	t.Run("Error_InvalidKeySize", func(t *testing.T) {
		for _, key := range [][]byte{nil, {}, make([]byte, 16), make([]byte, 31), make([]byte, 33)} {
			_, err := manager.CreateCipher(key, cryptoDomain.AESGCM)
			assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
		}
	})

	t.Run("Success_CiphersAreIndependent", func(t *testing.T) {
		cipher1, err := manager.CreateCipher(newTestKey(t), cryptoDomain.AESGCM)
		require.NoError(t, err)
		cipher2, err := manager.CreateCipher(newTestKey(t), cryptoDomain.AESGCM)
		require.NoError(t, err)

		ciphertext, nonce, err := cipher1.Encrypt([]byte("data"), nil)
		require.NoError(t, err)

		_, err = cipher2.Decrypt(ciphertext, nonce, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})
}

func TestIsLocalAlgorithm(t *testing.T) {
	assert.True(t, IsLocalAlgorithm(cryptoDomain.AESGCM))
	assert.True(t, IsLocalAlgorithm(cryptoDomain.ChaCha20))
	assert.False(t, IsLocalAlgorithm(cryptoDomain.KMSEnvelope))
	assert.False(t, IsLocalAlgorithm("rot13"))
}
