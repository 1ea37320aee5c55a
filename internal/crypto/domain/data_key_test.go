package domain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataKey(t *testing.T) {
	t.Run("Success_MovesBytesAndWipesSource", func(t *testing.T) {
		src := bytes.Repeat([]byte{0xAB}, DataKeySize)
		expected := bytes.Clone(src)

		key, err := NewDataKey(src)
		require.NoError(t, err)
		defer key.Destroy()

		assert.True(t, key.IsAlive())
		assert.Equal(t, DataKeySize, key.Size())
		assert.Equal(t, expected, key.Bytes())
		assert.Equal(t, make([]byte, DataKeySize), src)
	})

	t.Run("Error_WrongSizeWipesSource", func(t *testing.T) {
		src := bytes.Repeat([]byte{0xCD}, 16)

		key, err := NewDataKey(src)
		assert.ErrorIs(t, err, ErrInvalidKeySize)
		assert.Nil(t, key)
		assert.Equal(t, make([]byte, 16), src)
	})
}

func TestGenerateDataKey(t *testing.T) {
	k1 := GenerateDataKey()
	defer k1.Destroy()
	k2 := GenerateDataKey()
	defer k2.Destroy()

	assert.Equal(t, DataKeySize, k1.Size())
	assert.NotEqual(t, make([]byte, DataKeySize), k1.Bytes())
	assert.False(t, k1.Equal(k2))
	assert.True(t, k1.Equal(k1))
}

func TestDataKey_Destroy(t *testing.T) {
	key := GenerateDataKey()
	key.Destroy()

	assert.False(t, key.IsAlive())
	assert.Nil(t, key.Bytes())
	assert.Equal(t, 0, key.Size())
	assert.NotPanics(t, key.Destroy)

	var nilKey *DataKey
	assert.False(t, nilKey.IsAlive())
	assert.Nil(t, nilKey.Bytes())
	assert.NotPanics(t, nilKey.Destroy)
	assert.False(t, nilKey.Equal(key))
}
