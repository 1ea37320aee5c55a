package domain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	t.Run("Success_WipesKeyBytes", func(t *testing.T) {
		key := bytes.Repeat([]byte{0xAB}, DataKeySize)
		Zero(key)
		assert.Equal(t, make([]byte, DataKeySize), key)
	})

	t.Run("Success_OnlyTouchesGivenRange", func(t *testing.T) {
		buf := []byte{1, 2, 3, 4, 5, 6}
		Zero(buf[2:4])
		assert.Equal(t, []byte{1, 2, 0, 0, 5, 6}, buf)
	})

	t.Run("Success_NilAndEmpty", func(t *testing.T) {
		assert.NotPanics(t, func() { Zero(nil) })
		assert.NotPanics(t, func() { Zero([]byte{}) })
	})
}
