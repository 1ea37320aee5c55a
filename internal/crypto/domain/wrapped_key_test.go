package domain

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validRecord() *WrappedKeyRecord {
	return NewWrappedKeyRecord(
		DefaultKeyAlias,
		AESGCM,
		bytes.Repeat([]byte{1}, DataKeySize+TagSize),
		bytes.Repeat([]byte{2}, NonceSize),
	)
}

func TestNewWrappedKeyRecord(t *testing.T) {
	record := validRecord()

	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, uuid.Version(7), record.ID.Version())
	assert.Equal(t, uint(1), record.KeyVersion)
	assert.False(t, record.CreatedAt.IsZero())
	assert.NoError(t, record.Validate())
}

func TestWrappedKeyRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *WrappedKeyRecord)
	}{
		{"Error_EmptyAlias", func(r *WrappedKeyRecord) { r.KeyAlias = "" }},
		{"Error_AliasWithSlash", func(r *WrappedKeyRecord) { r.KeyAlias = "../etc" }},
		{"Error_UnknownAlgorithm", func(r *WrappedKeyRecord) { r.Algorithm = "rot13" }},
		{"Error_EmptyCiphertext", func(r *WrappedKeyRecord) { r.EncryptedKey = nil }},
		{"Error_CiphertextShorterThanTag", func(r *WrappedKeyRecord) { r.EncryptedKey = make([]byte, TagSize) }},
		{"Error_ShortNonce", func(r *WrappedKeyRecord) { r.Nonce = make([]byte, 8) }},
		{"Error_LongNonce", func(r *WrappedKeyRecord) { r.Nonce = make([]byte, 24) }},
		{"Error_ZeroVersion", func(r *WrappedKeyRecord) { r.KeyVersion = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validRecord()
			tt.mutate(record)

			err := record.Validate()
			assert.ErrorIs(t, err, ErrInvalidWrappedKey)
			assert.ErrorIs(t, err, ErrStorage)
		})
	}

	t.Run("Success_KMSEnvelope", func(t *testing.T) {
		record := validRecord()
		record.Algorithm = KMSEnvelope
		record.EncryptedKey = make([]byte, 90)
		assert.NoError(t, record.Validate())
	})
}
