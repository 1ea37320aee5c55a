package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
)

// WrappedKeyRecord is the persisted form of the data key: the DEK encrypted under the KEK.
//
// A record is created once on first provisioning and read on every later unwrap. It is
// never mutated in place; re-keying replaces it wholesale.
type WrappedKeyRecord struct {
	ID           uuid.UUID // Unique identifier (UUIDv7)
	KeyAlias     string    // Alias of the KEK that wrapped this record
	Algorithm    Algorithm // Wrapping construction
	EncryptedKey []byte    // Ciphertext with the authentication tag appended
	Nonce        []byte    // 96-bit nonce, fresh for every wrap
	KeyVersion   uint      // Key version tag, starts at 1
	CreatedAt    time.Time
}

// Validate checks the structural invariants of the record. It does not authenticate it.
func (r *WrappedKeyRecord) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.KeyAlias, validation.Required, validation.Match(keyAliasPattern)),
		validation.Field(&r.Algorithm, validation.Required, validation.In(AESGCM, ChaCha20, KMSEnvelope)),
		validation.Field(&r.EncryptedKey, validation.Required, validation.Length(TagSize+1, 0)),
		validation.Field(&r.Nonce, validation.Required, validation.Length(NonceSize, NonceSize)),
		validation.Field(&r.KeyVersion, validation.Required, validation.Min(uint(1))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWrappedKey, err)
	}
	return nil
}

// NewWrappedKeyRecord builds the first-version record for a freshly wrapped key.
func NewWrappedKeyRecord(alias string, alg Algorithm, encryptedKey, nonce []byte) *WrappedKeyRecord {
	return &WrappedKeyRecord{
		ID:           uuid.Must(uuid.NewV7()),
		KeyAlias:     alias,
		Algorithm:    alg,
		EncryptedKey: encryptedKey,
		Nonce:        nonce,
		KeyVersion:   1,
		CreatedAt:    time.Now().UTC(),
	}
}

// KeyStatus is a key-material-free summary of the envelope state for operators.
type KeyStatus struct {
	KeyAlias    string    `json:"key_alias"`
	Provider    string    `json:"provider"`
	Provisioned bool      `json:"provisioned"`
	Algorithm   Algorithm `json:"algorithm,omitempty"`
	KeyVersion  uint      `json:"key_version,omitempty"`
	RecordID    string    `json:"record_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}
