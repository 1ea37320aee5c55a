package domain

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// DataKey holds the plaintext DEK in locked, guard-paged memory.
//
// The key is read-only once created. Every holder must call Destroy as soon as the storage
// engine has consumed it; Destroy wipes the bytes and is safe to call more than once.
type DataKey struct {
	buf *memguard.LockedBuffer
}

// NewDataKey moves key into locked memory and wipes the source slice, including when the
// size is wrong.
func NewDataKey(key []byte) (*DataKey, error) {
	if len(key) != DataKeySize {
		Zero(key)
		return nil, ErrInvalidKeySize
	}
	buf := memguard.NewBufferFromBytes(key)
	buf.Freeze()
	return &DataKey{buf: buf}, nil
}

// GenerateDataKey creates a fresh random DEK directly inside locked memory.
func GenerateDataKey() *DataKey {
	buf := memguard.NewBufferRandom(DataKeySize)
	buf.Freeze()
	return &DataKey{buf: buf}
}

// Bytes returns the key bytes, or nil once destroyed. The slice aliases locked memory:
// do not retain it past Destroy and do not write to it.
func (k *DataKey) Bytes() []byte {
	if k == nil || k.buf == nil {
		return nil
	}
	return k.buf.Bytes()
}

// Size returns the key length in bytes, or 0 once destroyed.
func (k *DataKey) Size() int {
	if k == nil || k.buf == nil {
		return 0
	}
	return k.buf.Size()
}

// IsAlive reports whether the key still holds material.
func (k *DataKey) IsAlive() bool {
	return k != nil && k.buf != nil && k.buf.IsAlive()
}

// Equal compares two keys in constant time.
func (k *DataKey) Equal(other *DataKey) bool {
	if !k.IsAlive() || !other.IsAlive() {
		return false
	}
	return subtle.ConstantTimeCompare(k.Bytes(), other.Bytes()) == 1
}

// Destroy wipes and releases the key.
func (k *DataKey) Destroy() {
	if k == nil || k.buf == nil {
		return
	}
	k.buf.Destroy()
}
