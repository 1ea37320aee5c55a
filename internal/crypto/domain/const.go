// Package domain defines the envelope encryption model for the local encrypted store.
//
// A key-encryption key (KEK) lives inside a protected boundary and is only reachable
// through an opaque KeyHandle. The data-encryption key (DEK) is generated once per
// install, wrapped under the KEK into a WrappedKeyRecord for persistence, and unwrapped
// into a DataKey only for the duration of a storage-engine open.
package domain

// Algorithm represents the AEAD construction used to wrap a data key.
//
// All algorithms provide Authenticated Encryption with Associated Data, so a tampered
// record fails to unwrap instead of yielding altered key bytes.
type Algorithm string

const (
	// AESGCM is AES-256-GCM with a 96-bit nonce and a 128-bit tag. Default KEK algorithm.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305 with a 96-bit nonce and a 128-bit tag. Useful on hosts
	// without AES hardware acceleration.
	ChaCha20 Algorithm = "chacha20-poly1305"

	// KMSEnvelope marks records wrapped by an external KMS keeper. The keeper picks its own
	// cipher; the record nonce is sealed together with the key and verified on unwrap.
	KMSEnvelope Algorithm = "kms-envelope"
)

// KeyPurpose is a bit set of operations a key may be used for.
type KeyPurpose uint8

const (
	// PurposeEncrypt allows wrapping.
	PurposeEncrypt KeyPurpose = 1 << iota
	// PurposeDecrypt allows unwrapping.
	PurposeDecrypt
)

// Has reports whether all bits of other are set in p.
func (p KeyPurpose) Has(other KeyPurpose) bool {
	return p&other == other
}

const (
	// DataKeySize is the DEK length in bytes (256 bits).
	DataKeySize = 32

	// KeySize is the KEK length in bytes (256 bits).
	KeySize = 32

	// NonceSize is the AEAD nonce length in bytes (96 bits).
	NonceSize = 12

	// TagSize is the AEAD authentication tag length in bytes (128 bits).
	TagSize = 16

	// DefaultKeyAlias identifies the KEK inside the protected boundary.
	DefaultKeyAlias = "keyguard_keystore_key"

	// DefaultNamespace namespaces wrapped-key records away from application settings.
	DefaultNamespace = "keyguard_prefs"
)
