package service

import (
	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// localCiphers holds the constructions a LocalKeystore can compute itself. KMS envelopes are
// sealed by the KMS and have no entry.
var localCiphers = map[cryptoDomain.Algorithm]func(key []byte) (AEAD, error){
	cryptoDomain.AESGCM: func(key []byte) (AEAD, error) {
		return NewAESGCM(key)
	},
	cryptoDomain.ChaCha20: func(key []byte) (AEAD, error) {
		return NewChaCha20Poly1305(key)
	},
}

// IsLocalAlgorithm reports whether alg can protect keys held in a LocalKeystore.
func IsLocalAlgorithm(alg cryptoDomain.Algorithm) bool {
	_, ok := localCiphers[alg]
	return ok
}

// AEADManagerService implements AEADManager for the locally computed constructions.
type AEADManagerService struct{}

// NewAEADManager creates a new AEADManagerService.
func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher binds key to the construction named by alg.
func (am *AEADManagerService) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	newCipher, ok := localCiphers[alg]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	return newCipher(key)
}
