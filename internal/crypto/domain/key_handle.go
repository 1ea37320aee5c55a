package domain

import "regexp"

var keyAliasPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateKeyAlias checks that alias is usable as a stable identifier in every keystore
// backend, including as a file name.
func ValidateKeyAlias(alias string) error {
	if !keyAliasPattern.MatchString(alias) {
		return ErrInvalidKeyAlias
	}
	return nil
}

// KeyPolicy describes how a KEK may be used once created inside the boundary.
type KeyPolicy struct {
	Algorithm  Algorithm
	Purposes   KeyPurpose
	Exportable bool
}

// DefaultKeyPolicy returns the policy for new KEKs: AES-256-GCM, no padding, encrypt and
// decrypt only, never exportable.
func DefaultKeyPolicy() KeyPolicy {
	return KeyPolicy{
		Algorithm:  AESGCM,
		Purposes:   PurposeEncrypt | PurposeDecrypt,
		Exportable: false,
	}
}

// KeyHandle is an opaque reference to a KEK held inside a protected boundary.
//
// It deliberately holds no key material and exposes no accessor for it: the only way to
// use the key is to pass the handle back to the provider that issued it.
type KeyHandle struct {
	alias    string
	provider string
	policy   KeyPolicy
	created  bool
}

// NewKeyHandle is called by providers to issue handles.
func NewKeyHandle(alias, provider string, policy KeyPolicy, created bool) *KeyHandle {
	return &KeyHandle{
		alias:    alias,
		provider: provider,
		policy:   policy,
		created:  created,
	}
}

// Alias returns the stable identifier of the key inside its boundary.
func (h *KeyHandle) Alias() string { return h.alias }

// Provider returns the name of the provider that issued the handle.
func (h *KeyHandle) Provider() string { return h.provider }

// Algorithm returns the AEAD construction the key is bound to.
func (h *KeyHandle) Algorithm() Algorithm { return h.policy.Algorithm }

// Purposes returns the operations the key allows.
func (h *KeyHandle) Purposes() KeyPurpose { return h.policy.Purposes }

// Created reports whether the EnsureKey call that returned this handle created the key.
func (h *KeyHandle) Created() bool { return h.created }

// Permits reports whether the key policy allows purpose.
func (h *KeyHandle) Permits(purpose KeyPurpose) bool {
	return h.policy.Purposes.Has(purpose)
}

// String never includes key material.
func (h *KeyHandle) String() string {
	return h.provider + ":" + h.alias
}
