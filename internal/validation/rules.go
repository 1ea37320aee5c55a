// Package validation provides custom validation rules for the application.
package validation

import (
	"net/url"
	"strings"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// KeyAlias validates that a string is usable as a key alias in every keystore backend.
var KeyAlias = validation.NewStringRuleWithError(
	func(s string) bool {
		return cryptoDomain.ValidateKeyAlias(s) == nil
	},
	validation.NewError(
		"validation_key_alias",
		"must start with a letter or digit and contain only letters, digits, '.', '_' or '-' (max 128)",
	),
)

// KeyURI validates a gocloud.dev secrets URL such as awskms://, gcpkms://, azurekeyvault://,
// hashivault:// or base64key://.
var KeyURI = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_key_uri_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return validation.NewError("validation_key_uri", "must be a secrets URL with a scheme")
	}
	return nil
})

// CredentialHash validates the PHC string produced by the hash-credential command.
var CredentialHash = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.HasPrefix(s, "$argon2id$")
	},
	validation.NewError("validation_credential_hash", "must be an argon2id hash from hash-credential"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)
