package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/allisson/go-pwdhash"
)

// RunHashCredential hashes a keystore credential for KEYSTORE_CREDENTIAL_HASH. When
// credential is empty it is read from the first line of stdio.Reader.
func RunHashCredential(stdio IOTuple, credential string) error {
	if credential == "" {
		line, err := bufio.NewReader(stdio.Reader).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read credential: %w", err)
		}
		credential = strings.TrimRight(line, "\r\n")
	}
	if credential == "" {
		return errors.New("credential must not be empty")
	}

	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return fmt.Errorf("failed to create credential hasher: %w", err)
	}
	hash, err := hasher.Hash([]byte(credential))
	if err != nil {
		return fmt.Errorf("failed to hash credential: %w", err)
	}

	_, _ = fmt.Fprintf(stdio.Writer, "KEYSTORE_CREDENTIAL_HASH='%s'\n", hash)
	return nil
}
