package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"github.com/awnumar/memguard"

	cryptoService "github.com/allisson/keyguard/internal/crypto/service"
)

const localSecretsScheme = "base64key://"

// RunCreateKMSKey checks that keyURI is usable as a KEK by running the provider round-trip check
// against it and prints the matching configuration. Without keyURI a local development
// key (base64key://) is generated; cloud KMS keys are created with the cloud's own tools.
func RunCreateKMSKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	keyAlias string,
	keyURI string,
	logger *slog.Logger,
	w io.Writer,
) error {
	if keyURI == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		keyURI = localSecretsScheme + base64.URLEncoding.EncodeToString(key)
		memguard.WipeBytes(key)
		_, _ = fmt.Fprintln(w, "# Local development key. Use a cloud KMS URI in production.")
	}

	keystore := cryptoService.NewKMSKeystore(kmsService, keyURI, logger)
	defer func() {
		if err := keystore.Close(); err != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", err))
		}
	}()

	if _, err := keystore.EnsureKey(ctx, keyAlias); err != nil {
		return fmt.Errorf("failed to verify KMS key: %w", err)
	}

	_, _ = fmt.Fprintln(w, "KEY_PROVIDER=\"kms\"")
	_, _ = fmt.Fprintf(w, "KMS_KEY_URI=\"%s\"\n", keyURI)
	return nil
}
