package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/keyguard/internal/storage"
)

// StoreOpener opens the storage engine with the data key.
type StoreOpener interface {
	OpenStorage(ctx context.Context) (*storage.Engine, error)
}

// RunOpenStore opens the encrypted store, verifies it with a canary round trip and
// closes it again.
func RunOpenStore(ctx context.Context, opener StoreOpener, logger *slog.Logger, w io.Writer) error {
	engine, err := opener.OpenStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open storage engine: %w", err)
	}

	verifyErr := engine.Verify()
	closeErr := engine.Close()
	if verifyErr != nil {
		return fmt.Errorf("failed to verify storage engine: %w", verifyErr)
	}
	if closeErr != nil {
		return closeErr
	}

	logger.Info("storage engine verified")
	_, _ = fmt.Fprintln(w, "Storage engine opened and verified")
	return nil
}
