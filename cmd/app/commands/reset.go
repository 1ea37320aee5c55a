package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/keyguard/internal/crypto/usecase"
	"github.com/allisson/keyguard/internal/storage"
)

// RunReset destroys the encrypted store and the wrapped data key. The store is wiped first:
// if deleting the record then fails, the old key still opens the now empty store.
func RunReset(
	ctx context.Context,
	envelopeUseCase cryptoUseCase.EnvelopeUseCase,
	storageDir string,
	confirm bool,
	logger *slog.Logger,
	w io.Writer,
) error {
	if !confirm {
		return fmt.Errorf("%w: pass --confirm to erase all stored data", cryptoDomain.ErrResetNotConfirmed)
	}

	if err := storage.Wipe(storageDir); err != nil {
		return fmt.Errorf("failed to wipe storage engine: %w", err)
	}
	logger.Warn("storage engine wiped", slog.String("dir", storageDir))

	if err := envelopeUseCase.Reset(ctx, true); err != nil {
		return fmt.Errorf("failed to delete wrapped data key: %w", err)
	}

	_, _ = fmt.Fprintln(w, "Store wiped and data key deleted; the next start provisions a new key")
	return nil
}
