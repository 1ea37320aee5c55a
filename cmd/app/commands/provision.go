package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoUseCase "github.com/allisson/keyguard/internal/crypto/usecase"
)

// RunProvision makes sure the data key exists, creating the KEK and the wrapped record on
// a fresh install, and prints the resulting status. Running it again is a no-op.
func RunProvision(
	ctx context.Context,
	envelopeUseCase cryptoUseCase.EnvelopeUseCase,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	dataKey, err := envelopeUseCase.ObtainDataKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to provision data key: %w", err)
	}
	dataKey.Destroy()

	status, err := envelopeUseCase.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read key status: %w", err)
	}

	logger.Info("data key ready",
		slog.String("alias", status.KeyAlias),
		slog.String("provider", status.Provider),
	)
	return writeStatus(w, format, status)
}
