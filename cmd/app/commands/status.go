package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/keyguard/internal/crypto/usecase"
)

// RunStatus prints the envelope state. It never creates a key.
func RunStatus(ctx context.Context, envelopeUseCase cryptoUseCase.EnvelopeUseCase, w io.Writer, format string) error {
	status, err := envelopeUseCase.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read key status: %w", err)
	}
	return writeStatus(w, format, status)
}

func writeStatus(w io.Writer, format string, status *cryptoDomain.KeyStatus) error {
	return writeOutput(w, format, status, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "Key alias:   %s\n", status.KeyAlias)
		_, _ = fmt.Fprintf(w, "Provider:    %s\n", status.Provider)
		if !status.Provisioned {
			_, _ = fmt.Fprintln(w, "Provisioned: no")
			return
		}
		_, _ = fmt.Fprintln(w, "Provisioned: yes")
		_, _ = fmt.Fprintf(w, "Algorithm:   %s\n", status.Algorithm)
		_, _ = fmt.Fprintf(w, "Version:     %d\n", status.KeyVersion)
		_, _ = fmt.Fprintf(w, "Record ID:   %s\n", status.RecordID)
		_, _ = fmt.Fprintf(w, "Created at:  %s\n", status.CreatedAt.Format(time.RFC3339))
	})
}
