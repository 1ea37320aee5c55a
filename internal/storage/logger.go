package storage

import (
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger routes badger's printf-style logging to slog. Badger's info output is
// chatty, so it is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: logger.With(slog.String("component", "badger"))}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(message(format, args))
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(message(format, args))
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Debug(message(format, args))
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(message(format, args))
}

func message(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
