package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/allisson/keyguard/internal/config"
)

// RunMigrations creates or upgrades the wrapped_keys table. Only the postgres and mysql
// stores use a database.
func RunMigrations(logger *slog.Logger, store, connectionString string) error {
	var migrationsPath string
	switch store {
	case config.StorePostgres:
		migrationsPath = "file://migrations/postgresql"
	case config.StoreMySQL:
		migrationsPath = "file://migrations/mysql"
	default:
		return fmt.Errorf("wrapped key store %q has no migrations", store)
	}

	logger.Info("running database migrations", slog.String("store", store))

	m, err := migrate.New(migrationsPath, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}
