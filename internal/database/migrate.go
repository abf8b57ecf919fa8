package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/aiox-platform/companion/internal/config"
)

// RunMigrations applies the pending up-migrations found in cfg.MigrationsPath.
func RunMigrations(cfg config.DBConfig) error {
	return Migrate(cfg.DSN(), cfg.MigrationsPath)
}

// Migrate applies the pending up-migrations in dir to the database at dsn.
func Migrate(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator for %s: %w", dir, err)
	}
	defer m.Close()

	from, err := version(m)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("database schema up to date", "version", from)
			return nil
		}
		return fmt.Errorf("running migrations: %w", err)
	}

	to, err := version(m)
	if err != nil {
		return err
	}
	slog.Info("database migrations applied", "from", from, "to", to, "source", dir)
	return nil
}

// version reports the applied schema version, 0 for an empty database.
func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty; fix it manually and force the version", v)
	}
	return v, nil
}
