package sqlstore

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"docfields/db"
	"docfields/internal/config"
)

// NewMigrator returns a migrate instance over the embedded migrations for
// the configured driver.
func NewMigrator(cfg *config.DBConfig) (*migrate.Migrate, error) {
	var dir, url string
	switch cfg.Driver {
	case config.DriverPostgres:
		dir, url = "migrations/postgres", cfg.DSN()
	case config.DriverSQLite:
		dir, url = "migrations/sqlite", "sqlite://"+cfg.DSN()
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	src, err := iofs.New(db.Migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies all pending migrations.
func MigrateUp(cfg *config.DBConfig) error {
	m, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}
