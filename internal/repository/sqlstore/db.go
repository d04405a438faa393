// Package sqlstore persists extraction records in PostgreSQL or SQLite.
package sqlstore

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"docfields/internal/config"
)

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

var sqlitePragmas = []string{
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=10000",
	"PRAGMA journal_mode=WAL",
}

// NewDB opens a connection pool for the configured driver.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := sqlx.Connect(config.DriverPostgres, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpen)
		db.SetMaxIdleConns(cfg.MaxIdle)
		return db, nil
	case config.DriverSQLite:
		db, err := sqlx.Connect(config.DriverSQLite, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		// SQLite serialises writers; one connection also keeps :memory: databases whole.
		db.SetMaxOpenConns(1)
		for _, p := range sqlitePragmas {
			if _, err := db.ExecContext(context.Background(), p); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("setting %q: %w", p, err)
			}
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}
}
