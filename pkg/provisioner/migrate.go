package provisioner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// applyMigrations runs all up migrations of fsys against the database behind dataSourceName.
// It uses its own connection pool, as closing the migrator also closes the underlying *sql.DB.
func applyMigrations(ctx context.Context, driverName string, dataSourceName string, fsys fs.FS) error {
	sqlDB, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to connect for migrations: %w", err)
	}

	var driver database.Driver
	switch driverName {
	case driverPostgres:
		driver, err = postgres.WithInstance(sqlDB, &postgres.Config{})
	case driverSQLite:
		driver, err = sqlite.WithInstance(sqlDB, &sqlite.Config{})
	default:
		err = fmt.Errorf("no migration driver for %q", driverName)
	}
	if err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(fsys, ".")
	if err != nil {
		driver.Close()
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		source.Close()
		driver.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	// closes source and driver
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
