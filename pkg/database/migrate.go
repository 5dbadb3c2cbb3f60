package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
)

const migrationsTable = "schema_migrations_valuation"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateUp applies every pending embedded migration.
// Returns the resulting schema version.
func (db *DB) MigrateUp(ctx context.Context) (uint, error) {
	m, closeFn, err := db.migrator()
	if err != nil {
		return 0, err
	}
	defer closeFn()

	_, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	if dirty {
		return 0, errors.New("migration is dirty, please fix it before proceeding")
	}

	done := make(chan error, 1)
	go func() { done <- m.Up() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return 0, fmt.Errorf("migration failed: %w", err)
		}
	case <-ctx.Done():
		m.GracefulStop <- true
		return 0, ctx.Err()
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read version after migrate: %w", err)
	}
	return version, nil
}

// MigrationVersion returns the applied schema version and dirty flag
func (db *DB) MigrationVersion() (uint, bool, error) {
	m, closeFn, err := db.migrator()
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) migrator() (*migrate.Migrate, func(), error) {
	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create iofs driver: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	dbDriver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to create pgx driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	if err != nil {
		_ = dbDriver.Close()
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, func() {
		_, _ = m.Close()
		_ = sqlDB.Close()
	}, nil
}
