package database

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

// RunMigrations applies all pending migrations from an embedded filesystem.
// dir is the directory inside fsys holding the *.sql files ("." for the root).
func RunMigrations(databaseURL string, fsys fs.FS, dir string) error {
	m, err := NewMigrate(databaseURL, fsys, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	return up(m)
}

// NewMigrate opens a migrator over the *.sql files in dir inside fsys
func NewMigrate(databaseURL string, fsys fs.FS, dir string) (*migrate.Migrate, error) {
	d, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// NewMigrateFromPath opens a migrator over a migrations directory on disk. It
// also returns the resolved file:// source URL.
func NewMigrateFromPath(databaseURL, migrationsPath string) (*migrate.Migrate, string, error) {
	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path for migrations directory: %w", err)
	}
	sourceURL := fmt.Sprintf("file://%s", absPath)

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return nil, sourceURL, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, sourceURL, nil
}

func up(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Msg("No migrations applied yet")
	} else {
		log.Info().
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Database migration completed")
	}

	return nil
}
