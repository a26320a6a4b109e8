package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "schema_migrations"

// MigrationStatus is the schema version currently recorded in the database.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	// Empty is true when no migration has ever been applied.
	Empty bool `json:"empty"`
}

// Migrator applies the feedback and comparison log schema.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // wraps the pgx pool; closed by Close
	logger  zerolog.Logger
}

// NewMigrator builds a migrator over db reading migration files from migrationsPath.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if err := checkMigrationsPath(migrationsPath); err != nil {
		return nil, err
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger.With().Str("component", "migrator").Logger(),
	}, nil
}

func checkMigrationsPath(path string) error {
	if path == "" {
		return fmt.Errorf("migrations path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("migrations path validation failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("migrations path validation failed: %s is not a directory", path)
	}
	return nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("applying pending migrations")
	if err := ignoreNoChange(m.migrate.Up()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	m.logStatus("schema up to date")
	return nil
}

// Down reverts every applied migration.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("reverting all migrations")
	if err := ignoreNoChange(m.migrate.Down()); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	m.logStatus("migrations reverted")
	return nil
}

// Steps moves n migrations forward (n > 0) or back (n < 0).
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return nil
	}
	err := ignoreNoChange(m.migrate.Steps(n))
	// Stepping past the last file reports a missing file rather than ErrNoChange.
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migration steps: %w", err)
	}
	m.logStatus("migration steps applied")
	return nil
}

// Force records version as applied and clears the dirty flag without running SQL.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version")
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Status reports the recorded schema version.
func (m *Migrator) Status() (MigrationStatus, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{Empty: true}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}

// Close releases the migration source and the database wrapper.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	switch {
	case sourceErr != nil && dbErr != nil:
		return fmt.Errorf("failed to close migrator: source error: %v, database error: %w", sourceErr, dbErr)
	case sourceErr != nil:
		return fmt.Errorf("failed to close source: %w", sourceErr)
	case dbErr != nil:
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

func (m *Migrator) logStatus(msg string) {
	status, err := m.Status()
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	m.logger.Info().
		Uint("version", status.Version).
		Bool("dirty", status.Dirty).
		Bool("empty", status.Empty).
		Msg(msg)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// AutoMigrate runs Up against db when the service is configured to migrate on start.
func AutoMigrate(db *DB, migrationsPath string, logger zerolog.Logger) error {
	m, err := NewMigrator(db, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close migrator")
		}
	}()
	return m.Up()
}
