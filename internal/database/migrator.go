package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "schema_migrations"

// Migrator handles database migrations.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // sql.DB wrapper around pgx pool, must be closed
	logger  zerolog.Logger
}

// NewMigrator creates a migrator reading migration files from migrationsPath.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if err := checkDB(db); err != nil {
		return nil, err
	}
	if migrationsPath == "" {
		return nil, fmt.Errorf("migrations path is required")
	}
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	sqlDB, driver, err := openDriver(db)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return &Migrator{migrate: m, sqlDB: sqlDB, logger: logger}, nil
}

// NewMigratorFS creates a migrator reading migration files from the root of
// fsys, typically the embedded migrations.FS.
func NewMigratorFS(db *DB, fsys fs.FS, logger zerolog.Logger) (*Migrator, error) {
	if err := checkDB(db); err != nil {
		return nil, err
	}
	if fsys == nil {
		return nil, fmt.Errorf("migrations filesystem is required")
	}

	source, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations filesystem: %w", err)
	}

	sqlDB, driver, err := openDriver(db)
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return &Migrator{migrate: m, sqlDB: sqlDB, logger: logger}, nil
}

func checkDB(db *DB) error {
	if db == nil {
		return fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	return nil
}

func openDriver(db *DB) (*sql.DB, migratedb.Driver, error) {
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	return sqlDB, driver, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	return m.apply("up", m.logger.Info(), m.migrate.Up)
}

// Down rolls the schema back to version zero.
func (m *Migrator) Down() error {
	return m.apply("down", m.logger.Warn(), m.migrate.Down)
}

// Steps moves n versions; negative n rolls back.
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("steps %d", n), m.logger.Info().Int("steps", n), func() error {
		return m.migrate.Steps(n)
	})
}

// apply runs one golang-migrate operation. Having nothing to do is not an
// error, including stepping past the newest file.
func (m *Migrator) apply(op string, start *zerolog.Event, fn func() error) error {
	start.Str("op", op).Msg("migrating")

	err := fn()
	switch {
	case err == nil:
		m.logger.Info().Str("op", op).Msg("migration finished")
		return nil
	case errors.Is(err, migrate.ErrNoChange), errors.Is(err, os.ErrNotExist):
		m.logger.Info().Str("op", op).Msg("schema already current")
		return nil
	default:
		return fmt.Errorf("migrate %s: %w", op, err)
	}
}

// Version returns the current migration version.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force records version as applied without running anything. Used to clear
// a dirty flag left by a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version...")
	return m.migrate.Force(version)
}

// Close releases the migration source and the sql.DB wrapper.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if m.sqlDB != nil {
		dbErr = errors.Join(dbErr, m.sqlDB.Close())
	}
	if sourceErr != nil {
		sourceErr = fmt.Errorf("close source: %w", sourceErr)
	}
	if dbErr != nil {
		dbErr = fmt.Errorf("close database: %w", dbErr)
	}
	return errors.Join(sourceErr, dbErr)
}
