package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/Sternrassler/catalog-ingest/pkg/catalog"
	"github.com/Sternrassler/catalog-ingest/pkg/config"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Migrate creates the catalog schema. Postgres runs the embedded SQL
// migrations; SQLite uses GORM AutoMigrate on the row models.
func (s *Store) Migrate(ctx context.Context) error {
	if s.driver != config.DriverPostgres {
		if err := s.db.WithContext(ctx).AutoMigrate(
			&catalog.Genre{}, &catalog.Movie{}, &catalog.Actor{},
			&catalog.MovieGenre{}, &catalog.MovieActor{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		s.logger.Info().Str("driver", s.driver).Msg("Schema migrated")
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB

	version, dirty, verErr := migrator.Version()
	logMigrated(s.logger, upErr == nil, version, dirty, verErr)
	return nil
}

// logMigrated reports the applied schema version. The version fields are
// omitted when it could not be read.
func logMigrated(logger zerolog.Logger, changed bool, version uint, dirty bool, verErr error) {
	if verErr != nil {
		logger.Warn().Err(verErr).Msg("Failed to read schema version")
		logger.Info().Bool("changed", changed).Msg("Schema migrated")
		return
	}
	logger.Info().
		Uint("version", version).
		Bool("dirty", dirty).
		Bool("changed", changed).
		Msg("Schema migrated")
}
