// Package store materializes catalog rows into the relational store.
//
// Every write is an idempotent set-oriented upsert keyed by the TMDB natural
// key. Each call runs in its own transaction; nothing spans calls, so a crashed
// run leaves committed batches behind and a re-run converges on the same rows.
package store

import (
	"context"
	"fmt"

	"github.com/Sternrassler/catalog-ingest/pkg/catalog"
	"github.com/Sternrassler/catalog-ingest/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store writes catalog rows through GORM.
type Store struct {
	db     *gorm.DB
	driver string
	logger zerolog.Logger
}

// Open connects to the configured database and applies pool settings.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	logger := log.With().Str("component", "store").Logger()

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logger, DefaultGormLoggerConfig()),
		// glebarez/sqlite has no error translator
		TranslateError: cfg.Driver == config.DriverPostgres,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// one writer; also keeps shared in-memory databases alive
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	logger.Info().Str("driver", cfg.Driver).Msg("Database connected")

	return New(db, cfg.Driver), nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB, driver string) *Store {
	return &Store{
		db:     db,
		driver: driver,
		logger: log.With().Str("component", "store").Logger(),
	}
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertGenres inserts genres or corrects their names.
func (s *Store) UpsertGenres(ctx context.Context, rows []catalog.Genre) error {
	return s.logged(catalog.TableGenres, len(rows), UpsertEntities(ctx, s.db, GenreSpec, rows))
}

// UpsertMovies inserts movies or refreshes their listing attributes.
func (s *Store) UpsertMovies(ctx context.Context, rows []catalog.Movie) error {
	return s.logged(catalog.TableMovies, len(rows), UpsertEntities(ctx, s.db, MovieSpec, rows))
}

// UpsertActors inserts actors or refreshes their attributes.
func (s *Store) UpsertActors(ctx context.Context, rows []catalog.Actor) error {
	return s.logged(catalog.TableActors, len(rows), UpsertEntities(ctx, s.db, ActorSpec, rows))
}

// UpsertMovieGenres links movies to genres; existing links are left as is.
func (s *Store) UpsertMovieGenres(ctx context.Context, rows []catalog.MovieGenre) error {
	return s.logged(catalog.TableMovieGenre, len(rows), UpsertLinks(ctx, s.db, MovieGenreSpec, rows, ConflictIgnore))
}

// UpsertMovieActors links movies to their billed cast, updating order and character.
func (s *Store) UpsertMovieActors(ctx context.Context, rows []catalog.MovieActor) error {
	return s.logged(catalog.TableMovieActor, len(rows), UpsertLinks(ctx, s.db, MovieActorSpec, rows, ConflictUpdate))
}

func (s *Store) logged(table string, n int, err error) error {
	if err != nil {
		s.logger.Error().Err(err).Str("table", table).Int("count", n).Msg("Upsert failed")
		return err
	}
	if n > 0 {
		s.logger.Debug().Str("table", table).Int("count", n).Msg("Upserted rows")
	}
	return nil
}

// Counts returns the row count of every catalog table.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 5)
	for _, table := range []string{
		catalog.TableGenres, catalog.TableMovies, catalog.TableActors,
		catalog.TableMovieGenre, catalog.TableMovieActor,
	} {
		var n int64
		if err := s.db.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
