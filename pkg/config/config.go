// Package config loads catalog-ingest settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	TMDB     TMDBConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Ingest   IngestConfig

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"false"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// TMDBConfig holds source API settings.
type TMDBConfig struct {
	BearerToken string        `env:"TMDB_BEARER_TOKEN"`
	BaseURL     string        `env:"TMDB_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	Timeout     time.Duration `env:"TMDB_TIMEOUT" envDefault:"30s"`
	MaxRetries  int           `env:"TMDB_MAX_RETRIES" envDefault:"3"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"postgres"`
	SQLitePath      string        `env:"DB_SQLITE_PATH" envDefault:"catalog.db"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	Name            string        `env:"DB_NAME" envDefault:"movies"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// RedisConfig holds response cache settings. Only credits responses are cached.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// Enabled reports whether the response cache should be used.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// IngestConfig holds pipeline parameters.
type IngestConfig struct {
	Pages        int           `env:"INGEST_PAGES" envDefault:"2"`
	TopN         int           `env:"INGEST_TOP_N" envDefault:"15"`
	RequestDelay time.Duration `env:"INGEST_REQUEST_DELAY" envDefault:"250ms"`
	LoadCast     bool          `env:"INGEST_LOAD_CAST" envDefault:"true"`
	Concurrency  int           `env:"INGEST_CONCURRENCY" envDefault:"1"`
}

// Load reads envFile (if present) into the process environment, then parses
// the environment. An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// FromMap parses configuration from an explicit variable set instead of the
// process environment.
func FromMap(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.TMDB.BearerToken) == "" {
		errs = append(errs, errors.New("TMDB_BEARER_TOKEN is required"))
	}
	if c.TMDB.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("TMDB_TIMEOUT must be > 0 (got %v)", c.TMDB.Timeout))
	}
	if c.TMDB.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("TMDB_MAX_RETRIES must be >= 0 (got %d)", c.TMDB.MaxRetries))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("DB_HOST and DB_NAME are required for postgres"))
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("DB_SQLITE_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q (got %q)", DriverPostgres, DriverSQLite, c.Database.Driver))
	}

	if c.Ingest.Pages < 1 {
		errs = append(errs, fmt.Errorf("pages must be >= 1 (got %d)", c.Ingest.Pages))
	}
	if c.Ingest.TopN < 0 {
		errs = append(errs, fmt.Errorf("top-n must be >= 0 (got %d)", c.Ingest.TopN))
	}
	if c.Ingest.RequestDelay < 0 {
		errs = append(errs, fmt.Errorf("request delay must be >= 0 (got %v)", c.Ingest.RequestDelay))
	}
	if c.Ingest.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1 (got %d)", c.Ingest.Concurrency))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
