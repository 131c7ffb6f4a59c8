package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/catalog-ingest/pkg/cache"
	"github.com/Sternrassler/catalog-ingest/pkg/config"
	"github.com/Sternrassler/catalog-ingest/pkg/logging"
	"github.com/Sternrassler/catalog-ingest/pkg/metrics"
	"github.com/Sternrassler/catalog-ingest/pkg/pipeline"
	"github.com/Sternrassler/catalog-ingest/pkg/source"
	"github.com/Sternrassler/catalog-ingest/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Ingest failed")
		stop()
		os.Exit(1)
	}
}

// flags override the environment when set explicitly.
type flags struct {
	envFile     string
	logLevel    string
	logPretty   bool
	pages       int
	topN        int
	loadCast    bool
	concurrency int
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "catalog-ingest",
		Short: "Ingest the TMDB movie catalog into a relational store",
		Long: `Fetches genres, popular movies and their cast from TMDB and upserts them
into PostgreSQL (or SQLite). Every run is idempotent: re-running converges
to the same rows.

Configuration comes from the environment and an optional .env file;
flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "dotenv file to load (ignored when missing)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&f.logPretty, "log-pretty", false, "human-readable console logs (overrides LOG_PRETTY)")

	root.AddCommand(newRunCommand(f), newMigrateCommand(f))
	return root
}

func newRunCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full ingest: genres, popular movies, movie genres, cast",
		Example: `  catalog-ingest run
  catalog-ingest run --pages 5 --top-n 10
  catalog-ingest run --load-cast=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&f.pages, "pages", 2, "number of popular-movie pages to fetch (overrides INGEST_PAGES)")
	cmd.Flags().IntVar(&f.topN, "top-n", 15, "billing cutoff for movie_actor links (overrides INGEST_TOP_N)")
	cmd.Flags().BoolVar(&f.loadCast, "load-cast", true, "fetch credits for every movie (overrides INGEST_LOAD_CAST)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 1, "parallel credits requests (overrides INGEST_CONCURRENCY)")
	return cmd
}

func newMigrateCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the catalog schema without ingesting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

// loadConfig reads the environment, applies explicitly set flags and
// configures logging.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, f, cfg)

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-pretty") {
		cfg.LogPretty = f.logPretty
	}
	if changed("pages") {
		cfg.Ingest.Pages = f.pages
	}
	if changed("top-n") {
		cfg.Ingest.TopN = f.topN
	}
	if changed("load-cast") {
		cfg.Ingest.LoadCast = f.loadCast
	}
	if changed("concurrency") {
		cfg.Ingest.Concurrency = f.concurrency
	}
}

func runIngest(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger := logging.NewLogger("main")

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Listen(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	clientCfg := source.DefaultConfig(cfg.TMDB.BearerToken)
	clientCfg.BaseURL = cfg.TMDB.BaseURL
	clientCfg.Timeout = cfg.TMDB.Timeout
	clientCfg.MaxRetries = cfg.TMDB.MaxRetries
	clientCfg.CacheTTL = cfg.Redis.CacheTTL

	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, response cache disabled")
		} else {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
			clientCfg.Cache = cache.NewManager(redisClient)
		}
	}

	client, err := source.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create TMDB client: %w", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.ConfigFrom(cfg.Ingest), client, st)
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx)
	printSummary(out, summary)
	return err
}

func printSummary(out io.Writer, s *pipeline.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintf(out, "genres:        %d\n", s.Genres)
	fmt.Fprintf(out, "movies:        %d\n", s.Movies)
	fmt.Fprintf(out, "movie_genre:   %d\n", s.MovieGenres)
	fmt.Fprintf(out, "actors:        %d\n", s.Actors)
	fmt.Fprintf(out, "movie_actor:   %d\n", s.MovieActors)
	if s.DuplicateCount > 0 {
		fmt.Fprintf(out, "duplicates:    %d %v\n", s.DuplicateCount, s.DuplicateIDs)
	}
	if s.Rejected > 0 {
		fmt.Fprintf(out, "rejected:      %d\n", s.Rejected)
	}
	fmt.Fprintf(out, "duration:      %s\n", s.Duration.Round(time.Millisecond))
}
