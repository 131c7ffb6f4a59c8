// Package pipeline orchestrates the catalog ingest: genres, then popular
// movies (paged and deduplicated), then movie-genre links, then optionally the
// cast of every movie. Each phase is a barrier; junction rows are never written
// before their parent rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Sternrassler/catalog-ingest/pkg/catalog"
	"github.com/Sternrassler/catalog-ingest/pkg/config"
	"github.com/Sternrassler/catalog-ingest/pkg/credits"
	"github.com/Sternrassler/catalog-ingest/pkg/pagination"
	"github.com/Sternrassler/catalog-ingest/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Phase names a pipeline stage.
type Phase string

const (
	PhaseGenres      Phase = "genres"
	PhaseMovies      Phase = "movies"
	PhaseMovieGenres Phase = "movie_genres"
	PhaseCast        Phase = "cast"
)

// DefaultMoviesEndpoint is the collection the movies phase pages through.
const DefaultMoviesEndpoint = "/movie/popular"

// maxReportedDuplicates caps the duplicate ids kept in the summary.
const maxReportedDuplicates = 20

// Source is the TMDB side of the pipeline.
type Source interface {
	pagination.PageFetcher
	credits.Fetcher
	Genres(ctx context.Context) ([]catalog.GenreRecord, error)
}

// Store is the relational side of the pipeline.
type Store interface {
	credits.Store
	UpsertGenres(ctx context.Context, rows []catalog.Genre) error
	UpsertMovies(ctx context.Context, rows []catalog.Movie) error
	UpsertMovieGenres(ctx context.Context, rows []catalog.MovieGenre) error
}

// Config holds the run parameters.
type Config struct {
	Pages          int
	TopN           int
	RequestDelay   time.Duration
	LoadCast       bool
	Concurrency    int
	MoviesEndpoint string
}

// DefaultConfig returns the defaults: 2 pages, top 15 cast, 250ms between requests.
func DefaultConfig() Config {
	return Config{
		Pages:          2,
		TopN:           credits.DefaultTopN,
		RequestDelay:   ratelimit.DefaultDelay,
		LoadCast:       true,
		Concurrency:    1,
		MoviesEndpoint: DefaultMoviesEndpoint,
	}
}

// ConfigFrom maps environment settings to a run configuration.
func ConfigFrom(c config.IngestConfig) Config {
	cfg := DefaultConfig()
	cfg.Pages = c.Pages
	cfg.TopN = c.TopN
	cfg.RequestDelay = c.RequestDelay
	cfg.LoadCast = c.LoadCast
	cfg.Concurrency = c.Concurrency
	return cfg
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	switch {
	case c.Pages < 1:
		return fmt.Errorf("%w (got %d)", pagination.ErrInvalidPageCount, c.Pages)
	case c.TopN < 0:
		return fmt.Errorf("top-n must be >= 0 (got %d)", c.TopN)
	case c.RequestDelay < 0:
		return fmt.Errorf("request delay must be >= 0 (got %v)", c.RequestDelay)
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be >= 1 (got %d)", c.Concurrency)
	}
	return nil
}

// Summary reports what a run wrote.
type Summary struct {
	Genres      int
	Movies      int
	MovieGenres int
	CastMovies  int
	Actors      int
	MovieActors int
	Rejected    int

	// DuplicateIDs holds up to 20 movie ids seen more than once, sorted.
	DuplicateIDs   []int64
	DuplicateCount int

	Phases   []PhaseStats
	Duration time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReporter sets the progress reporter (default: log + metrics).
func WithReporter(r Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithPacer replaces the pacer built from RequestDelay.
func WithPacer(pacer credits.Pacer) Option {
	return func(p *Pipeline) { p.pacer = pacer }
}

// Pipeline runs one ingest.
type Pipeline struct {
	config   Config
	source   Source
	store    Store
	reporter Reporter
	pacer    credits.Pacer
	logger   zerolog.Logger
}

// New creates a pipeline.
func New(cfg Config, source Source, store Store, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || store == nil {
		return nil, errors.New("source and store are required")
	}
	if cfg.MoviesEndpoint == "" {
		cfg.MoviesEndpoint = DefaultMoviesEndpoint
	}

	logger := log.With().Str("component", "pipeline").Logger()
	p := &Pipeline{
		config:   cfg,
		source:   source,
		store:    store,
		reporter: MultiReporter{LogReporter{Logger: logger}, MetricsReporter{}},
		pacer:    ratelimit.NewPacer(cfg.RequestDelay),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes every phase in order and stops at the first failure.
// Phases completed before a failure stay committed.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	r := &run{Pipeline: p, summary: &Summary{}}

	phases := []struct {
		name Phase
		fn   func(context.Context) (PhaseStats, error)
	}{
		{PhaseGenres, r.genres},
		{PhaseMovies, r.movies},
		{PhaseMovieGenres, r.movieGenres},
	}
	if p.config.LoadCast {
		phases = append(phases, struct {
			name Phase
			fn   func(context.Context) (PhaseStats, error)
		}{PhaseCast, r.cast})
	}

	for _, ph := range phases {
		if err := r.phase(ctx, ph.name, ph.fn); err != nil {
			r.summary.Duration = time.Since(start)
			return r.summary, err
		}
	}

	r.summary.Duration = time.Since(start)
	p.logger.Info().
		Int("genres", r.summary.Genres).
		Int("movies", r.summary.Movies).
		Int("movie_genres", r.summary.MovieGenres).
		Int("actors", r.summary.Actors).
		Int("movie_actors", r.summary.MovieActors).
		Int("duplicates", r.summary.DuplicateCount).
		Int("rejected", r.summary.Rejected).
		Dur("duration", r.summary.Duration).
		Msg("Ingest complete")

	return r.summary, nil
}

// run is the state of one Run call.
type run struct {
	*Pipeline
	summary *Summary

	// popular are the deduplicated movies, input to the later phases
	popular []catalog.MovieRecord

	// requested is set once the first source request of the run was issued
	requested bool
}

// phase wraps one stage with reporting and error typing.
func (r *run) phase(ctx context.Context, phase Phase, fn func(context.Context) (PhaseStats, error)) error {
	r.reporter.PhaseStarted(phase)
	start := time.Now()

	stats, err := fn(ctx)
	if err != nil {
		var pe *PhaseError
		if !errors.As(err, &pe) {
			err = &PhaseError{Phase: phase, Err: err}
		}
		r.reporter.PhaseFailed(phase, err)
		return err
	}

	stats.Phase = phase
	stats.Duration = time.Since(start)
	r.summary.Phases = append(r.summary.Phases, stats)
	r.reporter.PhaseCompleted(stats)
	return nil
}

// pace applies the inter-request delay before every source request but the
// run's first.
func (r *run) pace(ctx context.Context) error {
	if !r.requested {
		r.requested = true
		return ctx.Err()
	}
	return r.pacer.Sleep(ctx)
}

// pacedPages paces the paginator's page requests.
type pacedPages struct {
	r *run
}

func (f pacedPages) FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, error) {
	if err := f.r.pace(ctx); err != nil {
		return nil, err
	}
	return f.r.source.FetchPage(ctx, endpoint, pageNum)
}

func sortedCapped(ids []int64, limit int) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
