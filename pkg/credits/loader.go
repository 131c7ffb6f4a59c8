// Package credits fans out one credits request per movie and materializes the
// cast: every cast member into actors, the top billed into movie_actor.
package credits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-ingest/pkg/catalog"
	"github.com/Sternrassler/catalog-ingest/pkg/dedupe"
	"github.com/Sternrassler/catalog-ingest/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTopN is the billing cutoff for movie_actor links.
const DefaultTopN = 15

// Fetcher returns the credits of one movie.
type Fetcher interface {
	MovieCredits(ctx context.Context, movieID int64) (*catalog.Credits, error)
}

// Store receives actor and movie_actor rows.
type Store interface {
	UpsertActors(ctx context.Context, rows []catalog.Actor) error
	UpsertMovieActors(ctx context.Context, rows []catalog.MovieActor) error
}

// Pacer spaces out credits requests. Sleep is used sequentially, Wait by workers.
type Pacer interface {
	Sleep(ctx context.Context) error
	Wait(ctx context.Context) error
}

// Step names the stage of a movie's processing that failed.
type Step string

const (
	StepFetch  Step = "fetch"
	StepActors Step = "actors"
	StepLinks  Step = "links"
)

// MovieError is the failure of one movie. Movies processed before it stay committed.
type MovieError struct {
	MovieID int64
	Step    Step
	Err     error
}

func (e *MovieError) Error() string {
	return fmt.Sprintf("movie %d: %s: %v", e.MovieID, e.Step, e.Err)
}

func (e *MovieError) Unwrap() error {
	return e.Err
}

// Config holds loader settings.
type Config struct {
	// TopN caps the movie_actor links per movie. Zero links nobody.
	TopN int

	// Concurrency > 1 fetches with a worker pool; writes stay on one goroutine.
	Concurrency int
}

// Result counts what a load wrote.
type Result struct {
	Movies   int
	Actors   int
	Links    int
	Rejected int
}

// Loader runs the credits fan-out.
type Loader struct {
	fetcher Fetcher
	store   Store
	pacer   Pacer
	config  Config
	logger  zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader(fetcher Fetcher, store Store, pacer Pacer, cfg Config) *Loader {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.TopN < 0 {
		cfg.TopN = 0
	}
	return &Loader{
		fetcher: fetcher,
		store:   store,
		pacer:   pacer,
		config:  cfg,
		logger:  log.With().Str("component", "credits").Logger(),
	}
}

// LoadCastForMovies loads the cast of movieIDs sequentially, pausing delay
// between requests.
func LoadCastForMovies(ctx context.Context, fetcher Fetcher, store Store, movieIDs []int64, topN int, delay time.Duration) (Result, error) {
	return NewLoader(fetcher, store, ratelimit.NewPacer(delay), Config{TopN: topN}).Load(ctx, movieIDs)
}

// Load processes movieIDs in order. The first failing movie aborts the rest.
func (l *Loader) Load(ctx context.Context, movieIDs []int64) (Result, error) {
	start := time.Now()

	var (
		res Result
		err error
	)
	if l.config.Concurrency > 1 && len(movieIDs) > 1 {
		res, err = l.loadConcurrent(ctx, movieIDs)
	} else {
		res, err = l.loadSequential(ctx, movieIDs)
	}

	event := l.logger.Info()
	if err != nil {
		event = l.logger.Error().Err(err)
	}
	event.
		Int("movies", res.Movies).
		Int("of", len(movieIDs)).
		Int("actors", res.Actors).
		Int("links", res.Links).
		Int("rejected", res.Rejected).
		Dur("duration", time.Since(start)).
		Msg("Cast load finished")

	return res, err
}

func (l *Loader) loadSequential(ctx context.Context, movieIDs []int64) (Result, error) {
	var res Result
	for i, movieID := range movieIDs {
		if i > 0 {
			if err := l.pacer.Sleep(ctx); err != nil {
				return res, err
			}
		}

		credits, err := l.fetcher.MovieCredits(ctx, movieID)
		if err != nil {
			return res, &MovieError{MovieID: movieID, Step: StepFetch, Err: err}
		}
		if err := l.write(ctx, movieID, credits, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

type fetched struct {
	movieID int64
	credits *catalog.Credits
	err     error
}

func (l *Loader) loadConcurrent(parent context.Context, movieIDs []int64) (Result, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan int64)
	results := make(chan fetched, l.config.Concurrency)

	go func() {
		defer close(jobs)
		for _, id := range movieIDs {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < l.config.Concurrency; i++ {
		wg.Add(1)
		go l.worker(ctx, jobs, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		res      Result
		firstErr error
	)
	for f := range results {
		if firstErr != nil {
			continue
		}
		if f.err != nil {
			firstErr = &MovieError{MovieID: f.movieID, Step: StepFetch, Err: f.err}
			cancel()
			continue
		}
		if err := l.write(ctx, f.movieID, f.credits, &res); err != nil {
			firstErr = err
			cancel()
		}
	}

	if firstErr == nil && parent.Err() != nil {
		return res, parent.Err()
	}
	return res, firstErr
}

// worker fetches credits for queued movies, each start gated by the shared pacer.
func (l *Loader) worker(ctx context.Context, jobs <-chan int64, results chan<- fetched, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for movieID := range jobs {
		if err := l.pacer.Wait(ctx); err != nil {
			l.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		credits, err := l.fetcher.MovieCredits(ctx, movieID)
		select {
		case results <- fetched{movieID: movieID, credits: credits, err: err}:
			processed++
		case <-ctx.Done():
			return
		}
	}
}

// write upserts the full cast, then links the top billed.
func (l *Loader) write(ctx context.Context, movieID int64, credits *catalog.Credits, res *Result) error {
	var cast []catalog.CastRecord
	if credits != nil {
		cast = credits.Cast
	}

	actors, rejected := catalog.ActorRows(cast)
	actors = dedupe.Dedupe(actors, catalog.Actor.NaturalKey)
	if rejected > 0 {
		l.logger.Warn().
			Int64("movie_id", movieID).
			Int("rejected", rejected).
			Msg("Cast members without id skipped")
	}
	if err := l.store.UpsertActors(ctx, actors); err != nil {
		return &MovieError{MovieID: movieID, Step: StepActors, Err: err}
	}

	links := catalog.MovieActorRows(movieID, cast, l.config.TopN)
	links = dedupe.Dedupe(links, func(m catalog.MovieActor) int64 { return m.TMDBPersonID })
	if err := l.store.UpsertMovieActors(ctx, links); err != nil {
		return &MovieError{MovieID: movieID, Step: StepLinks, Err: err}
	}

	res.Movies++
	res.Actors += len(actors)
	res.Links += len(links)
	res.Rejected += rejected

	l.logger.Debug().
		Int64("movie_id", movieID).
		Int("cast", len(cast)).
		Int("links", len(links)).
		Msg("Cast loaded")
	return nil
}

// IsMovieError reports whether err came from a specific movie and returns it.
func IsMovieError(err error) (*MovieError, bool) {
	var me *MovieError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
