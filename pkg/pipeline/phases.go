package pipeline

import (
	"context"
	"errors"

	"github.com/Sternrassler/catalog-ingest/pkg/catalog"
	"github.com/Sternrassler/catalog-ingest/pkg/credits"
	"github.com/Sternrassler/catalog-ingest/pkg/dedupe"
	"github.com/Sternrassler/catalog-ingest/pkg/pagination"
)

// genres loads the genre list; names may be corrected on re-ingest.
func (r *run) genres(ctx context.Context) (PhaseStats, error) {
	if err := r.pace(ctx); err != nil {
		return PhaseStats{}, err
	}
	records, err := r.source.Genres(ctx)
	if err != nil {
		return PhaseStats{}, err
	}

	rows, rejected := catalog.GenreRows(records)
	if rejected > 0 {
		r.logger.Warn().Str("phase", string(PhaseGenres)).Int("rejected", rejected).Msg("Genres without id skipped")
	}
	rows = dedupe.Dedupe(rows, catalog.Genre.NaturalKey)

	if err := r.store.UpsertGenres(ctx, rows); err != nil {
		return PhaseStats{}, err
	}

	r.summary.Genres = len(rows)
	r.summary.Rejected += rejected
	return PhaseStats{Fetched: len(records), Written: len(rows), Rejected: rejected}, nil
}

// movies pages through the popular list, reports and collapses duplicate ids,
// then upserts one row per movie.
func (r *run) movies(ctx context.Context) (PhaseStats, error) {
	records, err := pagination.FetchPages[catalog.MovieRecord](ctx, pacedPages{r}, r.config.MoviesEndpoint, r.config.Pages)
	if err != nil {
		var pageErr *pagination.PageError
		if errors.As(err, &pageErr) {
			return PhaseStats{}, &PhaseError{Phase: PhaseMovies, Entity: "page", ID: int64(pageErr.Page), Err: err}
		}
		return PhaseStats{}, err
	}

	valid, rejected := catalog.ValidMovies(records)
	if rejected > 0 {
		r.logger.Warn().Str("phase", string(PhaseMovies)).Int("rejected", rejected).Msg("Movies without id skipped")
	}

	dups := dedupe.FindDuplicateKeys(valid, catalog.MovieID)
	if len(dups) > 0 {
		r.summary.DuplicateCount = len(dups)
		r.summary.DuplicateIDs = sortedCapped(dups, maxReportedDuplicates)
		r.logger.Warn().
			Str("phase", string(PhaseMovies)).
			Int("duplicates", len(dups)).
			Ints64("ids", r.summary.DuplicateIDs).
			Msg("Duplicate movie ids in popular list")
	}

	r.popular = dedupe.Dedupe(valid, catalog.MovieID)
	rows, _ := catalog.MovieRows(r.popular)

	if err := r.store.UpsertMovies(ctx, rows); err != nil {
		return PhaseStats{}, err
	}

	r.summary.Movies = len(rows)
	r.summary.Rejected += rejected
	return PhaseStats{Fetched: len(records), Written: len(rows), Rejected: rejected}, nil
}

// movieGenres links the deduplicated movies to the genres they list.
func (r *run) movieGenres(ctx context.Context) (PhaseStats, error) {
	rows := catalog.MovieGenreRows(r.popular)
	if len(rows) == 0 {
		r.logger.Info().Str("phase", string(PhaseMovieGenres)).Msg("No movie_genre rows to insert")
		return PhaseStats{}, nil
	}

	if err := r.store.UpsertMovieGenres(ctx, rows); err != nil {
		return PhaseStats{}, err
	}

	r.summary.MovieGenres = len(rows)
	return PhaseStats{Fetched: len(r.popular), Written: len(rows)}, nil
}

// cast fans out one credits request per movie.
func (r *run) cast(ctx context.Context) (PhaseStats, error) {
	if len(r.popular) == 0 {
		return PhaseStats{}, nil
	}

	ids := make([]int64, len(r.popular))
	for i, m := range r.popular {
		ids[i] = m.ID
	}

	// the previous request was a movie page
	if err := r.pace(ctx); err != nil {
		return PhaseStats{}, err
	}

	loader := credits.NewLoader(r.source, r.store, r.pacer, credits.Config{
		TopN:        r.config.TopN,
		Concurrency: r.config.Concurrency,
	})
	res, err := loader.Load(ctx, ids)

	r.summary.CastMovies = res.Movies
	r.summary.Actors = res.Actors
	r.summary.MovieActors = res.Links
	r.summary.Rejected += res.Rejected

	if err != nil {
		if me, ok := credits.IsMovieError(err); ok {
			return PhaseStats{}, &PhaseError{Phase: PhaseCast, Entity: "movie", ID: me.MovieID, Err: err}
		}
		return PhaseStats{}, err
	}

	return PhaseStats{Fetched: res.Movies, Written: res.Actors + res.Links, Rejected: res.Rejected}, nil
}
