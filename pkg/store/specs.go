package store

import "github.com/Sternrassler/catalog-ingest/pkg/catalog"

// Table specs of the catalog schema.
var (
	GenreSpec = EntitySpec{
		Table:         catalog.TableGenres,
		KeyColumns:    []string{"tmdb_genre_id"},
		UpdateColumns: []string{"name"},
	}

	// runtime_minutes is deliberately absent: the listing never carries it.
	MovieSpec = EntitySpec{
		Table:      catalog.TableMovies,
		KeyColumns: []string{"tmdb_movie_id"},
		UpdateColumns: []string{
			"title", "original_title", "overview", "release_date", "language",
			"popularity", "vote_average", "vote_count",
		},
	}

	ActorSpec = EntitySpec{
		Table:         catalog.TableActors,
		KeyColumns:    []string{"tmdb_person_id"},
		UpdateColumns: []string{"name", "gender", "popularity"},
	}

	MovieGenreSpec = LinkSpec{
		Table:      catalog.TableMovieGenre,
		KeyColumns: []string{"tmdb_movie_id", "tmdb_genre_id"},
	}

	MovieActorSpec = LinkSpec{
		Table:          catalog.TableMovieActor,
		KeyColumns:     []string{"tmdb_movie_id", "tmdb_person_id"},
		PayloadColumns: []string{"cast_order", "character_name"},
	}
)
