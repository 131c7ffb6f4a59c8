package catalog

import (
	"time"
)

// Table names of the destination store.
const (
	TableGenres     = "genres"
	TableMovies     = "movies"
	TableActors     = "actors"
	TableMovieGenre = "movie_genre"
	TableMovieActor = "movie_actor"
)

// releaseDateLayout is the TMDB release_date format.
const releaseDateLayout = "2006-01-02"

// Genre is a row of the genres table.
type Genre struct {
	TMDBGenreID int64  `gorm:"column:tmdb_genre_id;primaryKey;autoIncrement:false"`
	Name        string `gorm:"column:name;not null"`
}

// TableName implements gorm's schema.Tabler.
func (Genre) TableName() string { return TableGenres }

// NaturalKey returns the TMDB genre id.
func (g Genre) NaturalKey() int64 { return g.TMDBGenreID }

// Movie is a row of the movies table.
// RuntimeMinutes is not provided by the popular listing and stays NULL here.
type Movie struct {
	TMDBMovieID    int64      `gorm:"column:tmdb_movie_id;primaryKey;autoIncrement:false"`
	Title          string     `gorm:"column:title"`
	OriginalTitle  string     `gorm:"column:original_title"`
	Overview       string     `gorm:"column:overview"`
	ReleaseDate    *time.Time `gorm:"column:release_date;type:date"`
	Language       string     `gorm:"column:language"`
	Popularity     float64    `gorm:"column:popularity"`
	VoteAverage    float64    `gorm:"column:vote_average"`
	VoteCount      int        `gorm:"column:vote_count"`
	RuntimeMinutes *int       `gorm:"column:runtime_minutes"`
}

// TableName implements gorm's schema.Tabler.
func (Movie) TableName() string { return TableMovies }

// NaturalKey returns the TMDB movie id.
func (m Movie) NaturalKey() int64 { return m.TMDBMovieID }

// Actor is a row of the actors table.
type Actor struct {
	TMDBPersonID int64   `gorm:"column:tmdb_person_id;primaryKey;autoIncrement:false"`
	Name         string  `gorm:"column:name"`
	Gender       int     `gorm:"column:gender"`
	Popularity   float64 `gorm:"column:popularity"`
}

// TableName implements gorm's schema.Tabler.
func (Actor) TableName() string { return TableActors }

// NaturalKey returns the TMDB person id.
func (a Actor) NaturalKey() int64 { return a.TMDBPersonID }

// MovieGenre is a row of the movie_genre junction table.
type MovieGenre struct {
	TMDBMovieID int64 `gorm:"column:tmdb_movie_id;primaryKey;autoIncrement:false"`
	TMDBGenreID int64 `gorm:"column:tmdb_genre_id;primaryKey;autoIncrement:false"`
}

// TableName implements gorm's schema.Tabler.
func (MovieGenre) TableName() string { return TableMovieGenre }

// LinkKey returns the composite key.
func (l MovieGenre) LinkKey() (int64, int64) { return l.TMDBMovieID, l.TMDBGenreID }

// MovieActor is a row of the movie_actor junction table.
type MovieActor struct {
	TMDBMovieID   int64  `gorm:"column:tmdb_movie_id;primaryKey;autoIncrement:false"`
	TMDBPersonID  int64  `gorm:"column:tmdb_person_id;primaryKey;autoIncrement:false"`
	CastOrder     int    `gorm:"column:cast_order"`
	CharacterName string `gorm:"column:character_name"`
}

// TableName implements gorm's schema.Tabler.
func (MovieActor) TableName() string { return TableMovieActor }

// LinkKey returns the composite key.
func (l MovieActor) LinkKey() (int64, int64) { return l.TMDBMovieID, l.TMDBPersonID }

// GenreRows converts genre records to rows, dropping records without identity.
func GenreRows(records []GenreRecord) (rows []Genre, rejected int) {
	rows = make([]Genre, 0, len(records))
	for _, g := range records {
		if g.Validate() != nil {
			rejected++
			continue
		}
		rows = append(rows, Genre{TMDBGenreID: g.ID, Name: g.Name})
	}
	return rows, rejected
}

// MovieRows converts movie records to rows, dropping records without identity.
// An empty or unparsable release_date becomes NULL.
func MovieRows(records []MovieRecord) (rows []Movie, rejected int) {
	rows = make([]Movie, 0, len(records))
	for _, m := range records {
		if m.Validate() != nil {
			rejected++
			continue
		}
		rows = append(rows, Movie{
			TMDBMovieID:   m.ID,
			Title:         m.Title,
			OriginalTitle: m.OriginalTitle,
			Overview:      m.Overview,
			ReleaseDate:   parseReleaseDate(m.ReleaseDate),
			Language:      m.OriginalLanguage,
			Popularity:    m.Popularity,
			VoteAverage:   m.VoteAverage,
			VoteCount:     m.VoteCount,
		})
	}
	return rows, rejected
}

// MovieGenreRows derives junction rows from the embedded genre_ids of each movie.
// Pairs with a zero half are skipped; repeated pairs are emitted once.
func MovieGenreRows(movies []MovieRecord) []MovieGenre {
	seen := make(map[MovieGenre]struct{})
	rows := make([]MovieGenre, 0, len(movies)*2)
	for _, m := range movies {
		if m.ID <= 0 {
			continue
		}
		for _, genreID := range m.GenreIDs {
			if genreID <= 0 {
				continue
			}
			row := MovieGenre{TMDBMovieID: m.ID, TMDBGenreID: genreID}
			if _, dup := seen[row]; dup {
				continue
			}
			seen[row] = struct{}{}
			rows = append(rows, row)
		}
	}
	return rows
}

// ActorRows converts a cast list to actor rows, dropping members without identity.
func ActorRows(cast []CastRecord) (rows []Actor, rejected int) {
	rows = make([]Actor, 0, len(cast))
	for _, c := range cast {
		if c.Validate() != nil {
			rejected++
			continue
		}
		rows = append(rows, Actor{
			TMDBPersonID: c.ID,
			Name:         c.Name,
			Gender:       c.Gender,
			Popularity:   c.Popularity,
		})
	}
	return rows, rejected
}

// MovieActorRows links the first topN cast entries, in source billing order, to movieID.
// Entries without identity still consume a billing slot but produce no row.
func MovieActorRows(movieID int64, cast []CastRecord, topN int) []MovieActor {
	if movieID <= 0 || topN <= 0 {
		return nil
	}
	billed := TopBilled(cast, topN)
	rows := make([]MovieActor, 0, len(billed))
	for _, c := range billed {
		if c.Validate() != nil {
			continue
		}
		rows = append(rows, MovieActor{
			TMDBMovieID:   movieID,
			TMDBPersonID:  c.ID,
			CastOrder:     c.Order,
			CharacterName: c.Character,
		})
	}
	return rows
}

// TopBilled returns the first n entries of cast without re-sorting.
func TopBilled(cast []CastRecord, n int) []CastRecord {
	if n <= 0 {
		return nil
	}
	if len(cast) <= n {
		return cast
	}
	return cast[:n]
}

func parseReleaseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(releaseDateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
