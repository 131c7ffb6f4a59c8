// Package catalog defines the TMDB source records and the relational rows they
// are materialized into.
package catalog

import (
	"errors"
	"fmt"
)

// ErrMissingID is returned when a source record carries no identity.
// Such records cannot be reconciled by natural key and are never upserted.
var ErrMissingID = errors.New("record has no identity")

// GenreRecord is one entry of /genre/movie/list.
type GenreRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GenreList is the /genre/movie/list response body.
type GenreList struct {
	Genres []GenreRecord `json:"genres"`
}

// MovieRecord is one entry of a /movie/popular results page.
type MovieRecord struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	OriginalLanguage string  `json:"original_language"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	GenreIDs         []int64 `json:"genre_ids"`
}

// CastRecord is one cast member of a /movie/{id}/credits response.
type CastRecord struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Gender     int     `json:"gender"`
	Popularity float64 `json:"popularity"`
	Order      int     `json:"order"`
	Character  string  `json:"character"`
}

// Credits is the /movie/{id}/credits response body. Crew is not materialized.
type Credits struct {
	ID   int64        `json:"id"`
	Cast []CastRecord `json:"cast"`
}

// MovieID returns the natural key of a movie record.
func MovieID(m MovieRecord) int64 { return m.ID }

// PersonID returns the natural key of a cast record.
func PersonID(c CastRecord) int64 { return c.ID }

// Validate rejects records that cannot be keyed.
func (g GenreRecord) Validate() error {
	if g.ID <= 0 {
		return fmt.Errorf("genre %q: %w", g.Name, ErrMissingID)
	}
	return nil
}

// Validate rejects records that cannot be keyed.
func (m MovieRecord) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("movie %q: %w", m.Title, ErrMissingID)
	}
	return nil
}

// Validate rejects records that cannot be keyed.
func (c CastRecord) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("cast member %q: %w", c.Name, ErrMissingID)
	}
	return nil
}

// ValidMovies splits records into keyed movies and the number rejected.
// Input order is preserved.
func ValidMovies(records []MovieRecord) ([]MovieRecord, int) {
	valid := make([]MovieRecord, 0, len(records))
	for _, m := range records {
		if m.Validate() != nil {
			continue
		}
		valid = append(valid, m)
	}
	return valid, len(records) - len(valid)
}
