package testutil

import (
	"fmt"

	"github.com/Sternrassler/catalog-ingest/pkg/catalog"
)

// Movie builds a popular-list record with deterministic payload.
func Movie(id int64, title string, genreIDs ...int64) catalog.MovieRecord {
	return catalog.MovieRecord{
		ID:               id,
		Title:            title,
		OriginalTitle:    title,
		Overview:         fmt.Sprintf("Overview of %s", title),
		ReleaseDate:      "2024-03-01",
		OriginalLanguage: "en",
		Popularity:       float64(id) / 10,
		VoteAverage:      7.5,
		VoteCount:        int(id) * 10,
		GenreIDs:         genreIDs,
	}
}

// Cast builds n cast members with person ids firstID, firstID+1, ... billed in order.
func Cast(n int, firstID int64) []catalog.CastRecord {
	cast := make([]catalog.CastRecord, 0, n)
	for i := 0; i < n; i++ {
		id := firstID + int64(i)
		cast = append(cast, catalog.CastRecord{
			ID:         id,
			Name:       fmt.Sprintf("Person %d", id),
			Gender:     i % 3,
			Popularity: float64(n - i),
			Order:      i,
			Character:  fmt.Sprintf("Role %d", i),
		})
	}
	return cast
}

// Genres returns a small genre list.
func Genres() []catalog.GenreRecord {
	return []catalog.GenreRecord{
		{ID: 28, Name: "Action"},
		{ID: 12, Name: "Adventure"},
		{ID: 18, Name: "Drama"},
	}
}
