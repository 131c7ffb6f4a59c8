package catalog

import (
	"errors"
	"testing"
)

func TestMovieRows(t *testing.T) {
	records := []MovieRecord{
		{ID: 1, Title: "Heat", ReleaseDate: "1995-12-15", OriginalLanguage: "en", VoteCount: 10},
		{ID: 0, Title: "no id"},
		{ID: 2, Title: "Unreleased", ReleaseDate: ""},
		{ID: 3, Title: "Garbage date", ReleaseDate: "soon"},
	}

	rows, rejected := MovieRows(records)
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	if rows[0].ReleaseDate == nil || rows[0].ReleaseDate.Format("2006-01-02") != "1995-12-15" {
		t.Errorf("release date = %v, want 1995-12-15", rows[0].ReleaseDate)
	}
	if rows[0].Language != "en" {
		t.Errorf("language = %q, want en", rows[0].Language)
	}
	if rows[1].ReleaseDate != nil {
		t.Errorf("empty release date should be NULL, got %v", rows[1].ReleaseDate)
	}
	if rows[2].ReleaseDate != nil {
		t.Errorf("unparsable release date should be NULL, got %v", rows[2].ReleaseDate)
	}
	for _, r := range rows {
		if r.RuntimeMinutes != nil {
			t.Errorf("movie %d: runtime should stay NULL", r.TMDBMovieID)
		}
	}
}

func TestGenreRows(t *testing.T) {
	rows, rejected := GenreRows([]GenreRecord{{ID: 28, Name: "Action"}, {Name: "Nameless"}})
	if rejected != 1 || len(rows) != 1 {
		t.Fatalf("rows=%d rejected=%d, want 1/1", len(rows), rejected)
	}
	if rows[0].TMDBGenreID != 28 || rows[0].Name != "Action" {
		t.Errorf("unexpected row %+v", rows[0])
	}
}

func TestMovieGenreRows(t *testing.T) {
	movies := []MovieRecord{
		{ID: 1, GenreIDs: []int64{28, 12, 28}},
		{ID: 2, GenreIDs: []int64{0, 18}},
		{ID: 0, GenreIDs: []int64{35}},
		{ID: 3},
	}

	rows := MovieGenreRows(movies)
	want := []MovieGenre{
		{TMDBMovieID: 1, TMDBGenreID: 28},
		{TMDBMovieID: 1, TMDBGenreID: 12},
		{TMDBMovieID: 2, TMDBGenreID: 18},
	}
	if len(rows) != len(want) {
		t.Fatalf("len(rows) = %d, want %d (%v)", len(rows), len(want), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("rows[%d] = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestMovieActorRows_TopN(t *testing.T) {
	cast := make([]CastRecord, 20)
	for i := range cast {
		cast[i] = CastRecord{ID: int64(100 + i), Name: "actor", Order: i, Character: "role"}
	}

	actors, rejected := ActorRows(cast)
	links := MovieActorRows(7, cast, 15)

	if len(actors) != 20 || rejected != 0 {
		t.Errorf("actors = %d (rejected %d), want 20", len(actors), rejected)
	}
	if len(links) != 15 {
		t.Fatalf("links = %d, want 15", len(links))
	}
	for i, l := range links {
		if l.TMDBMovieID != 7 || l.TMDBPersonID != int64(100+i) || l.CastOrder != i {
			t.Errorf("links[%d] = %+v", i, l)
		}
	}
}

func TestMovieActorRows_KeepsSourceOrder(t *testing.T) {
	cast := []CastRecord{
		{ID: 3, Order: 5},
		{ID: 1, Order: 0},
		{ID: 2, Order: 1},
	}

	links := MovieActorRows(9, cast, 2)
	if len(links) != 2 {
		t.Fatalf("links = %d, want 2", len(links))
	}
	if links[0].TMDBPersonID != 3 || links[1].TMDBPersonID != 1 {
		t.Errorf("links not in source order: %+v", links)
	}
}

func TestMovieActorRows_Degenerate(t *testing.T) {
	cast := []CastRecord{{ID: 1}, {ID: 0}, {ID: 2}}

	if got := MovieActorRows(0, cast, 5); got != nil {
		t.Errorf("missing movie id should produce no links, got %v", got)
	}
	if got := MovieActorRows(1, cast, 0); got != nil {
		t.Errorf("topN 0 should produce no links, got %v", got)
	}
	if got := MovieActorRows(1, cast, 2); len(got) != 1 {
		t.Errorf("unkeyed entry consumes a billing slot: got %d links, want 1", len(got))
	}
}

func TestValidate(t *testing.T) {
	if err := (MovieRecord{Title: "x"}).Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("MovieRecord.Validate() = %v, want ErrMissingID", err)
	}
	if err := (CastRecord{ID: -1}).Validate(); !errors.Is(err, ErrMissingID) {
		t.Errorf("CastRecord.Validate() = %v, want ErrMissingID", err)
	}
	if err := (GenreRecord{ID: 1}).Validate(); err != nil {
		t.Errorf("GenreRecord.Validate() = %v, want nil", err)
	}
}

func TestValidMovies(t *testing.T) {
	valid, rejected := ValidMovies([]MovieRecord{{ID: 2}, {}, {ID: 1}})
	if rejected != 1 || len(valid) != 2 {
		t.Fatalf("valid=%d rejected=%d", len(valid), rejected)
	}
	if valid[0].ID != 2 || valid[1].ID != 1 {
		t.Errorf("order not preserved: %+v", valid)
	}
}
