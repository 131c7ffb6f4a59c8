// Package pagination drives sequential page fetches against TMDB collection
// endpoints.
//
// TMDB collections take a 1-based "page" query parameter and report
// "total_pages" in every response. Pages are requested one at a time, in
// order, because the source is rate limited; the caller's HTTP layer owns
// pacing and retries.
//
// Example usage:
//
//	movies, err := pagination.FetchPages[catalog.MovieRecord](ctx, tmdb, "/movie/popular", 2)
//
// FetchPages:
//   - Requests pages 1..pageCount, each exactly once
//   - Stops early once total_pages is reached or a page comes back empty
//   - Returns the concatenated results in request order
//   - Fails the whole call on the first page error (no partial data)
package pagination
