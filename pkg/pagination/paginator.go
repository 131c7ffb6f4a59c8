package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrInvalidPageCount is returned when the page bound is below 1.
var ErrInvalidPageCount = errors.New("page count must be >= 1")

// PageFetcher is the interface the source client must implement for single-page fetching.
type PageFetcher interface {
	// FetchPage fetches a single page and returns the raw response body.
	FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, error)
}

// Page is the envelope TMDB wraps around every collection page.
type Page[T any] struct {
	Page         int `json:"page"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
	Results      []T `json:"results"`
}

// PageError reports which page of which endpoint failed.
type PageError struct {
	Endpoint string
	Page     int
	Err      error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("fetch %s page %d: %v", e.Endpoint, e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageError) Unwrap() error {
	return e.Err
}

// FetchPages requests pages 1..pageCount of endpoint sequentially and returns the
// concatenated results in request order. Every call re-issues all requests.
func FetchPages[T any](ctx context.Context, fetcher PageFetcher, endpoint string, pageCount int) ([]T, error) {
	if pageCount < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPageCount, pageCount)
	}

	start := time.Now()
	logger := log.With().Str("component", "paginator").Str("endpoint", endpoint).Logger()

	var records []T
	fetched := 0
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		data, err := fetcher.FetchPage(ctx, endpoint, pageNum)
		if err != nil {
			return nil, &PageError{Endpoint: endpoint, Page: pageNum, Err: err}
		}

		var page Page[T]
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, &PageError{Endpoint: endpoint, Page: pageNum, Err: fmt.Errorf("decode page: %w", err)}
		}
		fetched++
		records = append(records, page.Results...)

		logger.Debug().
			Int("page", pageNum).
			Int("results", len(page.Results)).
			Int("total_pages", page.TotalPages).
			Msg("Fetched page")

		// Data exhausted
		if len(page.Results) == 0 || (page.TotalPages > 0 && pageNum >= page.TotalPages) {
			if pageNum < pageCount {
				logger.Info().
					Int("page", pageNum).
					Int("requested_pages", pageCount).
					Msg("Source exhausted before page bound")
			}
			break
		}
	}

	logger.Info().
		Int("pages", fetched).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return records, nil
}
