// Package testutil provides a mock TMDB server and record fixtures for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-ingest/pkg/catalog"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTMDB is a configurable mock TMDB server for testing.
//
// Out of the box it serves /genre/movie/list, /movie/popular?page=N and
// /movie/{id}/credits from the data configured with SetGenres, SetPopularPages
// and SetCredits. SetResponse and SetHandler override individual paths.
type MockTMDB struct {
	server *httptest.Server
	token  string

	mu         sync.RWMutex
	handlers   map[string]func(w http.ResponseWriter, r *http.Request)
	genres     []catalog.GenreRecord
	pages      [][]catalog.MovieRecord
	totalPages int
	credits    map[int64][]catalog.CastRecord

	// Tracking
	requests          []string
	LastRequestHeader http.Header
}

// NewMockTMDB creates a mock server that requires "Authorization: Bearer <token>".
func NewMockTMDB(token string) *MockTMDB {
	mock := &MockTMDB{
		token:    token,
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		credits:  make(map[int64][]catalog.CastRecord),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, r.URL.RequestURI())
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+mock.token {
			writeStatus(w, http.StatusUnauthorized, 7, "Invalid API key: You must be granted a valid key.")
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTMDB) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTMDB) Close() {
	m.server.Close()
}

// Reset clears the request log.
func (m *MockTMDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTMDB) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockTMDB) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetGenres configures the genre list.
func (m *MockTMDB) SetGenres(genres []catalog.GenreRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genres = genres
}

// SetPopularPages configures /movie/popular. Page N serves pages[N-1]; pages
// beyond the slice are empty. totalPages is reported verbatim.
func (m *MockTMDB) SetPopularPages(totalPages int, pages ...[]catalog.MovieRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalPages = totalPages
	m.pages = pages
}

// SetCredits configures the cast returned for one movie.
func (m *MockTMDB) SetCredits(movieID int64, cast []catalog.CastRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[movieID] = cast
}

// Requests returns the request URIs received so far, in order.
func (m *MockTMDB) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTMDB) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// CountPrefix returns the number of requests whose URI starts with prefix.
func (m *MockTMDB) CountPrefix(prefix string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (m *MockTMDB) defaultHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path := r.URL.Path
	switch {
	case path == "/genre/movie/list":
		writeJSON(w, catalog.GenreList{Genres: m.genres})

	case path == "/movie/popular":
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			writeStatus(w, http.StatusBadRequest, 22, "Invalid page: Pages start at 1 and max at 500.")
			return
		}
		results := []catalog.MovieRecord{}
		if page <= len(m.pages) && m.pages[page-1] != nil {
			results = m.pages[page-1]
		}
		total := 0
		for _, p := range m.pages {
			total += len(p)
		}
		writeJSON(w, map[string]any{
			"page":          page,
			"total_pages":   m.totalPages,
			"total_results": total,
			"results":       results,
		})

	case strings.HasPrefix(path, "/movie/") && strings.HasSuffix(path, "/credits"):
		idStr := strings.TrimSuffix(strings.TrimPrefix(path, "/movie/"), "/credits")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeStatus(w, http.StatusNotFound, 34, "The resource you requested could not be found.")
			return
		}
		cast, ok := m.credits[id]
		if !ok {
			writeStatus(w, http.StatusNotFound, 34, "The resource you requested could not be found.")
			return
		}
		writeJSON(w, map[string]any{
			"id":   id,
			"cast": cast,
			"crew": []any{},
		})

	default:
		writeStatus(w, http.StatusNotFound, 34, "The resource you requested could not be found.")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"success":false,"status_code":%d,"status_message":%q}`, code, message)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"success":false,"status_code":11,"status_message":"Internal error: Something went wrong, contact TMDB."}`,
		Headers:    map[string]string{"Content-Type": "application/json;charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"success":false,"status_code":25,"status_message":"Your request count (#) is over the allowed limit of (40)."}`,
		Headers: map[string]string{
			"Content-Type": "application/json;charset=utf-8",
			"Retry-After":  strconv.Itoa(retryAfter),
		},
	}
}
