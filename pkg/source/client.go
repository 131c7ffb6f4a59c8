// Package source provides the TMDB HTTP client with bearer auth, retries,
// error classification and an optional Redis response cache.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-ingest/pkg/cache"
	"github.com/Sternrassler/catalog-ingest/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoints used by the ingest pipeline.
const (
	GenresEndpoint  = "/genre/movie/list"
	PopularEndpoint = "/movie/popular"
)

// DefaultBaseURL is the TMDB v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Prometheus metrics for TMDB client operations.
var (
	tmdbRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_requests_total",
		Help: "Total TMDB requests by endpoint and status",
	}, []string{"endpoint", "status"})

	tmdbRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tmdb_request_duration_seconds",
		Help:    "TMDB request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	tmdbErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tmdb_errors_total",
		Help: "Total TMDB errors by class",
	}, []string{"class"})
)

// Client is the TMDB API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *cache.Manager
	config     Config
	retry      RetryConfig
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, without trailing slash.
	BaseURL string

	// Token is the v4 read access token sent as "Authorization: Bearer <token>".
	Token string

	// UserAgent header (optional)
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration

	// Cache is optional; nil disables response caching.
	Cache    *cache.Manager
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Token:          token,
		UserAgent:      "catalog-ingest/1.0",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		CacheTTL:       5 * time.Minute,
	}
}

// New creates a new TMDB client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bearer token is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %v)", cfg.Timeout)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cache:   cfg.Cache,
		config:  cfg,
		retry:   retry,
		logger:  log.With().Str("component", "tmdb-client").Logger(),
	}, nil
}

// Get performs a GET against a TMDB endpoint and returns the response body.
// Non-2xx responses are returned as *APIError. Responses are cached when a
// cache is configured.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	return c.get(ctx, endpoint, query, true)
}

// get bypasses the cache unless cacheable is set. Listings (genres, popular
// pages) change between runs and are always fetched live.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, cacheable bool) ([]byte, error) {
	metricEndpoint := normalizeEndpoint(endpoint)

	startTime := time.Now()
	defer func() {
		tmdbRequestDuration.WithLabelValues(metricEndpoint).Observe(time.Since(startTime).Seconds())
	}()

	useCache := cacheable && c.cache != nil
	cacheKey := cache.CacheKey{Endpoint: endpoint, QueryParams: query}
	if useCache {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Msg("Serving response from cache")
			tmdbRequestsTotal.WithLabelValues(metricEndpoint, "cached").Inc()
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", query.Encode()).
		Msg("Executing TMDB request")

	var (
		body    []byte
		headers http.Header
		status  int
	)

	err := retryWithBackoff(ctx, c.retry, func() error {
		var attemptErr error
		body, headers, status, attemptErr = c.do(ctx, endpoint, target)
		if attemptErr != nil {
			if class := errorClassOf(attemptErr); class != "" {
				tmdbErrorsTotal.WithLabelValues(string(class)).Inc()
			}
		}
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	tmdbRequestsTotal.WithLabelValues(metricEndpoint, strconv.Itoa(status)).Inc()

	if useCache && status == http.StatusOK {
		entry := cache.NewEntry(status, body, headers, c.config.CacheTTL)
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		} else if entry.TTL() > 0 {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return body, nil
}

// do executes a single attempt.
func (c *Client) do(ctx context.Context, endpoint, target string) ([]byte, http.Header, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, 0, ctx.Err()
		}
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		tmdbRequestsTotal.WithLabelValues(normalizeEndpoint(endpoint), "network_error").Inc()
		return nil, nil, 0, &APIError{
			Class:    ErrorClassNetwork,
			Endpoint: endpoint,
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Endpoint:   endpoint,
			Message:    "read body",
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		tmdbRequestsTotal.WithLabelValues(normalizeEndpoint(endpoint), strconv.Itoa(resp.StatusCode)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("TMDB request error")

		return nil, nil, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Endpoint:   endpoint,
			Message:    statusMessage(resp, body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	return body, resp.Header, resp.StatusCode, nil
}

// statusMessage prefers TMDB's {"status_message": ...} error body over the status line.
func statusMessage(resp *http.Response, body []byte) string {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.StatusMessage != "" {
		return payload.StatusMessage
	}
	return resp.Status
}

// FetchPage requests one page of a paginated collection endpoint.
func (c *Client) FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, error) {
	return c.get(ctx, endpoint, url.Values{"page": []string{strconv.Itoa(pageNum)}}, false)
}

// Genres fetches the movie genre list.
func (c *Client) Genres(ctx context.Context) ([]catalog.GenreRecord, error) {
	body, err := c.get(ctx, GenresEndpoint, nil, false)
	if err != nil {
		return nil, err
	}

	var list catalog.GenreList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", GenresEndpoint, err)
	}
	return list.Genres, nil
}

// MovieCredits fetches the cast of one movie.
func (c *Client) MovieCredits(ctx context.Context, movieID int64) (*catalog.Credits, error) {
	endpoint := fmt.Sprintf("/movie/%d/credits", movieID)

	body, err := c.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var credits catalog.Credits
	if err := json.Unmarshal(body, &credits); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return &credits, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// normalizeEndpoint replaces numeric path segments so metric labels stay bounded.
func normalizeEndpoint(endpoint string) string {
	segments := strings.Split(endpoint, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
