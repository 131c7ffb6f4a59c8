package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "tmdb"

// CacheKey identifies a cached TMDB response.
// The bearer credential is deliberately not part of the key.
type CacheKey struct {
	// Endpoint is the request path relative to the API base (e.g. "/movie/550/credits")
	Endpoint string

	// QueryParams are the query parameters (e.g. {"page": "2"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: tmdb:endpoint:query1=val1:query2=val2
//
// Example:
//
//	tmdb:movie/popular:page=2
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
