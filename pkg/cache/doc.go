// Package cache provides an optional Redis-backed cache for TMDB GET responses.
//
// The source client consults the cache before issuing a request and stores
// successful bodies afterwards. Entries expire according to the response's
// Cache-Control max-age or Expires header, falling back to a configured TTL.
// Responses marked no-store are never cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/movie/popular",
//		QueryParams: url.Values{"page": []string{"1"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from TMDB, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(resp.StatusCode, body, resp.Header, 5*time.Minute))
//	}
//
// Caching is disabled entirely when no Redis address is configured; the
// paginator and credits loader then always hit the network.
//
// # Metrics
//
//   - ingest_cache_hits_total - Cache hits
//   - ingest_cache_misses_total - Cache misses
//   - ingest_cache_stored_bytes_total - Bytes written to Redis
//   - ingest_cache_errors_total{operation} - Cache operation errors
package cache
