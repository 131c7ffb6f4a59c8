// Package metrics exposes the Prometheus registry used by catalog-ingest.
// All metrics are defined in their respective packages (source, cache,
// ratelimit, store, pipeline) via promauto and land in the default registry.
//
// This package serves them and documents the catalogue.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by catalog-ingest.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Server serves /metrics while a run is in progress.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Listen binds addr and starts serving /metrics in the background.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Request Metrics (pkg/source):
//   - tmdb_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("cached" for cache hits)
//   - tmdb_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - tmdb_errors_total{class} (Counter): Errors by class (client, auth, server, rate_limit, network)
//
// Retry Metrics (pkg/source):
//   - tmdb_retries_total{error_class} (Counter): Retry attempts by error class
//   - tmdb_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - tmdb_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - ingest_cache_hits_total (Counter): Response cache hits
//   - ingest_cache_misses_total (Counter): Response cache misses
//   - ingest_cache_stored_bytes_total (Counter): Bytes written to Redis
//   - ingest_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pacing Metrics (pkg/ratelimit):
//   - ingest_pacer_waits_total{mode} (Counter): Pacing suspensions (sleep, interval)
//   - ingest_pacer_wait_seconds{mode} (Histogram): Time suspended
//
// Store Metrics (pkg/store):
//   - store_upsert_rows_total{table} (Counter): Rows submitted to upserts
//   - store_upsert_duration_seconds{table} (Histogram): Upsert transaction duration
//   - store_upsert_errors_total{table,class} (Counter): Failed upsert transactions (class: constraint, other)
//
// Pipeline Metrics (pkg/pipeline):
//   - ingest_phase_duration_seconds{phase} (Histogram): Phase duration
//   - ingest_phase_rows_total{phase} (Counter): Rows written per phase
//   - ingest_phase_failures_total{phase} (Counter): Failed phases
//   - ingest_rejected_records_total{phase} (Counter): Records dropped for missing identity
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ingest_cache_hits_total[5m])) /
//   (sum(rate(ingest_cache_hits_total[5m])) + sum(rate(ingest_cache_misses_total[5m])))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(tmdb_request_duration_seconds_bucket[5m]))
//
//   # Rate limited requests
//   rate(tmdb_errors_total{class="rate_limit"}[5m])
