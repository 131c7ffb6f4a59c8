// Package ratelimit paces requests against the rate-limited TMDB API.
//
// The pacer is cooperative: it does not observe the source's quota, it only
// spaces requests out. Sleep applies a flat delay after a request regardless of
// how long the request took; Wait spaces request starts at least one interval
// apart and is safe for concurrent callers.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultDelay is the inter-request delay used when none is configured.
const DefaultDelay = 250 * time.Millisecond

// Prometheus metrics for request pacing.
var (
	pacerWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_pacer_waits_total",
		Help: "Total number of pacing suspensions by mode",
	}, []string{"mode"})

	pacerWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_pacer_wait_seconds",
		Help:    "Time spent suspended by the pacer by mode",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"mode"})
)

// Pacer spaces out requests by a fixed delay.
type Pacer struct {
	delay  time.Duration
	logger zerolog.Logger

	mu   sync.Mutex
	next time.Time
	now  func() time.Time
}

// NewPacer creates a pacer with the given delay. A zero delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	if delay < 0 {
		delay = 0
	}
	return &Pacer{
		delay:  delay,
		logger: log.With().Str("component", "pacer").Logger(),
		now:    time.Now,
	}
}

// Delay returns the configured inter-request delay.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Sleep suspends for the full delay. It returns early with the context's error
// if ctx is cancelled.
func (p *Pacer) Sleep(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	return p.suspend(ctx, "sleep", p.delay)
}

// Wait blocks until the next request slot, then reserves the following one.
// The first call never waits.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := p.now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.delay)
	p.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}
	return p.suspend(ctx, "interval", wait)
}

func (p *Pacer) suspend(ctx context.Context, mode string, d time.Duration) error {
	pacerWaitsTotal.WithLabelValues(mode).Inc()
	pacerWaitSeconds.WithLabelValues(mode).Observe(d.Seconds())

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		p.logger.Debug().
			Str("mode", mode).
			Dur("delay", d).
			Msg("Pacing interrupted (context cancelled)")
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
