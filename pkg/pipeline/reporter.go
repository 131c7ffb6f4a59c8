package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pipeline phases.
var (
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_phase_duration_seconds",
		Help:    "Pipeline phase duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"phase"})

	phaseRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_phase_rows_total",
		Help: "Total rows written per pipeline phase",
	}, []string{"phase"})

	phaseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_phase_failures_total",
		Help: "Total failed pipeline phases",
	}, []string{"phase"})

	rejectedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rejected_records_total",
		Help: "Total source records dropped for missing identity",
	}, []string{"phase"})
)

// PhaseStats describes a completed phase.
type PhaseStats struct {
	Phase    Phase
	Fetched  int
	Written  int
	Rejected int
	Duration time.Duration
}

// Reporter receives structured progress events.
type Reporter interface {
	PhaseStarted(phase Phase)
	PhaseCompleted(stats PhaseStats)
	PhaseFailed(phase Phase, err error)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) PhaseStarted(Phase)        {}
func (NopReporter) PhaseCompleted(PhaseStats) {}
func (NopReporter) PhaseFailed(Phase, error)  {}

// LogReporter writes events through zerolog.
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) PhaseStarted(phase Phase) {
	r.Logger.Info().Str("phase", string(phase)).Msg("Phase started")
}

func (r LogReporter) PhaseCompleted(stats PhaseStats) {
	r.Logger.Info().
		Str("phase", string(stats.Phase)).
		Int("fetched", stats.Fetched).
		Int("count", stats.Written).
		Int("rejected", stats.Rejected).
		Dur("duration", stats.Duration).
		Msg("Phase completed")
}

func (r LogReporter) PhaseFailed(phase Phase, err error) {
	r.Logger.Error().Err(err).Str("phase", string(phase)).Msg("Phase failed")
}

// MetricsReporter records phase metrics.
type MetricsReporter struct{}

func (MetricsReporter) PhaseStarted(Phase) {}

func (MetricsReporter) PhaseCompleted(stats PhaseStats) {
	phase := string(stats.Phase)
	phaseDuration.WithLabelValues(phase).Observe(stats.Duration.Seconds())
	phaseRowsTotal.WithLabelValues(phase).Add(float64(stats.Written))
	if stats.Rejected > 0 {
		rejectedRecordsTotal.WithLabelValues(phase).Add(float64(stats.Rejected))
	}
}

func (MetricsReporter) PhaseFailed(phase Phase, _ error) {
	phaseFailuresTotal.WithLabelValues(string(phase)).Inc()
}

// MultiReporter fans events out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) PhaseStarted(phase Phase) {
	for _, r := range m {
		r.PhaseStarted(phase)
	}
}

func (m MultiReporter) PhaseCompleted(stats PhaseStats) {
	for _, r := range m {
		r.PhaseCompleted(stats)
	}
}

func (m MultiReporter) PhaseFailed(phase Phase, err error) {
	for _, r := range m {
		r.PhaseFailed(phase, err)
	}
}
