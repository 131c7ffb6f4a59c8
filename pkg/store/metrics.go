package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upsertRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_upsert_rows_total",
		Help: "Total rows submitted to upserts by table",
	}, []string{"table"})

	upsertDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_upsert_duration_seconds",
		Help:    "Upsert transaction duration in seconds by table",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"table"})

	upsertErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_upsert_errors_total",
		Help: "Total failed upsert transactions by table and error class",
	}, []string{"table", "class"})
)
