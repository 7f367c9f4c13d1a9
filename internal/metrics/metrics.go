// Package metrics exposes Prometheus collectors for the question pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Completion outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

var (
	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxlens_questions_total",
			Help: "Total number of questions analyzed, by query class",
		},
		[]string{"class"},
	)

	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxlens_completions_total",
			Help: "Total number of completion calls, by outcome",
		},
		[]string{"outcome"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taxlens_completion_duration_seconds",
			Help:    "Duration of completion calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	SelectedRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taxlens_selected_records",
			Help:    "Number of records selected as context per question",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	DatasetRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taxlens_dataset_records",
			Help: "Number of records in the loaded dataset",
		},
	)

	DatasetReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taxlens_dataset_reloads_total",
			Help: "Total number of dataset reloads, by result",
		},
		[]string{"result"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taxlens_active_sessions",
			Help: "Number of open analysis sessions",
		},
	)
)
