// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Matching engine collectors.
var (
	MatchingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_runs_total",
			Help: "Total number of matching runs by strategy",
		},
		[]string{"strategy"},
	)

	MatchingPairsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_pairs_scored_total",
			Help: "Total number of demand/supplier pairs scored",
		},
		[]string{"strategy"},
	)

	MatchingCuratedSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_curated_matches",
			Help:    "Number of matches kept after curation per run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// outcome is "completed", "failed" or "empty".
	KeywordExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyword_extractions_total",
			Help: "Keyword extraction calls by entity type and outcome",
		},
		[]string{"entity_type", "outcome"},
	)

	EngagementEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_engagement_events_total",
			Help: "Interest and comment events recorded against matches",
		},
		[]string{"kind"},
	)
)
