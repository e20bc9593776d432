// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConsultationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consultations_started_total",
			Help: "Total number of consultations started",
		},
	)

	ConsultationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consultations_completed_total",
			Help: "Total number of consultations reaching a terminal status",
		},
		[]string{"status"},
	)

	AgentCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_calls_total",
			Help: "Total number of agent chat calls by outcome",
		},
		[]string{"outcome"},
	)

	AgentCallLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_call_latency_seconds",
			Help:    "Latency of agent chat calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	ValidationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_validation_total",
			Help: "Validation outcomes by reason",
		},
		[]string{"outcome"},
	)

	ReactionRounds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reaction_rounds_total",
			Help: "Total number of reaction rounds executed",
		},
	)

	SummarizerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summarizer_fallbacks_total",
			Help: "Generative summarizer failures resolved by the rule-based pipeline",
		},
	)

	StoreWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_write_errors_total",
			Help: "Persistence write failures isolated per item",
		},
	)

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
)
