// Package metrics defines the worker's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsClaimed counts successful job claims.
	JobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planworker_jobs_claimed_total",
		Help: "Jobs claimed from the queue.",
	})

	// JobOutcomes counts invocation outcomes by status.
	JobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planworker_job_outcomes_total",
		Help: "Invocation outcomes (completed, failed, yielded, no_jobs, already_generated).",
	}, []string{"status"})

	// PhaseDuration observes per-stage pipeline durations.
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planworker_phase_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
	}, []string{"stage"})

	// LLMCallDuration observes LLM call durations by stage.
	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planworker_llm_call_duration_seconds",
		Help:    "Duration of individual LLM calls.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	}, []string{"stage"})

	// LLMFailures counts LLM call failures by error code.
	LLMFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planworker_llm_failures_total",
		Help: "LLM call failures by error code.",
	}, []string{"code"})

	// HeartbeatFailures counts lease extensions that were rejected or errored.
	HeartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planworker_heartbeat_failures_total",
		Help: "Lease extensions that failed or were rejected.",
	})

	// CheckpointSaves counts checkpoint persistence attempts by result.
	CheckpointSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planworker_checkpoint_saves_total",
		Help: "Checkpoint save attempts.",
	}, []string{"result"})
)
