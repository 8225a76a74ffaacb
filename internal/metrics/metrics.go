package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagerelay_pipeline_runs_total",
			Help: "Total number of pipeline executions",
		},
		[]string{"entry_point", "outcome"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagerelay_pipeline_duration_seconds",
			Help:    "End-to-end pipeline execution duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"entry_point"},
	)

	// Webhook metrics
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagerelay_webhook_requests_total",
			Help: "Total number of webhook requests by status",
		},
		[]string{"entry_point", "status"},
	)

	// Context assembly metrics
	ReferencesResolved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagerelay_references_resolved",
			Help:    "Number of references resolved per context assembly",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)

	ReferenceFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagerelay_reference_fetch_failures_total",
			Help: "Total number of reference fetches dropped from context assembly",
		},
	)

	ContextTruncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagerelay_context_truncations_total",
			Help: "Total number of context bundles cut to the character budget",
		},
	)

	// Generation metrics
	GenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagerelay_generation_attempts_total",
			Help: "Total number of generation attempts by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagerelay_generation_duration_seconds",
			Help:    "Generation provider call duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 90, 120},
		},
		[]string{"model"},
	)

	FallbackExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagerelay_fallback_exhausted_total",
			Help: "Total number of fallback chains that failed every entry",
		},
	)

	// Image job metrics
	ImageJobPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagerelay_image_job_polls_total",
			Help: "Total number of image job poll calls by resulting state",
		},
		[]string{"state"},
	)

	ImageJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagerelay_image_job_duration_seconds",
			Help:    "Image job duration from submission to terminal state",
			Buckets: []float64{5, 15, 30, 60, 120, 180, 300},
		},
	)

	// Workspace API metrics
	WorkspaceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagerelay_workspace_calls_total",
			Help: "Total number of workspace API calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	WorkspaceCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagerelay_workspace_call_duration_seconds",
			Help:    "Workspace API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	WritebackBatches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagerelay_writeback_batches",
			Help:    "Number of append batches per materialization",
			Buckets: []float64{1, 2, 3, 5, 10, 20},
		},
	)

	WritebackFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagerelay_writeback_failures_total",
			Help: "Total number of writebacks that failed after a successful generation",
		},
	)

	// Status propagation metrics
	StatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagerelay_status_updates_total",
			Help: "Total number of task status writes by target state and outcome",
		},
		[]string{"status", "outcome"},
	)

	ParentTriggers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagerelay_parent_triggers_total",
			Help: "Total number of parent-task trigger flags set",
		},
	)

	// System-context cache metrics
	SystemContextRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagerelay_system_context_refreshes_total",
			Help: "Total number of system-context cache refreshes by outcome",
		},
		[]string{"outcome"},
	)
)
