package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accountplan_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accountplan_sessions_active",
			Help: "Number of sessions held in memory",
		},
	)

	// Conversation metrics
	ConversationMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_conversation_messages_total",
			Help: "Inbound user messages by stage at time of receipt",
		},
		[]string{"stage"},
	)

	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_stage_transitions_total",
			Help: "Conversation stage transitions",
		},
		[]string{"from", "to"},
	)

	// Pipeline metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_pipeline_runs_total",
			Help: "Research-then-synthesis pipeline runs",
		},
		[]string{"mode", "status"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accountplan_pipeline_duration_seconds",
			Help:    "Pipeline duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accountplan_pipeline_queue_depth",
			Help: "Pipeline jobs waiting for the background worker",
		},
	)

	// Research task metrics
	ResearchTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_research_tasks_total",
			Help: "Research tasks executed by channel and status",
		},
		[]string{"channel", "status"},
	)

	ResearchTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountplan_research_task_duration_seconds",
			Help:    "Research task duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	PlannedTasks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accountplan_planned_tasks",
			Help:    "Tasks returned by the research planner after normalization",
			Buckets: []float64{0, 1, 3, 6, 9, 12, 20},
		},
	)

	// Synthesis metrics
	SectionGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_section_generations_total",
			Help: "Report section generations by outcome (generated, fallback)",
		},
		[]string{"section", "outcome"},
	)

	SectionRegenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_section_regenerations_total",
			Help: "Single-section regenerations by status",
		},
		[]string{"section", "status"},
	)

	// LLM metrics
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_llm_requests_total",
			Help: "Text generation requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountplan_llm_latency_seconds",
			Help:    "Text generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	StructuredParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accountplan_llm_structured_parse_failures_total",
			Help: "Structured responses that degraded to a plain reply",
		},
	)

	// Lookup metrics
	LookupRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_lookup_requests_total",
			Help: "Channel lookup requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	LookupCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_lookup_cache_hits_total",
			Help: "Lookup cache hits",
		},
		[]string{"provider"},
	)

	LookupCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_lookup_cache_misses_total",
			Help: "Lookup cache misses",
		},
		[]string{"provider"},
	)

	// Prompt catalog metrics
	PromptReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_prompt_reloads_total",
			Help: "Prompt catalog reloads by result",
		},
		[]string{"result"},
	)
)
